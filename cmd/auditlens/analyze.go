// CLAUDE:SUMMARY CLI subcommands that print the full report, critical stock and the xlsx stock export.
package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazyhaar/auditlens/pkg/audit"
	"github.com/hazyhaar/auditlens/pkg/render"
	"github.com/hazyhaar/auditlens/pkg/report"
	"github.com/hazyhaar/auditlens/pkg/stock"
	"github.com/hazyhaar/auditlens/pkg/workbook"
	"github.com/spf13/cobra"
)

type reportFlags struct {
	technician, company, auditType, plate, order string
	from, to, day                                string
}

func (f *reportFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.technician, "technician", "", "only this technician")
	fl.StringVar(&f.company, "company", "", "only this company")
	fl.StringVar(&f.auditType, "type", "", "only this audit type")
	fl.StringVar(&f.plate, "plate", "", "plate contains")
	fl.StringVar(&f.order, "order", "", "work order contains")
	fl.StringVar(&f.from, "from", "", "technician ranking start (dd/mm/yyyy)")
	fl.StringVar(&f.to, "to", "", "technician ranking end (dd/mm/yyyy)")
	fl.StringVar(&f.day, "day", "", "auditor daily count day (dd/mm/yyyy)")
}

func (f *reportFlags) options() (report.Options, error) {
	opts := report.Options{Filter: report.Filter{
		Technician: f.technician,
		Company:    f.company,
		AuditType:  f.auditType,
		Plate:      f.plate,
		WorkOrder:  f.order,
	}}
	var err error
	if opts.Range.From, err = parseDay("from", f.from); err != nil {
		return opts, err
	}
	if opts.Range.To, err = parseDay("to", f.to); err != nil {
		return opts, err
	}
	opts.Day, err = parseDay("day", f.day)
	return opts, err
}

func parseDay(flag, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, ok := audit.ParseDate(s)
	if !ok {
		return nil, fmt.Errorf("--%s: invalid date %q", flag, s)
	}
	return &t, nil
}

func newAnalyzeCmd() *cobra.Command {
	var (
		flags  reportFlags
		asJSON bool
		record bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <file.xlsx>",
		Short: "Print KPIs, rankings and critical stock for a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			opts, err := flags.options()
			if err != nil {
				return err
			}
			d, id, err := loadDataset(args[0], logger)
			if err != nil {
				return err
			}
			if record {
				if err := recordRun(cmd.Context(), id, d, logger); err != nil {
					logger.Warn("history not recorded", "error", err)
				}
			}

			rep := report.Build(d, audit.NewClassifier(d.Rules), opts)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			render.Report(cmd.OutOrStdout(), rep)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&record, "record", false, "record the run in the history database")
	return cmd
}

func newStockCmd() *cobra.Command {
	var catalog, company string

	cmd := &cobra.Command{
		Use:   "stock <file.xlsx>",
		Short: "List technicians missing equipment of a catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, _, err := loadDataset(args[0], newLogger())
			if err != nil {
				return err
			}
			cat, ok := d.Rules.Rules.Catalog(catalog)
			if !ok {
				return fmt.Errorf("unknown catalog %q", catalog)
			}
			res, err := stock.Select(d, cat)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			render.Title(w, "Stock Crítico "+cat.Label)
			render.StockEntries(w, res, res.FilterCompany(company))
			return nil
		},
	}

	cmd.Flags().StringVar(&catalog, "catalog", "tools", "catalog id")
	cmd.Flags().StringVar(&company, "company", "", "only this company")
	return cmd
}

func newExportCmd() *cobra.Command {
	var out, company string

	cmd := &cobra.Command{
		Use:   "export <file.xlsx>",
		Short: "Write every critical-stock table to an .xlsx file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			d, _, err := loadDataset(args[0], logger)
			if err != nil {
				return err
			}

			var sheets []workbook.SheetData
			for _, cat := range d.Rules.Rules.Catalogs {
				res, err := stock.Select(d, cat)
				if err != nil {
					logger.Warn("catalog skipped", "catalog", cat.ID, "error", err)
					continue
				}
				sheets = append(sheets, res.Sheet(res.FilterCompany(company)))
			}
			if len(sheets) == 0 {
				return fmt.Errorf("nothing to export: %w", audit.ErrEmptyResult)
			}

			if out == "" {
				out = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0])) + "_stock_critico.xlsx"
			}
			if err := workbook.WriteFile(out, sheets...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d sheets)\n", out, len(sheets))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "output file")
	cmd.Flags().StringVar(&company, "company", "", "only this company")
	return cmd
}
