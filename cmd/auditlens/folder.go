// CLAUDE:SUMMARY CLI subcommands over folders of workbooks: SQL query, merge, compare and CSV conversion.
package main

import (
	"fmt"
	"path/filepath"

	"github.com/hazyhaar/auditlens/pkg/render"
	"github.com/hazyhaar/auditlens/pkg/sqlview"
	"github.com/hazyhaar/auditlens/pkg/workbook"
	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "query <file.xlsx>...",
		Short: "Run SQL over the concatenated sheets of one or more workbooks",
		Long: "Loads every sheet of every file into an in-memory SQLite table named " +
			sqlview.TableName + ". The " + workbook.SourceColumn + " column names the file and sheet of each row.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			tables := make([]*workbook.Table, 0, len(args))
			for _, path := range args {
				t, err := workbook.LoadFile(path, workbook.Options{
					SourceLabel: filepath.Base(path),
					Logger:      logger,
				})
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				tables = append(tables, t)
			}

			ctx := cmd.Context()
			view, err := sqlview.Open(ctx, workbook.Concat(tables...))
			if err != nil {
				return err
			}
			defer view.Close()

			res, err := view.Query(ctx, query)
			if err != nil {
				return err
			}
			render.Query(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVar(&query, "sql", "SELECT * FROM "+sqlview.TableName+" LIMIT 20", "query to run")
	return cmd
}

func newMergeCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "merge <dir>",
		Short: "Unify the " + workbook.DataSheet + " sheet of every workbook in a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := workbook.Merge(cmd.Context(), args[0], newLogger())
			if err != nil {
				return err
			}
			if err := workbook.WriteFile(out, workbook.FromTable(workbook.DataSheet, t)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d rows from %d columns)\n", out, len(t.Rows), len(t.Columns))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "consolidado.xlsx", "output file")
	return cmd
}

func newCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <dir>",
		Short: "Report column differences between every pair of workbooks in a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			errw := cmd.ErrOrStderr()
			diffs, err := workbook.Compare(cmd.Context(), args[0], newLogger(), func(done, total int) {
				fmt.Fprintf(errw, "\rcomparing %d/%d", done, total)
			})
			fmt.Fprintln(errw)
			if err != nil {
				return err
			}
			render.Differences(cmd.OutOrStdout(), diffs)
			return nil
		},
	}
}

func newConvertCmd() *cobra.Command {
	var encoding string

	cmd := &cobra.Command{
		Use:   "convert <dir>",
		Short: "Convert every CSV in a folder to XLSX and verify the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			convs, err := workbook.ConvertDir(args[0], encoding, newLogger())
			if err != nil {
				return err
			}
			render.Conversions(cmd.OutOrStdout(), convs)
			return nil
		},
	}

	cmd.Flags().StringVar(&encoding, "encoding", "utf-8", "source encoding (e.g. latin1, windows-1252)")
	return cmd
}
