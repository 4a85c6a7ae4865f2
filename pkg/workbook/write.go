// CLAUDE:SUMMARY XLSX writer for report, merge and export sheets.
package workbook

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"
)

// SheetData is one sheet to write: a header row followed by data rows.
type SheetData struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Write renders sheets into an XLSX document on w.
func Write(w io.Writer, sheets ...SheetData) error {
	f, err := build(sheets)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteFile renders sheets into the XLSX file at path.
func WriteFile(path string, sheets ...SheetData) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(out, sheets...); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// FromTable converts a Table back into sheet data with its column order.
func FromTable(name string, t *Table) SheetData {
	sd := SheetData{Name: name, Header: append([]string(nil), t.Columns...)}
	for _, r := range t.Rows {
		row := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			row[i] = r.Values[c]
		}
		sd.Rows = append(sd.Rows, row)
	}
	return sd
}

func build(sheets []SheetData) (*excelize.File, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets to write")
	}
	f := excelize.NewFile()
	defaultSheet := f.GetSheetName(0)

	for i, s := range sheets {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				f.Close()
				return nil, fmt.Errorf("rename sheet %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %q: %w", name, err)
		}
		if err := writeRows(f, name, s); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeRows(f *excelize.File, sheet string, s SheetData) error {
	all := make([][]string, 0, len(s.Rows)+1)
	all = append(all, s.Header)
	all = append(all, s.Rows...)
	for i, values := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("sheet %q: %w", sheet, err)
		}
		row := make([]any, len(values))
		for j, v := range values {
			row[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("sheet %q row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
