// CLAUDE:SUMMARY XLSX reader that concatenates every sheet, trims headers and skips sheets missing required columns.

// Package workbook reads and writes XLSX files as flat header-keyed tables.
//
// Every sheet of a workbook is parsed independently. A sheet that cannot be
// read, or whose header lacks a required column, is skipped and reported as a
// SheetError; the remaining sheets are concatenated.
package workbook

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SourceColumn is the column added by Options.SourceLabel.
const SourceColumn = "Fuente"

// ErrNoSheets is returned when no sheet of a workbook could be loaded.
var ErrNoSheets = errors.New("no sheet could be loaded")

// SheetError describes a sheet that was skipped.
type SheetError struct {
	Sheet string
	Err   error
}

func (e *SheetError) Error() string {
	return fmt.Sprintf("sheet %q: %v", e.Sheet, e.Err)
}

func (e *SheetError) Unwrap() error { return e.Err }

// Row is one data row. A column that is absent from the map, or present with
// an empty value, is null.
type Row struct {
	Sheet  string
	Index  int // position in the concatenated table
	Values map[string]string
}

// Get returns the value of col and whether it is non-null.
func (r Row) Get(col string) (string, bool) {
	v, ok := r.Values[col]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Table is the concatenation of every loaded sheet.
type Table struct {
	Columns  []string
	Rows     []Row
	Sheets   []string      // sheets that were loaded
	Warnings []*SheetError // sheets that were skipped
	// DroppedEmpty counts rows removed because every cell was empty.
	DroppedEmpty int
}

// HasColumn reports whether any loaded sheet carried col.
func (t *Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Options tune Load.
type Options struct {
	// Sheets restricts loading to the named sheets. Empty means all.
	Sheets []string
	// RequiredColumns must all appear in a sheet header, otherwise the
	// sheet is skipped with a warning.
	RequiredColumns []string
	// SourceLabel, when set, adds a SourceColumn valued "<label> - <sheet>".
	SourceLabel string
	Logger      *slog.Logger
}

// LoadFile opens path and calls Load.
func LoadFile(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return Load(f, opts)
}

// Load reads every sheet of the workbook in r.
func Load(r io.Reader, opts Options) (*Table, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	if len(opts.Sheets) > 0 {
		names = filterSheets(names, opts.Sheets)
	}

	t := &Table{}
	colSeen := make(map[string]bool)
	for _, name := range names {
		sheet, err := readSheet(f, name, opts.RequiredColumns)
		if err != nil {
			se := &SheetError{Sheet: name, Err: err}
			logger.Warn("sheet skipped", "sheet", name, "error", err)
			t.Warnings = append(t.Warnings, se)
			continue
		}
		if opts.SourceLabel != "" {
			sheet.header = append(sheet.header, SourceColumn)
		}
		for _, h := range sheet.header {
			if !colSeen[h] {
				colSeen[h] = true
				t.Columns = append(t.Columns, h)
			}
		}
		for _, values := range sheet.rows {
			if isBlank(values) {
				t.DroppedEmpty++
				continue
			}
			row := Row{Sheet: name, Index: len(t.Rows), Values: make(map[string]string, len(values))}
			for i, h := range sheet.header {
				if i < len(values) && h != SourceColumn {
					row.Values[h] = strings.TrimSpace(values[i])
				}
			}
			if opts.SourceLabel != "" {
				row.Values[SourceColumn] = opts.SourceLabel + " - " + name
			}
			t.Rows = append(t.Rows, row)
		}
		t.Sheets = append(t.Sheets, name)
	}

	if len(t.Sheets) == 0 {
		return t, ErrNoSheets
	}
	if t.DroppedEmpty > 0 {
		logger.Info("dropped empty rows", "rows", t.DroppedEmpty)
	}
	return t, nil
}

type sheetData struct {
	header []string
	rows   [][]string
}

func readSheet(f *excelize.File, name string, required []string) (*sheetData, error) {
	// Raw values keep date cells as serial numbers; audit parses them.
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty sheet")
	}

	header := normalizeHeader(rows[0])
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return &sheetData{header: header, rows: rows[1:]}, nil
}

// normalizeHeader trims names, names blank headers after their position and
// suffixes duplicates with ".1", ".2"...
func normalizeHeader(raw []string) []string {
	out := make([]string, len(raw))
	counts := make(map[string]int, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		if n := counts[h]; n > 0 {
			counts[h] = n + 1
			h = h + "." + strconv.Itoa(n)
		} else {
			counts[h] = 1
		}
		out[i] = h
	}
	return out
}

func isBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func filterSheets(all, want []string) []string {
	keep := make(map[string]bool, len(want))
	for _, w := range want {
		keep[w] = true
	}
	var out []string
	for _, s := range all {
		if keep[s] {
			out = append(out, s)
		}
	}
	return out
}

// Concat joins tables in order, re-indexing rows and merging column order
// and warnings.
func Concat(tables ...*Table) *Table {
	out := &Table{}
	seen := make(map[string]bool)
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.Columns {
			if !seen[c] {
				seen[c] = true
				out.Columns = append(out.Columns, c)
			}
		}
		for _, r := range t.Rows {
			r.Index = len(out.Rows)
			out.Rows = append(out.Rows, r)
		}
		out.Sheets = append(out.Sheets, t.Sheets...)
		out.Warnings = append(out.Warnings, t.Warnings...)
		out.DroppedEmpty += t.DroppedEmpty
	}
	return out
}
