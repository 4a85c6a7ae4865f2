// CLAUDE:SUMMARY Folder tools: concurrent merge of workbooks and pairwise column comparison.
package workbook

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DataSheet is the sheet name used by folder-level merge and compare.
const DataSheet = "Datos"

// maxParallelReads bounds concurrent workbook reads in a folder.
const maxParallelReads = 4

// ListFiles returns the files in dir with the given extension, sorted by name.
func ListFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// LoadDir loads the given sheet of every workbook in dir concurrently. The
// result is ordered by file name; each table is labelled with its file name.
func LoadDir(ctx context.Context, dir, sheet string, logger *slog.Logger) ([]string, []*Table, error) {
	files, err := ListFiles(dir, ".xlsx")
	if err != nil {
		return nil, nil, err
	}
	tables := make([]*Table, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	for i, name := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			opts := Options{SourceLabel: name, Logger: logger}
			if sheet != "" {
				opts.Sheets = []string{sheet}
			}
			t, err := LoadFile(filepath.Join(dir, name), opts)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return files, tables, nil
}

// Merge concatenates the DataSheet of every workbook in dir. Each row keeps
// its origin in SourceColumn.
func Merge(ctx context.Context, dir string, logger *slog.Logger) (*Table, error) {
	files, tables, err := LoadDir(ctx, dir, DataSheet, logger)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .xlsx files in %s", dir)
	}
	return Concat(tables...), nil
}

// Difference reports the columns one workbook has and the other lacks.
type Difference struct {
	FileA, FileB string
	MissingInA   []string // columns of B absent from A
	MissingInB   []string // columns of A absent from B
}

// Identical reports whether both files share the same column set.
func (d Difference) Identical() bool {
	return len(d.MissingInA) == 0 && len(d.MissingInB) == 0
}

// Compare checks the DataSheet header of every pair of workbooks in dir and
// returns only the pairs that differ. progress, when non-nil, is called
// after each comparison with the running count and the total.
func Compare(ctx context.Context, dir string, logger *slog.Logger, progress func(done, total int)) ([]Difference, error) {
	files, tables, err := LoadDir(ctx, dir, DataSheet, logger)
	if err != nil {
		return nil, err
	}

	total := len(files) * (len(files) - 1) / 2
	done := 0
	var diffs []Difference
	for i := 0; i < len(files); i++ {
		for j := i + 1; j < len(files); j++ {
			d := Difference{
				FileA:      files[i],
				FileB:      files[j],
				MissingInA: columnsMissing(tables[i], tables[j]),
				MissingInB: columnsMissing(tables[j], tables[i]),
			}
			if !d.Identical() {
				diffs = append(diffs, d)
			}
			done++
			if progress != nil {
				progress(done, total)
			}
		}
	}
	return diffs, nil
}

// columnsMissing returns the columns of other that t lacks, sorted.
func columnsMissing(t, other *Table) []string {
	have := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		have[c] = true
	}
	var out []string
	for _, c := range other.Columns {
		if c == SourceColumn {
			continue
		}
		if !have[c] {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}
