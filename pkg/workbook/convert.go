// CLAUDE:SUMMARY CSV to XLSX conversion with source-encoding transcoding and round-trip verification.
package workbook

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// ConvertedDir is the folder, inside the source folder, that receives
// converted workbooks.
const ConvertedDir = "archivos_convertidos"

// Conversion is the outcome of converting one CSV file.
type Conversion struct {
	Source    string
	Output    string
	Rows      int
	SameShape bool
	SameData  bool
}

// Verified reports whether the written workbook reads back identically.
func (c Conversion) Verified() bool { return c.SameShape && c.SameData }

// ReadCSV parses a CSV stream. A non-UTF-8 encoding label (e.g. "latin1",
// "windows-1252") is transcoded first.
func ReadCSV(r io.Reader, encoding string) ([][]string, error) {
	if encoding != "" && !isUTF8(encoding) {
		e, err := htmlindex.Get(encoding)
		if err != nil {
			return nil, fmt.Errorf("unsupported encoding %q: %w", encoding, err)
		}
		r = transform.NewReader(r, e.NewDecoder())
	}
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return records, nil
}

// ConvertDir converts every CSV in dir into an XLSX with a single DataSheet,
// written under dir/ConvertedDir, and verifies each by reading it back.
func ConvertDir(dir, encoding string, logger *slog.Logger) ([]Conversion, error) {
	if logger == nil {
		logger = slog.Default()
	}
	files, err := ListFiles(dir, ".csv")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .csv files in %s", dir)
	}
	outDir := filepath.Join(dir, ConvertedDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", outDir, err)
	}

	var out []Conversion
	for _, name := range files {
		c, err := convertOne(filepath.Join(dir, name), outDir, encoding)
		if err != nil {
			return out, fmt.Errorf("%s: %w", name, err)
		}
		if !c.Verified() {
			logger.Warn("conversion differs from source", "file", name, "same_shape", c.SameShape)
		}
		out = append(out, c)
	}
	return out, nil
}

func convertOne(path, outDir, encoding string) (Conversion, error) {
	f, err := os.Open(path)
	if err != nil {
		return Conversion{}, err
	}
	records, err := ReadCSV(f, encoding)
	f.Close()
	if err != nil {
		return Conversion{}, err
	}
	if len(records) == 0 {
		return Conversion{}, fmt.Errorf("empty csv")
	}

	sd := SheetData{Name: DataSheet, Header: records[0], Rows: records[1:]}
	var buf bytes.Buffer
	if err := Write(&buf, sd); err != nil {
		return Conversion{}, err
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	outPath := filepath.Join(outDir, base+".xlsx")
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return Conversion{}, fmt.Errorf("write %s: %w", outPath, err)
	}

	c := Conversion{Source: path, Output: outPath, Rows: len(sd.Rows)}
	c.SameShape, c.SameData = verify(sd, buf.Bytes())
	return c, nil
}

// verify reads the written bytes back and compares them to the source rows.
func verify(src SheetData, written []byte) (sameShape, sameData bool) {
	t, err := Load(bytes.NewReader(written), Options{Sheets: []string{DataSheet}, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		return false, false
	}
	srcRows := nonBlank(src.Rows)
	if len(t.Rows) != len(srcRows) || len(t.Columns) != len(normalizeHeader(src.Header)) {
		return false, false
	}
	header := normalizeHeader(src.Header)
	for i, r := range srcRows {
		for j, h := range header {
			want := ""
			if j < len(r) {
				want = strings.TrimSpace(r[j])
			}
			if t.Rows[i].Values[h] != want {
				return true, false
			}
		}
	}
	return true, true
}

func nonBlank(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		if !isBlank(r) {
			out = append(out, r)
		}
	}
	return out
}

func isUTF8(enc string) bool {
	e := strings.ToLower(strings.ReplaceAll(enc, "-", ""))
	return e == "utf8" || e == ""
}
