package workbook

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDatos(t *testing.T, dir, name string, header []string, rows ...[]string) {
	t.Helper()
	require.NoError(t, WriteFile(filepath.Join(dir, name), SheetData{Name: DataSheet, Header: header, Rows: rows}))
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	writeDatos(t, dir, "b.xlsx", []string{"A", "B"}, []string{"3", "4"})
	writeDatos(t, dir, "a.xlsx", []string{"A"}, []string{"1"}, []string{"2"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	merged, err := Merge(context.Background(), dir, quietLogger())
	require.NoError(t, err)
	require.Len(t, merged.Rows, 3)
	assert.Equal(t, "a.xlsx - Datos", merged.Rows[0].Values[SourceColumn])
	assert.Equal(t, "b.xlsx - Datos", merged.Rows[2].Values[SourceColumn])
	assert.Equal(t, []string{"A", SourceColumn, "B"}, merged.Columns)
}

func TestMerge_EmptyDir(t *testing.T) {
	_, err := Merge(context.Background(), t.TempDir(), quietLogger())
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	dir := t.TempDir()
	writeDatos(t, dir, "1.xlsx", []string{"A", "B"})
	writeDatos(t, dir, "2.xlsx", []string{"A", "B"})
	writeDatos(t, dir, "3.xlsx", []string{"A", "C"})

	var calls, lastTotal int
	diffs, err := Compare(context.Background(), dir, quietLogger(), func(done, total int) {
		calls++
		lastTotal = total
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, lastTotal)

	require.Len(t, diffs, 2)
	assert.Equal(t, Difference{FileA: "1.xlsx", FileB: "3.xlsx", MissingInA: []string{"C"}, MissingInB: []string{"B"}}, diffs[0])
	assert.Equal(t, "2.xlsx", diffs[1].FileA)
}

func TestConvertDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "datos.csv"), []byte("Técnico,Empresa\nJuan,Acme\nAna,Beta\n"), 0o644))

	convs, err := ConvertDir(dir, "", quietLogger())
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.True(t, convs[0].Verified())
	assert.Equal(t, 2, convs[0].Rows)
	_, err = os.Stat(filepath.Join(dir, ConvertedDir, "datos.xlsx"))
	require.NoError(t, err)
}

func TestConvertDir_Latin1(t *testing.T) {
	dir := t.TempDir()
	// "Peña" in latin1.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "latin.csv"), []byte("Nombre\nPe\xf1a\n"), 0o644))

	convs, err := ConvertDir(dir, "latin1", quietLogger())
	require.NoError(t, err)
	require.Len(t, convs, 1)
	tbl, err := LoadFile(convs[0].Output, Options{Logger: quietLogger()})
	require.NoError(t, err)
	assert.Equal(t, "Peña", tbl.Rows[0].Values["Nombre"])
}

func TestConvertDir_NoCSV(t *testing.T) {
	_, err := ConvertDir(t.TempDir(), "", quietLogger())
	assert.Error(t, err)
}
