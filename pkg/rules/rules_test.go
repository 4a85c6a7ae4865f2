package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	r := Default()
	assert.Equal(t, EmptyNeutral, r.EmptyObservation)
	assert.Equal(t, "finalizada", r.CompletedStatus)
	assert.Equal(t, []string{"No", "Falta", "0"}, r.NegativeTokens)
	assert.Len(t, r.Categories, 8)

	tools, ok := r.Catalog("tools")
	require.True(t, ok)
	assert.Len(t, tools.Items, 12)
	assert.Equal(t, SeverityAll, tools.Severity)

	ppe, ok := r.Catalog("ppe")
	require.True(t, ok)
	assert.Len(t, ppe.Items, 16)
	assert.Equal(t, SeverityVital, ppe.Severity)
	assert.ElementsMatch(t, []string{
		"Casco de Altura", "Zapatos de Seguridad Dielectricos", "Arnes Dielectrico", "Estrobo Dielectrico",
	}, ppe.Vital)
}

func TestParse_AppliesDefaults(t *testing.T) {
	r, err := Parse([]byte(`
columns:
  technician: Tecnico
categories:
  - id: late
    keywords: [retraso]
catalogs:
  - id: kit
    items: [Casco]
`))
	require.NoError(t, err)
	assert.Equal(t, EmptyNeutral, r.EmptyObservation)
	assert.Equal(t, SourceObservation, r.Categories[0].Source)
	assert.Equal(t, "late", r.Categories[0].Label)
	assert.Equal(t, SeverityAll, r.Catalogs[0].Severity)
	assert.Equal(t, "Stock_Critico_kit", r.Catalogs[0].Sheet)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad policy", "empty_observation: maybe\ncolumns: {technician: T}\n"},
		{"no technician column", "categories: []\n"},
		{"duplicate category", "columns: {technician: T}\ncategories:\n  - {id: a, keywords: [x]}\n  - {id: a, keywords: [y]}\n"},
		{"no keywords", "columns: {technician: T}\ncategories:\n  - {id: a}\n"},
		{"bad source", "columns: {technician: T}\ncategories:\n  - {id: a, source: mood}\n"},
		{"bad match", "columns: {technician: T}\ncategories:\n  - {id: a, match: fuzzy, keywords: [x]}\n"},
		{"unknown exclusion", "columns: {technician: T}\ncategories:\n  - {id: a, keywords: [x], exclude_categories: [b]}\n"},
		{"self exclusion", "columns: {technician: T}\ncategories:\n  - {id: a, keywords: [x], exclude_categories: [a]}\n"},
		{"chained exclusion", "columns: {technician: T}\ncategories:\n  - {id: a, keywords: [x], exclude_categories: [b]}\n  - {id: b, keywords: [y], exclude_categories: [c]}\n  - {id: c, keywords: [z]}\n"},
		{"vital not in items", "columns: {technician: T}\ncatalogs:\n  - {id: p, severity: vital, items: [A], vital: [B]}\n"},
		{"vital without items", "columns: {technician: T}\ncatalogs:\n  - {id: p, severity: vital, items: [A]}\n"},
		{"empty catalog", "columns: {technician: T}\ncatalogs:\n  - {id: p}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")

	data, err := Default().Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Columns, r.Columns)
	assert.Len(t, r.Categories, 8)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	r, err = LoadOrDefault("")
	require.NoError(t, err)
	assert.Len(t, r.Catalogs, 2)
}
