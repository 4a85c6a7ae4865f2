package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/auditlens/pkg/workbook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), quietLogger())
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
rules_file: rules.yaml
max_upload_mb: 0
tls:
  enabled: true
  cert_file: cert.pem
  key_file: key.pem
mcp: false
`), 0o644))

	cfg, err := loadConfig(path, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "rules.yaml", cfg.RulesFile)
	assert.Equal(t, "auditlens.db", cfg.HistoryDB, "unset keys keep defaults")
	assert.Equal(t, int64(32), cfg.MaxUploadMB)
	assert.True(t, cfg.TLS.Enabled)
	assert.Equal(t, "cert.pem", cfg.TLS.CertFile)
	assert.False(t, cfg.MCP)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: [unclosed"), 0o644))
	_, err := loadConfig(path, quietLogger())
	assert.Error(t, err)
}

func TestParseToolArgs(t *testing.T) {
	got, err := parseToolArgs([]string{"session_id=abc", "completed=false", "company=Acme=Norte"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"session_id": "abc", "completed": false, "company": "Acme=Norte"}, got)

	_, err = parseToolArgs([]string{"novalue"})
	assert.Error(t, err)
}

func TestRulesCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRulesCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "completed_status: finalizada")
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "audits.xlsx")
	require.NoError(t, workbook.WriteFile(src, workbook.SheetData{
		Name:   "Hoja1",
		Header: []string{"Nombre de Técnico/Copiar el del Wfm", "Estado de Auditoria", "Empresa", "Casco de Altura"},
		Rows:   [][]string{{"Juan", "finalizada", "Acme", "No"}},
	}))
	out := filepath.Join(dir, "out.xlsx")

	globals.logLevel = "error"
	cmd := newExportCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{src, "-o", out})
	require.NoError(t, cmd.Execute())

	tbl, err := workbook.LoadFile(out, workbook.Options{Logger: quietLogger()})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Stock_Critico_Herramientas", "Stock_Critico_EPP"}, tbl.Sheets)
}
