package stock

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hazyhaar/auditlens/pkg/audit"
	"github.com/hazyhaar/auditlens/pkg/rules"
	"github.com/hazyhaar/auditlens/pkg/workbook"
)

const (
	colTech    = "Nombre de Técnico/Copiar el del Wfm"
	colStatus  = "Estado de Auditoria"
	colDate    = "Fecha"
	colCompany = "Empresa"
)

func dataset(t *testing.T, columns []string, rows ...map[string]string) *audit.Dataset {
	t.Helper()
	tbl := &workbook.Table{Columns: columns, Sheets: []string{"Hoja1"}}
	for i, v := range rows {
		tbl.Rows = append(tbl.Rows, workbook.Row{Sheet: "Hoja1", Index: i, Values: v})
	}
	return audit.FromTable(tbl, rules.MustCompileDefault())
}

func ppeCatalog(t *testing.T) rules.Catalog {
	t.Helper()
	c, ok := rules.Default().Catalog("ppe")
	if !ok {
		t.Fatal("ppe catalog not configured")
	}
	return c
}

// allPresent fills every catalog item with "Si".
func allPresent(c rules.Catalog, extra map[string]string) map[string]string {
	m := make(map[string]string, len(c.Items)+len(extra))
	for _, it := range c.Items {
		m[it] = "Si"
	}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

func TestMissingPredicate(t *testing.T) {
	p := NewMissingPredicate([]string{"No", "Falta", "0"})
	tests := []struct {
		value   string
		present bool
		want    bool
	}{
		{"", false, true},
		{"Si", true, false},
		{"No", true, true},
		{" no ", true, true},
		{"FALTA", true, true},
		{"0", true, true},
		{"Nop", true, false},
		{"1", true, false},
	}
	for _, tt := range tests {
		if got := p.Missing(tt.value, tt.present); got != tt.want {
			t.Errorf("Missing(%q, %v) = %v, want %v", tt.value, tt.present, got, tt.want)
		}
	}
}

func TestSelect_LatestCompletedAudit(t *testing.T) {
	cat := ppeCatalog(t)
	cols := append([]string{colTech, colStatus, colDate, colCompany}, cat.Items...)

	row := func(date, status string) map[string]string {
		return allPresent(cat, map[string]string{
			colTech: "Juan Pérez", colStatus: status, colDate: date, colCompany: "Acme",
			"Casco de Altura": "",
		})
	}
	d := dataset(t, cols,
		row("2023-01-01", "finalizada"),
		row("2023-02-01", "finalizada"),
		row("2023-03-01", "pendiente"),
	)

	res, err := Select(d, cat)
	if err != nil {
		t.Fatal(err)
	}
	want := []Entry{{
		Technician:   "juan perez",
		Company:      "Acme",
		Date:         "01/02/2023",
		Missing:      []string{"Casco de Altura"},
		MissingCount: 1,
		VitalMissing: 1,
		Severity:     LevelMedium,
	}}
	if diff := cmp.Diff(want, res.Entries); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestSelect_VitalSeverityIgnoresNonVitalItems(t *testing.T) {
	cat := ppeCatalog(t)
	cols := append([]string{colTech, colStatus, colDate, colCompany}, cat.Items...)
	d := dataset(t, cols,
		// three non-vital items missing, no vital ones
		allPresent(cat, map[string]string{colTech: "a", colStatus: "finalizada", colDate: "2023-01-01",
			"Barbiquejo": "No", "Bloqueador Solar": "Falta", "Refugio de PVC": "0"}),
		// two vital items missing
		allPresent(cat, map[string]string{colTech: "b", colStatus: "finalizada", colDate: "2023-01-01",
			"Arnes Dielectrico": "No", "Estrobo Dielectrico": ""}),
	)
	res, err := Select(d, cat)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(res.Entries))
	}
	// a has more missing items, so it sorts first.
	a, b := res.Entries[0], res.Entries[1]
	if a.Technician != "a" || a.MissingCount != 3 || a.VitalMissing != 0 || a.Severity != LevelNone {
		t.Errorf("a = %+v", a)
	}
	if b.Technician != "b" || b.MissingCount != 2 || b.VitalMissing != 2 || b.Severity != LevelHigh {
		t.Errorf("b = %+v", b)
	}
}

func TestSelect_AllSeverityAndAbsentColumns(t *testing.T) {
	cat, _ := rules.Default().Catalog("tools")
	// Only the first two tool columns exist.
	cols := []string{colTech, colStatus, colDate, colCompany, cat.Items[0], cat.Items[1]}
	d := dataset(t, cols,
		map[string]string{colTech: "x", colStatus: "finalizada", colDate: "2023-05-05", cat.Items[0]: "Si", cat.Items[1]: "Si"},
	)
	res, err := Select(d, cat)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Absent) != len(cat.Items)-2 {
		t.Errorf("absent = %d, want %d", len(res.Absent), len(cat.Items)-2)
	}
	if len(res.Entries) != 1 || res.Entries[0].Severity != LevelHigh {
		t.Fatalf("entries = %+v", res.Entries)
	}
	if res.Entries[0].MissingCount != len(cat.Items)-2 {
		t.Errorf("missing = %d", res.Entries[0].MissingCount)
	}
}

func TestSelect_NoEligibleRecords(t *testing.T) {
	cat := ppeCatalog(t)
	d := dataset(t, []string{colTech, colStatus, colDate},
		map[string]string{colTech: "a", colStatus: "pendiente", colDate: "2023-01-01"},
		map[string]string{colTech: "b", colStatus: "finalizada"},
	)
	if _, err := Select(d, cat); err == nil {
		t.Fatal("expected empty result")
	}
}

func TestLatest_TieKeepsLastRow(t *testing.T) {
	d := dataset(t, []string{colTech, colStatus, colDate, colCompany},
		map[string]string{colTech: "a", colStatus: "finalizada", colDate: "2023-01-01", colCompany: "first"},
		map[string]string{colTech: "a", colStatus: "finalizada", colDate: "2023-01-01", colCompany: "second"},
		map[string]string{colTech: "a", colStatus: "finalizada", colDate: "2022-12-31", colCompany: "older"},
	)
	got := Latest(d.Records)
	if len(got) != 1 || got[0].Company != "second" {
		t.Fatalf("Latest = %+v", got)
	}
}

func TestResult_CompanyViews(t *testing.T) {
	res := &Result{
		Catalog: rules.Catalog{Sheet: "Stock_Critico_EPP"},
		Entries: []Entry{
			{Technician: "a", Company: "Beta", Date: "01/01/2023", Missing: []string{"x", "y"}, MissingCount: 2, Severity: LevelHigh},
			{Technician: "b", Company: "Acme", Date: "02/01/2023", Missing: []string{"x"}, MissingCount: 1, Severity: LevelNone},
			{Technician: "c", Company: "Beta", Date: "03/01/2023", Missing: []string{"y"}, MissingCount: 1, Severity: LevelMedium},
		},
	}
	if diff := cmp.Diff([]CompanyCount{{"Beta", 2}, {"Acme", 1}}, res.ByCompany()); diff != "" {
		t.Errorf("ByCompany (-want +got):\n%s", diff)
	}
	if got := res.FilterCompany("Acme"); len(got) != 1 || got[0].Technician != "b" {
		t.Errorf("FilterCompany = %+v", got)
	}
	if got := res.FilterCompany(""); len(got) != 3 {
		t.Errorf("FilterCompany(\"\") = %d entries", len(got))
	}
	if diff := cmp.Diff([]string{"Acme", "Beta"}, res.Companies()); diff != "" {
		t.Errorf("Companies (-want +got):\n%s", diff)
	}

	sd := res.Sheet(res.Entries)
	want := [][]string{
		{"🔴 a", "Beta", "01/01/2023", "x, y"},
		{"b", "Acme", "02/01/2023", "x"},
		{"🟡 c", "Beta", "03/01/2023", "y"},
	}
	if sd.Name != "Stock_Critico_EPP" {
		t.Errorf("sheet name = %q", sd.Name)
	}
	if diff := cmp.Diff(want, sd.Rows); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}
