package report

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/hazyhaar/auditlens/pkg/audit"
	"github.com/hazyhaar/auditlens/pkg/rules"
	"github.com/hazyhaar/auditlens/pkg/workbook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	colTech    = "Nombre de Técnico/Copiar el del Wfm"
	colAuditor = "Información del Auditor"
	colCompany = "Empresa"
	colRegion  = "Region"
	colStatus  = "Estado de Auditoria"
	colDate    = "Fecha"
	colOrder   = "Número de Orden de Trabajo/ ID externo"
	colPlate   = "Patente Camioneta"
	colObs     = "Observaciones /  Separe con comas los temas"
	colType    = "Tipo de Auditoria"
)

var allColumns = []string{colTech, colAuditor, colCompany, colRegion, colStatus, colDate, colOrder, colPlate, colObs, colType}

func dataset(columns []string, rows ...map[string]string) *audit.Dataset {
	tbl := &workbook.Table{Columns: columns, Sheets: []string{"Hoja1"}}
	for i, v := range rows {
		tbl.Rows = append(tbl.Rows, workbook.Row{Sheet: "Hoja1", Index: i, Values: v})
	}
	return audit.FromTable(tbl, rules.MustCompileDefault())
}

func sample() []map[string]string {
	return []map[string]string{
		{colTech: "Juan", colAuditor: "Pedro", colCompany: "Acme", colRegion: "Norte", colStatus: "finalizada", colDate: "2023-01-10", colOrder: "100", colPlate: "AB-1234", colObs: "falta herramienta", colType: "Terreno"},
		{colTech: "Juan", colAuditor: "Pedro", colCompany: "Acme", colRegion: "Norte", colStatus: "finalizada", colDate: "2023-01-10", colOrder: "100", colPlate: "AB-1234", colObs: "sin observaciones", colType: "Terreno"},
		{colTech: "Ana", colAuditor: "Pedro", colCompany: "Beta", colRegion: "Sur", colStatus: "finalizada", colDate: "2023-01-10", colOrder: "101", colPlate: "CD-9", colObs: "camioneta desordenada, no utiliza casco", colType: "Remota"},
		{colTech: "Luis", colAuditor: "María", colCompany: "Beta", colRegion: "Sur", colStatus: "pendiente", colDate: "2023-01-11", colOrder: "102", colObs: "retraso"},
		{colTech: "Eva", colAuditor: "María", colCompany: "", colRegion: "", colStatus: "finalizada", colDate: "2023-02-01", colOrder: "103", colObs: "S/O"},
	}
}

func classify(d *audit.Dataset) []audit.Classification {
	return audit.NewClassifier(d.Rules).ClassifyAll(d.Records)
}

func TestGroupBy_Company(t *testing.T) {
	d := dataset(allColumns, sample()...)
	tbl := GroupBy(d, classify(d), audit.FieldCompany)

	require.Empty(t, tbl.Missing)
	require.Empty(t, tbl.Unavailable)
	assert.Equal(t, 5, tbl.Records)
	require.Len(t, tbl.Groups, 3)

	// Beta: vehicle_order, malpractice, ppe_incomplete (Ana) + not_completed (Luis) = 4
	// Acme: tools_missing + compliant = 2; "": compliant = 1
	assert.Equal(t, "Beta", tbl.Groups[0].Label)
	assert.Equal(t, 4, tbl.Groups[0].Cases)
	assert.Equal(t, 2, tbl.Groups[0].Records)
	assert.Equal(t, "Acme", tbl.Groups[1].Label)
	assert.Equal(t, "", tbl.Groups[2].Label)

	assert.Equal(t, 2, tbl.Totals["compliant"])
	assert.InDelta(t, 40.0, tbl.Percent["compliant"], 1e-9)
	assert.Equal(t, 0, tbl.Totals["agenda"], "agenda only counts completed audits")
}

func TestGroupBy_GroupSumsEqualTotals(t *testing.T) {
	d := dataset(allColumns, sample()...)
	results := classify(d)
	for _, f := range []audit.Field{audit.FieldCompany, audit.FieldTechnician, audit.FieldAuditor, audit.FieldRegion} {
		tbl := GroupBy(d, results, f)
		records := 0
		for _, id := range tbl.Categories {
			sum := 0
			for _, g := range tbl.Groups {
				sum += g.Counts[id]
			}
			assert.Equal(t, tbl.Totals[id], sum, "%s/%s", f, id)
		}
		for _, g := range tbl.Groups {
			records += g.Records
		}
		assert.Equal(t, tbl.Records, records, f)
	}
}

func TestGroupBy_OrderIndependent(t *testing.T) {
	rows := sample()
	d := dataset(allColumns, rows...)
	want := GroupBy(d, classify(d), audit.FieldTechnician)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5; i++ {
		shuffled := append([]map[string]string(nil), rows...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		d2 := dataset(allColumns, shuffled...)
		got := GroupBy(d2, classify(d2), audit.FieldTechnician)
		assert.Equal(t, want.Groups, got.Groups)
		assert.Equal(t, want.Totals, got.Totals)
	}
}

func TestGroupBy_MissingColumnSingleBucket(t *testing.T) {
	cols := []string{colTech, colStatus, colObs}
	d := dataset(cols,
		map[string]string{colTech: "a", colStatus: "finalizada", colObs: "herramienta"},
		map[string]string{colTech: "b", colStatus: "finalizada", colObs: "so"},
	)
	tbl := GroupBy(d, classify(d), audit.FieldRegion)
	require.Len(t, tbl.Missing, 1)
	assert.Equal(t, "Region", tbl.Missing[0].Column)
	require.Len(t, tbl.Groups, 1)
	assert.Equal(t, "", tbl.Groups[0].Label)
	assert.Equal(t, 2, tbl.Groups[0].Records)
}

func TestCounts(t *testing.T) {
	d := dataset(allColumns, sample()...)

	companies, err := CompanyCounts(d)
	require.NoError(t, err)
	assert.Equal(t, []Count{{"Acme", 2}, {"Beta", 1}}, companies)

	regions, err := RegionCounts(d)
	require.NoError(t, err)
	assert.Equal(t, []Count{{"Norte", 2}, {"Sur", 1}}, regions)

	auditors, err := AuditorRanking(d)
	require.NoError(t, err)
	assert.Equal(t, []Count{{"pedro", 3}, {"maria", 1}}, auditors)

	_, err = RegionCounts(dataset([]string{colTech, colStatus}, map[string]string{colTech: "a", colStatus: "finalizada"}))
	var mc *audit.MissingColumnError
	assert.True(t, errors.As(err, &mc))
}

func TestTechnicianRanking(t *testing.T) {
	d := dataset(allColumns, sample()...)
	got, err := TechnicianRanking(d, DateRange{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, TechnicianRank{Technician: "juan", Company: "Acme", Count: 2, Dates: []string{"10/01/2023", "10/01/2023"}}, got[0])

	from := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	got, err = TechnicianRanking(d, DateRange{From: &from})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "eva", got[0].Technician)

	to := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = TechnicianRanking(d, DateRange{To: &to})
	assert.ErrorIs(t, err, audit.ErrEmptyResult)
}

func TestFormatDates_Chronological(t *testing.T) {
	got := formatDates([]time.Time{
		time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, []string{"15/01/2023", "01/02/2023"}, got)
}

func TestAuditorDaily_DistinctOrders(t *testing.T) {
	d := dataset(allColumns, sample()...)
	got, err := AuditorDaily(d, nil)
	require.NoError(t, err)
	assert.Equal(t, []AuditorDay{
		{Date: "10/01/2023", Auditor: "pedro", Orders: 2},
		{Date: "11/01/2023", Auditor: "maria", Orders: 1},
		{Date: "01/02/2023", Auditor: "maria", Orders: 1},
	}, got)

	day := time.Date(2023, 1, 11, 15, 0, 0, 0, time.UTC)
	got, err = AuditorDaily(d, &day)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestAuditorDistributionAndCompleteness(t *testing.T) {
	d := dataset(allColumns, sample()...)
	dist, err := AuditorDistribution(d)
	require.NoError(t, err)
	require.Len(t, dist, 3)
	assert.Equal(t, Distribution{Auditor: "pedro", Company: "Acme", Count: 2, Dates: []string{"10/01/2023", "10/01/2023"}}, dist[0])

	comp, err := AuditorCompleteness(d)
	require.NoError(t, err)
	require.Len(t, comp, 2)
	assert.Equal(t, "pedro", comp[0].Auditor)
	assert.InDelta(t, 100.0, comp[0].Percent, 1e-9)
}

func TestFilter(t *testing.T) {
	d := dataset(allColumns, sample()...)
	tests := []struct {
		name string
		f    Filter
		want int
	}{
		{"zero", Filter{}, 5},
		{"technician accents and case", Filter{Technician: " JUAN "}, 2},
		{"company", Filter{Company: "Beta"}, 2},
		{"type", Filter{AuditType: "Remota"}, 1},
		{"plate substring", Filter{Plate: "ab-"}, 2},
		{"order substring", Filter{WorkOrder: "10"}, 5},
		{"combined", Filter{Company: "Acme", WorkOrder: "101"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.f.Apply(d.Records), tt.want)
		})
	}
}

func TestBuild_SectionsDegradeIndependently(t *testing.T) {
	// No region, no auditor: those sections carry issues, the rest work.
	cols := []string{colTech, colCompany, colStatus, colDate, colObs}
	d := dataset(cols,
		map[string]string{colTech: "a", colCompany: "Acme", colStatus: "finalizada", colDate: "2023-01-01", colObs: "herramienta"},
	)
	rep := Build(d, audit.NewClassifier(d.Rules), Options{})

	assert.Equal(t, 1, rep.Records)
	assert.Equal(t, 1, rep.Completed)
	assert.Empty(t, rep.Companies.Issue)
	assert.Contains(t, rep.Regions.Issue, "Region")
	assert.NotEmpty(t, rep.Auditors.Issue)
	assert.False(t, rep.Regions.Empty)
	assert.Empty(t, rep.Technicians.Issue)
	require.Contains(t, rep.Stock, "tools")
	assert.Empty(t, rep.Stock["tools"].Issue)
	assert.Len(t, rep.Stock["tools"].Data.Entries, 1)
	assert.Empty(t, rep.KPIs.Issue)
}

func TestGroupBy_MissingStatusAndObservation(t *testing.T) {
	d := dataset([]string{colTech, colCompany},
		map[string]string{colTech: "a", colCompany: "Acme"},
		map[string]string{colTech: "b", colCompany: "Beta"},
	)
	tbl := GroupBy(d, classify(d), audit.FieldCompany)

	require.Len(t, tbl.Missing, 2)
	assert.Equal(t, audit.FieldStatus, tbl.Missing[0].Field)
	assert.Equal(t, audit.FieldObservation, tbl.Missing[1].Field)
	assert.ElementsMatch(t, tbl.Categories, tbl.Unavailable)
	assert.NotContains(t, tbl.Totals, "not_completed")
	assert.NotContains(t, tbl.Percent, "not_completed")
	assert.False(t, tbl.Available("tools_missing"))
	require.Len(t, tbl.Groups, 2)
	for _, g := range tbl.Groups {
		assert.Zero(t, g.Cases)
		assert.Empty(t, g.Counts)
	}
}

func TestGroupBy_MissingObservationKeepsStatus(t *testing.T) {
	d := dataset([]string{colTech, colCompany, colStatus},
		map[string]string{colTech: "a", colCompany: "Acme", colStatus: "finalizada"},
		map[string]string{colTech: "b", colCompany: "Acme", colStatus: "pendiente"},
	)
	tbl := GroupBy(d, classify(d), audit.FieldCompany)

	require.Len(t, tbl.Missing, 1)
	assert.Equal(t, audit.FieldObservation, tbl.Missing[0].Field)
	assert.True(t, tbl.Available("not_completed"))
	assert.Equal(t, 1, tbl.Totals["not_completed"])
	assert.InDelta(t, 50.0, tbl.Percent["not_completed"], 1e-9)
	assert.False(t, tbl.Available("compliant"))
}

func TestBuild_KPIsReportMissingColumns(t *testing.T) {
	d := dataset([]string{colTech, colCompany},
		map[string]string{colTech: "a", colCompany: "Acme"},
	)
	rep := Build(d, audit.NewClassifier(d.Rules), Options{})

	require.NotNil(t, rep.KPIs.Data)
	assert.Contains(t, rep.KPIs.Issue, "Estado de Auditoria")
	assert.Contains(t, rep.KPIs.Issue, "Observaciones")
	assert.False(t, rep.KPIs.Empty)
	assert.NotContains(t, rep.KPIs.Data.Totals, "not_completed")
}

func TestBuild_FilterWithNoMatch(t *testing.T) {
	d := dataset(allColumns, sample()...)
	rep := Build(d, audit.NewClassifier(d.Rules), Options{Filter: Filter{Company: "Nadie"}})
	assert.Equal(t, 0, rep.Records)
	assert.True(t, rep.KPIs.Empty)
	assert.True(t, rep.Companies.Empty)
	assert.True(t, rep.Technicians.Empty)
}
