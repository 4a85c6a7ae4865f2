package render

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/hazyhaar/auditlens/pkg/report"
	"github.com/hazyhaar/auditlens/pkg/session"
	"github.com/hazyhaar/auditlens/pkg/sqlview"
	"github.com/hazyhaar/auditlens/pkg/stock"
	"github.com/hazyhaar/auditlens/pkg/workbook"
)

// orNone labels the catch-all group.
func orNone(s string) string {
	if s == "" {
		return "(sin dato)"
	}
	return s
}

// KPIs writes a KPI table followed by the global percentages.
func KPIs(w io.Writer, t *report.KPITable) {
	for _, mc := range t.Missing {
		Issue(w, mc.Error())
	}
	headers := []string{string(t.Field)}
	for _, id := range t.Categories {
		headers = append(headers, t.Labels[id])
	}
	headers = append(headers, "Total Casos")
	rows := make([][]string, 0, len(t.Groups))
	for _, g := range t.Groups {
		row := []string{orNone(g.Label)}
		for _, id := range t.Categories {
			if !t.Available(id) {
				row = append(row, "n/d")
				continue
			}
			row = append(row, strconv.Itoa(g.Counts[id]))
		}
		row = append(row, strconv.Itoa(g.Cases))
		rows = append(rows, row)
	}
	Table(w, headers, rows)

	bars := make([]Bar, 0, len(t.Categories))
	for _, id := range t.Categories {
		if t.Available(id) {
			bars = append(bars, Bar{Label: t.Labels[id], Value: t.Percent[id]})
		}
	}
	Note(w, fmt.Sprintf("%% sobre %d auditorías", t.Records))
	Bars(w, bars, 40)
}

// Counts writes a label/count table with a bar chart.
func Counts(w io.Writer, label string, counts []report.Count) {
	rows := make([][]string, len(counts))
	bars := make([]Bar, len(counts))
	for i, c := range counts {
		rows[i] = []string{c.Label, strconv.Itoa(c.Count)}
		bars[i] = Bar{Label: c.Label, Value: float64(c.Count)}
	}
	Table(w, []string{label, "Auditorías Finalizadas"}, rows)
	Bars(w, bars, 40)
}

// StockEntries writes a critical-stock table.
func StockEntries(w io.Writer, res *stock.Result, entries []stock.Entry) {
	if len(res.Absent) > 0 {
		Issue(w, "columnas ausentes: "+strings.Join(res.Absent, ", "))
	}
	rows := make([][]string, len(entries))
	for i, e := range entries {
		tech := e.Technician
		if icon := e.Severity.Icon(); icon != "" {
			tech = icon + " " + tech
		}
		rows[i] = []string{tech, e.Company, e.Date, strconv.Itoa(e.MissingCount), strings.Join(e.Missing, ", ")}
	}
	Table(w, []string{"Técnico", "Empresa", "Fecha", "Cantidad Faltantes", "Faltantes"}, rows)

	var bars []Bar
	for _, c := range res.ByCompany() {
		bars = append(bars, Bar{Label: orNone(c.Company), Value: float64(c.Count)})
	}
	Bars(w, bars, 40)
}

// Report writes every section of a report.
func Report(w io.Writer, rep *report.Report) {
	Note(w, fmt.Sprintf("%d registros, %d finalizados, hojas: %s",
		rep.Records, rep.Completed, strings.Join(rep.Sheets, ", ")))
	for _, warn := range rep.Warnings {
		Issue(w, warn)
	}

	Title(w, "KPIs por Empresa")
	if rep.KPIs.Empty {
		Note(w, "ℹ "+rep.KPIs.Issue)
	} else if rep.KPIs.Data != nil {
		KPIs(w, rep.KPIs.Data)
	}

	Title(w, "Ranking de Técnicos")
	if section(w, rep.Technicians) {
		rows := make([][]string, len(rep.Technicians.Data))
		for i, tr := range rep.Technicians.Data {
			rows[i] = []string{tr.Technician, tr.Company, strconv.Itoa(tr.Count), strings.Join(tr.Dates, ", ")}
		}
		Table(w, []string{"Técnico", "Empresa", "Cantidad de Auditorías", "Fechas"}, rows)
	}

	Title(w, "Auditorías por Empresa")
	if section(w, rep.Companies) {
		Counts(w, "Empresa", rep.Companies.Data)
	}

	Title(w, "Ranking de Auditores")
	if section(w, rep.Auditors) {
		Counts(w, "Auditor", rep.Auditors.Data)
	}

	Title(w, "Auditorías Diarias por Auditor")
	if section(w, rep.AuditorDaily) {
		rows := make([][]string, len(rep.AuditorDaily.Data))
		for i, d := range rep.AuditorDaily.Data {
			rows[i] = []string{d.Date, d.Auditor, strconv.Itoa(d.Orders)}
		}
		Table(w, []string{"Fecha", "Auditor", "Órdenes"}, rows)
	}

	Title(w, "Distribución de Auditores por Empresa")
	if section(w, rep.Distribution) {
		rows := make([][]string, len(rep.Distribution.Data))
		for i, d := range rep.Distribution.Data {
			rows[i] = []string{d.Auditor, orNone(d.Company), strconv.Itoa(d.Count), strings.Join(d.Dates, ", ")}
		}
		Table(w, []string{"Auditor", "Empresa", "Cantidad", "Fechas"}, rows)
	}

	Title(w, "Completitud por Auditor")
	if section(w, rep.Completeness) {
		rows := make([][]string, len(rep.Completeness.Data))
		for i, c := range rep.Completeness.Data {
			rows[i] = []string{c.Auditor, strings.Replace(fmt.Sprintf("%.1f%%", c.Percent), ".", ",", 1)}
		}
		Table(w, []string{"Auditor", "% Completitud"}, rows)
	}

	Title(w, "Auditorías por Región")
	if section(w, rep.Regions) {
		Counts(w, "Región", rep.Regions.Data)
	}

	ids := make([]string, 0, len(rep.Stock))
	for id := range rep.Stock {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		s := rep.Stock[id]
		Title(w, "Stock Crítico "+id)
		if section(w, s) {
			StockEntries(w, s.Data, s.Data.Entries)
		}
	}
}

// section prints the issue of s, if any, and reports whether data follows.
func section[T any](w io.Writer, s report.Section[T]) bool {
	if s.Issue == "" {
		return true
	}
	if s.Empty {
		Note(w, "ℹ "+s.Issue)
	} else {
		Issue(w, s.Issue)
	}
	return false
}

// Query writes a SQL result.
func Query(w io.Writer, res *sqlview.Result) {
	Table(w, res.Columns, res.Rows)
	Note(w, fmt.Sprintf("%d filas", len(res.Rows)))
}

// Differences writes folder comparison results.
func Differences(w io.Writer, diffs []workbook.Difference) {
	if len(diffs) == 0 {
		Note(w, "todas las planillas tienen las mismas columnas")
		return
	}
	rows := make([][]string, len(diffs))
	for i, d := range diffs {
		rows[i] = []string{d.FileA, d.FileB, strings.Join(d.MissingInA, ", "), strings.Join(d.MissingInB, ", ")}
	}
	Table(w, []string{"Archivo A", "Archivo B", "Faltan en A", "Faltan en B"}, rows)
}

// Conversions writes CSV conversion outcomes.
func Conversions(w io.Writer, convs []workbook.Conversion) {
	rows := make([][]string, len(convs))
	for i, c := range convs {
		status := "✅"
		if !c.Verified() {
			status = "❌"
		}
		rows[i] = []string{c.Source, c.Output, strconv.Itoa(c.Rows), status}
	}
	Table(w, []string{"Origen", "Destino", "Filas", "Verificado"}, rows)
}

// Runs writes the analysis history.
func Runs(w io.Writer, runs []session.Run) {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			r.ID, r.FileName, strconv.FormatInt(r.Size, 10), r.Sheets,
			strconv.Itoa(r.Records), strconv.Itoa(r.Completed), strconv.Itoa(r.Warnings),
		}
	}
	Table(w, []string{"Run", "Archivo", "Bytes", "Hojas", "Registros", "Finalizados", "Avisos"}, rows)
}
