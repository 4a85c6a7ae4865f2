package stock

import (
	"strings"

	"github.com/hazyhaar/auditlens/pkg/workbook"
)

var exportHeader = []string{"Técnico", "Empresa", "Fecha", "Faltantes"}

// Sheet renders entries as an export sheet named after the catalog. The
// technician cell carries the severity icon.
func (r *Result) Sheet(entries []Entry) workbook.SheetData {
	sd := workbook.SheetData{Name: r.Catalog.Sheet, Header: exportHeader}
	for _, e := range entries {
		tech := e.Technician
		if icon := e.Severity.Icon(); icon != "" {
			tech = icon + " " + tech
		}
		sd.Rows = append(sd.Rows, []string{tech, e.Company, e.Date, strings.Join(e.Missing, ", ")})
	}
	return sd
}
