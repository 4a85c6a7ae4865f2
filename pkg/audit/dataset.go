package audit

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hazyhaar/auditlens/pkg/keyword"
	"github.com/hazyhaar/auditlens/pkg/rules"
	"github.com/hazyhaar/auditlens/pkg/workbook"
)

// Dataset is the immutable record set of one loaded workbook.
type Dataset struct {
	Records  []Record
	Columns  []string
	Sheets   []string
	Warnings []*workbook.SheetError
	Rules    *rules.Compiled

	cols map[string]bool
}

// Load reads a workbook and builds its dataset. Sheets without the
// technician column are skipped with a warning.
func Load(r io.Reader, c *rules.Compiled, logger *slog.Logger) (*Dataset, error) {
	t, err := workbook.Load(r, workbook.Options{
		RequiredColumns: []string{c.Rules.Columns.Technician},
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("load workbook: %w", err)
	}
	return FromTable(t, c), nil
}

// LoadFile is Load on a file path.
func LoadFile(path string, c *rules.Compiled, logger *slog.Logger) (*Dataset, error) {
	t, err := workbook.LoadFile(path, workbook.Options{
		RequiredColumns: []string{c.Rules.Columns.Technician},
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return FromTable(t, c), nil
}

// FromTable converts loaded rows into records.
func FromTable(t *workbook.Table, c *rules.Compiled) *Dataset {
	d := &Dataset{
		Columns:  t.Columns,
		Sheets:   t.Sheets,
		Warnings: t.Warnings,
		Rules:    c,
		cols:     make(map[string]bool, len(t.Columns)),
	}
	for _, col := range t.Columns {
		d.cols[col] = true
	}
	d.Records = make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		d.Records = append(d.Records, newRecord(row, c))
	}
	return d
}

func newRecord(row workbook.Row, c *rules.Compiled) Record {
	cols := c.Rules.Columns
	get := func(col string) string {
		v, _ := row.Get(col)
		return v
	}

	rec := Record{
		Sheet:      row.Sheet,
		Index:      row.Index,
		Technician: keyword.NormalizeString(get(cols.Technician)),
		Auditor:    keyword.NormalizeString(get(cols.Auditor)),
		Company:    strings.TrimSpace(get(cols.Company)),
		Region:     strings.TrimSpace(get(cols.Region)),
		Status:     keyword.NormalizeString(get(cols.Status)),
		WorkOrder:  text(get(cols.WorkOrder)),
		Plate:      text(get(cols.Plate)),
		AuditType:  strings.TrimSpace(get(cols.AuditType)),
		RUT:        text(get(cols.RUT)),
		row:        row,
	}
	if rec.Status == "" || rec.Status == "nan" {
		rec.Status = c.MissingStatus
	}
	rec.completed = rec.Status == c.CompletedStatus
	if d, ok := ParseDate(get(cols.Date)); ok {
		rec.Date = &d
	}
	if km, ok := ParseNumber(get(cols.Mileage)); ok {
		rec.Mileage = &km
	}
	rec.Observation = get(cols.Observation)
	rec.ObservationNorm = keyword.NormalizeString(rec.Observation)
	for _, v := range row.Values {
		if v != "" {
			rec.filled++
		}
	}
	return rec
}

// HasColumn reports whether the workbook carried col.
func (d *Dataset) HasColumn(col string) bool { return d.cols[col] }

// Column returns the header configured for a field.
func (d *Dataset) Column(f Field) string {
	cols := d.Rules.Rules.Columns
	switch f {
	case FieldTechnician:
		return cols.Technician
	case FieldAuditor:
		return cols.Auditor
	case FieldCompany:
		return cols.Company
	case FieldRegion:
		return cols.Region
	case FieldStatus:
		return cols.Status
	case FieldDate:
		return cols.Date
	case FieldWorkOrder:
		return cols.WorkOrder
	case FieldPlate:
		return cols.Plate
	case FieldObservation:
		return cols.Observation
	case FieldAuditType:
		return cols.AuditType
	case FieldMileage:
		return cols.Mileage
	case FieldRUT:
		return cols.RUT
	}
	return ""
}

// Require returns a MissingColumnError for the first field whose column is
// absent, or nil.
func (d *Dataset) Require(fields ...Field) error {
	for _, f := range fields {
		col := d.Column(f)
		if col == "" || !d.HasColumn(col) {
			return &MissingColumnError{Field: f, Column: col}
		}
	}
	return nil
}

// Completed returns the completed records, in original order.
func (d *Dataset) Completed() []Record {
	var out []Record
	for _, r := range d.Records {
		if r.Completed() {
			out = append(out, r)
		}
	}
	return out
}

// Subset returns a dataset sharing columns and rules with d but holding
// only recs.
func (d *Dataset) Subset(recs []Record) *Dataset {
	cp := *d
	cp.Records = recs
	return &cp
}
