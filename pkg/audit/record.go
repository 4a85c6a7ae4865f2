// Package audit turns workbook rows into typed audit records and classifies
// them against the compiled keyword categories.
package audit

import (
	"time"

	"github.com/hazyhaar/auditlens/pkg/workbook"
)

// Field is a logical record field backed by a configured column.
type Field string

const (
	FieldTechnician  Field = "technician"
	FieldAuditor     Field = "auditor"
	FieldCompany     Field = "company"
	FieldRegion      Field = "region"
	FieldStatus      Field = "status"
	FieldDate        Field = "date"
	FieldWorkOrder   Field = "work_order"
	FieldPlate       Field = "plate"
	FieldObservation Field = "observation"
	FieldAuditType   Field = "audit_type"
	FieldMileage     Field = "mileage"
	FieldRUT         Field = "rut"
)

// ParseField validates a grouping or filter field name.
func ParseField(s string) (Field, bool) {
	switch f := Field(s); f {
	case FieldTechnician, FieldAuditor, FieldCompany, FieldRegion, FieldStatus,
		FieldDate, FieldWorkOrder, FieldPlate, FieldObservation, FieldAuditType,
		FieldMileage, FieldRUT:
		return f, true
	}
	return "", false
}

// Record is one audit event.
type Record struct {
	Sheet string
	Index int // original row order across all sheets

	Technician string // normalized
	Auditor    string // normalized
	Company    string // trimmed
	Region     string // trimmed
	Status     string // normalized, never empty
	Date       *time.Time
	WorkOrder  string
	Plate      string
	AuditType  string
	Mileage    *float64
	RUT        string

	Observation     string // as written
	ObservationNorm string

	completed bool
	filled    int
	row       workbook.Row
}

// Completed reports whether the audit reached the completed status.
func (r *Record) Completed() bool { return r.completed }

// Cell returns the raw value of any column of the source row.
func (r *Record) Cell(col string) (string, bool) { return r.row.Get(col) }

// Filled is the number of non-null cells of the source row.
func (r *Record) Filled() int { return r.filled }

// Value returns the display value of a text field.
func (r *Record) Value(f Field) string {
	switch f {
	case FieldTechnician:
		return r.Technician
	case FieldAuditor:
		return r.Auditor
	case FieldCompany:
		return r.Company
	case FieldRegion:
		return r.Region
	case FieldStatus:
		return r.Status
	case FieldWorkOrder:
		return r.WorkOrder
	case FieldPlate:
		return r.Plate
	case FieldObservation:
		return r.Observation
	case FieldAuditType:
		return r.AuditType
	case FieldRUT:
		return r.RUT
	case FieldDate:
		if r.Date != nil {
			return r.Date.Format(DateLayout)
		}
	}
	return ""
}

// DateLayout is the display layout for audit dates.
const DateLayout = "02/01/2006"
