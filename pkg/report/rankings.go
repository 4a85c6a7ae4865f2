package report

import (
	"sort"
	"strings"
	"time"

	"github.com/hazyhaar/auditlens/pkg/audit"
	"github.com/hazyhaar/auditlens/pkg/keyword"
)

// Count is a label with its number of completed audits.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TechnicianRank is the number of completed audits of a technician within
// one company, with the audit dates.
type TechnicianRank struct {
	Technician string   `json:"technician"`
	Company    string   `json:"company"`
	Count      int      `json:"count"`
	Dates      []string `json:"dates"`
}

// AuditorDay is the number of distinct work orders an auditor audited on
// one day.
type AuditorDay struct {
	Date    string `json:"date"`
	Auditor string `json:"auditor"`
	Orders  int    `json:"orders"`
}

// Distribution is the number of completed audits an auditor made in one
// company.
type Distribution struct {
	Auditor string   `json:"auditor"`
	Company string   `json:"company"`
	Count   int      `json:"count"`
	Dates   []string `json:"dates"`
}

// Completeness is the mean share of filled cells in an auditor's completed
// audits, in percent.
type Completeness struct {
	Auditor string  `json:"auditor"`
	Percent float64 `json:"percent"`
}

// DateRange is an inclusive day range. A nil bound is open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

func (r DateRange) contains(t time.Time) bool {
	day := truncateDay(t)
	if r.From != nil && day.Before(truncateDay(*r.From)) {
		return false
	}
	if r.To != nil && day.After(truncateDay(*r.To)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// formatDates sorts chronologically and renders day-first.
func formatDates(ts []time.Time) []string {
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Format(audit.DateLayout)
	}
	return out
}

// CompanyCounts counts completed audits per company. Empty labels are
// dropped.
func CompanyCounts(d *audit.Dataset) ([]Count, error) {
	return countCompleted(d, audit.FieldCompany)
}

// RegionCounts counts completed audits per region.
func RegionCounts(d *audit.Dataset) ([]Count, error) {
	return countCompleted(d, audit.FieldRegion)
}

// AuditorRanking counts completed audits per auditor.
func AuditorRanking(d *audit.Dataset) ([]Count, error) {
	return countCompleted(d, audit.FieldAuditor)
}

func countCompleted(d *audit.Dataset, field audit.Field) ([]Count, error) {
	if err := d.Require(field, audit.FieldStatus); err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, r := range d.Records {
		if !r.Completed() {
			continue
		}
		if label := r.Value(field); label != "" {
			counts[label]++
		}
	}
	if len(counts) == 0 {
		return nil, audit.ErrEmptyResult
	}
	out := make([]Count, 0, len(counts))
	for label, n := range counts {
		out = append(out, Count{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out, nil
}

// TechnicianRanking counts completed, dated audits per technician and
// company within rng.
func TechnicianRanking(d *audit.Dataset, rng DateRange) ([]TechnicianRank, error) {
	if err := d.Require(audit.FieldTechnician, audit.FieldStatus, audit.FieldDate); err != nil {
		return nil, err
	}
	type key struct{ tech, company string }
	byKey := make(map[key]*TechnicianRank)
	dates := make(map[key][]time.Time)
	for _, r := range d.Records {
		if !r.Completed() || r.Date == nil || !rng.contains(*r.Date) {
			continue
		}
		k := key{r.Technician, r.Company}
		tr, ok := byKey[k]
		if !ok {
			tr = &TechnicianRank{Technician: r.Technician, Company: r.Company}
			byKey[k] = tr
		}
		tr.Count++
		dates[k] = append(dates[k], *r.Date)
	}
	if len(byKey) == 0 {
		return nil, audit.ErrEmptyResult
	}
	out := make([]TechnicianRank, 0, len(byKey))
	for k, tr := range byKey {
		tr.Dates = formatDates(dates[k])
		out = append(out, *tr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Technician != out[j].Technician {
			return out[i].Technician < out[j].Technician
		}
		return out[i].Company < out[j].Company
	})
	return out, nil
}

// AuditorDaily counts distinct work orders per day and auditor, over every
// record that has a date, an auditor and a work order. A non-nil day keeps
// only that day.
func AuditorDaily(d *audit.Dataset, day *time.Time) ([]AuditorDay, error) {
	if err := d.Require(audit.FieldAuditor, audit.FieldDate, audit.FieldWorkOrder); err != nil {
		return nil, err
	}
	type key struct {
		day     time.Time
		auditor string
	}
	orders := make(map[key]map[string]bool)
	for _, r := range d.Records {
		if r.Date == nil || r.Auditor == "" || r.WorkOrder == "" {
			continue
		}
		k := key{truncateDay(*r.Date), r.Auditor}
		if day != nil && !k.day.Equal(truncateDay(*day)) {
			continue
		}
		if orders[k] == nil {
			orders[k] = make(map[string]bool)
		}
		orders[k][r.WorkOrder] = true
	}
	if len(orders) == 0 {
		return nil, audit.ErrEmptyResult
	}
	keys := make([]key, 0, len(orders))
	for k := range orders {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].day.Equal(keys[j].day) {
			return keys[i].day.Before(keys[j].day)
		}
		return keys[i].auditor < keys[j].auditor
	})
	out := make([]AuditorDay, len(keys))
	for i, k := range keys {
		out[i] = AuditorDay{Date: k.day.Format(audit.DateLayout), Auditor: k.auditor, Orders: len(orders[k])}
	}
	return out, nil
}

// AuditorDistribution counts completed audits per auditor and company.
func AuditorDistribution(d *audit.Dataset) ([]Distribution, error) {
	if err := d.Require(audit.FieldAuditor, audit.FieldCompany, audit.FieldStatus); err != nil {
		return nil, err
	}
	type key struct{ auditor, company string }
	byKey := make(map[key]*Distribution)
	dates := make(map[key][]time.Time)
	for _, r := range d.Records {
		if !r.Completed() || r.Auditor == "" {
			continue
		}
		k := key{r.Auditor, r.Company}
		dist, ok := byKey[k]
		if !ok {
			dist = &Distribution{Auditor: r.Auditor, Company: r.Company}
			byKey[k] = dist
		}
		dist.Count++
		if r.Date != nil {
			dates[k] = append(dates[k], *r.Date)
		}
	}
	if len(byKey) == 0 {
		return nil, audit.ErrEmptyResult
	}
	out := make([]Distribution, 0, len(byKey))
	for k, dist := range byKey {
		dist.Dates = formatDates(dates[k])
		out = append(out, *dist)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Auditor != out[j].Auditor {
			return out[i].Auditor < out[j].Auditor
		}
		return out[i].Company < out[j].Company
	})
	return out, nil
}

// AuditorCompleteness averages, per auditor, the percentage of non-null
// cells in their completed audits.
func AuditorCompleteness(d *audit.Dataset) ([]Completeness, error) {
	if err := d.Require(audit.FieldAuditor, audit.FieldStatus); err != nil {
		return nil, err
	}
	width := len(d.Columns)
	if width == 0 {
		return nil, audit.ErrEmptyResult
	}
	sum := make(map[string]float64)
	n := make(map[string]int)
	for _, r := range d.Records {
		if !r.Completed() || r.Auditor == "" {
			continue
		}
		sum[r.Auditor] += float64(r.Filled()) / float64(width) * 100
		n[r.Auditor]++
	}
	if len(n) == 0 {
		return nil, audit.ErrEmptyResult
	}
	out := make([]Completeness, 0, len(n))
	for a, c := range n {
		out = append(out, Completeness{Auditor: a, Percent: sum[a] / float64(c)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Percent != out[j].Percent {
			return out[i].Percent > out[j].Percent
		}
		return out[i].Auditor < out[j].Auditor
	})
	return out, nil
}

// Filter selects records. Technician, Company and AuditType are equality
// tests; Plate and WorkOrder are case-insensitive substrings. Empty fields
// are ignored.
type Filter struct {
	Technician string `json:"technician,omitempty"`
	Company    string `json:"company,omitempty"`
	AuditType  string `json:"audit_type,omitempty"`
	Plate      string `json:"plate,omitempty"`
	WorkOrder  string `json:"work_order,omitempty"`
}

// IsZero reports whether the filter keeps everything.
func (f Filter) IsZero() bool { return f == Filter{} }

// Apply returns the matching records in original order.
func (f Filter) Apply(recs []audit.Record) []audit.Record {
	tech := keyword.NormalizeString(f.Technician)
	company := strings.TrimSpace(f.Company)
	typ := strings.TrimSpace(f.AuditType)
	plate := strings.ToLower(strings.TrimSpace(f.Plate))
	order := strings.ToLower(strings.TrimSpace(f.WorkOrder))

	var out []audit.Record
	for _, r := range recs {
		if tech != "" && r.Technician != tech {
			continue
		}
		if company != "" && r.Company != company {
			continue
		}
		if typ != "" && r.AuditType != typ {
			continue
		}
		if plate != "" && !strings.Contains(strings.ToLower(r.Plate), plate) {
			continue
		}
		if order != "" && !strings.Contains(strings.ToLower(r.WorkOrder), order) {
			continue
		}
		out = append(out, r)
	}
	return out
}
