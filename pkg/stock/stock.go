// CLAUDE:SUMMARY Critical stock selection: latest completed audit per technician with missing equipment and severity.

// Package stock selects, per technician, the most recent completed audit and
// lists the catalog items it reports as missing.
package stock

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hazyhaar/auditlens/pkg/audit"
	"github.com/hazyhaar/auditlens/pkg/rules"
)

// Level grades an entry.
type Level string

const (
	LevelNone   Level = "none"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Icon is the badge shown next to a technician.
func (l Level) Icon() string {
	switch l {
	case LevelHigh:
		return "🔴"
	case LevelMedium:
		return "🟡"
	}
	return ""
}

func levelFor(n int) Level {
	switch {
	case n >= 2:
		return LevelHigh
	case n == 1:
		return LevelMedium
	}
	return LevelNone
}

// MissingPredicate decides whether a catalog cell reports a missing item.
type MissingPredicate struct {
	negatives map[string]bool
}

// NewMissingPredicate builds a predicate over negative tokens. Tokens are
// compared trimmed and case-folded.
func NewMissingPredicate(tokens []string) MissingPredicate {
	p := MissingPredicate{negatives: make(map[string]bool, len(tokens))}
	for _, t := range tokens {
		p.negatives[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return p
}

// Missing reports whether a cell value means the item is absent. present is
// false when the cell is null or the column does not exist.
func (p MissingPredicate) Missing(value string, present bool) bool {
	if !present {
		return true
	}
	v := strings.ToLower(strings.TrimSpace(value))
	return v == "" || p.negatives[v]
}

// Entry is one technician with at least one missing item.
type Entry struct {
	Technician   string   `json:"technician"`
	Company      string   `json:"company"`
	Date         string   `json:"date"`
	Missing      []string `json:"missing"`
	MissingCount int      `json:"missing_count"`
	VitalMissing int      `json:"vital_missing"`
	Severity     Level    `json:"severity"`
}

// Result is the critical-stock table of one catalog.
type Result struct {
	Catalog rules.Catalog `json:"catalog"`
	Entries []Entry       `json:"entries"`
	// Absent lists catalog columns the workbook does not have; they count
	// as missing for every technician.
	Absent []string `json:"absent,omitempty"`
}

// Select computes the critical-stock table of catalog over d.
func Select(d *audit.Dataset, catalog rules.Catalog) (*Result, error) {
	if err := d.Require(audit.FieldTechnician, audit.FieldStatus, audit.FieldDate); err != nil {
		return nil, fmt.Errorf("stock %s: %w", catalog.ID, err)
	}
	latest := Latest(d.Records)
	if len(latest) == 0 {
		return nil, fmt.Errorf("stock %s: %w", catalog.ID, audit.ErrEmptyResult)
	}

	pred := NewMissingPredicate(d.Rules.Rules.NegativeTokens)
	vital := make(map[string]bool, len(catalog.Vital))
	for _, v := range catalog.Vital {
		vital[v] = true
	}

	res := &Result{Catalog: catalog}
	for _, item := range catalog.Items {
		if !d.HasColumn(item) {
			res.Absent = append(res.Absent, item)
		}
	}

	for _, r := range latest {
		e := Entry{Technician: r.Technician, Company: r.Company, Date: r.Value(audit.FieldDate)}
		for _, item := range catalog.Items {
			v, ok := r.Cell(item)
			if !pred.Missing(v, ok) {
				continue
			}
			e.Missing = append(e.Missing, item)
			if vital[item] {
				e.VitalMissing++
			}
		}
		if len(e.Missing) == 0 {
			continue
		}
		e.MissingCount = len(e.Missing)
		if catalog.Severity == rules.SeverityVital {
			e.Severity = levelFor(e.VitalMissing)
		} else {
			e.Severity = levelFor(e.MissingCount)
		}
		res.Entries = append(res.Entries, e)
	}

	sort.SliceStable(res.Entries, func(i, j int) bool {
		a, b := res.Entries[i], res.Entries[j]
		if a.MissingCount != b.MissingCount {
			return a.MissingCount > b.MissingCount
		}
		return a.Technician < b.Technician
	})
	return res, nil
}

// Latest returns, per technician, the completed dated record with the
// greatest date. When several share that date the last one in original
// order wins. The result is ordered by technician.
func Latest(recs []audit.Record) []audit.Record {
	best := make(map[string]int)
	for i := range recs {
		r := &recs[i]
		if !r.Completed() || r.Date == nil {
			continue
		}
		j, ok := best[r.Technician]
		if !ok {
			best[r.Technician] = i
			continue
		}
		cur := recs[j]
		if r.Date.After(*cur.Date) || (r.Date.Equal(*cur.Date) && r.Index >= cur.Index) {
			best[r.Technician] = i
		}
	}
	out := make([]audit.Record, 0, len(best))
	for _, i := range best {
		out = append(out, recs[i])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Technician < out[j].Technician })
	return out
}

// FilterCompany keeps the entries of one company. An empty company keeps
// all entries.
func (r *Result) FilterCompany(company string) []Entry {
	company = strings.TrimSpace(company)
	if company == "" {
		return r.Entries
	}
	var out []Entry
	for _, e := range r.Entries {
		if e.Company == company {
			out = append(out, e)
		}
	}
	return out
}

// CompanyCount is the number of flagged technicians in one company.
type CompanyCount struct {
	Company string `json:"company"`
	Count   int    `json:"count"`
}

// ByCompany counts flagged technicians per company, most first.
func (r *Result) ByCompany() []CompanyCount {
	counts := make(map[string]int)
	for _, e := range r.Entries {
		counts[e.Company]++
	}
	out := make([]CompanyCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, CompanyCount{Company: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Company < out[j].Company
	})
	return out
}

// Companies lists the distinct companies of the entries, sorted.
func (r *Result) Companies() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range r.Entries {
		if e.Company != "" && !seen[e.Company] {
			seen[e.Company] = true
			out = append(out, e.Company)
		}
	}
	sort.Strings(out)
	return out
}
