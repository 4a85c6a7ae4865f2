// CLAUDE:SUMMARY Per-group KPI counts, totals and percentages with per-column availability.

// Package report aggregates classified audit records into KPI tables and
// rankings. Every report is computed independently: a missing column or an
// empty selection degrades that report alone.
package report

import (
	"errors"
	"slices"
	"sort"

	"github.com/hazyhaar/auditlens/pkg/audit"
	"github.com/hazyhaar/auditlens/pkg/rules"
)

// Group is one row of a KPI table.
type Group struct {
	Label   string         `json:"label"`
	Counts  map[string]int `json:"counts"`
	Records int            `json:"records"`
	Cases   int            `json:"cases"` // sum of Counts
}

// KPITable holds per-group category counts and the global rollup.
type KPITable struct {
	Field      audit.Field        `json:"field"`
	Categories []string           `json:"categories"`
	Labels     map[string]string  `json:"labels"`
	Groups     []Group            `json:"groups"`
	Totals     map[string]int     `json:"totals"`
	Records    int                `json:"records"`
	Percent    map[string]float64 `json:"percent"` // of Records
	// Missing lists every absent column the table depends on. Without the
	// grouping column every record falls in a single group labelled "".
	Missing []*audit.MissingColumnError `json:"missing,omitempty"`
	// Unavailable holds the categories whose input column is absent. They
	// have no counts, totals or percentages.
	Unavailable []string `json:"unavailable,omitempty"`
}

// Available reports whether category id was counted.
func (t *KPITable) Available(id string) bool {
	return !slices.Contains(t.Unavailable, id)
}

// Err joins the missing-column errors of t, or returns ErrEmptyResult when
// no record was counted.
func (t *KPITable) Err() error {
	if t.Records == 0 {
		return audit.ErrEmptyResult
	}
	errs := make([]error, len(t.Missing))
	for i, mc := range t.Missing {
		errs[i] = mc
	}
	return errors.Join(errs...)
}

// GroupBy counts, per group of field, the records in each category.
// results[i] must be the classification of d.Records[i].
func GroupBy(d *audit.Dataset, results []audit.Classification, field audit.Field) *KPITable {
	t := &KPITable{
		Field:      field,
		Categories: d.Rules.CategoryIDs(),
		Labels:     make(map[string]string, len(d.Rules.Categories)),
		Totals:     make(map[string]int, len(d.Rules.Categories)),
		Percent:    make(map[string]float64, len(d.Rules.Categories)),
		Records:    len(d.Records),
	}

	missing := func(f audit.Field) bool {
		var mc *audit.MissingColumnError
		if err := d.Require(f); errors.As(err, &mc) {
			t.Missing = append(t.Missing, mc)
			return true
		}
		return false
	}
	present := !missing(field)
	noStatus, noObservation := !present, !present
	if field != audit.FieldStatus {
		noStatus = missing(audit.FieldStatus)
	}
	if field != audit.FieldObservation {
		noObservation = missing(audit.FieldObservation)
	}

	var ids []string
	for _, cat := range d.Rules.Categories {
		t.Labels[cat.ID] = cat.Label
		needsStatus := cat.Source == rules.SourceStatus || cat.CompletedOnly
		needsObservation := cat.Source == rules.SourceObservation
		if (needsStatus && noStatus) || (needsObservation && noObservation) {
			t.Unavailable = append(t.Unavailable, cat.ID)
			continue
		}
		ids = append(ids, cat.ID)
		t.Totals[cat.ID] = 0
	}

	byLabel := make(map[string]*Group)
	for i := range d.Records {
		label := ""
		if present {
			label = d.Records[i].Value(field)
		}
		g, ok := byLabel[label]
		if !ok {
			g = &Group{Label: label, Counts: make(map[string]int, len(ids))}
			for _, id := range ids {
				g.Counts[id] = 0
			}
			byLabel[label] = g
		}
		g.Records++
		for _, id := range ids {
			if results[i][id] {
				g.Counts[id]++
				g.Cases++
				t.Totals[id]++
			}
		}
	}

	t.Groups = make([]Group, 0, len(byLabel))
	for _, g := range byLabel {
		t.Groups = append(t.Groups, *g)
	}
	sort.Slice(t.Groups, func(i, j int) bool {
		a, b := t.Groups[i], t.Groups[j]
		if a.Cases != b.Cases {
			return a.Cases > b.Cases
		}
		return a.Label < b.Label
	})

	for _, id := range ids {
		if t.Records > 0 {
			t.Percent[id] = float64(t.Totals[id]) / float64(t.Records) * 100
		}
	}
	return t
}
