package report

import (
	"errors"
	"time"

	"github.com/hazyhaar/auditlens/pkg/audit"
	"github.com/hazyhaar/auditlens/pkg/stock"
)

// Section wraps one report. Issue is set when the report could not be
// produced, or produced nothing; the other sections are unaffected.
type Section[T any] struct {
	Data  T      `json:"data,omitempty"`
	Issue string `json:"issue,omitempty"`
	// Empty distinguishes "nothing matched" from a missing column.
	Empty bool `json:"empty,omitempty"`
}

func section[T any](data T, err error) Section[T] {
	s := Section[T]{Data: data}
	if err != nil {
		s.Issue = err.Error()
		s.Empty = errors.Is(err, audit.ErrEmptyResult)
	}
	return s
}

// Options narrow a report.
type Options struct {
	Filter Filter
	Range  DateRange
	Day    *time.Time // AuditorDaily day filter
}

// Report is the full analysis of one dataset.
type Report struct {
	Records   int      `json:"records"`
	Completed int      `json:"completed"`
	Sheets    []string `json:"sheets"`
	Warnings  []string `json:"warnings,omitempty"`

	KPIs         Section[*KPITable]                `json:"kpis"`
	Technicians  Section[[]TechnicianRank]         `json:"technicians"`
	Companies    Section[[]Count]                  `json:"companies"`
	Auditors     Section[[]Count]                  `json:"auditors"`
	AuditorDaily Section[[]AuditorDay]             `json:"auditor_daily"`
	Distribution Section[[]Distribution]           `json:"distribution"`
	Completeness Section[[]Completeness]           `json:"completeness"`
	Regions      Section[[]Count]                  `json:"regions"`
	Stock        map[string]Section[*stock.Result] `json:"stock"`
}

// Build runs every report over d. A filter that leaves no record still
// yields a report whose sections all carry the empty-result issue.
func Build(d *audit.Dataset, cl *audit.Classifier, opts Options) *Report {
	if !opts.Filter.IsZero() {
		d = d.Subset(opts.Filter.Apply(d.Records))
	}
	rep := &Report{
		Records: len(d.Records),
		Sheets:  d.Sheets,
		Stock:   make(map[string]Section[*stock.Result], len(d.Rules.Rules.Catalogs)),
	}
	for _, w := range d.Warnings {
		rep.Warnings = append(rep.Warnings, w.Error())
	}
	for _, r := range d.Records {
		if r.Completed() {
			rep.Completed++
		}
	}

	kpis := GroupBy(d, cl.ClassifyAll(d.Records), audit.FieldCompany)
	rep.KPIs = section(kpis, kpis.Err())
	rep.Technicians = section(TechnicianRanking(d, opts.Range))
	rep.Companies = section(CompanyCounts(d))
	rep.Auditors = section(AuditorRanking(d))
	rep.AuditorDaily = section(AuditorDaily(d, opts.Day))
	rep.Distribution = section(AuditorDistribution(d))
	rep.Completeness = section(AuditorCompleteness(d))
	rep.Regions = section(RegionCounts(d))
	for _, cat := range d.Rules.Rules.Catalogs {
		rep.Stock[cat.ID] = section(stock.Select(d, cat))
	}
	return rep
}
