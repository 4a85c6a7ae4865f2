// CLAUDE:SUMMARY Per-record category flags and matched-term evidence from compiled rules.
package audit

import (
	"github.com/hazyhaar/auditlens/pkg/keyword"
	"github.com/hazyhaar/auditlens/pkg/rules"
)

// Classification maps every category id to whether the record falls in it.
type Classification map[string]bool

// Matched returns the ids that are true, in category order.
func (c Classification) Matched(order []string) []string {
	var out []string
	for _, id := range order {
		if c[id] {
			out = append(out, id)
		}
	}
	return out
}

// Evidence maps every matched category id to the text that triggered it:
// the keyword for observation categories, the status for status ones.
type Evidence map[string]string

// Classifier evaluates compiled categories. It is safe for concurrent use.
type Classifier struct {
	rules *rules.Compiled
}

// NewClassifier returns a classifier over c.
func NewClassifier(c *rules.Compiled) *Classifier {
	return &Classifier{rules: c}
}

// Classify evaluates every category independently.
func (c *Classifier) Classify(r *Record) Classification {
	return c.classify(r.ObservationNorm, r.Completed())
}

// ClassifyText classifies a bare observation, as if written on a record
// whose completion state is given.
func (c *Classifier) ClassifyText(observation string, completed bool) Classification {
	return c.classify(keyword.NormalizeString(observation), completed)
}

// ClassifyAll classifies records in order.
func (c *Classifier) ClassifyAll(recs []Record) []Classification {
	out := make([]Classification, len(recs))
	for i := range recs {
		out[i] = c.Classify(&recs[i])
	}
	return out
}

// Explain returns the evidence behind Classify(r).
func (c *Classifier) Explain(r *Record) Evidence {
	return c.explain(r.ObservationNorm, r.Status, r.Completed())
}

// ExplainText returns the evidence behind ClassifyText.
func (c *Classifier) ExplainText(observation string, completed bool) Evidence {
	status := c.rules.CompletedStatus
	if !completed {
		status = c.rules.MissingStatus
	}
	return c.explain(keyword.NormalizeString(observation), status, completed)
}

func (c *Classifier) explain(normalized, status string, completed bool) Evidence {
	hits := c.classify(normalized, completed)
	out := make(Evidence)
	for _, cat := range c.rules.Categories {
		if !hits[cat.ID] {
			continue
		}
		if cat.Source == rules.SourceStatus {
			out[cat.ID] = status
			continue
		}
		out[cat.ID], _ = cat.Rule.Evidence(normalized)
	}
	return out
}

func (c *Classifier) classify(normalized string, completed bool) Classification {
	out := make(Classification, len(c.rules.Categories))
	for _, cat := range c.rules.Categories {
		var hit bool
		switch cat.Source {
		case rules.SourceStatus:
			hit = !completed
		default:
			hit = cat.Rule != nil && cat.Rule.Match(normalized)
		}
		if cat.CompletedOnly && !completed {
			hit = false
		}
		out[cat.ID] = hit
	}
	return out
}
