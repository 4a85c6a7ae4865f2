// CLAUDE:SUMMARY Compiles rules into immutable keyword matchers with category vetoes and the empty-observation policy.
package rules

import (
	"fmt"

	"github.com/hazyhaar/auditlens/pkg/keyword"
)

// CompiledCategory is a category with its matcher built.
type CompiledCategory struct {
	ID            string
	Label         string
	Source        Source
	CompletedOnly bool
	Rule          *keyword.Rule // nil for status categories
}

// Compiled is the immutable, ready-to-match form of Rules.
type Compiled struct {
	Rules           *Rules
	Categories      []CompiledCategory
	CompletedStatus string // normalized
	MissingStatus   string // normalized
}

// Compile builds keyword rules for every category. Categories referenced by
// exclude_categories are compiled first so they can veto.
func Compile(r *Rules) (*Compiled, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	rulesByID := make(map[string]*keyword.Rule, len(r.Categories))
	for _, c := range r.Categories {
		if c.Source != SourceObservation {
			continue
		}
		mode, err := keyword.ParseMode(c.Match)
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", c.ID, err)
		}
		rulesByID[c.ID] = &keyword.Rule{
			Include:      keyword.NewSet(c.Keywords...),
			Mode:         mode,
			Exclude:      keyword.NewSet(c.Exclude...),
			ExcludeExact: keyword.NewSet(c.ExcludeExact...),
		}
	}

	// Only explicit-compliance style categories (exact match, vetoing others)
	// take the empty-observation policy.
	vetoes := make(map[string]bool)
	for _, c := range r.Categories {
		for _, ex := range c.ExcludeCategories {
			vetoes[ex] = true
		}
	}

	out := &Compiled{
		Rules:           r,
		Categories:      make([]CompiledCategory, 0, len(r.Categories)),
		CompletedStatus: keyword.NormalizeString(r.CompletedStatus),
		MissingStatus:   keyword.NormalizeString(r.MissingStatus),
	}
	for _, c := range r.Categories {
		cc := CompiledCategory{
			ID:            c.ID,
			Label:         c.Label,
			Source:        c.Source,
			CompletedOnly: c.CompletedOnly,
		}
		if rule, ok := rulesByID[c.ID]; ok {
			rule.EmptyMatches = vetoes[c.ID] && r.EmptyObservation == EmptyCompliant
			for _, ex := range c.ExcludeCategories {
				rule.Not = append(rule.Not, rulesByID[ex])
			}
			cc.Rule = rule
		}
		out.Categories = append(out.Categories, cc)
	}
	return out, nil
}

// MustCompileDefault compiles the embedded rules.
func MustCompileDefault() *Compiled {
	c, err := Compile(Default())
	if err != nil {
		panic(fmt.Sprintf("compile embedded rules: %v", err))
	}
	return c
}

// CategoryIDs returns category ids in configuration order.
func (c *Compiled) CategoryIDs() []string {
	ids := make([]string, len(c.Categories))
	for i, cat := range c.Categories {
		ids[i] = cat.ID
	}
	return ids
}

// Label returns the display label of a category id.
func (c *Compiled) Label(id string) string {
	for _, cat := range c.Categories {
		if cat.ID == id {
			return cat.Label
		}
	}
	return id
}
