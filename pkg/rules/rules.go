// CLAUDE:SUMMARY Rules YAML schema: columns, keyword categories, equipment catalogs, defaults and validation.

// Package rules holds the classification configuration: keyword categories,
// equipment catalogs, negative tokens and column names. A Rules value is
// loaded once and compiled into immutable matchers.
package rules

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// EmptyPolicy decides how an empty observation is classified.
type EmptyPolicy string

const (
	// EmptyNeutral: an empty observation is neither compliant nor a finding.
	EmptyNeutral EmptyPolicy = "neutral"
	// EmptyCompliant: an empty observation counts as explicit compliance.
	EmptyCompliant EmptyPolicy = "compliant"
)

// Source is where a category takes its signal from.
type Source string

const (
	SourceObservation Source = "observation"
	SourceStatus      Source = "status"
)

// Severity is the basis used to grade a critical-stock entry.
type Severity string

const (
	SeverityAll   Severity = "all"
	SeverityVital Severity = "vital"
)

// Rules is the YAML schema of a rules file.
type Rules struct {
	EmptyObservation EmptyPolicy `yaml:"empty_observation" json:"empty_observation"`
	CompletedStatus  string      `yaml:"completed_status" json:"completed_status"`
	MissingStatus    string      `yaml:"missing_status" json:"missing_status"`
	NegativeTokens   []string    `yaml:"negative_tokens" json:"negative_tokens"`
	Columns          Columns     `yaml:"columns" json:"columns"`
	Categories       []Category  `yaml:"categories" json:"categories"`
	Catalogs         []Catalog   `yaml:"catalogs" json:"catalogs"`
}

// Columns maps logical fields to spreadsheet headers.
type Columns struct {
	Technician  string `yaml:"technician" json:"technician"`
	Auditor     string `yaml:"auditor" json:"auditor"`
	Company     string `yaml:"company" json:"company"`
	Region      string `yaml:"region" json:"region"`
	Status      string `yaml:"status" json:"status"`
	Date        string `yaml:"date" json:"date"`
	WorkOrder   string `yaml:"work_order" json:"work_order"`
	Plate       string `yaml:"plate" json:"plate"`
	Observation string `yaml:"observation" json:"observation"`
	AuditType   string `yaml:"audit_type" json:"audit_type"`
	Mileage     string `yaml:"mileage" json:"mileage"`
	RUT         string `yaml:"rut" json:"rut"`
}

// Category is one classification dimension.
type Category struct {
	ID                string   `yaml:"id" json:"id"`
	Label             string   `yaml:"label" json:"label"`
	Source            Source   `yaml:"source" json:"source"`
	CompletedOnly     bool     `yaml:"completed_only" json:"completed_only,omitempty"`
	Match             string   `yaml:"match" json:"match,omitempty"`
	Keywords          []string `yaml:"keywords" json:"keywords,omitempty"`
	Exclude           []string `yaml:"exclude" json:"exclude,omitempty"`
	ExcludeExact      []string `yaml:"exclude_exact" json:"exclude_exact,omitempty"`
	ExcludeCategories []string `yaml:"exclude_categories" json:"exclude_categories,omitempty"`
}

// Catalog is a fixed list of required equipment columns.
type Catalog struct {
	ID       string   `yaml:"id" json:"id"`
	Label    string   `yaml:"label" json:"label"`
	Sheet    string   `yaml:"sheet" json:"sheet"`
	Severity Severity `yaml:"severity" json:"severity"`
	Items    []string `yaml:"items" json:"items"`
	Vital    []string `yaml:"vital" json:"vital,omitempty"`
}

// Default returns the embedded rules.
func Default() *Rules {
	r, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded rules: %v", err))
	}
	return r
}

// Load reads and validates a rules file.
func Load(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return r, nil
}

// LoadOrDefault loads path, or returns the embedded rules when path is empty.
func LoadOrDefault(path string) (*Rules, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Parse decodes YAML, fills defaults and validates.
func Parse(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	r.applyDefaults()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Marshal renders the rules back to YAML.
func (r *Rules) Marshal() ([]byte, error) {
	return yaml.Marshal(r)
}

func (r *Rules) applyDefaults() {
	if r.EmptyObservation == "" {
		r.EmptyObservation = EmptyNeutral
	}
	if r.CompletedStatus == "" {
		r.CompletedStatus = "finalizada"
	}
	if r.MissingStatus == "" {
		r.MissingStatus = "desconocido"
	}
	if r.NegativeTokens == nil {
		r.NegativeTokens = []string{"No", "Falta", "0"}
	}
	for i := range r.Categories {
		if r.Categories[i].Source == "" {
			r.Categories[i].Source = SourceObservation
		}
		if r.Categories[i].Label == "" {
			r.Categories[i].Label = r.Categories[i].ID
		}
	}
	for i := range r.Catalogs {
		if r.Catalogs[i].Severity == "" {
			r.Catalogs[i].Severity = SeverityAll
		}
		if r.Catalogs[i].Sheet == "" {
			r.Catalogs[i].Sheet = "Stock_Critico_" + r.Catalogs[i].ID
		}
	}
}

// Validate checks ids, enum values and cross references.
func (r *Rules) Validate() error {
	switch r.EmptyObservation {
	case EmptyNeutral, EmptyCompliant:
	default:
		return fmt.Errorf("unknown empty_observation policy %q", r.EmptyObservation)
	}
	if r.Columns.Technician == "" {
		return fmt.Errorf("columns.technician is required")
	}

	byID := make(map[string]*Category, len(r.Categories))
	for i := range r.Categories {
		c := &r.Categories[i]
		if c.ID == "" {
			return fmt.Errorf("category %d: missing id", i)
		}
		if _, dup := byID[c.ID]; dup {
			return fmt.Errorf("duplicate category id %q", c.ID)
		}
		byID[c.ID] = c
		switch c.Source {
		case SourceObservation:
			if len(c.Keywords) == 0 {
				return fmt.Errorf("category %q: no keywords", c.ID)
			}
		case SourceStatus:
		default:
			return fmt.Errorf("category %q: unknown source %q", c.ID, c.Source)
		}
		switch c.Match {
		case "", "contains", "exact":
		default:
			return fmt.Errorf("category %q: unknown match %q", c.ID, c.Match)
		}
	}
	for _, c := range r.Categories {
		for _, ex := range c.ExcludeCategories {
			target, ok := byID[ex]
			if !ok {
				return fmt.Errorf("category %q: exclude_categories references unknown %q", c.ID, ex)
			}
			if ex == c.ID {
				return fmt.Errorf("category %q: excludes itself", c.ID)
			}
			if len(target.ExcludeCategories) > 0 {
				return fmt.Errorf("category %q: excluded category %q must not exclude others", c.ID, ex)
			}
			if target.Source != SourceObservation {
				return fmt.Errorf("category %q: excluded category %q is not observation based", c.ID, ex)
			}
		}
	}

	seen := make(map[string]bool, len(r.Catalogs))
	for i, cat := range r.Catalogs {
		if cat.ID == "" {
			return fmt.Errorf("catalog %d: missing id", i)
		}
		if seen[cat.ID] {
			return fmt.Errorf("duplicate catalog id %q", cat.ID)
		}
		seen[cat.ID] = true
		if len(cat.Items) == 0 {
			return fmt.Errorf("catalog %q: no items", cat.ID)
		}
		switch cat.Severity {
		case SeverityAll:
		case SeverityVital:
			if len(cat.Vital) == 0 {
				return fmt.Errorf("catalog %q: severity vital without vital items", cat.ID)
			}
		default:
			return fmt.Errorf("catalog %q: unknown severity %q", cat.ID, cat.Severity)
		}
		items := make(map[string]bool, len(cat.Items))
		for _, it := range cat.Items {
			items[it] = true
		}
		for _, v := range cat.Vital {
			if !items[v] {
				return fmt.Errorf("catalog %q: vital item %q is not in items", cat.ID, v)
			}
		}
	}
	return nil
}

// Catalog returns the catalog with the given id.
func (r *Rules) Catalog(id string) (Catalog, bool) {
	for _, c := range r.Catalogs {
		if c.ID == id {
			return c, true
		}
	}
	return Catalog{}, false
}
