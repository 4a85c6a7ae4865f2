package keyword

import (
	"fmt"
	"strings"
)

// Mode selects how a Rule's include set is applied.
type Mode string

const (
	// ModeContains matches when any term is a substring.
	ModeContains Mode = "contains"
	// ModeExact matches when the whole trimmed text equals a term.
	ModeExact Mode = "exact"
)

// ParseMode validates a mode string. Empty defaults to contains.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeContains:
		return ModeContains, nil
	case ModeExact:
		return ModeExact, nil
	default:
		return "", fmt.Errorf("unknown match mode %q", s)
	}
}

// Rule is a compound matcher: the include set must match and none of the
// exclusions may.
type Rule struct {
	Include      Set
	Mode         Mode
	Exclude      Set  // substring exclusions
	ExcludeExact Set  // whole-string exclusions
	EmptyMatches bool // result for the empty string, checked first
	// Not holds rules whose match vetoes this one ("malpractice unless compliant").
	Not []*Rule
}

// Match evaluates the rule against normalized text.
func (r *Rule) Match(normalized string) bool {
	if normalized == "" {
		return r.EmptyMatches
	}
	var ok bool
	switch r.Mode {
	case ModeExact:
		ok = r.Include.MatchExact(normalized)
	default:
		ok = r.Include.Match(normalized)
	}
	if !ok {
		return false
	}
	if r.Exclude.Match(normalized) || r.ExcludeExact.MatchExact(normalized) {
		return false
	}
	for _, n := range r.Not {
		if n.Match(normalized) {
			return false
		}
	}
	return true
}

// Evidence returns the include term that made the rule match normalized.
// An empty input matched through EmptyMatches yields "".
func (r *Rule) Evidence(normalized string) (string, bool) {
	if !r.Match(normalized) {
		return "", false
	}
	if normalized == "" {
		return "", true
	}
	if r.Mode == ModeExact {
		return strings.TrimSpace(normalized), true
	}
	term, ok := r.Include.FirstMatch(normalized)
	return strings.TrimSpace(term), ok
}
