// CLAUDE:SUMMARY Normalized keyword sets with substring, exact and first-term matching.

// Package keyword normalizes free text and matches it against keyword
// sets.
package keyword

import "strings"

// Set is an ordered collection of normalized substrings.
// A Set is immutable once built.
type Set struct {
	terms []string
}

// NewSet builds a Set, normalizing every term. Empty terms and duplicates
// are dropped; the first occurrence keeps its position.
func NewSet(terms ...string) Set {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		// Trailing spaces are significant ("sin " must not match "sincronizado").
		n := NormalizeLowercaseASCII(t)
		if strings.TrimSpace(n) == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return Set{terms: out}
}

// Len returns the number of terms.
func (s Set) Len() int { return len(s.terms) }

// Match reports whether normalized contains any term as a substring.
// The empty string matches nothing.
func (s Set) Match(normalized string) bool {
	if normalized == "" {
		return false
	}
	for _, t := range s.terms {
		if strings.Contains(normalized, t) {
			return true
		}
	}
	return false
}

// MatchExact reports whether the trimmed input equals one of the terms.
func (s Set) MatchExact(normalized string) bool {
	v := strings.TrimSpace(normalized)
	if v == "" {
		return false
	}
	for _, t := range s.terms {
		if strings.TrimSpace(t) == v {
			return true
		}
	}
	return false
}

// FirstMatch returns the first term, in set order, contained in normalized.
func (s Set) FirstMatch(normalized string) (string, bool) {
	if normalized == "" {
		return "", false
	}
	for _, t := range s.terms {
		if strings.Contains(normalized, t) {
			return t, true
		}
	}
	return "", false
}
