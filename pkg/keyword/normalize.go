// CLAUDE:SUMMARY Accent stripping and lowercasing that turns any cell value into matchable observation text.
package keyword

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize turns any cell value into matchable text. Strings are trimmed,
// lowercased and stripped of accents; every other type yields "".
func Normalize(v any) string {
	switch s := v.(type) {
	case string:
		return NormalizeString(s)
	case *string:
		if s == nil {
			return ""
		}
		return NormalizeString(*s)
	default:
		return ""
	}
}

// NormalizeString is the string fast path of Normalize.
func NormalizeString(s string) string {
	return strings.TrimSpace(NormalizeLowercaseASCII(strings.TrimSpace(s)))
}

// NormalizeLowercaseASCII lowercases and strips accents (e.g. Cañería -> caneria).
func NormalizeLowercaseASCII(s string) string {
	result, _, _ := transform.String(stripAccents, strings.ToLower(s))
	return result
}
