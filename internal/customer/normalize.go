// Package customer resolves extracted customer fields to a single Customer
// record through an ordered set of deterministic identity keys.
package customer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are trailing name tokens that do not distinguish entities.
var legalSuffixes = map[string]bool{
	"INC":          true,
	"INCORPORATED": true,
	"LLC":          true,
	"LLP":          true,
	"LP":           true,
	"LTD":          true,
	"LIMITED":      true,
	"CORP":         true,
	"CORPORATION":  true,
	"CO":           true,
	"COMPANY":      true,
	"PC":           true,
	"PLLC":         true,
	"PA":           true,
}

// fold strips diacritics so "Crème" and "Creme" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// tokens uppercases s, drops periods and apostrophes so "L.L.C." and
// "O'Neil" stay whole, and splits on every other non-alphanumeric rune.
func tokens(s string) []string {
	s = strings.ToUpper(fold(s))
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '.' || r == '\'' || r == '’':
			return -1
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		default:
			return ' '
		}
	}, s)
	return strings.Fields(s)
}

// NormalizeCode uppercases a customer code and strips non-alphanumerics.
func NormalizeCode(code string) string {
	return strings.Join(tokens(code), "")
}

// NormalizeName canonicalizes a display name: legal suffixes removed,
// uppercase, punctuation stripped, whitespace collapsed. Abbreviations are
// not expanded.
func NormalizeName(name string) string {
	t := tokens(name)
	for len(t) > 1 && legalSuffixes[t[len(t)-1]] {
		t = t[:len(t)-1]
	}
	return strings.Join(t, " ")
}

// NormalizeAddressLine canonicalizes a street line or city. "St" and
// "Street" remain distinct.
func NormalizeAddressLine(s string) string {
	return strings.Join(tokens(s), " ")
}

// NormalizeState uppercases a state code.
func NormalizeState(s string) string {
	return strings.Join(tokens(s), "")
}

// NormalizePostal keeps the five-digit ZIP of a ZIP or ZIP+4.
func NormalizePostal(s string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) > 5 {
		digits = digits[:5]
	}
	return digits
}
