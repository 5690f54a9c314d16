// Package extract pulls typed fields out of one page of document text using
// ordered anchor-pattern rules, and classifies the page from what it found.
package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const tabWidth = 8

// NormalizeText prepares page text for the heuristics: NFKC folding (which
// also turns non-breaking spaces into spaces), removal of invisible format
// characters, LF line endings, tabs expanded to spaces so column offsets
// survive, and trailing whitespace trimmed per line.
func NormalizeText(s string) string {
	t := transform.Chain(norm.NFKC, runes.Remove(runes.In(unicode.Cf)))
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	folded = strings.ReplaceAll(folded, "\r\n", "\n")
	folded = strings.ReplaceAll(folded, "\r", "\n")

	lines := strings.Split(folded, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(expandTabs(line), " ")
	}
	return strings.Join(lines, "\n")
}

func expandTabs(line string) string {
	if !strings.ContainsRune(line, '\t') {
		return line
	}
	var b strings.Builder
	col := 0
	for _, r := range line {
		if r == '\t' {
			n := tabWidth - col%tabWidth
			b.WriteString(strings.Repeat(" ", n))
			col += n
			continue
		}
		b.WriteRune(r)
		col++
	}
	return b.String()
}
