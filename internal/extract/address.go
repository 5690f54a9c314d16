package extract

import (
	"regexp"
	"strings"

	"github.com/sells-group/orderrecon/internal/model"
)

type blockKind int

const (
	blockBillTo blockKind = iota
	blockShipTo
)

const maxBlockLines = 7

var (
	billToAnchor = regexp.MustCompile(`(?i)\b(?:bill(?:ed)?\s*to|sold\s+to|invoice\s+to)\b\s*:?`)
	shipToAnchor = regexp.MustCompile(`(?i)\b(?:ship(?:ped)?\s*to|deliver\s+to|consignee)\b\s*:?`)

	// Section headings that close an address block.
	sectionAnchor = regexp.MustCompile(`(?i)^(?:(?:terms|notes?|comments?|remarks|special\s+instructions|instructions|payment|ship\s+via|carrier)\b|order\s*(?:no\b|number\b|#|date\b)|customer\s*(?:code\b|no\b|number\b|#|id\b))`)

	attentionLine = regexp.MustCompile(`(?i)^(?:attn|attention|c/o)\b[:.]?\s*(.*)$`)
	phoneLabelled = regexp.MustCompile(`(?i)^(?:ph(?:one)?|tel(?:ephone)?)\.?\s*[:#]?\s*(\+?[\d().\-\s]{7,})$`)
	phoneBare     = regexp.MustCompile(`^\+?1?[\s.\-]?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]\d{4}$`)
	cityStateZip  = regexp.MustCompile(`^(.+?),?\s+([A-Z]{2})\.?\s+(\d{5}(?:-\d{4})?)$`)
)

// anchorHit is an address anchor found on a line.
type anchorHit struct {
	kind  blockKind
	line  int
	start int // column where the anchor begins
	after int // column just past the anchor text
}

func findAnchors(lines []string) []anchorHit {
	var hits []anchorHit
	for i, line := range lines {
		for _, loc := range billToAnchor.FindAllStringIndex(line, -1) {
			hits = append(hits, anchorHit{kind: blockBillTo, line: i, start: loc[0], after: loc[1]})
		}
		for _, loc := range shipToAnchor.FindAllStringIndex(line, -1) {
			hits = append(hits, anchorHit{kind: blockShipTo, line: i, start: loc[0], after: loc[1]})
		}
	}
	return hits
}

// extractAddress returns the first block of the requested kind. Blocks are
// identified by anchor text, never by their position on the page.
func extractAddress(lines []string, kind blockKind) model.Address {
	hits := findAnchors(lines)
	for _, h := range hits {
		if h.kind != kind {
			continue
		}
		block := blockLines(lines, h, hits)
		if len(block) == 0 {
			continue
		}
		return parseAddress(block)
	}
	return model.Address{}
}

// blockLines collects the text of one address block. The block owns the
// column range from its anchor up to the next cell on the anchor line, so
// side-by-side bill-to and ship-to blocks do not bleed into each other.
func blockLines(lines []string, h anchorHit, hits []anchorHit) []string {
	left := h.start
	right := -1
	for _, c := range splitCells(lines[h.line]) {
		if c.start > h.start && c.start >= h.after {
			right = c.start
			break
		}
	}
	// An anchor cell that carries its value inline ("Bill To: Acme") keeps
	// the trailing text; a later cell on the same line bounds the block.
	for _, other := range hits {
		if other.line == h.line && other.start > h.start && (right < 0 || other.start < right) {
			right = other.start
		}
	}

	var out []string
	anchorLine := lines[h.line]
	inlineEnd := len(anchorLine)
	if right >= 0 && right < inlineEnd {
		inlineEnd = right
	}
	if h.after < inlineEnd {
		if v := strings.TrimSpace(anchorLine[h.after:inlineEnd]); v != "" {
			out = append(out, v)
		}
	}

	for i := h.line + 1; i < len(lines) && len(out) < maxBlockLines; i++ {
		if isSeparator(lines[i]) {
			continue
		}
		if isItemHeader(lines[i]) {
			break
		}
		c, ok := regionCell(lines[i], left, right)
		if !ok {
			if len(out) == 0 && i == h.line+1 {
				continue
			}
			break
		}
		if billToAnchor.MatchString(c.text) || shipToAnchor.MatchString(c.text) || sectionAnchor.MatchString(c.text) {
			break
		}
		out = append(out, c.text)
	}
	return out
}

// regionCell returns the first cell of line that starts inside [left, right).
func regionCell(line string, left, right int) (cell, bool) {
	const slack = 2
	for _, c := range splitCells(line) {
		if c.start < left-slack {
			continue
		}
		if right >= 0 && c.start >= right-slack {
			return cell{}, false
		}
		return c, true
	}
	return cell{}, false
}

// parseAddress assigns block lines to address fields.
func parseAddress(block []string) model.Address {
	var a model.Address
	var rest []string
	for _, line := range block {
		line = strings.TrimSpace(line)
		switch {
		case attentionLine.MatchString(line):
			if a.Attention == "" {
				a.Attention = strings.TrimSpace(attentionLine.FindStringSubmatch(line)[1])
			}
		case phoneLabelled.MatchString(line):
			if a.Phone == "" {
				a.Phone = strings.TrimSpace(phoneLabelled.FindStringSubmatch(line)[1])
			}
		case phoneBare.MatchString(line):
			if a.Phone == "" {
				a.Phone = line
			}
		case a.City == "" && cityStateZip.MatchString(line):
			m := cityStateZip.FindStringSubmatch(line)
			a.City = strings.TrimRight(strings.TrimSpace(m[1]), ",")
			a.State = m[2]
			a.PostalCode = m[3]
		default:
			rest = append(rest, line)
		}
	}

	for i, line := range rest {
		switch i {
		case 0:
			a.Name = line
		case 1:
			a.Line1 = line
		case 2:
			a.Line2 = line
		default:
			a.Line2 += ", " + line
		}
	}
	return a
}
