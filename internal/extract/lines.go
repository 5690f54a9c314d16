package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/orderrecon/internal/model"
)

type columnKind int

const (
	colOther columnKind = iota
	colSKU
	colQty
	colLot
)

const (
	reasonQtyLotShaped = "quantity column holds a lot-shaped token"
	reasonQtyCeiling   = "quantity exceeds sanity ceiling"
	reasonLotNumeric   = "lot column holds a bare small integer"
)

var (
	skuHeader   = regexp.MustCompile(`(?i)^(?:item|sku|product|part|catalog|cat\.?|style)\b`)
	qtyHeader   = regexp.MustCompile(`(?i)^(?:qty|quantity|units|ordered|shipped|qty\.)\b`)
	lotHeader   = regexp.MustCompile(`(?i)^(?:lot|batch)\b`)
	descHeader  = regexp.MustCompile(`(?i)desc`)
	tableFooter = regexp.MustCompile(`(?i)^(?:sub\s*-?\s*total|total|tax|freight|shipping\s+charges|terms|notes?|comments?|remarks|thank|page\s+\d)\b`)

	// Alphanumeric prefix followed by a long digit run: SLQ-81000412231,
	// A1-81000412231, LOT#81000412231.
	lotShaped  = regexp.MustCompile(`(?i)^[A-Z0-9]*[A-Z][A-Z0-9]*[-/#]?\d{6,}$`)
	digitRun   = regexp.MustCompile(`\d{6,}`)
	numeric    = regexp.MustCompile(`^[\d,.]+$`)
	leadingInt = regexp.MustCompile(`^\d+`)
	smallInt   = regexp.MustCompile(`^\d{1,3}$`)
)

type column struct {
	kind  columnKind
	start int
}

// parseHeader reports the columns of a line-item header row. A header needs
// both a SKU column and a quantity column.
func parseHeader(line string) ([]column, bool) {
	cells := splitCells(line)
	if len(cells) < 2 {
		cells = splitWords(line)
	}
	var cols []column
	var hasSKU, hasQty, hasLot bool
	for _, c := range cells {
		kind := colOther
		switch {
		case descHeader.MatchString(c.text):
		case !hasSKU && skuHeader.MatchString(c.text):
			kind, hasSKU = colSKU, true
		case !hasQty && qtyHeader.MatchString(c.text):
			kind, hasQty = colQty, true
		case !hasLot && lotHeader.MatchString(c.text):
			kind, hasLot = colLot, true
		}
		cols = append(cols, column{kind: kind, start: c.start})
	}
	return cols, hasSKU && hasQty
}

func isItemHeader(line string) bool {
	_, ok := parseHeader(line)
	return ok
}

// assignCells maps row cells to header columns. Rows with as many cells as
// the header are assigned positionally; otherwise each cell goes to the
// right-most column starting at or before it.
func assignCells(cols []column, cells []cell) map[columnKind]string {
	out := make(map[columnKind]string)
	if len(cells) == len(cols) {
		for i, c := range cells {
			if cols[i].kind != colOther {
				out[cols[i].kind] = c.text
			}
		}
		return out
	}
	const slack = 2
	for _, c := range cells {
		idx := -1
		for i, col := range cols {
			if col.start <= c.start+slack {
				idx = i
			}
		}
		if idx < 0 {
			idx = 0
		}
		kind := cols[idx].kind
		if kind == colOther {
			continue
		}
		if _, taken := out[kind]; !taken {
			out[kind] = c.text
		}
	}
	return out
}

// extractLines walks every line-item table on the page.
func extractLines(lines []string, ceiling int) ([]model.LineItem, []model.RejectedLine) {
	var items []model.LineItem
	var rejected []model.RejectedLine

	for i := 0; i < len(lines); i++ {
		cols, ok := parseHeader(lines[i])
		if !ok {
			continue
		}
		rows := 0
		j := i + 1
		for ; j < len(lines); j++ {
			line := lines[j]
			if isSeparator(line) {
				continue
			}
			if isBlank(line) {
				if rows == 0 {
					continue
				}
				break
			}
			cells := splitCells(line)
			if tableFooter.MatchString(cells[0].text) || billToAnchor.MatchString(line) || shipToAnchor.MatchString(line) {
				break
			}
			if _, again := parseHeader(line); again {
				break
			}
			item, rej, keep := parseRow(assignCells(cols, cells), ceiling)
			if !keep {
				continue
			}
			rows++
			if rej != "" {
				rejected = append(rejected, model.RejectedLine{Row: strings.TrimSpace(line), Reason: rej})
				continue
			}
			items = append(items, item)
		}
		i = j - 1
	}
	return items, rejected
}

// parseRow validates one table row. keep is false for rows that carry
// neither a SKU nor a lot, such as wrapped description text.
func parseRow(vals map[columnKind]string, ceiling int) (item model.LineItem, reason string, keep bool) {
	sku := firstToken(vals[colSKU])
	lot := firstToken(vals[colLot])
	if sku == "" && lot == "" {
		return model.LineItem{}, "", false
	}
	item.SKU = sku

	if lot != "" {
		if smallInt.MatchString(lot) {
			return item, reasonLotNumeric, true
		}
		item.Lot = lot
	}

	qty, reason := parseQuantity(vals[colQty], ceiling)
	if reason != "" {
		return item, reason, true
	}
	item.Quantity = qty
	return item, "", true
}

// parseQuantity returns nil for an empty or non-numeric cell, and a reason
// when the cell holds something that must not be read as a quantity.
func parseQuantity(raw string, ceiling int) (*int, string) {
	tok := firstToken(raw)
	if tok == "" {
		return nil, ""
	}
	if lotShaped.MatchString(tok) || (!numeric.MatchString(tok) && digitRun.MatchString(tok)) {
		return nil, reasonQtyLotShaped
	}
	digits := leadingInt.FindString(strings.ReplaceAll(tok, ",", ""))
	if digits == "" {
		return nil, ""
	}
	n, err := strconv.Atoi(digits)
	if err != nil || (ceiling > 0 && n > ceiling) {
		return nil, reasonQtyCeiling
	}
	return &n, ""
}

func firstToken(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}
