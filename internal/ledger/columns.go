package ledger

import (
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
)

type column int

const (
	colLot column = iota
	colCorrected
	colSKU
	colQty
	colDate
	numColumns
)

// headerAliases lists accepted header spellings after folding to lower-case
// letters and digits.
var headerAliases = map[column][]string{
	colLot:       {"lot", "lotno", "lotnumber", "lotcode", "rawlot", "batch", "batchno"},
	colCorrected: {"correctedlot", "canonicallot", "correctlot", "lotcorrected", "newlot", "correction"},
	colSKU:       {"sku", "item", "itemno", "itemnumber", "product", "productcode", "partnumber", "partno"},
	colQty:       {"qty", "quantity", "producedqty", "qtyproduced", "quantityproduced", "produced", "units"},
	colDate:      {"manufacturedate", "mfgdate", "mfddate", "dateofmanufacture", "productiondate", "mfg", "date"},
}

var aliasIndex = func() map[string]column {
	idx := make(map[string]column)
	for col, names := range headerAliases {
		for _, n := range names {
			idx[n] = col
		}
	}
	return idx
}()

// columns maps each known column to its index in a row, or -1.
type columns [numColumns]int

func foldHeader(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}

func mapHeader(header []string) (columns, error) {
	var c columns
	for i := range c {
		c[i] = -1
	}
	for i, h := range header {
		col, ok := aliasIndex[foldHeader(h)]
		if ok && c[col] < 0 {
			c[col] = i
		}
	}
	if c[colLot] < 0 || c[colQty] < 0 {
		return c, eris.Errorf("header %q lacks a lot or quantity column", strings.Join(header, ","))
	}
	return c, nil
}

func (c columns) get(row []string, col column) string {
	i := c[col]
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
