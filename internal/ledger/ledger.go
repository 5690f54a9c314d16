// Package ledger loads the inventory ledger into lot lookups: the SKU,
// the corrected lot code, the produced quantity and the manufacture year
// of every lot.
package ledger

import (
	"bytes"
	"context"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orderrecon/internal/fetcher"
	"github.com/sells-group/orderrecon/internal/model"
)

// Format selects how ledger bytes are parsed.
type Format string

const (
	FormatAuto      Format = "auto"
	FormatDelimited Format = "csv"
	FormatXLSX      Format = "xlsx"
)

// DefaultDateLayouts are tried in order against the manufacture date column:
// day/month/year with slashes, then ISO.
var DefaultDateLayouts = []string{"2/1/2006", "2006-01-02"}

// DefaultMinYear is the earliest year accepted from digits in a lot code.
const DefaultMinYear = 1990

// Options configures Load.
type Options struct {
	Format      Format
	Sheet       string
	DateLayouts []string
	MinYear     int
	// Now anchors the latest plausible year (next year). Default: time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Format == "" {
		o.Format = FormatAuto
	}
	if len(o.DateLayouts) == 0 {
		o.DateLayouts = DefaultDateLayouts
	}
	if o.MinYear <= 0 {
		o.MinYear = DefaultMinYear
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Ledger holds every parsed lot. All maps are keyed by corrected lot code.
type Ledger struct {
	Records     []model.LotRecord
	SKUByLot    map[string]string
	Corrections map[string]string // raw lot -> corrected lot
	Produced    map[string]int
	Years       map[string]int
	// Skipped counts malformed rows left out of the load.
	Skipped int
}

func newLedger() *Ledger {
	return &Ledger{
		SKUByLot:    make(map[string]string),
		Corrections: make(map[string]string),
		Produced:    make(map[string]int),
		Years:       make(map[string]int),
	}
}

// Correct maps a lot code as printed or reported to its canonical code.
// Unknown codes are returned normalized but otherwise unchanged.
func (l *Ledger) Correct(lot string) string {
	lot = normalizeLot(lot)
	if l == nil {
		return lot
	}
	if c, ok := l.Corrections[lot]; ok {
		return c
	}
	return lot
}

// Year returns the manufacture year of a corrected lot.
func (l *Ledger) Year(lot string) (int, bool) {
	if l == nil {
		return 0, false
	}
	y, ok := l.Years[lot]
	return y, ok
}

// LotsForSKU returns the corrected lots recorded for sku in ledger order,
// without duplicates.
func (l *Ledger) LotsForSKU(sku string) []string {
	if l == nil {
		return nil
	}
	seen := make(map[string]bool)
	var lots []string
	for _, r := range l.Records {
		if r.SKU == sku && !seen[r.Lot] {
			seen[r.Lot] = true
			lots = append(lots, r.Lot)
		}
	}
	return lots
}

// Load reads and parses the ledger from src. A source that cannot be read
// or has no recognizable header fails the load; malformed rows are skipped
// and counted.
func Load(ctx context.Context, src Source, opts Options) (*Ledger, error) {
	opts = opts.withDefaults()
	log := zap.L().With(zap.String("component", "ledger"), zap.String("source", src.Name()))

	rc, err := src.Open(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: open %s", src.Name())
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: read %s", src.Name())
	}

	rows, err := readRows(ctx, src.Name(), data, opts)
	if err != nil {
		return nil, err
	}

	l, err := parse(rows, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: parse %s", src.Name())
	}

	log.Info("ledger: loaded",
		zap.Int("records", len(l.Records)),
		zap.Int("skipped", l.Skipped),
		zap.Int("corrections", len(l.Corrections)),
	)
	return l, nil
}

func readRows(ctx context.Context, name string, data []byte, opts Options) ([][]string, error) {
	format := opts.Format
	if format == FormatAuto {
		format = FormatDelimited
		if strings.EqualFold(path.Ext(name), ".xlsx") || fetcher.IsZIP(data) {
			format = FormatXLSX
		}
	}

	switch format {
	case FormatXLSX:
		rows, err := fetcher.ReadXLSX(data, fetcher.XLSXOptions{SheetName: opts.Sheet})
		return rows, eris.Wrapf(err, "ledger: read workbook %s", name)
	case FormatDelimited:
		rows, err := fetcher.ReadCSV(ctx, bytes.NewReader(data), fetcher.CSVOptions{
			Delimiter:  fetcher.SniffDelimiter(data),
			LazyQuotes: true,
			TrimSpace:  true,
		})
		return rows, eris.Wrapf(err, "ledger: read delimited %s", name)
	default:
		return nil, eris.Errorf("ledger: unknown format %q", opts.Format)
	}
}

func parse(rows [][]string, opts Options) (*Ledger, error) {
	start := 0
	for start < len(rows) && blank(rows[start]) {
		start++
	}
	if start == len(rows) {
		return nil, eris.New("empty ledger")
	}
	cols, err := mapHeader(rows[start])
	if err != nil {
		return nil, err
	}

	maxYear := opts.Now().Year() + 1
	l := newLedger()
	for _, row := range rows[start+1:] {
		if blank(row) {
			continue
		}
		rec, ok := parseRow(row, cols, opts.DateLayouts, opts.MinYear, maxYear)
		if !ok {
			l.Skipped++
			continue
		}
		l.add(rec)
	}
	return l, nil
}

func (l *Ledger) add(rec model.LotRecord) {
	l.Records = append(l.Records, rec)
	if rec.RawLot != rec.Lot {
		l.Corrections[rec.RawLot] = rec.Lot
	}
	if rec.SKU != "" {
		if _, ok := l.SKUByLot[rec.Lot]; !ok {
			l.SKUByLot[rec.Lot] = rec.SKU
		}
	}
	l.Produced[rec.Lot] += rec.ProducedQty
	if rec.Year != 0 {
		if _, ok := l.Years[rec.Lot]; !ok {
			l.Years[rec.Lot] = rec.Year
		}
	}
}

func parseRow(row []string, cols columns, layouts []string, minYear, maxYear int) (model.LotRecord, bool) {
	raw := normalizeLot(cols.get(row, colLot))
	if raw == "" {
		return model.LotRecord{}, false
	}
	qty, ok := parseQuantity(cols.get(row, colQty))
	if !ok {
		return model.LotRecord{}, false
	}

	lot := raw
	if c := normalizeLot(cols.get(row, colCorrected)); c != "" {
		lot = c
	}

	rec := model.LotRecord{
		RawLot:      raw,
		Lot:         lot,
		SKU:         strings.ToUpper(strings.TrimSpace(cols.get(row, colSKU))),
		ProducedQty: qty,
	}
	if y, ok := yearFromLot(lot, minYear, maxYear); ok {
		rec.Year = y
	} else if y, ok := yearFromDate(cols.get(row, colDate), layouts); ok {
		rec.Year = y
	}
	return rec, true
}

func normalizeLot(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// parseQuantity accepts integers with thousands separators and integral
// decimals as exported by spreadsheets.
func parseQuantity(s string) (int, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// yearFromLot returns the first 4-digit window of a digit run in lot that
// falls inside [minYear, maxYear].
func yearFromLot(lot string, minYear, maxYear int) (int, bool) {
	for i := 0; i < len(lot); {
		if !isDigit(lot[i]) {
			i++
			continue
		}
		j := i
		for j < len(lot) && isDigit(lot[j]) {
			j++
		}
		for k := i; k+4 <= j; k++ {
			y, _ := strconv.Atoi(lot[k : k+4])
			if y >= minYear && y <= maxYear {
				return y, true
			}
		}
		i = j
	}
	return 0, false
}

func yearFromDate(s string, layouts []string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Year(), true
		}
	}
	return 0, false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
