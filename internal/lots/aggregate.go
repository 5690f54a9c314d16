// Package lots computes per-SKU lot status: the current lot, its lifetime
// distribution and the inventory still on hand.
package lots

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/orderrecon/internal/ledger"
	"github.com/sells-group/orderrecon/internal/model"
)

// Source says how the current lot was chosen.
type Source string

const (
	// SourceDistribution: the lot of the most recent matched distribution.
	SourceDistribution Source = "distribution"
	// SourceLedgerFallback: the most recently manufactured ledger lot,
	// used when the distributed lot predates the cutoff year or has no
	// known year.
	SourceLedgerFallback Source = "ledger_fallback"
	// SourceNone: no lot could be determined.
	SourceNone Source = "none"
)

// Options configures Aggregate.
type Options struct {
	// CutoffYear is the earliest manufacture year whose distribution is
	// tracked.
	CutoffYear int
	// PeriodFrom and PeriodTo bound the optional reporting window, by ship
	// date, inclusive. Lifetime figures ignore the window.
	PeriodFrom *time.Time
	PeriodTo   *time.Time
}

func (o Options) hasPeriod() bool { return o.PeriodFrom != nil || o.PeriodTo != nil }

func (o Options) inPeriod(d *time.Time) bool {
	if d == nil {
		return false
	}
	if o.PeriodFrom != nil && d.Before(*o.PeriodFrom) {
		return false
	}
	if o.PeriodTo != nil && d.After(*o.PeriodTo) {
		return false
	}
	return true
}

// Status is the lot figure set for one SKU. A nil pointer is the unknown
// state, distinct from zero.
type Status struct {
	SKU                 string `json:"sku"`
	CurrentLot          string `json:"current_lot,omitempty"`
	Year                *int   `json:"year"`
	Source              Source `json:"source"`
	Produced            *int   `json:"produced"`
	LifetimeDistributed *int   `json:"lifetime_distributed"`
	PeriodDistributed   *int   `json:"period_distributed"`
	Remaining           *int   `json:"remaining"`
}

// Aggregate builds one Status per SKU seen in the matched events or the
// ledger, sorted by SKU. Unmatched events are ignored.
func Aggregate(events []model.DistributionEvent, l *ledger.Ledger, opts Options) []Status {
	bySKU := make(map[string][]model.DistributionEvent)
	for _, e := range events {
		if !e.Matched() || e.SKU == "" {
			continue
		}
		e.Lot = l.Correct(e.Lot)
		bySKU[e.SKU] = append(bySKU[e.SKU], e)
	}

	skus := make(map[string]bool, len(bySKU))
	for sku := range bySKU {
		skus[sku] = true
	}
	if l != nil {
		for _, r := range l.Records {
			if r.SKU != "" {
				skus[r.SKU] = true
			}
		}
	}

	out := make([]Status, 0, len(skus))
	for sku := range skus {
		out = append(out, aggregateSKU(sku, bySKU[sku], l, opts))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })

	zap.L().Debug("lots: aggregated",
		zap.Int("skus", len(out)),
		zap.Int("matched_events", countEvents(bySKU)),
	)
	return out
}

func aggregateSKU(sku string, events []model.DistributionEvent, l *ledger.Ledger, opts Options) Status {
	st := Status{SKU: sku, Source: SourceNone}

	if latest, ok := mostRecent(events); ok {
		if year, known := l.Year(latest.Lot); known && year >= opts.CutoffYear {
			st.CurrentLot = latest.Lot
			st.Year = intPtr(year)
			st.Source = SourceDistribution

			lifetime, period := 0, 0
			for _, e := range events {
				if e.Lot != latest.Lot {
					continue
				}
				lifetime += e.Quantity
				if opts.inPeriod(e.ShipDate) {
					period += e.Quantity
				}
			}
			st.LifetimeDistributed = intPtr(lifetime)
			if opts.hasPeriod() {
				st.PeriodDistributed = intPtr(period)
			}
			if produced, ok := producedQty(l, latest.Lot); ok {
				st.Produced = intPtr(produced)
				st.Remaining = intPtr(produced - lifetime)
			}
			return st
		}
	}

	lot, ok := newestLedgerLot(sku, l)
	if !ok {
		return st
	}
	st.CurrentLot = lot
	st.Source = SourceLedgerFallback
	if year, ok := l.Year(lot); ok {
		st.Year = intPtr(year)
	}
	if produced, ok := producedQty(l, lot); ok {
		st.Produced = intPtr(produced)
	}
	return st
}

// mostRecent returns the lot-bearing event with the latest ship date.
// Events without a lot are skipped. Events without a ship date rank oldest;
// ties go to the later stored event.
func mostRecent(events []model.DistributionEvent) (model.DistributionEvent, bool) {
	var best model.DistributionEvent
	found := false
	for _, e := range events {
		if e.Lot == "" {
			continue
		}
		if !found || newer(e, best) {
			best, found = e, true
		}
	}
	return best, found
}

func newer(a, b model.DistributionEvent) bool {
	switch {
	case a.ShipDate == nil && b.ShipDate == nil:
		return a.ID > b.ID
	case a.ShipDate == nil:
		return false
	case b.ShipDate == nil:
		return true
	case a.ShipDate.Equal(*b.ShipDate):
		return a.ID > b.ID
	}
	return a.ShipDate.After(*b.ShipDate)
}

// newestLedgerLot picks the SKU's lot with the latest manufacture year
// regardless of any cutoff. Lots without a year rank below dated ones;
// ties go to the lot listed last.
func newestLedgerLot(sku string, l *ledger.Ledger) (string, bool) {
	lots := l.LotsForSKU(sku)
	if len(lots) == 0 {
		return "", false
	}
	best, bestYear := "", -1
	for _, lot := range lots {
		year, ok := l.Year(lot)
		if !ok {
			year = 0
		}
		if year >= bestYear {
			best, bestYear = lot, year
		}
	}
	return best, true
}

func producedQty(l *ledger.Ledger, lot string) (int, bool) {
	if l == nil {
		return 0, false
	}
	n, ok := l.Produced[lot]
	return n, ok
}

func countEvents(bySKU map[string][]model.DistributionEvent) int {
	n := 0
	for _, evs := range bySKU {
		n += len(evs)
	}
	return n
}

func intPtr(n int) *int { return &n }
