// Package distribution links carrier-feed shipment events to orders through
// a fixed priority chain of deterministic rules.
package distribution

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orderrecon/internal/customer"
	"github.com/sells-group/orderrecon/internal/model"
	"github.com/sells-group/orderrecon/internal/order"
	"github.com/sells-group/orderrecon/internal/store"
)

// Stores is the persistence the matcher needs.
type Stores interface {
	store.OrderStore
	store.DocumentStore
	store.EventStore
}

// Matcher links distribution events to orders.
type Matcher struct {
	store    Stores
	resolver *customer.Resolver
	log      *zap.Logger
}

// NewMatcher creates a distribution matcher. The resolver is used only to
// look up feed-reported customers; it never creates them.
func NewMatcher(s Stores, resolver *customer.Resolver) *Matcher {
	return &Matcher{
		store:    s,
		resolver: resolver,
		log:      zap.L().With(zap.String("component", "distribution")),
	}
}

type rule struct {
	name model.MatchRule
	find func(ctx context.Context, e *model.DistributionEvent) (int64, bool, error)
}

func (m *Matcher) chain() []rule {
	return []rule{
		{model.MatchRuleOrderNumber, m.byOrderNumber},
		{model.MatchRuleOrderNumberShipDate, m.byOrderNumberAndShipDate},
		{model.MatchRuleCustomerShipDate, m.byCustomerAndShipDate},
		{model.MatchRuleTrackingNumber, m.byTrackingNumber},
	}
}

// Match links e to an order and returns it, or returns nil when no rule
// fires. An event that is already matched keeps its link: the existing
// order is returned and no rule runs. On success e is refreshed from the
// store, so its customer is the order's customer.
func (m *Matcher) Match(ctx context.Context, e *model.DistributionEvent) (*model.Order, error) {
	if err := m.refresh(ctx, e); err != nil {
		return nil, err
	}
	if e.Matched() {
		return m.store.GetOrder(ctx, *e.OrderID)
	}

	for _, r := range m.chain() {
		orderID, ok, err := r.find(ctx, e)
		if err != nil {
			return nil, eris.Wrapf(err, "distribution: rule %s for event %d", r.name, e.ID)
		}
		if !ok {
			continue
		}
		return m.Link(ctx, e, orderID, r.name)
	}

	m.log.Info("match: no rule fired, event stays unmatched",
		zap.Int64("event_id", e.ID),
		zap.String("reported_order_number", e.ReportedOrderNumber),
		zap.String("sku", e.SKU),
	)
	return nil, nil
}

// Link binds e to orderID through the store's single link path, which
// copies the order's customer onto the event. If e was matched in the
// meantime the existing link wins and its order is returned.
func (m *Matcher) Link(ctx context.Context, e *model.DistributionEvent, orderID int64, r model.MatchRule) (*model.Order, error) {
	linked, err := m.store.LinkEvent(ctx, e.ID, orderID, r)
	if err != nil {
		return nil, eris.Wrapf(err, "distribution: link event %d", e.ID)
	}
	if err := m.refresh(ctx, e); err != nil {
		return nil, err
	}
	if !e.Matched() {
		return nil, eris.Errorf("distribution: event %d not linked", e.ID)
	}
	if linked {
		m.log.Info("match: event linked",
			zap.Int64("event_id", e.ID),
			zap.Int64("order_id", *e.OrderID),
			zap.String("rule", string(r)),
		)
	}
	return m.store.GetOrder(ctx, *e.OrderID)
}

// RematchUnmatched runs Match over every unmatched event. Failures are
// logged per event and do not stop the pass.
func (m *Matcher) RematchUnmatched(ctx context.Context) (int, error) {
	events, err := m.store.ListUnmatchedEvents(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "distribution: list unmatched events")
	}

	matched := 0
	for i := range events {
		if ctx.Err() != nil {
			return matched, ctx.Err()
		}
		o, err := m.Match(ctx, &events[i])
		if err != nil {
			m.log.Warn("rematch: event failed", zap.Int64("event_id", events[i].ID), zap.Error(err))
			continue
		}
		if o != nil {
			matched++
		}
	}
	m.log.Info("rematch: complete",
		zap.Int("unmatched", len(events)),
		zap.Int("matched", matched),
	)
	return matched, nil
}

func (m *Matcher) refresh(ctx context.Context, e *model.DistributionEvent) error {
	if e.ID == 0 {
		return eris.New("distribution: event has no id")
	}
	stored, err := m.store.GetEvent(ctx, e.ID)
	if err != nil {
		return eris.Wrapf(err, "distribution: load event %d", e.ID)
	}
	if stored == nil {
		return eris.Wrapf(store.ErrNotFound, "distribution: event %d", e.ID)
	}
	*e = *stored
	return nil
}

// Rule 1: the reported order number names an order exactly.
func (m *Matcher) byOrderNumber(ctx context.Context, e *model.DistributionEvent) (int64, bool, error) {
	number := order.CleanOrderNumber(e.ReportedOrderNumber)
	if number == "" {
		return 0, false, nil
	}
	o, err := m.store.GetOrderByNumber(ctx, number)
	if err != nil || o == nil {
		return 0, false, err
	}
	return o.ID, true, nil
}

// Rule 2: the reported number matches after normalization and exactly one
// such order shipped on the event's date.
func (m *Matcher) byOrderNumberAndShipDate(ctx context.Context, e *model.DistributionEvent) (int64, bool, error) {
	key := order.NormalizeOrderNumber(e.ReportedOrderNumber)
	if key == "" || e.ShipDate == nil {
		return 0, false, nil
	}
	candidates, err := m.store.FindOrdersByNumberKey(ctx, key)
	if err != nil {
		return 0, false, err
	}
	return m.single(e, "order_number_ship_date", onShipDate(candidates, *e.ShipDate))
}

// Rule 3: the feed-reported customer resolves to a known customer with
// exactly one not-yet-linked order on the event's date.
func (m *Matcher) byCustomerAndShipDate(ctx context.Context, e *model.DistributionEvent) (int64, bool, error) {
	if e.ShipDate == nil || e.ShipToName == "" {
		return 0, false, nil
	}
	c, err := m.resolver.Find(ctx, customer.Fields{
		Name: e.ShipToName,
		Address: model.Address{
			City:       e.ShipToCity,
			State:      e.ShipToState,
			PostalCode: e.ShipToPostal,
		},
	})
	if err != nil || c == nil {
		return 0, false, err
	}
	candidates, err := m.store.FindUnlinkedOrdersByCustomer(ctx, c.ID)
	if err != nil {
		return 0, false, err
	}
	return m.single(e, "customer_ship_date", onShipDate(candidates, *e.ShipDate))
}

// Rule 4: a stored label page with the event's tracking number belongs to
// exactly one order.
func (m *Matcher) byTrackingNumber(ctx context.Context, e *model.DistributionEvent) (int64, bool, error) {
	if e.TrackingNumber == "" {
		return 0, false, nil
	}
	ids, err := m.store.FindLabelOrderIDs(ctx, e.TrackingNumber)
	if err != nil {
		return 0, false, err
	}
	if len(ids) > 1 {
		m.log.Info("match: ambiguous tracking number",
			zap.Int64("event_id", e.ID),
			zap.Int("candidates", len(ids)),
		)
	}
	if len(ids) != 1 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

func (m *Matcher) single(e *model.DistributionEvent, rule string, ids []int64) (int64, bool, error) {
	switch len(ids) {
	case 0:
		return 0, false, nil
	case 1:
		return ids[0], true, nil
	}
	m.log.Info("match: ambiguous candidates, rule skipped",
		zap.Int64("event_id", e.ID),
		zap.String("rule", rule),
		zap.Int("candidates", len(ids)),
	)
	return 0, false, nil
}

// onShipDate returns the orders that shipped on day. An order without a
// ship date is compared by its order date.
func onShipDate(orders []model.Order, day time.Time) []int64 {
	var ids []int64
	for _, o := range orders {
		d := o.ShipDate
		if d == nil {
			d = o.OrderDate
		}
		if d != nil && sameDay(*d, day) {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
