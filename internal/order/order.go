// Package order keeps exactly one Order per order number, merging every
// re-submitted document into the existing record.
package order

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orderrecon/internal/customer"
	"github.com/sells-group/orderrecon/internal/model"
	"github.com/sells-group/orderrecon/internal/resilience"
	"github.com/sells-group/orderrecon/internal/store"
)

// ErrNoCustomer is returned when a new order cannot be created because no
// customer field was extracted. The page is stored for review instead.
var ErrNoCustomer = eris.New("order: no customer fields extracted")

// Stores is the persistence the repository needs.
type Stores interface {
	store.OrderStore
	store.DocumentStore
}

// Fields are the order attributes observed on one document page.
type Fields struct {
	OrderDate *time.Time
	ShipDate  *time.Time
	Customer  customer.Fields
	ShipTo    model.Address
	Lines     []model.LineItem
	Rejected  []model.RejectedLine
}

// FieldsFromExtraction takes the order fields of an extracted page.
func FieldsFromExtraction(e model.ExtractedOrder) Fields {
	return Fields{
		OrderDate: e.OrderDate,
		ShipDate:  e.ShipDate,
		Customer:  customer.FieldsFromOrder(e),
		ShipTo:    e.ShipTo,
		Lines:     e.Lines,
		Rejected:  e.Rejected,
	}
}

// CleanOrderNumber trims and uppercases an order number. The result is the
// stored natural key.
func CleanOrderNumber(n string) string {
	return strings.ToUpper(strings.Join(strings.Fields(n), " "))
}

// NormalizeOrderNumber reduces an order number to uppercase alphanumerics,
// so "so-1001" and "SO 1001" share a key.
func NormalizeOrderNumber(n string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z':
			return r
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		}
		return -1
	}, n)
}

// Repository upserts orders keyed by order number.
type Repository struct {
	store    Stores
	resolver *customer.Resolver
	retries  int
	log      *zap.Logger
}

// NewRepository creates an order repository. retries bounds how often a
// unique-key collision is retried.
func NewRepository(s Stores, resolver *customer.Resolver, retries int) *Repository {
	return &Repository{
		store:    s,
		resolver: resolver,
		retries:  retries,
		log:      zap.L().With(zap.String("component", "order")),
	}
}

// Upsert creates the order for number or merges f into the existing one,
// then attaches doc to it. A concurrent writer that wins the insert is
// detected through the unique order-number constraint and the merge path
// runs instead. Returns the order and whether it was created.
func (r *Repository) Upsert(ctx context.Context, number string, f Fields, doc *model.SourceDocument) (*model.Order, bool, error) {
	number = CleanOrderNumber(number)
	if number == "" {
		return nil, false, eris.New("order: empty order number")
	}

	type result struct {
		order   *model.Order
		created bool
	}
	cfg := resilience.ForConflict(r.retries, isConflict)
	cfg.OnRetry = func(attempt int, err error) {
		r.log.Debug("upsert: order number collision, retrying merge",
			zap.String("order_number", number),
			zap.Int("attempt", attempt),
		)
	}
	res, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (result, error) {
		o, created, err := r.upsertOnce(ctx, number, f)
		return result{o, created}, err
	})
	if err != nil {
		if errors.Is(err, ErrNoCustomer) {
			return nil, false, err
		}
		return nil, false, eris.Wrapf(err, "order: upsert %s", number)
	}

	if doc != nil {
		doc.OrderID = &res.order.ID
		if err := r.store.SaveDocument(ctx, doc); err != nil {
			return nil, false, eris.Wrapf(err, "order: attach document to %s", number)
		}
	}
	return res.order, res.created, nil
}

func isConflict(err error) bool {
	return errors.Is(err, store.ErrConflict)
}

func (r *Repository) upsertOnce(ctx context.Context, number string, f Fields) (*model.Order, bool, error) {
	existing, err := r.store.GetOrderByNumber(ctx, number)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, r.merge(ctx, existing, f)
	}

	if f.Customer.Empty() {
		return nil, false, ErrNoCustomer
	}
	cust, _, err := r.resolver.Resolve(ctx, f.Customer)
	if err != nil {
		if errors.Is(err, customer.ErrNoIdentity) {
			return nil, false, ErrNoCustomer
		}
		return nil, false, err
	}

	o := &model.Order{
		OrderNumber: number,
		NumberKey:   NormalizeOrderNumber(number),
		OrderDate:   f.OrderDate,
		ShipDate:    f.ShipDate,
		CustomerID:  cust.ID,
		Lines:       toOrderLines(f.Lines),
	}
	fillShipTo(o, f.ShipTo)
	if len(f.Rejected) > 0 {
		o.NeedsLineReview = true
		o.ReviewNotes = rejectionNotes(f.Rejected)
	}

	if err := r.store.CreateOrder(ctx, o); err != nil {
		return nil, false, err
	}
	r.log.Info("upsert: created order",
		zap.String("order_number", number),
		zap.Int64("order_id", o.ID),
		zap.Int64("customer_id", cust.ID),
		zap.Int("lines", len(o.Lines)),
		zap.Bool("needs_line_review", o.NeedsLineReview),
	)
	return o, true, nil
}

// merge fills blank fields of o from f. Lines are taken only while o has
// none, so a later worse parse cannot replace a good one.
func (r *Repository) merge(ctx context.Context, o *model.Order, f Fields) error {
	changed := false
	if o.OrderDate == nil && f.OrderDate != nil {
		o.OrderDate = f.OrderDate
		changed = true
	}
	if o.ShipDate == nil && f.ShipDate != nil {
		o.ShipDate = f.ShipDate
		changed = true
	}
	if fillShipTo(o, f.ShipTo) {
		changed = true
	}

	replaceLines := len(o.Lines) == 0 && len(f.Lines) > 0
	if len(o.Lines) == 0 && len(f.Rejected) > 0 {
		if !o.NeedsLineReview {
			o.NeedsLineReview = true
			changed = true
		}
		for _, note := range rejectionNotes(f.Rejected) {
			if !slices.Contains(o.ReviewNotes, note) {
				o.ReviewNotes = append(o.ReviewNotes, note)
				changed = true
			}
		}
	}

	if replaceLines {
		lines := toOrderLines(f.Lines)
		if err := r.store.ReplaceOrderLines(ctx, o.ID, lines); err != nil {
			return err
		}
		o.Lines = lines
		r.log.Info("upsert: took line items from re-submitted document",
			zap.String("order_number", o.OrderNumber),
			zap.Int("lines", len(lines)),
		)
	}
	if changed {
		if err := r.store.UpdateOrder(ctx, o); err != nil {
			return err
		}
	}

	if !f.Customer.Empty() {
		if err := r.resolver.Enrich(ctx, o.CustomerID, f.Customer); err != nil {
			return err
		}
	}
	r.log.Debug("upsert: merged into existing order",
		zap.String("order_number", o.OrderNumber),
		zap.Int64("order_id", o.ID),
		zap.Bool("changed", changed || replaceLines),
	)
	return nil
}

func fillShipTo(o *model.Order, a model.Address) bool {
	changed := false
	set := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			changed = true
		}
	}
	set(&o.ShipToName, a.Name)
	set(&o.ShipToStreet, a.Line1)
	set(&o.ShipToCity, a.City)
	set(&o.ShipToState, a.State)
	set(&o.ShipToPostal, a.PostalCode)
	return changed
}

func toOrderLines(items []model.LineItem) []model.OrderLine {
	if len(items) == 0 {
		return nil
	}
	lines := make([]model.OrderLine, len(items))
	for i, it := range items {
		lines[i] = model.OrderLine{LineNo: i + 1, SKU: it.SKU, Quantity: it.Quantity, Lot: it.Lot}
	}
	return lines
}

func rejectionNotes(rejected []model.RejectedLine) []string {
	notes := make([]string, len(rejected))
	for i, rj := range rejected {
		notes[i] = fmt.Sprintf("line dropped (%s): %s", rj.Reason, rj.Row)
	}
	return notes
}
