// Package reconcile runs the import, synchronization and review workflows
// over the extraction, identity, order and matching components.
package reconcile

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orderrecon/internal/customer"
	"github.com/sells-group/orderrecon/internal/distribution"
	"github.com/sells-group/orderrecon/internal/extract"
	"github.com/sells-group/orderrecon/internal/ledger"
	"github.com/sells-group/orderrecon/internal/lots"
	"github.com/sells-group/orderrecon/internal/model"
	"github.com/sells-group/orderrecon/internal/ocr"
	"github.com/sells-group/orderrecon/internal/order"
	"github.com/sells-group/orderrecon/internal/store"
)

// Options configures an Engine.
type Options struct {
	// MaxConcurrentDocuments bounds ImportBatch parallelism. Default: 4.
	MaxConcurrentDocuments int
	// UpsertRetries bounds order-number collision retries. Default: 3.
	UpsertRetries int
	// FeedDateLayouts parse feed ship dates. Default: feed.DefaultDateLayouts.
	FeedDateLayouts []string
}

// Engine wires the reconciliation components over one store.
type Engine struct {
	store     store.Store
	pages     ocr.Extractor
	extractor *extract.Extractor
	resolver  *customer.Resolver
	orders    *order.Repository
	matcher   *distribution.Matcher
	opts      Options
	log       *zap.Logger
}

// New creates an Engine.
func New(s store.Store, pages ocr.Extractor, x *extract.Extractor, opts Options) *Engine {
	if opts.MaxConcurrentDocuments <= 0 {
		opts.MaxConcurrentDocuments = 4
	}
	if opts.UpsertRetries <= 0 {
		opts.UpsertRetries = 3
	}
	resolver := customer.NewResolver(s)
	return &Engine{
		store:     s,
		pages:     pages,
		extractor: x,
		resolver:  resolver,
		orders:    order.NewRepository(s, resolver, opts.UpsertRetries),
		matcher:   distribution.NewMatcher(s, resolver),
		opts:      opts,
		log:       zap.L().With(zap.String("component", "reconcile")),
	}
}

// Rematch runs the matcher over every unmatched event.
func (e *Engine) Rematch(ctx context.Context) (int, error) {
	return e.matcher.RematchUnmatched(ctx)
}

// Review lists everything waiting on a person.
type Review struct {
	Documents       []model.SourceDocument    `json:"documents"`
	Orders          []model.Order             `json:"orders"`
	UnmatchedEvents []model.DistributionEvent `json:"unmatched_events"`
}

// ReviewQueue returns unclassified or unbound pages, orders whose line
// items need review, and events no rule has matched yet.
func (e *Engine) ReviewQueue(ctx context.Context) (*Review, error) {
	docs, err := e.store.ListDocumentsNeedingReview(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: review documents")
	}
	orders, err := e.store.ListOrdersNeedingReview(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: review orders")
	}
	events, err := e.store.ListUnmatchedEvents(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: review events")
	}
	return &Review{Documents: docs, Orders: orders, UnmatchedEvents: events}, nil
}

// LotStatus aggregates every matched event against the ledger.
func (e *Engine) LotStatus(ctx context.Context, l *ledger.Ledger, opts lots.Options) ([]lots.Status, error) {
	events, err := e.store.ListMatchedEvents(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: list matched events")
	}
	return lots.Aggregate(events, l, opts), nil
}
