package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/orderrecon/internal/model"
)

var (
	// ErrConflict is returned when a write collides with a unique constraint
	// (order number, customer canonical key or code, event fingerprint).
	ErrConflict = eris.New("store: unique constraint conflict")

	// ErrNotFound is returned by updates that target a missing row.
	ErrNotFound = eris.New("store: not found")
)

// KeyLevel selects one of the stored customer identity keys.
type KeyLevel string

const (
	KeyAddress  KeyLevel = "address_key"
	KeyLocality KeyLevel = "locality_key"
	KeyName     KeyLevel = "name_key"
)

// Valid reports whether l names a stored key column.
func (l KeyLevel) Valid() bool {
	switch l {
	case KeyAddress, KeyLocality, KeyName:
		return true
	}
	return false
}

// CustomerStore persists resolved customer identities.
type CustomerStore interface {
	GetCustomer(ctx context.Context, id int64) (*model.Customer, error)
	FindCustomerByCode(ctx context.Context, code string) (*model.Customer, error)
	FindCustomerByCanonicalKey(ctx context.Context, key string) (*model.Customer, error)
	// FindCustomersByKey returns every customer whose key at the given level
	// equals key, oldest first.
	FindCustomersByKey(ctx context.Context, level KeyLevel, key string) ([]model.Customer, error)
	// CreateCustomer inserts c and sets its ID. Returns ErrConflict when the
	// canonical key or code is already taken.
	CreateCustomer(ctx context.Context, c *model.Customer) error
	UpdateCustomer(ctx context.Context, c *model.Customer) error
}

// OrderStore persists authoritative orders and their line items.
type OrderStore interface {
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*model.Order, error)
	FindOrdersByNumberKey(ctx context.Context, key string) ([]model.Order, error)
	// FindUnlinkedOrdersByCustomer returns the customer's orders that no
	// distribution event references yet.
	FindUnlinkedOrdersByCustomer(ctx context.Context, customerID int64) ([]model.Order, error)
	// CreateOrder inserts o with its lines and sets IDs. Returns ErrConflict
	// when the order number already exists.
	CreateOrder(ctx context.Context, o *model.Order) error
	UpdateOrder(ctx context.Context, o *model.Order) error
	// ReplaceOrderLines swaps the order's lines for the given ones.
	ReplaceOrderLines(ctx context.Context, orderID int64, lines []model.OrderLine) error
	ListOrdersNeedingReview(ctx context.Context) ([]model.Order, error)
}

// DocumentStore persists per-page source documents.
type DocumentStore interface {
	SaveDocument(ctx context.Context, d *model.SourceDocument) error
	ListDocumentsForOrder(ctx context.Context, orderID int64) ([]model.SourceDocument, error)
	ListDocumentsForEvent(ctx context.Context, eventID int64) ([]model.SourceDocument, error)
	ListDocumentsNeedingReview(ctx context.Context) ([]model.SourceDocument, error)
	// FindLabelOrderIDs returns the distinct orders bound to label pages
	// carrying the given tracking number.
	FindLabelOrderIDs(ctx context.Context, trackingNumber string) ([]int64, error)
}

// EventStore persists distribution events from the carrier feed.
type EventStore interface {
	// InsertEvents stores events whose fingerprint is new and returns how
	// many were inserted. Known fingerprints are skipped silently.
	InsertEvents(ctx context.Context, events []model.DistributionEvent) (int, error)
	GetEvent(ctx context.Context, id int64) (*model.DistributionEvent, error)
	GetEventByFingerprint(ctx context.Context, fingerprint string) (*model.DistributionEvent, error)
	ListUnmatchedEvents(ctx context.Context) ([]model.DistributionEvent, error)
	ListMatchedEvents(ctx context.Context) ([]model.DistributionEvent, error)
	// LinkEvent binds an unmatched event to an order and copies the order's
	// customer onto the event in the same write. It returns false when the
	// event was already matched, leaving it untouched.
	LinkEvent(ctx context.Context, eventID, orderID int64, rule model.MatchRule) (bool, error)
}

// Store defines the persistence interface for the reconciliation engine.
type Store interface {
	CustomerStore
	OrderStore
	DocumentStore
	EventStore

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
