package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/orderrecon/internal/db"
	"github.com/sells-group/orderrecon/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS customers (
	id            BIGSERIAL PRIMARY KEY,
	canonical_key TEXT NOT NULL UNIQUE,
	code          TEXT,
	name          TEXT NOT NULL DEFAULT '',
	address_key   TEXT NOT NULL DEFAULT '',
	locality_key  TEXT NOT NULL DEFAULT '',
	name_key      TEXT NOT NULL DEFAULT '',
	street        TEXT NOT NULL DEFAULT '',
	street2       TEXT NOT NULL DEFAULT '',
	city          TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL DEFAULT '',
	postal_code   TEXT NOT NULL DEFAULT '',
	contact_name  TEXT NOT NULL DEFAULT '',
	phone         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_customers_code ON customers(code) WHERE code IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_customers_address_key ON customers(address_key);
CREATE INDEX IF NOT EXISTS idx_customers_locality_key ON customers(locality_key);
CREATE INDEX IF NOT EXISTS idx_customers_name_key ON customers(name_key);

CREATE TABLE IF NOT EXISTS orders (
	id                BIGSERIAL PRIMARY KEY,
	order_number      TEXT NOT NULL UNIQUE,
	number_key        TEXT NOT NULL,
	order_date        TEXT,
	ship_date         TEXT,
	customer_id       BIGINT NOT NULL REFERENCES customers(id),
	ship_to_name      TEXT NOT NULL DEFAULT '',
	ship_to_street    TEXT NOT NULL DEFAULT '',
	ship_to_city      TEXT NOT NULL DEFAULT '',
	ship_to_state     TEXT NOT NULL DEFAULT '',
	ship_to_postal    TEXT NOT NULL DEFAULT '',
	needs_line_review BOOLEAN NOT NULL DEFAULT false,
	review_notes      TEXT NOT NULL DEFAULT '[]',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_orders_number_key ON orders(number_key);
CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders(customer_id);

CREATE TABLE IF NOT EXISTS order_lines (
	id       BIGSERIAL PRIMARY KEY,
	order_id BIGINT NOT NULL REFERENCES orders(id),
	line_no  INTEGER NOT NULL,
	sku      TEXT NOT NULL DEFAULT '',
	quantity INTEGER,
	lot      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_order_lines_order_id ON order_lines(order_id);

CREATE TABLE IF NOT EXISTS distribution_events (
	id                    BIGSERIAL PRIMARY KEY,
	fingerprint           TEXT NOT NULL UNIQUE,
	external_id           TEXT NOT NULL DEFAULT '',
	reported_order_number TEXT NOT NULL DEFAULT '',
	ship_date             TEXT,
	sku                   TEXT NOT NULL DEFAULT '',
	lot                   TEXT NOT NULL DEFAULT '',
	quantity              INTEGER NOT NULL DEFAULT 0,
	tracking_number       TEXT NOT NULL DEFAULT '',
	ship_to_name          TEXT NOT NULL DEFAULT '',
	ship_to_city          TEXT NOT NULL DEFAULT '',
	ship_to_state         TEXT NOT NULL DEFAULT '',
	ship_to_postal        TEXT NOT NULL DEFAULT '',
	order_id              BIGINT REFERENCES orders(id),
	customer_id           BIGINT REFERENCES customers(id),
	match_rule            TEXT,
	matched_at            TIMESTAMPTZ,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_events_order_id ON distribution_events(order_id);
CREATE INDEX IF NOT EXISTS idx_events_unmatched ON distribution_events(id) WHERE order_id IS NULL;

CREATE TABLE IF NOT EXISTS source_documents (
	id              TEXT PRIMARY KEY,
	document_sha    TEXT NOT NULL,
	filename        TEXT NOT NULL DEFAULT '',
	page_number     INTEGER NOT NULL,
	kind            TEXT NOT NULL,
	text            TEXT NOT NULL DEFAULT '',
	tracking_number TEXT NOT NULL DEFAULT '',
	order_id        BIGINT REFERENCES orders(id),
	event_id        BIGINT REFERENCES distribution_events(id),
	needs_review    BOOLEAN NOT NULL DEFAULT false,
	review_reason   TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_source_documents_order_id ON source_documents(order_id);
CREATE INDEX IF NOT EXISTS idx_source_documents_tracking ON source_documents(tracking_number) WHERE kind = 'label';
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Customers ---

func (s *PostgresStore) GetCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	return s.oneCustomer(ctx, "get customer", `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
}

func (s *PostgresStore) FindCustomerByCode(ctx context.Context, code string) (*model.Customer, error) {
	if code == "" {
		return nil, nil
	}
	return s.oneCustomer(ctx, "find customer by code", `SELECT `+customerColumns+` FROM customers WHERE code = $1`, code)
}

func (s *PostgresStore) FindCustomerByCanonicalKey(ctx context.Context, key string) (*model.Customer, error) {
	return s.oneCustomer(ctx, "find customer by canonical key",
		`SELECT `+customerColumns+` FROM customers WHERE canonical_key = $1`, key)
}

func (s *PostgresStore) oneCustomer(ctx context.Context, op, query string, arg any) (*model.Customer, error) {
	c, err := scanCustomer(s.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	return c, nil
}

func (s *PostgresStore) FindCustomersByKey(ctx context.Context, level KeyLevel, key string) ([]model.Customer, error) {
	if !level.Valid() {
		return nil, eris.Errorf("postgres: unknown key level %q", level)
	}
	if key == "" {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM customers WHERE %s = $1 ORDER BY id`, customerColumns, level), key)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find customers by %s", level)
	}
	defer rows.Close()

	var out []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan customer")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: find customers iterate")
}

func (s *PostgresStore) CreateCustomer(ctx context.Context, c *model.Customer) error {
	now := time.Now().UTC()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO customers (canonical_key, code, name, address_key, locality_key, name_key,
			street, street2, city, state, postal_code, contact_name, phone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id`,
		c.CanonicalKey, nullIfEmpty(c.Code), c.Name, c.AddressKey, c.LocalityKey, c.NameKey,
		c.Street, c.Street2, c.City, c.State, c.PostalCode, c.ContactName, c.Phone, now, now,
	).Scan(&c.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return eris.Wrapf(ErrConflict, "postgres: insert customer %s", c.CanonicalKey)
		}
		return eris.Wrap(err, "postgres: insert customer")
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (s *PostgresStore) UpdateCustomer(ctx context.Context, c *model.Customer) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE customers SET code = $1, name = $2, address_key = $3, locality_key = $4, name_key = $5,
			street = $6, street2 = $7, city = $8, state = $9, postal_code = $10, contact_name = $11,
			phone = $12, updated_at = $13
		 WHERE id = $14`,
		nullIfEmpty(c.Code), c.Name, c.AddressKey, c.LocalityKey, c.NameKey,
		c.Street, c.Street2, c.City, c.State, c.PostalCode, c.ContactName, c.Phone, now, c.ID,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return eris.Wrapf(ErrConflict, "postgres: update customer %d", c.ID)
		}
		return eris.Wrapf(err, "postgres: update customer %d", c.ID)
	}
	c.UpdatedAt = now
	return checkTag(tag, "customer", c.ID)
}

// --- Orders ---

func (s *PostgresStore) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	return s.oneOrder(ctx, "get order", `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (s *PostgresStore) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	return s.oneOrder(ctx, "get order by number", `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, number)
}

func (s *PostgresStore) oneOrder(ctx context.Context, op, query string, arg any) (*model.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	if o.Lines, err = s.orderLines(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *PostgresStore) orderLines(ctx context.Context, orderID int64) ([]model.OrderLine, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+lineColumns+` FROM order_lines WHERE order_id = $1 ORDER BY line_no`, orderID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list lines for order %d", orderID)
	}
	defer rows.Close()

	var lines []model.OrderLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan order line")
		}
		lines = append(lines, l)
	}
	return lines, eris.Wrap(rows.Err(), "postgres: list lines iterate")
}

func (s *PostgresStore) FindOrdersByNumberKey(ctx context.Context, key string) ([]model.Order, error) {
	return s.listOrders(ctx, "find orders by number key",
		`SELECT `+orderColumns+` FROM orders WHERE number_key = $1 ORDER BY id`, key)
}

func (s *PostgresStore) FindUnlinkedOrdersByCustomer(ctx context.Context, customerID int64) ([]model.Order, error) {
	return s.listOrders(ctx, "find unlinked orders",
		`SELECT `+orderColumns+` FROM orders o
		 WHERE o.customer_id = $1
		   AND NOT EXISTS (SELECT 1 FROM distribution_events e WHERE e.order_id = o.id)
		 ORDER BY o.id`, customerID)
}

func (s *PostgresStore) ListOrdersNeedingReview(ctx context.Context) ([]model.Order, error) {
	return s.listOrders(ctx, "list orders needing review",
		`SELECT `+orderColumns+` FROM orders WHERE needs_line_review ORDER BY id`)
}

func (s *PostgresStore) listOrders(ctx context.Context, op, query string, args ...any) ([]model.Order, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, eris.Wrapf(err, "postgres: %s: scan", op)
		}
		orders = append(orders, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres: %s: iterate", op)
	}

	for i := range orders {
		if orders[i].Lines, err = s.orderLines(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *PostgresStore) CreateOrder(ctx context.Context, o *model.Order) error {
	notes, err := encodeNotes(o.ReviewNotes)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin create order")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (order_number, number_key, order_date, ship_date, customer_id,
			ship_to_name, ship_to_street, ship_to_city, ship_to_state, ship_to_postal,
			needs_line_review, review_notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id`,
		o.OrderNumber, o.NumberKey, dateValue(o.OrderDate), dateValue(o.ShipDate), o.CustomerID,
		o.ShipToName, o.ShipToStreet, o.ShipToCity, o.ShipToState, o.ShipToPostal,
		o.NeedsLineReview, notes, now, now,
	).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return eris.Wrapf(ErrConflict, "postgres: insert order %s", o.OrderNumber)
		}
		return eris.Wrapf(err, "postgres: insert order %s", o.OrderNumber)
	}

	if err := copyLines(ctx, tx, id, o.Lines); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit create order")
	}

	o.ID = id
	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

var lineCopyColumns = []string{"order_id", "line_no", "sku", "quantity", "lot"}

// copyLines bulk-inserts lines with COPY inside the caller's transaction.
// Line IDs are not read back.
func copyLines(ctx context.Context, tx pgx.Tx, orderID int64, lines []model.OrderLine) error {
	rows := make([][]any, len(lines))
	for i := range lines {
		lines[i].OrderID = orderID
		lines[i].LineNo = i + 1
		rows[i] = []any{orderID, lines[i].LineNo, lines[i].SKU, lines[i].Quantity, lines[i].Lot}
	}
	if _, err := db.CopyFrom(ctx, tx, "order_lines", lineCopyColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: copy lines for order %d", orderID)
	}
	return nil
}

func (s *PostgresStore) UpdateOrder(ctx context.Context, o *model.Order) error {
	notes, err := encodeNotes(o.ReviewNotes)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET order_date = $1, ship_date = $2, ship_to_name = $3, ship_to_street = $4,
			ship_to_city = $5, ship_to_state = $6, ship_to_postal = $7, needs_line_review = $8,
			review_notes = $9, updated_at = $10
		 WHERE id = $11`,
		dateValue(o.OrderDate), dateValue(o.ShipDate), o.ShipToName, o.ShipToStreet,
		o.ShipToCity, o.ShipToState, o.ShipToPostal, o.NeedsLineReview, notes, now, o.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update order %d", o.ID)
	}
	o.UpdatedAt = now
	return checkTag(tag, "order", o.ID)
}

func (s *PostgresStore) ReplaceOrderLines(ctx context.Context, orderID int64, lines []model.OrderLine) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace lines")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM order_lines WHERE order_id = $1`, orderID); err != nil {
		return eris.Wrapf(err, "postgres: delete lines for order %d", orderID)
	}
	if err := copyLines(ctx, tx, orderID, lines); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace lines")
}

// --- Source documents ---

func (s *PostgresStore) SaveDocument(ctx context.Context, d *model.SourceDocument) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO source_documents (id, document_sha, filename, page_number, kind, text, tracking_number,
			order_id, event_id, needs_review, review_reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		d.ID, d.DocumentSHA, d.Filename, d.PageNumber, string(d.Kind), d.Text, d.TrackingNumber,
		d.OrderID, d.EventID, d.NeedsReview, d.ReviewReason, d.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert source document %s page %d", d.DocumentSHA, d.PageNumber)
}

func (s *PostgresStore) ListDocumentsForOrder(ctx context.Context, orderID int64) ([]model.SourceDocument, error) {
	return s.listDocuments(ctx, `WHERE order_id = $1`, orderID)
}

func (s *PostgresStore) ListDocumentsForEvent(ctx context.Context, eventID int64) ([]model.SourceDocument, error) {
	return s.listDocuments(ctx, `WHERE event_id = $1`, eventID)
}

func (s *PostgresStore) ListDocumentsNeedingReview(ctx context.Context) ([]model.SourceDocument, error) {
	return s.listDocuments(ctx, `WHERE needs_review`)
}

func (s *PostgresStore) listDocuments(ctx context.Context, where string, args ...any) ([]model.SourceDocument, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM source_documents `+where+` ORDER BY created_at, page_number`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list source documents")
	}
	defer rows.Close()

	var docs []model.SourceDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan source document")
		}
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: list source documents iterate")
}

func (s *PostgresStore) FindLabelOrderIDs(ctx context.Context, trackingNumber string) ([]int64, error) {
	if trackingNumber == "" {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT order_id FROM source_documents
		 WHERE kind = $1 AND tracking_number = $2 AND order_id IS NOT NULL
		 ORDER BY order_id`,
		string(model.PageKindLabel), trackingNumber)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find label orders")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan label order id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: find label orders iterate")
}

// --- Distribution events ---

func (s *PostgresStore) InsertEvents(ctx context.Context, events []model.DistributionEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([][]any, len(events))
	for i, e := range events {
		rows[i] = eventArgs(e, now)
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "distribution_events",
		Columns:      eventInsertColumns,
		ConflictKeys: []string{"fingerprint"},
		DoNothing:    true,
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert events")
	}
	return int(n), nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id int64) (*model.DistributionEvent, error) {
	return s.oneEvent(ctx, `SELECT `+eventColumns+` FROM distribution_events WHERE id = $1`, id)
}

func (s *PostgresStore) GetEventByFingerprint(ctx context.Context, fingerprint string) (*model.DistributionEvent, error) {
	return s.oneEvent(ctx, `SELECT `+eventColumns+` FROM distribution_events WHERE fingerprint = $1`, fingerprint)
}

func (s *PostgresStore) oneEvent(ctx context.Context, query string, arg any) (*model.DistributionEvent, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get event")
	}
	return e, nil
}

func (s *PostgresStore) ListUnmatchedEvents(ctx context.Context) ([]model.DistributionEvent, error) {
	return s.listEvents(ctx, `WHERE order_id IS NULL`)
}

func (s *PostgresStore) ListMatchedEvents(ctx context.Context) ([]model.DistributionEvent, error) {
	return s.listEvents(ctx, `WHERE order_id IS NOT NULL`)
}

func (s *PostgresStore) listEvents(ctx context.Context, where string) ([]model.DistributionEvent, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+eventColumns+` FROM distribution_events `+where+` ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list events")
	}
	defer rows.Close()

	var events []model.DistributionEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		events = append(events, *e)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list events iterate")
}

func (s *PostgresStore) LinkEvent(ctx context.Context, eventID, orderID int64, rule model.MatchRule) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE distribution_events e
		 SET order_id = o.id, customer_id = o.customer_id, match_rule = $1, matched_at = $2
		 FROM orders o
		 WHERE o.id = $3 AND e.id = $4 AND e.order_id IS NULL`,
		string(rule), time.Now().UTC(), orderID, eventID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: link event %d to order %d", eventID, orderID)
	}
	return tag.RowsAffected() == 1, nil
}

func checkTag(tag pgconn.CommandTag, entity string, id int64) error {
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "%s %d", entity, id)
	}
	return nil
}
