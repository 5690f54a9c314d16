package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sells-group/orderrecon/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// SQLite has a single writer; one connection keeps concurrent batches
	// from tripping over lock upgrades inside transactions.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS customers (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	canonical_key TEXT NOT NULL UNIQUE,
	code          TEXT UNIQUE,
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
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS orders (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	order_number      TEXT NOT NULL UNIQUE,
	number_key        TEXT NOT NULL,
	order_date        TEXT,
	ship_date         TEXT,
	customer_id       INTEGER NOT NULL REFERENCES customers(id),
	ship_to_name      TEXT NOT NULL DEFAULT '',
	ship_to_street    TEXT NOT NULL DEFAULT '',
	ship_to_city      TEXT NOT NULL DEFAULT '',
	ship_to_state     TEXT NOT NULL DEFAULT '',
	ship_to_postal    TEXT NOT NULL DEFAULT '',
	needs_line_review INTEGER NOT NULL DEFAULT 0,
	review_notes      TEXT NOT NULL DEFAULT '[]',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS order_lines (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id INTEGER NOT NULL REFERENCES orders(id),
	line_no  INTEGER NOT NULL,
	sku      TEXT NOT NULL DEFAULT '',
	quantity INTEGER,
	lot      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS distribution_events (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
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
	order_id              INTEGER REFERENCES orders(id),
	customer_id           INTEGER REFERENCES customers(id),
	match_rule            TEXT,
	matched_at            DATETIME,
	created_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS source_documents (
	id              TEXT PRIMARY KEY,
	document_sha    TEXT NOT NULL,
	filename        TEXT NOT NULL DEFAULT '',
	page_number     INTEGER NOT NULL,
	kind            TEXT NOT NULL,
	text            TEXT NOT NULL DEFAULT '',
	tracking_number TEXT NOT NULL DEFAULT '',
	order_id        INTEGER REFERENCES orders(id),
	event_id        INTEGER REFERENCES distribution_events(id),
	needs_review    INTEGER NOT NULL DEFAULT 0,
	review_reason   TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_customers_address_key ON customers(address_key);
CREATE INDEX IF NOT EXISTS idx_customers_locality_key ON customers(locality_key);
CREATE INDEX IF NOT EXISTS idx_customers_name_key ON customers(name_key);
CREATE INDEX IF NOT EXISTS idx_orders_number_key ON orders(number_key);
CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders(customer_id);
CREATE INDEX IF NOT EXISTS idx_order_lines_order_id ON order_lines(order_id);
CREATE INDEX IF NOT EXISTS idx_events_order_id ON distribution_events(order_id);
CREATE INDEX IF NOT EXISTS idx_source_documents_order_id ON source_documents(order_id);
CREATE INDEX IF NOT EXISTS idx_source_documents_tracking ON source_documents(tracking_number);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Customers ---

func (s *SQLiteStore) GetCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	return s.oneCustomer(row, "get customer")
}

func (s *SQLiteStore) FindCustomerByCode(ctx context.Context, code string) (*model.Customer, error) {
	if code == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE code = ?`, code)
	return s.oneCustomer(row, "find customer by code")
}

func (s *SQLiteStore) FindCustomerByCanonicalKey(ctx context.Context, key string) (*model.Customer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE canonical_key = ?`, key)
	return s.oneCustomer(row, "find customer by canonical key")
}

func (s *SQLiteStore) oneCustomer(row *sql.Row, op string) (*model.Customer, error) {
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	return c, nil
}

func (s *SQLiteStore) FindCustomersByKey(ctx context.Context, level KeyLevel, key string) ([]model.Customer, error) {
	if !level.Valid() {
		return nil, eris.Errorf("sqlite: unknown key level %q", level)
	}
	if key == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM customers WHERE %s = ? ORDER BY id`, customerColumns, level), key)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find customers by %s", level)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan customer")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: find customers iterate")
}

func (s *SQLiteStore) CreateCustomer(ctx context.Context, c *model.Customer) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (canonical_key, code, name, address_key, locality_key, name_key,
			street, street2, city, state, postal_code, contact_name, phone, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.CanonicalKey, nullIfEmpty(c.Code), c.Name, c.AddressKey, c.LocalityKey, c.NameKey,
		c.Street, c.Street2, c.City, c.State, c.PostalCode, c.ContactName, c.Phone, now, now,
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return eris.Wrapf(ErrConflict, "sqlite: insert customer %s", c.CanonicalKey)
		}
		return eris.Wrap(err, "sqlite: insert customer")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: customer id")
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) UpdateCustomer(ctx context.Context, c *model.Customer) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE customers SET code = ?, name = ?, address_key = ?, locality_key = ?, name_key = ?,
			street = ?, street2 = ?, city = ?, state = ?, postal_code = ?, contact_name = ?, phone = ?,
			updated_at = ?
		 WHERE id = ?`,
		nullIfEmpty(c.Code), c.Name, c.AddressKey, c.LocalityKey, c.NameKey,
		c.Street, c.Street2, c.City, c.State, c.PostalCode, c.ContactName, c.Phone, now, c.ID,
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return eris.Wrapf(ErrConflict, "sqlite: update customer %d", c.ID)
		}
		return eris.Wrapf(err, "sqlite: update customer %d", c.ID)
	}
	c.UpdatedAt = now
	return checkRowsAffected(res, "customer", c.ID)
}

// --- Orders ---

func (s *SQLiteStore) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	return s.oneOrder(ctx, row, "get order")
}

func (s *SQLiteStore) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = ?`, number)
	return s.oneOrder(ctx, row, "get order by number")
}

func (s *SQLiteStore) oneOrder(ctx context.Context, row *sql.Row, op string) (*model.Order, error) {
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	if o.Lines, err = s.orderLines(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *SQLiteStore) orderLines(ctx context.Context, orderID int64) ([]model.OrderLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+lineColumns+` FROM order_lines WHERE order_id = ? ORDER BY line_no`, orderID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list lines for order %d", orderID)
	}
	defer rows.Close() //nolint:errcheck

	var lines []model.OrderLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan order line")
		}
		lines = append(lines, l)
	}
	return lines, eris.Wrap(rows.Err(), "sqlite: list lines iterate")
}

func (s *SQLiteStore) FindOrdersByNumberKey(ctx context.Context, key string) ([]model.Order, error) {
	return s.listOrders(ctx, "find orders by number key",
		`SELECT `+orderColumns+` FROM orders WHERE number_key = ? ORDER BY id`, key)
}

func (s *SQLiteStore) FindUnlinkedOrdersByCustomer(ctx context.Context, customerID int64) ([]model.Order, error) {
	return s.listOrders(ctx, "find unlinked orders",
		`SELECT `+orderColumns+` FROM orders o
		 WHERE o.customer_id = ?
		   AND NOT EXISTS (SELECT 1 FROM distribution_events e WHERE e.order_id = o.id)
		 ORDER BY o.id`, customerID)
}

func (s *SQLiteStore) ListOrdersNeedingReview(ctx context.Context) ([]model.Order, error) {
	return s.listOrders(ctx, "list orders needing review",
		`SELECT `+orderColumns+` FROM orders WHERE needs_line_review = 1 ORDER BY id`)
}

func (s *SQLiteStore) listOrders(ctx context.Context, op, query string, args ...any) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: %s: scan", op)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		rows.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "sqlite: %s: iterate", op)
	}
	rows.Close() //nolint:errcheck

	// Lines are loaded after the cursor is released; the pool holds a
	// single connection.
	for i := range orders {
		if orders[i].Lines, err = s.orderLines(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *SQLiteStore) CreateOrder(ctx context.Context, o *model.Order) error {
	notes, err := encodeNotes(o.ReviewNotes)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin create order")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`INSERT INTO orders (order_number, number_key, order_date, ship_date, customer_id,
			ship_to_name, ship_to_street, ship_to_city, ship_to_state, ship_to_postal,
			needs_line_review, review_notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderNumber, o.NumberKey, dateValue(o.OrderDate), dateValue(o.ShipDate), o.CustomerID,
		o.ShipToName, o.ShipToStreet, o.ShipToCity, o.ShipToState, o.ShipToPostal,
		o.NeedsLineReview, notes, now, now,
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return eris.Wrapf(ErrConflict, "sqlite: insert order %s", o.OrderNumber)
		}
		return eris.Wrapf(err, "sqlite: insert order %s", o.OrderNumber)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: order id")
	}

	if err := insertLinesTx(ctx, tx, id, o.Lines); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit create order")
	}

	o.ID = id
	o.CreatedAt = now
	o.UpdatedAt = now
	for i := range o.Lines {
		o.Lines[i].OrderID = id
	}
	return nil
}

func insertLinesTx(ctx context.Context, tx *sql.Tx, orderID int64, lines []model.OrderLine) error {
	for i := range lines {
		lines[i].LineNo = i + 1
		res, err := tx.ExecContext(ctx,
			`INSERT INTO order_lines (order_id, line_no, sku, quantity, lot) VALUES (?, ?, ?, ?, ?)`,
			orderID, lines[i].LineNo, lines[i].SKU, lines[i].Quantity, lines[i].Lot,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert line %d for order %d", i+1, orderID)
		}
		if lines[i].ID, err = res.LastInsertId(); err != nil {
			return eris.Wrap(err, "sqlite: line id")
		}
		lines[i].OrderID = orderID
	}
	return nil
}

func (s *SQLiteStore) UpdateOrder(ctx context.Context, o *model.Order) error {
	notes, err := encodeNotes(o.ReviewNotes)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET order_date = ?, ship_date = ?, ship_to_name = ?, ship_to_street = ?,
			ship_to_city = ?, ship_to_state = ?, ship_to_postal = ?, needs_line_review = ?,
			review_notes = ?, updated_at = ?
		 WHERE id = ?`,
		dateValue(o.OrderDate), dateValue(o.ShipDate), o.ShipToName, o.ShipToStreet,
		o.ShipToCity, o.ShipToState, o.ShipToPostal, o.NeedsLineReview, notes, now, o.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update order %d", o.ID)
	}
	o.UpdatedAt = now
	return checkRowsAffected(res, "order", o.ID)
}

func (s *SQLiteStore) ReplaceOrderLines(ctx context.Context, orderID int64, lines []model.OrderLine) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace lines")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_lines WHERE order_id = ?`, orderID); err != nil {
		return eris.Wrapf(err, "sqlite: delete lines for order %d", orderID)
	}
	if err := insertLinesTx(ctx, tx, orderID, lines); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit replace lines")
}

// --- Source documents ---

func (s *SQLiteStore) SaveDocument(ctx context.Context, d *model.SourceDocument) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO source_documents (id, document_sha, filename, page_number, kind, text, tracking_number,
			order_id, event_id, needs_review, review_reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.DocumentSHA, d.Filename, d.PageNumber, string(d.Kind), d.Text, d.TrackingNumber,
		d.OrderID, d.EventID, d.NeedsReview, d.ReviewReason, d.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert source document %s page %d", d.DocumentSHA, d.PageNumber)
}

func (s *SQLiteStore) ListDocumentsForOrder(ctx context.Context, orderID int64) ([]model.SourceDocument, error) {
	return s.listDocuments(ctx, `WHERE order_id = ?`, orderID)
}

func (s *SQLiteStore) ListDocumentsForEvent(ctx context.Context, eventID int64) ([]model.SourceDocument, error) {
	return s.listDocuments(ctx, `WHERE event_id = ?`, eventID)
}

func (s *SQLiteStore) ListDocumentsNeedingReview(ctx context.Context) ([]model.SourceDocument, error) {
	return s.listDocuments(ctx, `WHERE needs_review = 1`)
}

func (s *SQLiteStore) listDocuments(ctx context.Context, where string, args ...any) ([]model.SourceDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM source_documents `+where+` ORDER BY created_at, page_number`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list source documents")
	}
	defer rows.Close() //nolint:errcheck

	var docs []model.SourceDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source document")
		}
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: list source documents iterate")
}

func (s *SQLiteStore) FindLabelOrderIDs(ctx context.Context, trackingNumber string) ([]int64, error) {
	if trackingNumber == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT order_id FROM source_documents
		 WHERE kind = ? AND tracking_number = ? AND order_id IS NOT NULL
		 ORDER BY order_id`,
		string(model.PageKindLabel), trackingNumber)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find label orders")
	}
	defer rows.Close() //nolint:errcheck

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan label order id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: find label orders iterate")
}

// --- Distribution events ---

func (s *SQLiteStore) InsertEvents(ctx context.Context, events []model.DistributionEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert events")
	}
	defer tx.Rollback() //nolint:errcheck

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(eventInsertColumns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO distribution_events (%s) VALUES (%s) ON CONFLICT(fingerprint) DO NOTHING`,
		strings.Join(eventInsertColumns, ", "), placeholders,
	))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert event")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	inserted := 0
	for _, e := range events {
		res, err := stmt.ExecContext(ctx, eventArgs(e, now)...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert event %s", e.Fingerprint)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert events")
	}
	return inserted, nil
}

func (s *SQLiteStore) GetEvent(ctx context.Context, id int64) (*model.DistributionEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM distribution_events WHERE id = ?`, id)
	return oneEvent(row)
}

func (s *SQLiteStore) GetEventByFingerprint(ctx context.Context, fingerprint string) (*model.DistributionEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM distribution_events WHERE fingerprint = ?`, fingerprint)
	return oneEvent(row)
}

func oneEvent(row *sql.Row) (*model.DistributionEvent, error) {
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get event")
	}
	return e, nil
}

func (s *SQLiteStore) ListUnmatchedEvents(ctx context.Context) ([]model.DistributionEvent, error) {
	return s.listEvents(ctx, `WHERE order_id IS NULL`)
}

func (s *SQLiteStore) ListMatchedEvents(ctx context.Context) ([]model.DistributionEvent, error) {
	return s.listEvents(ctx, `WHERE order_id IS NOT NULL`)
}

func (s *SQLiteStore) listEvents(ctx context.Context, where string) ([]model.DistributionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM distribution_events `+where+` ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list events")
	}
	defer rows.Close() //nolint:errcheck

	var events []model.DistributionEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		events = append(events, *e)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list events iterate")
}

func (s *SQLiteStore) LinkEvent(ctx context.Context, eventID, orderID int64, rule model.MatchRule) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE distribution_events
		 SET order_id = o.id, customer_id = o.customer_id, match_rule = ?, matched_at = ?
		 FROM (SELECT id, customer_id FROM orders WHERE id = ?) AS o
		 WHERE distribution_events.id = ? AND distribution_events.order_id IS NULL`,
		string(rule), time.Now().UTC(), orderID, eventID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: link event %d to order %d", eventID, orderID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %d", entity, id)
	}
	return nil
}

// isSQLiteUnique reports whether err is a UNIQUE or PRIMARY KEY violation.
func isSQLiteUnique(err error) bool {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
