package store

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/orderrecon/internal/model"
)

// dateLayout is how calendar dates (order, ship) are persisted. Both
// backends store them as text so equality is a plain string comparison.
const dateLayout = "2006-01-02"

func dateValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil, eris.Wrapf(err, "store: parse date %q", *s)
	}
	return &t, nil
}

// nullIfEmpty maps "" to NULL so partial unique indexes ignore blanks.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func encodeNotes(notes []string) (string, error) {
	if len(notes) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(notes)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal review notes")
	}
	return string(b), nil
}

func decodeNotes(s *string) ([]string, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	var notes []string
	if err := json.Unmarshal([]byte(*s), &notes); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal review notes")
	}
	if len(notes) == 0 {
		return nil, nil
	}
	return notes, nil
}

// scannable is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

const customerColumns = `id, canonical_key, code, name, address_key, locality_key, name_key,
	street, street2, city, state, postal_code, contact_name, phone, created_at, updated_at`

func scanCustomer(row scannable) (*model.Customer, error) {
	var c model.Customer
	var code *string
	err := row.Scan(&c.ID, &c.CanonicalKey, &code, &c.Name, &c.AddressKey, &c.LocalityKey, &c.NameKey,
		&c.Street, &c.Street2, &c.City, &c.State, &c.PostalCode, &c.ContactName, &c.Phone,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Code = deref(code)
	return &c, nil
}

const orderColumns = `id, order_number, number_key, order_date, ship_date, customer_id,
	ship_to_name, ship_to_street, ship_to_city, ship_to_state, ship_to_postal,
	needs_line_review, review_notes, created_at, updated_at`

func scanOrder(row scannable) (*model.Order, error) {
	var o model.Order
	var orderDate, shipDate, notes *string
	err := row.Scan(&o.ID, &o.OrderNumber, &o.NumberKey, &orderDate, &shipDate, &o.CustomerID,
		&o.ShipToName, &o.ShipToStreet, &o.ShipToCity, &o.ShipToState, &o.ShipToPostal,
		&o.NeedsLineReview, &notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if o.OrderDate, err = parseDate(orderDate); err != nil {
		return nil, err
	}
	if o.ShipDate, err = parseDate(shipDate); err != nil {
		return nil, err
	}
	if o.ReviewNotes, err = decodeNotes(notes); err != nil {
		return nil, err
	}
	return &o, nil
}

const lineColumns = `id, order_id, line_no, sku, quantity, lot`

func scanLine(row scannable) (model.OrderLine, error) {
	var l model.OrderLine
	err := row.Scan(&l.ID, &l.OrderID, &l.LineNo, &l.SKU, &l.Quantity, &l.Lot)
	return l, err
}

const documentColumns = `id, document_sha, filename, page_number, kind, text, tracking_number,
	order_id, event_id, needs_review, review_reason, created_at`

func scanDocument(row scannable) (model.SourceDocument, error) {
	var d model.SourceDocument
	var kind string
	err := row.Scan(&d.ID, &d.DocumentSHA, &d.Filename, &d.PageNumber, &kind, &d.Text, &d.TrackingNumber,
		&d.OrderID, &d.EventID, &d.NeedsReview, &d.ReviewReason, &d.CreatedAt)
	d.Kind = model.PageKind(kind)
	return d, err
}

const eventColumns = `id, fingerprint, external_id, reported_order_number, ship_date, sku, lot, quantity,
	tracking_number, ship_to_name, ship_to_city, ship_to_state, ship_to_postal,
	order_id, customer_id, match_rule, matched_at, created_at`

func scanEvent(row scannable) (*model.DistributionEvent, error) {
	var e model.DistributionEvent
	var shipDate, rule *string
	err := row.Scan(&e.ID, &e.Fingerprint, &e.ExternalID, &e.ReportedOrderNumber, &shipDate, &e.SKU, &e.Lot,
		&e.Quantity, &e.TrackingNumber, &e.ShipToName, &e.ShipToCity, &e.ShipToState, &e.ShipToPostal,
		&e.OrderID, &e.CustomerID, &rule, &e.MatchedAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if e.ShipDate, err = parseDate(shipDate); err != nil {
		return nil, err
	}
	e.MatchRule = model.MatchRule(deref(rule))
	return &e, nil
}

var eventInsertColumns = []string{
	"fingerprint", "external_id", "reported_order_number", "ship_date", "sku", "lot", "quantity",
	"tracking_number", "ship_to_name", "ship_to_city", "ship_to_state", "ship_to_postal", "created_at",
}

// eventArgs returns the insert arguments for e in eventInsertColumns order.
func eventArgs(e model.DistributionEvent, now time.Time) []any {
	return []any{
		e.Fingerprint, e.ExternalID, e.ReportedOrderNumber, dateValue(e.ShipDate), e.SKU, e.Lot, e.Quantity,
		e.TrackingNumber, e.ShipToName, e.ShipToCity, e.ShipToState, e.ShipToPostal, now,
	}
}
