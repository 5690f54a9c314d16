package model

import "time"

// Customer is the resolved identity behind one or more orders.
type Customer struct {
	ID           int64  `json:"id" db:"id"`
	CanonicalKey string `json:"canonical_key" db:"canonical_key"`
	Code         string `json:"code,omitempty" db:"code"`
	Name         string `json:"name" db:"name"`

	// Identity keys at each resolution level, stored for lookup.
	AddressKey  string `json:"address_key,omitempty" db:"address_key"`
	LocalityKey string `json:"locality_key,omitempty" db:"locality_key"`
	NameKey     string `json:"name_key,omitempty" db:"name_key"`

	// Bill-to address
	Street     string `json:"street,omitempty" db:"street"`
	Street2    string `json:"street2,omitempty" db:"street2"`
	City       string `json:"city,omitempty" db:"city"`
	State      string `json:"state,omitempty" db:"state"`
	PostalCode string `json:"postal_code,omitempty" db:"postal_code"`

	// Contact
	ContactName string `json:"contact_name,omitempty" db:"contact_name"`
	Phone       string `json:"phone,omitempty" db:"phone"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Order is the single authoritative record for one order number.
type Order struct {
	ID          int64      `json:"id" db:"id"`
	OrderNumber string     `json:"order_number" db:"order_number"`
	NumberKey   string     `json:"number_key" db:"number_key"`
	OrderDate   *time.Time `json:"order_date,omitempty" db:"order_date"`
	ShipDate    *time.Time `json:"ship_date,omitempty" db:"ship_date"`
	CustomerID  int64      `json:"customer_id" db:"customer_id"`

	// Ship-to block, kept as a recipient hint only.
	ShipToName   string `json:"ship_to_name,omitempty" db:"ship_to_name"`
	ShipToStreet string `json:"ship_to_street,omitempty" db:"ship_to_street"`
	ShipToCity   string `json:"ship_to_city,omitempty" db:"ship_to_city"`
	ShipToState  string `json:"ship_to_state,omitempty" db:"ship_to_state"`
	ShipToPostal string `json:"ship_to_postal,omitempty" db:"ship_to_postal"`

	NeedsLineReview bool     `json:"needs_line_review" db:"needs_line_review"`
	ReviewNotes     []string `json:"review_notes,omitempty" db:"review_notes"`

	Lines []OrderLine `json:"lines,omitempty"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// OrderLine is one ordered SKU on an Order.
type OrderLine struct {
	ID       int64  `json:"id" db:"id"`
	OrderID  int64  `json:"order_id" db:"order_id"`
	LineNo   int    `json:"line_no" db:"line_no"`
	SKU      string `json:"sku,omitempty" db:"sku"`
	Quantity *int   `json:"quantity,omitempty" db:"quantity"`
	Lot      string `json:"lot,omitempty" db:"lot"`
}
