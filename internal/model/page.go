package model

import "time"

// PageKind is the classification assigned to one extracted document page.
type PageKind string

const (
	PageKindOrder        PageKind = "order"
	PageKindLabel        PageKind = "label"
	PageKindUnclassified PageKind = "unclassified"
)

// AllPageKinds returns every page kind in a stable order.
func AllPageKinds() []PageKind {
	return []PageKind{
		PageKindOrder,
		PageKindLabel,
		PageKindUnclassified,
	}
}

// Valid reports whether k is one of the known page kinds.
func (k PageKind) Valid() bool {
	for _, known := range AllPageKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// PageRef points back to the page an extraction came from.
type PageRef struct {
	DocumentSHA string `json:"document_sha"`
	Filename    string `json:"filename,omitempty"`
	PageNumber  int    `json:"page_number"`
}

// Address is a bill-to or ship-to block as printed on a document.
type Address struct {
	Name       string `json:"name,omitempty"`
	Attention  string `json:"attention,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// IsZero reports whether no address field was populated.
func (a Address) IsZero() bool {
	return a == Address{}
}

// LineItem is one ordered line. Every field is individually optional.
type LineItem struct {
	SKU      string `json:"sku,omitempty"`
	Quantity *int   `json:"quantity,omitempty"`
	Lot      string `json:"lot,omitempty"`
}

// RejectedLine is a line-item row dropped because a column failed its sanity check.
type RejectedLine struct {
	Row    string `json:"row"`
	Reason string `json:"reason"`
}

// ExtractedOrder is the ephemeral result of running the heuristics over an order page.
type ExtractedOrder struct {
	OrderNumber  string         `json:"order_number,omitempty"`
	OrderDate    *time.Time     `json:"order_date,omitempty"`
	ShipDate     *time.Time     `json:"ship_date,omitempty"`
	CustomerName string         `json:"customer_name,omitempty"`
	CustomerCode string         `json:"customer_code,omitempty"`
	BillTo       Address        `json:"bill_to"`
	ShipTo       Address        `json:"ship_to"`
	Lines        []LineItem     `json:"lines,omitempty"`
	Rejected     []RejectedLine `json:"rejected,omitempty"`
	Page         PageRef        `json:"page"`
}

// DetectedRows counts every line-item row found, accepted or rejected.
func (e ExtractedOrder) DetectedRows() int {
	return len(e.Lines) + len(e.Rejected)
}

// HasCustomerFields reports whether anything usable for identity resolution was found.
func (e ExtractedOrder) HasCustomerFields() bool {
	return e.CustomerCode != "" || e.CustomerName != "" || e.BillTo.Name != ""
}

// ExtractedLabel is the ephemeral result of running the heuristics over a shipping label.
type ExtractedLabel struct {
	TrackingNumber string  `json:"tracking_number,omitempty"`
	ShipTo         Address `json:"ship_to"`
	Page           PageRef `json:"page"`
}

// SourceDocument is one persisted page of an imported document.
type SourceDocument struct {
	ID             string    `json:"id"`
	DocumentSHA    string    `json:"document_sha"`
	Filename       string    `json:"filename,omitempty"`
	PageNumber     int       `json:"page_number"`
	Kind           PageKind  `json:"kind"`
	Text           string    `json:"text,omitempty"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	OrderID        *int64    `json:"order_id,omitempty"`
	EventID        *int64    `json:"event_id,omitempty"`
	NeedsReview    bool      `json:"needs_review"`
	ReviewReason   string    `json:"review_reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
