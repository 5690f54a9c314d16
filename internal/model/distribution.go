package model

import "time"

// MatchRule names the rule that linked a distribution event to an order.
type MatchRule string

const (
	MatchRuleOrderNumber         MatchRule = "order_number"
	MatchRuleOrderNumberShipDate MatchRule = "order_number_ship_date"
	MatchRuleCustomerShipDate    MatchRule = "customer_ship_date"
	MatchRuleTrackingNumber      MatchRule = "tracking_number"
	MatchRuleManual              MatchRule = "manual"
)

// DistributionEvent is a shipment reported by the carrier synchronization feed.
//
// OrderID and CustomerID are only ever written together through the store's
// link operation, which copies the customer from the linked order.
type DistributionEvent struct {
	ID          int64  `json:"id" db:"id"`
	Fingerprint string `json:"fingerprint" db:"fingerprint"`
	ExternalID  string `json:"external_id,omitempty" db:"external_id"`

	// As reported by the feed; unreliable.
	ReportedOrderNumber string     `json:"reported_order_number,omitempty" db:"reported_order_number"`
	ShipDate            *time.Time `json:"ship_date,omitempty" db:"ship_date"`
	SKU                 string     `json:"sku" db:"sku"`
	Lot                 string     `json:"lot,omitempty" db:"lot"`
	Quantity            int        `json:"quantity" db:"quantity"`
	TrackingNumber      string     `json:"tracking_number,omitempty" db:"tracking_number"`
	ShipToName          string     `json:"ship_to_name,omitempty" db:"ship_to_name"`
	ShipToCity          string     `json:"ship_to_city,omitempty" db:"ship_to_city"`
	ShipToState         string     `json:"ship_to_state,omitempty" db:"ship_to_state"`
	ShipToPostal        string     `json:"ship_to_postal,omitempty" db:"ship_to_postal"`

	OrderID    *int64     `json:"order_id,omitempty" db:"order_id"`
	CustomerID *int64     `json:"customer_id,omitempty" db:"customer_id"`
	MatchRule  MatchRule  `json:"match_rule,omitempty" db:"match_rule"`
	MatchedAt  *time.Time `json:"matched_at,omitempty" db:"matched_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Matched reports whether the event is linked to an order.
func (e DistributionEvent) Matched() bool {
	return e.OrderID != nil
}

// LotRecord is one parsed row of the inventory ledger.
type LotRecord struct {
	RawLot      string `json:"raw_lot"`
	Lot         string `json:"lot"`
	SKU         string `json:"sku"`
	ProducedQty int    `json:"produced_qty"`
	Year        int    `json:"year,omitempty"` // 0 when undetermined
}
