package extract

import "github.com/sells-group/orderrecon/internal/model"

// Classify decides what a page is from the fields extracted from it.
//
// An order page has an order number and at least one detected line row
// (a rejected row still counts: the page is an order whose lines need
// review). Anything else carrying a tracking number or a ship-to block is a
// label. The rest is unclassified and kept for manual attention.
func Classify(order model.ExtractedOrder, label model.ExtractedLabel) model.PageKind {
	if order.OrderNumber != "" && order.DetectedRows() > 0 {
		return model.PageKindOrder
	}
	if label.TrackingNumber != "" || !label.ShipTo.IsZero() {
		return model.PageKindLabel
	}
	return model.PageKindUnclassified
}
