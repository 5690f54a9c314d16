// Package feed reads shipment records from the carrier synchronization feed
// and turns them into distribution events.
package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/sells-group/orderrecon/internal/model"
	"github.com/sells-group/orderrecon/internal/order"
)

// Record is one shipment line as the feed reports it. Every field other
// than the SKU and quantity is optional and unreliable.
type Record struct {
	ExternalID     string `json:"external_id,omitempty" validate:"max=128"`
	OrderNumber    string `json:"order_number,omitempty" validate:"max=64"`
	ShipDate       string `json:"ship_date,omitempty" validate:"max=32"`
	SKU            string `json:"sku" validate:"required,max=64"`
	Lot            string `json:"lot,omitempty" validate:"max=64"`
	Quantity       int    `json:"quantity" validate:"min=1"`
	TrackingNumber string `json:"tracking_number,omitempty" validate:"max=64"`
	ShipToName     string `json:"ship_to_name,omitempty" validate:"max=256"`
	ShipToCity     string `json:"ship_to_city,omitempty" validate:"max=128"`
	ShipToState    string `json:"ship_to_state,omitempty" validate:"max=32"`
	ShipToPostal   string `json:"ship_to_postal,omitempty" validate:"max=16"`
}

// DefaultDateLayouts are tried in order against a record's ship date.
var DefaultDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"1/2/2006",
	"1/2/06",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// Validate checks r's field constraints. The error names each failing
// field by its JSON name.
func Validate(r any) error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return eris.Wrap(err, "feed: validate")
	}
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msgs = append(msgs, fe.Field()+" "+validationMessage(fe))
	}
	return eris.Errorf("feed: invalid record: %s", strings.Join(msgs, "; "))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return "is invalid"
}

// ToEvent validates r and normalizes it into an unmatched event with its
// dedupe fingerprint.
func (r Record) ToEvent(layouts []string) (model.DistributionEvent, error) {
	if err := Validate(r); err != nil {
		return model.DistributionEvent{}, err
	}
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}

	e := model.DistributionEvent{
		ExternalID:          strings.TrimSpace(r.ExternalID),
		ReportedOrderNumber: order.CleanOrderNumber(r.OrderNumber),
		SKU:                 upper(r.SKU),
		Lot:                 upper(r.Lot),
		Quantity:            r.Quantity,
		TrackingNumber:      strings.ToUpper(strings.Join(strings.Fields(r.TrackingNumber), "")),
		ShipToName:          collapse(r.ShipToName),
		ShipToCity:          collapse(r.ShipToCity),
		ShipToState:         upper(r.ShipToState),
		ShipToPostal:        strings.TrimSpace(r.ShipToPostal),
	}

	if s := strings.TrimSpace(r.ShipDate); s != "" {
		d, ok := parseDate(s, layouts)
		if !ok {
			return model.DistributionEvent{}, eris.Errorf("feed: unparseable ship_date %q", s)
		}
		e.ShipDate = &d
	}

	e.Fingerprint = Fingerprint(e)
	return e, nil
}

// Fingerprint identifies an event across feed runs: the feed's own id when
// it sends one, else a hash of the normalized shipment fields.
func Fingerprint(e model.DistributionEvent) string {
	if e.ExternalID != "" {
		return "ext:" + e.ExternalID
	}
	date := ""
	if e.ShipDate != nil {
		date = e.ShipDate.Format("2006-01-02")
	}
	parts := []string{
		e.ReportedOrderNumber, date, e.SKU, e.Lot, strconv.Itoa(e.Quantity),
		e.TrackingNumber, strings.ToUpper(e.ShipToName),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return "sha256:" + hex.EncodeToString(sum[:])
}

func parseDate(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func upper(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

func collapse(s string) string { return strings.Join(strings.Fields(s), " ") }
