package extract

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/orderrecon/internal/model"
)

// DefaultQuantityCeiling bounds any single line-item quantity.
const DefaultQuantityCeiling = 10000

// Options configures an Extractor.
type Options struct {
	Rules           RuleSet
	QuantityCeiling int
	DateLayouts     []string
}

// Extractor runs the field heuristics over normalized page text. It holds
// no mutable state and is safe for concurrent use.
type Extractor struct {
	rules   RuleSet
	ceiling int
	layouts []string
	log     *zap.Logger
}

// New creates an Extractor, filling unset options with defaults.
func New(opts Options) *Extractor {
	if opts.Rules == nil {
		opts.Rules = DefaultRules()
	}
	if opts.QuantityCeiling <= 0 {
		opts.QuantityCeiling = DefaultQuantityCeiling
	}
	if len(opts.DateLayouts) == 0 {
		opts.DateLayouts = DefaultDateLayouts
	}
	return &Extractor{
		rules:   opts.Rules,
		ceiling: opts.QuantityCeiling,
		layouts: opts.DateLayouts,
		log:     zap.L().With(zap.String("component", "extract")),
	}
}

// Field returns the first match of the field's rules, or false when none
// matched.
func (x *Extractor) Field(text string, f Field) (string, bool) {
	v, rule, ok := x.rules.match(f, text)
	if !ok {
		x.log.Debug("extraction miss", zap.String("field", string(f)))
		return "", false
	}
	v = cleanValue(f, v)
	if v == "" {
		return "", false
	}
	x.log.Debug("field matched",
		zap.String("field", string(f)),
		zap.String("rule", rule),
	)
	return v, true
}

// ExtractOrder pulls order fields from one page. Missing fields are left
// zero; the caller sets Page.
func (x *Extractor) ExtractOrder(text string) model.ExtractedOrder {
	lines := strings.Split(text, "\n")

	var out model.ExtractedOrder
	out.OrderNumber, _ = x.Field(text, FieldOrderNumber)
	out.OrderDate = x.date(text, FieldOrderDate)
	out.ShipDate = x.date(text, FieldShipDate)
	out.CustomerCode, _ = x.Field(text, FieldCustomerCode)
	out.CustomerName, _ = x.Field(text, FieldCustomerName)
	out.BillTo = extractAddress(lines, blockBillTo)
	out.ShipTo = extractAddress(lines, blockShipTo)
	out.Lines, out.Rejected = extractLines(lines, x.ceiling)

	if out.CustomerName == "" {
		out.CustomerName = out.BillTo.Name
	}
	for _, r := range out.Rejected {
		x.log.Info("line item rejected",
			zap.String("order_number", out.OrderNumber),
			zap.String("reason", r.Reason),
			zap.String("row", r.Row),
		)
	}
	return out
}

// ExtractLabel pulls shipping-label fields from one page.
func (x *Extractor) ExtractLabel(text string) model.ExtractedLabel {
	var out model.ExtractedLabel
	out.TrackingNumber, _ = x.Field(text, FieldTrackingNumber)
	out.ShipTo = extractAddress(strings.Split(text, "\n"), blockShipTo)
	return out
}

func (x *Extractor) date(text string, f Field) *time.Time {
	raw, ok := x.Field(text, f)
	if !ok {
		return nil
	}
	t, ok := ParseDate(raw, x.layouts)
	if !ok {
		x.log.Debug("unparseable date", zap.String("field", string(f)), zap.String("value", raw))
		return nil
	}
	return t
}

func cleanValue(f Field, v string) string {
	v = strings.TrimSpace(v)
	switch f {
	case FieldOrderNumber:
		v = strings.ToUpper(strings.TrimRight(v, "-/."))
	case FieldCustomerCode, FieldTrackingNumber:
		v = strings.ToUpper(v)
	case FieldCustomerName:
		v = strings.TrimRight(v, ",;")
	}
	return v
}
