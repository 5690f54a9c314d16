package extract

import (
	"os"
	"regexp"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Field names a scalar value the heuristics can pull from a page.
type Field string

const (
	FieldOrderNumber    Field = "order_number"
	FieldOrderDate      Field = "order_date"
	FieldShipDate       Field = "ship_date"
	FieldCustomerCode   Field = "customer_code"
	FieldCustomerName   Field = "customer_name"
	FieldTrackingNumber Field = "tracking_number"
)

// AllFields returns every scalar field in extraction order.
func AllFields() []Field {
	return []Field{
		FieldOrderNumber,
		FieldOrderDate,
		FieldShipDate,
		FieldCustomerCode,
		FieldCustomerName,
		FieldTrackingNumber,
	}
}

func (f Field) valid() bool {
	for _, known := range AllFields() {
		if f == known {
			return true
		}
	}
	return false
}

// Rule is one alternative pattern for a field. Group selects the capture
// group holding the value.
type Rule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Group   int    `yaml:"group"`

	re *regexp.Regexp
}

// RuleSet maps each field to its ordered alternatives. The first rule that
// matches wins; later rules are never consulted.
type RuleSet map[Field][]Rule

const datePattern = `(\d{1,2}/\d{1,2}/\d{2,4}|\d{4}-\d{2}-\d{2}|[A-Za-z]{3,9}\.?\s+\d{1,2},?\s+\d{4})`

// defaultRuleSpecs is the built-in pattern table.
var defaultRuleSpecs = map[Field][]Rule{
	FieldOrderNumber: {
		{Name: "labelled", Pattern: `(?im)\b(?:sales\s+|purchase\s+)?order\s*(?:no\.?|number|num|#)\s*[:#]?\s*([A-Z0-9][A-Z0-9\-/]*\d[A-Z0-9\-/]*)`},
		{Name: "order-colon", Pattern: `(?im)\border\s*:\s*([A-Z0-9][A-Z0-9\-/]*\d[A-Z0-9\-/]*)`},
		{Name: "so-po-hash", Pattern: `(?im)\b(?:SO|PO)\s*#\s*:?\s*([A-Z0-9][A-Z0-9\-/]*\d[A-Z0-9\-/]*)`},
		{Name: "bare-so", Pattern: `(?m)\b(SO-\d{3,})\b`},
	},
	FieldOrderDate: {
		{Name: "order-date", Pattern: `(?i)\border\s+date\s*[:#]?\s*` + datePattern},
		{Name: "date-column", Pattern: `(?im)(?:^|\s{2})\s*date\s*:\s*` + datePattern},
	},
	FieldShipDate: {
		{Name: "ship-date", Pattern: `(?i)\bship(?:ped|ping)?\s+date\s*[:#]?\s*` + datePattern},
		{Name: "date-shipped", Pattern: `(?i)\bdate\s+shipped\s*[:#]?\s*` + datePattern},
	},
	FieldCustomerCode: {
		{Name: "customer-code", Pattern: `(?i)\b(?:customer|cust\.?)\s*(?:code|no\.?|number|#|id)\s*[:#]?\s*([A-Z0-9][A-Z0-9\-]{1,19})\b`},
		{Name: "account", Pattern: `(?i)\b(?:account|acct\.?)\s*(?:code|no\.?|number|#|id)?\s*[:#]\s*([A-Z0-9][A-Z0-9\-]{1,19})\b`},
	},
	FieldCustomerName: {
		{Name: "customer-name", Pattern: `(?im)\bcustomer(?:\s+name)?\s*:\s*(\S.*?)(?:\s{2,}|$)`},
		{Name: "sold-to-inline", Pattern: `(?im)\bsold\s+to\s*:\s*(\S.*?)(?:\s{2,}|$)`},
	},
	FieldTrackingNumber: {
		{Name: "labelled", Pattern: `(?i)\btracking\s*(?:no\.?|number|#|id)?\s*[:#]\s*([A-Z0-9]{8,34})\b`},
		{Name: "ups", Pattern: `\b(1Z[0-9A-Z]{16})\b`},
		{Name: "usps", Pattern: `\b(9[2-5]\d{20})\b`},
	},
}

// DefaultRules returns a compiled copy of the built-in pattern table.
func DefaultRules() RuleSet {
	rs, err := compileRules(defaultRuleSpecs)
	if err != nil {
		// Built-in table is static; a failure here is a programming error.
		panic(err)
	}
	return rs
}

// LoadRules reads a YAML pattern table and overlays it on the defaults.
// Every field named in the file replaces that field's default list.
func LoadRules(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read rules %s", path)
	}
	return ParseRules(data)
}

// ParseRules is LoadRules over in-memory YAML.
func ParseRules(data []byte) (RuleSet, error) {
	var raw map[Field][]Rule
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "extract: parse rules")
	}

	merged := make(map[Field][]Rule, len(defaultRuleSpecs))
	for f, rules := range defaultRuleSpecs {
		merged[f] = rules
	}
	for f, rules := range raw {
		if !f.valid() {
			return nil, eris.Errorf("extract: unknown field %q in rules", f)
		}
		if len(rules) == 0 {
			return nil, eris.Errorf("extract: field %q has no rules", f)
		}
		merged[f] = rules
	}
	return compileRules(merged)
}

func compileRules(specs map[Field][]Rule) (RuleSet, error) {
	out := make(RuleSet, len(specs))
	fields := make([]string, 0, len(specs))
	for f := range specs {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)

	for _, name := range fields {
		f := Field(name)
		compiled := make([]Rule, 0, len(specs[f]))
		for i, r := range specs[f] {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, eris.Wrapf(err, "extract: compile %s rule %d (%s)", f, i, r.Name)
			}
			if r.Group == 0 {
				r.Group = 1
			}
			if r.Group > re.NumSubexp() {
				return nil, eris.Errorf("extract: %s rule %d (%s) selects group %d of %d", f, i, r.Name, r.Group, re.NumSubexp())
			}
			r.re = re
			compiled = append(compiled, r)
		}
		out[f] = compiled
	}
	return out, nil
}

// match runs the field's rules in order and returns the first capture.
func (rs RuleSet) match(f Field, text string) (value string, rule string, ok bool) {
	for _, r := range rs[f] {
		m := r.re.FindStringSubmatch(text)
		if m == nil || r.Group >= len(m) || m[r.Group] == "" {
			continue
		}
		return m[r.Group], r.Name, true
	}
	return "", "", false
}
