package customer

import (
	"strings"

	"github.com/sells-group/orderrecon/internal/model"
)

// Canonical key prefixes, one per resolution level.
const (
	prefixCode     = "code:"
	prefixAddress  = "addr:"
	prefixLocality = "loc:"
	prefixName     = "name:"
)

// Fields are the customer attributes observed on one document.
type Fields struct {
	Code    string
	Name    string
	Address model.Address // bill-to
}

// FieldsFromOrder takes the identity fields of an extracted order page.
func FieldsFromOrder(e model.ExtractedOrder) Fields {
	return Fields{Code: e.CustomerCode, Name: e.CustomerName, Address: e.BillTo}
}

// Empty reports whether nothing usable for resolution is present.
func (f Fields) Empty() bool {
	return NormalizeCode(f.Code) == "" && NormalizeName(f.Name) == ""
}

// Keys are the normalized identity keys derived from Fields. A key is empty
// when any of its inputs is missing.
type Keys struct {
	Code     string
	Address  string // name + street + city + state + postal
	Locality string // name + city + state
	Name     string
}

// KeysFor derives the identity keys for f.
func KeysFor(f Fields) Keys {
	name := NormalizeName(f.Name)
	line := NormalizeAddressLine(f.Address.Line1)
	city := NormalizeAddressLine(f.Address.City)
	state := NormalizeState(f.Address.State)
	postal := NormalizePostal(f.Address.PostalCode)

	k := Keys{Code: NormalizeCode(f.Code), Name: name}
	if name == "" {
		return k
	}
	if city != "" && state != "" {
		k.Locality = join(name, city, state)
		if line != "" && postal != "" {
			k.Address = join(name, line, city, state, postal)
		}
	}
	return k
}

// Canonical returns the unique key for a new customer: the code when there
// is one, else the most specific key available.
func (k Keys) Canonical() string {
	switch {
	case k.Code != "":
		return prefixCode + k.Code
	case k.Address != "":
		return prefixAddress + k.Address
	case k.Locality != "":
		return prefixLocality + k.Locality
	case k.Name != "":
		return prefixName + k.Name
	}
	return ""
}

func join(parts ...string) string {
	return strings.Join(parts, "|")
}
