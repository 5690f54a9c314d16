package customer

import (
	"strings"

	"github.com/sells-group/orderrecon/internal/model"
)

// FillBlanks copies observed values into existing fields that are still
// blank. Populated fields are never overwritten; a differing observed value
// for a populated field is reported in skipped.
func FillBlanks(existing *model.Customer, observed model.Customer) (changed bool, skipped []string) {
	fill := func(field string, dst *string, src string) {
		switch {
		case src == "":
		case *dst == "":
			*dst = src
			changed = true
		case *dst != src:
			skipped = append(skipped, field)
		}
	}
	fillKey := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			changed = true
		}
	}

	fill("code", &existing.Code, observed.Code)
	fill("name", &existing.Name, observed.Name)
	fill("street", &existing.Street, observed.Street)
	fill("street2", &existing.Street2, observed.Street2)
	fill("city", &existing.City, observed.City)
	fill("state", &existing.State, observed.State)
	fill("postal_code", &existing.PostalCode, observed.PostalCode)
	fill("contact_name", &existing.ContactName, observed.ContactName)
	fill("phone", &existing.Phone, observed.Phone)

	fillKey(&existing.AddressKey, observed.AddressKey)
	fillKey(&existing.LocalityKey, observed.LocalityKey)
	fillKey(&existing.NameKey, observed.NameKey)
	return changed, skipped
}

// newRecord builds the Customer that f describes.
func newRecord(f Fields, k Keys) model.Customer {
	return model.Customer{
		CanonicalKey: k.Canonical(),
		Code:         k.Code,
		Name:         trimmed(f.Name),
		AddressKey:   k.Address,
		LocalityKey:  k.Locality,
		NameKey:      k.Name,
		Street:       trimmed(f.Address.Line1),
		Street2:      trimmed(f.Address.Line2),
		City:         trimmed(f.Address.City),
		State:        NormalizeState(f.Address.State),
		PostalCode:   trimmed(f.Address.PostalCode),
		ContactName:  trimmed(f.Address.Attention),
		Phone:        trimmed(f.Address.Phone),
	}
}

func trimmed(s string) string { return strings.TrimSpace(s) }
