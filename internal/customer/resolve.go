package customer

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orderrecon/internal/model"
	"github.com/sells-group/orderrecon/internal/store"
)

// ErrNoIdentity is returned when neither a code nor a name was observed.
var ErrNoIdentity = eris.New("customer: no identity fields")

const createAttempts = 3

// Resolver finds or creates customers from observed identity fields.
type Resolver struct {
	store store.CustomerStore
	log   *zap.Logger
}

// NewResolver creates a customer resolver.
func NewResolver(s store.CustomerStore) *Resolver {
	return &Resolver{
		store: s,
		log:   zap.L().With(zap.String("component", "customer")),
	}
}

// Resolve returns the customer that f identifies, creating one when no
// rule matches. Rules are tried in order and the first one that finds a
// record wins:
//  1. normalized customer code
//  2. name + full bill-to address
//  3. name + city + state, only when the full address is unavailable
//  4. name alone, only when city and state are unavailable
//
// A matched customer has its blank fields filled from f. Returns the
// customer and whether it was newly created.
func (r *Resolver) Resolve(ctx context.Context, f Fields) (*model.Customer, bool, error) {
	keys := KeysFor(f)
	if keys.Code == "" && keys.Name == "" {
		return nil, false, ErrNoIdentity
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		existing, rule, err := r.lookup(ctx, keys)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			r.log.Debug("resolve: matched",
				zap.String("rule", rule),
				zap.Int64("customer_id", existing.ID),
			)
			if err := r.fill(ctx, existing, newRecord(f, keys)); err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}

		rec := newRecord(f, keys)
		if rec.Name == "" {
			rec.Name = keys.Code
		}
		err = r.store.CreateCustomer(ctx, &rec)
		if err == nil {
			r.log.Info("resolve: created new customer",
				zap.String("canonical_key", rec.CanonicalKey),
				zap.String("name", rec.Name),
				zap.Int64("customer_id", rec.ID),
			)
			return &rec, true, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, false, eris.Wrap(err, "customer: create")
		}

		// Another writer created the same identity; pick it up.
		r.log.Debug("resolve: create conflict, retrying lookup",
			zap.String("canonical_key", rec.CanonicalKey),
			zap.Int("attempt", attempt+1),
		)
		if winner, err := r.store.FindCustomerByCanonicalKey(ctx, rec.CanonicalKey); err != nil {
			return nil, false, eris.Wrap(err, "customer: lookup after conflict")
		} else if winner != nil {
			if err := r.fill(ctx, winner, newRecord(f, keys)); err != nil {
				return nil, false, err
			}
			return winner, false, nil
		}
	}
	return nil, false, eris.Errorf("customer: resolve %s: conflict persisted after %d attempts", keys.Canonical(), createAttempts)
}

// Find runs the same rules as Resolve but never creates or updates.
// Returns nil when no customer matches.
func (r *Resolver) Find(ctx context.Context, f Fields) (*model.Customer, error) {
	keys := KeysFor(f)
	if keys.Code == "" && keys.Name == "" {
		return nil, nil
	}
	c, _, err := r.lookup(ctx, keys)
	return c, err
}

// lookup applies rules 1 to 4 and returns the matched customer and rule.
func (r *Resolver) lookup(ctx context.Context, k Keys) (*model.Customer, string, error) {
	if k.Code != "" {
		c, err := r.store.FindCustomerByCode(ctx, k.Code)
		if err != nil {
			return nil, "", eris.Wrap(err, "customer: resolve by code")
		}
		if c != nil {
			return c, "code", nil
		}
	}

	var level store.KeyLevel
	var key string
	switch {
	case k.Address != "":
		level, key = store.KeyAddress, k.Address
	case k.Locality != "":
		level, key = store.KeyLocality, k.Locality
	case k.Name != "":
		level, key = store.KeyName, k.Name
	default:
		return nil, "", nil
	}

	candidates, err := r.store.FindCustomersByKey(ctx, level, key)
	if err != nil {
		return nil, "", eris.Wrapf(err, "customer: resolve by %s", level)
	}
	for i := range candidates {
		c := candidates[i]
		// A record that already carries another code is a different customer.
		if k.Code != "" && c.Code != "" && c.Code != k.Code {
			continue
		}
		return &c, string(level), nil
	}
	return nil, "", nil
}

func (r *Resolver) fill(ctx context.Context, existing *model.Customer, observed model.Customer) error {
	changed, skipped := FillBlanks(existing, observed)
	if len(skipped) > 0 {
		r.log.Info("resolve: fill skipped, keeping first-seen values",
			zap.Int64("customer_id", existing.ID),
			zap.String("fields", strings.Join(skipped, ",")),
		)
	}
	if !changed {
		return nil
	}
	if err := r.store.UpdateCustomer(ctx, existing); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// The observed code belongs to someone else; keep the record as it was.
			r.log.Warn("resolve: fill rejected by unique constraint",
				zap.Int64("customer_id", existing.ID),
				zap.Error(err),
			)
			fresh, gerr := r.store.GetCustomer(ctx, existing.ID)
			if gerr != nil {
				return eris.Wrap(gerr, "customer: reload after conflict")
			}
			if fresh != nil {
				*existing = *fresh
			}
			return nil
		}
		return eris.Wrap(err, "customer: fill blanks")
	}
	return nil
}

// Enrich fills blank fields of an already-linked customer from f. Fields
// that carry a different customer code are ignored.
func (r *Resolver) Enrich(ctx context.Context, customerID int64, f Fields) error {
	c, err := r.store.GetCustomer(ctx, customerID)
	if err != nil {
		return eris.Wrapf(err, "customer: enrich %d", customerID)
	}
	if c == nil {
		return nil
	}
	keys := KeysFor(f)
	if keys.Code != "" && c.Code != "" && keys.Code != c.Code {
		r.log.Info("resolve: identity conflict, keeping first-seen customer",
			zap.Int64("customer_id", c.ID),
			zap.String("code", c.Code),
			zap.String("observed_code", keys.Code),
		)
		return nil
	}
	return r.fill(ctx, c, newRecord(f, keys))
}
