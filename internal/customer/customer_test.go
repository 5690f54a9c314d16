package customer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/orderrecon/internal/model"
	"github.com/sells-group/orderrecon/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func fresno() model.Address {
	return model.Address{Line1: "123 Main St", City: "Fresno", State: "CA", PostalCode: "93721"}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Acme Hospital, Inc.", "ACME HOSPITAL"},
		{"ACME HOSPITAL", "ACME HOSPITAL"},
		{"acme   hospital llc", "ACME HOSPITAL"},
		{"Acme Hospital L.L.C.", "ACME HOSPITAL"},
		{"Acme Co. Inc", "ACME"},
		{"Inc", "INC"},
		{"Crème Vet Clinic", "CREME VET CLINIC"},
		{"O'Neil & Sons", "ONEIL SONS"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestNormalizeScalars(t *testing.T) {
	assert.Equal(t, "RANCHO01", NormalizeCode(" rancho-01 "))
	assert.Equal(t, "123 MAIN ST", NormalizeAddressLine("123 Main St."))
	assert.NotEqual(t, NormalizeAddressLine("123 Main St"), NormalizeAddressLine("123 Main Street"))
	assert.Equal(t, "CA", NormalizeState("ca."))
	assert.Equal(t, "93721", NormalizePostal("93721-0042"))
	assert.Equal(t, "", NormalizePostal("n/a"))
}

func TestKeysFor(t *testing.T) {
	full := KeysFor(Fields{Code: "rancho", Name: "Rancho Vet, Inc.", Address: fresno()})
	assert.Equal(t, Keys{
		Code:     "RANCHO",
		Address:  "RANCHO VET|123 MAIN ST|FRESNO|CA|93721",
		Locality: "RANCHO VET|FRESNO|CA",
		Name:     "RANCHO VET",
	}, full)
	assert.Equal(t, "code:RANCHO", full.Canonical())

	noPostal := KeysFor(Fields{Name: "Rancho Vet", Address: model.Address{Line1: "1 A St", City: "Fresno", State: "CA"}})
	assert.Empty(t, noPostal.Address)
	assert.Equal(t, "loc:RANCHO VET|FRESNO|CA", noPostal.Canonical())

	nameOnly := KeysFor(Fields{Name: "Rancho Vet"})
	assert.Equal(t, "name:RANCHO VET", nameOnly.Canonical())

	assert.Empty(t, KeysFor(Fields{Address: fresno()}).Canonical())
	assert.True(t, Fields{Address: fresno()}.Empty())
}

func TestResolve_SuffixAndCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(newTestStore(t))

	a, created, err := r.Resolve(ctx, Fields{Name: "Acme Hospital, Inc.", Address: fresno()})
	require.NoError(t, err)
	assert.True(t, created)

	b, created, err := r.Resolve(ctx, Fields{Name: "ACME HOSPITAL", Address: fresno()})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "Acme Hospital, Inc.", b.Name, "first-seen display name kept")
}

func TestResolve_AbbreviationsNotExpanded(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(newTestStore(t))

	st := fresno()
	street := fresno()
	street.Line1 = "123 Main Street"

	a, _, err := r.Resolve(ctx, Fields{Name: "Acme Hospital", Address: st})
	require.NoError(t, err)
	b, created, err := r.Resolve(ctx, Fields{Name: "Acme Hospital", Address: street})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestResolve_CodeWinsOverName(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(newTestStore(t))

	a, _, err := r.Resolve(ctx, Fields{Code: "RANCHO", Name: "Rancho Vet Supply", Address: fresno()})
	require.NoError(t, err)

	// Same code, different name and address: still the same customer.
	other := model.Address{Line1: "9 Elm", City: "Reno", State: "NV", PostalCode: "89501"}
	b, created, err := r.Resolve(ctx, Fields{Code: "rancho", Name: "Rancho Clinic", Address: other})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "Fresno", b.City, "populated fields never overwritten")
	assert.Equal(t, "Rancho Vet Supply", b.Name)
}

func TestResolve_DifferentCodeNeverMatchesByName(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(newTestStore(t))

	a, _, err := r.Resolve(ctx, Fields{Code: "A1", Name: "Acme", Address: fresno()})
	require.NoError(t, err)
	b, created, err := r.Resolve(ctx, Fields{Code: "B2", Name: "Acme", Address: fresno()})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestResolve_FillsBlanksIncludingCode(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := NewResolver(s)

	a, _, err := r.Resolve(ctx, Fields{Name: "Acme Hospital"})
	require.NoError(t, err)
	assert.Empty(t, a.Code)

	b, created, err := r.Resolve(ctx, Fields{Code: "ACME", Name: "Acme Hospital"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a.ID, b.ID)

	got, err := s.FindCustomerByCode(ctx, "ACME")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)
}

func TestResolve_LooserRulesOnlyWhenSpecificKeyMissing(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(newTestStore(t))

	full, _, err := r.Resolve(ctx, Fields{Name: "Acme", Address: fresno()})
	require.NoError(t, err)

	// City and state only: locality rule applies and finds the record.
	loc, created, err := r.Resolve(ctx, Fields{Name: "Acme", Address: model.Address{City: "Fresno", State: "CA"}})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, full.ID, loc.ID)

	// Name only: name rule applies.
	name, created, err := r.Resolve(ctx, Fields{Name: "ACME INC"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, full.ID, name.ID)

	// A different full address does not fall through to the looser keys.
	other := fresno()
	other.Line1 = "77 Oak Ave"
	moved, created, err := r.Resolve(ctx, Fields{Name: "Acme", Address: other})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, full.ID, moved.ID)
}

func TestResolve_NoIdentity(t *testing.T) {
	r := NewResolver(newTestStore(t))
	_, _, err := r.Resolve(context.Background(), Fields{Address: fresno()})
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestFind_NeverCreates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := NewResolver(s)

	got, err := r.Find(ctx, Fields{Name: "Ghost Clinic", Address: model.Address{City: "Reno", State: "NV"}})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = r.Find(ctx, Fields{})
	require.NoError(t, err)
	assert.Nil(t, got)

	c, _, err := r.Resolve(ctx, Fields{Name: "Ghost Clinic", Address: model.Address{City: "Reno", State: "NV"}})
	require.NoError(t, err)
	got, err = r.Find(ctx, Fields{Name: "ghost clinic llc", Address: model.Address{City: "reno", State: "nv"}})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)
}

// racingStore simulates another writer creating the same customer between
// our lookup and our insert.
type racingStore struct {
	store.Store
	raced bool
}

func (s *racingStore) CreateCustomer(ctx context.Context, c *model.Customer) error {
	if !s.raced {
		s.raced = true
		winner := *c
		if err := s.Store.CreateCustomer(ctx, &winner); err != nil {
			return err
		}
		return eris.Wrap(store.ErrConflict, "racing insert")
	}
	return s.Store.CreateCustomer(ctx, c)
}

func TestResolve_CreateConflictFallsBackToLookup(t *testing.T) {
	ctx := context.Background()
	rs := &racingStore{Store: newTestStore(t)}
	r := NewResolver(rs)

	c, created, err := r.Resolve(ctx, Fields{Code: "RANCHO", Name: "Rancho"})
	require.NoError(t, err)
	assert.False(t, created, "the other writer created it")
	assert.True(t, rs.raced)

	again, _, err := r.Resolve(ctx, Fields{Code: "RANCHO"})
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)
}

func TestFillBlanks(t *testing.T) {
	existing := model.Customer{Name: "Acme", City: "Fresno"}
	changed, skipped := FillBlanks(&existing, model.Customer{
		Name:    "ACME HOSPITAL",
		City:    "Fresno",
		Phone:   "555-0100",
		NameKey: "ACME",
	})
	assert.True(t, changed)
	assert.Equal(t, []string{"name"}, skipped)
	assert.Equal(t, "Acme", existing.Name)
	assert.Equal(t, "555-0100", existing.Phone)
	assert.Equal(t, "ACME", existing.NameKey)

	changed, skipped = FillBlanks(&existing, model.Customer{})
	assert.False(t, changed)
	assert.Empty(t, skipped)
}

func TestResolve_StoresTrimmedFields(t *testing.T) {
	r := NewResolver(newTestStore(t))
	c, created, err := r.Resolve(context.Background(), Fields{
		Name: "  Rancho Feed Supply \n",
		Address: model.Address{
			Line1: " 9 Ranch Rd ", City: " Visalia", State: "ca", PostalCode: "93291 ",
			Attention: " Dana ", Phone: " 559-555-0100 ",
		},
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Rancho Feed Supply", c.Name)
	assert.Equal(t, "9 Ranch Rd", c.Street)
	assert.Equal(t, "Visalia", c.City)
	assert.Equal(t, "CA", c.State)
	assert.Equal(t, "93291", c.PostalCode)
	assert.Equal(t, "Dana", c.ContactName)
	assert.Equal(t, "559-555-0100", c.Phone)
}
