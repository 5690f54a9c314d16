package order

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/orderrecon/internal/customer"
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

func newRepo(s store.Store) *Repository {
	return NewRepository(s, customer.NewResolver(s), 3)
}

func qty(n int) *int { return &n }

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func ranchoFields() Fields {
	return Fields{
		OrderDate: day("2024-03-04"),
		Customer:  customer.Fields{Code: "RANCHO", Name: "Rancho Vet Supply"},
		Lines:     []model.LineItem{{SKU: "A100", Quantity: qty(5)}},
	}
}

func page(sha string, n int) *model.SourceDocument {
	return &model.SourceDocument{DocumentSHA: sha, PageNumber: n, Kind: model.PageKindOrder}
}

func TestOrderNumbers(t *testing.T) {
	assert.Equal(t, "SO-1001", CleanOrderNumber("  so-1001 "))
	assert.Equal(t, "SO 1001", CleanOrderNumber("so   1001"))
	assert.Equal(t, "SO1001", NormalizeOrderNumber("so-1001"))
	assert.Equal(t, NormalizeOrderNumber("SO 1001"), NormalizeOrderNumber("so/1001"))
}

func TestUpsert_IdempotentAcrossSubmissions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := newRepo(s)

	var first *model.Order
	for i := 0; i < 3; i++ {
		o, created, err := repo.Upsert(ctx, "SO-1001", ranchoFields(), page("sha-1", 1))
		require.NoError(t, err)
		assert.Equal(t, i == 0, created)
		if first == nil {
			first = o
		}
		assert.Equal(t, first.ID, o.ID)
	}

	got, err := s.GetOrderByNumber(ctx, "SO-1001")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "A100", got.Lines[0].SKU)
	assert.Equal(t, "SO1001", got.NumberKey)

	docs, err := s.ListDocumentsForOrder(ctx, got.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestUpsert_FirstGoodLinesWin(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := newRepo(s)

	_, _, err := repo.Upsert(ctx, "SO-1", ranchoFields(), nil)
	require.NoError(t, err)

	worse := ranchoFields()
	worse.Lines = []model.LineItem{{SKU: "A1OO", Quantity: qty(50)}, {SKU: "ZZZ"}}
	worse.Rejected = []model.RejectedLine{{Row: "x", Reason: "bad"}}
	o, created, err := repo.Upsert(ctx, "so-1", worse, nil)
	require.NoError(t, err)
	assert.False(t, created)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, 5, *o.Lines[0].Quantity)
	assert.False(t, o.NeedsLineReview, "later rejections do not flag an order with good lines")
}

func TestUpsert_LinesFilledWhenFirstParseHadNone(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := newRepo(s)

	empty := ranchoFields()
	empty.Lines = nil
	empty.Rejected = []model.RejectedLine{{Row: "C300  Gauze  SLQ-81000412231", Reason: "quantity column holds a lot-shaped token"}}
	o, created, err := repo.Upsert(ctx, "SO-2", empty, nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Empty(t, o.Lines)
	assert.True(t, o.NeedsLineReview)
	require.Len(t, o.ReviewNotes, 1)
	assert.Contains(t, o.ReviewNotes[0], "SLQ-81000412231")

	_, _, err = repo.Upsert(ctx, "SO-2", ranchoFields(), nil)
	require.NoError(t, err)
	got, err := s.GetOrderByNumber(ctx, "SO-2")
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, 5, *got.Lines[0].Quantity)
	assert.True(t, got.NeedsLineReview, "review flag stays until cleared by an operator")

	review, err := s.ListOrdersNeedingReview(ctx)
	require.NoError(t, err)
	require.Len(t, review, 1)
	assert.Equal(t, got.ID, review[0].ID)
}

func TestUpsert_RejectionNotesNotRepeated(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := newRepo(s)

	empty := ranchoFields()
	empty.Lines = nil
	empty.Rejected = []model.RejectedLine{{Row: "C300  Gauze  SLQ-81000412231", Reason: "quantity column holds a lot-shaped token"}}
	for i := 0; i < 4; i++ {
		_, _, err := repo.Upsert(ctx, "SO-3", empty, nil)
		require.NoError(t, err)
	}

	got, err := s.GetOrderByNumber(ctx, "SO-3")
	require.NoError(t, err)
	assert.True(t, got.NeedsLineReview)
	assert.Len(t, got.ReviewNotes, 1)

	other := empty
	other.Rejected = []model.RejectedLine{{Row: "D400  Swabs  25000", Reason: "quantity exceeds sanity ceiling"}}
	_, _, err = repo.Upsert(ctx, "SO-3", other, nil)
	require.NoError(t, err)
	got, err = s.GetOrderByNumber(ctx, "SO-3")
	require.NoError(t, err)
	assert.Len(t, got.ReviewNotes, 2)
}

func TestUpsert_FillsBlankFieldsOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := newRepo(s)

	f := ranchoFields()
	f.ShipTo = model.Address{Name: "Clinic West"}
	_, _, err := repo.Upsert(ctx, "SO-3", f, nil)
	require.NoError(t, err)

	later := ranchoFields()
	later.OrderDate = day("2030-01-01")
	later.ShipDate = day("2024-03-06")
	later.ShipTo = model.Address{Name: "Other", City: "Monterey"}
	later.Customer.Address = model.Address{Phone: "555-0100"}
	o, _, err := repo.Upsert(ctx, "SO-3", later, nil)
	require.NoError(t, err)

	assert.Equal(t, *day("2024-03-04"), *o.OrderDate)
	assert.Equal(t, *day("2024-03-06"), *o.ShipDate)
	assert.Equal(t, "Clinic West", o.ShipToName)
	assert.Equal(t, "Monterey", o.ShipToCity)

	c, err := s.GetCustomer(ctx, o.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, "555-0100", c.Phone)
}

func TestUpsert_NoCustomer(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := newRepo(s)

	f := ranchoFields()
	f.Customer = customer.Fields{}
	doc := page("sha-x", 1)
	_, _, err := repo.Upsert(ctx, "SO-9", f, doc)
	assert.ErrorIs(t, err, ErrNoCustomer)
	assert.Nil(t, doc.OrderID)

	got, err := s.GetOrderByNumber(ctx, "SO-9")
	require.NoError(t, err)
	assert.Nil(t, got)

	// An existing order accepts documents without customer fields.
	_, _, err = repo.Upsert(ctx, "SO-9", ranchoFields(), nil)
	require.NoError(t, err)
	_, created, err := repo.Upsert(ctx, "SO-9", f, doc)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NotNil(t, doc.OrderID)
}

func TestUpsert_EmptyNumber(t *testing.T) {
	_, _, err := newRepo(newTestStore(t)).Upsert(context.Background(), "  ", ranchoFields(), nil)
	assert.Error(t, err)
}

// racingStore lets another writer insert the same order number between our
// lookup and our insert.
type racingStore struct {
	store.Store
	once sync.Once
}

func (s *racingStore) CreateOrder(ctx context.Context, o *model.Order) error {
	raced := false
	s.once.Do(func() { raced = true })
	if !raced {
		return s.Store.CreateOrder(ctx, o)
	}
	winner := *o
	winner.Lines = []model.OrderLine{{SKU: "WIN", Quantity: qty(1)}}
	if err := s.Store.CreateOrder(ctx, &winner); err != nil {
		return err
	}
	return eris.Wrap(store.ErrConflict, "racing insert")
}

func TestUpsert_ConflictFallsBackToMerge(t *testing.T) {
	ctx := context.Background()
	rs := &racingStore{Store: newTestStore(t)}
	repo := NewRepository(rs, customer.NewResolver(rs), 3)

	doc := page("sha-r", 1)
	o, created, err := repo.Upsert(ctx, "SO-7", ranchoFields(), doc)
	require.NoError(t, err)
	assert.False(t, created, "the other writer created it")
	require.Len(t, o.Lines, 1)
	assert.Equal(t, "WIN", o.Lines[0].SKU)
	require.NotNil(t, doc.OrderID)
	assert.Equal(t, o.ID, *doc.OrderID)
}

func TestUpsert_ConcurrentSameNumber(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	repo := newRepo(s)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := repo.Upsert(ctx, "SO-CONC", ranchoFields(), page("sha-c", 1))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	o, err := s.GetOrderByNumber(ctx, "SO-CONC")
	require.NoError(t, err)
	require.NotNil(t, o)
	docs, err := s.ListDocumentsForOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, docs, writers)
}
