package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/orderrecon/internal/customer"
	"github.com/sells-group/orderrecon/internal/feed"
	"github.com/sells-group/orderrecon/internal/ledger"
	"github.com/sells-group/orderrecon/internal/lots"
	"github.com/sells-group/orderrecon/internal/model"
	"github.com/sells-group/orderrecon/internal/store"
)

func TestImportDocument_SameDocumentTwice(t *testing.T) {
	f := newFixture(t)
	d := doc("so-1001.txt", orderPage("SO-1001"))

	first, err := f.engine.ImportDocument(f.ctx, d)
	require.NoError(t, err)
	second, err := f.engine.ImportDocument(f.ctx, d)
	require.NoError(t, err)

	assert.Equal(t, 1, first.OrdersCreated)
	assert.Equal(t, 0, second.OrdersCreated)
	assert.Equal(t, first.DocumentSHA, second.DocumentSHA)
	require.Len(t, first.Pages, 1)
	assert.Equal(t, model.PageKindOrder, first.Pages[0].Kind)
	assert.True(t, first.Pages[0].Created)
	assert.False(t, second.Pages[0].Created)

	o, err := f.store.GetOrderByNumber(f.ctx, "SO-1001")
	require.NoError(t, err)
	require.NotNil(t, o)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, "A100", o.Lines[0].SKU)
	require.NotNil(t, o.Lines[0].Quantity)
	assert.Equal(t, 5, *o.Lines[0].Quantity)

	docs, err := f.store.ListDocumentsForOrder(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	c, err := f.store.FindCustomerByCode(f.ctx, customer.NormalizeCode("RANCHO"))
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, c.ID, o.CustomerID)
}

func TestSyncEvents_InheritsCustomerThroughOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.ImportDocument(f.ctx, doc("so-1001.txt", orderPage("SO-1001")))
	require.NoError(t, err)

	res, err := f.engine.SyncEvents(f.ctx, []feed.Record{
		{ExternalID: "evt-1", OrderNumber: "so-1001", SKU: "A100", Quantity: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 0, res.Unmatched)

	ev, err := f.store.GetEventByFingerprint(f.ctx, "ext:evt-1")
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.True(t, ev.Matched())
	assert.Equal(t, model.MatchRuleOrderNumber, ev.MatchRule)

	o, err := f.store.GetOrder(f.ctx, *ev.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "SO-1001", o.OrderNumber)
	require.NotNil(t, ev.CustomerID)
	assert.Equal(t, o.CustomerID, *ev.CustomerID)
}

func TestImportDocument_MatchesWaitingEvents(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.SyncEvents(f.ctx, []feed.Record{
		{ExternalID: "evt-1", OrderNumber: "SO-1001", SKU: "A100", Quantity: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Matched)
	assert.Equal(t, 1, res.Unmatched)

	imp, err := f.engine.ImportDocument(f.ctx, doc("so-1001.txt", orderPage("SO-1001")))
	require.NoError(t, err)
	assert.Equal(t, 1, imp.EventsMatched)

	left, err := f.store.ListUnmatchedEvents(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestImportDocument_LabelBindsToOrder(t *testing.T) {
	f := newFixture(t)
	imp, err := f.engine.ImportDocument(f.ctx, doc("so-1001.txt", orderPage("SO-1001"), labelPage()))
	require.NoError(t, err)

	require.Len(t, imp.Pages, 2)
	assert.Equal(t, model.PageKindLabel, imp.Pages[1].Kind)
	require.NotNil(t, imp.Pages[1].OrderID)
	assert.Equal(t, *imp.Pages[0].OrderID, *imp.Pages[1].OrderID)
	assert.False(t, imp.Pages[1].NeedsReview)
	assert.Equal(t, 1, imp.LabelsBound)

	// Only the tracking number ties this event to the order.
	res, err := f.engine.SyncEvents(f.ctx, []feed.Record{
		{ExternalID: "evt-9", SKU: "A100", Quantity: 5, TrackingNumber: "1z999aa1 0123456784"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)

	ev, err := f.store.GetEventByFingerprint(f.ctx, "ext:evt-9")
	require.NoError(t, err)
	require.True(t, ev.Matched())
	assert.Equal(t, model.MatchRuleTrackingNumber, ev.MatchRule)
	assert.Equal(t, *imp.Pages[0].OrderID, *ev.OrderID)
}

func TestImportDocument_PagesForReview(t *testing.T) {
	f := newFixture(t)
	imp, err := f.engine.ImportDocument(f.ctx, doc("mixed.txt", labelPage(), coverPage(), anonymousOrderPage("SO-2002")))
	require.NoError(t, err)
	require.Len(t, imp.Pages, 3)

	assert.Equal(t, model.PageKindLabel, imp.Pages[0].Kind)
	assert.Equal(t, ReasonUnboundLabel, imp.Pages[0].ReviewReason)
	assert.Nil(t, imp.Pages[0].OrderID)

	assert.Equal(t, model.PageKindUnclassified, imp.Pages[1].Kind)
	assert.Equal(t, ReasonUnclassified, imp.Pages[1].ReviewReason)

	assert.Equal(t, model.PageKindOrder, imp.Pages[2].Kind)
	assert.Equal(t, ReasonNoCustomer, imp.Pages[2].ReviewReason)
	assert.Empty(t, imp.Pages[2].Error)
	assert.Equal(t, 0, imp.OrdersCreated)

	o, err := f.store.GetOrderByNumber(f.ctx, "SO-2002")
	require.NoError(t, err)
	assert.Nil(t, o)

	docs, err := f.store.ListDocumentsNeedingReview(f.ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
	for _, d := range docs {
		assert.Nil(t, d.OrderID)
		assert.NotEmpty(t, d.Text)
	}
}

func TestImportDocument_LabelWithTwoOrdersIsNotBound(t *testing.T) {
	f := newFixture(t)
	imp, err := f.engine.ImportDocument(f.ctx, doc("two.txt", orderPage("SO-1001"), orderPage("SO-1002"), labelPage()))
	require.NoError(t, err)

	assert.Equal(t, 2, imp.OrdersCreated)
	assert.Len(t, imp.OrderIDs(), 2)
	assert.Equal(t, ReasonUnboundLabel, imp.Pages[2].ReviewReason)
	assert.Equal(t, 0, imp.LabelsBound)
}

func TestImportDocument_Unreadable(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.ImportDocument(f.ctx, Document{Name: "empty.txt"})
	assert.Error(t, err)

	_, err = f.engine.ImportDocument(f.ctx, Document{Name: "binary.bin", Data: []byte{0xff, 0xfe, 0xfd}})
	assert.Error(t, err)
}

func TestImportBatch_IsolatesFailures(t *testing.T) {
	f := newFixture(t)
	res := f.engine.ImportBatch(f.ctx, []Document{
		doc("a.txt", orderPage("SO-1001")),
		{Name: "bad.bin", Data: []byte{0xff, 0xfe}},
		doc("b.txt", orderPage("SO-1002")),
	})

	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Documents, 3)
	require.NotNil(t, res.Documents[0])
	assert.Nil(t, res.Documents[1])
	require.NotNil(t, res.Documents[2])
	assert.Equal(t, "a.txt", res.Documents[0].Name)
	assert.Equal(t, "b.txt", res.Documents[2].Name)
	assert.NotEmpty(t, res.Errors[1])

	for _, n := range []string{"SO-1001", "SO-1002"} {
		o, err := f.store.GetOrderByNumber(f.ctx, n)
		require.NoError(t, err)
		assert.NotNil(t, o, n)
	}
}

func TestImportBatch_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(f.ctx)
	cancel()

	res := f.engine.ImportBatch(ctx, []Document{doc("a.txt", orderPage("SO-1001"))})
	assert.Equal(t, 1, res.Failed)
	assert.Nil(t, res.Documents[0])
}

func TestImportBatch_SameOrderConcurrently(t *testing.T) {
	f := newFixture(t)
	d := doc("so-1001.txt", orderPage("SO-1001"))
	res := f.engine.ImportBatch(f.ctx, []Document{d, d, d, d})
	assert.Equal(t, 0, res.Failed)

	o, err := f.store.GetOrderByNumber(f.ctx, "SO-1001")
	require.NoError(t, err)
	require.NotNil(t, o)
	docs, err := f.store.ListDocumentsForOrder(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 4)
}

func TestSyncEvents_Dedupe(t *testing.T) {
	f := newFixture(t)
	records := []feed.Record{
		{OrderNumber: "SO-1", SKU: "A100", Quantity: 5, ShipDate: "2024-03-06"},
		{OrderNumber: "SO-1", SKU: "A100", Quantity: 5, ShipDate: "2024-03-06"},
		{OrderNumber: "SO-2", SKU: "A100", Quantity: 3},
		{OrderNumber: "SO-3", Quantity: 3},
	}

	first, err := f.engine.SyncEvents(f.ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Received)
	assert.Equal(t, 1, first.Invalid)
	assert.Equal(t, 2, first.Inserted)
	assert.Equal(t, 1, first.Duplicates)
	assert.Equal(t, 2, first.Unmatched)

	second, err := f.engine.SyncEvents(f.ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 3, second.Duplicates)
	assert.Equal(t, 2, second.Unmatched)
}

func TestAttachToEvent_LinksManually(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.SyncEvents(f.ctx, []feed.Record{
		{ExternalID: "evt-1", OrderNumber: "PO-77", SKU: "A100", Quantity: 5},
	})
	require.NoError(t, err)
	ev, err := f.store.GetEventByFingerprint(f.ctx, "ext:evt-1")
	require.NoError(t, err)
	require.False(t, ev.Matched())

	res, err := f.engine.AttachToEvent(f.ctx, ev.ID, doc("so-3003.txt", orderPage("SO-3003")))
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	assert.Equal(t, "SO-3003", res.Order.OrderNumber)
	assert.Equal(t, model.MatchRuleManual, res.Event.MatchRule)
	require.NotNil(t, res.Event.CustomerID)
	assert.Equal(t, res.Order.CustomerID, *res.Event.CustomerID)

	pages, err := f.store.ListDocumentsForEvent(f.ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, res.Order.ID, *pages[0].OrderID)
}

func TestAttachToEvent_KeepsExistingLink(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.ImportDocument(f.ctx, doc("so-1001.txt", orderPage("SO-1001")))
	require.NoError(t, err)
	_, err = f.engine.SyncEvents(f.ctx, []feed.Record{
		{ExternalID: "evt-1", OrderNumber: "SO-1001", SKU: "A100", Quantity: 5},
	})
	require.NoError(t, err)
	ev, err := f.store.GetEventByFingerprint(f.ctx, "ext:evt-1")
	require.NoError(t, err)
	require.True(t, ev.Matched())

	res, err := f.engine.AttachToEvent(f.ctx, ev.ID, doc("so-3003.txt", orderPage("SO-3003")))
	require.NoError(t, err)
	assert.Equal(t, "SO-1001", res.Order.OrderNumber)
	assert.Equal(t, model.MatchRuleOrderNumber, res.Event.MatchRule)
}

func TestAttachToEvent_UnknownEvent(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.AttachToEvent(f.ctx, 404, doc("so-1001.txt", orderPage("SO-1001")))
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)

	o, err := f.store.GetOrderByNumber(f.ctx, "SO-1001")
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestReviewQueue(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.ImportDocument(f.ctx, doc("mixed.txt",
		orderPage("SO-1001", itemRow("A100", "Vaccine", "999999", "")),
		coverPage(),
	))
	require.NoError(t, err)
	_, err = f.engine.SyncEvents(f.ctx, []feed.Record{{OrderNumber: "SO-9", SKU: "Z1", Quantity: 1}})
	require.NoError(t, err)

	r, err := f.engine.ReviewQueue(f.ctx)
	require.NoError(t, err)
	require.Len(t, r.Documents, 1)
	assert.Equal(t, ReasonUnclassified, r.Documents[0].ReviewReason)
	require.Len(t, r.Orders, 1)
	assert.Equal(t, "SO-1001", r.Orders[0].OrderNumber)
	assert.True(t, r.Orders[0].NeedsLineReview)
	require.Len(t, r.UnmatchedEvents, 1)
	assert.Equal(t, "Z1", r.UnmatchedEvents[0].SKU)
}

func TestLotStatus_SumsMatchedDistributions(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.ImportDocument(f.ctx, doc("so-1001.txt", orderPage("SO-1001")))
	require.NoError(t, err)
	_, err = f.engine.SyncEvents(f.ctx, []feed.Record{
		{ExternalID: "1", OrderNumber: "SO-1001", SKU: "A100", Lot: "LOT2023A", Quantity: 40, ShipDate: "2024-03-06"},
		{ExternalID: "2", OrderNumber: "SO-1001", SKU: "A100", Lot: "lot2023a", Quantity: 60, ShipDate: "2024-03-07"},
		{ExternalID: "3", OrderNumber: "SO-4040", SKU: "A100", Lot: "LOT2023A", Quantity: 500},
	})
	require.NoError(t, err)

	l, err := ledger.Load(f.ctx, ledger.BytesSource("ledger.csv", []byte("lot,sku,qty\nLOT2023A,A100,250\n")), ledger.Options{})
	require.NoError(t, err)

	statuses, err := f.engine.LotStatus(f.ctx, l, lots.Options{CutoffYear: 2020})
	require.NoError(t, err)
	require.Len(t, statuses, 1)

	s := statuses[0]
	assert.Equal(t, "A100", s.SKU)
	assert.Equal(t, "LOT2023A", s.CurrentLot)
	assert.Equal(t, lots.SourceDistribution, s.Source)
	require.NotNil(t, s.LifetimeDistributed)
	assert.Equal(t, 100, *s.LifetimeDistributed)
	require.NotNil(t, s.Remaining)
	assert.Equal(t, 150, *s.Remaining)
}
