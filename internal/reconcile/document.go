package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/orderrecon/internal/extract"
	"github.com/sells-group/orderrecon/internal/model"
	"github.com/sells-group/orderrecon/internal/order"
)

// Review reasons recorded on stored pages.
const (
	ReasonUnclassified = "unclassified page"
	ReasonNoCustomer   = "order page without customer fields"
	ReasonUnboundLabel = "label not bound to a single order"
	ReasonUpsertFailed = "order upsert failed"
)

// Document is one uploaded file.
type Document struct {
	Name string
	Data []byte
}

// PageResult reports what happened to one page.
type PageResult struct {
	PageNumber   int            `json:"page_number"`
	Kind         model.PageKind `json:"kind"`
	OrderNumber  string         `json:"order_number,omitempty"`
	OrderID      *int64         `json:"order_id,omitempty"`
	Created      bool           `json:"created,omitempty"`
	Rejected     int            `json:"rejected_lines,omitempty"`
	NeedsReview  bool           `json:"needs_review,omitempty"`
	ReviewReason string         `json:"review_reason,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// ImportResult reports one document import.
type ImportResult struct {
	Name          string       `json:"name"`
	DocumentSHA   string       `json:"document_sha"`
	Pages         []PageResult `json:"pages"`
	OrdersCreated int          `json:"orders_created"`
	LabelsBound   int          `json:"labels_bound"`
	EventsMatched int          `json:"events_matched"`
}

// OrderIDs returns the distinct orders the document's pages were bound to.
func (r *ImportResult) OrderIDs() []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, p := range r.Pages {
		if p.OrderID != nil && !seen[*p.OrderID] {
			seen[*p.OrderID] = true
			ids = append(ids, *p.OrderID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ImportDocument extracts, classifies and stores every page of doc. Order
// pages upsert their order; label pages bind to the document's order when
// there is exactly one; everything else is kept for review. Only an
// unreadable document is an error; page failures are recorded in the
// result.
func (e *Engine) ImportDocument(ctx context.Context, doc Document) (*ImportResult, error) {
	res, err := e.importDocument(ctx, doc, nil)
	if err != nil {
		return res, err
	}
	e.rematchAfter(ctx, res)
	return res, nil
}

// rematchAfter gives unmatched events a chance at the orders and labels the
// import introduced.
func (e *Engine) rematchAfter(ctx context.Context, res *ImportResult) {
	if res.OrdersCreated == 0 && res.LabelsBound == 0 {
		return
	}
	n, err := e.matcher.RematchUnmatched(ctx)
	if err != nil {
		e.log.Warn("import: rematch failed", zap.String("document", res.Name), zap.Error(err))
	}
	res.EventsMatched += n
}

type pendingLabel struct {
	index int
	doc   *model.SourceDocument
}

func (e *Engine) importDocument(ctx context.Context, doc Document, eventID *int64) (*ImportResult, error) {
	sum := sha256.Sum256(doc.Data)
	res := &ImportResult{Name: doc.Name, DocumentSHA: hex.EncodeToString(sum[:])}
	log := e.log.With(zap.String("document", doc.Name), zap.String("document_sha", res.DocumentSHA))

	texts, err := e.pages.ExtractPages(ctx, doc.Data)
	if err != nil {
		log.Error("import: unreadable document", zap.Error(err))
		return nil, eris.Wrapf(err, "reconcile: extract pages of %s", doc.Name)
	}

	var labels []pendingLabel
	for i, raw := range texts {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		text := extract.NormalizeText(raw)
		ref := model.PageRef{DocumentSHA: res.DocumentSHA, Filename: doc.Name, PageNumber: i + 1}
		ord := e.extractor.ExtractOrder(text)
		lbl := e.extractor.ExtractLabel(text)
		ord.Page, lbl.Page = ref, ref

		kind := extract.Classify(ord, lbl)
		page := &model.SourceDocument{
			DocumentSHA: ref.DocumentSHA,
			Filename:    ref.Filename,
			PageNumber:  ref.PageNumber,
			Kind:        kind,
			Text:        text,
			EventID:     eventID,
		}
		pr := PageResult{PageNumber: ref.PageNumber, Kind: kind}

		switch kind {
		case model.PageKindOrder:
			pr.OrderNumber = ord.OrderNumber
			pr.Rejected = len(ord.Rejected)
			e.importOrderPage(ctx, log, ord, page, &pr)
			if pr.Created {
				res.OrdersCreated++
			}
		case model.PageKindLabel:
			page.TrackingNumber = lbl.TrackingNumber
			labels = append(labels, pendingLabel{index: len(res.Pages), doc: page})
		default:
			page.NeedsReview, page.ReviewReason = true, ReasonUnclassified
			pr.NeedsReview, pr.ReviewReason = true, ReasonUnclassified
			log.Info("import: page fits neither order nor label, stored for review",
				zap.Int("page", ref.PageNumber))
			e.savePage(ctx, log, page, &pr)
		}
		res.Pages = append(res.Pages, pr)
	}

	e.bindLabels(ctx, log, res, labels)

	log.Info("import: document processed",
		zap.Int("pages", len(res.Pages)),
		zap.Int("orders_created", res.OrdersCreated),
		zap.Int("labels_bound", res.LabelsBound),
	)
	return res, nil
}

func (e *Engine) importOrderPage(ctx context.Context, log *zap.Logger, ord model.ExtractedOrder, page *model.SourceDocument, pr *PageResult) {
	o, created, err := e.orders.Upsert(ctx, ord.OrderNumber, order.FieldsFromExtraction(ord), page)
	if err == nil {
		pr.OrderID = &o.ID
		pr.Created = created
		return
	}

	reason := ReasonUpsertFailed
	if errors.Is(err, order.ErrNoCustomer) {
		reason = ReasonNoCustomer
		log.Info("import: order page has no customer fields, stored for review",
			zap.Int("page", page.PageNumber), zap.String("order_number", ord.OrderNumber))
	} else {
		pr.Error = err.Error()
		log.Error("import: order upsert failed",
			zap.Int("page", page.PageNumber), zap.String("order_number", ord.OrderNumber), zap.Error(err))
	}
	page.OrderID = nil
	page.NeedsReview, page.ReviewReason = true, reason
	pr.NeedsReview, pr.ReviewReason = true, reason
	e.savePage(ctx, log, page, pr)
}

// bindLabels attaches label pages to the document's single order. With no
// order or several, the labels are stored unbound for review.
func (e *Engine) bindLabels(ctx context.Context, log *zap.Logger, res *ImportResult, labels []pendingLabel) {
	if len(labels) == 0 {
		return
	}
	ids := res.OrderIDs()
	for _, l := range labels {
		pr := &res.Pages[l.index]
		if len(ids) == 1 {
			l.doc.OrderID = &ids[0]
			pr.OrderID = &ids[0]
			res.LabelsBound++
		} else {
			l.doc.NeedsReview, l.doc.ReviewReason = true, ReasonUnboundLabel
			pr.NeedsReview, pr.ReviewReason = true, ReasonUnboundLabel
			log.Info("import: label page not bound",
				zap.Int("page", l.doc.PageNumber), zap.Int("orders_in_document", len(ids)))
		}
		e.savePage(ctx, log, l.doc, pr)
	}
}

func (e *Engine) savePage(ctx context.Context, log *zap.Logger, page *model.SourceDocument, pr *PageResult) {
	if err := e.store.SaveDocument(ctx, page); err != nil {
		pr.Error = err.Error()
		log.Error("import: store page failed", zap.Int("page", page.PageNumber), zap.Error(err))
	}
}

// BatchResult reports an ImportBatch run in input order. A document that
// failed or was never attempted has a nil result.
type BatchResult struct {
	Documents []*ImportResult `json:"documents"`
	Errors    []string        `json:"errors,omitempty"`
	Failed    int             `json:"failed"`
}

// ImportBatch imports documents concurrently. A failing document does not
// stop the others; cancelling ctx leaves unstarted documents unattempted.
func (e *Engine) ImportBatch(ctx context.Context, docs []Document) BatchResult {
	out := BatchResult{
		Documents: make([]*ImportResult, len(docs)),
		Errors:    make([]string, len(docs)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.MaxConcurrentDocuments)
	for i, doc := range docs {
		g.Go(func() error {
			if gctx.Err() != nil {
				out.Errors[i] = gctx.Err().Error()
				return nil
			}
			res, err := e.ImportDocument(gctx, doc)
			if err != nil {
				out.Errors[i] = err.Error()
				return nil
			}
			out.Documents[i] = res
			return nil
		})
	}
	_ = g.Wait()

	for _, msg := range out.Errors {
		if msg != "" {
			out.Failed++
		}
	}
	if out.Failed == 0 {
		out.Errors = nil
	}

	e.log.Info("import: batch complete",
		zap.Int("documents", len(docs)),
		zap.Int("failed", out.Failed),
	)
	return out
}
