package reconcile

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orderrecon/internal/feed"
	"github.com/sells-group/orderrecon/internal/model"
	"github.com/sells-group/orderrecon/internal/store"
)

// SyncResult reports one synchronization run.
type SyncResult struct {
	Received   int `json:"received"`
	Invalid    int `json:"invalid"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Matched    int `json:"matched"`
	Unmatched  int `json:"unmatched"`
}

// SyncEvents stores the feed's new events and then runs the matcher over
// every unmatched event, new or left over from earlier runs. Events already
// known by fingerprint are skipped.
func (e *Engine) SyncEvents(ctx context.Context, records []feed.Record) (*SyncResult, error) {
	events, invalid := feed.Prepare(records, e.opts.FeedDateLayouts)
	res := &SyncResult{Received: len(records), Invalid: invalid}

	if len(events) > 0 {
		n, err := e.store.InsertEvents(ctx, events)
		if err != nil {
			return nil, eris.Wrap(err, "reconcile: insert events")
		}
		res.Inserted = n
	}
	res.Duplicates = len(records) - invalid - res.Inserted

	matched, err := e.matcher.RematchUnmatched(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: match events")
	}
	res.Matched = matched

	left, err := e.store.ListUnmatchedEvents(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: count unmatched events")
	}
	res.Unmatched = len(left)

	e.log.Info("sync: complete",
		zap.Int("received", res.Received),
		zap.Int("invalid", res.Invalid),
		zap.Int("inserted", res.Inserted),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("matched", res.Matched),
		zap.Int("unmatched", res.Unmatched),
	)
	return res, nil
}

// AttachResult reports a document attached to an event.
type AttachResult struct {
	Import *ImportResult            `json:"import"`
	Event  *model.DistributionEvent `json:"event"`
	Order  *model.Order             `json:"order,omitempty"`
}

// AttachToEvent imports doc with its pages referencing the event, then
// matches the event. When the document yields exactly one order the event
// is linked to it under the manual rule; otherwise the usual chain runs.
// An event that is already matched keeps its link.
func (e *Engine) AttachToEvent(ctx context.Context, eventID int64, doc Document) (*AttachResult, error) {
	ev, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: get event %d", eventID)
	}
	if ev == nil {
		return nil, eris.Wrapf(store.ErrNotFound, "reconcile: event %d", eventID)
	}

	imp, err := e.importDocument(ctx, doc, &eventID)
	if err != nil {
		return nil, err
	}
	res := &AttachResult{Import: imp, Event: ev}

	ids := imp.OrderIDs()
	if len(ids) == 1 {
		res.Order, err = e.matcher.Link(ctx, ev, ids[0], model.MatchRuleManual)
	} else {
		res.Order, err = e.matcher.Match(ctx, ev)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: match event %d", eventID)
	}
	e.rematchAfter(ctx, imp)

	e.log.Info("attach: document attached to event",
		zap.Int64("event_id", eventID),
		zap.Int("orders_in_document", len(ids)),
		zap.Bool("matched", ev.Matched()),
		zap.String("match_rule", string(ev.MatchRule)),
	)
	return res, nil
}
