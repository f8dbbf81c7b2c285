// internal/engine/engine_test.go
package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rescindhq/rescind/internal/types"
)

/*
 * In-memory Store fake shared by the dispatch and review tests. Write paths
 * mirror the real store's semantics: RecordDecision applies score, status,
 * and queue item together, and ApplyTransition enforces the version check.
 * Error fields inject failures per call site.
 */

type fakeStore struct {
	requests map[types.RequestID]types.CancellationRequest
	orders   map[types.OrderID]types.Order
	history  map[types.CustomerID]types.CustomerHistory
	rules    []types.Rule
	items    map[types.QueueItemID]types.ReviewQueueItem
	usage    map[types.RuleID]int

	historyErr  error
	rulesErr    error
	orderErr    error
	pendingErr  error
	decisionErr error
	usageErr    error

	// beforeApply runs at the start of ApplyTransition; tests use it to
	// simulate a concurrent reviewer winning the race.
	beforeApply func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		requests: make(map[types.RequestID]types.CancellationRequest),
		orders:   make(map[types.OrderID]types.Order),
		history:  make(map[types.CustomerID]types.CustomerHistory),
		items:    make(map[types.QueueItemID]types.ReviewQueueItem),
		usage:    make(map[types.RuleID]int),
	}
}

func (f *fakeStore) GetRequest(_ context.Context, id types.RequestID) (types.CancellationRequest, error) {
	req, ok := f.requests[id]
	if !ok {
		return types.CancellationRequest{}, types.ErrRequestNotFound
	}
	return req, nil
}

func (f *fakeStore) GetOrder(_ context.Context, id types.OrderID) (types.Order, error) {
	if f.orderErr != nil {
		return types.Order{}, f.orderErr
	}
	order, ok := f.orders[id]
	if !ok {
		return types.Order{}, types.ErrOrderNotFound
	}
	return order, nil
}

func (f *fakeStore) GetCustomerHistory(_ context.Context, id types.CustomerID, _ time.Time) (types.CustomerHistory, error) {
	if f.historyErr != nil {
		return types.CustomerHistory{}, f.historyErr
	}
	return f.history[id], nil
}

func (f *fakeStore) ListActiveRules(_ context.Context, org types.OrgID) ([]types.Rule, error) {
	if f.rulesErr != nil {
		return nil, f.rulesErr
	}
	var active []types.Rule
	for _, rule := range f.rules {
		if rule.OrgID == org && rule.Active {
			active = append(active, rule)
		}
	}
	return active, nil
}

func (f *fakeStore) GetPendingQueueItem(_ context.Context, id types.RequestID) (types.ReviewQueueItem, error) {
	if f.pendingErr != nil {
		return types.ReviewQueueItem{}, f.pendingErr
	}
	for _, item := range f.items {
		if item.RequestID == id && item.ReviewStatus == types.ReviewPending {
			return item, nil
		}
	}
	return types.ReviewQueueItem{}, types.ErrQueueItemNotFound
}

func (f *fakeStore) GetQueueItem(_ context.Context, id types.QueueItemID) (types.ReviewQueueItem, error) {
	item, ok := f.items[id]
	if !ok {
		return types.ReviewQueueItem{}, types.ErrQueueItemNotFound
	}
	return item, nil
}

func (f *fakeStore) RecordDecision(_ context.Context, w DecisionWrite) error {
	if f.decisionErr != nil {
		return f.decisionErr
	}
	req, ok := f.requests[w.RequestID]
	if !ok {
		return types.ErrRequestNotFound
	}

	score := w.RiskScore
	req.RiskScore = &score
	if w.NewStatus != nil {
		req.Status = *w.NewStatus
	}
	f.requests[w.RequestID] = req

	if w.QueueItem != nil {
		f.items[w.QueueItem.QueueItemID] = *w.QueueItem
	}
	return nil
}

func (f *fakeStore) ApplyTransition(_ context.Context, t Transition) error {
	if f.beforeApply != nil {
		f.beforeApply()
	}

	item, ok := f.items[t.QueueItemID]
	if !ok {
		return types.ErrQueueItemNotFound
	}
	if item.Version != t.ExpectedVersion {
		return types.ErrVersionConflict
	}

	item.ReviewStatus = t.ItemStatus
	item.ReviewerID = t.ReviewerID
	item.Notes = t.Notes
	item.ReviewedAt = t.ReviewedAt
	item.Version++
	f.items[t.QueueItemID] = item

	req := f.requests[item.RequestID]
	if t.RequestStatus != nil {
		req.Status = *t.RequestStatus
	}
	if t.AppendRequestNote != "" {
		if req.Notes == "" {
			req.Notes = t.AppendRequestNote
		} else {
			req.Notes += "\n" + t.AppendRequestNote
		}
	}
	f.requests[item.RequestID] = req
	return nil
}

func (f *fakeStore) IncrementRuleUsage(_ context.Context, id types.RuleID) error {
	if f.usageErr != nil {
		return f.usageErr
	}
	f.usage[id]++
	return nil
}

// pendingItems counts queue items currently awaiting review.
func (f *fakeStore) pendingItems() int {
	n := 0
	for _, item := range f.items {
		if item.ReviewStatus == types.ReviewPending {
			n++
		}
	}
	return n
}

// soleItem returns the only queue item, failing the test otherwise.
func (f *fakeStore) soleItem(t *testing.T) types.ReviewQueueItem {
	t.Helper()
	if len(f.items) != 1 {
		t.Fatalf("queue items = %d, want 1", len(f.items))
	}
	for _, item := range f.items {
		return item
	}
	return types.ReviewQueueItem{}
}

func testEngine(store *fakeStore, now time.Time) *Engine {
	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil)), WithClock(func() time.Time { return now }))
}
