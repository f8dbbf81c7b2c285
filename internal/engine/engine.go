// Package engine implements the cancellation decisioning pipeline: risk
// scoring, rule matching, decision persistence, and the review queue state
// machine. It is the only writer of request statuses, risk scores, and queue
// items; everything else in the application reads what it produces.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/rescindhq/rescind/internal/types"
)

// DecisionWrite is the atomic unit persisted at the end of a dispatch: the
// request's score, its new status when the decision is automatic, and the
// queue item when it is not. Stores must apply all fields in one transaction
// so a crash cannot leave a request scored but undecided.
type DecisionWrite struct {
	RequestID types.RequestID
	RiskScore float64

	// NewStatus is set for automatic outcomes (approved/denied) and nil when
	// the request stays pending behind a queue item.
	NewStatus *types.RequestStatus

	// QueueItem is non-nil when the outcome is manual review or escalation.
	QueueItem *types.ReviewQueueItem
}

// Transition is the atomic unit persisted by a reviewer action: the queue
// item's new state plus whatever changes the parent request takes. Stores
// must compare ExpectedVersion and reject with types.ErrVersionConflict when
// a concurrent reviewer got there first.
type Transition struct {
	QueueItemID     types.QueueItemID
	ExpectedVersion int

	ItemStatus types.ReviewStatus
	ReviewerID string
	Notes      string
	ReviewedAt *time.Time

	// RequestStatus is set when the parent request changes status with the
	// item (approve/deny); nil leaves the request as it is.
	RequestStatus *types.RequestStatus

	// AppendRequestNote is appended to the parent request's notes when
	// non-empty (request-info messages, customer replies).
	AppendRequestNote string
}

// Store is the persistence surface the engine consumes. Implemented by
// internal/core/store; narrow on purpose so tests supply fakes.
type Store interface {
	GetRequest(ctx context.Context, id types.RequestID) (types.CancellationRequest, error)
	GetOrder(ctx context.Context, id types.OrderID) (types.Order, error)
	GetCustomerHistory(ctx context.Context, id types.CustomerID, asOf time.Time) (types.CustomerHistory, error)
	ListActiveRules(ctx context.Context, org types.OrgID) ([]types.Rule, error)

	// GetPendingQueueItem returns the pending item for a request, or
	// types.ErrQueueItemNotFound when none exists.
	GetPendingQueueItem(ctx context.Context, id types.RequestID) (types.ReviewQueueItem, error)
	GetQueueItem(ctx context.Context, id types.QueueItemID) (types.ReviewQueueItem, error)

	RecordDecision(ctx context.Context, w DecisionWrite) error
	ApplyTransition(ctx context.Context, t Transition) error

	// IncrementRuleUsage is best-effort; the engine never fails a decision
	// over a lost counter update.
	IncrementRuleUsage(ctx context.Context, id types.RuleID) error
}

// Engine orchestrates scoring, matching, and review transitions against a Store.
type Engine struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source. Tests use it to pin
// deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine. A nil logger falls back to slog.Default.
func New(store Store, log *slog.Logger, opts ...Option) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
