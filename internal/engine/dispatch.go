// internal/engine/dispatch.go
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rescindhq/rescind/internal/risk"
	"github.com/rescindhq/rescind/internal/rules"
	"github.com/rescindhq/rescind/internal/types"
)

/*
 * Decision dispatch.
 *
 * ScoreAndDecide drives one cancellation request through the pipeline:
 * score -> match -> persist. The score and the resulting status change (or
 * queue item) are written in a single store transaction so a crash cannot
 * leave a request scored but undecided; re-running the dispatcher on the
 * same request is idempotent because scoring is deterministic and decided
 * requests short-circuit before re-evaluation.
 *
 * Failure containment:
 *   - request not found: surfaced to the caller, nothing retried
 *   - idempotency-check failure (pending item lookup): surfaced to the
 *     caller; deciding without it risks a duplicate pending item
 *   - history lookup failure: recovered locally with DefaultScore (0.5)
 *     and a degraded-mode warning; not an error to the caller
 *   - any other failure (order lookup, rule load, panic): fail-safe routing
 *     to manual review with the failure recorded in the item notes; the
 *     pipeline always reaches a terminal outcome for every request
 *   - store write failure on the final decision: propagated; there is no
 *     safer write available at that point
 */

// Decision is the outcome of one dispatch.
type Decision struct {
	Action        types.RuleAction   `json:"action"`
	MatchedRuleID *types.RuleID      `json:"matched_rule_id,omitempty"`
	Reason        string             `json:"reason"`
	QueueItemID   *types.QueueItemID `json:"queue_item_id,omitempty"`
	RiskScore     float64            `json:"risk_score"`
}

// ScoreAndDecide evaluates a cancellation request and persists the outcome.
// Safe to call multiple times for the same request: decided requests return
// their recorded outcome and queued requests return the existing item.
func (e *Engine) ScoreAndDecide(ctx context.Context, id types.RequestID) (d Decision, err error) {
	req, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return Decision{}, err
	}

	done, decision, err := e.shortCircuit(ctx, req)
	if err != nil {
		return Decision{}, err
	}
	if done {
		return decision, nil
	}

	// Fail-safe backstop: a panic anywhere in scoring or matching must not
	// leave the request in limbo with neither a decision nor a queue entry.
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("dispatch panicked, routing to manual review",
				"request_id", req.RequestID, "panic", r)
			d, err = e.failSafe(ctx, req, risk.DefaultScore,
				fmt.Sprintf("dispatch panic: %v", r))
		}
	}()

	order, oerr := e.store.GetOrder(ctx, req.OrderID)
	if oerr != nil {
		return e.failSafe(ctx, req, risk.DefaultScore,
			fmt.Sprintf("order lookup failed: %v", oerr))
	}

	score, history := e.scoreRequest(ctx, req, order)

	active, rerr := e.store.ListActiveRules(ctx, req.OrgID)
	if rerr != nil {
		return e.failSafe(ctx, req, score,
			fmt.Sprintf("rule load failed: %v", rerr))
	}

	matchCtx := rules.Context{Request: req, Order: order, RiskScore: score}
	matched, ok := rules.Match(active, matchCtx)
	if !ok {
		return e.queueForReview(ctx, req, score, history, nil,
			types.ActionManualReview, "no rule matched")
	}

	reason := fmt.Sprintf("matched rule %q", matched.Name)
	ruleID := matched.RuleID

	switch matched.Actions.Action {
	case types.ActionAutoApprove:
		status := types.RequestApproved
		w := DecisionWrite{RequestID: req.RequestID, RiskScore: score, NewStatus: &status}
		if err := e.store.RecordDecision(ctx, w); err != nil {
			return Decision{}, err
		}
		e.bumpUsage(ctx, ruleID)
		return Decision{
			Action:        types.ActionAutoApprove,
			MatchedRuleID: &ruleID,
			Reason:        reason,
			RiskScore:     score,
		}, nil

	case types.ActionDeny:
		status := types.RequestDenied
		w := DecisionWrite{RequestID: req.RequestID, RiskScore: score, NewStatus: &status}
		if err := e.store.RecordDecision(ctx, w); err != nil {
			return Decision{}, err
		}
		return Decision{
			Action:        types.ActionDeny,
			MatchedRuleID: &ruleID,
			Reason:        reason,
			RiskScore:     score,
		}, nil

	default:
		// manual_review and escalate both create a pending queue item; the
		// request stays pending until a human acts.
		return e.queueForReview(ctx, req, score, history, &ruleID,
			matched.Actions.Action, reason)
	}
}

// shortCircuit handles requests that already carry an outcome so repeated
// dispatch calls are idempotent. A failed pending-item lookup is an error,
// never "no item": proceeding on a transient store fault could insert a
// second pending queue item for the same request.
func (e *Engine) shortCircuit(ctx context.Context, req types.CancellationRequest) (bool, Decision, error) {
	score := 0.0
	if req.RiskScore != nil {
		score = *req.RiskScore
	}

	switch req.Status {
	case types.RequestApproved, types.RequestCompleted:
		return true, Decision{Action: types.ActionAutoApprove, Reason: "request already approved", RiskScore: score}, nil
	case types.RequestDenied:
		return true, Decision{Action: types.ActionDeny, Reason: "request already denied", RiskScore: score}, nil
	case types.RequestInfoRequested:
		return true, Decision{Action: types.ActionManualReview, Reason: "awaiting customer information", RiskScore: score}, nil
	}

	item, err := e.store.GetPendingQueueItem(ctx, req.RequestID)
	switch {
	case err == nil:
		itemID := item.QueueItemID
		return true, Decision{
			Action:      types.ActionManualReview,
			Reason:      "request already queued for review",
			QueueItemID: &itemID,
			RiskScore:   score,
		}, nil
	case errors.Is(err, types.ErrQueueItemNotFound):
		return false, Decision{}, nil
	default:
		return false, Decision{}, fmt.Errorf("pending queue item lookup failed: %w", err)
	}
}

// scoreRequest computes the risk score, substituting DefaultScore when the
// customer history cannot be loaded (degraded mode, warned not errored).
func (e *Engine) scoreRequest(ctx context.Context, req types.CancellationRequest, order types.Order) (float64, types.CustomerHistory) {
	history, err := e.store.GetCustomerHistory(ctx, req.CustomerID, req.CreatedAt)
	if err != nil {
		e.log.Warn("customer history unavailable, scoring degraded",
			"request_id", req.RequestID, "customer_id", req.CustomerID, "error", err)
		return risk.DefaultScore, types.CustomerHistory{CustomerID: req.CustomerID}
	}

	return risk.Score(risk.Input{Request: req, Order: order, History: history}), history
}

// queueForReview records the score and creates a pending queue item with a
// frozen snapshot of the scoring context in one transaction.
func (e *Engine) queueForReview(
	ctx context.Context,
	req types.CancellationRequest,
	score float64,
	history types.CustomerHistory,
	matchedRuleID *types.RuleID,
	action types.RuleAction,
	reason string,
) (Decision, error) {
	now := e.now()
	item := types.ReviewQueueItem{
		QueueItemID: types.NewQueueItemID(),
		RequestID:   req.RequestID,
		OrderID:     req.OrderID,
		OrgID:       req.OrgID,
		RiskLevel:   risk.Level(score),
		RiskIndicators: types.RiskIndicators{
			Score:         score,
			Level:         risk.Level(score),
			MatchedRuleID: matchedRuleID,
			Reason:        reason,
		},
		CustomerHistory: history,
		ReviewStatus:    types.ReviewPending,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	w := DecisionWrite{RequestID: req.RequestID, RiskScore: score, QueueItem: &item}
	if err := e.store.RecordDecision(ctx, w); err != nil {
		return Decision{}, err
	}

	itemID := item.QueueItemID
	return Decision{
		Action:        action,
		MatchedRuleID: matchedRuleID,
		Reason:        reason,
		QueueItemID:   &itemID,
		RiskScore:     score,
	}, nil
}

// failSafe routes a request to manual review after an internal failure,
// recording the failure reason in the item notes.
func (e *Engine) failSafe(ctx context.Context, req types.CancellationRequest, score float64, failure string) (Decision, error) {
	e.log.Warn("automatic decisioning failed, routing to manual review",
		"request_id", req.RequestID, "failure", failure)

	now := e.now()
	item := types.ReviewQueueItem{
		QueueItemID: types.NewQueueItemID(),
		RequestID:   req.RequestID,
		OrderID:     req.OrderID,
		OrgID:       req.OrgID,
		RiskLevel:   risk.Level(score),
		RiskIndicators: types.RiskIndicators{
			Score:  score,
			Level:  risk.Level(score),
			Reason: "automatic decisioning failed",
		},
		CustomerHistory: types.CustomerHistory{CustomerID: req.CustomerID},
		ReviewStatus:    types.ReviewPending,
		Notes:           "automatic decisioning failed: " + failure,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	w := DecisionWrite{RequestID: req.RequestID, RiskScore: score, QueueItem: &item}
	if err := e.store.RecordDecision(ctx, w); err != nil {
		return Decision{}, err
	}

	itemID := item.QueueItemID
	return Decision{
		Action:      types.ActionManualReview,
		Reason:      "automatic decisioning failed",
		QueueItemID: &itemID,
		RiskScore:   score,
	}, nil
}

// bumpUsage increments the matched rule's usage counter. Fire-and-forget:
// usage counts are a display metric, not billing or control, so a lost
// increment is acceptable.
func (e *Engine) bumpUsage(ctx context.Context, id types.RuleID) {
	if err := e.store.IncrementRuleUsage(context.WithoutCancel(ctx), id); err != nil {
		e.log.Debug("rule usage increment lost", "rule_id", id, "error", err)
	}
}
