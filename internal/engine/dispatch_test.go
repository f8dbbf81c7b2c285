// internal/engine/dispatch_test.go
package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rescindhq/rescind/internal/risk"
	"github.com/rescindhq/rescind/internal/types"
)

var dispatchNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// seedRequest loads a pending request plus its order and history into the
// fake, with the request created minutesAfterOrder past order placement.
func seedRequest(f *fakeStore, minutesAfterOrder int) types.RequestID {
	placed := dispatchNow.Add(-time.Hour)
	order := types.Order{
		OrderID:           "order-1",
		OrgID:             "org-1",
		CustomerID:        "cust-1",
		Status:            "open",
		FulfillmentStatus: "unfulfilled",
		PaymentStatus:     "paid",
		TotalAmount:       decimal.NewFromInt(80),
		PlacedAt:          placed,
	}
	req := types.CancellationRequest{
		RequestID:        types.NewRequestID(),
		OrderID:          order.OrderID,
		CustomerID:       order.CustomerID,
		OrgID:            order.OrgID,
		ReasonCategory:   types.ReasonOrderedByMistake,
		Initiator:        types.InitiatorCustomer,
		RefundPreference: types.RefundFull,
		Status:           types.RequestPending,
		CreatedAt:        placed.Add(time.Duration(minutesAfterOrder) * time.Minute),
	}
	f.orders[order.OrderID] = order
	f.requests[req.RequestID] = req
	f.history[order.CustomerID] = types.CustomerHistory{
		CustomerID:  order.CustomerID,
		TotalOrders: 12,
	}
	return req.RequestID
}

func quickCancelRule(action types.RuleAction) types.Rule {
	window := 15
	return types.Rule{
		RuleID:     types.NewRuleID(),
		OrgID:      "org-1",
		Name:       "quick cancellations",
		Conditions: types.RuleConditions{TimeWindowMinutes: &window},
		Actions:    types.RuleActions{Action: action},
		Priority:   10,
		Active:     true,
		CreatedAt:  dispatchNow.Add(-24 * time.Hour),
	}
}

func TestScoreAndDecide_AutoApproveWithinWindow(t *testing.T) {
	f := newFakeStore()
	id := seedRequest(f, 10)
	rule := quickCancelRule(types.ActionAutoApprove)
	f.rules = append(f.rules, rule)

	d, err := testEngine(f, dispatchNow).ScoreAndDecide(context.Background(), id)
	if err != nil {
		t.Fatalf("ScoreAndDecide() error = %v, want nil", err)
	}

	if d.Action != types.ActionAutoApprove {
		t.Errorf("Action = %v, want auto_approve", d.Action)
	}
	if d.MatchedRuleID == nil || *d.MatchedRuleID != rule.RuleID {
		t.Errorf("MatchedRuleID = %v, want %v", d.MatchedRuleID, rule.RuleID)
	}

	req := f.requests[id]
	if req.Status != types.RequestApproved {
		t.Errorf("request status = %v, want approved", req.Status)
	}
	if req.RiskScore == nil {
		t.Error("request risk score not recorded")
	}
	if len(f.items) != 0 {
		t.Errorf("queue items = %d, want 0", len(f.items))
	}
	if f.usage[rule.RuleID] != 1 {
		t.Errorf("rule usage = %d, want 1", f.usage[rule.RuleID])
	}
}

func TestScoreAndDecide_ManualReviewOutsideWindow(t *testing.T) {
	f := newFakeStore()
	id := seedRequest(f, 20)
	f.rules = append(f.rules, quickCancelRule(types.ActionAutoApprove))

	d, err := testEngine(f, dispatchNow).ScoreAndDecide(context.Background(), id)
	if err != nil {
		t.Fatalf("ScoreAndDecide() error = %v, want nil", err)
	}

	if d.Action != types.ActionManualReview {
		t.Errorf("Action = %v, want manual_review", d.Action)
	}
	if d.Reason != "no rule matched" {
		t.Errorf("Reason = %q, want %q", d.Reason, "no rule matched")
	}

	req := f.requests[id]
	if req.Status != types.RequestPending {
		t.Errorf("request status = %v, want pending", req.Status)
	}

	item := f.soleItem(t)
	if item.ReviewStatus != types.ReviewPending {
		t.Errorf("item status = %v, want pending", item.ReviewStatus)
	}
	if item.Version != 1 {
		t.Errorf("item version = %d, want 1", item.Version)
	}
	if item.CustomerHistory.TotalOrders != 12 {
		t.Errorf("frozen history orders = %d, want 12", item.CustomerHistory.TotalOrders)
	}
}

func TestScoreAndDecide_DenyRule(t *testing.T) {
	f := newFakeStore()
	id := seedRequest(f, 10)
	f.rules = append(f.rules, quickCancelRule(types.ActionDeny))

	d, err := testEngine(f, dispatchNow).ScoreAndDecide(context.Background(), id)
	if err != nil {
		t.Fatalf("ScoreAndDecide() error = %v, want nil", err)
	}

	if d.Action != types.ActionDeny {
		t.Errorf("Action = %v, want deny", d.Action)
	}
	if f.requests[id].Status != types.RequestDenied {
		t.Errorf("request status = %v, want denied", f.requests[id].Status)
	}
	if len(f.items) != 0 {
		t.Errorf("queue items = %d, want 0", len(f.items))
	}
	if len(f.usage) != 0 {
		t.Errorf("usage recorded for deny, want none")
	}
}

func TestScoreAndDecide_EscalateRuleQueues(t *testing.T) {
	f := newFakeStore()
	id := seedRequest(f, 10)
	rule := quickCancelRule(types.ActionEscalate)
	f.rules = append(f.rules, rule)

	d, err := testEngine(f, dispatchNow).ScoreAndDecide(context.Background(), id)
	if err != nil {
		t.Fatalf("ScoreAndDecide() error = %v, want nil", err)
	}

	if d.Action != types.ActionEscalate {
		t.Errorf("Action = %v, want escalate", d.Action)
	}
	if d.QueueItemID == nil {
		t.Fatal("QueueItemID = nil, want item")
	}

	item := f.soleItem(t)
	if item.RiskIndicators.MatchedRuleID == nil || *item.RiskIndicators.MatchedRuleID != rule.RuleID {
		t.Errorf("frozen matched rule = %v, want %v", item.RiskIndicators.MatchedRuleID, rule.RuleID)
	}
	if f.requests[id].Status != types.RequestPending {
		t.Errorf("request status = %v, want pending", f.requests[id].Status)
	}
}

func TestScoreAndDecide_NoRulesConfigured(t *testing.T) {
	f := newFakeStore()
	id := seedRequest(f, 10)

	d, err := testEngine(f, dispatchNow).ScoreAndDecide(context.Background(), id)
	if err != nil {
		t.Fatalf("ScoreAndDecide() error = %v, want nil", err)
	}
	if d.Action != types.ActionManualReview {
		t.Errorf("Action = %v, want manual_review", d.Action)
	}
	if f.pendingItems() != 1 {
		t.Errorf("pending items = %d, want 1", f.pendingItems())
	}
}

func TestScoreAndDecide_RequestNotFound(t *testing.T) {
	f := newFakeStore()
	_, err := testEngine(f, dispatchNow).ScoreAndDecide(context.Background(), types.NewRequestID())
	if !errors.Is(err, types.ErrRequestNotFound) {
		t.Errorf("ScoreAndDecide() error = %v, want ErrRequestNotFound", err)
	}
}

func TestScoreAndDecide_FailSafeOnOrderLookup(t *testing.T) {
	f := newFakeStore()
	id := seedRequest(f, 10)
	f.rules = append(f.rules, quickCancelRule(types.ActionAutoApprove))
	f.orderErr = errors.New("order service unavailable")

	d, err := testEngine(f, dispatchNow).ScoreAndDecide(context.Background(), id)
	if err != nil {
		t.Fatalf("ScoreAndDecide() error = %v, want nil (fail-safe)", err)
	}

	if d.Action != types.ActionManualReview {
		t.Errorf("Action = %v, want manual_review", d.Action)
	}
	item := f.soleItem(t)
	if !strings.Contains(item.Notes, "order service unavailable") {
		t.Errorf("item notes = %q, want failure recorded", item.Notes)
	}
	if item.RiskIndicators.Score != risk.DefaultScore {
		t.Errorf("frozen score = %v, want DefaultScore", item.RiskIndicators.Score)
	}
}

func TestScoreAndDecide_FailSafeOnRuleLoad(t *testing.T) {
	f := newFakeStore()
	id := seedRequest(f, 10)
	f.rulesErr = errors.New("rules table locked")

	d, err := testEngine(f, dispatchNow).ScoreAndDecide(context.Background(), id)
	if err != nil {
		t.Fatalf("ScoreAndDecide() error = %v, want nil (fail-safe)", err)
	}
	if d.Action != types.ActionManualReview {
		t.Errorf("Action = %v, want manual_review", d.Action)
	}
	if f.pendingItems() != 1 {
		t.Errorf("pending items = %d, want 1", f.pendingItems())
	}
}

func TestScoreAndDecide_DegradedHistoryStillDecides(t *testing.T) {
	f := newFakeStore()
	id := seedRequest(f, 10)
	f.historyErr = errors.New("history shard down")
	f.rules = append(f.rules, quickCancelRule(types.ActionAutoApprove))

	d, err := testEngine(f, dispatchNow).ScoreAndDecide(context.Background(), id)
	if err != nil {
		t.Fatalf("ScoreAndDecide() error = %v, want nil (degraded mode)", err)
	}

	// Degraded mode substitutes the conservative default score but the
	// pipeline still runs to a decision.
	if d.RiskScore != risk.DefaultScore {
		t.Errorf("RiskScore = %v, want DefaultScore", d.RiskScore)
	}
	if d.Action != types.ActionAutoApprove {
		t.Errorf("Action = %v, want auto_approve", d.Action)
	}
}

func TestScoreAndDecide_DecisionWriteFailurePropagates(t *testing.T) {
	f := newFakeStore()
	id := seedRequest(f, 10)
	f.rules = append(f.rules, quickCancelRule(types.ActionAutoApprove))
	f.decisionErr = errors.New("disk full")

	_, err := testEngine(f, dispatchNow).ScoreAndDecide(context.Background(), id)
	if err == nil {
		t.Fatal("ScoreAndDecide() error = nil, want write failure")
	}
}

func TestScoreAndDecide_LostUsageCounterDoesNotFailDecision(t *testing.T) {
	f := newFakeStore()
	id := seedRequest(f, 10)
	f.rules = append(f.rules, quickCancelRule(types.ActionAutoApprove))
	f.usageErr = errors.New("counter update failed")

	d, err := testEngine(f, dispatchNow).ScoreAndDecide(context.Background(), id)
	if err != nil {
		t.Fatalf("ScoreAndDecide() error = %v, want nil", err)
	}
	if d.Action != types.ActionAutoApprove {
		t.Errorf("Action = %v, want auto_approve", d.Action)
	}
}

func TestScoreAndDecide_Idempotent(t *testing.T) {
	tests := []struct {
		name       string
		status     types.RequestStatus
		wantAction types.RuleAction
	}{
		{"approved request", types.RequestApproved, types.ActionAutoApprove},
		{"completed request", types.RequestCompleted, types.ActionAutoApprove},
		{"denied request", types.RequestDenied, types.ActionDeny},
		{"awaiting information", types.RequestInfoRequested, types.ActionManualReview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeStore()
			id := seedRequest(f, 10)
			req := f.requests[id]
			req.Status = tt.status
			score := 0.3
			req.RiskScore = &score
			f.requests[id] = req

			d, err := testEngine(f, dispatchNow).ScoreAndDecide(context.Background(), id)
			if err != nil {
				t.Fatalf("ScoreAndDecide() error = %v, want nil", err)
			}
			if d.Action != tt.wantAction {
				t.Errorf("Action = %v, want %v", d.Action, tt.wantAction)
			}
			if d.RiskScore != score {
				t.Errorf("RiskScore = %v, want recorded %v", d.RiskScore, score)
			}
			if len(f.items) != 0 {
				t.Errorf("queue items = %d, want 0 (no re-evaluation)", len(f.items))
			}
		})
	}
}

func TestScoreAndDecide_PendingLookupFailureDoesNotDuplicate(t *testing.T) {
	f := newFakeStore()
	id := seedRequest(f, 20)
	eng := testEngine(f, dispatchNow)

	if _, err := eng.ScoreAndDecide(context.Background(), id); err != nil {
		t.Fatalf("first ScoreAndDecide() error = %v, want nil", err)
	}
	if f.pendingItems() != 1 {
		t.Fatalf("pending items = %d, want 1", f.pendingItems())
	}

	// A transient fault during the idempotency check must surface as an
	// error, not slip past and insert a second pending item.
	f.pendingErr = errors.New("connection reset")
	if _, err := eng.ScoreAndDecide(context.Background(), id); err == nil {
		t.Fatal("ScoreAndDecide() error = nil, want lookup failure propagated")
	}
	if f.pendingItems() != 1 {
		t.Errorf("pending items = %d, want 1 (no duplicate)", f.pendingItems())
	}

	// Once the store recovers, dispatch returns the existing item.
	f.pendingErr = nil
	d, err := eng.ScoreAndDecide(context.Background(), id)
	if err != nil {
		t.Fatalf("ScoreAndDecide() after recovery error = %v, want nil", err)
	}
	if d.QueueItemID == nil {
		t.Error("QueueItemID = nil, want existing item")
	}
	if f.pendingItems() != 1 {
		t.Errorf("pending items = %d, want 1", f.pendingItems())
	}
}

func TestScoreAndDecide_ExistingQueueItemReturned(t *testing.T) {
	f := newFakeStore()
	id := seedRequest(f, 20)
	eng := testEngine(f, dispatchNow)

	first, err := eng.ScoreAndDecide(context.Background(), id)
	if err != nil {
		t.Fatalf("first ScoreAndDecide() error = %v, want nil", err)
	}
	second, err := eng.ScoreAndDecide(context.Background(), id)
	if err != nil {
		t.Fatalf("second ScoreAndDecide() error = %v, want nil", err)
	}

	if len(f.items) != 1 {
		t.Fatalf("queue items = %d, want 1 (no duplicate)", len(f.items))
	}
	if second.QueueItemID == nil || *second.QueueItemID != *first.QueueItemID {
		t.Errorf("second QueueItemID = %v, want %v", second.QueueItemID, first.QueueItemID)
	}
}
