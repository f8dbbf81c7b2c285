/*
 * Package store persists cancellation requests, rules, and review queue items
 * through named queries. It is the single implementation of engine.Store.
 *
 * Write invariants live here rather than in SQL triggers:
 *
 *   - RecordDecision applies the risk score, the request status change, and
 *     the queue item insert in one transaction.
 *   - ApplyTransition compares the caller's expected version in the UPDATE
 *     predicate; zero rows affected on an existing item means a concurrent
 *     reviewer won, reported as types.ErrVersionConflict.
 */
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rescindhq/rescind/internal/core/db"
	"github.com/rescindhq/rescind/internal/engine"
	"github.com/rescindhq/rescind/internal/risk"
	"github.com/rescindhq/rescind/internal/types"
)

// recentOrderLimit bounds the order summaries frozen into customer history.
const recentOrderLimit = 5

// Store implements engine.Store plus the rule and queue management surface
// used by the HTTP layer.
type Store struct {
	q   *db.Queries
	now func() time.Time
}

// New creates a store over loaded queries.
func New(q *db.Queries) *Store {
	return &Store{
		q:   q,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) GetRequest(ctx context.Context, id types.RequestID) (types.CancellationRequest, error) {
	var row requestRow
	if err := s.q.Get(ctx, "get-request", &row, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.CancellationRequest{}, types.ErrRequestNotFound
		}
		return types.CancellationRequest{}, fmt.Errorf("get request %s: %w", id, err)
	}
	return row.toDomain()
}

func (s *Store) GetOrder(ctx context.Context, id types.OrderID) (types.Order, error) {
	var row orderRow
	if err := s.q.Get(ctx, "get-order", &row, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Order{}, types.ErrOrderNotFound
		}
		return types.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return row.toDomain()
}

// GetCustomerHistory aggregates the customer's record as of a point in time.
// Recent cancellations are bounded to the scorer's burst window.
func (s *Store) GetCustomerHistory(ctx context.Context, id types.CustomerID, asOf time.Time) (types.CustomerHistory, error) {
	history := types.CustomerHistory{CustomerID: id}

	if err := s.q.Get(ctx, "count-orders-by-customer", &history.TotalOrders, string(id)); err != nil {
		return types.CustomerHistory{}, fmt.Errorf("count orders for %s: %w", id, err)
	}
	if err := s.q.Get(ctx, "count-cancellations-by-customer", &history.TotalCancellations, string(id)); err != nil {
		return types.CustomerHistory{}, fmt.Errorf("count cancellations for %s: %w", id, err)
	}

	cutoff := asOf.Add(-risk.BurstWindow)
	var stamps []string
	if err := s.q.Select(ctx, "list-recent-cancellation-times", &stamps, string(id), fmtTime(cutoff)); err != nil {
		return types.CustomerHistory{}, fmt.Errorf("list recent cancellations for %s: %w", id, err)
	}
	for _, stamp := range stamps {
		t, err := parseTime(stamp)
		if err != nil {
			return types.CustomerHistory{}, err
		}
		if t.After(asOf) {
			continue
		}
		history.RecentCancellations = append(history.RecentCancellations, t)
	}

	var orderRows []orderSummaryRow
	if err := s.q.Select(ctx, "list-recent-orders", &orderRows, string(id), recentOrderLimit); err != nil {
		return types.CustomerHistory{}, fmt.Errorf("list recent orders for %s: %w", id, err)
	}
	for _, row := range orderRows {
		summary, err := row.toDomain()
		if err != nil {
			return types.CustomerHistory{}, err
		}
		history.RecentOrders = append(history.RecentOrders, summary)
	}

	return history, nil
}

func (s *Store) ListActiveRules(ctx context.Context, org types.OrgID) ([]types.Rule, error) {
	var rows []ruleRow
	if err := s.q.Select(ctx, "list-active-rules", &rows, string(org)); err != nil {
		return nil, fmt.Errorf("list active rules for %s: %w", org, err)
	}
	return rulesFromRows(rows)
}

func (s *Store) GetPendingQueueItem(ctx context.Context, id types.RequestID) (types.ReviewQueueItem, error) {
	var row queueItemRow
	if err := s.q.Get(ctx, "get-pending-queue-item-for-request", &row, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ReviewQueueItem{}, types.ErrQueueItemNotFound
		}
		return types.ReviewQueueItem{}, fmt.Errorf("get pending queue item for request %s: %w", id, err)
	}
	return row.toDomain()
}

func (s *Store) GetQueueItem(ctx context.Context, id types.QueueItemID) (types.ReviewQueueItem, error) {
	var row queueItemRow
	if err := s.q.Get(ctx, "get-queue-item", &row, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ReviewQueueItem{}, types.ErrQueueItemNotFound
		}
		return types.ReviewQueueItem{}, fmt.Errorf("get queue item %s: %w", id, err)
	}
	return row.toDomain()
}

// RecordDecision persists a dispatch outcome atomically: the score, the
// status change when automatic, and the queue item when manual.
func (s *Store) RecordDecision(ctx context.Context, w engine.DecisionWrite) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		now := fmtTime(s.now())

		var (
			res sql.Result
			err error
		)
		if w.NewStatus != nil {
			res, err = s.q.ExecTx(ctx, tx, "update-request-decision",
				w.RiskScore, string(*w.NewStatus), now, string(w.RequestID))
		} else {
			res, err = s.q.ExecTx(ctx, tx, "update-request-score",
				w.RiskScore, now, string(w.RequestID))
		}
		if err != nil {
			return fmt.Errorf("record decision for %s: %w", w.RequestID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("record decision for %s: %w", w.RequestID, err)
		}
		if affected == 0 {
			return types.ErrRequestNotFound
		}

		if w.QueueItem != nil {
			if err := s.insertQueueItem(ctx, tx, w.QueueItem); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) insertQueueItem(ctx context.Context, tx *sqlx.Tx, item *types.ReviewQueueItem) error {
	indicators, err := json.Marshal(item.RiskIndicators)
	if err != nil {
		return fmt.Errorf("marshal risk indicators: %w", err)
	}
	history, err := json.Marshal(item.CustomerHistory)
	if err != nil {
		return fmt.Errorf("marshal customer history: %w", err)
	}

	_, err = s.q.ExecTx(ctx, tx, "insert-queue-item",
		string(item.QueueItemID), string(item.RequestID), string(item.OrderID),
		string(item.OrgID), string(item.RiskLevel), string(indicators),
		string(history), string(item.ReviewStatus), item.ReviewerID, item.Notes,
		nullTime(item.ReviewedAt), item.Version,
		fmtTime(item.CreatedAt), fmtTime(item.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert queue item %s: %w", item.QueueItemID, err)
	}
	return nil
}

// ApplyTransition moves a queue item through its state machine and applies
// the parent request's side effects in the same transaction. The version
// predicate in the UPDATE makes concurrent reviewer actions lose cleanly.
func (s *Store) ApplyTransition(ctx context.Context, t engine.Transition) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var item queueItemRow
		if err := s.q.GetTx(ctx, tx, "get-queue-item", &item, string(t.QueueItemID)); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return types.ErrQueueItemNotFound
			}
			return fmt.Errorf("get queue item %s: %w", t.QueueItemID, err)
		}

		now := fmtTime(s.now())
		res, err := s.q.ExecTx(ctx, tx, "transition-queue-item",
			string(t.ItemStatus), t.ReviewerID, t.Notes, nullTime(t.ReviewedAt),
			now, string(t.QueueItemID), t.ExpectedVersion)
		if err != nil {
			return fmt.Errorf("transition queue item %s: %w", t.QueueItemID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("transition queue item %s: %w", t.QueueItemID, err)
		}
		if affected == 0 {
			return types.ErrVersionConflict
		}

		if t.RequestStatus != nil {
			if _, err := s.q.ExecTx(ctx, tx, "update-request-status",
				string(*t.RequestStatus), now, item.RequestID); err != nil {
				return fmt.Errorf("update request %s status: %w", item.RequestID, err)
			}
		}
		if t.AppendRequestNote != "" {
			if _, err := s.q.ExecTx(ctx, tx, "append-request-note",
				t.AppendRequestNote, "\n"+t.AppendRequestNote, now, item.RequestID); err != nil {
				return fmt.Errorf("append note to request %s: %w", item.RequestID, err)
			}
		}
		return nil
	})
}

func (s *Store) IncrementRuleUsage(ctx context.Context, id types.RuleID) error {
	if _, err := s.q.Exec(ctx, "increment-rule-usage", string(id)); err != nil {
		return fmt.Errorf("increment usage for rule %s: %w", id, err)
	}
	return nil
}

// CreateRequest persists a new cancellation request in pending status.
func (s *Store) CreateRequest(ctx context.Context, req *types.CancellationRequest) error {
	_, err := s.q.Exec(ctx, "insert-request",
		string(req.RequestID), string(req.OrderID), string(req.CustomerID),
		string(req.OrgID), req.Reason, string(req.ReasonCategory),
		string(req.Initiator), string(req.RefundPreference), string(req.Status),
		req.Notes, fmtTime(req.CreatedAt), fmtTime(req.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert request %s: %w", req.RequestID, err)
	}
	return nil
}

// CreateOrder mirrors an order record from the host commerce platform.
func (s *Store) CreateOrder(ctx context.Context, order *types.Order) error {
	_, err := s.q.Exec(ctx, "insert-order",
		string(order.OrderID), string(order.OrgID), string(order.CustomerID),
		order.Status, order.FulfillmentStatus, order.PaymentStatus,
		order.TotalAmount.String(), order.Currency, fmtTime(order.PlacedAt))
	if err != nil {
		return fmt.Errorf("insert order %s: %w", order.OrderID, err)
	}
	return nil
}

// CreateRule persists a validated rule.
func (s *Store) CreateRule(ctx context.Context, rule *types.Rule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}

	_, err = s.q.Exec(ctx, "insert-rule",
		string(rule.RuleID), string(rule.OrgID), rule.Name, rule.Description,
		string(conditions), string(actions), rule.Priority, rule.Active,
		fmtTime(rule.CreatedAt), fmtTime(rule.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert rule %s: %w", rule.RuleID, err)
	}
	return nil
}

func (s *Store) GetRule(ctx context.Context, id types.RuleID) (types.Rule, error) {
	var row ruleRow
	if err := s.q.Get(ctx, "get-rule", &row, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Rule{}, types.ErrRuleNotFound
		}
		return types.Rule{}, fmt.Errorf("get rule %s: %w", id, err)
	}
	return row.toDomain()
}

// ListRules returns all rules for an organization in evaluation order.
func (s *Store) ListRules(ctx context.Context, org types.OrgID, limit int) ([]types.Rule, error) {
	var rows []ruleRow
	if err := s.q.Select(ctx, "list-rules", &rows, string(org), limit); err != nil {
		return nil, fmt.Errorf("list rules for %s: %w", org, err)
	}
	return rulesFromRows(rows)
}

// SetRuleActive toggles a rule without touching its definition.
func (s *Store) SetRuleActive(ctx context.Context, id types.RuleID, active bool) error {
	res, err := s.q.Exec(ctx, "set-rule-active", active, fmtTime(s.now()), string(id))
	if err != nil {
		return fmt.Errorf("set rule %s active=%t: %w", id, active, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set rule %s active=%t: %w", id, active, err)
	}
	if affected == 0 {
		return types.ErrRuleNotFound
	}
	return nil
}

// ListQueueItems returns queue items for an organization in a given review
// status, oldest first.
func (s *Store) ListQueueItems(ctx context.Context, org types.OrgID, status types.ReviewStatus, limit int) ([]types.ReviewQueueItem, error) {
	var rows []queueItemRow
	if err := s.q.Select(ctx, "list-queue-items", &rows, string(org), string(status), limit); err != nil {
		return nil, fmt.Errorf("list queue items for %s: %w", org, err)
	}

	items := make([]types.ReviewQueueItem, 0, len(rows))
	for _, row := range rows {
		item, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func rulesFromRows(rows []ruleRow) ([]types.Rule, error) {
	rules := make([]types.Rule, 0, len(rows))
	for _, row := range rows {
		rule, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.q.DB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
