package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rescindhq/rescind/internal/types"
)

/*
 * Row structs mirror table columns one to one. All timestamps are stored as
 * RFC3339 UTC strings so the same scan code works for both sqlite and
 * postgres; conversion to time.Time happens here and nowhere else.
 */

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t, nil
}

type requestRow struct {
	RequestID        string          `db:"request_id"`
	OrderID          string          `db:"order_id"`
	CustomerID       string          `db:"customer_id"`
	OrgID            string          `db:"org_id"`
	Reason           string          `db:"reason"`
	ReasonCategory   string          `db:"reason_category"`
	Initiator        string          `db:"initiator"`
	RefundPreference string          `db:"refund_preference"`
	Status           string          `db:"status"`
	RiskScore        sql.NullFloat64 `db:"risk_score"`
	Notes            string          `db:"notes"`
	CreatedAt        string          `db:"created_at"`
	UpdatedAt        string          `db:"updated_at"`
}

func (r requestRow) toDomain() (types.CancellationRequest, error) {
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return types.CancellationRequest{}, err
	}
	updatedAt, err := parseTime(r.UpdatedAt)
	if err != nil {
		return types.CancellationRequest{}, err
	}

	req := types.CancellationRequest{
		RequestID:        types.RequestID(r.RequestID),
		OrderID:          types.OrderID(r.OrderID),
		CustomerID:       types.CustomerID(r.CustomerID),
		OrgID:            types.OrgID(r.OrgID),
		Reason:           r.Reason,
		ReasonCategory:   types.ReasonCategory(r.ReasonCategory),
		Initiator:        types.Initiator(r.Initiator),
		RefundPreference: types.RefundPreference(r.RefundPreference),
		Status:           types.RequestStatus(r.Status),
		Notes:            r.Notes,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}
	if r.RiskScore.Valid {
		score := r.RiskScore.Float64
		req.RiskScore = &score
	}
	return req, nil
}

type orderRow struct {
	OrderID           string `db:"order_id"`
	OrgID             string `db:"org_id"`
	CustomerID        string `db:"customer_id"`
	Status            string `db:"status"`
	FulfillmentStatus string `db:"fulfillment_status"`
	PaymentStatus     string `db:"payment_status"`
	TotalAmount       string `db:"total_amount"`
	Currency          string `db:"currency"`
	PlacedAt          string `db:"placed_at"`
}

func (r orderRow) toDomain() (types.Order, error) {
	amount, err := decimal.NewFromString(r.TotalAmount)
	if err != nil {
		return types.Order{}, fmt.Errorf("invalid stored amount %q: %w", r.TotalAmount, err)
	}
	placedAt, err := parseTime(r.PlacedAt)
	if err != nil {
		return types.Order{}, err
	}

	return types.Order{
		OrderID:           types.OrderID(r.OrderID),
		OrgID:             types.OrgID(r.OrgID),
		CustomerID:        types.CustomerID(r.CustomerID),
		Status:            r.Status,
		FulfillmentStatus: r.FulfillmentStatus,
		PaymentStatus:     r.PaymentStatus,
		TotalAmount:       amount,
		Currency:          r.Currency,
		PlacedAt:          placedAt,
	}, nil
}

type orderSummaryRow struct {
	OrderID     string `db:"order_id"`
	Status      string `db:"status"`
	TotalAmount string `db:"total_amount"`
	PlacedAt    string `db:"placed_at"`
}

func (r orderSummaryRow) toDomain() (types.OrderSummary, error) {
	amount, err := decimal.NewFromString(r.TotalAmount)
	if err != nil {
		return types.OrderSummary{}, fmt.Errorf("invalid stored amount %q: %w", r.TotalAmount, err)
	}
	placedAt, err := parseTime(r.PlacedAt)
	if err != nil {
		return types.OrderSummary{}, err
	}

	return types.OrderSummary{
		OrderID:     types.OrderID(r.OrderID),
		Status:      r.Status,
		TotalAmount: amount,
		PlacedAt:    placedAt,
	}, nil
}

type ruleRow struct {
	RuleID      string `db:"rule_id"`
	OrgID       string `db:"org_id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Conditions  string `db:"conditions"`
	Actions     string `db:"actions"`
	Priority    int    `db:"priority"`
	Active      bool   `db:"active"`
	UsageCount  int64  `db:"usage_count"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func (r ruleRow) toDomain() (types.Rule, error) {
	var conditions types.RuleConditions
	if err := json.Unmarshal([]byte(r.Conditions), &conditions); err != nil {
		return types.Rule{}, fmt.Errorf("invalid stored conditions for rule %s: %w", r.RuleID, err)
	}
	var actions types.RuleActions
	if err := json.Unmarshal([]byte(r.Actions), &actions); err != nil {
		return types.Rule{}, fmt.Errorf("invalid stored actions for rule %s: %w", r.RuleID, err)
	}
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return types.Rule{}, err
	}
	updatedAt, err := parseTime(r.UpdatedAt)
	if err != nil {
		return types.Rule{}, err
	}

	return types.Rule{
		RuleID:      types.RuleID(r.RuleID),
		OrgID:       types.OrgID(r.OrgID),
		Name:        r.Name,
		Description: r.Description,
		Conditions:  conditions,
		Actions:     actions,
		Priority:    r.Priority,
		Active:      r.Active,
		UsageCount:  r.UsageCount,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

type queueItemRow struct {
	QueueItemID     string         `db:"queue_item_id"`
	RequestID       string         `db:"request_id"`
	OrderID         string         `db:"order_id"`
	OrgID           string         `db:"org_id"`
	RiskLevel       string         `db:"risk_level"`
	RiskIndicators  string         `db:"risk_indicators"`
	CustomerHistory string         `db:"customer_history"`
	ReviewStatus    string         `db:"review_status"`
	ReviewerID      string         `db:"reviewer_id"`
	Notes           string         `db:"notes"`
	ReviewedAt      sql.NullString `db:"reviewed_at"`
	Version         int            `db:"version"`
	CreatedAt       string         `db:"created_at"`
	UpdatedAt       string         `db:"updated_at"`
}

func (r queueItemRow) toDomain() (types.ReviewQueueItem, error) {
	var indicators types.RiskIndicators
	if err := json.Unmarshal([]byte(r.RiskIndicators), &indicators); err != nil {
		return types.ReviewQueueItem{}, fmt.Errorf("invalid stored risk indicators for item %s: %w", r.QueueItemID, err)
	}
	var history types.CustomerHistory
	if err := json.Unmarshal([]byte(r.CustomerHistory), &history); err != nil {
		return types.ReviewQueueItem{}, fmt.Errorf("invalid stored customer history for item %s: %w", r.QueueItemID, err)
	}
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return types.ReviewQueueItem{}, err
	}
	updatedAt, err := parseTime(r.UpdatedAt)
	if err != nil {
		return types.ReviewQueueItem{}, err
	}

	item := types.ReviewQueueItem{
		QueueItemID:     types.QueueItemID(r.QueueItemID),
		RequestID:       types.RequestID(r.RequestID),
		OrderID:         types.OrderID(r.OrderID),
		OrgID:           types.OrgID(r.OrgID),
		RiskLevel:       types.RiskLevel(r.RiskLevel),
		RiskIndicators:  indicators,
		CustomerHistory: history,
		ReviewStatus:    types.ReviewStatus(r.ReviewStatus),
		ReviewerID:      r.ReviewerID,
		Notes:           r.Notes,
		Version:         r.Version,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}
	if r.ReviewedAt.Valid {
		reviewedAt, err := parseTime(r.ReviewedAt.String)
		if err != nil {
			return types.ReviewQueueItem{}, err
		}
		item.ReviewedAt = &reviewedAt
	}
	return item, nil
}

// nullTime converts an optional time to its stored representation.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}
