// Package types provides domain models shared across Rescind components.
//
// Hand-written types only: status enumerations, entity structs, and helper
// methods live here so that the risk scorer, rule matcher, and decision
// engine share one vocabulary without importing each other. Wire and storage
// concerns (JSON columns, HTTP DTOs) convert to and from these types at the
// store/API boundary.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestID represents a UUIDv7 cancellation request identifier.
// String alias enables type safety while maintaining JSON string serialization.
// UUIDv7 time-ordering ensures sequential IDs cluster in B-tree indexes.
type RequestID string

// OrderID represents an order identifier as issued by the host commerce platform.
type OrderID string

// CustomerID represents a customer identifier as issued by the host commerce platform.
type CustomerID string

// OrgID represents an organization (merchant) identifier.
type OrgID string

// RuleID represents a UUIDv7 automation rule identifier.
type RuleID string

// QueueItemID represents a UUIDv7 review queue item identifier.
type QueueItemID string

// RequestStatus is the lifecycle status of a cancellation request.
// Transitions are one-directional except info_requested -> pending (the
// customer supplied more information). A denied request never transitions.
type RequestStatus string

const (
	RequestPending       RequestStatus = "pending"
	RequestApproved      RequestStatus = "approved"
	RequestDenied        RequestStatus = "denied"
	RequestInfoRequested RequestStatus = "info_requested"
	RequestCompleted     RequestStatus = "completed"
)

// Terminal reports whether the status permits no further engine transitions.
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestDenied || s == RequestCompleted
}

// ReasonCategory is the categorical cancellation reason supplied by the initiator.
type ReasonCategory string

const (
	ReasonChangedMind      ReasonCategory = "changed_mind"
	ReasonDeliveryDelay    ReasonCategory = "delivery_delay"
	ReasonProductIssue     ReasonCategory = "product_issue"
	ReasonFoundBetterPrice ReasonCategory = "found_better_price"
	ReasonNoLongerNeeded   ReasonCategory = "no_longer_needed"
	ReasonOrderedByMistake ReasonCategory = "ordered_by_mistake"
	ReasonOther            ReasonCategory = "other"
)

// Initiator identifies who opened the cancellation request.
type Initiator string

const (
	InitiatorCustomer Initiator = "customer"
	InitiatorMerchant Initiator = "merchant"
	InitiatorSystem   Initiator = "system"
)

// RefundPreference is the refund outcome requested alongside the cancellation.
type RefundPreference string

const (
	RefundFull    RefundPreference = "full"
	RefundPartial RefundPreference = "partial"
	RefundNone    RefundPreference = "none"
)

// RiskLevel is the bucketed form of a numeric risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ReviewStatus is the lifecycle status of a review queue item.
type ReviewStatus string

const (
	ReviewPending       ReviewStatus = "pending"
	ReviewApproved      ReviewStatus = "approved"
	ReviewDenied        ReviewStatus = "denied"
	ReviewInfoRequested ReviewStatus = "info_requested"
	ReviewEscalated     ReviewStatus = "escalated"
)

// RuleAction is the automated outcome a matched rule applies to a request.
type RuleAction string

const (
	ActionAutoApprove  RuleAction = "auto_approve"
	ActionManualReview RuleAction = "manual_review"
	ActionDeny         RuleAction = "deny"
	ActionEscalate     RuleAction = "escalate"
)

// CancellationRequest is a customer's or merchant's recorded intent to
// cancel an order, subject to automated or manual decisioning.
type CancellationRequest struct {
	RequestID        RequestID
	OrderID          OrderID
	CustomerID       CustomerID
	OrgID            OrgID
	Reason           string
	ReasonCategory   ReasonCategory
	Initiator        Initiator
	RefundPreference RefundPreference
	Status           RequestStatus
	RiskScore        *float64 // nil until scored
	Notes            string   // reviewer annotations and customer replies
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Order carries the order fields the engine consumes. Orders are owned by
// the host commerce platform; the engine reads them and never writes.
type Order struct {
	OrderID           OrderID
	OrgID             OrgID
	CustomerID        CustomerID
	Status            string // e.g. open, closed, cancelled
	FulfillmentStatus string // e.g. unfulfilled, partial, fulfilled
	PaymentStatus     string // e.g. pending, authorized, paid, refunded
	TotalAmount       decimal.Decimal
	Currency          string
	PlacedAt          time.Time
}

// OrderSummary is a compact order record frozen into review snapshots.
type OrderSummary struct {
	OrderID     OrderID         `json:"order_id"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PlacedAt    time.Time       `json:"placed_at"`
}

// CustomerHistory aggregates a customer's order and cancellation record as
// of a single point in time. Input to the risk scorer; also frozen into
// queue items so reviewers see what the system knew at decision time.
type CustomerHistory struct {
	CustomerID          CustomerID     `json:"customer_id"`
	TotalOrders         int            `json:"total_orders"`
	TotalCancellations  int            `json:"total_cancellations"`
	RecentCancellations []time.Time    `json:"recent_cancellations"` // request times in the trailing burst window
	RecentOrders        []OrderSummary `json:"recent_orders"`
}

// RiskIndicators is the frozen scoring context attached to a queue item.
// Computed once at item creation and never recomputed (audit integrity).
type RiskIndicators struct {
	Score         float64   `json:"score"`
	Level         RiskLevel `json:"level"`
	MatchedRuleID *RuleID   `json:"matched_rule_id,omitempty"`
	Reason        string    `json:"reason"`
}

// ReviewQueueItem is a durable work item for human adjudication of a
// cancellation request the engine could not decide automatically.
type ReviewQueueItem struct {
	QueueItemID     QueueItemID
	RequestID       RequestID
	OrderID         OrderID
	OrgID           OrgID
	RiskLevel       RiskLevel
	RiskIndicators  RiskIndicators
	CustomerHistory CustomerHistory
	ReviewStatus    ReviewStatus
	ReviewerID      string
	Notes           string
	ReviewedAt      *time.Time
	Version         int // optimistic concurrency token, bumped on every transition
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
