// internal/types/rules.go
package types

/*
 * Domain types for automation rules.
 *
 * Provides Rule, RuleConditions, and RuleActions structures used by
 * internal/rules for validation and matching. A rule's condition set is a
 * tagged union of supported predicate dimensions rather than an open-ended
 * document: every dimension has a concrete field, and an unset field means
 * "don't care" for that dimension. Validation happens at rule creation time
 * so malformed configuration never reaches the evaluation path.
 *
 * Key types:
 *   - Rule: Complete rule definition with priority and usage counter
 *   - RuleConditions: Sparse AND predicate over independent dimensions
 *   - RuleActions: Discriminated action plus side-effect flags
 */

import (
	"time"

	"github.com/shopspring/decimal"
)

// RuleConditions is a sparse predicate over independent request/order
// dimensions. A nil pointer or empty slice means the dimension is not
// constrained. All present dimensions are ANDed at match time.
type RuleConditions struct {
	// TimeWindowMinutes is satisfied iff request creation time minus order
	// placement time is <= the window.
	TimeWindowMinutes *int `json:"time_window_minutes,omitempty" validate:"omitempty,gt=0"`

	// Initiators is satisfied iff the request initiator is in the set.
	Initiators []Initiator `json:"initiators,omitempty" validate:"omitempty,dive,oneof=customer merchant system"`

	// RiskLevels is satisfied iff the bucketed risk score is in the set.
	RiskLevels []RiskLevel `json:"risk_levels,omitempty" validate:"omitempty,dive,oneof=low medium high"`

	// Order field membership tests against the order's corresponding field.
	OrderStatuses       []string `json:"order_statuses,omitempty" validate:"omitempty,dive,min=1"`
	FulfillmentStatuses []string `json:"fulfillment_statuses,omitempty" validate:"omitempty,dive,min=1"`
	PaymentStatuses     []string `json:"payment_statuses,omitempty" validate:"omitempty,dive,min=1"`

	// Inclusive bounds on the order total. Either side may be open.
	MinAmount *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount *decimal.Decimal `json:"max_amount,omitempty"`
}

// Empty reports whether no dimension is constrained.
func (c RuleConditions) Empty() bool {
	return c.TimeWindowMinutes == nil &&
		len(c.Initiators) == 0 &&
		len(c.RiskLevels) == 0 &&
		len(c.OrderStatuses) == 0 &&
		len(c.FulfillmentStatuses) == 0 &&
		len(c.PaymentStatuses) == 0 &&
		c.MinAmount == nil &&
		c.MaxAmount == nil
}

// RuleActions is the discriminated outcome applied when a rule matches.
type RuleActions struct {
	Action         RuleAction `json:"action" validate:"required,oneof=auto_approve manual_review deny escalate"`
	NotifyCustomer bool       `json:"notify_customer"` // delivery is the host application's job
}

// Rule is a merchant-configured automation policy. Rules are evaluated in
// ascending priority order; the first full match decides the request.
type Rule struct {
	RuleID      RuleID         `validate:"required"`
	OrgID       OrgID          `validate:"required"`
	Name        string         `validate:"required,max=128"`
	Description string         `validate:"max=1024"`
	Conditions  RuleConditions `validate:"required"`
	Actions     RuleActions    `validate:"required"`
	Priority    int            `validate:"gte=0"`
	Active      bool
	UsageCount  int64 // display metric, best-effort (see internal/engine)
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
