// internal/rules/match.go
package rules

import (
	"sort"

	"github.com/rescindhq/rescind/internal/risk"
	"github.com/rescindhq/rescind/internal/types"
)

/*
 * Rule matching for cancellation decisioning.
 *
 * Evaluates the organization's active rules against an evaluation context
 * (request, order, previously computed risk score) in ascending priority
 * order and returns the first rule whose entire condition set is satisfied.
 *
 * Matching semantics:
 *   - All present dimensions on a rule are ANDed; an unset dimension is
 *     "don't care".
 *   - A single failed dimension defeats the rule (non-match, not an error).
 *   - Evaluation stops at the first full match; later rules never run.
 *   - No match is a valid outcome; the caller applies the safe default
 *     (manual review).
 *
 * Tie-break: rules with equal priority are ordered by creation time, then
 * rule ID (both ascending). Stable sort keeps the order deterministic for
 * identical inputs.
 */

// Context is the evaluation context a rule's conditions are tested against.
type Context struct {
	Request   types.CancellationRequest
	Order     types.Order
	RiskScore float64
}

// Match returns the first active rule fully satisfied by ctx, or ok=false
// when no rule matches. Inactive rules are skipped regardless of position.
func Match(candidates []types.Rule, ctx Context) (types.Rule, bool) {
	ordered := make([]types.Rule, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].RuleID < ordered[j].RuleID
	})

	for _, rule := range ordered {
		if !rule.Active {
			continue
		}
		if Satisfies(rule.Conditions, ctx) {
			return rule, true
		}
	}
	return types.Rule{}, false
}

// Satisfies reports whether every present condition dimension holds for ctx.
func Satisfies(c types.RuleConditions, ctx Context) bool {
	if c.TimeWindowMinutes != nil && !withinWindow(ctx, *c.TimeWindowMinutes) {
		return false
	}
	if len(c.Initiators) > 0 && !contains(c.Initiators, ctx.Request.Initiator) {
		return false
	}
	if len(c.RiskLevels) > 0 && !contains(c.RiskLevels, risk.Level(ctx.RiskScore)) {
		return false
	}
	if len(c.OrderStatuses) > 0 && !contains(c.OrderStatuses, ctx.Order.Status) {
		return false
	}
	if len(c.FulfillmentStatuses) > 0 && !contains(c.FulfillmentStatuses, ctx.Order.FulfillmentStatus) {
		return false
	}
	if len(c.PaymentStatuses) > 0 && !contains(c.PaymentStatuses, ctx.Order.PaymentStatus) {
		return false
	}
	if c.MinAmount != nil && ctx.Order.TotalAmount.LessThan(*c.MinAmount) {
		return false
	}
	if c.MaxAmount != nil && ctx.Order.TotalAmount.GreaterThan(*c.MaxAmount) {
		return false
	}
	return true
}

// withinWindow checks that the request was created no later than windowMinutes
// after order placement. Requests predating the order (clock skew between
// systems) are treated as inside the window.
func withinWindow(ctx Context, windowMinutes int) bool {
	elapsed := ctx.Request.CreatedAt.Sub(ctx.Order.PlacedAt)
	return elapsed.Minutes() <= float64(windowMinutes)
}

// contains is a membership test over the small sets rule conditions use.
func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
