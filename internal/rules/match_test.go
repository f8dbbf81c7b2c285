// internal/rules/match_test.go
package rules

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"github.com/rescindhq/rescind/internal/types"
)

var matchBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func matchContext(mutate func(*Context)) Context {
	ctx := Context{
		Request: types.CancellationRequest{
			RequestID:  "req-1",
			Initiator:  types.InitiatorCustomer,
			CreatedAt:  matchBase,
			OrderID:    "order-1",
			CustomerID: "cust-1",
			OrgID:      "org-1",
		},
		Order: types.Order{
			OrderID:           "order-1",
			Status:            "open",
			FulfillmentStatus: "unfulfilled",
			PaymentStatus:     "paid",
			TotalAmount:       decimal.NewFromInt(100),
			PlacedAt:          matchBase.Add(-10 * time.Minute),
		},
		RiskScore: 0.2,
	}
	if mutate != nil {
		mutate(&ctx)
	}
	return ctx
}

func intPtr(v int) *int { return &v }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func activeRule(id string, priority int, c types.RuleConditions) types.Rule {
	return types.Rule{
		RuleID:     types.RuleID(id),
		OrgID:      "org-1",
		Name:       id,
		Conditions: c,
		Actions:    types.RuleActions{Action: types.ActionAutoApprove},
		Priority:   priority,
		Active:     true,
		CreatedAt:  matchBase.Add(-24 * time.Hour),
	}
}

func TestSatisfies_Dimensions(t *testing.T) {
	tests := []struct {
		name       string
		conditions types.RuleConditions
		mutate     func(*Context)
		want       bool
	}{
		{
			name:       "empty conditions match everything",
			conditions: types.RuleConditions{},
			want:       true,
		},
		{
			name:       "time window satisfied",
			conditions: types.RuleConditions{TimeWindowMinutes: intPtr(15)},
			want:       true,
		},
		{
			name:       "time window exceeded",
			conditions: types.RuleConditions{TimeWindowMinutes: intPtr(15)},
			mutate: func(ctx *Context) {
				ctx.Request.CreatedAt = ctx.Order.PlacedAt.Add(20 * time.Minute)
			},
			want: false,
		},
		{
			name:       "time window boundary is inclusive",
			conditions: types.RuleConditions{TimeWindowMinutes: intPtr(15)},
			mutate: func(ctx *Context) {
				ctx.Request.CreatedAt = ctx.Order.PlacedAt.Add(15 * time.Minute)
			},
			want: true,
		},
		{
			name:       "request predating order counts as inside window",
			conditions: types.RuleConditions{TimeWindowMinutes: intPtr(15)},
			mutate: func(ctx *Context) {
				ctx.Request.CreatedAt = ctx.Order.PlacedAt.Add(-5 * time.Minute)
			},
			want: true,
		},
		{
			name:       "initiator in set",
			conditions: types.RuleConditions{Initiators: []types.Initiator{types.InitiatorCustomer, types.InitiatorSystem}},
			want:       true,
		},
		{
			name:       "initiator not in set",
			conditions: types.RuleConditions{Initiators: []types.Initiator{types.InitiatorMerchant}},
			want:       false,
		},
		{
			name:       "risk level bucket in set",
			conditions: types.RuleConditions{RiskLevels: []types.RiskLevel{types.RiskLow}},
			want:       true,
		},
		{
			name:       "risk level bucket not in set",
			conditions: types.RuleConditions{RiskLevels: []types.RiskLevel{types.RiskHigh}},
			mutate:     func(ctx *Context) { ctx.RiskScore = 0.5 },
			want:       false,
		},
		{
			name:       "order status membership",
			conditions: types.RuleConditions{OrderStatuses: []string{"open", "held"}},
			want:       true,
		},
		{
			name:       "fulfillment status mismatch",
			conditions: types.RuleConditions{FulfillmentStatuses: []string{"fulfilled"}},
			want:       false,
		},
		{
			name:       "payment status membership",
			conditions: types.RuleConditions{PaymentStatuses: []string{"paid"}},
			want:       true,
		},
		{
			name:       "amount below min",
			conditions: types.RuleConditions{MinAmount: decPtr(200)},
			want:       false,
		},
		{
			name:       "amount at min boundary",
			conditions: types.RuleConditions{MinAmount: decPtr(100)},
			want:       true,
		},
		{
			name:       "amount above max",
			conditions: types.RuleConditions{MaxAmount: decPtr(50)},
			want:       false,
		},
		{
			name:       "amount at max boundary",
			conditions: types.RuleConditions{MaxAmount: decPtr(100)},
			want:       true,
		},
		{
			name: "one failed dimension defeats an otherwise matching rule",
			conditions: types.RuleConditions{
				TimeWindowMinutes: intPtr(60),
				Initiators:        []types.Initiator{types.InitiatorCustomer},
				OrderStatuses:     []string{"closed"},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Satisfies(tt.conditions, matchContext(tt.mutate))
			if got != tt.want {
				t.Errorf("Satisfies() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatch_FirstByPriority(t *testing.T) {
	rules := []types.Rule{
		activeRule("rule-broad", 50, types.RuleConditions{
			Initiators: []types.Initiator{types.InitiatorCustomer},
		}),
		activeRule("rule-specific", 10, types.RuleConditions{
			TimeWindowMinutes: intPtr(15),
		}),
	}

	matched, ok := Match(rules, matchContext(nil))
	if !ok {
		t.Fatal("Match() ok = false, want true")
	}
	if matched.RuleID != "rule-specific" {
		t.Errorf("Match() = %v, want rule-specific", matched.RuleID)
	}
}

func TestMatch_SkipsNonMatchingHigherPriority(t *testing.T) {
	rules := []types.Rule{
		activeRule("rule-merchant", 10, types.RuleConditions{
			Initiators: []types.Initiator{types.InitiatorMerchant},
		}),
		activeRule("rule-customer", 20, types.RuleConditions{
			Initiators: []types.Initiator{types.InitiatorCustomer},
		}),
	}

	matched, ok := Match(rules, matchContext(nil))
	if !ok {
		t.Fatal("Match() ok = false, want true")
	}
	if matched.RuleID != "rule-customer" {
		t.Errorf("Match() = %v, want rule-customer", matched.RuleID)
	}
}

func TestMatch_SkipsInactive(t *testing.T) {
	inactive := activeRule("rule-off", 10, types.RuleConditions{
		Initiators: []types.Initiator{types.InitiatorCustomer},
	})
	inactive.Active = false

	rules := []types.Rule{
		inactive,
		activeRule("rule-on", 20, types.RuleConditions{
			Initiators: []types.Initiator{types.InitiatorCustomer},
		}),
	}

	matched, ok := Match(rules, matchContext(nil))
	if !ok {
		t.Fatal("Match() ok = false, want true")
	}
	if matched.RuleID != "rule-on" {
		t.Errorf("Match() = %v, want rule-on", matched.RuleID)
	}
}

func TestMatch_NoRules(t *testing.T) {
	if _, ok := Match(nil, matchContext(nil)); ok {
		t.Error("Match(nil) ok = true, want false")
	}
}

func TestMatch_NoMatch(t *testing.T) {
	rules := []types.Rule{
		activeRule("rule-merchant", 10, types.RuleConditions{
			Initiators: []types.Initiator{types.InitiatorMerchant},
		}),
	}
	if _, ok := Match(rules, matchContext(nil)); ok {
		t.Error("Match() ok = true, want false")
	}
}

func TestMatch_EqualPriorityTieBreak(t *testing.T) {
	older := activeRule("rule-b", 10, types.RuleConditions{
		Initiators: []types.Initiator{types.InitiatorCustomer},
	})
	older.CreatedAt = matchBase.Add(-48 * time.Hour)
	newer := activeRule("rule-a", 10, types.RuleConditions{
		Initiators: []types.Initiator{types.InitiatorCustomer},
	})
	newer.CreatedAt = matchBase.Add(-24 * time.Hour)

	// Creation time breaks the tie before rule ID.
	matched, ok := Match([]types.Rule{newer, older}, matchContext(nil))
	if !ok {
		t.Fatal("Match() ok = false, want true")
	}
	if matched.RuleID != "rule-b" {
		t.Errorf("Match() = %v, want rule-b (older creation wins)", matched.RuleID)
	}

	// Identical creation times fall back to rule ID order.
	newer.CreatedAt = older.CreatedAt
	matched, ok = Match([]types.Rule{newer, older}, matchContext(nil))
	if !ok {
		t.Fatal("Match() ok = false, want true")
	}
	if matched.RuleID != "rule-a" {
		t.Errorf("Match() = %v, want rule-a (lower ID wins)", matched.RuleID)
	}
}

func TestMatch_InputOrderIrrelevant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	rules := []types.Rule{
		activeRule("rule-1", 30, types.RuleConditions{Initiators: []types.Initiator{types.InitiatorCustomer}}),
		activeRule("rule-2", 10, types.RuleConditions{OrderStatuses: []string{"open"}}),
		activeRule("rule-3", 20, types.RuleConditions{MaxAmount: decPtr(500)}),
		activeRule("rule-4", 10, types.RuleConditions{PaymentStatuses: []string{"refunded"}}),
	}

	properties.Property("match result is independent of candidate order", prop.ForAll(
		func(i, j int) bool {
			shuffled := make([]types.Rule, len(rules))
			copy(shuffled, rules)
			shuffled[i%len(shuffled)], shuffled[j%len(shuffled)] =
				shuffled[j%len(shuffled)], shuffled[i%len(shuffled)]

			a, aok := Match(rules, matchContext(nil))
			b, bok := Match(shuffled, matchContext(nil))
			return aok == bok && a.RuleID == b.RuleID
		},
		gen.IntRange(0, 3),
		gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}
