// internal/risk/score.go
package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rescindhq/rescind/internal/types"
)

/*
 * Risk scoring for cancellation requests.
 *
 * Additive heuristic over a small set of weighted factors, not a trained
 * model. Given a request, its order, and the customer's history, Score
 * returns a value in [0,1] where higher means more likely abuse.
 *
 * Factors:
 *   - cancellation_rate: historical cancellations / orders, weighted 0.3
 *   - high_value: order total above threshold adds 0.1
 *   - fast_cancel: request within 30 minutes of placement subtracts 0.1
 *     (fast cancellations read as buyer's remorse, not abuse)
 *   - vague_reason: reason outside the low-suspicion set adds 0.1
 *   - burst: >= 3 cancellation requests in the trailing 7 days adds 0.3
 *     (dominant signal for serial-cancellation abuse)
 *
 * Determinism: identical inputs always produce identical scores. Missing
 * optional fields contribute zero rather than erroring; a customer with no
 * prior orders has a zero cancellation rate, never a division by zero.
 *
 * Degraded mode: when the caller cannot load history it substitutes
 * DefaultScore (0.5) and logs a warning. Conservative medium risk routes
 * toward manual review instead of crashing or silently under-scoring.
 */

// Canonical factor weights. Single source of truth for scoring; tests and
// merchant documentation reference these names.
const (
	// WeightCancellationRate scales the customer's historical cancellation rate.
	WeightCancellationRate = 0.3

	// HighValuePenalty is added when the order total exceeds HighValueThreshold.
	HighValuePenalty = 0.1

	// FastCancelCredit is subtracted when the request arrives within
	// FastCancelWindow of order placement.
	FastCancelCredit = 0.1

	// VagueReasonPenalty is added for reason categories outside the
	// low-suspicion set.
	VagueReasonPenalty = 0.1

	// BurstPenalty is added when the customer hit BurstThreshold requests
	// inside BurstWindow.
	BurstPenalty = 0.3

	// BurstThreshold is the request count that triggers BurstPenalty.
	BurstThreshold = 3

	// DefaultScore is the conservative medium-risk substitute used when
	// history cannot be loaded.
	DefaultScore = 0.5
)

const (
	// FastCancelWindow bounds how soon after placement a cancellation still
	// counts as buyer's remorse.
	FastCancelWindow = 30 * time.Minute

	// BurstWindow is the trailing period inspected for serial cancellations.
	BurstWindow = 7 * 24 * time.Hour
)

// HighValueThreshold is the order total above which HighValuePenalty applies,
// in the order's currency units.
var HighValueThreshold = decimal.NewFromInt(500)

// lowSuspicionReasons are categories that read as legitimate changes of mind.
// Anything else (including uncategorized) takes VagueReasonPenalty.
var lowSuspicionReasons = map[types.ReasonCategory]bool{
	types.ReasonFoundBetterPrice: true,
	types.ReasonNoLongerNeeded:   true,
	types.ReasonOrderedByMistake: true,
}

// Input carries everything the scorer consumes. All fields are plain data;
// the scorer performs no I/O.
type Input struct {
	Request types.CancellationRequest
	Order   types.Order
	History types.CustomerHistory
}

// Breakdown is the per-factor decomposition of a score, recorded for audit
// and reviewer display.
type Breakdown struct {
	Factors map[string]float64 `json:"factors"`
	Score   float64            `json:"score"`
}

// Score computes the [0,1] risk score for a cancellation request.
func Score(in Input) float64 {
	return Explain(in).Score
}

// Explain computes the score together with its factor breakdown. Factors
// accumulate in a fixed order so identical inputs produce bit-identical
// scores (float addition is not associative).
func Explain(in Input) Breakdown {
	factors := make(map[string]float64, 5)
	total := 0.0
	add := func(name string, v float64) {
		factors[name] = v
		total += v
	}

	if in.History.TotalOrders > 0 {
		rate := float64(in.History.TotalCancellations) / float64(in.History.TotalOrders)
		add("cancellation_rate", rate*WeightCancellationRate)
	}

	if in.Order.TotalAmount.GreaterThan(HighValueThreshold) {
		add("high_value", HighValuePenalty)
	}

	// Zero placement time means the order context is incomplete; the factor
	// contributes nothing rather than comparing against the epoch.
	if !in.Order.PlacedAt.IsZero() && !in.Request.CreatedAt.IsZero() {
		elapsed := in.Request.CreatedAt.Sub(in.Order.PlacedAt)
		if elapsed >= 0 && elapsed <= FastCancelWindow {
			add("fast_cancel", -FastCancelCredit)
		}
	}

	if !lowSuspicionReasons[in.Request.ReasonCategory] {
		add("vague_reason", VagueReasonPenalty)
	}

	if burstCount(in.History.RecentCancellations, in.Request.CreatedAt) >= BurstThreshold {
		add("burst", BurstPenalty)
	}

	return Breakdown{Factors: factors, Score: clamp(total)}
}

// Level buckets a numeric score for rule matching and queue triage.
// score >= 0.7 -> high, >= 0.4 -> medium, else low.
func Level(score float64) types.RiskLevel {
	switch {
	case score >= 0.7:
		return types.RiskHigh
	case score >= 0.4:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// burstCount counts cancellation requests inside the trailing BurstWindow
// ending at asOf. Future-dated entries are ignored.
func burstCount(recent []time.Time, asOf time.Time) int {
	if asOf.IsZero() {
		return len(recent)
	}
	cutoff := asOf.Add(-BurstWindow)
	n := 0
	for _, t := range recent {
		if !t.Before(cutoff) && !t.After(asOf) {
			n++
		}
	}
	return n
}

// clamp bounds a score to the closed interval [0,1].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
