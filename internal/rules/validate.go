// internal/rules/validate.go
package rules

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/rescindhq/rescind/internal/types"
)

/*
 * Creation-time rule validation.
 *
 * Enforcing structure when a rule is created moves configuration errors to
 * rule-creation time rather than evaluation time: the matcher can assume
 * every stored rule is well-formed and never needs to skip malformed
 * condition documents mid-decision.
 *
 * Two layers:
 *   - struct tags (go-playground/validator): enum membership, required
 *     fields, length and sign constraints
 *   - cross-field checks that tags cannot express: empty condition sets,
 *     inverted amount bounds, negative amounts
 */

// validate is package-level; validator.Validate caches struct metadata and
// is safe for concurrent use.
var validate = validator.New()

// Validate checks a rule for storage. Returns types.ErrInvalidRule (wrapped
// with detail) on tag violations, and the specific sentinel for cross-field
// failures.
func Validate(rule *types.Rule) error {
	if err := validate.Struct(rule); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidRule, err)
	}

	if rule.Conditions.Empty() {
		return types.ErrEmptyConditions
	}

	c := rule.Conditions
	if c.MinAmount != nil && c.MinAmount.IsNegative() {
		return fmt.Errorf("%w: min_amount is negative", types.ErrInvalidRule)
	}
	if c.MaxAmount != nil && c.MaxAmount.IsNegative() {
		return fmt.Errorf("%w: max_amount is negative", types.ErrInvalidRule)
	}
	if c.MinAmount != nil && c.MaxAmount != nil && c.MinAmount.GreaterThan(*c.MaxAmount) {
		return types.ErrAmountBoundsInverted
	}

	return nil
}
