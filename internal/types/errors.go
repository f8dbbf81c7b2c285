package types

import "errors"

// Sentinel errors for Rescind operations.
var (
	// ErrRequestNotFound indicates the referenced cancellation request does not exist.
	ErrRequestNotFound = errors.New("cancellation request not found")

	// ErrOrderNotFound indicates the referenced order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrQueueItemNotFound indicates the referenced review queue item does not exist.
	ErrQueueItemNotFound = errors.New("review queue item not found")

	// ErrRuleNotFound indicates the referenced rule does not exist.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrNotesRequired indicates a transition that must be explainable was
	// attempted without notes (deny) or without a message (request info).
	ErrNotesRequired = errors.New("notes are required for this transition")

	// ErrReviewerRequired indicates a reviewer action without a reviewer identity.
	ErrReviewerRequired = errors.New("reviewer identity is required")

	// ErrVersionConflict indicates a concurrent reviewer updated the queue
	// item between read and write; the caller should re-read and retry.
	ErrVersionConflict = errors.New("queue item was modified concurrently")

	// ErrRequestFinal indicates a transition was attempted on a request in a
	// terminal status. A denied request never transitions; open a new one.
	ErrRequestFinal = errors.New("cancellation request is in a terminal status")

	// ErrNotAwaitingInfo indicates a customer reply was submitted for a queue
	// item that has no outstanding information request.
	ErrNotAwaitingInfo = errors.New("queue item is not awaiting customer information")

	// ErrInvalidRule indicates a rule failed creation-time validation.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrEmptyConditions indicates a rule with no predicate dimensions at all.
	// A rule that matches everything is almost always a configuration mistake.
	ErrEmptyConditions = errors.New("rule has no conditions")

	// ErrAmountBoundsInverted indicates min_amount exceeds max_amount.
	ErrAmountBoundsInverted = errors.New("min_amount exceeds max_amount")
)
