// internal/engine/review.go
package engine

import (
	"context"
	"strings"

	"github.com/rescindhq/rescind/internal/types"
)

/*
 * Review queue state machine.
 *
 * Items start pending and move to approved, denied, info_requested, or
 * escalated via reviewer actions. info_requested is not terminal: the
 * customer's reply returns the item to pending for another pass.
 *
 * Every transition updates the queue item and the parent request's relevant
 * fields in one store transaction; a transition never updates one without
 * the other. Each transition reads the item, then writes with an optimistic
 * version check; a concurrent reviewer produces types.ErrVersionConflict
 * instead of a silent lost update.
 *
 * Reviewer transitions are not gated on the item's current state (approving
 * an escalated item is legal and re-stamps reviewer/notes/timestamp). The
 * customer path is: a reply lands only on an item in info_requested. In both
 * cases the parent request is the hard boundary: a request already in a
 * terminal status refuses further transitions with types.ErrRequestFinal.
 */

// Approve marks the item approved and the underlying request approved.
// Notes are optional.
func (e *Engine) Approve(ctx context.Context, itemID types.QueueItemID, reviewerID, notes string) error {
	if reviewerID == "" {
		return types.ErrReviewerRequired
	}
	status := types.RequestApproved
	return e.transition(ctx, itemID, types.ReviewApproved, reviewerID, notes, &status, "")
}

// Deny marks the item denied and the underlying request denied. Notes are
// required: a denial must be explainable to the customer and to audit.
func (e *Engine) Deny(ctx context.Context, itemID types.QueueItemID, reviewerID, notes string) error {
	if reviewerID == "" {
		return types.ErrReviewerRequired
	}
	if strings.TrimSpace(notes) == "" {
		return types.ErrNotesRequired
	}
	status := types.RequestDenied
	return e.transition(ctx, itemID, types.ReviewDenied, reviewerID, notes, &status, "")
}

// RequestInfo marks the item info_requested and annotates the request with
// the reviewer's message. The request moves to info_requested until the
// customer replies; notifying the customer is the host application's
// responsibility.
func (e *Engine) RequestInfo(ctx context.Context, itemID types.QueueItemID, reviewerID, message string) error {
	if reviewerID == "" {
		return types.ErrReviewerRequired
	}
	if strings.TrimSpace(message) == "" {
		return types.ErrNotesRequired
	}
	status := types.RequestInfoRequested
	return e.transition(ctx, itemID, types.ReviewInfoRequested, reviewerID, message, &status,
		"info requested: "+message)
}

// Escalate marks the item escalated. The request stays pending; notifying
// the support team is the host application's responsibility.
func (e *Engine) Escalate(ctx context.Context, itemID types.QueueItemID, reviewerID, notes string) error {
	if reviewerID == "" {
		return types.ErrReviewerRequired
	}
	return e.transition(ctx, itemID, types.ReviewEscalated, reviewerID, notes, nil, "")
}

// RespondToInfo records the customer's reply to an information request: the
// item returns to pending (front of review) and the reply is appended to the
// request's notes. The original reason and reason category are untouched.
// Only items currently awaiting information accept a reply, and a request in
// a terminal status never reopens, even through the customer path.
func (e *Engine) RespondToInfo(ctx context.Context, itemID types.QueueItemID, message string) error {
	if strings.TrimSpace(message) == "" {
		return types.ErrNotesRequired
	}

	item, err := e.store.GetQueueItem(ctx, itemID)
	if err != nil {
		return err
	}

	req, err := e.store.GetRequest(ctx, item.RequestID)
	if err != nil {
		return err
	}
	if req.Status.Terminal() {
		return types.ErrRequestFinal
	}
	if item.ReviewStatus != types.ReviewInfoRequested {
		return types.ErrNotAwaitingInfo
	}

	pending := types.RequestPending
	t := Transition{
		QueueItemID:       item.QueueItemID,
		ExpectedVersion:   item.Version,
		ItemStatus:        types.ReviewPending,
		ReviewerID:        item.ReviewerID, // reply does not change who reviewed
		Notes:             item.Notes,
		ReviewedAt:        item.ReviewedAt,
		RequestStatus:     &pending,
		AppendRequestNote: "customer response: " + message,
	}
	return e.store.ApplyTransition(ctx, t)
}

// transition applies a reviewer action: read the item, then write item and
// request atomically under the item's version.
func (e *Engine) transition(
	ctx context.Context,
	itemID types.QueueItemID,
	to types.ReviewStatus,
	reviewerID, notes string,
	requestStatus *types.RequestStatus,
	appendNote string,
) error {
	item, err := e.store.GetQueueItem(ctx, itemID)
	if err != nil {
		return err
	}

	req, err := e.store.GetRequest(ctx, item.RequestID)
	if err != nil {
		return err
	}
	if req.Status.Terminal() {
		return types.ErrRequestFinal
	}

	now := e.now()
	t := Transition{
		QueueItemID:       item.QueueItemID,
		ExpectedVersion:   item.Version,
		ItemStatus:        to,
		ReviewerID:        reviewerID,
		Notes:             notes,
		ReviewedAt:        &now,
		RequestStatus:     requestStatus,
		AppendRequestNote: appendNote,
	}
	return e.store.ApplyTransition(ctx, t)
}
