package types

import (
	"github.com/google/uuid"
)

// NewRequestID generates a UUIDv7 cancellation request identifier.
// Time-ordered IDs ensure sequential inserts cluster in B-tree pages.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRequestID() RequestID {
	return RequestID(uuid.Must(uuid.NewV7()).String())
}

// NewRuleID generates a UUIDv7 rule identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// NewQueueItemID generates a UUIDv7 review queue item identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewQueueItemID() QueueItemID {
	return QueueItemID(uuid.Must(uuid.NewV7()).String())
}

// ParseRequestID validates and converts a string to RequestID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the system.
func ParseRequestID(s string) (RequestID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return RequestID(s), nil
}

// ParseRuleID validates and converts a string to RuleID.
func ParseRuleID(s string) (RuleID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return RuleID(s), nil
}

// ParseQueueItemID validates and converts a string to QueueItemID.
func ParseQueueItemID(s string) (QueueItemID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return QueueItemID(s), nil
}
