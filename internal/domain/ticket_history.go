package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeClaim   TicketChangeType = "CLAIM"
	ChangeTypeRelease TicketChangeType = "RELEASE"
	ChangeTypeState   TicketChangeType = "STATE_CHANGE"
	ChangeTypeArea    TicketChangeType = "AREA_CHANGE"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID         int64
	TicketID   int64
	ActorID    *int64
	ChangeType TicketChangeType
	OldValue   map[string]any
	NewValue   map[string]any
	CreatedAt  time.Time
}
