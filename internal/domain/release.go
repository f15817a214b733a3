package domain

import "time"

// Release records an operator giving up ownership of a ticket. Written once, never mutated.
type Release struct {
	ID         int64
	TicketID   int64
	OperatorID int64
	Comment    *string
	CreatedAt  time.Time
}
