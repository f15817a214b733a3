package domain

import "time"

// Ticket is the aggregate for incidents routed to an operational area.
type Ticket struct {
	ID            int64
	Title         string
	Description   string
	StateID       int64
	State         string
	CategoryID    int64
	AreaID        int64
	OperatorID    *int64
	CreatorID     int64
	PassengerID   *int64
	SLADeadline   time.Time
	SLABreachedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Unassigned reports whether no operator currently owns the ticket.
func (t *Ticket) Unassigned() bool {
	return t.OperatorID == nil
}

// AssignedTo reports whether actorID is the current owner.
func (t *Ticket) AssignedTo(actorID int64) bool {
	return t.OperatorID != nil && *t.OperatorID == actorID
}

// Overdue reports whether the deadline has passed at now.
func (t *Ticket) Overdue(now time.Time) bool {
	return now.After(t.SLADeadline)
}

// TicketDetails is the mutable part of a ticket exposed to detail edits.
type TicketDetails struct {
	Title       *string
	Description *string
}

// Empty reports whether no field was supplied.
func (d TicketDetails) Empty() bool {
	return d.Title == nil && d.Description == nil
}
