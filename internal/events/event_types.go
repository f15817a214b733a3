package events

import (
	"time"

	"github.com/spec-kit/incident-router/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketClaimed       EventType = "ticket_claimed"
	EventTicketReleased      EventType = "ticket_released"
	EventTicketStateChanged  EventType = "ticket_state_changed"
	EventTicketSLABreached   EventType = "ticket_sla_breached"
	EventAreaChangeRequested EventType = "area_change_requested"
	EventAreaChangeResolved  EventType = "area_change_resolved"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  int64     `json:"ticket_id"`
	ActorID   *int64    `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CategoryID  int64     `json:"category_id"`
	AreaID      int64     `json:"area_id"`
	Title       string    `json:"title"`
	SLADeadline time.Time `json:"sla_deadline"`
}

// TicketClaimedPayload payload.
type TicketClaimedPayload struct {
	OperatorID int64 `json:"operator_id"`
	AreaID     int64 `json:"area_id"`
}

// TicketReleasedPayload payload.
type TicketReleasedPayload struct {
	ReleaseID  int64   `json:"release_id"`
	OperatorID int64   `json:"operator_id"`
	Comment    *string `json:"comment,omitempty"`
}

// TicketStateChangedPayload payload.
type TicketStateChangedPayload struct {
	OldState string `json:"old_state"`
	NewState string `json:"new_state"`
}

// TicketSLABreachedPayload payload.
type TicketSLABreachedPayload struct {
	SLADeadline time.Time `json:"sla_deadline"`
	AreaID      int64     `json:"area_id"`
	OperatorID  *int64    `json:"operator_id,omitempty"`
}

// AreaChangePayload payload for request and resolution events.
type AreaChangePayload struct {
	RequestID         int64                   `json:"request_id"`
	OriginAreaID      int64                   `json:"origin_area_id"`
	DestinationAreaID int64                   `json:"destination_area_id"`
	Status            domain.AreaChangeStatus `json:"status"`
	Applied           bool                    `json:"applied"`
}
