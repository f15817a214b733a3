package dto

import (
	"time"

	"github.com/spec-kit/incident-router/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CategoryID  int64  `json:"category_id"`
	PassengerID *int64 `json:"passenger_id"`
}

// UpdateTicketRequest payload. Only title and description are editable.
type UpdateTicketRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// ChangeStateRequest payload.
type ChangeStateRequest struct {
	State string `json:"state"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body string `json:"body"`
}

// TicketResponse represents a ticket.
type TicketResponse struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	State         string     `json:"state"`
	CategoryID    int64      `json:"category_id"`
	AreaID        int64      `json:"area_id"`
	OperatorID    *int64     `json:"operator_id"`
	CreatorID     int64      `json:"creator_id"`
	PassengerID   *int64     `json:"passenger_id"`
	SLADeadline   time.Time  `json:"sla_deadline"`
	SLABreachedAt *time.Time `json:"sla_breached_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketResponse
	Comments []CommentResponse       `json:"comments"`
	History  []TicketHistoryResponse `json:"history"`
}

// CommentResponse represents a thread comment.
type CommentResponse struct {
	ID        int64     `json:"id"`
	AuthorID  int64     `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketHistoryResponse represents an audit entry.
type TicketHistoryResponse struct {
	ID         int64                   `json:"id"`
	ActorID    *int64                  `json:"actor_id"`
	ChangeType domain.TicketChangeType `json:"change_type"`
	OldValue   map[string]any          `json:"old_value"`
	NewValue   map[string]any          `json:"new_value"`
	CreatedAt  time.Time               `json:"created_at"`
}
