package dto

import (
	"time"

	"github.com/spec-kit/incident-router/internal/domain"
)

// CreateAreaChangeRequest payload. The requester is the caller.
type CreateAreaChangeRequest struct {
	TicketID          int64  `json:"ticket_id"`
	ApproverID        *int64 `json:"approver_id"`
	OriginAreaID      int64  `json:"origin_area_id"`
	DestinationAreaID int64  `json:"destination_area_id"`
	Motive            string `json:"motive"`
}

// UpdateAreaChangeRequest payload.
type UpdateAreaChangeRequest struct {
	Status     *string `json:"status"`
	Motive     *string `json:"motive"`
	ApproverID *int64  `json:"approver_id"`
}

// AreaChangeResponse represents an area-change request.
type AreaChangeResponse struct {
	ID                int64                   `json:"id"`
	TicketID          int64                   `json:"ticket_id"`
	RequesterID       int64                   `json:"requester_id"`
	ApproverID        *int64                  `json:"approver_id"`
	OriginAreaID      int64                   `json:"origin_area_id"`
	DestinationAreaID int64                   `json:"destination_area_id"`
	Motive            string                  `json:"motive"`
	Status            domain.AreaChangeStatus `json:"status"`
	RequestedAt       time.Time               `json:"requested_at"`
	RespondedAt       *time.Time              `json:"responded_at"`
}
