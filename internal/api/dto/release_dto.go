package dto

import "time"

// ReleaseRequest payload.
type ReleaseRequest struct {
	Comment *string `json:"comment"`
}

// ReleaseResponse represents a release record.
type ReleaseResponse struct {
	ID         int64     `json:"id"`
	TicketID   int64     `json:"ticket_id"`
	OperatorID int64     `json:"operator_id"`
	Comment    *string   `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}
