package domain

import (
	"strings"
	"time"
)

// AreaChangeStatus is the approval state of an area-change request.
type AreaChangeStatus string

const (
	AreaChangePending  AreaChangeStatus = "PENDIENTE"
	AreaChangeApproved AreaChangeStatus = "APROBADA"
	AreaChangeRejected AreaChangeStatus = "RECHAZADA"
)

// ParseAreaChangeStatus accepts exactly the three workflow values.
func ParseAreaChangeStatus(raw string) (AreaChangeStatus, bool) {
	switch s := AreaChangeStatus(strings.TrimSpace(raw)); s {
	case AreaChangePending, AreaChangeApproved, AreaChangeRejected:
		return s, true
	}
	return "", false
}

// Terminal reports whether no further status change is allowed.
func (s AreaChangeStatus) Terminal() bool {
	return s == AreaChangeApproved || s == AreaChangeRejected
}

// AreaChangeRequest proposes moving a ticket from one area to another.
type AreaChangeRequest struct {
	ID                int64
	TicketID          int64
	RequesterID       int64
	ApproverID        *int64
	OriginAreaID      int64
	DestinationAreaID int64
	Motive            string
	Status            AreaChangeStatus
	RequestedAt       time.Time
	RespondedAt       *time.Time
}

// AreaChangePatch carries the optional fields of an update. Status is kept raw
// so that unknown values can be rejected with the allowed set.
type AreaChangePatch struct {
	Status     *string
	Motive     *string
	ApproverID *int64
}

// Empty reports whether no field was supplied.
func (p AreaChangePatch) Empty() bool {
	return p.Status == nil && p.Motive == nil && p.ApproverID == nil
}
