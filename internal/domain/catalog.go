package domain

// Priority classifies category urgency.
type Priority string

const (
	PriorityHigh    Priority = "Alta"
	PriorityMedium  Priority = "Media"
	PriorityLow     Priority = "Baja"
	PriorityVeryLow Priority = "Muy Baja"
)

// Valid reports whether p is one of the catalog priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow, PriorityVeryLow:
		return true
	}
	return false
}

// Area is an operational area that owns tickets and staff.
type Area struct {
	ID          int64
	Name        string
	Description string
}

// Category drives the default area and the SLA budget of a ticket.
type Category struct {
	ID            int64
	Name          string
	Priority      Priority
	SLAHours      int
	DefaultAreaID int64
}

// Canonical state names of the reference deployment.
const (
	StateOpen       = "Abierto"
	StateAssigned   = "Asignado"
	StateInProgress = "En Proceso"
	StatePending    = "Pendiente"
	StateResolved   = "Resuelto"
	StateClosed     = "Cerrado"
)

// State is a named lifecycle state row.
type State struct {
	ID   int64
	Name string
}
