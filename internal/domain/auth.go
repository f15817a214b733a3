package domain

// Capability is a named permission granted to a role.
type Capability string

const (
	CapTicketCreate      Capability = "TICKET_CREATE"
	CapTicketView        Capability = "TICKET_VIEW"
	CapTicketUpdate      Capability = "TICKET_UPDATE"
	CapTicketDelete      Capability = "TICKET_DELETE"
	CapTicketChangeState Capability = "TICKET_CHANGE_STATE"
	CapTicketComment     Capability = "TICKET_COMMENT"
	CapTicketClaim       Capability = "TICKET_CLAIM"
	CapTicketRelease     Capability = "TICKET_RELEASE"
	CapReleaseViewAll    Capability = "RELEASE_VIEW_ALL"
	CapReleaseDelete     Capability = "RELEASE_DELETE"
	CapAreaChangeCreate  Capability = "AREA_CHANGE_CREATE"
	CapAreaChangeView    Capability = "AREA_CHANGE_VIEW"
	CapAreaChangeUpdate  Capability = "AREA_CHANGE_UPDATE"
	CapAreaChangeDelete  Capability = "AREA_CHANGE_DELETE"
	CapRoleAdmin         Capability = "ROLE_ADMIN"
)
