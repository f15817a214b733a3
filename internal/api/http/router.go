package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/incident-router/internal/api/http/handlers"
	"github.com/spec-kit/incident-router/internal/auth"
	"github.com/spec-kit/incident-router/internal/domain"
	"github.com/spec-kit/incident-router/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Assignments    *handlers.AssignmentHandler
	AreaChanges    *handlers.AreaChangeHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
	Gate           auth.Gate
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes. Every protected route authenticates the
// caller and then checks one capability before reaching a handler.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
	}
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)
	can := func(capability domain.Capability) fiber.Handler {
		return auth.RequireCapability(cfg.Gate, capability)
	}

	tickets := api.Group("/tickets")
	tickets.Post("/", can(domain.CapTicketCreate), cfg.Tickets.CreateTicket)
	tickets.Get("/:id", can(domain.CapTicketView), cfg.Tickets.GetTicket)
	tickets.Patch("/:id", can(domain.CapTicketUpdate), cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", can(domain.CapTicketDelete), cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/state", can(domain.CapTicketChangeState), cfg.Tickets.ChangeState)
	tickets.Get("/:id/comments", can(domain.CapTicketView), cfg.Tickets.ListComments)
	tickets.Post("/:id/comments", can(domain.CapTicketComment), cfg.Tickets.AddComment)
	tickets.Get("/:id/history", can(domain.CapTicketView), cfg.Tickets.ListHistory)

	tickets.Post("/:id/claim", can(domain.CapTicketClaim), cfg.Assignments.Claim)
	tickets.Post("/:id/release", can(domain.CapTicketRelease), cfg.Assignments.Release)
	tickets.Get("/:id/releases", can(domain.CapTicketView), cfg.Assignments.ListTicketReleases)
	tickets.Get("/:id/area-changes", can(domain.CapAreaChangeView), cfg.AreaChanges.ListByTicket)

	releases := api.Group("/releases")
	releases.Get("/", can(domain.CapReleaseViewAll), cfg.Assignments.ListAllReleases)
	releases.Delete("/:id", can(domain.CapReleaseDelete), cfg.Assignments.DeleteRelease)

	areaChanges := api.Group("/area-changes")
	areaChanges.Post("/", can(domain.CapAreaChangeCreate), cfg.AreaChanges.Create)
	areaChanges.Get("/:id", can(domain.CapAreaChangeView), cfg.AreaChanges.Get)
	areaChanges.Patch("/:id", can(domain.CapAreaChangeUpdate), cfg.AreaChanges.Update)
	areaChanges.Delete("/:id", can(domain.CapAreaChangeDelete), cfg.AreaChanges.Delete)

	admin := api.Group("/admin")
	admin.Post("/roles/:id/capabilities/invalidate", can(domain.CapRoleAdmin), cfg.Admin.InvalidateCapabilities)
}
