package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-router/internal/api/dto"
	"github.com/spec-kit/incident-router/internal/domain"
)

// Arbitrator is the claim/release surface used by the handler.
type Arbitrator interface {
	ClaimTicket(ctx context.Context, operator *domain.Actor, ticketID int64) (*domain.Ticket, error)
	ReleaseTicket(ctx context.Context, operator *domain.Actor, ticketID int64, comment *string) (*domain.Release, error)
	ListReleases(ctx context.Context, ticketID int64) ([]domain.Release, error)
	ListAllReleases(ctx context.Context) ([]domain.Release, error)
	DeleteRelease(ctx context.Context, releaseID int64) error
}

// AssignmentHandler exposes claim and release endpoints.
type AssignmentHandler struct {
	service Arbitrator
}

// NewAssignmentHandler constructs handler.
func NewAssignmentHandler(svc Arbitrator) *AssignmentHandler {
	return &AssignmentHandler{service: svc}
}

// Claim POST /tickets/:id/claim.
func (h *AssignmentHandler) Claim(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.service.ClaimTicket(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Release POST /tickets/:id/release.
func (h *AssignmentHandler) Release(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.ReleaseRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	release, err := h.service.ReleaseTicket(c.UserContext(), actor, id, req.Comment)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": releaseResponse(release)})
}

// ListTicketReleases GET /tickets/:id/releases.
func (h *AssignmentHandler) ListTicketReleases(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	releases, err := h.service.ListReleases(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": releaseResponses(releases)})
}

// ListAllReleases GET /releases.
func (h *AssignmentHandler) ListAllReleases(c *fiber.Ctx) error {
	releases, err := h.service.ListAllReleases(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": releaseResponses(releases)})
}

// DeleteRelease DELETE /releases/:id.
func (h *AssignmentHandler) DeleteRelease(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.DeleteRelease(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func releaseResponse(r *domain.Release) dto.ReleaseResponse {
	return dto.ReleaseResponse{
		ID:         r.ID,
		TicketID:   r.TicketID,
		OperatorID: r.OperatorID,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt,
	}
}

func releaseResponses(releases []domain.Release) []dto.ReleaseResponse {
	resp := make([]dto.ReleaseResponse, 0, len(releases))
	for i := range releases {
		resp = append(resp, releaseResponse(&releases[i]))
	}
	return resp
}
