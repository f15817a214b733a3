package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-router/internal/api/dto"
	"github.com/spec-kit/incident-router/internal/domain"
	"github.com/spec-kit/incident-router/internal/service"
)

// AreaChangeWorkflow is the reassignment surface used by the handler.
type AreaChangeWorkflow interface {
	CreateRequest(ctx context.Context, requester *domain.Actor, input service.AreaChangeCreateInput) (*domain.AreaChangeRequest, error)
	GetRequest(ctx context.Context, requestID int64) (*domain.AreaChangeRequest, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.AreaChangeRequest, error)
	UpdateRequest(ctx context.Context, actor *domain.Actor, requestID int64, patch domain.AreaChangePatch) (*domain.AreaChangeRequest, error)
	DeleteRequest(ctx context.Context, requestID int64) error
}

// AreaChangeHandler exposes the area reassignment workflow.
type AreaChangeHandler struct {
	service AreaChangeWorkflow
}

// NewAreaChangeHandler constructs handler.
func NewAreaChangeHandler(svc AreaChangeWorkflow) *AreaChangeHandler {
	return &AreaChangeHandler{service: svc}
}

// Create POST /area-changes.
func (h *AreaChangeHandler) Create(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateAreaChangeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	created, err := h.service.CreateRequest(c.UserContext(), actor, service.AreaChangeCreateInput{
		TicketID:          req.TicketID,
		ApproverID:        req.ApproverID,
		OriginAreaID:      req.OriginAreaID,
		DestinationAreaID: req.DestinationAreaID,
		Motive:            req.Motive,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": areaChangeResponse(created)})
}

// Get GET /area-changes/:id.
func (h *AreaChangeHandler) Get(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	req, err := h.service.GetRequest(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": areaChangeResponse(req)})
}

// ListByTicket GET /tickets/:id/area-changes.
func (h *AreaChangeHandler) ListByTicket(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	reqs, err := h.service.ListByTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	resp := make([]dto.AreaChangeResponse, 0, len(reqs))
	for i := range reqs {
		resp = append(resp, areaChangeResponse(&reqs[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Update PATCH /area-changes/:id.
func (h *AreaChangeHandler) Update(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateAreaChangeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	updated, err := h.service.UpdateRequest(c.UserContext(), actor, id, domain.AreaChangePatch{
		Status:     req.Status,
		Motive:     req.Motive,
		ApproverID: req.ApproverID,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": areaChangeResponse(updated)})
}

// Delete DELETE /area-changes/:id.
func (h *AreaChangeHandler) Delete(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.DeleteRequest(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func areaChangeResponse(req *domain.AreaChangeRequest) dto.AreaChangeResponse {
	return dto.AreaChangeResponse{
		ID:                req.ID,
		TicketID:          req.TicketID,
		RequesterID:       req.RequesterID,
		ApproverID:        req.ApproverID,
		OriginAreaID:      req.OriginAreaID,
		DestinationAreaID: req.DestinationAreaID,
		Motive:            req.Motive,
		Status:            req.Status,
		RequestedAt:       req.RequestedAt,
		RespondedAt:       req.RespondedAt,
	}
}
