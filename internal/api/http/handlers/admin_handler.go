package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// CapabilityInvalidator drops a role's cached capability set.
type CapabilityInvalidator interface {
	Invalidate(ctx context.Context, roleID int64) error
}

// AdminHandler hosts operational endpoints.
type AdminHandler struct {
	capabilities CapabilityInvalidator
}

// NewAdminHandler constructs handler.
func NewAdminHandler(capabilities CapabilityInvalidator) *AdminHandler {
	return &AdminHandler{capabilities: capabilities}
}

// InvalidateCapabilities POST /admin/roles/:id/capabilities/invalidate.
func (h *AdminHandler) InvalidateCapabilities(c *fiber.Ctx) error {
	roleID, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.capabilities.Invalidate(c.UserContext(), roleID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
