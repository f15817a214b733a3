package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-router/internal/domain"
	apperrors "github.com/spec-kit/incident-router/pkg/util/errorutil"
)

// RequireCapability rejects the request unless the current actor's role is
// granted capability. It must run after AuthMiddleware.Handle.
func RequireCapability(gate Gate, capability domain.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("actor required")
		}
		if gate == nil || !gate.Allows(c.UserContext(), actor.RoleID, capability) {
			return apperrors.NewForbidden("missing capability " + string(capability))
		}
		return c.Next()
	}
}
