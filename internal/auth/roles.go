package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispute-service/internal/domain"
	apperrors "github.com/spec-kit/dispute-service/pkg/util"
)

// RequireUser ensures a marketplace user is authenticated.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.SubjectType != domain.SubjectTypeUser {
			return apperrors.NewForbidden("marketplace user required")
		}
		return c.Next()
	}
}

// RequireArbiterRole ensures the arbiter principal has one of the allowed roles.
func RequireArbiterRole(allowed ...domain.ArbiterRole) fiber.Handler {
	allowedSet := make(map[domain.ArbiterRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.SubjectType != domain.SubjectTypeArbiter || principal.Arbiter == nil {
			return apperrors.NewForbidden("arbiter role required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Arbiter.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
