package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-proctor-api/internal/utils"
)

// RequireRole rejects callers whose token role is not listed. AuthRoleReviewer
// expands to the recruiter and admin token roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles)+1)
	for _, role := range roles {
		switch normalized := strings.ToLower(strings.TrimSpace(role)); normalized {
		case "":
		case AuthRoleReviewer:
			allowed[RoleRecruiter] = struct{}{}
			allowed[RoleAdmin] = struct{}{}
		default:
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		if _, ok := allowed[UserRole(c)]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", v)))
	}
}
