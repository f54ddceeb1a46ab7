package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-classroom-api/internal/authz"
	"github.com/noah-isme/gema-classroom-api/internal/utils"
)

// ActorFromContext resolves the authenticated caller from request locals.
func ActorFromContext(c *fiber.Ctx) (authz.Actor, bool) {
	var id uint
	switch v := c.Locals("user_id").(type) {
	case uint:
		id = v
	case int:
		if v > 0 {
			id = uint(v)
		}
	case float64:
		if v > 0 {
			id = uint(v)
		}
	}

	var role authz.Role
	switch v := c.Locals("user_role").(type) {
	case string:
		role = authz.ParseRole(v)
	case authz.Role:
		role = authz.ParseRole(string(v))
	case fmt.Stringer:
		role = authz.ParseRole(v.String())
	}

	if id == 0 || role == "" {
		return authz.Actor{}, false
	}
	return authz.Actor{ID: id, Role: role}, true
}

// RequireActor rejects requests whose token did not carry a user id and a recognised role.
func RequireActor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := ActorFromContext(c); !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		return c.Next()
	}
}
