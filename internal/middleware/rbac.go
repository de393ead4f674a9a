package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// RoleChecker answers whether an account holds a role.
type RoleChecker interface {
	HasRole(ctx context.Context, accountID, role string) (bool, error)
}

// RequireRoles ensures the requester holds one of the allowed roles. The
// token's role claim is tried first, then the role store.
// Usage: group.Use(RequireRoles(store, "admin"))
func RequireRoles(store RoleChecker, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, _ := c.Get("user_id").(string)
			if uid == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
			}

			claimed, _ := c.Get("role").(string)
			for _, r := range roles {
				if claimed == r {
					return next(c)
				}
			}

			for _, r := range roles {
				ok, err := store.HasRole(c.Request().Context(), uid, r)
				if err != nil {
					return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "could not check role"})
				}
				if ok {
					c.Set("role", r)
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, echo.Map{"success": false, "error": "access denied"})
		}
	}
}
