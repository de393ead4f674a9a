package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/coinclicker/internal/auth"
)

// AdminGuard ensures only admin accounts can access admin routes.
func AdminGuard(store RoleChecker) echo.MiddlewareFunc {
	return RequireRoles(store, auth.RoleAdmin)
}
