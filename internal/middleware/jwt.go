package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/coinclicker/internal/auth"
)

// JWT verifies the bearer token and sets "user_id" and "role" on the
// context for the handlers behind it.
func JWT(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := auth.ParseBearer(secret, c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
			}
			c.Set("user_id", claims.AccountID)
			if claims.Role != "" {
				c.Set("role", claims.Role)
			}
			return next(c)
		}
	}
}
