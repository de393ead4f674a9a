package wallet

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Withdraw moves the whole balance into a pending payout request.
// POST /wallet/withdraw
func (h *Handler) Withdraw(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized or invalid user"})
	}

	req, err := h.svc.Withdraw(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"withdrawal": req,
		"message":    "withdrawal request submitted for review",
	})
}
