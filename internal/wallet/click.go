package wallet

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// POST /wallet/click
func (h *Handler) Click(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	res, err := h.svc.Click(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, ClickResponse{
		ClickID:     res.ClickID,
		Balance:     res.Account.Balance,
		TotalClicks: res.Account.TotalClicks,
	})
}
