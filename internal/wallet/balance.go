package wallet

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Balance returns the authenticated user's balance and click count.
// GET /wallet/balance
func (h *Handler) Balance(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	a, err := h.svc.Account(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, BalanceResponse{
		AccountID:    a.ID,
		Balance:      a.Balance,
		TotalClicks:  a.TotalClicks,
		ReferralCode: a.ReferralCode,
		CanWithdraw:  h.svc.CanWithdraw(a),
		Threshold:    h.svc.gate.Threshold(),
	})
}
