package wallet

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/coinclicker/internal/reward"
)

// ListWithdrawals returns the caller's payout requests, newest first.
// GET /wallet/withdrawals
func (h *Handler) ListWithdrawals(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	list, err := h.svc.Withdrawals(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	if list == nil {
		list = []reward.WithdrawalRequest{}
	}
	return c.JSON(http.StatusOK, echo.Map{"withdrawals": list})
}

// ListEarnings returns the commission the caller earned from referrals.
// GET /wallet/referrals/earnings
func (h *Handler) ListEarnings(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	list, err := h.svc.Earnings(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}

	total := decimal.Zero
	for _, e := range list {
		total = total.Add(e.Amount)
	}
	if list == nil {
		list = []reward.ReferralEarning{}
	}
	return c.JSON(http.StatusOK, echo.Map{"earnings": list, "total": total})
}
