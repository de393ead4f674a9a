package admin

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/coinclicker/internal/reward"
)

// Stats is the admin dashboard summary.
type Stats struct {
	Accounts           int64           `json:"accounts"`
	ReferredAccounts   int64           `json:"referred_accounts"`
	TotalClicks        int64           `json:"total_clicks"`
	TotalBalance       decimal.Decimal `json:"total_balance"`
	TotalCommission    decimal.Decimal `json:"total_commission"`
	PendingWithdrawals int64           `json:"pending_withdrawals"`
	PendingAmount      decimal.Decimal `json:"pending_amount"`
}

// Source is the read side of the account store used by admin views.
type Source interface {
	List(ctx context.Context) ([]reward.Account, error)
	Stats(ctx context.Context) (Stats, error)
}

// Handler serves the admin dashboard routes.
type Handler struct {
	Accounts    Source
	Withdrawals reward.WithdrawalQueue
}

// GET /admin/stats
func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	st, err := h.Accounts.Stats(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load stats"})
	}

	pending, err := h.Withdrawals.ListPending(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load pending withdrawals"})
	}
	st.PendingWithdrawals = int64(len(pending))
	st.PendingAmount = decimal.Zero
	for _, r := range pending {
		st.PendingAmount = st.PendingAmount.Add(r.Amount)
	}

	return c.JSON(http.StatusOK, st)
}
