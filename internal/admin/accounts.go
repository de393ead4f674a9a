package admin

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type AdminAccount struct {
	ID           string          `json:"id"`
	Balance      decimal.Decimal `json:"balance"`
	TotalClicks  int64           `json:"total_clicks"`
	ReferralCode string          `json:"referral_code"`
	ReferredBy   string          `json:"referred_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// GET /admin/accounts
func (h *Handler) ListAccounts(c echo.Context) error {
	accounts, err := h.Accounts.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch accounts"})
	}

	out := make([]AdminAccount, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, AdminAccount{
			ID:           a.ID,
			Balance:      a.Balance,
			TotalClicks:  a.TotalClicks,
			ReferralCode: a.ReferralCode,
			ReferredBy:   a.ReferredBy,
			CreatedAt:    a.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"accounts": out})
}
