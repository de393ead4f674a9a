package wallet

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/coinclicker/internal/reward"
)

// Handler serves the /wallet and /admin/withdrawals routes.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type BalanceResponse struct {
	AccountID    string          `json:"account_id"`
	Balance      decimal.Decimal `json:"balance"`
	TotalClicks  int64           `json:"total_clicks"`
	ReferralCode string          `json:"referral_code"`
	CanWithdraw  bool            `json:"can_withdraw"`
	Threshold    decimal.Decimal `json:"withdrawal_threshold"`
}

type ClickResponse struct {
	ClickID     string          `json:"click_id"`
	Balance     decimal.Decimal `json:"balance"`
	TotalClicks int64           `json:"total_clicks"`
}

func currentUser(c echo.Context) (string, bool) {
	uid, ok := c.Get("user_id").(string)
	return uid, ok && uid != ""
}

// writeError maps core errors onto HTTP responses.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, reward.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, reward.ErrInsufficientBalance):
		var ie *reward.InsufficientBalanceError
		if errors.As(err, &ie) {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": ie.Error()})
		}
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "insufficient balance"})
	case errors.Is(err, reward.ErrAlreadyResolved):
		return c.JSON(http.StatusConflict, echo.Map{"error": "withdrawal already resolved"})
	case errors.Is(err, reward.ErrInvalidStatus):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	case reward.Retryable(err):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable, try again"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
