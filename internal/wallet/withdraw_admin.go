package wallet

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/coinclicker/internal/reward"
)

// ListPendingWithdrawals returns all pending requests, newest first.
// GET /admin/withdrawals/pending
func (h *Handler) ListPendingWithdrawals(c echo.Context) error {
	list, err := h.svc.Pending(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch withdrawals"})
	}
	if list == nil {
		list = []reward.WithdrawalRequest{}
	}
	return c.JSON(http.StatusOK, echo.Map{"pending_withdrawals": list})
}

// POST /admin/withdrawals/:id/approve
func (h *Handler) ApproveWithdrawal(c echo.Context) error {
	return h.resolve(c, reward.WithdrawalCompleted)
}

// RejectWithdrawal closes the request without paying out. The amount is
// not returned to the account.
// POST /admin/withdrawals/:id/reject
func (h *Handler) RejectWithdrawal(c echo.Context) error {
	return h.resolve(c, reward.WithdrawalRejected)
}

func (h *Handler) resolve(c echo.Context, status reward.WithdrawalStatus) error {
	adminID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing withdrawal id"})
	}

	req, err := h.svc.Resolve(c.Request().Context(), id, status, adminID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"withdrawal_id": req.ID,
		"status":        req.Status,
		"withdrawal":    req,
	})
}
