package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/sudo-init-do/coinclicker/internal/reward"
)

const RoleAdmin = "admin"

// RoleGranter is the part of the account store the bootstrap needs.
type RoleGranter interface {
	Get(ctx context.Context, id string) (reward.Account, error)
	GrantRole(ctx context.Context, accountID, role string) error
}

type BootstrapAdminRequest struct {
	AccountID string `json:"account_id"`
	Secret    string `json:"secret"`
}

// Bootstrap grants the admin role to an existing account when the caller
// knows the configured secret. An empty secret disables it.
type Bootstrap struct {
	Secret string
	Store  RoleGranter
	Log    logrus.FieldLogger
}

// POST /admin/bootstrap
func (b *Bootstrap) Handle(c echo.Context) error {
	req := new(BootstrapAdminRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if b.Secret == "" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "bootstrap disabled"})
	}
	if req.Secret == "" || subtle.ConstantTimeCompare([]byte(req.Secret), []byte(b.Secret)) != 1 {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid secret"})
	}
	if req.AccountID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "account_id required"})
	}

	ctx := c.Request().Context()
	if _, err := b.Store.Get(ctx, req.AccountID); err != nil {
		if errors.Is(err, reward.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load account"})
	}
	if err := b.Store.GrantRole(ctx, req.AccountID, RoleAdmin); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to promote account"})
	}

	b.Log.WithField("account_id", req.AccountID).Warn("account promoted to admin via bootstrap")
	return c.JSON(http.StatusOK, echo.Map{"message": "account promoted to admin", "account_id": req.AccountID})
}
