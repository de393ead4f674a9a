// Package accounts creates the reward account for a newly authenticated
// subject.
package accounts

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/sudo-init-do/coinclicker/internal/reward"
)

const (
	codeLength   = 8
	codeAttempts = 5
)

// Store is the part of the account store registration needs.
type Store interface {
	Create(ctx context.Context, a reward.Account) (reward.Account, error)
	Get(ctx context.Context, id string) (reward.Account, error)
	LookupByReferralCode(ctx context.Context, code string) (reward.Account, error)
}

type RegisterRequest struct {
	ReferralCode string `json:"referral_code"`
}

type Handler struct {
	store   Store
	log     logrus.FieldLogger
	newCode func() string
}

func NewHandler(store Store, log logrus.FieldLogger) *Handler {
	return &Handler{store: store, log: log, newCode: NewReferralCode}
}

// NewReferralCode returns a random upper-case code of eight hex digits.
func NewReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:codeLength])
}

// Register creates the account of the token subject, or returns it if it
// already exists. The inviter's code may be given in the body or as ?ref=.
// POST /accounts
func (h *Handler) Register(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	inviter := strings.ToUpper(strings.TrimSpace(req.ReferralCode))
	if inviter == "" {
		inviter = strings.ToUpper(strings.TrimSpace(c.QueryParam("ref")))
	}

	ctx := c.Request().Context()
	if existing, err := h.store.Get(ctx, uid); err == nil {
		return c.JSON(http.StatusOK, existing)
	} else if !errors.Is(err, reward.ErrNotFound) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load account"})
	}

	if inviter != "" {
		if _, err := h.store.LookupByReferralCode(ctx, inviter); err != nil {
			if errors.Is(err, reward.ErrNotFound) {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown referral code"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not check referral code"})
		}
	}

	for i := 0; i < codeAttempts; i++ {
		created, err := h.store.Create(ctx, reward.Account{
			ID:           uid,
			ReferralCode: h.newCode(),
			ReferredBy:   inviter,
		})
		if err == nil {
			h.log.WithFields(logrus.Fields{
				"account_id":  uid,
				"referred_by": inviter,
			}).Info("account registered")
			return c.JSON(http.StatusCreated, created)
		}
		if !errors.Is(err, reward.ErrAlreadyExists) {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create account"})
		}
		// either a concurrent registration won or the code collided
		if existing, getErr := h.store.Get(ctx, uid); getErr == nil {
			return c.JSON(http.StatusOK, existing)
		}
	}
	return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "could not allocate a referral code"})
}
