package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/sudo-init-do/coinclicker/internal/accounts"
	"github.com/sudo-init-do/coinclicker/internal/admin"
	"github.com/sudo-init-do/coinclicker/internal/auth"
	"github.com/sudo-init-do/coinclicker/internal/logging"
	mware "github.com/sudo-init-do/coinclicker/internal/middleware"
	"github.com/sudo-init-do/coinclicker/internal/wallet"
)

func (a *app) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(logging.Middleware(a.log))
	e.Use(a.metrics.Middleware())

	// Health and readiness
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if err := a.ready(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": err.Error()})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})
	e.GET("/metrics", echo.WrapHandler(a.metrics.Handler()))

	bootstrap := &auth.Bootstrap{Secret: a.cfg.AdminBootstrapSecret, Store: a.accounts, Log: a.log}
	e.POST("/admin/bootstrap", bootstrap.Handle, middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(5)))

	// Protected routes
	jwt := mware.JWT([]byte(a.cfg.JWTSecret))
	api := e.Group("", jwt)

	reg := accounts.NewHandler(a.accounts, a.log)
	api.POST("/accounts", reg.Register)

	w := wallet.NewHandler(a.svc)
	clickLimiter := middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStore(rate.Limit(a.cfg.ClickRateLimit)),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if uid, ok := c.Get("user_id").(string); ok && uid != "" {
				return uid, nil
			}
			return c.RealIP(), nil
		},
	})
	api.GET("/wallet/balance", w.Balance)
	api.POST("/wallet/click", w.Click, clickLimiter)
	api.POST("/wallet/withdraw", w.Withdraw)
	api.GET("/wallet/withdrawals", w.ListWithdrawals)
	api.GET("/wallet/referrals/earnings", w.ListEarnings)

	// Admin routes
	adm := e.Group("/admin", jwt, mware.AdminGuard(a.accounts))
	dash := &admin.Handler{Accounts: a.accounts, Withdrawals: a.withdrawals}
	adm.GET("/withdrawals/pending", w.ListPendingWithdrawals)
	adm.POST("/withdrawals/:id/approve", w.ApproveWithdrawal)
	adm.POST("/withdrawals/:id/reject", w.RejectWithdrawal)
	adm.GET("/accounts", dash.ListAccounts)
	adm.GET("/stats", dash.Stats)
	adm.GET("/feed", a.hub.Serve)

	return e
}
