package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*echo.Echo, *fixture) {
	t.Helper()
	s := seedAccounts(t)
	f := newFixture(t, s, s)
	h := NewHandler(f.svc)

	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if uid := c.Request().Header.Get("X-User"); uid != "" {
				c.Set("user_id", uid)
			}
			return next(c)
		}
	})
	e.GET("/wallet/balance", h.Balance)
	e.POST("/wallet/click", h.Click)
	e.POST("/wallet/withdraw", h.Withdraw)
	e.GET("/wallet/withdrawals", h.ListWithdrawals)
	e.GET("/wallet/referrals/earnings", h.ListEarnings)
	e.GET("/admin/withdrawals/pending", h.ListPendingWithdrawals)
	e.POST("/admin/withdrawals/:id/approve", h.ApproveWithdrawal)
	e.POST("/admin/withdrawals/:id/reject", h.RejectWithdrawal)
	return e, f
}

func do(t *testing.T, e *echo.Echo, method, path, user string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if user != "" {
		req.Header.Set("X-User", user)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestClickAndBalanceEndpoints(t *testing.T) {
	e, _ := newTestServer(t)

	rec, _ := do(t, e, http.MethodPost, "/wallet/click", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := do(t, e, http.MethodPost, "/wallet/click", "kid")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0.1", body["balance"])
	assert.Equal(t, float64(1), body["total_clicks"])
	assert.NotEmpty(t, body["click_id"])

	rec, body = do(t, e, http.MethodGet, "/wallet/balance", "kid")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0.1", body["balance"])
	assert.Equal(t, "KIDCODE1", body["referral_code"])
	assert.Equal(t, false, body["can_withdraw"])

	rec, _ = do(t, e, http.MethodGet, "/wallet/balance", "ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWithdrawEndpoint(t *testing.T) {
	e, _ := newTestServer(t)

	rec, body := do(t, e, http.MethodPost, "/wallet/withdraw", "ref")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "insufficient balance: minimum withdrawal is 100000, current balance is 0.00", body["error"])

	rec, body = do(t, e, http.MethodPost, "/wallet/withdraw", "rich")
	require.Equal(t, http.StatusCreated, rec.Code)
	w := body["withdrawal"].(map[string]interface{})
	assert.Equal(t, "100000", w["amount"])
	assert.Equal(t, "pending", w["status"])

	rec, body = do(t, e, http.MethodGet, "/wallet/withdrawals", "rich")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["withdrawals"], 1)

	rec, body = do(t, e, http.MethodGet, "/wallet/balance", "rich")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", body["balance"])
}

func TestAdminResolveEndpoints(t *testing.T) {
	e, f := newTestServer(t)

	rec, body := do(t, e, http.MethodPost, "/wallet/withdraw", "rich")
	require.Equal(t, http.StatusCreated, rec.Code)
	id := body["withdrawal"].(map[string]interface{})["id"].(string)

	rec, body = do(t, e, http.MethodGet, "/admin/withdrawals/pending", "admin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["pending_withdrawals"], 1)

	rec, body = do(t, e, http.MethodPost, "/admin/withdrawals/"+id+"/reject", "admin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rejected", body["status"])

	rec, _ = do(t, e, http.MethodPost, "/admin/withdrawals/"+id+"/approve", "admin")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = do(t, e, http.MethodPost, "/admin/withdrawals/missing/approve", "admin")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, e, http.MethodGet, "/admin/withdrawals/pending", "admin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["pending_withdrawals"], 0)

	// no refund on rejection
	a, err := f.accounts.Get(context.Background(), "rich")
	require.NoError(t, err)
	assert.True(t, a.Balance.IsZero())
}

func TestEarningsEndpoint(t *testing.T) {
	e, _ := newTestServer(t)

	rec, body := do(t, e, http.MethodGet, "/wallet/referrals/earnings", "ref")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["earnings"], 0)
	assert.Equal(t, "0", body["total"])
}
