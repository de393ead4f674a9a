package admin_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/coinclicker/internal/admin"
	"github.com/sudo-init-do/coinclicker/internal/memstore"
	"github.com/sudo-init-do/coinclicker/internal/reward"
)

func TestStatsAndAccounts(t *testing.T) {
	ctx := context.Background()
	accounts := memstore.NewAccounts()
	queue := memstore.NewWithdrawals()
	_, err := accounts.Create(ctx, reward.Account{ID: "a", ReferralCode: "AAAA0000", Balance: decimal.RequireFromString("1.5"), TotalClicks: 15})
	require.NoError(t, err)
	_, err = accounts.Create(ctx, reward.Account{ID: "b", ReferralCode: "BBBB0000", ReferredBy: "AAAA0000"})
	require.NoError(t, err)
	require.NoError(t, queue.Enqueue(ctx, reward.WithdrawalRequest{
		ID: "w1", AccountID: "c", Amount: decimal.NewFromInt(100000), Status: reward.WithdrawalPending, CreatedAt: time.Now(),
	}))

	h := &admin.Handler{Accounts: accounts, Withdrawals: queue}
	e := echo.New()

	rec := httptest.NewRecorder()
	require.NoError(t, h.Stats(e.NewContext(httptest.NewRequest(http.MethodGet, "/admin/stats", nil), rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	var st admin.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, int64(2), st.Accounts)
	assert.Equal(t, int64(1), st.ReferredAccounts)
	assert.Equal(t, int64(15), st.TotalClicks)
	assert.Equal(t, "1.5", st.TotalBalance.String())
	assert.Equal(t, int64(1), st.PendingWithdrawals)
	assert.Equal(t, "100000", st.PendingAmount.String())

	rec = httptest.NewRecorder()
	require.NoError(t, h.ListAccounts(e.NewContext(httptest.NewRequest(http.MethodGet, "/admin/accounts", nil), rec)))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Accounts []admin.AdminAccount `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Accounts, 2)
}
