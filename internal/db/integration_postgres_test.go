//go:build integration && postgres

package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/coinclicker/internal/reward"
)

func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load() // allow .env for local runs
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration")
	}

	ctx := context.Background()
	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, EnsureSchema(ctx, pool))
	return pool
}

func newProfile(t *testing.T, repo *AccountRepository, referredBy string, balance decimal.Decimal) reward.Account {
	t.Helper()
	id := uuid.New().String()
	a, err := repo.Create(context.Background(), reward.Account{
		ID:           id,
		ReferralCode: id[:8],
		ReferredBy:   referredBy,
		Balance:      balance,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = repo.pool.Exec(context.Background(), `DELETE FROM profiles WHERE id = $1`, id)
	})
	return a
}

func TestIntegrationClickAndCommission(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	accounts := NewAccountRepository(pool)

	ref := newProfile(t, accounts, "", decimal.Zero)
	kid := newProfile(t, accounts, ref.ReferralCode, decimal.Zero)

	ledger := reward.NewLedger()
	updated, err := accounts.Update(ctx, kid.ID, ledger.Mutation(kid), kid.Version)
	require.NoError(t, err)
	assert.Equal(t, "0.1", updated.Balance.String())
	assert.Equal(t, kid.Version+1, updated.Version)

	_, err = accounts.Update(ctx, kid.ID, ledger.Mutation(kid), kid.Version)
	assert.ErrorIs(t, err, reward.ErrVersionConflict)

	p := reward.NewPropagator(accounts, accounts)
	clickID := uuid.New().String()
	e, err := p.ApplyCommission(ctx, updated, clickID)
	require.NoError(t, err)
	require.NotNil(t, e)

	again, err := p.ApplyCommission(ctx, updated, clickID)
	require.NoError(t, err)
	assert.Nil(t, again)

	got, err := accounts.Get(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.03", got.Balance.String())

	earnings, err := accounts.ListEarnings(ctx, ref.ID)
	require.NoError(t, err)
	require.Len(t, earnings, 1)
	assert.Equal(t, clickID, earnings[0].ClickID)
}

func TestIntegrationOwedCommission(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	accounts := NewAccountRepository(pool)

	ref := newProfile(t, accounts, "", decimal.Zero)
	kid := newProfile(t, accounts, ref.ReferralCode, decimal.Zero)
	clickID := uuid.New().String()

	_, err := accounts.UpdateOwing(ctx, kid.ID, reward.NewLedger().Mutation(kid), kid.Version+1, reward.OwedCommission{ClickID: clickID})
	require.ErrorIs(t, err, reward.ErrVersionConflict)

	updated, err := accounts.UpdateOwing(ctx, kid.ID, reward.NewLedger().Mutation(kid), kid.Version, reward.OwedCommission{ClickID: clickID})
	require.NoError(t, err)

	owedFor := func() []string {
		owed, err := accounts.ListOwed(ctx, time.Now().Add(time.Minute), 0)
		require.NoError(t, err)
		var ids []string
		for _, o := range owed {
			if o.AccountID == kid.ID {
				ids = append(ids, o.ClickID)
			}
		}
		return ids
	}
	assert.Equal(t, []string{clickID}, owedFor())

	e, err := reward.NewPropagator(accounts, accounts).ApplyCommission(ctx, updated, clickID)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Empty(t, owedFor())
	require.NoError(t, accounts.Settle(ctx, clickID))
}

func TestIntegrationWithdrawalLifecycle(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	accounts := NewAccountRepository(pool)
	queue := NewWithdrawalRepository(pool)

	a := newProfile(t, accounts, "", decimal.NewFromInt(100000))
	gate := reward.NewGate(accounts, queue)

	req, err := gate.RequestWithdrawal(ctx, a.ID)
	require.NoError(t, err)

	got, err := accounts.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())

	stored, err := queue.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, reward.WithdrawalPending, stored.Status)
	assert.Equal(t, "100000", stored.Amount.String())

	mine, err := queue.ListByAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	resolved, err := gate.Resolve(ctx, req.ID, reward.WithdrawalCompleted, "admin")
	require.NoError(t, err)
	require.NotNil(t, resolved.ProcessedAt)
	assert.WithinDuration(t, time.Now(), *resolved.ProcessedAt, time.Minute)

	_, err = gate.Resolve(ctx, req.ID, reward.WithdrawalRejected, "admin")
	assert.ErrorIs(t, err, reward.ErrAlreadyResolved)

	_, err = queue.SetStatus(ctx, uuid.New().String(), reward.WithdrawalRejected, "admin", time.Now())
	assert.ErrorIs(t, err, reward.ErrNotFound)
}

func TestIntegrationRoles(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	accounts := NewAccountRepository(pool)
	a := newProfile(t, accounts, "", decimal.Zero)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM user_roles WHERE account_id = $1`, a.ID)
	})

	require.NoError(t, accounts.GrantRole(ctx, a.ID, "admin"))
	require.NoError(t, accounts.GrantRole(ctx, a.ID, "admin"))
	ok, err := accounts.HasRole(ctx, a.ID, "admin")
	require.NoError(t, err)
	assert.True(t, ok)
}
