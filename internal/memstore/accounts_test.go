package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/coinclicker/internal/reward"
)

func seed(t *testing.T, s *Accounts, id, code, referredBy string) reward.Account {
	t.Helper()
	a, err := s.Create(context.Background(), reward.Account{ID: id, ReferralCode: code, ReferredBy: referredBy})
	require.NoError(t, err)
	return a
}

func TestCreate(t *testing.T) {
	s := NewAccounts()
	a := seed(t, s, "u1", "CODE0001", "")
	assert.Equal(t, int64(1), a.Version)
	assert.False(t, a.CreatedAt.IsZero())

	_, err := s.Create(context.Background(), reward.Account{ID: "u1", ReferralCode: "OTHER"})
	assert.ErrorIs(t, err, reward.ErrAlreadyExists)

	_, err = s.Create(context.Background(), reward.Account{ID: "u2", ReferralCode: "CODE0001"})
	assert.ErrorIs(t, err, reward.ErrAlreadyExists)

	_, err = s.Create(context.Background(), reward.Account{ID: "u3"})
	assert.ErrorIs(t, err, reward.ErrInvalidAccount)
}

func TestUpdateChecksVersion(t *testing.T) {
	ctx := context.Background()
	s := NewAccounts()
	a := seed(t, s, "u1", "CODE0001", "")

	add := func(acc *reward.Account) error {
		acc.Balance = acc.Balance.Add(decimal.NewFromInt(1))
		return nil
	}
	updated, err := s.Update(ctx, "u1", add, a.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	_, err = s.Update(ctx, "u1", add, a.Version)
	assert.ErrorIs(t, err, reward.ErrVersionConflict)

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "1", got.Balance.String())

	_, err = s.Update(ctx, "nobody", add, 1)
	assert.ErrorIs(t, err, reward.ErrNotFound)
}

func TestUpdateRejectsBrokenInvariants(t *testing.T) {
	ctx := context.Background()
	s := NewAccounts()
	seed(t, s, "u1", "CODE0001", "")

	cases := map[string]reward.Mutation{
		"negative balance": func(a *reward.Account) error {
			a.Balance = decimal.NewFromInt(-1)
			return nil
		},
		"code change": func(a *reward.Account) error {
			a.ReferralCode = "NEWCODE1"
			return nil
		},
		"late referral": func(a *reward.Account) error {
			a.ReferredBy = "SOMEONE1"
			return nil
		},
		"clicks decrease": func(a *reward.Account) error {
			a.TotalClicks = -1
			return nil
		},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.Update(ctx, "u1", m, 1)
			assert.ErrorIs(t, err, reward.ErrInvalidAccount)

			got, err := s.Get(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, int64(1), got.Version)
		})
	}
}

func TestCreditIsIdempotentPerClick(t *testing.T) {
	ctx := context.Background()
	s := NewAccounts()
	ref := seed(t, s, "ref", "REFCODE1", "")

	e := reward.ReferralEarning{ID: "e1", ReferrerID: "ref", ReferredID: "kid", ClickID: "c1", Amount: decimal.RequireFromString("0.03"), CreatedAt: time.Now()}
	updated, err := s.Credit(ctx, "ref", ref.Version, e)
	require.NoError(t, err)
	assert.Equal(t, "0.03", updated.Balance.String())

	e.ID = "e2"
	_, err = s.Credit(ctx, "ref", updated.Version, e)
	assert.ErrorIs(t, err, reward.ErrDuplicateEarning)

	// a stale version records nothing
	_, err = s.Credit(ctx, "ref", ref.Version, reward.ReferralEarning{ID: "e3", ReferrerID: "ref", ClickID: "c2", Amount: e.Amount})
	assert.ErrorIs(t, err, reward.ErrVersionConflict)

	earnings, err := s.ListEarnings(ctx, "ref")
	require.NoError(t, err)
	require.Len(t, earnings, 1)
	assert.Equal(t, "e1", earnings[0].ID)
}

func TestUpdateOwingRecordsWithClick(t *testing.T) {
	ctx := context.Background()
	s := NewAccounts()
	seed(t, s, "ref", "REFCODE1", "")
	kid := seed(t, s, "kid", "KIDCODE1", "REFCODE1")
	click := func(a *reward.Account) error {
		a.TotalClicks++
		return nil
	}

	_, err := s.UpdateOwing(ctx, "kid", click, kid.Version+1, reward.OwedCommission{ClickID: "c0"})
	require.ErrorIs(t, err, reward.ErrVersionConflict)

	updated, err := s.UpdateOwing(ctx, "kid", click, kid.Version, reward.OwedCommission{ClickID: "c1"})
	require.NoError(t, err)
	_, err = s.UpdateOwing(ctx, "kid", click, updated.Version, reward.OwedCommission{ClickID: "c2"})
	require.NoError(t, err)

	owed, err := s.ListOwed(ctx, time.Now().Add(time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, owed, 2)
	assert.Equal(t, "c1", owed[0].ClickID)
	assert.Equal(t, "kid", owed[0].AccountID)

	owed, err = s.ListOwed(ctx, updated.UpdatedAt.Add(-time.Hour), 0)
	require.NoError(t, err)
	assert.Empty(t, owed)

	ref, err := s.Get(ctx, "ref")
	require.NoError(t, err)
	_, err = s.Credit(ctx, "ref", ref.Version, reward.ReferralEarning{ID: "e1", ReferrerID: "ref", ReferredID: "kid", ClickID: "c1", Amount: decimal.RequireFromString("0.03")})
	require.NoError(t, err)
	require.NoError(t, s.Settle(ctx, "c2"))
	require.NoError(t, s.Settle(ctx, "unknown"))

	owed, err = s.ListOwed(ctx, time.Now().Add(time.Minute), 0)
	require.NoError(t, err)
	assert.Empty(t, owed)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := NewAccounts()
	ref := seed(t, s, "ref", "REFCODE1", "")
	seed(t, s, "kid", "KIDCODE1", "REFCODE1")

	_, err := s.Credit(ctx, "ref", ref.Version, reward.ReferralEarning{ID: "e1", ReferrerID: "ref", ReferredID: "kid", ClickID: "c1", Amount: decimal.RequireFromString("0.03")})
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Accounts)
	assert.Equal(t, int64(1), st.ReferredAccounts)
	assert.Equal(t, "0.03", st.TotalCommission.String())
	assert.Equal(t, "0.03", st.TotalBalance.String())

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRoles(t *testing.T) {
	ctx := context.Background()
	s := NewAccounts()

	ok, err := s.HasRole(ctx, "u1", "admin")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.GrantRole(ctx, "u1", "admin"))
	ok, err = s.HasRole(ctx, "u1", "admin")
	require.NoError(t, err)
	assert.True(t, ok)
}
