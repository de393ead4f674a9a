// Package memstore keeps accounts, earnings and withdrawals in memory.
// It backs development runs without Postgres and the unit tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/coinclicker/internal/admin"
	"github.com/sudo-init-do/coinclicker/internal/reward"
)

// Accounts implements reward.AccountStore and reward.EarningStore.
type Accounts struct {
	mu       sync.Mutex
	accounts map[string]reward.Account
	byCode   map[string]string
	earnings []reward.ReferralEarning
	clicks   map[string]struct{}
	owed     map[string]reward.OwedCommission
	roles    map[string]map[string]bool
	now      func() time.Time
}

func NewAccounts() *Accounts {
	return &Accounts{
		accounts: make(map[string]reward.Account),
		byCode:   make(map[string]string),
		clicks:   make(map[string]struct{}),
		owed:     make(map[string]reward.OwedCommission),
		roles:    make(map[string]map[string]bool),
		now:      time.Now,
	}
}

// Create registers a new account. The referral code must be unused.
func (s *Accounts) Create(_ context.Context, a reward.Account) (reward.Account, error) {
	if err := a.Validate(); err != nil {
		return reward.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; ok {
		return reward.Account{}, fmt.Errorf("account %s: %w", a.ID, reward.ErrAlreadyExists)
	}
	if _, ok := s.byCode[a.ReferralCode]; ok {
		return reward.Account{}, fmt.Errorf("referral code %s: %w", a.ReferralCode, reward.ErrAlreadyExists)
	}
	now := s.now().UTC()
	a.Version = 1
	a.CreatedAt = now
	a.UpdatedAt = now
	s.accounts[a.ID] = a
	s.byCode[a.ReferralCode] = a.ID
	return a, nil
}

func (s *Accounts) Get(_ context.Context, id string) (reward.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return reward.Account{}, fmt.Errorf("account %s: %w", id, reward.ErrNotFound)
	}
	return a, nil
}

func (s *Accounts) LookupByReferralCode(_ context.Context, code string) (reward.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byCode[code]
	if !ok {
		return reward.Account{}, fmt.Errorf("referral code %q: %w", code, reward.ErrNotFound)
	}
	return s.accounts[id], nil
}

func (s *Accounts) Update(_ context.Context, id string, m reward.Mutation, expectedVersion int64) (reward.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyLocked(id, m, expectedVersion)
}

func (s *Accounts) applyLocked(id string, m reward.Mutation, expectedVersion int64) (reward.Account, error) {
	current, ok := s.accounts[id]
	if !ok {
		return reward.Account{}, fmt.Errorf("account %s: %w", id, reward.ErrNotFound)
	}
	if current.Version != expectedVersion {
		return reward.Account{}, fmt.Errorf("account %s at version %d, expected %d: %w",
			id, current.Version, expectedVersion, reward.ErrVersionConflict)
	}

	next := current
	if err := m(&next); err != nil {
		return reward.Account{}, err
	}
	if err := reward.CheckTransition(current, next); err != nil {
		return reward.Account{}, err
	}
	next.Version = current.Version + 1
	next.UpdatedAt = s.now().UTC()
	s.accounts[id] = next
	return next, nil
}

func (s *Accounts) Credit(_ context.Context, referrerID string, expectedVersion int64, e reward.ReferralEarning) (reward.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.clicks[e.ClickID]; dup {
		return reward.Account{}, fmt.Errorf("click %s: %w", e.ClickID, reward.ErrDuplicateEarning)
	}
	credit := func(a *reward.Account) error {
		a.Balance = a.Balance.Add(e.Amount)
		return nil
	}
	updated, err := s.applyLocked(referrerID, credit, expectedVersion)
	if err != nil {
		return reward.Account{}, err
	}
	s.clicks[e.ClickID] = struct{}{}
	s.earnings = append(s.earnings, e)
	delete(s.owed, e.ClickID)
	return updated, nil
}

// UpdateOwing implements reward.CommissionOutbox.
func (s *Accounts) UpdateOwing(_ context.Context, id string, m reward.Mutation, expectedVersion int64, owed reward.OwedCommission) (reward.Account, error) {
	if owed.ClickID == "" {
		return reward.Account{}, fmt.Errorf("%w: owed commission needs a click id", reward.ErrInvalidAccount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.applyLocked(id, m, expectedVersion)
	if err != nil {
		return reward.Account{}, err
	}
	owed.AccountID = id
	owed.ClickedAt = updated.UpdatedAt
	s.owed[owed.ClickID] = owed
	return updated, nil
}

func (s *Accounts) ListOwed(_ context.Context, cutoff time.Time, limit int) ([]reward.OwedCommission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]reward.OwedCommission, 0, len(s.owed))
	for _, o := range s.owed {
		if !o.ClickedAt.After(cutoff) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClickedAt.Before(out[j].ClickedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Accounts) Settle(_ context.Context, clickID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.owed, clickID)
	return nil
}

// ListEarnings returns the referrer's earnings, newest first.
func (s *Accounts) ListEarnings(_ context.Context, referrerID string) ([]reward.ReferralEarning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []reward.ReferralEarning
	for i := len(s.earnings) - 1; i >= 0; i-- {
		if s.earnings[i].ReferrerID == referrerID {
			out = append(out, s.earnings[i])
		}
	}
	return out, nil
}

// List returns all accounts, newest first.
func (s *Accounts) List(_ context.Context) ([]reward.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]reward.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Stats summarises the account table for the admin dashboard.
func (s *Accounts) Stats(_ context.Context) (admin.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := admin.Stats{Accounts: int64(len(s.accounts)), TotalBalance: decimal.Zero, TotalCommission: decimal.Zero}
	for _, a := range s.accounts {
		st.TotalBalance = st.TotalBalance.Add(a.Balance)
		st.TotalClicks += a.TotalClicks
		if a.Referred() {
			st.ReferredAccounts++
		}
	}
	for _, e := range s.earnings {
		st.TotalCommission = st.TotalCommission.Add(e.Amount)
	}
	return st, nil
}

func (s *Accounts) HasRole(_ context.Context, accountID, role string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.roles[accountID][role], nil
}

func (s *Accounts) GrantRole(_ context.Context, accountID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roles[accountID] == nil {
		s.roles[accountID] = make(map[string]bool)
	}
	s.roles[accountID][role] = true
	return nil
}
