package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sudo-init-do/coinclicker/internal/reward"
)

// Withdrawals implements reward.WithdrawalQueue.
type Withdrawals struct {
	mu       sync.Mutex
	requests map[string]reward.WithdrawalRequest
}

func NewWithdrawals() *Withdrawals {
	return &Withdrawals{requests: make(map[string]reward.WithdrawalRequest)}
}

func (q *Withdrawals) Enqueue(_ context.Context, r reward.WithdrawalRequest) error {
	if err := r.Validate(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.requests[r.ID]; ok {
		return fmt.Errorf("withdrawal %s: %w", r.ID, reward.ErrAlreadyExists)
	}
	q.requests[r.ID] = r
	return nil
}

func (q *Withdrawals) Get(_ context.Context, id string) (reward.WithdrawalRequest, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	r, ok := q.requests[id]
	if !ok {
		return reward.WithdrawalRequest{}, fmt.Errorf("withdrawal %s: %w", id, reward.ErrNotFound)
	}
	return r, nil
}

func (q *Withdrawals) ListPending(_ context.Context) ([]reward.WithdrawalRequest, error) {
	return q.list(func(r reward.WithdrawalRequest) bool { return r.Status == reward.WithdrawalPending }), nil
}

// ListByAccount returns every request of one account, newest first.
func (q *Withdrawals) ListByAccount(_ context.Context, accountID string) ([]reward.WithdrawalRequest, error) {
	return q.list(func(r reward.WithdrawalRequest) bool { return r.AccountID == accountID }), nil
}

func (q *Withdrawals) list(keep func(reward.WithdrawalRequest) bool) []reward.WithdrawalRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []reward.WithdrawalRequest
	for _, r := range q.requests {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (q *Withdrawals) SetStatus(_ context.Context, id string, status reward.WithdrawalStatus, processedBy string, processedAt time.Time) (reward.WithdrawalRequest, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	r, ok := q.requests[id]
	if !ok {
		return reward.WithdrawalRequest{}, fmt.Errorf("withdrawal %s: %w", id, reward.ErrNotFound)
	}
	if r.Status != reward.WithdrawalPending {
		return reward.WithdrawalRequest{}, fmt.Errorf("withdrawal %s is %s: %w", id, r.Status, reward.ErrAlreadyResolved)
	}
	at := processedAt
	r.Status = status
	r.ProcessedAt = &at
	r.ProcessedBy = processedBy
	q.requests[id] = r
	return r, nil
}
