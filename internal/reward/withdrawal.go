package reward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// rollbackAttempts bounds the re-credit loop after a failed enqueue.
const rollbackAttempts = 5

// Gate validates payout requests and resolves them.
type Gate struct {
	accounts  AccountStore
	queue     WithdrawalQueue
	threshold decimal.Decimal
	now       func() time.Time
}

// NewGate returns a gate using WithdrawalThreshold.
func NewGate(accounts AccountStore, queue WithdrawalQueue) *Gate {
	return &Gate{
		accounts:  accounts,
		queue:     queue,
		threshold: WithdrawalThreshold,
		now:       time.Now,
	}
}

// Threshold is the minimum balance accepted by RequestWithdrawal.
func (g *Gate) Threshold() decimal.Decimal {
	return g.threshold
}

// RequestWithdrawal zeroes the account balance and enqueues a pending
// request for exactly the zeroed amount.
//
// The zeroing write is conditioned on the version of the snapshot whose
// balance becomes the request amount; a click landing in between fails the
// write with ErrVersionConflict and nothing is changed. If the enqueue
// fails and the request is confirmed absent, the amount is credited back
// before returning. A request that was stored despite the error is
// returned as a success.
func (g *Gate) RequestWithdrawal(ctx context.Context, accountID string) (WithdrawalRequest, error) {
	snapshot, err := g.accounts.Get(ctx, accountID)
	if err != nil {
		return WithdrawalRequest{}, fmt.Errorf("get account %s: %w", accountID, err)
	}
	if snapshot.Balance.LessThan(g.threshold) {
		return WithdrawalRequest{}, &InsufficientBalanceError{Balance: snapshot.Balance, Threshold: g.threshold}
	}

	amount := snapshot.Balance
	zero := func(a *Account) error {
		a.Balance = decimal.Zero
		return nil
	}
	if _, err := g.accounts.Update(ctx, accountID, zero, snapshot.Version); err != nil {
		return WithdrawalRequest{}, fmt.Errorf("zero balance of %s: %w", accountID, err)
	}

	req := WithdrawalRequest{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Amount:    amount,
		Status:    WithdrawalPending,
		CreatedAt: g.now().UTC(),
	}
	if err := g.queue.Enqueue(ctx, req); err != nil {
		enqueueErr := fmt.Errorf("enqueue withdrawal for %s: %w", accountID, err)
		stored, lookupErr := g.enqueued(ctx, req.ID)
		switch {
		case lookupErr != nil:
			// Unknown outcome. Leave the balance zeroed rather than risk
			// paying the amount twice.
			return WithdrawalRequest{}, errors.Join(enqueueErr, lookupErr)
		case stored != nil:
			return *stored, nil
		}
		if rbErr := g.restore(ctx, accountID, amount); rbErr != nil {
			return WithdrawalRequest{}, errors.Join(enqueueErr, rbErr)
		}
		return WithdrawalRequest{}, enqueueErr
	}
	return req, nil
}

// enqueued looks up a request whose Enqueue reported an error, since the
// write may have landed anyway. It returns nil and no error when the
// request is certainly absent.
func (g *Gate) enqueued(ctx context.Context, id string) (*WithdrawalRequest, error) {
	var err error
	for i := 0; i < rollbackAttempts; i++ {
		var req WithdrawalRequest
		req, err = g.queue.Get(ctx, id)
		switch {
		case err == nil:
			return &req, nil
		case errors.Is(err, ErrNotFound):
			return nil, nil
		case !Retryable(err):
			return nil, fmt.Errorf("check withdrawal %s: %w", id, err)
		}
	}
	return nil, fmt.Errorf("check withdrawal %s: %w", id, err)
}

// restore credits amount back after the request could not be enqueued.
// Clicks may have landed after the zero, so every attempt re-reads.
func (g *Gate) restore(ctx context.Context, accountID string, amount decimal.Decimal) error {
	credit := func(a *Account) error {
		a.Balance = a.Balance.Add(amount)
		return nil
	}
	var err error
	for i := 0; i < rollbackAttempts; i++ {
		var current Account
		current, err = g.accounts.Get(ctx, accountID)
		if err != nil {
			if Retryable(err) {
				continue
			}
			break
		}
		if _, err = g.accounts.Update(ctx, accountID, credit, current.Version); err == nil {
			return nil
		}
		if !Retryable(err) {
			break
		}
	}
	return fmt.Errorf("restore %s to %s: %w", amount, accountID, err)
}

// Resolve moves a pending request to completed or rejected. Resolving a
// request twice fails with ErrAlreadyResolved. A rejection does not
// return the amount to the account.
func (g *Gate) Resolve(ctx context.Context, requestID string, status WithdrawalStatus, processedBy string) (WithdrawalRequest, error) {
	if !status.Terminal() {
		return WithdrawalRequest{}, fmt.Errorf("%w: cannot resolve to %q", ErrInvalidStatus, status)
	}
	if processedBy == "" {
		return WithdrawalRequest{}, fmt.Errorf("%w: resolution needs a reviewer id", ErrInvalidStatus)
	}
	req, err := g.queue.SetStatus(ctx, requestID, status, processedBy, g.now().UTC())
	if err != nil {
		return WithdrawalRequest{}, fmt.Errorf("resolve withdrawal %s: %w", requestID, err)
	}
	return req, nil
}
