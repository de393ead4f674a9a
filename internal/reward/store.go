package reward

import (
	"context"
	"time"
)

// Mutation changes an account inside the store's atomic unit. It runs
// only after the stored version has been checked against the caller's
// expectation, and the result is validated before it is written.
type Mutation func(*Account) error

// AccountStore persists Account records with optimistic versioning.
type AccountStore interface {
	// Get returns ErrNotFound when the account does not exist.
	Get(ctx context.Context, id string) (Account, error)
	// Update applies m when the stored version equals expectedVersion and
	// returns the stored result with its version incremented. A mismatch
	// fails with ErrVersionConflict and leaves the record untouched.
	Update(ctx context.Context, id string, m Mutation, expectedVersion int64) (Account, error)
	// LookupByReferralCode returns ErrNotFound for an unknown code.
	LookupByReferralCode(ctx context.Context, code string) (Account, error)
}

// EarningStore credits referral commission and keeps the audit trail.
type EarningStore interface {
	// Credit adds e.Amount to the referrer and appends e in one atomic unit.
	// It fails with ErrDuplicateEarning, without crediting, when an earning
	// for e.ClickID already exists, and with ErrVersionConflict when the
	// referrer changed since expectedVersion.
	Credit(ctx context.Context, referrerID string, expectedVersion int64, e ReferralEarning) (Account, error)
	ListEarnings(ctx context.Context, referrerID string) ([]ReferralEarning, error)
}

// WithdrawalQueue stores payout requests for the reviewer.
type WithdrawalQueue interface {
	Enqueue(ctx context.Context, r WithdrawalRequest) error
	Get(ctx context.Context, id string) (WithdrawalRequest, error)
	// ListPending returns pending requests, most recent CreatedAt first.
	ListPending(ctx context.Context) ([]WithdrawalRequest, error)
	// SetStatus moves a pending request to a terminal status. It fails with
	// ErrAlreadyResolved when the request is not pending.
	SetStatus(ctx context.Context, id string, status WithdrawalStatus, processedBy string, processedAt time.Time) (WithdrawalRequest, error)
}

// OwedCommission marks a referred click whose commission has not been
// settled yet.
type OwedCommission struct {
	ClickID   string
	AccountID string
	ClickedAt time.Time
}

// CommissionOutbox keeps owed commissions next to the clicks that owe them,
// so a lost dispatch can be replayed.
type CommissionOutbox interface {
	// UpdateOwing behaves like AccountStore.Update and records owed in the
	// same atomic unit. Nothing is recorded when the update fails. The store
	// sets owed.ClickedAt.
	UpdateOwing(ctx context.Context, id string, m Mutation, expectedVersion int64, owed OwedCommission) (Account, error)
	// ListOwed returns up to limit commissions recorded at or before cutoff,
	// oldest first.
	ListOwed(ctx context.Context, cutoff time.Time, limit int) ([]OwedCommission, error)
	// Settle forgets the commission owed for clickID. Settling an unknown
	// click is not an error.
	Settle(ctx context.Context, clickID string) error
}
