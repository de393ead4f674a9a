// Package reward holds the accounting core of coinclicker: the click
// ledger, referral commission and the withdrawal gate. It knows nothing
// about HTTP or SQL; storage is reached through the interfaces in store.go.
package reward

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ClickReward is credited to an account for every click.
	ClickReward = decimal.New(1, -1)
	// CommissionRate is the share of ClickReward paid to the referrer.
	CommissionRate = decimal.New(3, -1)
	// WithdrawalThreshold is the minimum balance for a payout request.
	WithdrawalThreshold = decimal.NewFromInt(100000)
)

// Account is a user's balance and click-count record.
type Account struct {
	ID           string          `json:"id"`
	Balance      decimal.Decimal `json:"balance"`
	TotalClicks  int64           `json:"total_clicks"`
	ReferralCode string          `json:"referral_code"`
	ReferredBy   string          `json:"referred_by,omitempty"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Referred reports whether the account was recruited through a referral code.
func (a Account) Referred() bool {
	return a.ReferredBy != ""
}

// Validate checks the record invariants. Stores call it before every write.
func (a Account) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidAccount)
	}
	if a.ReferralCode == "" {
		return fmt.Errorf("%w: account %s has no referral code", ErrInvalidAccount, a.ID)
	}
	if a.Balance.IsNegative() {
		return fmt.Errorf("%w: account %s balance %s is negative", ErrInvalidAccount, a.ID, a.Balance)
	}
	if a.TotalClicks < 0 {
		return fmt.Errorf("%w: account %s click count %d is negative", ErrInvalidAccount, a.ID, a.TotalClicks)
	}
	return nil
}

// CheckTransition rejects an update from before to after that breaks the
// record invariants: identity fields never change and clicks never
// decrease.
func CheckTransition(before, after Account) error {
	if err := after.Validate(); err != nil {
		return err
	}
	if after.ID != before.ID || after.ReferralCode != before.ReferralCode || after.ReferredBy != before.ReferredBy {
		return fmt.Errorf("%w: identity fields of %s are immutable", ErrInvalidAccount, before.ID)
	}
	if after.TotalClicks < before.TotalClicks {
		return fmt.Errorf("%w: click count of %s cannot decrease", ErrInvalidAccount, before.ID)
	}
	return nil
}

// WithdrawalStatus is the lifecycle state of a WithdrawalRequest.
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalRejected  WithdrawalStatus = "rejected"
)

// Terminal reports whether no further transition is allowed from s.
func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalCompleted || s == WithdrawalRejected
}

// ParseWithdrawalStatus converts a stored status string.
func ParseWithdrawalStatus(s string) (WithdrawalStatus, error) {
	switch st := WithdrawalStatus(s); st {
	case WithdrawalPending, WithdrawalCompleted, WithdrawalRejected:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// WithdrawalRequest is a payout request awaiting an administrative reviewer.
type WithdrawalRequest struct {
	ID          string           `json:"id"`
	AccountID   string           `json:"account_id"`
	Amount      decimal.Decimal  `json:"amount"`
	Status      WithdrawalStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	ProcessedAt *time.Time       `json:"processed_at,omitempty"`
	ProcessedBy string           `json:"processed_by,omitempty"`
}

// Validate checks a request before it is enqueued.
func (r WithdrawalRequest) Validate() error {
	if r.ID == "" || r.AccountID == "" {
		return fmt.Errorf("%w: withdrawal request needs id and account id", ErrInvalidAccount)
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: withdrawal amount %s must be positive", ErrInvalidAccount, r.Amount)
	}
	if r.Status != WithdrawalPending {
		return fmt.Errorf("%w: new withdrawal must be pending, got %q", ErrInvalidStatus, r.Status)
	}
	return nil
}

// ReferralEarning is the immutable audit record of one applied commission.
// ClickID identifies the referred click and is unique across earnings.
type ReferralEarning struct {
	ID         string          `json:"id"`
	ReferrerID string          `json:"referrer_id"`
	ReferredID string          `json:"referred_id"`
	ClickID    string          `json:"click_id"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`
}
