package reward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Propagator credits referrers with a share of their referrals' click reward.
type Propagator struct {
	accounts AccountStore
	earnings EarningStore
	amount   decimal.Decimal
	now      func() time.Time
}

// NewPropagator wires a propagator paying ClickReward × CommissionRate per click.
func NewPropagator(accounts AccountStore, earnings EarningStore) *Propagator {
	return &Propagator{
		accounts: accounts,
		earnings: earnings,
		amount:   ClickReward.Mul(CommissionRate),
		now:      time.Now,
	}
}

// Commission is the amount credited per referred click.
func (p *Propagator) Commission() decimal.Decimal {
	return p.amount
}

// ApplyCommission credits the referrer of referred for the click clickID.
//
// It returns nil and no error when nothing is owed: the account has no
// referrer, the referral code no longer resolves, the code points back at
// the account itself, or clickID was already credited. Version conflicts
// and persistence failures are returned so the caller can retry with a
// fresh referrer snapshot; a retry never credits twice.
func (p *Propagator) ApplyCommission(ctx context.Context, referred Account, clickID string) (*ReferralEarning, error) {
	if !referred.Referred() {
		return nil, nil
	}
	if clickID == "" {
		return nil, fmt.Errorf("%w: commission needs a click id", ErrInvalidAccount)
	}

	referrer, err := p.accounts.LookupByReferralCode(ctx, referred.ReferredBy)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup referrer %q: %w", referred.ReferredBy, err)
	}
	if referrer.ID == referred.ID {
		return nil, nil
	}

	earning := ReferralEarning{
		ID:         uuid.New().String(),
		ReferrerID: referrer.ID,
		ReferredID: referred.ID,
		ClickID:    clickID,
		Amount:     p.amount,
		CreatedAt:  p.now().UTC(),
	}
	if _, err := p.earnings.Credit(ctx, referrer.ID, referrer.Version, earning); err != nil {
		if errors.Is(err, ErrDuplicateEarning) {
			return nil, nil
		}
		return nil, fmt.Errorf("credit referrer %s: %w", referrer.ID, err)
	}
	return &earning, nil
}
