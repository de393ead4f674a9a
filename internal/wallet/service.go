package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sudo-init-do/coinclicker/internal/commission"
	"github.com/sudo-init-do/coinclicker/internal/feed"
	"github.com/sudo-init-do/coinclicker/internal/metrics"
	"github.com/sudo-init-do/coinclicker/internal/reward"
)

// Withdrawals is the request store as the wallet sees it.
type Withdrawals interface {
	reward.WithdrawalQueue
	ListByAccount(ctx context.Context, accountID string) ([]reward.WithdrawalRequest, error)
}

// Publisher receives withdrawal events for the admin feed.
type Publisher interface {
	Publish(kind string, data interface{})
}

type discard struct{}

func (discard) Publish(string, interface{}) {}

type Deps struct {
	Accounts    reward.AccountStore
	Earnings    reward.EarningStore
	Owed        reward.CommissionOutbox
	Withdrawals Withdrawals
	Dispatcher  commission.Dispatcher
	Feed        Publisher
	Log         logrus.FieldLogger
	Metrics     *metrics.Recorder
	MaxAttempts int
}

// Service runs the reward core on behalf of HTTP callers and owns the
// retry policy around optimistic writes.
type Service struct {
	accounts    reward.AccountStore
	earnings    reward.EarningStore
	owed        reward.CommissionOutbox
	withdrawals Withdrawals
	ledger      *reward.Ledger
	gate        *reward.Gate
	dispatcher  commission.Dispatcher
	feed        Publisher
	log         logrus.FieldLogger
	metrics     *metrics.Recorder
	maxAttempts int
}

func NewService(d Deps) *Service {
	if d.MaxAttempts < 1 {
		d.MaxAttempts = 1
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.Feed == nil {
		d.Feed = discard{}
	}
	return &Service{
		accounts:    d.Accounts,
		earnings:    d.Earnings,
		owed:        d.Owed,
		withdrawals: d.Withdrawals,
		ledger:      reward.NewLedger(),
		gate:        reward.NewGate(d.Accounts, d.Withdrawals),
		dispatcher:  d.Dispatcher,
		feed:        d.Feed,
		log:         d.Log,
		metrics:     d.Metrics,
		maxAttempts: d.MaxAttempts,
	}
}

type ClickResult struct {
	ClickID string
	Account reward.Account
}

// Click applies one click. A conflicting or failed write is retried from
// a fresh snapshot up to the configured number of attempts. With an outbox
// configured, the commission a referred click owes is recorded in the same
// write as the click. Dispatch happens afterwards and never fails the click.
func (s *Service) Click(ctx context.Context, accountID string) (ClickResult, error) {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		var snapshot, updated reward.Account
		clickID := uuid.New().String()
		snapshot, err = s.accounts.Get(ctx, accountID)
		if err == nil {
			updated, err = s.apply(ctx, snapshot, clickID)
		}
		if err == nil {
			s.metrics.Click()
			res := ClickResult{ClickID: clickID, Account: updated}
			s.dispatchCommission(ctx, res)
			return res, nil
		}
		if errors.Is(err, reward.ErrVersionConflict) {
			s.metrics.Conflict("click")
		}
		if !reward.Retryable(err) {
			return ClickResult{}, err
		}
	}
	return ClickResult{}, fmt.Errorf("click for %s gave up after %d attempts: %w", accountID, s.maxAttempts, err)
}

func (s *Service) apply(ctx context.Context, snapshot reward.Account, clickID string) (reward.Account, error) {
	m := s.ledger.Mutation(snapshot)
	if s.owed != nil && snapshot.Referred() {
		return s.owed.UpdateOwing(ctx, snapshot.ID, m, snapshot.Version, reward.OwedCommission{ClickID: clickID})
	}
	return s.accounts.Update(ctx, snapshot.ID, m, snapshot.Version)
}

// dispatchCommission hands the job over. A failure leaves the commission
// owed in the outbox for the sweeper.
func (s *Service) dispatchCommission(ctx context.Context, res ClickResult) {
	if !res.Account.Referred() || s.dispatcher == nil {
		return
	}
	job := commission.Job{ClickID: res.ClickID, AccountID: res.Account.ID, ClickedAt: res.Account.UpdatedAt}
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		s.metrics.Commission("dispatch_failed")
		s.log.WithError(err).WithFields(logrus.Fields{
			"click_id":   res.ClickID,
			"account_id": res.Account.ID,
		}).Error("commission dispatch failed")
	}
}

// Withdraw requests a payout of the whole balance.
func (s *Service) Withdraw(ctx context.Context, accountID string) (reward.WithdrawalRequest, error) {
	var (
		req reward.WithdrawalRequest
		err error
	)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		req, err = s.gate.RequestWithdrawal(ctx, accountID)
		if !errors.Is(err, reward.ErrVersionConflict) {
			break
		}
		s.metrics.Conflict("withdraw")
	}

	switch {
	case err == nil:
		s.metrics.Withdrawal("requested")
	case errors.Is(err, reward.ErrInsufficientBalance):
		s.metrics.Withdrawal("insufficient")
		return reward.WithdrawalRequest{}, err
	default:
		s.metrics.Withdrawal("failed")
		s.log.WithError(err).WithField("account_id", accountID).Error("withdrawal request failed")
		return reward.WithdrawalRequest{}, err
	}

	s.log.WithFields(logrus.Fields{
		"account_id":    accountID,
		"withdrawal_id": req.ID,
		"amount":        req.Amount.String(),
	}).Info("withdrawal requested")
	s.feed.Publish(feed.WithdrawalRequested, req)
	return req, nil
}

// Resolve records the reviewer's decision on a pending request.
func (s *Service) Resolve(ctx context.Context, requestID string, status reward.WithdrawalStatus, adminID string) (reward.WithdrawalRequest, error) {
	req, err := s.gate.Resolve(ctx, requestID, status, adminID)
	if err != nil {
		return reward.WithdrawalRequest{}, err
	}
	s.metrics.Withdrawal(string(status))
	s.log.WithFields(logrus.Fields{
		"withdrawal_id": req.ID,
		"status":        req.Status,
		"admin_id":      adminID,
	}).Info("withdrawal resolved")
	s.feed.Publish(feed.WithdrawalResolved, req)
	return req, nil
}

func (s *Service) Account(ctx context.Context, accountID string) (reward.Account, error) {
	return s.accounts.Get(ctx, accountID)
}

// CanWithdraw reports whether a's balance passes the withdrawal threshold.
func (s *Service) CanWithdraw(a reward.Account) bool {
	return a.Balance.GreaterThanOrEqual(s.gate.Threshold())
}

func (s *Service) Withdrawals(ctx context.Context, accountID string) ([]reward.WithdrawalRequest, error) {
	return s.withdrawals.ListByAccount(ctx, accountID)
}

func (s *Service) Pending(ctx context.Context) ([]reward.WithdrawalRequest, error) {
	return s.withdrawals.ListPending(ctx)
}

func (s *Service) Earnings(ctx context.Context, accountID string) ([]reward.ReferralEarning, error) {
	return s.earnings.ListEarnings(ctx, accountID)
}
