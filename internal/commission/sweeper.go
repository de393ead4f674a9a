package commission

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sudo-init-do/coinclicker/internal/metrics"
	"github.com/sudo-init-do/coinclicker/internal/reward"
)

const sweepBatch = 500

// Sweeper re-dispatches commissions that are still owed some time after
// their click. Processing dedupes on the click id, so a job that was
// already applied is settled without a second credit.
type Sweeper struct {
	outbox     reward.CommissionOutbox
	dispatcher Dispatcher
	age        time.Duration
	log        logrus.FieldLogger
	metrics    *metrics.Recorder
	now        func() time.Time
}

// NewSweeper replays commissions owed for longer than age.
func NewSweeper(outbox reward.CommissionOutbox, dispatcher Dispatcher, age time.Duration, log logrus.FieldLogger, m *metrics.Recorder) *Sweeper {
	return &Sweeper{outbox: outbox, dispatcher: dispatcher, age: age, log: log, metrics: m, now: time.Now}
}

// Sweep dispatches one batch of owed commissions and returns how many were
// handed to the dispatcher. It stops at the first dispatch failure.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	owed, err := s.outbox.ListOwed(ctx, s.now().Add(-s.age), sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list owed commissions: %w", err)
	}
	for i, o := range owed {
		job := Job{ClickID: o.ClickID, AccountID: o.AccountID, ClickedAt: o.ClickedAt}
		if err := s.dispatcher.Dispatch(ctx, job); err != nil {
			s.metrics.Commission("dispatch_failed")
			return i, fmt.Errorf("redispatch click %s: %w", o.ClickID, err)
		}
		s.metrics.Commission("redispatched")
	}
	return len(owed), nil
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.log.WithError(err).Warn("commission sweep failed")
			}
			if n > 0 {
				s.log.WithField("count", n).Info("owed commissions redispatched")
			}
		}
	}
}
