package commission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/sudo-init-do/coinclicker/internal/metrics"
	"github.com/sudo-init-do/coinclicker/internal/reward"
)

// conflictAttempts bounds the retries of one Process call when the
// referrer keeps moving under it.
const conflictAttempts = 5

// Processor applies commission jobs.
type Processor struct {
	accounts   reward.AccountStore
	propagator *reward.Propagator
	outbox     reward.CommissionOutbox
	log        logrus.FieldLogger
	metrics    *metrics.Recorder
}

// NewProcessor wires a processor. outbox may be nil; when set, a job that
// is done for good is settled there.
func NewProcessor(accounts reward.AccountStore, propagator *reward.Propagator, outbox reward.CommissionOutbox, log logrus.FieldLogger, m *metrics.Recorder) *Processor {
	return &Processor{accounts: accounts, propagator: propagator, outbox: outbox, log: log, metrics: m}
}

// Process applies the commission for job. Running it again for the same
// click credits nothing.
func (p *Processor) Process(ctx context.Context, job Job) error {
	log := p.log.WithFields(logrus.Fields{"click_id": job.ClickID, "account_id": job.AccountID})

	err := p.process(ctx, log, job)
	if p.outbox != nil && job.ClickID != "" && !reward.Retryable(err) {
		if serr := p.outbox.Settle(ctx, job.ClickID); serr != nil {
			log.WithError(serr).Warn("owed commission not settled")
		}
	}
	return err
}

func (p *Processor) process(ctx context.Context, log logrus.FieldLogger, job Job) error {
	referred, err := p.accounts.Get(ctx, job.AccountID)
	if err != nil {
		return fmt.Errorf("load referred account: %w", err)
	}

	var earning *reward.ReferralEarning
	for i := 0; i < conflictAttempts; i++ {
		earning, err = p.propagator.ApplyCommission(ctx, referred, job.ClickID)
		if !errors.Is(err, reward.ErrVersionConflict) {
			break
		}
		p.metrics.Conflict("commission")
	}
	if err != nil {
		p.metrics.Commission("failed")
		log.WithError(err).Warn("commission not applied")
		return err
	}
	if earning == nil {
		p.metrics.Commission("skipped")
		log.Debug("no commission owed")
		return nil
	}

	p.metrics.Commission("credited")
	log.WithFields(logrus.Fields{"referrer_id": earning.ReferrerID, "amount": earning.Amount.String()}).Info("commission credited")
	return nil
}

// HandleTask is the asynq handler for TaskCommission. Jobs that can never
// succeed are not retried.
func (p *Processor) HandleTask(ctx context.Context, t *asynq.Task) error {
	var job Job
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		return fmt.Errorf("decode commission job: %v: %w", err, asynq.SkipRetry)
	}
	err := p.Process(ctx, job)
	if errors.Is(err, reward.ErrNotFound) || errors.Is(err, reward.ErrInvalidAccount) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

// ServeMux routes commission tasks to p.
func (p *Processor) ServeMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskCommission, p.HandleTask)
	return mux
}
