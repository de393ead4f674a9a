package commission

import (
	"context"
	"sync"
	"time"

	"github.com/sudo-init-do/coinclicker/internal/reward"
)

// Inline applies jobs on a background goroutine in this process. It stands
// in for Queue when Redis is not available.
type Inline struct {
	proc     *Processor
	maxRetry int
	backoff  time.Duration
	wg       sync.WaitGroup
}

func NewInline(proc *Processor, maxRetry int) *Inline {
	return &Inline{proc: proc, maxRetry: maxRetry, backoff: 50 * time.Millisecond}
}

// Dispatch returns at once. The job outlives the request context.
func (d *Inline) Dispatch(ctx context.Context, job Job) error {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for attempt := 0; ; attempt++ {
			err := d.proc.Process(ctx, job)
			if err == nil || !reward.Retryable(err) || attempt >= d.maxRetry {
				return
			}
			time.Sleep(d.backoff * time.Duration(attempt+1))
		}
	}()
	return nil
}

// Wait blocks until every dispatched job has finished.
func (d *Inline) Wait() {
	d.wg.Wait()
}
