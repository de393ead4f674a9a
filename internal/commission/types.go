// Package commission carries referral commission out of the click path.
// A click enqueues a Job; a Processor applies it through reward.Propagator.
package commission

import (
	"context"
	"time"
)

const (
	TaskCommission = "referral:commission"
	QueueName      = "commissions"
)

// Job asks for the commission owed on one click of a referred account.
type Job struct {
	ClickID   string    `json:"click_id"`
	AccountID string    `json:"account_id"`
	ClickedAt time.Time `json:"clicked_at"`
}

// Dispatcher hands a Job to whatever applies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}
