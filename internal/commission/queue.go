package commission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// Queue dispatches jobs to Redis through asynq. The click id doubles as
// the task id, so a job enqueued twice is stored once.
type Queue struct {
	client   *asynq.Client
	maxRetry int
}

func NewQueue(opt asynq.RedisConnOpt, maxRetry int) *Queue {
	return &Queue{client: asynq.NewClient(opt), maxRetry: maxRetry}
}

// NewTask builds the asynq task for job.
func NewTask(job Job) (*asynq.Task, error) {
	b, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal commission job: %w", err)
	}
	return asynq.NewTask(TaskCommission, b), nil
}

func (q *Queue) Dispatch(ctx context.Context, job Job) error {
	task, err := NewTask(job)
	if err != nil {
		return err
	}
	_, err = q.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueName),
		asynq.TaskID(job.ClickID),
		asynq.MaxRetry(q.maxRetry),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue commission for click %s: %w", job.ClickID, err)
	}
	return nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// NewServer returns an asynq server that only consumes the commission queue.
func NewServer(opt asynq.RedisConnOpt, concurrency int) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueName: 1},
	})
}
