package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// Enqueuer is the subset of *asynq.Client used to publish tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// GuardedEnqueuer fails fast while the breaker is open so a broker outage does not add
// its timeout to every checkout.
type GuardedEnqueuer struct {
	Next    Enqueuer
	Breaker *Breaker
}

// EnqueueContext implements Enqueuer.
func (g GuardedEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if g.Breaker == nil {
		return g.Next.EnqueueContext(ctx, task, opts...)
	}
	if !g.Breaker.Allow(ctx) {
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), ErrOpenCircuit)
	}
	info, err := g.Next.EnqueueContext(ctx, task, opts...)
	g.Breaker.Report(ctx, err == nil || isTaskConflict(err))
	return info, err
}

func isTaskConflict(err error) bool {
	return errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask)
}
