package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/souq/internal/approval"
	"github.com/odyssey-erp/souq/internal/onboarding"
)

// Enqueuer is the part of *asynq.Client the notifier needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier turns committed domain events into queued tasks. It satisfies
// onboarding.Notifier and approval.Notifier.
type Notifier struct {
	queue Enqueuer
}

var (
	_ onboarding.Notifier = (*Notifier)(nil)
	_ approval.Notifier   = (*Notifier)(nil)
)

// NewNotifier wraps queue.
func NewNotifier(queue Enqueuer) *Notifier {
	return &Notifier{queue: queue}
}

// OnboardingDecided enqueues a TaskOnboardingDecided task.
func (n *Notifier) OnboardingDecided(ctx context.Context, ev onboarding.DecisionEvent) error {
	task, err := NewOnboardingDecidedTask(ev)
	if err != nil {
		return err
	}
	return n.enqueue(ctx, task, asynq.MaxRetry(5))
}

// WalletCredited enqueues a TaskWalletCredited task keyed by the ledger entry,
// so a repeated notification for the same credit is dropped by the queue.
func (n *Notifier) WalletCredited(ctx context.Context, credit approval.WalletCredit) error {
	task, err := NewWalletCreditedTask(credit)
	if err != nil {
		return err
	}
	return n.enqueue(ctx, task, asynq.MaxRetry(10), asynq.TaskID("wallet-credit:"+credit.ID.String()))
}

func (n *Notifier) enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	if n == nil || n.queue == nil {
		return nil
	}
	opts = append([]asynq.Option{asynq.Queue(QueueDefault)}, opts...)
	if _, err := n.queue.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return nil
}
