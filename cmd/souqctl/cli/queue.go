package cli

import (
	"errors"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/souq/jobs"
)

// QueueCLI inspects the notification queue.
type QueueCLI struct {
	inspector *asynq.Inspector
}

// NewQueueCLI connects an inspector to redisAddr.
func NewQueueCLI(redisAddr string) *QueueCLI {
	return &QueueCLI{inspector: asynq.NewInspector(asynq.RedisClientOpt{Addr: redisAddr})}
}

// Close releases the inspector.
func (c *QueueCLI) Close() error {
	if c == nil || c.inspector == nil {
		return nil
	}
	return c.inspector.Close()
}

// QueueStats summarises the default queue.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// Stats reports counters for the default queue.
func (c *QueueCLI) Stats() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("queue cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	return QueueStats{
		Queue:     info.Queue,
		Pending:   info.Pending,
		Active:    info.Active,
		Scheduled: info.Scheduled,
		Retry:     info.Retry,
		Archived:  info.Archived,
	}, nil
}

// RetryArchived moves archived tasks of taskType back to pending, e.g. wallet
// notifications that exhausted their retries during a database outage.
func (c *QueueCLI) RetryArchived(taskType string) (int, error) {
	if c == nil || c.inspector == nil {
		return 0, errors.New("queue cli: inspector not configured")
	}
	tasks, err := c.inspector.ListArchivedTasks(jobs.QueueDefault, asynq.PageSize(500))
	if err != nil {
		return 0, err
	}
	retried := 0
	for _, t := range tasks {
		if taskType != "" && t.Type != taskType {
			continue
		}
		if err := c.inspector.RunTask(jobs.QueueDefault, t.ID); err != nil {
			return retried, err
		}
		retried++
	}
	return retried, nil
}
