package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/souq/internal/jobs"
	"github.com/odyssey-erp/souq/internal/onboarding"
)

// OnboardingDecidedJob announces onboarding decisions to the affected actor.
type OnboardingDecidedJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewOnboardingDecidedJob wires the handler.
func NewOnboardingDecidedJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *OnboardingDecidedJob {
	return &OnboardingDecidedJob{Logger: logger, Metrics: metrics}
}

// Handle processes TaskOnboardingDecided tasks.
func (j *OnboardingDecidedJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil {
		return errors.New("onboarding decided: handler not configured")
	}
	var ev onboarding.DecisionEvent
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return asynq.SkipRetry
	}
	if ev.ActorID <= 0 || ev.Status == "" {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskOnboardingDecided)
	defer func() { err = tracker.End(err) }()

	logger := j.logger().With(
		slog.String("kind", string(ev.Kind)),
		slog.Int64("actor_id", ev.ActorID),
		slog.String("status", string(ev.Status)),
		slog.Int64("decided_by", ev.DecidedBy),
	)
	switch {
	case ev.Status.IsApproved():
		logger.InfoContext(ctx, "onboarding approved")
	case ev.Status == onboarding.StatusRejected:
		logger.InfoContext(ctx, "onboarding rejected", slog.String("reason", ev.Reason))
	case ev.Status == onboarding.StatusUpdateNeeded:
		logger.InfoContext(ctx, "onboarding update requested", slog.String("note", ev.Reason))
	default:
		logger.WarnContext(ctx, "onboarding decision with non-terminal status")
	}
	return nil
}

func (j *OnboardingDecidedJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
