package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/souq/internal/approval"
	"github.com/odyssey-erp/souq/internal/onboarding"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOnboardingDecided follows an approve, reject or update request on a profile.
	TaskOnboardingDecided = "onboarding:decided"
	// TaskWalletCredited follows a booked vendor wallet credit.
	TaskWalletCredited = "wallet:credited"
)

// NewOnboardingDecidedTask builds the task for a committed onboarding decision.
func NewOnboardingDecidedTask(ev onboarding.DecisionEvent) (*asynq.Task, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOnboardingDecided, data), nil
}

// NewWalletCreditedTask builds the task for a booked wallet credit.
func NewWalletCreditedTask(credit approval.WalletCredit) (*asynq.Task, error) {
	data, err := json.Marshal(credit)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWalletCredited, data), nil
}
