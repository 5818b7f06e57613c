package onboarding

import "github.com/odyssey-erp/souq/internal/shared"

var transitions = map[Status][]Status{
	StatusNotStarted:          {StatusInProgress},
	StatusInProgress:          {StatusInProgress, StatusPendingVerification},
	StatusPendingVerification: {StatusApprovedGeneral, StatusApprovedControlled, StatusRejected},
	StatusApprovedGeneral:     {StatusUpdateNeeded},
	StatusApprovedControlled:  {StatusUpdateNeeded},
	StatusRejected:            {StatusUpdateNeeded},
	StatusUpdateNeeded:        {StatusInProgress},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func transition(p *Profile, to Status) error {
	if !CanTransition(p.Status, to) {
		return shared.InvalidTransition(string(p.Status), string(to))
	}
	p.Status = to
	if to != StatusInProgress {
		p.CurrentStep = nil
	}
	return nil
}
