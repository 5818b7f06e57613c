package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/souq/internal/rbac"
	"github.com/odyssey-erp/souq/internal/shared"
	"github.com/odyssey-erp/souq/internal/visibility"
)

// Repository persists onboarding profiles.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	GetProfile(ctx context.Context, kind rbac.ResourceKind, actorID int64) (*Profile, error)
	GetProfileForUpdate(ctx context.Context, kind rbac.ResourceKind, actorID int64) (*Profile, error)
	SaveProfile(ctx context.Context, p *Profile) error
	SaveStep(ctx context.Context, profileID int64, step int, payload json.RawMessage) error
	SetActorActive(ctx context.Context, actorID int64, active bool) error
	ListProfiles(ctx context.Context, req ListProfilesRequest, pred visibility.Predicate) ([]Profile, int, error)
}

// Authorizer is the slice of rbac.Evaluator the onboarding flow needs.
type Authorizer interface {
	visibility.ScopeResolver
	CanPerform(ctx context.Context, actor rbac.Actor, action rbac.Action, resource rbac.Resource) (rbac.Decision, error)
	Authorize(ctx context.Context, actor rbac.Actor, name string) (rbac.Decision, error)
}

// Classifier reads a profile's live sensitivity.
type Classifier interface {
	Profile(ctx context.Context, kind rbac.ResourceKind, actorID int64) (rbac.Resource, error)
}

// Recorder keeps the approval history.
type Recorder interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// Notifier is told about admin decisions once they are committed.
type Notifier interface {
	OnboardingDecided(ctx context.Context, ev DecisionEvent) error
}

// Service drives the onboarding state machine.
type Service struct {
	repo       Repository
	auth       Authorizer
	classifier Classifier
	recorder   Recorder
	notifier   Notifier
	steps      *StepValidator
	logger     *slog.Logger
	now        func() time.Time
}

// NewService builds Service instance. Recorder and notifier may be nil.
func NewService(repo Repository, auth Authorizer, classifier Classifier, recorder Recorder, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		auth:       auth,
		classifier: classifier,
		recorder:   recorder,
		notifier:   notifier,
		steps:      NewStepValidator(),
		logger:     logger,
		now:        time.Now,
	}
}

// Get returns a profile to its owner or to an admin allowed to view it.
func (s *Service) Get(ctx context.Context, actor rbac.Actor, kind rbac.ResourceKind, actorID int64) (*Profile, error) {
	if own, ok := KindForRole(actor.Role); !ok || own != kind || actor.ID != actorID {
		if err := s.authorize(ctx, actor, rbac.ActionView, kind, actorID); err != nil {
			return nil, err
		}
	}
	return s.repo.GetProfile(ctx, kind, actorID)
}

// SubmitStep stores one step payload for the calling vendor or customer.
// Each step is validated only against its own payload and fully overwrites
// the previous submission.
func (s *Service) SubmitStep(ctx context.Context, actor rbac.Actor, step int, payload json.RawMessage) (*Profile, error) {
	kind, ok := KindForRole(actor.Role)
	if !ok {
		return nil, fmt.Errorf("%w: only vendors and customers onboard", shared.ErrForbidden)
	}
	parsed, canonical, err := s.steps.Parse(step, payload)
	if err != nil {
		return nil, err
	}

	var profile *Profile
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		p, err := repo.GetProfileForUpdate(ctx, kind, actor.ID)
		if errors.Is(err, shared.ErrNotFound) {
			p, err = newProfile(kind, actor.ID), nil
		}
		if err != nil {
			return err
		}
		if err := advance(p, step); err != nil {
			return err
		}
		applyStep(p, parsed)
		if err := p.checkInvariant(); err != nil {
			return err
		}
		if err := repo.SaveProfile(ctx, p); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
		if err := repo.SaveStep(ctx, p.ID, step, canonical); err != nil {
			return fmt.Errorf("save step: %w", err)
		}
		if p.Steps == nil {
			p.Steps = make(map[int]json.RawMessage)
		}
		p.Steps[step] = canonical
		profile = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// advance moves the profile into in_progress for a step submission. Steps may
// be revisited but never skipped.
func advance(p *Profile, step int) error {
	current := 0
	switch p.Status {
	case StatusNotStarted:
	case StatusInProgress:
		if p.CurrentStep != nil {
			current = *p.CurrentStep
		}
	case StatusUpdateNeeded:
		current = step
	default:
		return shared.InvalidTransition(string(p.Status), string(StatusInProgress))
	}
	if step > current+1 {
		return fmt.Errorf("%w: step %d requires step %d first", shared.ErrInvalidTransition, step, current+1)
	}
	if err := transition(p, StatusInProgress); err != nil {
		return err
	}
	next := current
	if step == current+1 {
		next = step
	}
	p.CurrentStep = &next
	return nil
}

// Submit sends a completed profile for verification.
func (s *Service) Submit(ctx context.Context, actor rbac.Actor) (*Profile, error) {
	kind, ok := KindForRole(actor.Role)
	if !ok {
		return nil, fmt.Errorf("%w: only vendors and customers onboard", shared.ErrForbidden)
	}
	var profile *Profile
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		p, err := repo.GetProfileForUpdate(ctx, kind, actor.ID)
		if errors.Is(err, shared.ErrNotFound) {
			return shared.InvalidTransition(string(StatusNotStarted), string(StatusPendingVerification))
		}
		if err != nil {
			return err
		}
		if !CanTransition(p.Status, StatusPendingVerification) {
			return shared.InvalidTransition(string(p.Status), string(StatusPendingVerification))
		}
		if err := s.steps.Complete(p.Steps); err != nil {
			return err
		}
		if err := transition(p, StatusPendingVerification); err != nil {
			return err
		}
		now := s.now()
		p.SubmittedAt = &now
		if err := repo.SaveProfile(ctx, p); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
		profile = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, shared.ApprovalLog{Module: moduleFor(kind), RefID: profile.ActorID, ActorID: actor.ID, Action: shared.ApprovalSubmit})
	return profile, nil
}

// Approve moves a pending profile into target, which must be approved_general
// or approved_controlled. The required permission is computed from the
// profile's sensitivity read at decision time; approved_controlled also
// requires the controlled approve permission regardless of jurisdiction.
func (s *Service) Approve(ctx context.Context, admin rbac.Actor, kind rbac.ResourceKind, actorID int64, target Status, note string) (*Profile, error) {
	if !target.IsApproved() {
		return nil, fmt.Errorf("%w: approval target must be %s or %s", shared.ErrValidation, StatusApprovedGeneral, StatusApprovedControlled)
	}
	if err := s.authorize(ctx, admin, rbac.ActionApprove, kind, actorID); err != nil {
		return nil, err
	}
	if target == StatusApprovedControlled {
		decision, err := s.auth.Authorize(ctx, admin, controlledApprovePermission(kind))
		if err != nil {
			return nil, err
		}
		if err := decision.Err(); err != nil {
			return nil, err
		}
	}
	profile, err := s.decide(ctx, admin, kind, actorID, target, func(p *Profile) {
		p.RejectionReason = nil
		p.ReviewNote = optionalString(note)
	}, true)
	if err != nil {
		return nil, err
	}
	s.record(ctx, shared.ApprovalLog{Module: moduleFor(kind), RefID: actorID, ActorID: admin.ID, Action: shared.ApprovalApprove, Note: string(target)})
	s.notify(ctx, DecisionEvent{Kind: kind, ActorID: actorID, Status: target, DecidedBy: admin.ID})
	return profile, nil
}

// Reject refuses a pending profile and deactivates its owner.
func (s *Service) Reject(ctx context.Context, admin rbac.Actor, kind rbac.ResourceKind, actorID int64, reason string) (*Profile, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason required", shared.ErrValidation)
	}
	if err := s.authorize(ctx, admin, rbac.ActionApprove, kind, actorID); err != nil {
		return nil, err
	}
	profile, err := s.decide(ctx, admin, kind, actorID, StatusRejected, func(p *Profile) {
		p.RejectionReason = &reason
	}, false)
	if err != nil {
		return nil, err
	}
	s.record(ctx, shared.ApprovalLog{Module: moduleFor(kind), RefID: actorID, ActorID: admin.ID, Action: shared.ApprovalReject, Note: reason})
	s.notify(ctx, DecisionEvent{Kind: kind, ActorID: actorID, Status: StatusRejected, Reason: reason, DecidedBy: admin.ID})
	return profile, nil
}

// RequestUpdate sends a rejected or approved profile back to its owner.
func (s *Service) RequestUpdate(ctx context.Context, admin rbac.Actor, kind rbac.ResourceKind, actorID int64, note string) (*Profile, error) {
	if err := s.authorize(ctx, admin, rbac.ActionApprove, kind, actorID); err != nil {
		return nil, err
	}
	var profile *Profile
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		p, err := repo.GetProfileForUpdate(ctx, kind, actorID)
		if err != nil {
			return err
		}
		if err := transition(p, StatusUpdateNeeded); err != nil {
			return err
		}
		p.ReviewNote = optionalString(note)
		s.stampReview(p, admin)
		if err := repo.SaveProfile(ctx, p); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
		profile = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, shared.ApprovalLog{Module: moduleFor(kind), RefID: actorID, ActorID: admin.ID, Action: shared.ApprovalRequestUpdate, Note: note})
	s.notify(ctx, DecisionEvent{Kind: kind, ActorID: actorID, Status: StatusUpdateNeeded, Reason: note, DecidedBy: admin.ID})
	return profile, nil
}

// List returns profiles within the actor's visibility scope.
func (s *Service) List(ctx context.Context, actor rbac.Actor, req ListProfilesRequest) ([]Profile, int, error) {
	pred, err := visibility.Resolve(ctx, s.auth, actor, req.Kind)
	if err != nil {
		return nil, 0, err
	}
	req.ListParams = req.ListParams.Normalize()
	return visibility.List(ctx, pred, func(ctx context.Context, pred visibility.Predicate) ([]Profile, int, error) {
		return s.repo.ListProfiles(ctx, req, pred)
	})
}

// Participation returns the marketplace level granted to an actor. Actors
// without a profile do not participate.
func (s *Service) Participation(ctx context.Context, kind rbac.ResourceKind, actorID int64) (Level, error) {
	p, err := s.repo.GetProfile(ctx, kind, actorID)
	if errors.Is(err, shared.ErrNotFound) {
		return LevelNone, nil
	}
	if err != nil {
		return LevelNone, err
	}
	return LevelFor(p.Status), nil
}

func (s *Service) decide(ctx context.Context, admin rbac.Actor, kind rbac.ResourceKind, actorID int64, to Status, mutate func(*Profile), active bool) (*Profile, error) {
	var profile *Profile
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		p, err := repo.GetProfileForUpdate(ctx, kind, actorID)
		if err != nil {
			return err
		}
		if err := transition(p, to); err != nil {
			return err
		}
		mutate(p)
		s.stampReview(p, admin)
		if err := repo.SaveProfile(ctx, p); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
		if err := repo.SetActorActive(ctx, actorID, active); err != nil {
			return fmt.Errorf("set actor active: %w", err)
		}
		profile = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Service) authorize(ctx context.Context, actor rbac.Actor, action rbac.Action, kind rbac.ResourceKind, actorID int64) error {
	resource, err := s.classifier.Profile(ctx, kind, actorID)
	if err != nil {
		return err
	}
	decision, err := s.auth.CanPerform(ctx, actor, action, resource)
	if err != nil {
		return err
	}
	return decision.Err()
}

func (s *Service) stampReview(p *Profile, admin rbac.Actor) {
	now := s.now()
	p.ReviewedAt = &now
	p.ReviewedBy = &admin.ID
}

func (s *Service) record(ctx context.Context, log shared.ApprovalLog) {
	if s.recorder == nil {
		return
	}
	log.At = s.now()
	if err := s.recorder.Record(ctx, log); err != nil {
		s.logger.Warn("onboarding record approval", slog.String("module", log.Module), slog.Int64("ref_id", log.RefID), slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, ev DecisionEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.OnboardingDecided(ctx, ev); err != nil {
		s.logger.Warn("onboarding notify", slog.Int64("actor_id", ev.ActorID), slog.String("status", string(ev.Status)), slog.Any("error", err))
	}
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
