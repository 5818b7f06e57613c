package onboarding

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/odyssey-erp/souq/internal/rbac"
	"github.com/odyssey-erp/souq/internal/shared"
)

// Status is the onboarding state of a vendor or customer profile.
type Status string

const (
	StatusNotStarted          Status = "not_started"
	StatusInProgress          Status = "in_progress"
	StatusPendingVerification Status = "pending_verification"
	StatusApprovedGeneral     Status = "approved_general"
	StatusApprovedControlled  Status = "approved_controlled"
	StatusRejected            Status = "rejected"
	StatusUpdateNeeded        Status = "update_needed"
)

// IsApproved reports whether s is one of the approved terminal states.
func (s Status) IsApproved() bool {
	return s == StatusApprovedGeneral || s == StatusApprovedControlled
}

// IsTerminal reports whether s ends the onboarding flow.
func (s Status) IsTerminal() bool {
	return s.IsApproved() || s == StatusRejected
}

// Level is the marketplace participation an onboarding outcome grants.
type Level int

const (
	LevelNone Level = iota
	LevelGeneral
	LevelControlled
)

// LevelFor maps a status onto the participation level it grants.
func LevelFor(s Status) Level {
	switch s {
	case StatusApprovedControlled:
		return LevelControlled
	case StatusApprovedGeneral:
		return LevelGeneral
	default:
		return LevelNone
	}
}

// Profile is a vendor or customer onboarding profile.
// CurrentStep is non-nil iff Status is in_progress.
type Profile struct {
	ID              int64                   `json:"id"`
	Kind            rbac.ResourceKind       `json:"kind"`
	ActorID         int64                   `json:"actor_id"`
	Status          Status                  `json:"status"`
	CurrentStep     *int                    `json:"current_step"`
	ControlledItems bool                    `json:"controlled_items"`
	Country         string                  `json:"country"`
	RejectionReason *string                 `json:"rejection_reason,omitempty"`
	ReviewNote      *string                 `json:"review_note,omitempty"`
	ReviewedBy      *int64                  `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time              `json:"reviewed_at,omitempty"`
	SubmittedAt     *time.Time              `json:"submitted_at,omitempty"`
	Steps           map[int]json.RawMessage `json:"steps,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

func newProfile(kind rbac.ResourceKind, actorID int64) *Profile {
	return &Profile{
		Kind:    kind,
		ActorID: actorID,
		Status:  StatusNotStarted,
		Steps:   make(map[int]json.RawMessage),
	}
}

func (p *Profile) checkInvariant() error {
	if (p.CurrentStep != nil) != (p.Status == StatusInProgress) {
		return fmt.Errorf("onboarding: profile %d: current step inconsistent with status %s", p.ID, p.Status)
	}
	return nil
}

// DecisionEvent describes an admin decision on a profile.
type DecisionEvent struct {
	Kind      rbac.ResourceKind `json:"kind"`
	ActorID   int64             `json:"actor_id"`
	Status    Status            `json:"status"`
	Reason    string            `json:"reason,omitempty"`
	DecidedBy int64             `json:"decided_by"`
}

// ListProfilesRequest filters profile listings.
type ListProfilesRequest struct {
	Kind   rbac.ResourceKind
	Status *Status
	shared.ListParams
}

func moduleFor(kind rbac.ResourceKind) string {
	if kind == rbac.KindCustomer {
		return shared.ModuleCustomerProfile
	}
	return shared.ModuleVendorProfile
}

func controlledApprovePermission(kind rbac.ResourceKind) string {
	if kind == rbac.KindCustomer {
		return shared.PermCustomerControlledApprove
	}
	return shared.PermVendorControlledApprove
}

// KindForRole returns the profile kind an actor onboards as.
func KindForRole(role rbac.Role) (rbac.ResourceKind, bool) {
	switch role {
	case rbac.RoleVendor:
		return rbac.KindVendor, true
	case rbac.RoleCustomer:
		return rbac.KindCustomer, true
	}
	return "", false
}
