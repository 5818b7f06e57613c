package rbac

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/souq/internal/shared"
)

// DecisionObserver receives every permission verdict, e.g. for metrics.
type DecisionObserver interface {
	ObserveDecision(permission string, allowed bool)
}

// Evaluator is the single entry point for authorization decisions. It keeps no
// mutable state; every call reads the assignment store and the live resource
// classification passed in by the caller.
type Evaluator struct {
	store    Store
	catalog  *Catalog
	logger   *slog.Logger
	observer DecisionObserver
}

// NewEvaluator wires an Evaluator. A nil catalog selects DefaultCatalog.
func NewEvaluator(store Store, catalog *Catalog, logger *slog.Logger, observer DecisionObserver) *Evaluator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{store: store, catalog: catalog, logger: logger, observer: observer}
}

// Catalog exposes the permission catalog backing the evaluator.
func (e *Evaluator) Catalog() *Catalog {
	return e.catalog
}

// HasPermission reports whether actor holds name. Super admins hold every name
// without a store lookup; unknown names are never granted; lookup failures deny.
func (e *Evaluator) HasPermission(ctx context.Context, actor Actor, name string) (bool, error) {
	if actor.IsSuperAdmin() {
		return true, nil
	}
	name = NormalizeName(name)
	if !e.catalog.Known(name) {
		e.logger.Warn("rbac unknown permission", slog.String("permission", name), slog.Int64("actor_id", actor.ID))
		return false, nil
	}
	if actor.ID <= 0 {
		return false, nil
	}
	granted, err := e.store.HasPermission(ctx, actor.ID, name)
	if err != nil {
		e.logger.Error("rbac has permission", slog.Int64("actor_id", actor.ID), slog.String("permission", name), slog.Any("error", err))
		return false, err
	}
	return granted, nil
}

// PermissionNames returns the actor's effective permission names.
func (e *Evaluator) PermissionNames(ctx context.Context, actor Actor) ([]string, error) {
	if actor.IsSuperAdmin() {
		return e.catalog.Names(), nil
	}
	names, err := e.store.PermissionNames(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	effective := make([]string, 0, len(names))
	for _, name := range names {
		if e.catalog.Known(name) {
			effective = append(effective, name)
		}
	}
	return effective, nil
}

// SyncPermissions replaces the complete permission set of actorID. Unknown
// names reject the whole request before the store is touched.
func (e *Evaluator) SyncPermissions(ctx context.Context, actorID int64, names []string) ([]string, error) {
	if actorID <= 0 {
		return nil, fmt.Errorf("%w: actor id required", shared.ErrValidation)
	}
	normalized, err := e.catalog.Validate(names)
	if err != nil {
		return nil, err
	}
	if err := e.store.SyncPermissions(ctx, actorID, normalized); err != nil {
		return nil, err
	}
	e.logger.Info("rbac permissions synced", slog.Int64("actor_id", actorID), slog.Int("count", len(normalized)))
	return normalized, nil
}

// ResolveVisibilityScope decides which resources of kind the actor's list
// queries may return. Admin general and controlled view grants are both
// checked; neither is assumed to exclude the other.
func (e *Evaluator) ResolveVisibilityScope(ctx context.Context, actor Actor, kind ResourceKind) (Scope, error) {
	switch actor.Role {
	case RoleSuperAdmin:
		return ScopeAll, nil
	case RoleVendor, RoleCustomer:
		return ScopeOwn, nil
	case RoleAdmin:
	default:
		return ScopeNone, nil
	}
	pair, ok := e.catalog.Pair(kind, ActionView)
	if !ok {
		return ScopeNone, fmt.Errorf("%w: no view permission for %s", shared.ErrUnknownPermission, kind)
	}
	general, err := e.HasPermission(ctx, actor, pair.General)
	if err != nil {
		return ScopeNone, err
	}
	if general {
		return ScopeAll, nil
	}
	controlled, err := e.HasPermission(ctx, actor, pair.Controlled)
	if err != nil {
		return ScopeNone, err
	}
	if controlled {
		return ScopeControlledOnly, nil
	}
	return ScopeNone, nil
}

// RequiredPermissionFor applies the jurisdiction escalation rule:
//
//   - controlled and UAE: controlled permission
//   - controlled, no declared jurisdiction, mutating action: controlled permission
//   - everything else: general permission
//
// The result depends on live resource data and must not be cached.
func (e *Evaluator) RequiredPermissionFor(kind ResourceKind, action Action, sens Sensitivity) (string, error) {
	pair, ok := e.catalog.Pair(kind, action)
	if !ok {
		return "", fmt.Errorf("%w: %s.%s", shared.ErrUnknownPermission, kind, action)
	}
	if !sens.IsControlled {
		return pair.General, nil
	}
	if IsUAE(sens.Jurisdiction) {
		return pair.Controlled, nil
	}
	if !JurisdictionKnown(sens.Jurisdiction) && action.Mutates() {
		return pair.Controlled, nil
	}
	return pair.General, nil
}

// Authorize checks a single named permission.
func (e *Evaluator) Authorize(ctx context.Context, actor Actor, name string) (Decision, error) {
	decision := Decision{RequiredPermission: NormalizeName(name)}
	allowed, err := e.HasPermission(ctx, actor, name)
	if err != nil {
		e.observe(decision)
		return decision, err
	}
	decision.Allowed = allowed
	e.observe(decision)
	return decision, nil
}

// CanPerform decides whether actor may perform action on resource. The
// required permission is returned alongside the verdict in every case it
// could be computed.
func (e *Evaluator) CanPerform(ctx context.Context, actor Actor, action Action, resource Resource) (Decision, error) {
	required, err := e.RequiredPermissionFor(resource.Kind, action, resource.Sensitivity)
	if actor.IsSuperAdmin() {
		d := Decision{Allowed: true, RequiredPermission: required}
		e.observe(d)
		return d, nil
	}
	if err != nil {
		e.logger.Warn("rbac required permission", slog.String("kind", string(resource.Kind)), slog.String("action", string(action)), slog.Any("error", err))
		return Decision{}, err
	}
	return e.Authorize(ctx, actor, required)
}

func (e *Evaluator) observe(d Decision) {
	if e.observer == nil || d.RequiredPermission == "" {
		return
	}
	e.observer.ObserveDecision(d.RequiredPermission, d.Allowed)
}
