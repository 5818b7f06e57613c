package rbac

import (
	"strings"

	"github.com/odyssey-erp/souq/internal/shared"
)

// Role is immutable once assigned to an actor.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleVendor     Role = "vendor"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole maps a raw role string onto a known Role.
func ParseRole(raw string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleCustomer, RoleVendor, RoleAdmin, RoleSuperAdmin:
		return r, true
	}
	return "", false
}

// Actor describes the authenticated caller. It is always passed explicitly.
type Actor struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}

// IsSuperAdmin reports whether the actor bypasses permission checks.
func (a Actor) IsSuperAdmin() bool {
	return a.Role == RoleSuperAdmin
}

// IsAdmin reports whether the actor is an admin or super admin.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleSuperAdmin
}

// Valid reports whether the actor carries an id and a known role.
func (a Actor) Valid() bool {
	_, ok := ParseRole(string(a.Role))
	return a.ID > 0 && ok
}

// ResourceKind enumerates the resource families governed by the engine.
type ResourceKind string

const (
	KindProduct  ResourceKind = "product"
	KindOrder    ResourceKind = "order"
	KindVendor   ResourceKind = "vendor"
	KindCustomer ResourceKind = "customer"
)

// ParseKind maps a raw kind string onto a known ResourceKind.
func ParseKind(raw string) (ResourceKind, bool) {
	switch k := ResourceKind(strings.ToLower(strings.TrimSpace(raw))); k {
	case KindProduct, KindOrder, KindVendor, KindCustomer:
		return k, true
	}
	return "", false
}

// Action is the verb an actor wants to perform on a resource.
type Action string

const (
	ActionView    Action = "view"
	ActionApprove Action = "approve"
	ActionManage  Action = "manage"
)

// Mutates reports whether the action writes to the resource.
func (a Action) Mutates() bool {
	return a != ActionView
}

// Sensitivity is derived per request from the resource's associations.
type Sensitivity struct {
	IsControlled bool   `json:"is_controlled"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
}

// Resource references a concrete resource together with its live classification.
type Resource struct {
	Kind        ResourceKind
	ID          int64
	OwnerID     int64
	Sensitivity Sensitivity
}

// Scope is the set of resources list queries may return.
type Scope string

const (
	ScopeAll            Scope = "ALL"
	ScopeControlledOnly Scope = "CONTROLLED_ONLY"
	ScopeNone           Scope = "NONE"
	// ScopeOwn applies to vendors and customers; it is resolved by identity.
	ScopeOwn Scope = "OWN_ONLY"
)

// Decision is the verdict of a policy check. RequiredPermission is always set
// when it could be computed so callers can report what is missing.
type Decision struct {
	Allowed            bool   `json:"allowed"`
	RequiredPermission string `json:"required_permission,omitempty"`
}

// Err converts a denial into a ForbiddenError.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return shared.Forbidden(d.RequiredPermission)
}

// Permission is an atomic named capability from the catalog.
type Permission struct {
	Name                string       `json:"name"`
	Description         string       `json:"description"`
	Kind                ResourceKind `json:"kind,omitempty"`
	IsControlledVariant bool         `json:"is_controlled_variant"`
}

// Pair binds the general and controlled permission for one kind/action.
type Pair struct {
	Kind       ResourceKind
	Action     Action
	General    string
	Controlled string
}
