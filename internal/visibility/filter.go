// Package visibility turns a visibility scope into a SQL predicate for list
// queries. Single resource reads go through rbac.Evaluator.CanPerform instead.
package visibility

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/souq/internal/rbac"
)

// Table aliases the predicates are written against.
const (
	ProductAlias = "p"
	OrderAlias   = "o"
	ProfileAlias = "op"
)

var controlledClauses = map[rbac.ResourceKind]string{
	rbac.KindProduct: `EXISTS (SELECT 1 FROM categories vc
WHERE vc.id IN (p.main_category_id, p.primary_category_id, p.sub_category_id) AND vc.is_controlled)`,
	rbac.KindOrder: `EXISTS (SELECT 1 FROM order_items voi
JOIN products vp ON vp.id = voi.product_id
JOIN categories vc ON vc.id IN (vp.main_category_id, vp.primary_category_id, vp.sub_category_id)
WHERE voi.order_id = o.id AND vc.is_controlled)`,
	rbac.KindVendor:   `op.controlled_items`,
	rbac.KindCustomer: `op.controlled_items`,
}

// owner clauses take the owner argument position as their only operand.
var ownerClauses = map[rbac.ResourceKind]string{
	rbac.KindProduct:  `p.vendor_id = $%[1]d`,
	rbac.KindOrder:    `(o.customer_id = $%[1]d OR o.vendor_id = $%[1]d)`,
	rbac.KindVendor:   `op.actor_id = $%[1]d`,
	rbac.KindCustomer: `op.actor_id = $%[1]d`,
}

// Predicate restricts a list query. An Empty predicate means the query must
// not run at all.
type Predicate struct {
	Empty    bool
	clause   string
	ownerID  int64
	hasOwner bool
}

// None is the predicate for ScopeNone.
func None() Predicate {
	return Predicate{Empty: true}
}

// For translates scope into the predicate for kind. Unknown kinds and scopes
// yield an empty predicate.
func For(kind rbac.ResourceKind, scope rbac.Scope, actor rbac.Actor) Predicate {
	switch scope {
	case rbac.ScopeAll:
		return Predicate{}
	case rbac.ScopeControlledOnly:
		clause, ok := controlledClauses[kind]
		if !ok {
			return None()
		}
		return Predicate{clause: clause}
	case rbac.ScopeOwn:
		clause, ok := ownerClauses[kind]
		if !ok || actor.ID <= 0 {
			return None()
		}
		return Predicate{clause: clause, ownerID: actor.ID, hasOwner: true}
	default:
		return None()
	}
}

// Render returns the SQL condition (empty when unrestricted), its arguments
// and the next free placeholder position.
func (p Predicate) Render(argPos int) (string, []any, int) {
	if p.Empty {
		return "FALSE", nil, argPos
	}
	if p.clause == "" {
		return "", nil, argPos
	}
	if !p.hasOwner {
		return p.clause, nil, argPos
	}
	return fmt.Sprintf(p.clause, argPos), []any{p.ownerID}, argPos + 1
}

// ScopeResolver resolves an actor's visibility scope.
type ScopeResolver interface {
	ResolveVisibilityScope(ctx context.Context, actor rbac.Actor, kind rbac.ResourceKind) (rbac.Scope, error)
}

// Resolve resolves the actor's scope and returns the matching predicate.
// Lookup errors produce an empty predicate alongside the error.
func Resolve(ctx context.Context, resolver ScopeResolver, actor rbac.Actor, kind rbac.ResourceKind) (Predicate, error) {
	scope, err := resolver.ResolveVisibilityScope(ctx, actor, kind)
	if err != nil {
		return None(), err
	}
	return For(kind, scope, actor), nil
}

// QueryFunc runs a list query restricted by pred and returns rows plus total.
type QueryFunc[T any] func(ctx context.Context, pred Predicate) ([]T, int, error)

// List short-circuits empty predicates without calling query.
func List[T any](ctx context.Context, pred Predicate, query QueryFunc[T]) ([]T, int, error) {
	if pred.Empty {
		return []T{}, 0, nil
	}
	return query(ctx, pred)
}
