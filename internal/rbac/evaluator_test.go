package rbac

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/souq/internal/shared"
)

type failingStore struct {
	MemoryStore
	err error
}

func (s *failingStore) HasPermission(context.Context, int64, string) (bool, error) {
	return false, s.err
}

type countingObserver struct {
	allowed, denied map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{allowed: map[string]int{}, denied: map[string]int{}}
}

func (o *countingObserver) ObserveDecision(permission string, allowed bool) {
	if allowed {
		o.allowed[permission]++
		return
	}
	o.denied[permission]++
}

func newTestEvaluator(t *testing.T, store Store) *Evaluator {
	t.Helper()
	return NewEvaluator(store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func grant(t *testing.T, store Store, actorID int64, names ...string) {
	t.Helper()
	require.NoError(t, store.SyncPermissions(context.Background(), actorID, names))
}

var (
	testAdmin = Actor{ID: 7, Role: RoleAdmin}
	testSuper = Actor{ID: 8, Role: RoleSuperAdmin}
)

func vendorProfile(controlled bool, country string) Resource {
	return Resource{
		Kind:        KindVendor,
		ID:          42,
		OwnerID:     42,
		Sensitivity: Sensitivity{IsControlled: controlled, Jurisdiction: country},
	}
}

func TestSuperAdminAlwaysAllowed(t *testing.T) {
	e := newTestEvaluator(t, &failingStore{err: errors.New("store down")})
	ctx := context.Background()

	resources := []Resource{
		vendorProfile(true, "UAE"),
		vendorProfile(false, ""),
		{Kind: KindOrder, ID: 1, Sensitivity: Sensitivity{IsControlled: true}},
		{Kind: KindProduct, ID: 2, Sensitivity: Sensitivity{IsControlled: true, Jurisdiction: "Germany"}},
	}
	for _, action := range []Action{ActionView, ActionApprove, ActionManage} {
		for _, res := range resources {
			d, err := e.CanPerform(ctx, testSuper, action, res)
			require.NoError(t, err)
			assert.True(t, d.Allowed, "%s %s", action, res.Kind)
		}
	}

	ok, err := e.HasPermission(ctx, testSuper, "not.in.catalog")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestControlledOnlyAdminExample(t *testing.T) {
	store := NewMemoryStore()
	e := newTestEvaluator(t, store)
	grant(t, store, testAdmin.ID, shared.PermVendorControlledApprove)
	ctx := context.Background()

	d, err := e.CanPerform(ctx, testAdmin, ActionApprove, vendorProfile(true, "UAE"))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, shared.PermVendorControlledApprove, d.RequiredPermission)

	d, err = e.CanPerform(ctx, testAdmin, ActionApprove, vendorProfile(true, "Germany"))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, shared.PermVendorApprove, d.RequiredPermission)

	perm, ok := shared.RequiredPermission(d.Err())
	require.True(t, ok)
	assert.Equal(t, shared.PermVendorApprove, perm)
}

func TestControlledOnlyAdminDeniedOnPlainResource(t *testing.T) {
	store := NewMemoryStore()
	e := newTestEvaluator(t, store)
	grant(t, store, testAdmin.ID, shared.PermVendorControlledView)
	ctx := context.Background()

	scope, err := e.ResolveVisibilityScope(ctx, testAdmin, KindVendor)
	require.NoError(t, err)
	assert.Equal(t, ScopeControlledOnly, scope)

	for _, country := range []string{"UAE", "Germany", ""} {
		d, err := e.CanPerform(ctx, testAdmin, ActionView, vendorProfile(false, country))
		require.NoError(t, err)
		assert.False(t, d.Allowed, "country %q", country)
		assert.Equal(t, shared.PermVendorView, d.RequiredPermission)
	}
}

func TestResolveVisibilityScope(t *testing.T) {
	store := NewMemoryStore()
	e := newTestEvaluator(t, store)
	ctx := context.Background()

	scope, err := e.ResolveVisibilityScope(ctx, testAdmin, KindProduct)
	require.NoError(t, err)
	assert.Equal(t, ScopeNone, scope)

	grant(t, store, testAdmin.ID, shared.PermProductView, shared.PermProductControlledView)
	scope, err = e.ResolveVisibilityScope(ctx, testAdmin, KindProduct)
	require.NoError(t, err)
	assert.Equal(t, ScopeAll, scope)

	grant(t, store, testAdmin.ID, shared.PermProductView)
	scope, err = e.ResolveVisibilityScope(ctx, testAdmin, KindProduct)
	require.NoError(t, err)
	assert.Equal(t, ScopeAll, scope)

	scope, err = e.ResolveVisibilityScope(ctx, testSuper, KindOrder)
	require.NoError(t, err)
	assert.Equal(t, ScopeAll, scope)

	scope, err = e.ResolveVisibilityScope(ctx, Actor{ID: 9, Role: RoleVendor}, KindOrder)
	require.NoError(t, err)
	assert.Equal(t, ScopeOwn, scope)
}

func TestResolveVisibilityScopeLookupErrorIsNone(t *testing.T) {
	e := newTestEvaluator(t, &failingStore{err: errors.New("timeout")})
	scope, err := e.ResolveVisibilityScope(context.Background(), testAdmin, KindOrder)
	require.Error(t, err)
	assert.Equal(t, ScopeNone, scope)
}

func TestRequiredPermissionFor(t *testing.T) {
	e := newTestEvaluator(t, NewMemoryStore())
	tests := []struct {
		name   string
		kind   ResourceKind
		action Action
		sens   Sensitivity
		want   string
	}{
		{"plain uae", KindProduct, ActionApprove, Sensitivity{Jurisdiction: "UAE"}, shared.PermProductApprove},
		{"controlled uae", KindProduct, ActionApprove, Sensitivity{IsControlled: true, Jurisdiction: "UAE"}, shared.PermProductControlledApprove},
		{"controlled uae alias", KindProduct, ActionView, Sensitivity{IsControlled: true, Jurisdiction: "United Arab Emirates"}, shared.PermProductControlledView},
		{"controlled dotted alias", KindVendor, ActionApprove, Sensitivity{IsControlled: true, Jurisdiction: " u.a.e. "}, shared.PermVendorControlledApprove},
		{"controlled arabic alias", KindCustomer, ActionApprove, Sensitivity{IsControlled: true, Jurisdiction: "الإمارات"}, shared.PermCustomerControlledApprove},
		{"controlled germany", KindProduct, ActionApprove, Sensitivity{IsControlled: true, Jurisdiction: "Germany"}, shared.PermProductApprove},
		{"controlled unknown view", KindOrder, ActionView, Sensitivity{IsControlled: true}, shared.PermOrderView},
		{"controlled unknown manage", KindOrder, ActionManage, Sensitivity{IsControlled: true}, shared.PermOrderControlledApprove},
		{"controlled blank approve", KindVendor, ActionApprove, Sensitivity{IsControlled: true, Jurisdiction: "  "}, shared.PermVendorControlledApprove},
		{"plain unknown manage", KindOrder, ActionManage, Sensitivity{}, shared.PermOrderManage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.RequiredPermissionFor(tt.kind, tt.action, tt.sens)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := e.RequiredPermissionFor(KindOrder, ActionApprove, Sensitivity{})
	assert.ErrorIs(t, err, shared.ErrUnknownPermission)
}

func TestRequiredPermissionFollowsLiveJurisdiction(t *testing.T) {
	e := newTestEvaluator(t, NewMemoryStore())
	res := vendorProfile(true, "UAE")
	got, err := e.RequiredPermissionFor(res.Kind, ActionApprove, res.Sensitivity)
	require.NoError(t, err)
	assert.Equal(t, shared.PermVendorControlledApprove, got)

	res.Sensitivity.Jurisdiction = "France"
	got, err = e.RequiredPermissionFor(res.Kind, ActionApprove, res.Sensitivity)
	require.NoError(t, err)
	assert.Equal(t, shared.PermVendorApprove, got)
}

func TestHasPermissionUnknownNameDenies(t *testing.T) {
	store := NewMemoryStore()
	grant(t, store, testAdmin.ID, "legacy.permission")
	e := newTestEvaluator(t, store)

	ok, err := e.HasPermission(context.Background(), testAdmin, "legacy.permission")
	require.NoError(t, err)
	assert.False(t, ok)

	names, err := e.PermissionNames(context.Background(), testAdmin)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestHasPermissionStoreErrorDenies(t *testing.T) {
	e := newTestEvaluator(t, &failingStore{err: errors.New("connection refused")})
	d, err := e.CanPerform(context.Background(), testAdmin, ActionView, vendorProfile(false, "UAE"))
	require.Error(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, shared.PermVendorView, d.RequiredPermission)
}

func TestSyncPermissionsReplacesSet(t *testing.T) {
	store := NewMemoryStore()
	e := newTestEvaluator(t, store)
	ctx := context.Background()

	granted, err := e.SyncPermissions(ctx, testAdmin.ID, []string{shared.PermOrderView, " PRODUCT.VIEW ", shared.PermOrderView})
	require.NoError(t, err)
	assert.Equal(t, []string{shared.PermOrderView, shared.PermProductView}, granted)

	_, err = e.SyncPermissions(ctx, testAdmin.ID, []string{shared.PermVendorApprove})
	require.NoError(t, err)

	names, err := e.PermissionNames(ctx, testAdmin)
	require.NoError(t, err)
	assert.Equal(t, []string{shared.PermVendorApprove}, names)
}

func TestSyncPermissionsRejectsUnknownNames(t *testing.T) {
	store := NewMemoryStore()
	e := newTestEvaluator(t, store)
	ctx := context.Background()
	grant(t, store, testAdmin.ID, shared.PermOrderView)

	_, err := e.SyncPermissions(ctx, testAdmin.ID, []string{shared.PermVendorApprove, "vendor.delete"})
	assert.ErrorIs(t, err, shared.ErrUnknownPermission)

	names, err := e.PermissionNames(ctx, testAdmin)
	require.NoError(t, err)
	assert.Equal(t, []string{shared.PermOrderView}, names)

	_, err = e.SyncPermissions(ctx, 0, nil)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestPermissionNamesSuperAdminGetsCatalog(t *testing.T) {
	e := newTestEvaluator(t, NewMemoryStore())
	names, err := e.PermissionNames(context.Background(), testSuper)
	require.NoError(t, err)
	assert.Equal(t, e.Catalog().Names(), names)
}

func TestDecisionObserver(t *testing.T) {
	store := NewMemoryStore()
	obs := newCountingObserver()
	e := NewEvaluator(store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), obs)
	grant(t, store, testAdmin.ID, shared.PermVendorView)
	ctx := context.Background()

	_, err := e.Authorize(ctx, testAdmin, shared.PermVendorView)
	require.NoError(t, err)
	_, err = e.Authorize(ctx, testAdmin, shared.PermVendorApprove)
	require.NoError(t, err)

	assert.Equal(t, 1, obs.allowed[shared.PermVendorView])
	assert.Equal(t, 1, obs.denied[shared.PermVendorApprove])
}
