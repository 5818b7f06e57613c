package rbac

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/souq/internal/platform/httpx"
	"github.com/odyssey-erp/souq/internal/shared"
)

type recordingAuditor struct {
	logs []shared.AuditLog
}

func (a *recordingAuditor) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type roleDirectory map[int64]Role

func (d roleDirectory) ActorRole(_ context.Context, actorID int64) (Role, error) {
	role, ok := d[actorID]
	if !ok {
		return "", shared.ErrNotFound
	}
	return role, nil
}

type handlerFixture struct {
	store   *MemoryStore
	auditor *recordingAuditor
	router  http.Handler
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewMemoryStore()
	evaluator := NewEvaluator(store, nil, logger, nil)
	auditor := &recordingAuditor{}
	mw := Middleware{Evaluator: evaluator, Logger: logger}
	r := chi.NewRouter()
	r.Use(mw.Actor)
	actors := roleDirectory{
		testAdmin.ID: RoleAdmin,
		testSuper.ID: RoleSuperAdmin,
		42:           RoleVendor,
		99:           RoleAdmin,
	}
	r.Route("/permissions", NewPermissionsHandler(logger, evaluator, actors, auditor, mw).MountRoutes)
	return &handlerFixture{store: store, auditor: auditor, router: r}
}

func (f *handlerFixture) do(method, path string, actor Actor, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if actor.ID > 0 {
		req.Header.Set(DefaultActorIDHeader, strconv.FormatInt(actor.ID, 10))
		req.Header.Set(DefaultActorRoleHeader, string(actor.Role))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestActorMiddleware(t *testing.T) {
	var seen Actor
	var ok bool
	h := Middleware{}.Actor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, ok = ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DefaultActorIDHeader, "15")
	req.Header.Set(DefaultActorRoleHeader, "Super_Admin")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, ok)
	assert.Equal(t, Actor{ID: 15, Role: RoleSuperAdmin}, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DefaultActorIDHeader, "15")
	req.Header.Set(DefaultActorRoleHeader, "root")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, ok)
}

func TestListCatalogRequiresPermission(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(http.MethodGet, "/permissions/", Actor{}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/permissions/", testAdmin, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, shared.PermPermissionsView, problem.RequiredPermission)

	grant(t, f.store, testAdmin.ID, shared.PermPermissionsManage)
	rec = f.do(http.MethodGet, "/permissions/", testAdmin, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestActorPermissionsSelfAndOthers(t *testing.T) {
	f := newHandlerFixture(t)
	grant(t, f.store, testAdmin.ID, shared.PermOrderView)
	grant(t, f.store, 99, shared.PermVendorView)

	rec := f.do(http.MethodGet, "/permissions/actors/7", testAdmin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body actorPermissionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{shared.PermOrderView}, body.Permissions)

	rec = f.do(http.MethodGet, "/permissions/actors/99", testAdmin, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodGet, "/permissions/actors/99", testSuper, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{shared.PermVendorView}, body.Permissions)
}

func TestSyncPermissionsEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	grant(t, f.store, testAdmin.ID, shared.PermPermissionsManage)

	rec := f.do(http.MethodPut, "/permissions/actors/99", testAdmin, `{"permissions":["vendor.view","order.view"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var body actorPermissionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{shared.PermOrderView, shared.PermVendorView}, body.Permissions)
	require.Len(t, f.auditor.logs, 1)
	assert.Equal(t, "99", f.auditor.logs[0].EntityID)

	rec = f.do(http.MethodPut, "/permissions/actors/99", testAdmin, `{"permissions":["vendor.view","vendor.destroy"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	names, err := f.store.PermissionNames(context.Background(), 99)
	require.NoError(t, err)
	assert.Equal(t, []string{shared.PermOrderView, shared.PermVendorView}, names)

	rec = f.do(http.MethodPut, "/permissions/actors/7", testAdmin, `{"permissions":["vendor.view"]}`)
	assert.Equal(t, http.StatusForbidden, rec.Code, "admins cannot rewrite their own grants")

	rec = f.do(http.MethodPut, "/permissions/actors/99", Actor{ID: 5, Role: RoleAdmin}, `{"permissions":[]}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestActorPermissionsUseStoredRole(t *testing.T) {
	f := newHandlerFixture(t)
	grant(t, f.store, 99, shared.PermVendorView)

	rec := f.do(http.MethodGet, "/permissions/actors/99?role=super_admin", testSuper, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body actorPermissionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{shared.PermVendorView}, body.Permissions)

	rec = f.do(http.MethodGet, "/permissions/actors/8", testAdmin, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	grant(t, f.store, testAdmin.ID, shared.PermPermissionsView)
	rec = f.do(http.MethodGet, "/permissions/actors/8", testAdmin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Permissions, len(DefaultCatalog().Names()))

	rec = f.do(http.MethodGet, "/permissions/actors/404", testSuper, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSyncPermissionsOnlyForAdmins(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(http.MethodPut, "/permissions/actors/42", testSuper, `{"permissions":["order.manage"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	names, err := f.store.PermissionNames(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Empty(t, f.auditor.logs)

	rec = f.do(http.MethodPut, "/permissions/actors/8", testSuper, `{"permissions":["order.manage"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPut, "/permissions/actors/404", testSuper, `{"permissions":["order.manage"]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
