package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/souq/internal/platform/httpx"
	"github.com/odyssey-erp/souq/internal/shared"
)

// Auditor records permission administration events.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// PermissionsHandler manages permission listing and assignment sync.
type PermissionsHandler struct {
	logger    *slog.Logger
	evaluator *Evaluator
	actors    Directory
	auditor   Auditor
	validator *validator.Validate
	rbac      Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, evaluator *Evaluator, actors Directory, auditor Auditor, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, evaluator: evaluator, actors: actors, auditor: auditor, validator: validator.New(), rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireActor)
	r.Get("/actors/{actorID}", h.actorPermissions)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermPermissionsView, shared.PermPermissionsManage))
		r.Get("/", h.listPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermPermissionsManage))
		r.Put("/actors/{actorID}", h.syncPermissions)
	})
}

type syncRequest struct {
	Permissions []string `json:"permissions" validate:"dive,required"`
}

type actorPermissionsResponse struct {
	ActorID     int64    `json:"actor_id"`
	Permissions []string `json:"permissions"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": h.evaluator.Catalog().Permissions()})
}

func (h *PermissionsHandler) actorPermissions(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	targetID, err := httpx.IDParam(r, "actorID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	target := actor
	if targetID != actor.ID {
		decision, err := h.evaluator.Authorize(r.Context(), actor, shared.PermPermissionsView)
		if err == nil {
			err = decision.Err()
		}
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		role, err := h.actors.ActorRole(r.Context(), targetID)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		target = Actor{ID: targetID, Role: role}
	}
	names, err := h.evaluator.PermissionNames(r.Context(), target)
	if err != nil {
		h.logger.Error("list actor permissions", slog.Int64("actor_id", targetID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, actorPermissionsResponse{ActorID: targetID, Permissions: names})
}

func (h *PermissionsHandler) syncPermissions(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	targetID, err := httpx.IDParam(r, "actorID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req syncRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	if err := canSync(actor, targetID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.actors.ActorRole(r.Context(), targetID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := CheckSyncTarget(targetID, role); err != nil {
		httpx.RespondError(w, err)
		return
	}
	granted, err := h.evaluator.SyncPermissions(r.Context(), targetID, req.Permissions)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if h.auditor != nil {
		if err := h.auditor.Record(r.Context(), shared.PermissionSyncAudit(actor.ID, targetID, granted)); err != nil {
			h.logger.Warn("audit permission sync", slog.Int64("actor_id", targetID), slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, actorPermissionsResponse{ActorID: targetID, Permissions: granted})
}

// canSync keeps admins from widening their own permission set.
func canSync(actor Actor, targetID int64) error {
	if targetID == actor.ID && !actor.IsSuperAdmin() {
		return shared.Forbidden(shared.PermPermissionsManage)
	}
	return nil
}
