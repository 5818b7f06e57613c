package onboarding

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/souq/internal/platform/httpx"
	"github.com/odyssey-erp/souq/internal/rbac"
	"github.com/odyssey-erp/souq/internal/shared"
)

// Handler exposes onboarding endpoints under /onboarding/{kind}.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), rbac: rbac}
}

// MountRoutes registers onboarding routes. The router must carry a {kind}
// URL parameter.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireActor)
	r.Get("/", h.list)
	r.Get("/me", h.getOwn)
	r.Put("/me/steps/{step}", h.submitStep)
	r.Post("/me/submit", h.submit)
	r.Get("/{actorID}", h.get)
	r.Post("/{actorID}/approve", h.approve)
	r.Post("/{actorID}/reject", h.reject)
	r.Post("/{actorID}/request-update", h.requestUpdate)
}

type approveRequest struct {
	Status string `json:"status" validate:"required,oneof=approved_general approved_controlled"`
	Note   string `json:"note" validate:"max=1000"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type requestUpdateRequest struct {
	Note string `json:"note" validate:"required,max=1000"`
}

type listResponse struct {
	Profiles   []Profile         `json:"profiles"`
	Pagination shared.Pagination `json:"pagination"`
}

func profileKind(r *http.Request) (rbac.ResourceKind, error) {
	kind, ok := rbac.ParseKind(chi.URLParam(r, "kind"))
	if !ok || (kind != rbac.KindVendor && kind != rbac.KindCustomer) {
		return "", fmt.Errorf("%w: unknown profile kind %q", shared.ErrNotFound, chi.URLParam(r, "kind"))
	}
	return kind, nil
}

// ownKind checks that the URL kind is the one the actor onboards as.
func ownKind(r *http.Request, actor rbac.Actor) (rbac.ResourceKind, error) {
	kind, err := profileKind(r)
	if err != nil {
		return "", err
	}
	own, ok := KindForRole(actor.Role)
	if !ok || own != kind {
		return "", fmt.Errorf("%w: %s cannot onboard as %s", shared.ErrForbidden, actor.Role, kind)
	}
	return kind, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	kind, err := profileKind(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req := ListProfilesRequest{Kind: kind, ListParams: httpx.ListParams(r)}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := Status(raw)
		req.Status = &status
	}
	profiles, total, err := h.service.List(r.Context(), actor, req)
	if err != nil {
		h.logger.Error("list onboarding profiles", slog.String("kind", string(kind)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Profiles: profiles, Pagination: shared.NewPagination(req.ListParams, total)})
}

func (h *Handler) getOwn(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	kind, err := ownKind(r, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	profile, err := h.service.Get(r.Context(), actor, kind, actor.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	kind, err := profileKind(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actorID, err := httpx.IDParam(r, "actorID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	profile, err := h.service.Get(r.Context(), actor, kind, actorID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) submitStep(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	if _, err := ownKind(r, actor); err != nil {
		httpx.RespondError(w, err)
		return
	}
	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid step", shared.ErrValidation))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: read body: %v", shared.ErrValidation, err))
		return
	}
	profile, err := h.service.SubmitStep(r.Context(), actor, step, json.RawMessage(body))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	if _, err := ownKind(r, actor); err != nil {
		httpx.RespondError(w, err)
		return
	}
	profile, err := h.service.Submit(r.Context(), actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	h.decision(w, r, &req, func(admin rbac.Actor, kind rbac.ResourceKind, actorID int64) (*Profile, error) {
		return h.service.Approve(r.Context(), admin, kind, actorID, Status(req.Status), req.Note)
	})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	h.decision(w, r, &req, func(admin rbac.Actor, kind rbac.ResourceKind, actorID int64) (*Profile, error) {
		return h.service.Reject(r.Context(), admin, kind, actorID, req.Reason)
	})
}

func (h *Handler) requestUpdate(w http.ResponseWriter, r *http.Request) {
	var req requestUpdateRequest
	h.decision(w, r, &req, func(admin rbac.Actor, kind rbac.ResourceKind, actorID int64) (*Profile, error) {
		return h.service.RequestUpdate(r.Context(), admin, kind, actorID, req.Note)
	})
}

// decision decodes and validates body, then runs an admin decision.
func (h *Handler) decision(w http.ResponseWriter, r *http.Request, body any, run func(rbac.Actor, rbac.ResourceKind, int64) (*Profile, error)) {
	admin, _ := rbac.ActorFromContext(r.Context())
	kind, err := profileKind(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actorID, err := httpx.IDParam(r, "actorID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.DecodeJSON(r, body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(body); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	profile, err := run(admin, kind, actorID)
	if err != nil {
		h.logger.Warn("onboarding decision", slog.Int64("admin_id", admin.ID), slog.Int64("actor_id", actorID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}
