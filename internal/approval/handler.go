package approval

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/souq/internal/platform/httpx"
	"github.com/odyssey-erp/souq/internal/rbac"
	"github.com/odyssey-erp/souq/internal/shared"
)

// Handler exposes the product and order workflow endpoints.
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

// MountProductRoutes registers routes under /products.
func (h *Handler) MountProductRoutes(r chi.Router) {
	r.Use(h.rbac.RequireActor)
	r.Get("/", h.listProducts)
	r.Get("/{id}", h.getProduct)
	r.Get("/{id}/history", h.productHistory)
	r.Post("/{id}/submit", h.submitProduct)
	r.Post("/{id}/approval", h.setProductApproval)
	r.Post("/{id}/publish", h.publishProduct)
	r.Post("/{id}/unpublish", h.unpublishProduct)
}

// MountOrderRoutes registers routes under /orders.
func (h *Handler) MountOrderRoutes(r chi.Router) {
	r.Use(h.rbac.RequireActor)
	r.Get("/", h.listOrders)
	r.Get("/{id}", h.getOrder)
	r.Patch("/{id}", h.updateOrder)
}

type approvalRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Reason   string `json:"reason" validate:"required_if=Decision rejected,max=1000"`
}

type productListResponse struct {
	Products   []Product         `json:"products"`
	Pagination shared.Pagination `json:"pagination"`
}

type orderListResponse struct {
	Orders     []Order           `json:"orders"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	req := ListProductsRequest{ListParams: httpx.ListParams(r)}
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		status := ProductStatus(raw)
		if !status.Valid() {
			httpx.RespondError(w, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, raw))
			return
		}
		req.Status = &status
	}
	if raw := q.Get("approval_status"); raw != "" {
		review := ApprovalStatus(raw)
		req.ApprovalStatus = &review
	}
	if raw := q.Get("vendor_id"); raw != "" {
		vendorID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid vendor_id", shared.ErrValidation))
			return
		}
		req.VendorID = &vendorID
	}
	products, total, err := h.service.ListProducts(r.Context(), actor, req)
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, productListResponse{Products: products, Pagination: shared.NewPagination(req.ListParams, total)})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	h.productAction(w, r, h.service.GetProduct)
}

func (h *Handler) productHistory(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	logs, err := h.service.ProductHistory(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": logs})
}

func (h *Handler) submitProduct(w http.ResponseWriter, r *http.Request) {
	h.productAction(w, r, h.service.SubmitForReview)
}

func (h *Handler) publishProduct(w http.ResponseWriter, r *http.Request) {
	h.productAction(w, r, h.service.Publish)
}

func (h *Handler) unpublishProduct(w http.ResponseWriter, r *http.Request) {
	h.productAction(w, r, h.service.Unpublish)
}

func (h *Handler) productAction(w http.ResponseWriter, r *http.Request, run func(context.Context, rbac.Actor, int64) (*Product, error)) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := run(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) setProductApproval(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req approvalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	product, err := h.service.SetProductApproval(r.Context(), actor, id, ApprovalStatus(req.Decision), req.Reason)
	if err != nil {
		h.logger.Warn("product approval", slog.Int64("product_id", id), slog.Int64("admin_id", actor.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	req := ListOrdersRequest{ListParams: httpx.ListParams(r)}
	q := r.URL.Query()
	if raw := q.Get("order_status"); raw != "" {
		v := OrderStatus(raw)
		req.OrderStatus = &v
	}
	if raw := q.Get("payment_status"); raw != "" {
		v := PaymentStatus(raw)
		req.PaymentStatus = &v
	}
	if raw := q.Get("shipment_status"); raw != "" {
		v := ShipmentStatus(raw)
		req.ShipmentStatus = &v
	}
	orders, total, err := h.service.ListOrders(r.Context(), actor, req)
	if err != nil {
		h.logger.Error("list orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, orderListResponse{Orders: orders, Pagination: shared.NewPagination(req.ListParams, total)})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.GetOrder(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req OrderUpdate
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.UpdateOrder(r.Context(), actor, id, req)
	if err != nil {
		h.logger.Warn("order update", slog.Int64("order_id", id), slog.Int64("admin_id", actor.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}
