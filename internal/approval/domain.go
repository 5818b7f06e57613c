package approval

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/souq/internal/shared"
)

// ============================================================================
// PRODUCT
// ============================================================================

// ProductStatus is the publish lifecycle of a product.
type ProductStatus string

const (
	ProductStatusDraft         ProductStatus = "draft"
	ProductStatusPendingReview ProductStatus = "pending_review"
	ProductStatusPublished     ProductStatus = "published"
	ProductStatusUnpublished   ProductStatus = "unpublished"
	ProductStatusRejected      ProductStatus = "rejected"
)

// Valid reports whether s is a known product status.
func (s ProductStatus) Valid() bool {
	switch s {
	case ProductStatusDraft, ProductStatusPendingReview, ProductStatusPublished, ProductStatusUnpublished, ProductStatusRejected:
		return true
	}
	return false
}

// ApprovalStatus is the review outcome of a product. It is independent of
// the publish lifecycle.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Product is a vendor listing subject to admin review.
type Product struct {
	ID                int64          `json:"id"`
	VendorID          int64          `json:"vendor_id"`
	Name              string         `json:"name"`
	Status            ProductStatus  `json:"status"`
	ApprovalStatus    ApprovalStatus `json:"approval_status"`
	RejectionReason   *string        `json:"rejection_reason,omitempty"`
	ReviewedBy        *int64         `json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time     `json:"reviewed_at,omitempty"`
	MainCategoryID    *int64         `json:"main_category_id,omitempty"`
	PrimaryCategoryID *int64         `json:"primary_category_id,omitempty"`
	SubCategoryID     *int64         `json:"sub_category_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// canSubmit reports whether the owner may send the product for review.
func (p *Product) canSubmit() bool {
	switch p.Status {
	case ProductStatusDraft, ProductStatusUnpublished, ProductStatusRejected:
		return true
	}
	return false
}

// ListProductsRequest filters product listings.
type ListProductsRequest struct {
	Status         *ProductStatus
	ApprovalStatus *ApprovalStatus
	VendorID       *int64
	shared.ListParams
}

// ============================================================================
// ORDER
// ============================================================================

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusReceived   OrderStatus = "order_received"
	OrderStatusApproved   OrderStatus = "approved"
	OrderStatusRejected   OrderStatus = "rejected"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// ShipmentStatus is the delivery state of an order.
type ShipmentStatus string

const (
	ShipmentPending       ShipmentStatus = "pending"
	ShipmentProcessing    ShipmentStatus = "processing"
	ShipmentVendorShipped ShipmentStatus = "vendor_shipped"
	ShipmentInTransit     ShipmentStatus = "in_transit"
	ShipmentDelivered     ShipmentStatus = "delivered"
	ShipmentReturned      ShipmentStatus = "returned"
)

// Order is a customer purchase fulfilled by a single vendor. Amounts are in
// minor currency units.
type Order struct {
	ID             int64          `json:"id"`
	CustomerID     int64          `json:"customer_id"`
	VendorID       int64          `json:"vendor_id"`
	OrderStatus    OrderStatus    `json:"order_status"`
	PaymentStatus  PaymentStatus  `json:"payment_status"`
	ShipmentStatus ShipmentStatus `json:"shipment_status"`
	Total          int64          `json:"total"`
	CommissionRate float64        `json:"commission_rate"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// OrderUpdate changes any subset of the order's status fields.
type OrderUpdate struct {
	OrderStatus    *OrderStatus    `json:"order_status,omitempty" validate:"omitempty,oneof=order_received approved rejected processing completed cancelled"`
	PaymentStatus  *PaymentStatus  `json:"payment_status,omitempty" validate:"omitempty,oneof=pending paid failed refunded"`
	ShipmentStatus *ShipmentStatus `json:"shipment_status,omitempty" validate:"omitempty,oneof=pending processing vendor_shipped in_transit delivered returned"`
}

// Empty reports whether the update changes nothing.
func (u OrderUpdate) Empty() bool {
	return u.OrderStatus == nil && u.PaymentStatus == nil && u.ShipmentStatus == nil
}

func (u OrderUpdate) apply(o *Order) {
	if u.OrderStatus != nil {
		o.OrderStatus = *u.OrderStatus
	}
	if u.PaymentStatus != nil {
		o.PaymentStatus = *u.PaymentStatus
	}
	if u.ShipmentStatus != nil {
		o.ShipmentStatus = *u.ShipmentStatus
	}
}

// ListOrdersRequest filters order listings.
type ListOrdersRequest struct {
	OrderStatus    *OrderStatus
	PaymentStatus  *PaymentStatus
	ShipmentStatus *ShipmentStatus
	shared.ListParams
}

// ============================================================================
// WALLET
// ============================================================================

// WalletCredit is the vendor payout booked when an order ships. OrderID is
// unique across the ledger.
type WalletCredit struct {
	ID         uuid.UUID `json:"id"`
	VendorID   int64     `json:"vendor_id"`
	OrderID    int64     `json:"order_id"`
	Gross      int64     `json:"gross"`
	Commission int64     `json:"commission"`
	Amount     int64     `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewWalletCredit computes the vendor credit for o net of commission.
func NewWalletCredit(o *Order, at time.Time) WalletCredit {
	commission := int64(math.Round(float64(o.Total) * o.CommissionRate / 100))
	if commission < 0 {
		commission = 0
	}
	if commission > o.Total {
		commission = o.Total
	}
	return WalletCredit{
		ID:         uuid.New(),
		VendorID:   o.VendorID,
		OrderID:    o.ID,
		Gross:      o.Total,
		Commission: commission,
		Amount:     o.Total - commission,
		CreatedAt:  at,
	}
}

// triggersCredit reports whether moving from prev to o's current state is the
// first vendor shipment of a paid order.
func triggersCredit(prev ShipmentStatus, o *Order) bool {
	return prev != ShipmentVendorShipped &&
		o.ShipmentStatus == ShipmentVendorShipped &&
		o.PaymentStatus == PaymentPaid
}
