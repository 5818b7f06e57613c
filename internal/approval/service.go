package approval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/souq/internal/onboarding"
	"github.com/odyssey-erp/souq/internal/rbac"
	"github.com/odyssey-erp/souq/internal/shared"
	"github.com/odyssey-erp/souq/internal/visibility"
)

var validate = validator.New()

// Repository persists products, orders and the vendor wallet ledger.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	GetProduct(ctx context.Context, id int64) (*Product, error)
	GetProductForUpdate(ctx context.Context, id int64) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
	GetOrder(ctx context.Context, id int64) (*Order, error)
	GetOrderForUpdate(ctx context.Context, id int64) (*Order, error)
	UpdateOrder(ctx context.Context, o *Order) error
	// CreditWallet books credit unless the order already has a ledger entry.
	CreditWallet(ctx context.Context, credit WalletCredit) (bool, error)
	ListProducts(ctx context.Context, req ListProductsRequest, pred visibility.Predicate) ([]Product, int, error)
	ListOrders(ctx context.Context, req ListOrdersRequest, pred visibility.Predicate) ([]Order, int, error)
}

// Authorizer is the slice of rbac.Evaluator the workflow needs.
type Authorizer interface {
	visibility.ScopeResolver
	CanPerform(ctx context.Context, actor rbac.Actor, action rbac.Action, resource rbac.Resource) (rbac.Decision, error)
}

// Classifier reads live product and order sensitivity.
type Classifier interface {
	Product(ctx context.Context, productID int64) (rbac.Resource, error)
	Order(ctx context.Context, orderID int64) (rbac.Resource, error)
}

// Participation reports the onboarding level of a vendor.
type Participation interface {
	Participation(ctx context.Context, kind rbac.ResourceKind, actorID int64) (onboarding.Level, error)
}

// Recorder keeps the approval history.
type Recorder interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module string, ref int64) ([]shared.ApprovalLog, error)
}

// Notifier is told about wallet credits once they are committed.
type Notifier interface {
	WalletCredited(ctx context.Context, credit WalletCredit) error
}

// Service gates product approval and order mutation.
type Service struct {
	repo          Repository
	auth          Authorizer
	classifier    Classifier
	participation Participation
	recorder      Recorder
	notifier      Notifier
	logger        *slog.Logger
	now           func() time.Time
}

// NewService builds Service instance. Recorder and notifier may be nil.
func NewService(repo Repository, auth Authorizer, classifier Classifier, participation Participation, recorder Recorder, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:          repo,
		auth:          auth,
		classifier:    classifier,
		participation: participation,
		recorder:      recorder,
		notifier:      notifier,
		logger:        logger,
		now:           time.Now,
	}
}

// ============================================================================
// PRODUCTS
// ============================================================================

// GetProduct returns a product to its vendor or to an actor allowed to view it.
func (s *Service) GetProduct(ctx context.Context, actor rbac.Actor, id int64) (*Product, error) {
	resource, err := s.classifier.Product(ctx, id)
	if err != nil {
		return nil, err
	}
	if !(actor.Role == rbac.RoleVendor && resource.OwnerID == actor.ID) {
		if err := s.allow(ctx, actor, rbac.ActionView, resource); err != nil {
			return nil, err
		}
	}
	return s.repo.GetProduct(ctx, id)
}

// ProductHistory returns the review trail of a product to anyone who may
// read the product itself.
func (s *Service) ProductHistory(ctx context.Context, actor rbac.Actor, id int64) ([]shared.ApprovalLog, error) {
	if _, err := s.GetProduct(ctx, actor, id); err != nil {
		return nil, err
	}
	if s.recorder == nil {
		return []shared.ApprovalLog{}, nil
	}
	logs, err := s.recorder.List(ctx, shared.ModuleProduct, id)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []shared.ApprovalLog{}
	}
	return logs, nil
}

// SubmitForReview sends the vendor's own product to admin review. Vendors
// need an approved onboarding profile; controlled products need the
// controlled participation level.
func (s *Service) SubmitForReview(ctx context.Context, vendor rbac.Actor, id int64) (*Product, error) {
	if vendor.Role != rbac.RoleVendor {
		return nil, fmt.Errorf("%w: only vendors submit products", shared.ErrForbidden)
	}
	resource, err := s.classifier.Product(ctx, id)
	if err != nil {
		return nil, err
	}
	if resource.OwnerID != vendor.ID {
		return nil, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	level, err := s.participation.Participation(ctx, rbac.KindVendor, vendor.ID)
	if err != nil {
		return nil, err
	}
	switch {
	case level == onboarding.LevelNone:
		return nil, fmt.Errorf("%w: vendor onboarding not approved", shared.ErrForbidden)
	case resource.Sensitivity.IsControlled && level != onboarding.LevelControlled:
		return nil, fmt.Errorf("%w: vendor not approved for controlled items", shared.ErrForbidden)
	}

	var product *Product
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		p, err := repo.GetProductForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !p.canSubmit() {
			return shared.InvalidTransition(string(p.Status), string(ProductStatusPendingReview))
		}
		p.Status = ProductStatusPendingReview
		p.ApprovalStatus = ApprovalPending
		p.RejectionReason = nil
		if err := repo.UpdateProduct(ctx, p); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, shared.ApprovalLog{Module: shared.ModuleProduct, RefID: id, ActorID: vendor.ID, Action: shared.ApprovalSubmit})
	return product, nil
}

// SetProductApproval records an admin review decision. Rejection hides the
// product by forcing its status to rejected; approval clears rejection
// metadata and never publishes.
func (s *Service) SetProductApproval(ctx context.Context, admin rbac.Actor, id int64, decision ApprovalStatus, reason string) (*Product, error) {
	reason = strings.TrimSpace(reason)
	switch decision {
	case ApprovalApproved:
	case ApprovalRejected:
		if reason == "" {
			return nil, fmt.Errorf("%w: rejection reason required", shared.ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: decision must be %s or %s", shared.ErrValidation, ApprovalApproved, ApprovalRejected)
	}
	resource, err := s.classifier.Product(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.allow(ctx, admin, rbac.ActionApprove, resource); err != nil {
		return nil, err
	}

	var product *Product
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		p, err := repo.GetProductForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		p.ApprovalStatus = decision
		p.ReviewedBy = &admin.ID
		p.ReviewedAt = &now
		if decision == ApprovalRejected {
			p.Status = ProductStatusRejected
			p.RejectionReason = &reason
		} else {
			p.RejectionReason = nil
		}
		if err := repo.UpdateProduct(ctx, p); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	action := shared.ApprovalApprove
	if decision == ApprovalRejected {
		action = shared.ApprovalReject
	}
	s.record(ctx, shared.ApprovalLog{Module: shared.ModuleProduct, RefID: id, ActorID: admin.ID, Action: action, Note: reason})
	return product, nil
}

// Publish makes an approved product visible. The owning vendor may publish;
// anyone else needs the manage permission for the product.
func (s *Service) Publish(ctx context.Context, actor rbac.Actor, id int64) (*Product, error) {
	return s.setPublished(ctx, actor, id, ProductStatusPublished)
}

// Unpublish hides a published product.
func (s *Service) Unpublish(ctx context.Context, actor rbac.Actor, id int64) (*Product, error) {
	return s.setPublished(ctx, actor, id, ProductStatusUnpublished)
}

func (s *Service) setPublished(ctx context.Context, actor rbac.Actor, id int64, to ProductStatus) (*Product, error) {
	resource, err := s.classifier.Product(ctx, id)
	if err != nil {
		return nil, err
	}
	if !(actor.Role == rbac.RoleVendor && resource.OwnerID == actor.ID) {
		if err := s.allow(ctx, actor, rbac.ActionManage, resource); err != nil {
			return nil, err
		}
	}
	var product *Product
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		p, err := repo.GetProductForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch to {
		case ProductStatusPublished:
			if p.ApprovalStatus != ApprovalApproved || p.Status == ProductStatusPublished {
				return shared.InvalidTransition(string(p.Status), string(to))
			}
		case ProductStatusUnpublished:
			if p.Status != ProductStatusPublished {
				return shared.InvalidTransition(string(p.Status), string(to))
			}
		}
		p.Status = to
		if err := repo.UpdateProduct(ctx, p); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// ListProducts returns products within the actor's visibility scope.
func (s *Service) ListProducts(ctx context.Context, actor rbac.Actor, req ListProductsRequest) ([]Product, int, error) {
	pred, err := visibility.Resolve(ctx, s.auth, actor, rbac.KindProduct)
	if err != nil {
		return nil, 0, err
	}
	req.ListParams = req.ListParams.Normalize()
	return visibility.List(ctx, pred, func(ctx context.Context, pred visibility.Predicate) ([]Product, int, error) {
		return s.repo.ListProducts(ctx, req, pred)
	})
}

// ============================================================================
// ORDERS
// ============================================================================

// GetOrder returns an order to its customer, its vendor, or an actor allowed
// to view it.
func (s *Service) GetOrder(ctx context.Context, actor rbac.Actor, id int64) (*Order, error) {
	resource, err := s.classifier.Order(ctx, id)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if isOrderParty(actor, order) {
		return order, nil
	}
	if err := s.allow(ctx, actor, rbac.ActionView, resource); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateOrder applies status changes after classifying the order and
// checking the manage permission it requires. The first shipment into
// vendor_shipped on a paid order credits the vendor wallet exactly once.
func (s *Service) UpdateOrder(ctx context.Context, admin rbac.Actor, id int64, update OrderUpdate) (*Order, error) {
	if update.Empty() {
		return nil, fmt.Errorf("%w: no status change requested", shared.ErrValidation)
	}
	if err := validate.Struct(update); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	resource, err := s.classifier.Order(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.allow(ctx, admin, rbac.ActionManage, resource); err != nil {
		return nil, err
	}

	var (
		order  *Order
		credit *WalletCredit
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		// WithTx may re-run this after a serialization failure.
		order, credit = nil, nil
		o, err := repo.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		prev := o.ShipmentStatus
		update.apply(o)
		if err := repo.UpdateOrder(ctx, o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if triggersCredit(prev, o) {
			c := NewWalletCredit(o, s.now())
			booked, err := repo.CreditWallet(ctx, c)
			if err != nil {
				return fmt.Errorf("credit wallet: %w", err)
			}
			if booked {
				credit = &c
			}
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, shared.ApprovalLog{Module: shared.ModuleOrder, RefID: id, ActorID: admin.ID, Action: shared.ApprovalStatusChange, Note: describeUpdate(update)})
	if credit != nil {
		s.logger.Info("vendor wallet credited", slog.Int64("order_id", id), slog.Int64("vendor_id", credit.VendorID), slog.Int64("amount", credit.Amount))
		if s.notifier != nil {
			if err := s.notifier.WalletCredited(ctx, *credit); err != nil {
				s.logger.Warn("notify wallet credit", slog.Int64("order_id", id), slog.Any("error", err))
			}
		}
	}
	return order, nil
}

// ListOrders returns orders within the actor's visibility scope.
func (s *Service) ListOrders(ctx context.Context, actor rbac.Actor, req ListOrdersRequest) ([]Order, int, error) {
	pred, err := visibility.Resolve(ctx, s.auth, actor, rbac.KindOrder)
	if err != nil {
		return nil, 0, err
	}
	req.ListParams = req.ListParams.Normalize()
	return visibility.List(ctx, pred, func(ctx context.Context, pred visibility.Predicate) ([]Order, int, error) {
		return s.repo.ListOrders(ctx, req, pred)
	})
}

func isOrderParty(actor rbac.Actor, o *Order) bool {
	switch actor.Role {
	case rbac.RoleCustomer:
		return o.CustomerID == actor.ID
	case rbac.RoleVendor:
		return o.VendorID == actor.ID
	}
	return false
}

func describeUpdate(u OrderUpdate) string {
	parts := make([]string, 0, 3)
	if u.OrderStatus != nil {
		parts = append(parts, "order_status="+string(*u.OrderStatus))
	}
	if u.PaymentStatus != nil {
		parts = append(parts, "payment_status="+string(*u.PaymentStatus))
	}
	if u.ShipmentStatus != nil {
		parts = append(parts, "shipment_status="+string(*u.ShipmentStatus))
	}
	return strings.Join(parts, " ")
}

func (s *Service) allow(ctx context.Context, actor rbac.Actor, action rbac.Action, resource rbac.Resource) error {
	decision, err := s.auth.CanPerform(ctx, actor, action, resource)
	if err != nil {
		return err
	}
	return decision.Err()
}

func (s *Service) record(ctx context.Context, log shared.ApprovalLog) {
	if s.recorder == nil {
		return
	}
	log.At = s.now()
	if err := s.recorder.Record(ctx, log); err != nil {
		s.logger.Warn("approval record", slog.String("module", log.Module), slog.Int64("ref_id", log.RefID), slog.Any("error", err))
	}
}
