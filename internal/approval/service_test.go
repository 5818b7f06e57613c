package approval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/souq/internal/onboarding"
	"github.com/odyssey-erp/souq/internal/rbac"
	"github.com/odyssey-erp/souq/internal/sensitivity"
	"github.com/odyssey-erp/souq/internal/shared"
	"github.com/odyssey-erp/souq/internal/visibility"
)

// ============================================================================
// FAKES
// ============================================================================

type fakeRepo struct {
	products  map[int64]*Product
	orders    map[int64]*Order
	ledger    map[int64]WalletCredit
	balances  map[int64]int64
	listCalls int
	updateErr error
	// conflict, when set, makes the next WithTx roll back its first attempt,
	// apply a concurrent commit and run fn again.
	conflict func(r *fakeRepo)
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		products: make(map[int64]*Product),
		orders:   make(map[int64]*Order),
		ledger:   make(map[int64]WalletCredit),
		balances: make(map[int64]int64),
	}
}

type repoState struct {
	products map[int64]*Product
	orders   map[int64]*Order
	ledger   map[int64]WalletCredit
	balances map[int64]int64
}

func (r *fakeRepo) snapshot() repoState {
	st := repoState{
		products: make(map[int64]*Product, len(r.products)),
		orders:   make(map[int64]*Order, len(r.orders)),
		ledger:   make(map[int64]WalletCredit, len(r.ledger)),
		balances: make(map[int64]int64, len(r.balances)),
	}
	for k, v := range r.products {
		cp := *v
		st.products[k] = &cp
	}
	for k, v := range r.orders {
		cp := *v
		st.orders[k] = &cp
	}
	for k, v := range r.ledger {
		st.ledger[k] = v
	}
	for k, v := range r.balances {
		st.balances[k] = v
	}
	return st
}

func (r *fakeRepo) restore(st repoState) {
	r.products, r.orders, r.ledger, r.balances = st.products, st.orders, st.ledger, st.balances
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	st := r.snapshot()
	err := fn(ctx, r)
	if err == nil && r.conflict != nil {
		conflict := r.conflict
		r.conflict = nil
		r.restore(st)
		conflict(r)
		st = r.snapshot()
		err = fn(ctx, r)
	}
	if err != nil {
		r.restore(st)
		return err
	}
	return nil
}

func (r *fakeRepo) GetProduct(_ context.Context, id int64) (*Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) GetProductForUpdate(ctx context.Context, id int64) (*Product, error) {
	return r.GetProduct(ctx, id)
}

func (r *fakeRepo) UpdateProduct(_ context.Context, p *Product) error {
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

func (r *fakeRepo) GetOrder(_ context.Context, id int64) (*Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeRepo) GetOrderForUpdate(ctx context.Context, id int64) (*Order, error) {
	return r.GetOrder(ctx, id)
}

func (r *fakeRepo) UpdateOrder(_ context.Context, o *Order) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *fakeRepo) CreditWallet(_ context.Context, c WalletCredit) (bool, error) {
	if _, ok := r.ledger[c.OrderID]; ok {
		return false, nil
	}
	r.ledger[c.OrderID] = c
	r.balances[c.VendorID] += c.Amount
	return true, nil
}

func (r *fakeRepo) ListProducts(_ context.Context, _ ListProductsRequest, _ visibility.Predicate) ([]Product, int, error) {
	r.listCalls++
	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (r *fakeRepo) ListOrders(_ context.Context, _ ListOrdersRequest, _ visibility.Predicate) ([]Order, int, error) {
	r.listCalls++
	out := make([]Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, *o)
	}
	return out, len(out), nil
}

// fakeSource backs the live sensitivity resolver.
type fakeSource struct {
	products  map[int64]sensitivity.ProductFacts
	orders    map[int64]sensitivity.OrderFacts
	countries map[int64]string
	err       error
}

func (s *fakeSource) ProductFacts(_ context.Context, id int64) (sensitivity.ProductFacts, error) {
	if s.err != nil {
		return sensitivity.ProductFacts{}, s.err
	}
	f, ok := s.products[id]
	if !ok {
		return sensitivity.ProductFacts{}, shared.ErrNotFound
	}
	return f, nil
}

func (s *fakeSource) OrderFacts(_ context.Context, id int64) (sensitivity.OrderFacts, error) {
	if s.err != nil {
		return sensitivity.OrderFacts{}, s.err
	}
	f, ok := s.orders[id]
	if !ok {
		return sensitivity.OrderFacts{}, shared.ErrNotFound
	}
	return f, nil
}

func (s *fakeSource) ProfileFacts(_ context.Context, _ rbac.ResourceKind, actorID int64) (sensitivity.ProfileFacts, error) {
	country, ok := s.countries[actorID]
	if !ok {
		return sensitivity.ProfileFacts{}, shared.ErrNotFound
	}
	return sensitivity.ProfileFacts{Country: country}, nil
}

type fakeParticipation map[int64]onboarding.Level

func (p fakeParticipation) Participation(_ context.Context, _ rbac.ResourceKind, actorID int64) (onboarding.Level, error) {
	return p[actorID], nil
}

type recordingNotifier struct {
	credits []WalletCredit
}

func (n *recordingNotifier) WalletCredited(_ context.Context, c WalletCredit) error {
	n.credits = append(n.credits, c)
	return nil
}

const (
	uaeVendorID    int64 = 20
	germanVendorID int64 = 21
	newVendorID    int64 = 22
	uaeCustomerID  int64 = 30
	plainProductID int64 = 100
	ctrlProductID  int64 = 101
	germanCtrlID   int64 = 102
	unknownCtrlID  int64 = 103
	plainOrderID   int64 = 500
	ctrlOrderID    int64 = 501
)

var admin = rbac.Actor{ID: 1, Role: rbac.RoleAdmin}

type memRecorder struct {
	logs []shared.ApprovalLog
}

func (r *memRecorder) Record(_ context.Context, log shared.ApprovalLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func (r *memRecorder) List(_ context.Context, module string, ref int64) ([]shared.ApprovalLog, error) {
	var out []shared.ApprovalLog
	for _, l := range r.logs {
		if l.Module == module && l.RefID == ref {
			out = append(out, l)
		}
	}
	return out, nil
}

type fixture struct {
	repo     *fakeRepo
	source   *fakeSource
	store    *rbac.MemoryStore
	level    fakeParticipation
	notifier *recordingNotifier
	recorder *memRecorder
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := newFakeRepo()
	source := &fakeSource{
		products: map[int64]sensitivity.ProductFacts{
			plainProductID: {VendorID: uaeVendorID, CategoryControlled: []bool{false, false}},
			ctrlProductID:  {VendorID: uaeVendorID, CategoryControlled: []bool{false, true}},
			germanCtrlID:   {VendorID: germanVendorID, CategoryControlled: []bool{true}},
			unknownCtrlID:  {VendorID: newVendorID, CategoryControlled: []bool{true}},
		},
		orders: map[int64]sensitivity.OrderFacts{
			plainOrderID: {CustomerID: uaeCustomerID, VendorID: uaeVendorID, ProductIDs: []int64{plainProductID}},
			ctrlOrderID:  {CustomerID: uaeCustomerID, VendorID: uaeVendorID, ProductIDs: []int64{plainProductID, ctrlProductID}},
		},
		countries: map[int64]string{
			uaeVendorID:    "U.A.E.",
			germanVendorID: "Germany",
			uaeCustomerID:  "United Arab Emirates",
		},
	}
	for id, facts := range source.products {
		repo.products[id] = &Product{ID: id, VendorID: facts.VendorID, Name: "item", Status: ProductStatusPendingReview, ApprovalStatus: ApprovalPending}
	}
	for id, facts := range source.orders {
		repo.orders[id] = &Order{
			ID: id, CustomerID: facts.CustomerID, VendorID: facts.VendorID,
			OrderStatus: OrderStatusApproved, PaymentStatus: PaymentPaid, ShipmentStatus: ShipmentProcessing,
			Total: 10000, CommissionRate: 12.5,
		}
	}
	store := rbac.NewMemoryStore()
	evaluator := rbac.NewEvaluator(store, nil, logger, nil)
	level := fakeParticipation{uaeVendorID: onboarding.LevelGeneral}
	notifier := &recordingNotifier{}
	recorder := &memRecorder{}
	svc := NewService(repo, evaluator, sensitivity.NewResolver(source), level, recorder, notifier, logger)
	svc.now = func() time.Time { return time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC) }
	return &fixture{repo: repo, source: source, store: store, level: level, notifier: notifier, recorder: recorder, svc: svc}
}

func (f *fixture) grant(t *testing.T, names ...string) {
	t.Helper()
	require.NoError(t, f.store.SyncPermissions(context.Background(), admin.ID, names))
}

func requiredPermission(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	perm, ok := shared.RequiredPermission(err)
	require.True(t, ok, "expected forbidden error, got %v", err)
	return perm
}

func shipped() OrderUpdate {
	s := ShipmentVendorShipped
	return OrderUpdate{ShipmentStatus: &s}
}

// ============================================================================
// PRODUCT APPROVAL
// ============================================================================

func TestRejectProductForcesRejectedStatus(t *testing.T) {
	f := newFixture(t)
	f.grant(t, shared.PermProductApprove)
	ctx := context.Background()

	_, err := f.svc.SetProductApproval(ctx, admin, plainProductID, ApprovalRejected, " ")
	assert.ErrorIs(t, err, shared.ErrValidation)

	p, err := f.svc.SetProductApproval(ctx, admin, plainProductID, ApprovalRejected, "blurry images")
	require.NoError(t, err)
	assert.Equal(t, ProductStatusRejected, p.Status)
	assert.Equal(t, ApprovalRejected, p.ApprovalStatus)
	require.NotNil(t, p.RejectionReason)
	assert.Equal(t, "blurry images", *p.RejectionReason)
}

func TestProductHistory(t *testing.T) {
	f := newFixture(t)
	f.grant(t, shared.PermProductApprove)
	ctx := context.Background()

	_, err := f.svc.SetProductApproval(ctx, admin, plainProductID, ApprovalRejected, "blurry images")
	require.NoError(t, err)

	owner := rbac.Actor{ID: uaeVendorID, Role: rbac.RoleVendor}
	logs, err := f.svc.ProductHistory(ctx, owner, plainProductID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, shared.ApprovalReject, logs[0].Action)
	assert.Equal(t, "blurry images", logs[0].Note)
	assert.Equal(t, admin.ID, logs[0].ActorID)

	logs, err = f.svc.ProductHistory(ctx, owner, ctrlProductID)
	require.NoError(t, err)
	assert.NotNil(t, logs)
	assert.Empty(t, logs)

	stranger := rbac.Actor{ID: germanVendorID, Role: rbac.RoleVendor}
	_, err = f.svc.ProductHistory(ctx, stranger, plainProductID)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestApproveProductClearsRejectionWithoutPublishing(t *testing.T) {
	f := newFixture(t)
	f.grant(t, shared.PermProductApprove)
	ctx := context.Background()
	_, err := f.svc.SetProductApproval(ctx, admin, plainProductID, ApprovalRejected, "fix title")
	require.NoError(t, err)

	p, err := f.svc.SetProductApproval(ctx, admin, plainProductID, ApprovalApproved, "")
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, p.ApprovalStatus)
	assert.Nil(t, p.RejectionReason)
	assert.NotEqual(t, ProductStatusPublished, p.Status)
}

func TestApproveProductInvalidDecision(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SetProductApproval(context.Background(), admin, plainProductID, ApprovalPending, "")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestProductApprovalJurisdictionEscalation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grant(t, shared.PermProductApprove)

	// controlled category, vendor declared "U.A.E."
	_, err := f.svc.SetProductApproval(ctx, admin, ctrlProductID, ApprovalApproved, "")
	assert.Equal(t, shared.PermProductControlledApprove, requiredPermission(t, err))

	// controlled category outside the UAE only needs the general permission
	_, err = f.svc.SetProductApproval(ctx, admin, germanCtrlID, ApprovalApproved, "")
	require.NoError(t, err)

	// unknown jurisdiction never downgrades a write on a controlled product
	_, err = f.svc.SetProductApproval(ctx, admin, unknownCtrlID, ApprovalApproved, "")
	assert.Equal(t, shared.PermProductControlledApprove, requiredPermission(t, err))
}

func TestControlledOnlyAdminCannotApprovePlainProduct(t *testing.T) {
	f := newFixture(t)
	f.grant(t, shared.PermProductControlledApprove)

	_, err := f.svc.SetProductApproval(context.Background(), admin, plainProductID, ApprovalApproved, "")
	assert.Equal(t, shared.PermProductApprove, requiredPermission(t, err))

	_, err = f.svc.SetProductApproval(context.Background(), admin, ctrlProductID, ApprovalApproved, "")
	require.NoError(t, err)
}

func TestUnknownJurisdictionViewUsesGeneralPermission(t *testing.T) {
	f := newFixture(t)
	f.grant(t, shared.PermProductView)

	p, err := f.svc.GetProduct(context.Background(), admin, unknownCtrlID)
	require.NoError(t, err)
	assert.Equal(t, unknownCtrlID, p.ID)
}

func TestProductClassificationFailureDenies(t *testing.T) {
	f := newFixture(t)
	f.source.err = errors.New("connection reset")
	super := rbac.Actor{ID: 2, Role: rbac.RoleSuperAdmin}

	_, err := f.svc.SetProductApproval(context.Background(), super, plainProductID, ApprovalRejected, "no")
	require.Error(t, err)
	assert.Equal(t, ProductStatusPendingReview, f.repo.products[plainProductID].Status)
}

// ============================================================================
// PRODUCT LIFECYCLE
// ============================================================================

func TestSubmitForReviewParticipation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := rbac.Actor{ID: uaeVendorID, Role: rbac.RoleVendor}
	f.repo.products[plainProductID].Status = ProductStatusDraft
	f.repo.products[ctrlProductID].Status = ProductStatusDraft

	p, err := f.svc.SubmitForReview(ctx, vendor, plainProductID)
	require.NoError(t, err)
	assert.Equal(t, ProductStatusPendingReview, p.Status)
	assert.Equal(t, ApprovalPending, p.ApprovalStatus)

	_, err = f.svc.SubmitForReview(ctx, vendor, ctrlProductID)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	f.level[uaeVendorID] = onboarding.LevelControlled
	_, err = f.svc.SubmitForReview(ctx, vendor, ctrlProductID)
	require.NoError(t, err)

	_, err = f.svc.SubmitForReview(ctx, vendor, ctrlProductID)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestSubmitForReviewRequiresOnboarding(t *testing.T) {
	f := newFixture(t)
	vendor := rbac.Actor{ID: germanVendorID, Role: rbac.RoleVendor}
	f.repo.products[germanCtrlID].Status = ProductStatusDraft

	_, err := f.svc.SubmitForReview(context.Background(), vendor, germanCtrlID)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = f.svc.SubmitForReview(context.Background(), vendor, plainProductID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPublishRequiresApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := rbac.Actor{ID: uaeVendorID, Role: rbac.RoleVendor}

	_, err := f.svc.Publish(ctx, vendor, plainProductID)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	f.repo.products[plainProductID].ApprovalStatus = ApprovalApproved
	p, err := f.svc.Publish(ctx, vendor, plainProductID)
	require.NoError(t, err)
	assert.Equal(t, ProductStatusPublished, p.Status)

	p, err = f.svc.Unpublish(ctx, vendor, plainProductID)
	require.NoError(t, err)
	assert.Equal(t, ProductStatusUnpublished, p.Status)

	_, err = f.svc.Publish(ctx, admin, plainProductID)
	assert.Equal(t, shared.PermProductManage, requiredPermission(t, err))
}

// ============================================================================
// ORDERS
// ============================================================================

func TestUpdateOrderPermissionByClassification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grant(t, shared.PermOrderManage)
	processing := OrderStatusProcessing
	update := OrderUpdate{OrderStatus: &processing}

	o, err := f.svc.UpdateOrder(ctx, admin, plainOrderID, update)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusProcessing, o.OrderStatus)

	// one controlled item and a UAE customer escalate to the controlled permission
	_, err = f.svc.UpdateOrder(ctx, admin, ctrlOrderID, update)
	assert.Equal(t, shared.PermOrderControlledApprove, requiredPermission(t, err))
	assert.Equal(t, OrderStatusApproved, f.repo.orders[ctrlOrderID].OrderStatus)

	f.grant(t, shared.PermOrderControlledApprove)
	_, err = f.svc.UpdateOrder(ctx, admin, ctrlOrderID, update)
	require.NoError(t, err)
}

func TestVendorShippedCreditsWalletOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grant(t, shared.PermOrderManage)

	_, err := f.svc.UpdateOrder(ctx, admin, plainOrderID, shipped())
	require.NoError(t, err)
	_, err = f.svc.UpdateOrder(ctx, admin, plainOrderID, shipped())
	require.NoError(t, err)

	require.Len(t, f.repo.ledger, 1)
	credit := f.repo.ledger[plainOrderID]
	assert.Equal(t, int64(1250), credit.Commission)
	assert.Equal(t, int64(8750), credit.Amount)
	assert.Equal(t, int64(8750), f.repo.balances[uaeVendorID])
	assert.Len(t, f.notifier.credits, 1)
}

func TestVendorShippedRetryDropsRolledBackCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grant(t, shared.PermOrderManage)

	var committed WalletCredit
	f.repo.conflict = func(r *fakeRepo) {
		o := r.orders[plainOrderID]
		o.ShipmentStatus = ShipmentVendorShipped
		committed = NewWalletCredit(o, time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC))
		r.ledger[plainOrderID] = committed
		r.balances[uaeVendorID] += committed.Amount
	}

	order, err := f.svc.UpdateOrder(ctx, admin, plainOrderID, shipped())
	require.NoError(t, err)
	assert.Equal(t, ShipmentVendorShipped, order.ShipmentStatus)

	require.Len(t, f.repo.ledger, 1)
	assert.Equal(t, committed.ID, f.repo.ledger[plainOrderID].ID)
	assert.Equal(t, committed.Amount, f.repo.balances[uaeVendorID])
	assert.Empty(t, f.notifier.credits)
}

func TestVendorShippedAgainAfterTransitDoesNotCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grant(t, shared.PermOrderManage)
	transit := ShipmentInTransit

	_, err := f.svc.UpdateOrder(ctx, admin, plainOrderID, shipped())
	require.NoError(t, err)
	_, err = f.svc.UpdateOrder(ctx, admin, plainOrderID, OrderUpdate{ShipmentStatus: &transit})
	require.NoError(t, err)
	_, err = f.svc.UpdateOrder(ctx, admin, plainOrderID, shipped())
	require.NoError(t, err)

	assert.Len(t, f.repo.ledger, 1)
	assert.Len(t, f.notifier.credits, 1)
}

func TestVendorShippedUnpaidOrderDoesNotCredit(t *testing.T) {
	f := newFixture(t)
	f.grant(t, shared.PermOrderManage)
	f.repo.orders[plainOrderID].PaymentStatus = PaymentPending

	_, err := f.svc.UpdateOrder(context.Background(), admin, plainOrderID, shipped())
	require.NoError(t, err)
	assert.Empty(t, f.repo.ledger)
}

func TestVendorShippedDeniedDoesNotCredit(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdateOrder(context.Background(), admin, plainOrderID, shipped())
	assert.Equal(t, shared.PermOrderManage, requiredPermission(t, err))
	assert.Empty(t, f.repo.ledger)
}

func TestUpdateOrderRollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	f.grant(t, shared.PermOrderManage)
	f.repo.updateErr = errors.New("deadlock detected")

	_, err := f.svc.UpdateOrder(context.Background(), admin, plainOrderID, shipped())
	require.Error(t, err)
	assert.Empty(t, f.repo.ledger)
	assert.Equal(t, ShipmentProcessing, f.repo.orders[plainOrderID].ShipmentStatus)
}

func TestUpdateOrderValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.UpdateOrder(context.Background(), admin, plainOrderID, OrderUpdate{})
	assert.ErrorIs(t, err, shared.ErrValidation)

	bogus := ShipmentStatus("teleported")
	_, err = f.svc.UpdateOrder(context.Background(), admin, plainOrderID, OrderUpdate{ShipmentStatus: &bogus})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestGetOrderParties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetOrder(ctx, rbac.Actor{ID: uaeCustomerID, Role: rbac.RoleCustomer}, plainOrderID)
	require.NoError(t, err)
	_, err = f.svc.GetOrder(ctx, rbac.Actor{ID: uaeVendorID, Role: rbac.RoleVendor}, plainOrderID)
	require.NoError(t, err)

	_, err = f.svc.GetOrder(ctx, rbac.Actor{ID: 99, Role: rbac.RoleCustomer}, plainOrderID)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	// view on a controlled order from the UAE needs the controlled view permission
	f.grant(t, shared.PermOrderView)
	_, err = f.svc.GetOrder(ctx, admin, ctrlOrderID)
	assert.Equal(t, shared.PermOrderControlledView, requiredPermission(t, err))
}

func TestListOrdersWithoutScopeSkipsQuery(t *testing.T) {
	f := newFixture(t)

	orders, total, err := f.svc.ListOrders(context.Background(), admin, ListOrdersRequest{})
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Zero(t, total)
	assert.Zero(t, f.repo.listCalls)

	f.grant(t, shared.PermOrderControlledView)
	_, _, err = f.svc.ListOrders(context.Background(), admin, ListOrdersRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.repo.listCalls)
}

func TestNewWalletCreditRounding(t *testing.T) {
	credit := NewWalletCredit(&Order{ID: 7, VendorID: 3, Total: 999, CommissionRate: 7.5}, time.Time{})
	assert.Equal(t, int64(75), credit.Commission)
	assert.Equal(t, int64(924), credit.Amount)
	assert.Equal(t, int64(999), credit.Gross)

	credit = NewWalletCredit(&Order{Total: 100, CommissionRate: 150}, time.Time{})
	assert.Equal(t, int64(0), credit.Amount)
}
