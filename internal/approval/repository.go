package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/souq/internal/platform/db"
	"github.com/odyssey-erp/souq/internal/shared"
	"github.com/odyssey-erp/souq/internal/visibility"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

// ============================================================================
// PRODUCTS
// ============================================================================

const productColumns = `p.id, p.vendor_id, p.name, p.status, p.approval_status, p.rejection_reason,
p.reviewed_by, p.reviewed_at, p.main_category_id, p.primary_category_id, p.sub_category_id,
p.created_at, p.updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var (
		p              Product
		status, review string
	)
	err := row.Scan(&p.ID, &p.VendorID, &p.Name, &status, &review, &p.RejectionReason,
		&p.ReviewedBy, &p.ReviewedAt, &p.MainCategoryID, &p.PrimaryCategoryID, &p.SubCategoryID,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = ProductStatus(status)
	p.ApprovalStatus = ApprovalStatus(review)
	return &p, nil
}

func (r *repository) GetProduct(ctx context.Context, id int64) (*Product, error) {
	return r.getProduct(ctx, id, "")
}

func (r *repository) GetProductForUpdate(ctx context.Context, id int64) (*Product, error) {
	return r.getProduct(ctx, id, " FOR UPDATE")
}

func (r *repository) getProduct(ctx context.Context, id int64, lock string) (*Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = $1`+lock, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

func (r *repository) UpdateProduct(ctx context.Context, p *Product) error {
	return r.db.QueryRow(ctx, `UPDATE products SET status = $2, approval_status = $3, rejection_reason = $4,
reviewed_by = $5, reviewed_at = $6, updated_at = NOW()
WHERE id = $1 RETURNING updated_at`,
		p.ID, string(p.Status), string(p.ApprovalStatus), p.RejectionReason, p.ReviewedBy, p.ReviewedAt,
	).Scan(&p.UpdatedAt)
}

func (r *repository) ListProducts(ctx context.Context, req ListProductsRequest, pred visibility.Predicate) ([]Product, int, error) {
	var (
		conditions []string
		args       []interface{}
	)
	argPos := 1
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", argPos))
		args = append(args, string(*req.Status))
		argPos++
	}
	if req.ApprovalStatus != nil {
		conditions = append(conditions, fmt.Sprintf("p.approval_status = $%d", argPos))
		args = append(args, string(*req.ApprovalStatus))
		argPos++
	}
	if req.VendorID != nil {
		conditions = append(conditions, fmt.Sprintf("p.vendor_id = $%d", argPos))
		args = append(args, *req.VendorID)
		argPos++
	}
	clause, predArgs, argPos := pred.Render(argPos)
	if clause != "" {
		conditions = append(conditions, clause)
		args = append(args, predArgs...)
	}
	whereClause := whereOf(conditions)

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM products p "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT %s FROM products p %s ORDER BY p.updated_at DESC, p.id DESC LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// ============================================================================
// ORDERS
// ============================================================================

const orderColumns = `o.id, o.customer_id, o.vendor_id, o.order_status, o.payment_status, o.shipment_status,
o.total, o.commission_rate, o.created_at, o.updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var status, payment, shipment string
	err := row.Scan(&o.ID, &o.CustomerID, &o.VendorID, &status, &payment, &shipment,
		&o.Total, &o.CommissionRate, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.OrderStatus = OrderStatus(status)
	o.PaymentStatus = PaymentStatus(payment)
	o.ShipmentStatus = ShipmentStatus(shipment)
	return &o, nil
}

func (r *repository) GetOrder(ctx context.Context, id int64) (*Order, error) {
	return r.getOrder(ctx, id, "")
}

func (r *repository) GetOrderForUpdate(ctx context.Context, id int64) (*Order, error) {
	return r.getOrder(ctx, id, " FOR UPDATE")
}

func (r *repository) getOrder(ctx context.Context, id int64, lock string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`+lock, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return o, nil
}

func (r *repository) UpdateOrder(ctx context.Context, o *Order) error {
	return r.db.QueryRow(ctx, `UPDATE orders SET order_status = $2, payment_status = $3, shipment_status = $4, updated_at = NOW()
WHERE id = $1 RETURNING updated_at`,
		o.ID, string(o.OrderStatus), string(o.PaymentStatus), string(o.ShipmentStatus),
	).Scan(&o.UpdatedAt)
}

// CreditWallet inserts the ledger entry and bumps the balance. The unique
// order_id on wallet_ledger makes a repeated credit a no-op.
func (r *repository) CreditWallet(ctx context.Context, c WalletCredit) (bool, error) {
	tag, err := r.db.Exec(ctx, `INSERT INTO wallet_ledger (id, vendor_id, order_id, gross, commission, amount, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (order_id) DO NOTHING`,
		c.ID, c.VendorID, c.OrderID, c.Gross, c.Commission, c.Amount, c.CreatedAt)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	_, err = r.db.Exec(ctx, `INSERT INTO vendor_wallets (vendor_id, balance, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (vendor_id) DO UPDATE SET balance = vendor_wallets.balance + EXCLUDED.balance, updated_at = NOW()`,
		c.VendorID, c.Amount)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *repository) ListOrders(ctx context.Context, req ListOrdersRequest, pred visibility.Predicate) ([]Order, int, error) {
	var (
		conditions []string
		args       []interface{}
	)
	argPos := 1
	if req.OrderStatus != nil {
		conditions = append(conditions, fmt.Sprintf("o.order_status = $%d", argPos))
		args = append(args, string(*req.OrderStatus))
		argPos++
	}
	if req.PaymentStatus != nil {
		conditions = append(conditions, fmt.Sprintf("o.payment_status = $%d", argPos))
		args = append(args, string(*req.PaymentStatus))
		argPos++
	}
	if req.ShipmentStatus != nil {
		conditions = append(conditions, fmt.Sprintf("o.shipment_status = $%d", argPos))
		args = append(args, string(*req.ShipmentStatus))
		argPos++
	}
	clause, predArgs, argPos := pred.Render(argPos)
	if clause != "" {
		conditions = append(conditions, clause)
		args = append(args, predArgs...)
	}
	whereClause := whereOf(conditions)

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM orders o "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT %s FROM orders o %s ORDER BY o.created_at DESC, o.id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func whereOf(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conditions, " AND ")
}
