package sensitivity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/souq/internal/rbac"
	"github.com/odyssey-erp/souq/internal/shared"
)

// Repository reads classification facts from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ProductFacts loads the vendor and category flags of a product.
func (r *Repository) ProductFacts(ctx context.Context, productID int64) (ProductFacts, error) {
	const query = `SELECT p.vendor_id, mc.is_controlled, pc.is_controlled, sc.is_controlled
FROM products p
LEFT JOIN categories mc ON mc.id = p.main_category_id
LEFT JOIN categories pc ON pc.id = p.primary_category_id
LEFT JOIN categories sc ON sc.id = p.sub_category_id
WHERE p.id = $1`
	var (
		facts            ProductFacts
		main, prim, subc *bool
	)
	err := r.pool.QueryRow(ctx, query, productID).Scan(&facts.VendorID, &main, &prim, &subc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductFacts{}, shared.ErrNotFound
		}
		return ProductFacts{}, err
	}
	for _, flag := range []*bool{main, prim, subc} {
		if flag != nil {
			facts.CategoryControlled = append(facts.CategoryControlled, *flag)
		}
	}
	return facts, nil
}

// OrderFacts loads the parties and item products of an order.
func (r *Repository) OrderFacts(ctx context.Context, orderID int64) (OrderFacts, error) {
	var facts OrderFacts
	err := r.pool.QueryRow(ctx, `SELECT customer_id, vendor_id FROM orders WHERE id = $1`, orderID).Scan(&facts.CustomerID, &facts.VendorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderFacts{}, shared.ErrNotFound
		}
		return OrderFacts{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT product_id FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return OrderFacts{}, err
	}
	facts.ProductIDs, err = pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return OrderFacts{}, err
	}
	return facts, nil
}

// ProfileFacts loads the controlled flag and country of an onboarding profile.
func (r *Repository) ProfileFacts(ctx context.Context, kind rbac.ResourceKind, actorID int64) (ProfileFacts, error) {
	var facts ProfileFacts
	err := r.pool.QueryRow(ctx, `SELECT controlled_items, COALESCE(country, '') FROM onboarding_profiles WHERE kind = $1 AND actor_id = $2`,
		string(kind), actorID).Scan(&facts.ControlledItems, &facts.Country)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProfileFacts{}, shared.ErrNotFound
		}
		return ProfileFacts{}, err
	}
	return facts, nil
}
