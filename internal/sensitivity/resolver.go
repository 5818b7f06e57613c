// Package sensitivity classifies concrete resources as controlled or not and
// determines the jurisdiction they belong to.
package sensitivity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/souq/internal/rbac"
	"github.com/odyssey-erp/souq/internal/shared"
)

// ProductFacts carries the associations a product is classified from.
type ProductFacts struct {
	VendorID int64
	// CategoryControlled holds the flag of every category in the product's
	// main/primary/sub chain that is set.
	CategoryControlled []bool
}

// OrderFacts carries the associations an order is classified from.
type OrderFacts struct {
	CustomerID int64
	VendorID   int64
	ProductIDs []int64
}

// ProfileFacts carries the onboarding profile attributes used for classification.
type ProfileFacts struct {
	ControlledItems bool
	Country         string
}

// Source reads the raw associations. Missing records return shared.ErrNotFound.
type Source interface {
	ProductFacts(ctx context.Context, productID int64) (ProductFacts, error)
	OrderFacts(ctx context.Context, orderID int64) (OrderFacts, error)
	ProfileFacts(ctx context.Context, kind rbac.ResourceKind, actorID int64) (ProfileFacts, error)
}

// Resolver derives rbac.Resource values with live sensitivity. Every call
// reads the source; nothing is cached between requests.
type Resolver struct {
	source      Source
	concurrency int
}

// NewResolver constructs a Resolver.
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source, concurrency: 8}
}

// Product classifies a product: controlled when any category in its chain is
// controlled; jurisdiction is the owning vendor's declared country.
func (r *Resolver) Product(ctx context.Context, productID int64) (rbac.Resource, error) {
	facts, err := r.source.ProductFacts(ctx, productID)
	if err != nil {
		return rbac.Resource{}, fmt.Errorf("sensitivity: product %d: %w", productID, err)
	}
	country, err := r.optionalCountry(ctx, rbac.KindVendor, facts.VendorID)
	if err != nil {
		return rbac.Resource{}, fmt.Errorf("sensitivity: product %d vendor: %w", productID, err)
	}
	return rbac.Resource{
		Kind:    rbac.KindProduct,
		ID:      productID,
		OwnerID: facts.VendorID,
		Sensitivity: rbac.Sensitivity{
			IsControlled: anyControlled(facts.CategoryControlled),
			Jurisdiction: rbac.CanonicalJurisdiction(country),
		},
	}, nil
}

// Order classifies an order: controlled when any item's product is controlled;
// jurisdiction is the customer's declared country. Item products and the
// customer profile are loaded concurrently and all awaited before returning.
func (r *Resolver) Order(ctx context.Context, orderID int64) (rbac.Resource, error) {
	facts, err := r.source.OrderFacts(ctx, orderID)
	if err != nil {
		return rbac.Resource{}, fmt.Errorf("sensitivity: order %d: %w", orderID, err)
	}

	var (
		mu         sync.Mutex
		controlled bool
		country    string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	g.Go(func() error {
		c, err := r.optionalCountry(gctx, rbac.KindCustomer, facts.CustomerID)
		if err != nil {
			return fmt.Errorf("customer %d: %w", facts.CustomerID, err)
		}
		mu.Lock()
		country = c
		mu.Unlock()
		return nil
	})
	for _, productID := range uniqueIDs(facts.ProductIDs) {
		productID := productID
		g.Go(func() error {
			pf, err := r.source.ProductFacts(gctx, productID)
			if err != nil {
				return fmt.Errorf("item product %d: %w", productID, err)
			}
			if anyControlled(pf.CategoryControlled) {
				mu.Lock()
				controlled = true
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rbac.Resource{}, fmt.Errorf("sensitivity: order %d: %w", orderID, err)
	}
	return rbac.Resource{
		Kind:    rbac.KindOrder,
		ID:      orderID,
		OwnerID: facts.CustomerID,
		Sensitivity: rbac.Sensitivity{
			IsControlled: controlled,
			Jurisdiction: rbac.CanonicalJurisdiction(country),
		},
	}, nil
}

// Profile classifies a vendor or customer by its onboarding profile.
func (r *Resolver) Profile(ctx context.Context, kind rbac.ResourceKind, actorID int64) (rbac.Resource, error) {
	if kind != rbac.KindVendor && kind != rbac.KindCustomer {
		return rbac.Resource{}, fmt.Errorf("%w: %s is not a profile kind", shared.ErrValidation, kind)
	}
	facts, err := r.source.ProfileFacts(ctx, kind, actorID)
	if err != nil {
		return rbac.Resource{}, fmt.Errorf("sensitivity: %s %d: %w", kind, actorID, err)
	}
	return rbac.Resource{
		Kind:    kind,
		ID:      actorID,
		OwnerID: actorID,
		Sensitivity: rbac.Sensitivity{
			IsControlled: facts.ControlledItems,
			Jurisdiction: rbac.CanonicalJurisdiction(facts.Country),
		},
	}, nil
}

// Vendor classifies a vendor profile.
func (r *Resolver) Vendor(ctx context.Context, actorID int64) (rbac.Resource, error) {
	return r.Profile(ctx, rbac.KindVendor, actorID)
}

// Customer classifies a customer profile.
func (r *Resolver) Customer(ctx context.Context, actorID int64) (rbac.Resource, error) {
	return r.Profile(ctx, rbac.KindCustomer, actorID)
}

// optionalCountry returns the owner's country, or "" when the owner has no
// profile yet. An empty jurisdiction is handled by the evaluator's rules.
func (r *Resolver) optionalCountry(ctx context.Context, kind rbac.ResourceKind, actorID int64) (string, error) {
	if actorID <= 0 {
		return "", nil
	}
	facts, err := r.source.ProfileFacts(ctx, kind, actorID)
	if errors.Is(err, shared.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return facts.Country, nil
}

func anyControlled(flags []bool) bool {
	for _, f := range flags {
		if f {
			return true
		}
	}
	return false
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
