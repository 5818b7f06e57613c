package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/souq/internal/rbac"
)

// NewPermissionStore selects the assignment store named by PERMISSION_STORE.
// The Postgres store gets the catalog seeded so grants can reference it.
func NewPermissionStore(ctx context.Context, cfg *Config, pool *pgxpool.Pool, client redis.UniversalClient, catalog *rbac.Catalog) (rbac.Store, error) {
	switch cfg.PermissionStore {
	case StorePostgres:
		store := rbac.NewPostgresStore(pool)
		if err := store.EnsureCatalog(ctx, catalog); err != nil {
			return nil, fmt.Errorf("seed permission catalog: %w", err)
		}
		return store, nil
	case StoreRedis:
		if client == nil {
			return nil, fmt.Errorf("redis permission store needs a redis client")
		}
		return rbac.NewRedisStore(client), nil
	case StoreMemory:
		return rbac.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown permission store %q", cfg.PermissionStore)
	}
}
