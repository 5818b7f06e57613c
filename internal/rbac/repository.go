package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/souq/internal/platform/db"
	"github.com/odyssey-erp/souq/internal/shared"
)

// PostgresStore keeps assignments in the actor_permissions table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore backed by the provided pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// PermissionNames returns the actor's granted names ordered by name.
func (s *PostgresStore) PermissionNames(ctx context.Context, actorID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT permission_name FROM actor_permissions WHERE actor_id = $1 ORDER BY permission_name`, actorID)
	if err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("rbac: scan permissions: %w", err)
	}
	return names, nil
}

// HasPermission reports whether name is granted to actorID.
func (s *PostgresStore) HasPermission(ctx context.Context, actorID int64, name string) (bool, error) {
	var granted bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM actor_permissions WHERE actor_id = $1 AND permission_name = $2)`, actorID, name).Scan(&granted)
	if err != nil {
		return false, fmt.Errorf("rbac: has permission: %w", err)
	}
	return granted, nil
}

// SyncPermissions replaces the actor's set inside one transaction. Concurrent
// syncs for the same actor are serialised by an advisory lock.
func (s *PostgresStore) SyncPermissions(ctx context.Context, actorID int64, names []string) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, actorID); err != nil {
			return fmt.Errorf("rbac: lock actor: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM actor_permissions WHERE actor_id = $1`, actorID); err != nil {
			return fmt.Errorf("rbac: clear permissions: %w", err)
		}
		if len(names) == 0 {
			return nil
		}
		_, err := tx.Exec(ctx, `INSERT INTO actor_permissions (actor_id, permission_name, created_at)
SELECT $1, name, NOW() FROM unnest($2::text[]) AS name`, actorID, names)
		if err != nil {
			return fmt.Errorf("rbac: insert permissions: %w", err)
		}
		return nil
	})
}

// EnsureCatalog upserts every catalog permission so foreign keys resolve.
func (s *PostgresStore) EnsureCatalog(ctx context.Context, catalog *Catalog) error {
	batch := &pgx.Batch{}
	for _, p := range catalog.Permissions() {
		batch.Queue(`INSERT INTO permissions (name, description, is_controlled_variant)
VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description, is_controlled_variant = EXCLUDED.is_controlled_variant`,
			p.Name, p.Description, p.IsControlledVariant)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("rbac: ensure catalog: %w", err)
	}
	return nil
}

// Directory resolves the stored role of an actor.
type Directory interface {
	ActorRole(ctx context.Context, actorID int64) (Role, error)
}

// PostgresDirectory reads roles from the actors table.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory constructs a PostgresDirectory backed by pool.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

// ActorRole returns shared.ErrNotFound for unknown actors.
func (d *PostgresDirectory) ActorRole(ctx context.Context, actorID int64) (Role, error) {
	var raw string
	err := d.pool.QueryRow(ctx, `SELECT role FROM actors WHERE id = $1`, actorID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("actor %d: %w", actorID, shared.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("rbac: actor role: %w", err)
	}
	role, ok := ParseRole(raw)
	if !ok {
		return "", fmt.Errorf("rbac: actor %d has unknown role %q", actorID, raw)
	}
	return role, nil
}

// CheckSyncTarget rejects permission grants for anyone but admins. Super
// admins need none, vendors and customers act through ownership.
func CheckSyncTarget(actorID int64, role Role) error {
	if role != RoleAdmin {
		return fmt.Errorf("%w: actor %d is %s, only admins hold permission grants", shared.ErrValidation, actorID, role)
	}
	return nil
}
