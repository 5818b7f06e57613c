package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/souq/internal/platform/db"
	"github.com/odyssey-erp/souq/internal/rbac"
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

const profileColumns = `op.id, op.kind, op.actor_id, op.status, op.current_step, op.controlled_items,
COALESCE(op.country, ''), op.rejection_reason, op.review_note, op.reviewed_by, op.reviewed_at,
op.submitted_at, op.created_at, op.updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var (
		p       Profile
		kind    string
		status  string
		current *int32
	)
	err := row.Scan(&p.ID, &kind, &p.ActorID, &status, &current, &p.ControlledItems,
		&p.Country, &p.RejectionReason, &p.ReviewNote, &p.ReviewedBy, &p.ReviewedAt,
		&p.SubmittedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Kind = rbac.ResourceKind(kind)
	p.Status = Status(status)
	if current != nil {
		step := int(*current)
		p.CurrentStep = &step
	}
	return &p, nil
}

func (r *repository) GetProfile(ctx context.Context, kind rbac.ResourceKind, actorID int64) (*Profile, error) {
	return r.getProfile(ctx, kind, actorID, "")
}

func (r *repository) GetProfileForUpdate(ctx context.Context, kind rbac.ResourceKind, actorID int64) (*Profile, error) {
	return r.getProfile(ctx, kind, actorID, " FOR UPDATE")
}

func (r *repository) getProfile(ctx context.Context, kind rbac.ResourceKind, actorID int64, lock string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM onboarding_profiles op WHERE op.kind = $1 AND op.actor_id = $2` + lock
	p, err := scanProfile(r.db.QueryRow(ctx, query, string(kind), actorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	steps, err := r.loadSteps(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Steps = steps
	return p, nil
}

func (r *repository) loadSteps(ctx context.Context, profileID int64) (map[int]json.RawMessage, error) {
	rows, err := r.db.Query(ctx, `SELECT step, payload FROM onboarding_steps WHERE profile_id = $1`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	steps := make(map[int]json.RawMessage)
	for rows.Next() {
		var (
			step    int32
			payload []byte
		)
		if err := rows.Scan(&step, &payload); err != nil {
			return nil, err
		}
		steps[int(step)] = json.RawMessage(payload)
	}
	return steps, rows.Err()
}

func (r *repository) SaveProfile(ctx context.Context, p *Profile) error {
	const query = `INSERT INTO onboarding_profiles
(kind, actor_id, status, current_step, controlled_items, country, rejection_reason, review_note,
 reviewed_by, reviewed_at, submitted_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, NOW(), NOW())
ON CONFLICT (kind, actor_id) DO UPDATE SET
 status = EXCLUDED.status,
 current_step = EXCLUDED.current_step,
 controlled_items = EXCLUDED.controlled_items,
 country = EXCLUDED.country,
 rejection_reason = EXCLUDED.rejection_reason,
 review_note = EXCLUDED.review_note,
 reviewed_by = EXCLUDED.reviewed_by,
 reviewed_at = EXCLUDED.reviewed_at,
 submitted_at = EXCLUDED.submitted_at,
 updated_at = NOW()
RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		string(p.Kind), p.ActorID, string(p.Status), p.CurrentStep, p.ControlledItems, p.Country,
		p.RejectionReason, p.ReviewNote, p.ReviewedBy, p.ReviewedAt, p.SubmittedAt,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *repository) SaveStep(ctx context.Context, profileID int64, step int, payload json.RawMessage) error {
	_, err := r.db.Exec(ctx, `INSERT INTO onboarding_steps (profile_id, step, payload, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (profile_id, step) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`,
		profileID, step, []byte(payload))
	return err
}

func (r *repository) SetActorActive(ctx context.Context, actorID int64, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE actors SET is_active = $2, updated_at = NOW() WHERE id = $1`, actorID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("actor %d: %w", actorID, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) ListProfiles(ctx context.Context, req ListProfilesRequest, pred visibility.Predicate) ([]Profile, int, error) {
	conditions := []string{"op.kind = $1"}
	args := []interface{}{string(req.Kind)}
	argPos := 2

	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("op.status = $%d", argPos))
		args = append(args, string(*req.Status))
		argPos++
	}
	clause, predArgs, argPos := pred.Render(argPos)
	if clause != "" {
		conditions = append(conditions, clause)
		args = append(args, predArgs...)
	}
	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM onboarding_profiles op "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM onboarding_profiles op %s ORDER BY op.updated_at DESC, op.id DESC LIMIT $%d OFFSET $%d`,
		profileColumns, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	profiles := make([]Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, err
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return profiles, total, nil
}
