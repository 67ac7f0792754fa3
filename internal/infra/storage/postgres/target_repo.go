package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vietddude/cmdwatch/internal/core/domain"
)

// TargetRepo implements storage.TargetRepository using PostgreSQL.
type TargetRepo struct {
	db *DB
}

// NewTargetRepo creates a new PostgreSQL target repository.
func NewTargetRepo(db *DB) *TargetRepo {
	return &TargetRepo{db: db}
}

// SaveHealth upserts the last known health of a target.
func (r *TargetRepo) SaveHealth(ctx context.Context, th *domain.TargetHealth) error {
	query := `
		INSERT INTO target_health (target_id, state, checked_at, reported_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (target_id) DO UPDATE
		SET state = EXCLUDED.state,
		    checked_at = EXCLUDED.checked_at,
		    reported_at = EXCLUDED.reported_at
	`
	_, err := r.db.ExecContext(ctx, query, th.TargetID, th.State, th.CheckedAt, th.ReportedAt)
	if err != nil {
		return fmt.Errorf("failed to save target health: %w", err)
	}
	return nil
}

// Get retrieves the health record for a target.
func (r *TargetRepo) Get(ctx context.Context, targetID string) (*domain.TargetHealth, error) {
	query := `
		SELECT target_id, state, checked_at, reported_at
		FROM target_health
		WHERE target_id = $1
	`
	var th domain.TargetHealth
	err := r.db.GetContext(ctx, &th, query, targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get target health: %w", err)
	}
	return &th, nil
}

// List returns health records for all known targets.
func (r *TargetRepo) List(ctx context.Context) ([]*domain.TargetHealth, error) {
	query := `SELECT target_id, state, checked_at, reported_at FROM target_health ORDER BY target_id`
	var ths []*domain.TargetHealth
	if err := r.db.SelectContext(ctx, &ths, query); err != nil {
		return nil, fmt.Errorf("failed to list target health: %w", err)
	}
	return ths, nil
}
