package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/cmdwatch/internal/core/domain"
)

// InvocationRepo implements storage.InvocationRepository using PostgreSQL.
type InvocationRepo struct {
	db *DB
}

// NewInvocationRepo creates a new PostgreSQL invocation repository.
func NewInvocationRepo(db *DB) *InvocationRepo {
	return &InvocationRepo{db: db}
}

// Save upserts an invocation keyed by (command_id, target_id).
func (r *InvocationRepo) Save(ctx context.Context, inv *domain.Invocation) error {
	query := `
		INSERT INTO invocations (command_id, target_id, status, requeues, last_error, dispatched_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (command_id, target_id) DO UPDATE
		SET status = EXCLUDED.status,
		    requeues = EXCLUDED.requeues,
		    last_error = EXCLUDED.last_error,
		    updated_at = NOW()
	`
	dispatchedAt := inv.DispatchedAt
	if dispatchedAt.IsZero() {
		dispatchedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, query,
		inv.CommandID, inv.TargetID, inv.Status, inv.Requeues, inv.LastError, dispatchedAt)
	if err != nil {
		return fmt.Errorf("failed to save invocation: %w", err)
	}
	return nil
}

// Get retrieves an invocation by command and target.
func (r *InvocationRepo) Get(ctx context.Context, commandID, targetID string) (*domain.Invocation, error) {
	query := `
		SELECT command_id, target_id, status, requeues, last_error, dispatched_at, updated_at
		FROM invocations
		WHERE command_id = $1 AND target_id = $2
	`
	var inv domain.Invocation
	err := r.db.GetContext(ctx, &inv, query, commandID, targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invocation: %w", err)
	}
	return &inv, nil
}

// UpdateStatus records the terminal or intermediate status of an invocation.
func (r *InvocationRepo) UpdateStatus(
	ctx context.Context,
	commandID, targetID string,
	status domain.InvocationStatus,
	lastError string,
) error {
	query := `
		UPDATE invocations
		SET status = $3, last_error = $4, updated_at = NOW()
		WHERE command_id = $1 AND target_id = $2
	`
	_, err := r.db.ExecContext(ctx, query, commandID, targetID, status, lastError)
	if err != nil {
		return fmt.Errorf("failed to update invocation status: %w", err)
	}
	return nil
}

// MarkRequeued bumps the requeue counter after a retryable watch failure.
func (r *InvocationRepo) MarkRequeued(ctx context.Context, commandID, targetID, lastError string) error {
	query := `
		UPDATE invocations
		SET requeues = requeues + 1, last_error = $3, updated_at = NOW()
		WHERE command_id = $1 AND target_id = $2
	`
	_, err := r.db.ExecContext(ctx, query, commandID, targetID, lastError)
	if err != nil {
		return fmt.Errorf("failed to mark invocation requeued: %w", err)
	}
	return nil
}

// ListRecent returns the most recently updated invocations.
func (r *InvocationRepo) ListRecent(ctx context.Context, limit int) ([]*domain.Invocation, error) {
	query := `
		SELECT command_id, target_id, status, requeues, last_error, dispatched_at, updated_at
		FROM invocations
		ORDER BY updated_at DESC
		LIMIT $1
	`
	var invs []*domain.Invocation
	if err := r.db.SelectContext(ctx, &invs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list invocations: %w", err)
	}
	return invs, nil
}

// DeleteTerminalOlderThan removes terminal invocations updated before cutoff.
func (r *InvocationRepo) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM invocations
		WHERE updated_at < $1
		  AND status IN ('Success', 'Cancelled', 'TimedOut', 'Failed')
	`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune invocations: %w", err)
	}
	return res.RowsAffected()
}
