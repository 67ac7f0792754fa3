// Package storage defines the repository interfaces shared by the
// PostgreSQL and in-memory implementations.
package storage

import (
	"context"
	"time"

	"github.com/vietddude/cmdwatch/internal/core/domain"
)

// InvocationRepository persists command invocations and their outcomes.
type InvocationRepository interface {
	Save(ctx context.Context, inv *domain.Invocation) error
	Get(ctx context.Context, commandID, targetID string) (*domain.Invocation, error)
	UpdateStatus(ctx context.Context, commandID, targetID string, status domain.InvocationStatus, lastError string) error
	MarkRequeued(ctx context.Context, commandID, targetID, lastError string) error
	ListRecent(ctx context.Context, limit int) ([]*domain.Invocation, error)
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// TargetRepository persists the last known health of target agents.
type TargetRepository interface {
	SaveHealth(ctx context.Context, th *domain.TargetHealth) error
	Get(ctx context.Context, targetID string) (*domain.TargetHealth, error)
	List(ctx context.Context) ([]*domain.TargetHealth, error)
}
