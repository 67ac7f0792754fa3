// Package worker holds background maintenance workers.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/cmdwatch/internal/infra/storage"
)

// Pruner deletes terminal invocations past the retention period.
type Pruner struct {
	retention time.Duration
	repo      storage.InvocationRepository
	log       *slog.Logger
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, repo storage.InvocationRepository) *Pruner {
	return &Pruner{
		retention: retention,
		repo:      repo,
		log:       slog.Default().With("component", "pruner"),
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Check at 10% of the retention period, clamped to [1m, 1h]
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	cutoff := time.Now().Add(-p.retention)

	deleted, err := p.repo.DeleteTerminalOlderThan(ctx, cutoff)
	if err != nil {
		p.log.Error("Failed to prune invocations", "error", err)
		return
	}
	if deleted > 0 {
		p.log.Info("Pruned old invocations", "deleted", deleted)
	}
}
