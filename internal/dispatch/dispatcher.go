// Package dispatch submits commands through the control plane and drives
// the queue of watch jobs that follow each invocation to a terminal state.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/cmdwatch/internal/core/domain"
	"github.com/vietddude/cmdwatch/internal/infra/controlplane"
	redisclient "github.com/vietddude/cmdwatch/internal/infra/redis"
	"github.com/vietddude/cmdwatch/internal/infra/storage"
)

// CommandSender dispatches a command and returns its control-plane id.
type CommandSender interface {
	SendCommand(ctx context.Context, req controlplane.SendCommandRequest) (string, error)
}

// JobQueue is the watch-job queue shared by the dispatcher and workers.
type JobQueue interface {
	PushJob(ctx context.Context, job redisclient.WatchJob) error
	PopJob(ctx context.Context) (redisclient.WatchJob, bool, error)
	QueueDepth(ctx context.Context) (int64, error)
}

// Options control how a dispatched command is watched.
type Options struct {
	Desired  domain.InvocationStatus
	Timeout  time.Duration
	Interval time.Duration
}

// Dispatcher submits commands and enqueues one watch job per target.
type Dispatcher struct {
	sender CommandSender
	repo   storage.InvocationRepository
	queue  JobQueue
	log    *slog.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(sender CommandSender, repo storage.InvocationRepository, queue JobQueue) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		repo:   repo,
		queue:  queue,
		log:    slog.Default().With("component", "dispatch"),
	}
}

// Dispatch sends script to the given targets and registers a watch job per
// invocation. Returns the command id assigned by the control plane.
func (d *Dispatcher) Dispatch(ctx context.Context, script, comment string, targets []string, opts Options) (string, error) {
	if len(targets) == 0 {
		return "", fmt.Errorf("no targets given")
	}
	if opts.Desired == "" {
		opts.Desired = domain.StatusSuccess
	}

	commandID, err := d.sender.SendCommand(ctx, controlplane.SendCommandRequest{
		Script:      script,
		Comment:     comment,
		Targets:     targets,
		ClientToken: uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to send command: %w", err)
	}

	d.log.Info("command dispatched", "command", commandID, "targets", len(targets))

	for _, targetID := range targets {
		inv := &domain.Invocation{
			CommandID:    commandID,
			TargetID:     targetID,
			Status:       domain.StatusPending,
			DispatchedAt: time.Now(),
		}
		if err := d.repo.Save(ctx, inv); err != nil {
			d.log.Error("Failed to save invocation", "command", commandID, "target", targetID, "error", err)
		}

		job := redisclient.WatchJob{
			CommandID: commandID,
			TargetID:  targetID,
			Desired:   string(opts.Desired),
			Timeout:   opts.Timeout,
			Interval:  opts.Interval,
		}
		if err := d.queue.PushJob(ctx, job); err != nil {
			return commandID, fmt.Errorf("failed to enqueue watch job for target %s: %w", targetID, err)
		}
	}

	return commandID, nil
}
