package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vietddude/cmdwatch/internal/core/domain"
	redisclient "github.com/vietddude/cmdwatch/internal/infra/redis"
	"github.com/vietddude/cmdwatch/internal/infra/storage"
	"github.com/vietddude/cmdwatch/internal/metrics"
	"github.com/vietddude/cmdwatch/internal/watch"
)

// StatusAwaiter follows one invocation until a terminal outcome.
type StatusAwaiter interface {
	Await(ctx context.Context, commandID, targetID string, desired domain.InvocationStatus, timeout, interval time.Duration) (domain.InvocationStatus, error)
}

// WorkerConfig holds configuration for a watch worker.
type WorkerConfig struct {
	MaxRequeues int           // Max caller-level retries per job (default: 3)
	EmptySleep  time.Duration // Sleep when queue empty (default: 5s)
}

// DefaultWorkerConfig returns default worker configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		MaxRequeues: 3,
		EmptySleep:  5 * time.Second,
	}
}

// Locker guards an invocation so two workers never watch it concurrently.
type Locker interface {
	Lock(ctx context.Context, commandID, targetID string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, commandID, targetID string) error
}

// Worker pops watch jobs from the queue and runs the poller on each. The
// poller never retries internally; the worker is the caller that acts on
// the advisory retryable flag by requeueing a bounded number of times.
type Worker struct {
	cfg    WorkerConfig
	queue  JobQueue
	poller StatusAwaiter
	repo   storage.InvocationRepository
	locker Locker
	log    *slog.Logger
}

// NewWorker creates a new watch worker.
func NewWorker(cfg WorkerConfig, queue JobQueue, poller StatusAwaiter, repo storage.InvocationRepository) *Worker {
	return &Worker{
		cfg:    cfg,
		queue:  queue,
		poller: poller,
		repo:   repo,
		log:    slog.Default().With("component", "watch-worker"),
	}
}

// SetLocker enables per-invocation locking. Without a locker, jobs are
// assumed to be delivered to a single worker pool member at a time.
func (w *Worker) SetLocker(locker Locker) {
	w.locker = locker
}

// Run starts the worker loop.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting watch worker")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Watch worker stopped")
			return nil
		default:
		}

		job, found, err := w.queue.PopJob(ctx)
		if err != nil {
			w.log.Error("Failed to pop watch job", "error", err)
			w.idle(ctx)
			continue
		}
		if !found {
			w.idle(ctx)
			continue
		}

		w.process(ctx, job)
	}
}

func (w *Worker) idle(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.cfg.EmptySleep):
	}
}

func (w *Worker) process(ctx context.Context, job redisclient.WatchJob) {
	if w.locker != nil {
		ttl := job.Timeout + time.Minute
		ok, err := w.locker.Lock(ctx, job.CommandID, job.TargetID, ttl)
		if err != nil {
			w.log.Error("Failed to take watch lock", "command", job.CommandID, "error", err)
		} else if !ok {
			w.log.Info("Invocation already being watched, skipping",
				"command", job.CommandID, "target", job.TargetID)
			return
		} else {
			defer func() {
				if err := w.locker.Unlock(context.WithoutCancel(ctx), job.CommandID, job.TargetID); err != nil {
					w.log.Error("Failed to release watch lock", "command", job.CommandID, "error", err)
				}
			}()
		}
	}

	status, err := w.poller.Await(ctx, job.CommandID, job.TargetID,
		domain.InvocationStatus(job.Desired), job.Timeout, job.Interval)

	if err == nil {
		if repoErr := w.repo.UpdateStatus(ctx, job.CommandID, job.TargetID, status, ""); repoErr != nil {
			w.log.Error("Failed to record invocation status", "command", job.CommandID, "error", repoErr)
		}
		w.log.Info("invocation reached desired status",
			"command", job.CommandID, "target", job.TargetID, "status", status)
		return
	}

	// Shutdown mid-watch: put the job back so a later run picks it up.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if pushErr := w.queue.PushJob(context.WithoutCancel(ctx), job); pushErr != nil {
			w.log.Error("Failed to requeue job on shutdown", "command", job.CommandID, "error", pushErr)
		}
		return
	}

	if watch.IsRetryable(err) && job.Requeues < w.cfg.MaxRequeues {
		job.Requeues++
		w.log.Warn("Watch failed, requeueing",
			"command", job.CommandID, "target", job.TargetID,
			"requeues", job.Requeues, "error", err)
		metrics.RequeuesTotal.Inc()
		if repoErr := w.repo.MarkRequeued(ctx, job.CommandID, job.TargetID, err.Error()); repoErr != nil {
			w.log.Error("Failed to record requeue", "command", job.CommandID, "error", repoErr)
		}
		if pushErr := w.queue.PushJob(ctx, job); pushErr != nil {
			w.log.Error("Failed to requeue job", "command", job.CommandID, "error", pushErr)
		}
		return
	}

	final := terminalStatus(err)
	w.log.Error("Watch failed permanently",
		"command", job.CommandID, "target", job.TargetID,
		"status", final, "error", err)
	if repoErr := w.repo.UpdateStatus(ctx, job.CommandID, job.TargetID, final, err.Error()); repoErr != nil {
		w.log.Error("Failed to record invocation failure", "command", job.CommandID, "error", repoErr)
	}
}

// terminalStatus maps a terminal watch error to the status recorded locally.
func terminalStatus(err error) domain.InvocationStatus {
	var timeoutErr *watch.PollTimeoutError
	if errors.As(err, &timeoutErr) {
		return domain.StatusTimedOut
	}
	return domain.StatusFailed
}
