// Package watch implements the bounded polling loop that follows a
// dispatched command invocation until it reaches a desired terminal status,
// fails, or exhausts its time budget.
package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/cmdwatch/internal/core/domain"
	"github.com/vietddude/cmdwatch/internal/metrics"
)

// warmupDelay is the fixed wait before the very first status query,
// independent of the configured interval.
const warmupDelay = 1 * time.Second

// StatusClient queries the current invocation status of a command on a
// target. Implementations must be safe for concurrent use by independent
// watch invocations.
type StatusClient interface {
	CommandStatus(ctx context.Context, commandID, targetID string) (domain.InvocationStatus, error)
}

// Poller drives the watch loop. One outstanding query at a time per
// invocation; concurrent invocations share only the stateless client.
type Poller struct {
	client StatusClient
	log    *slog.Logger

	// Clock hooks, overridable in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a Poller over the given status client.
func NewPoller(client StatusClient) *Poller {
	return &Poller{
		client: client,
		log:    slog.Default().With("component", "watch"),
		now:    time.Now,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Await polls the invocation status of commandID on targetID until it
// equals desired, the invocation reports Failed, a query fails, or timeout
// elapses. The first query happens after a fixed 1s warm-up; subsequent
// queries are spaced by interval. Exactly one of the observed status or a
// terminal error is returned:
//
//   - *TransportError when a query fails (retryable per the classifier,
//     never retried here),
//   - *OperationFailedError when Failed is observed and was not desired
//     (never retryable),
//   - *PollTimeoutError when the budget runs out (always retryable).
//
// The timeout is cooperative: it is checked at iteration boundaries, so a
// query already in flight can overrun it by one round trip.
func (p *Poller) Await(
	ctx context.Context,
	commandID, targetID string,
	desired domain.InvocationStatus,
	timeout, interval time.Duration,
) (domain.InvocationStatus, error) {
	p.log.Info("watching invocation",
		"command", commandID,
		"target", targetID,
		"desired", desired,
		"timeout", timeout,
		"interval", interval,
	)

	start := p.now()
	var elapsed time.Duration

	for attempt := 0; ; attempt++ {
		elapsed = p.now().Sub(start)
		if elapsed > timeout {
			break
		}

		delay := interval
		if attempt == 0 {
			delay = warmupDelay
		}
		if err := p.sleep(ctx, delay); err != nil {
			return "", err
		}

		metrics.PollQueriesTotal.Inc()
		status, err := p.client.CommandStatus(ctx, commandID, targetID)
		if err != nil {
			return "", p.finish(start, "transport_error", &TransportError{
				CommandID: commandID,
				TargetID:  targetID,
				Elapsed:   p.now().Sub(start),
				Retryable: Retryable(err),
				Err:       err,
			})
		}

		p.log.Info("poll",
			"command", commandID,
			"status", status,
			"elapsed", elapsed,
		)

		if desired != domain.StatusFailed && status == domain.StatusFailed {
			return "", p.finish(start, "operation_failed", &OperationFailedError{
				CommandID: commandID,
				TargetID:  targetID,
				Elapsed:   p.now().Sub(start),
			})
		}

		if status == desired {
			p.finish(start, "success", nil)
			return status, nil
		}
	}

	return "", p.finish(start, "timeout", &PollTimeoutError{
		CommandID: commandID,
		TargetID:  targetID,
		Desired:   desired,
		Elapsed:   elapsed,
	})
}

func (p *Poller) finish(start time.Time, outcome string, err error) error {
	metrics.PollOutcomesTotal.WithLabelValues(outcome).Inc()
	metrics.PollDuration.Observe(p.now().Sub(start).Seconds())
	return err
}
