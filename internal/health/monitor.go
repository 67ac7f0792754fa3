package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/cmdwatch/internal/core/domain"
	"github.com/vietddude/cmdwatch/internal/infra/storage"
	"github.com/vietddude/cmdwatch/internal/metrics"
	"github.com/vietddude/cmdwatch/internal/watch"
)

// HealthReporter pushes target health updates to the control plane.
type HealthReporter interface {
	SetTargetHealth(ctx context.Context, targetID string, state domain.HealthState) error
}

// Target is one agent the monitor probes.
type Target struct {
	ID            string
	AgentAddr     string
	ProbeInterval time.Duration
}

// Monitor probes target agents on their configured interval and pushes
// health transitions to the control plane. A push that fails retryably is
// retried on the next tick; any other push failure is dropped and the
// transition is reported again only on the next state change.
type Monitor struct {
	targets  []Target
	prober   Prober
	reporter HealthReporter
	repo     storage.TargetRepository
	log      *slog.Logger

	mu       sync.RWMutex
	statuses map[string]TargetStatus
	pending  map[string]domain.HealthState
}

// NewMonitor creates a new health monitor.
func NewMonitor(targets []Target, prober Prober, reporter HealthReporter, repo storage.TargetRepository) *Monitor {
	return &Monitor{
		targets:  targets,
		prober:   prober,
		reporter: reporter,
		repo:     repo,
		log:      slog.Default().With("component", "health-monitor"),
		statuses: make(map[string]TargetStatus),
		pending:  make(map[string]domain.HealthState),
	}
}

// Start probes each target on its interval until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.log.Info("Starting health monitor", "targets", len(m.targets))

	var wg sync.WaitGroup
	for _, target := range m.targets {
		wg.Add(1)
		go func(t Target) {
			defer wg.Done()
			m.watchTarget(ctx, t)
		}(target)
	}
	wg.Wait()
	m.log.Info("Health monitor stopped")
}

func (m *Monitor) watchTarget(ctx context.Context, t Target) {
	interval := t.ProbeInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	m.checkTarget(ctx, t)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkTarget(ctx, t)
		}
	}
}

func (m *Monitor) checkTarget(ctx context.Context, t Target) {
	state, err := m.prober.Probe(ctx, t.AgentAddr)
	now := time.Now()

	status := TargetStatus{
		TargetID:  t.ID,
		State:     state,
		LastProbe: now,
	}
	if err != nil {
		status.LastError = err.Error()
		m.log.Warn("Probe failed", "target", t.ID, "agent", t.AgentAddr, "error", err)
	}

	m.mu.Lock()
	prev, known := m.statuses[t.ID]
	_, retryPending := m.pending[t.ID]
	needPush := !known || prev.State != state || retryPending
	m.mu.Unlock()

	reported := known && prev.Reported && prev.State == state

	if needPush {
		reported = m.push(ctx, t.ID, state, now)
	}

	status.Reported = reported
	m.mu.Lock()
	m.statuses[t.ID] = status
	m.mu.Unlock()
}

// push reports one health transition. Returns true when the control plane
// accepted the update.
func (m *Monitor) push(ctx context.Context, targetID string, state domain.HealthState, checkedAt time.Time) bool {
	err := m.reporter.SetTargetHealth(ctx, targetID, state)
	if err == nil {
		metrics.HealthPushesTotal.WithLabelValues(string(state)).Inc()
		m.log.Info("Pushed target health", "target", targetID, "state", state)

		m.mu.Lock()
		delete(m.pending, targetID)
		m.mu.Unlock()

		if m.repo != nil {
			th := &domain.TargetHealth{
				TargetID:   targetID,
				State:      state,
				CheckedAt:  checkedAt,
				ReportedAt: time.Now(),
			}
			if saveErr := m.repo.SaveHealth(ctx, th); saveErr != nil {
				m.log.Error("Failed to record target health", "target", targetID, "error", saveErr)
			}
		}
		return true
	}

	if watch.RetryableHealthUpdate(err) {
		m.log.Warn("Health push failed, will retry next tick", "target", targetID, "error", err)
		m.mu.Lock()
		m.pending[targetID] = state
		m.mu.Unlock()
		return false
	}

	m.log.Error("Health push failed permanently", "target", targetID, "error", err)
	m.mu.Lock()
	delete(m.pending, targetID)
	m.mu.Unlock()
	return false
}

// CheckHealth returns the current fleet report for the HTTP endpoints.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report := Report{
		SystemStatus: StatusHealthy,
		Targets:      make(map[string]TargetStatus, len(m.statuses)),
	}

	unhealthy := 0
	for id, status := range m.statuses {
		report.Targets[id] = status
		if status.State != domain.HealthHealthy {
			unhealthy++
		}
	}

	if len(m.statuses) > 0 {
		if unhealthy == len(m.statuses) {
			report.SystemStatus = StatusCritical
		} else if unhealthy > 0 {
			report.SystemStatus = StatusDegraded
		}
	}
	return report
}
