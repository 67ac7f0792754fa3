// Package health probes target agents, pushes health transitions to the
// control plane, and exposes health and metrics endpoints.
package health

import (
	"time"

	"github.com/vietddude/cmdwatch/internal/core/domain"
)

// SystemStatus represents the overall health state of the watched fleet.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// TargetStatus is the monitor's view of a single target agent.
type TargetStatus struct {
	TargetID  string             `json:"target_id"`
	State     domain.HealthState `json:"state"`
	LastProbe time.Time          `json:"last_probe"`
	Reported  bool               `json:"reported"`
	LastError string             `json:"last_error,omitempty"`
}

// Report contains the full fleet health report.
type Report struct {
	SystemStatus SystemStatus            `json:"system_status"`
	Targets      map[string]TargetStatus `json:"targets"`
}
