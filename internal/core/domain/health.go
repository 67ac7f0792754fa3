package domain

import "time"

// HealthState is the health value pushed to the control plane for a target.
type HealthState string

const (
	HealthHealthy   HealthState = "Healthy"
	HealthUnhealthy HealthState = "Unhealthy"
)

// TargetHealth is the last known health of a target agent.
type TargetHealth struct {
	TargetID   string      `json:"target_id"   db:"target_id"`
	State      HealthState `json:"state"       db:"state"`
	CheckedAt  time.Time   `json:"checked_at"  db:"checked_at"`
	ReportedAt time.Time   `json:"reported_at" db:"reported_at"`
}
