package domain

import (
	"fmt"
	"time"
)

// Command represents a remote command dispatched through the control plane.
type Command struct {
	ID        string    `json:"id"`
	Script    string    `json:"script"`
	Comment   string    `json:"comment"`
	Targets   []string  `json:"targets"`
	CreatedAt time.Time `json:"created_at"`
}

// Invocation tracks the execution of a command on a single target.
type Invocation struct {
	CommandID    string           `json:"command_id"    db:"command_id"`
	TargetID     string           `json:"target_id"     db:"target_id"`
	Status       InvocationStatus `json:"status"        db:"status"`
	Requeues     int              `json:"requeues"      db:"requeues"`
	LastError    string           `json:"last_error"    db:"last_error"`
	DispatchedAt time.Time        `json:"dispatched_at" db:"dispatched_at"`
	UpdatedAt    time.Time        `json:"updated_at"    db:"updated_at"`
}

// InvocationStatus is the lifecycle state of an invocation as reported
// by the control plane. The set is closed; values are compared by equality.
type InvocationStatus string

const (
	StatusPending    InvocationStatus = "Pending"
	StatusInProgress InvocationStatus = "InProgress"
	StatusDelayed    InvocationStatus = "Delayed"
	StatusSuccess    InvocationStatus = "Success"
	StatusCancelled  InvocationStatus = "Cancelled"
	StatusTimedOut   InvocationStatus = "TimedOut"
	StatusFailed     InvocationStatus = "Failed"
	StatusCancelling InvocationStatus = "Cancelling"
)

var knownStatuses = map[InvocationStatus]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusDelayed:    true,
	StatusSuccess:    true,
	StatusCancelled:  true,
	StatusTimedOut:   true,
	StatusFailed:     true,
	StatusCancelling: true,
}

// ParseInvocationStatus validates a status string from the wire.
func ParseInvocationStatus(s string) (InvocationStatus, error) {
	status := InvocationStatus(s)
	if !knownStatuses[status] {
		return "", fmt.Errorf("unknown invocation status %q", s)
	}
	return status, nil
}

// IsTerminal reports whether the status is a terminal state.
func (s InvocationStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusCancelled, StatusTimedOut, StatusFailed:
		return true
	}
	return false
}
