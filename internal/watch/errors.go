package watch

import (
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/cmdwatch/internal/core/domain"
)

// TransportError terminates a watch when the status query itself fails.
// Retryable carries the classifier verdict for the underlying error; the
// poller never retries internally.
type TransportError struct {
	CommandID string
	TargetID  string
	Elapsed   time.Duration
	Retryable bool
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("command %s on target %s: status query failed after %s: %v",
		e.CommandID, e.TargetID, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// OperationFailedError terminates a watch when the invocation reports the
// Failed status and Failed was not the desired outcome. Never retryable.
type OperationFailedError struct {
	CommandID string
	TargetID  string
	Elapsed   time.Duration
}

func (e *OperationFailedError) Error() string {
	return fmt.Sprintf("command %s on target %s reported failure after %s",
		e.CommandID, e.TargetID, e.Elapsed.Round(time.Millisecond))
}

// PollTimeoutError terminates a watch when the time budget runs out before
// the desired status is observed. Always retryable: a fresh invocation with
// a new budget may still succeed.
type PollTimeoutError struct {
	CommandID string
	TargetID  string
	Desired   domain.InvocationStatus
	Elapsed   time.Duration
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("command %s on target %s did not reach %s in time (elapsed %s)",
		e.CommandID, e.TargetID, e.Desired, e.Elapsed.Round(time.Millisecond))
}

// IsRetryable reports the advisory retry flag attached to a terminal watch
// error. It is metadata for the caller's own retry policy; the poller does
// not act on it. Unknown errors are not retryable.
func IsRetryable(err error) bool {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Retryable
	}
	var timeoutErr *PollTimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}
	return false
}
