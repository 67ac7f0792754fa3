package watch

import (
	"errors"

	"github.com/vietddude/cmdwatch/internal/infra/controlplane"
)

// Retryable decides whether a failed control-plane call may reasonably be
// retried by the caller. Pure match over the structured error taxonomy:
// timeouts, malformed responses, and transport failures caused by a timeout
// or an I/O error are retryable; everything else is not.
func Retryable(err error) bool {
	var apiErr *controlplane.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.Kind {
	case controlplane.KindTimeout, controlplane.KindResponse:
		return true
	case controlplane.KindDispatch:
		return apiErr.DispatchTimeout || apiErr.DispatchIO
	}
	return false
}

// RetryableHealthUpdate is Retryable plus the health-update-specific rule:
// a service fault with code ResourceContention signals a transient
// server-side lock and is retryable. Only the health-update path applies it.
func RetryableHealthUpdate(err error) bool {
	if Retryable(err) {
		return true
	}

	var apiErr *controlplane.APIError
	if errors.As(err, &apiErr) && apiErr.Kind == controlplane.KindService {
		return apiErr.FaultCode == controlplane.FaultResourceContention
	}
	return false
}
