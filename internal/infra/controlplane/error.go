package controlplane

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrorKind partitions control-plane call failures into a closed set so
// retryability can be decided by matching on data instead of probing the
// underlying error chain.
type ErrorKind int

const (
	// KindOther is everything that does not fit a more specific kind.
	KindOther ErrorKind = iota
	// KindTimeout means the call as a whole timed out.
	KindTimeout
	// KindResponse means the service answered with a malformed or
	// uninterpretable response.
	KindResponse
	// KindDispatch means the request never completed at the transport
	// level. DispatchTimeout and DispatchIO carry the underlying cause.
	KindDispatch
	// KindService means the service rejected the request with a
	// structured fault; FaultCode carries the service-defined code.
	KindService
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindResponse:
		return "response"
	case KindDispatch:
		return "dispatch"
	case KindService:
		return "service"
	}
	return "other"
}

// FaultResourceContention is the service fault code signalling a transient
// server-side lock or race condition on the health-update path.
const FaultResourceContention = "ResourceContention"

// APIError is the structured error returned by every Client call.
type APIError struct {
	Kind            ErrorKind
	Op              string
	FaultCode       string
	DispatchTimeout bool
	DispatchIO      bool
	Err             error
}

func (e *APIError) Error() string {
	if e.FaultCode != "" {
		return fmt.Sprintf("%s: %s fault %s: %v", e.Op, e.Kind, e.FaultCode, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyTransport maps an http.Client error into the taxonomy.
func classifyTransport(op string, err error) *APIError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Kind: KindTimeout, Op: op, Err: err}
	}

	// Connection-level failures surface as *net.OpError inside the
	// *url.Error chain: dial, reset, refused, read timeouts.
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &APIError{
			Kind:            KindDispatch,
			Op:              op,
			DispatchTimeout: opErr.Timeout(),
			DispatchIO:      !opErr.Timeout(),
			Err:             err,
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &APIError{Kind: KindTimeout, Op: op, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &APIError{Kind: KindTimeout, Op: op, Err: err}
	}

	return &APIError{Kind: KindOther, Op: op, Err: err}
}

func responseError(op string, err error) *APIError {
	return &APIError{Kind: KindResponse, Op: op, Err: err}
}

func serviceError(op, code string, err error) *APIError {
	return &APIError{Kind: KindService, Op: op, FaultCode: code, Err: err}
}
