package controlplane

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
)

type timeoutNetError struct{}

func (timeoutNetError) Error() string   { return "i/o timeout" }
func (timeoutNetError) Timeout() bool   { return true }
func (timeoutNetError) Temporary() bool { return true }

func TestClassifyTransport(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantKind    ErrorKind
		wantTimeout bool
		wantIO      bool
	}{
		{
			name:     "context deadline",
			err:      fmt.Errorf("request: %w", context.DeadlineExceeded),
			wantKind: KindTimeout,
		},
		{
			name: "dial refused",
			err: &url.Error{Op: "Get", URL: "http://x", Err: &net.OpError{
				Op: "dial", Err: errors.New("connection refused"),
			}},
			wantKind: KindDispatch,
			wantIO:   true,
		},
		{
			name: "read timeout on connection",
			err: &url.Error{Op: "Get", URL: "http://x", Err: &net.OpError{
				Op: "read", Err: timeoutNetError{},
			}},
			wantKind:    KindDispatch,
			wantTimeout: true,
		},
		{
			name:     "url error timeout",
			err:      &url.Error{Op: "Get", URL: "http://x", Err: timeoutNetError{}},
			wantKind: KindTimeout,
		},
		{
			name:     "plain error",
			err:      errors.New("something broke"),
			wantKind: KindOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := classifyTransport("test_op", tt.err)
			if apiErr.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", apiErr.Kind, tt.wantKind)
			}
			if apiErr.DispatchTimeout != tt.wantTimeout {
				t.Errorf("DispatchTimeout = %v, want %v", apiErr.DispatchTimeout, tt.wantTimeout)
			}
			if apiErr.DispatchIO != tt.wantIO {
				t.Errorf("DispatchIO = %v, want %v", apiErr.DispatchIO, tt.wantIO)
			}
			if !errors.Is(apiErr, tt.err) && apiErr.Err != tt.err {
				t.Error("original error should be preserved")
			}
		})
	}
}

func TestAPIError_Message(t *testing.T) {
	err := serviceError("set_target_health", FaultResourceContention, errors.New("http 409"))
	msg := err.Error()
	if msg != "set_target_health: service fault ResourceContention: http 409" {
		t.Errorf("unexpected message: %s", msg)
	}

	plain := &APIError{Kind: KindTimeout, Op: "command_status", Err: context.DeadlineExceeded}
	if plain.Error() != "command_status: timeout error: context deadline exceeded" {
		t.Errorf("unexpected message: %s", plain.Error())
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := timeoutNetError{}
	err := classifyTransport("op", &url.Error{Op: "Get", URL: "http://x", Err: inner})
	var netErr net.Error
	if !errors.As(err, &netErr) {
		t.Fatal("expected wrapped net.Error to be reachable")
	}
	if !netErr.Timeout() {
		t.Error("wrapped error should still report timeout")
	}
}
