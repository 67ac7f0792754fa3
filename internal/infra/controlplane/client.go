// Package controlplane implements the HTTP client for the remote command
// control plane: command dispatch, invocation status queries, and target
// health updates. All failures are reported as *APIError.
package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vietddude/cmdwatch/internal/core/domain"
	"github.com/vietddude/cmdwatch/internal/metrics"
)

// Config holds control-plane connection configuration.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client is a shared, concurrency-safe control-plane client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new control-plane client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// SendCommandRequest is the payload for dispatching a command.
type SendCommandRequest struct {
	Script      string   `json:"script"`
	Comment     string   `json:"comment,omitempty"`
	Targets     []string `json:"targets"`
	ClientToken string   `json:"client_token,omitempty"`
}

type sendCommandResponse struct {
	CommandID string `json:"command_id"`
}

type invocationResponse struct {
	CommandID string `json:"command_id"`
	TargetID  string `json:"target_id"`
	Status    string `json:"status"`
}

type faultResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SendCommand dispatches a command to the given targets and returns the
// command identifier assigned by the control plane.
func (c *Client) SendCommand(ctx context.Context, req SendCommandRequest) (string, error) {
	const op = "send_command"
	var resp sendCommandResponse
	if err := c.do(ctx, op, http.MethodPost, "/v1/commands", req, &resp); err != nil {
		return "", err
	}
	if resp.CommandID == "" {
		return "", responseError(op, fmt.Errorf("response missing command_id"))
	}
	return resp.CommandID, nil
}

// CommandStatus returns the current invocation status of a command on a
// target.
func (c *Client) CommandStatus(ctx context.Context, commandID, targetID string) (domain.InvocationStatus, error) {
	const op = "command_status"
	path := fmt.Sprintf("/v1/commands/%s/invocations/%s", commandID, targetID)

	var resp invocationResponse
	if err := c.do(ctx, op, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}

	status, err := domain.ParseInvocationStatus(resp.Status)
	if err != nil {
		return "", responseError(op, err)
	}
	return status, nil
}

// SetTargetHealth pushes a target health update. Fire-and-forget: the call
// is not polled and errors are surfaced to the caller for classification.
func (c *Client) SetTargetHealth(ctx context.Context, targetID string, state domain.HealthState) error {
	const op = "set_target_health"
	path := fmt.Sprintf("/v1/targets/%s/health", targetID)
	body := map[string]string{"state": string(state)}
	return c.do(ctx, op, http.MethodPut, path, body, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	metrics.ControlPlaneRequestsTotal.WithLabelValues(op).Inc()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return c.fail(op, &APIError{Kind: KindOther, Op: op, Err: fmt.Errorf("marshal request: %w", err)})
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return c.fail(op, &APIError{Kind: KindOther, Op: op, Err: fmt.Errorf("create request: %w", err)})
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(op, classifyTransport(op, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(op, responseError(op, fmt.Errorf("read response: %w", err)))
	}

	if resp.StatusCode != http.StatusOK {
		var fault faultResponse
		if jsonErr := json.Unmarshal(data, &fault); jsonErr == nil && fault.Code != "" {
			return c.fail(op, serviceError(op, fault.Code,
				fmt.Errorf("http %d: %s", resp.StatusCode, fault.Message)))
		}
		return c.fail(op, responseError(op,
			fmt.Errorf("http %d: %s", resp.StatusCode, string(data))))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return c.fail(op, responseError(op, fmt.Errorf("parse response: %w", err)))
		}
	}
	return nil
}

func (c *Client) fail(op string, apiErr *APIError) error {
	metrics.ControlPlaneErrorsTotal.WithLabelValues(op, apiErr.Kind.String()).Inc()
	return apiErr
}
