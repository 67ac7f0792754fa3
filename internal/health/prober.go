package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/vietddude/cmdwatch/internal/core/domain"
)

// Prober checks whether a target agent is alive.
type Prober interface {
	Probe(ctx context.Context, agentAddr string) (domain.HealthState, error)
}

// GRPCProber probes agents over the standard gRPC health-checking protocol.
// Connections are cached per address and shared across probes.
type GRPCProber struct {
	timeout time.Duration

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// NewGRPCProber creates a prober with the given per-probe timeout.
func NewGRPCProber(timeout time.Duration) *GRPCProber {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &GRPCProber{
		timeout: timeout,
		conns:   make(map[string]*grpc.ClientConn),
	}
}

func (p *GRPCProber) conn(addr string) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.conns[addr]; ok {
		return conn, nil
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", addr, err)
	}
	p.conns[addr] = conn
	return conn, nil
}

// Probe runs one health check against the agent at addr. An unreachable or
// slow agent is reported Unhealthy rather than as an error; errors are
// reserved for probe-side failures.
func (p *GRPCProber) Probe(ctx context.Context, addr string) (domain.HealthState, error) {
	conn, err := p.conn(addr)
	if err != nil {
		return domain.HealthUnhealthy, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(probeCtx, &healthpb.HealthCheckRequest{})
	if err != nil {
		switch status.Code(err) {
		case codes.Unavailable, codes.DeadlineExceeded, codes.NotFound, codes.Unimplemented:
			return domain.HealthUnhealthy, nil
		}
		return domain.HealthUnhealthy, fmt.Errorf("health check for %s: %w", addr, err)
	}

	if resp.Status == healthpb.HealthCheckResponse_SERVING {
		return domain.HealthHealthy, nil
	}
	return domain.HealthUnhealthy, nil
}

// Close closes all cached connections.
func (p *GRPCProber) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for addr, conn := range p.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, addr)
	}
	return firstErr
}
