package handler

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name of the checkout API.
const ServiceName = "pos.checkout"

// Check probes one dependency.
type Check func(ctx context.Context) error

// HealthChecker runs dependency checks and publishes the result on the
// standard gRPC health service and on /health.
type HealthChecker struct {
	checks map[string]Check
	server *health.Server
	logger *zap.Logger
}

func NewHealthChecker(checks map[string]Check, logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthChecker{checks: checks, server: health.NewServer(), logger: logger}
}

// Check runs every probe and reports per dependency status.
func (h *HealthChecker) Check(ctx context.Context) (map[string]string, bool) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			out[name] = err.Error()
			healthy = false
			continue
		}
		out[name] = "ok"
	}
	return out, healthy
}

// Update refreshes the serving status of the gRPC health service.
func (h *HealthChecker) Update(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	checks, healthy := h.Check(ctx)
	if !healthy {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		h.logger.Warn("health check failed", zap.Any("checks", checks))
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
}

// Run updates the status every interval until ctx is done, then reports
// NOT_SERVING for good.
func (h *HealthChecker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.update(ctx)
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.update(ctx)
		}
	}
}

func (h *HealthChecker) update(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	h.Update(cctx)
}

// NewGRPCServer returns a server with the health service registered.
func NewGRPCServer(h *HealthChecker, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, h.server)
	return s
}
