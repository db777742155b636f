package grpcserver

import (
	"context"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	logpkg "github.com/rzbill/floq/pkg/log"
)

// healthInterval is how often storage health is re-checked.
const healthInterval = 5 * time.Second

type checker interface {
	CheckHealth(ctx context.Context) error
}

// healthSvc publishes the runtime's health on the standard gRPC health
// service, for the overall server and for ServiceName.
type healthSvc struct {
	*health.Server
	check  checker
	logger logpkg.Logger
}

func newHealthSvc(check checker, logger logpkg.Logger) *healthSvc {
	return &healthSvc{Server: health.NewServer(), check: check, logger: logger}
}

// refresh runs one check and publishes the result.
func (h *healthSvc) refresh(ctx context.Context) {
	st := healthpb.HealthCheckResponse_SERVING
	if err := h.check.CheckHealth(ctx); err != nil {
		h.logger.Warn("health check failed", logpkg.Err(err))
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.SetServingStatus("", st)
	h.SetServingStatus(ServiceName, st)
}

// watch refreshes until ctx is done, then marks everything not serving.
func (h *healthSvc) watch(ctx context.Context) {
	t := time.NewTicker(healthInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.Shutdown()
			return
		case <-t.C:
			h.refresh(ctx)
		}
	}
}
