package server

import (
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ExtractorService is the service name reported next to overall ("") server health.
const ExtractorService = "receipts.v1.Extractor"

// HealthServer exposes the standard gRPC health protocol for the extractor process.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

func NewHealthServer(logger *slog.Logger, opts ...grpc.ServerOption) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer(opts...)
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(gs, hs)
	return &HealthServer{grpc: gs, health: hs, logger: logger}
}

// SetReady marks the extractor SERVING or NOT_SERVING. Overall health stays SERVING while
// the process is up.
func (h *HealthServer) SetReady(ready bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if ready {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	h.health.SetServingStatus(ExtractorService, status)
	h.logger.Info("grpc.health.status", "service", ExtractorService, "status", status.String())
}

// Serve blocks until the listener fails or Stop is called.
func (h *HealthServer) Serve(lis net.Listener) error {
	h.logger.Info("grpc.health.listening", "addr", lis.Addr().String())
	return h.grpc.Serve(lis)
}

// Stop flips every status to NOT_SERVING and drains in-flight RPCs.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
