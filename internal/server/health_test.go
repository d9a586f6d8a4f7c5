package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startHealth(t *testing.T) (*HealthServer, grpc_health_v1.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	hs := NewHealthServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() { _ = hs.Serve(lis) }()
	t.Cleanup(hs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return hs, grpc_health_v1.NewHealthClient(conn)
}

func check(t *testing.T, c grpc_health_v1.HealthClient, service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestHealthReadiness(t *testing.T) {
	hs, client := startHealth(t)

	hs.SetReady(false)
	if got := check(t, client, ""); got != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Errorf("overall = %s", got)
	}
	if got := check(t, client, ExtractorService); got != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		t.Errorf("extractor before ready = %s", got)
	}

	hs.SetReady(true)
	if got := check(t, client, ExtractorService); got != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Errorf("extractor after ready = %s", got)
	}
}
