package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthv1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func startHealth(t *testing.T, token string) (healthv1.HealthClient, func(healthv1.HealthCheckResponse_ServingStatus)) {
	t.Helper()
	server, healthServer, err := NewServer(token, zerolog.Nop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	lis := bufconn.Listen(1 << 20)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	set := func(s healthv1.HealthCheckResponse_ServingStatus) {
		healthServer.SetServingStatus("", s)
		healthServer.SetServingStatus(ServiceName, s)
	}
	return healthv1.NewHealthClient(conn), set
}

func TestHealthRequiresServiceToken(t *testing.T) {
	client, setStatus := startHealth(t, "shared-secret")
	setStatus(healthv1.HealthCheckResponse_SERVING)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Check(ctx, &healthv1.HealthCheckRequest{Service: ServiceName})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}

	wrong := metadata.AppendToOutgoingContext(ctx, serviceTokenHeader, "nope")
	_, err = client.Check(wrong, &healthv1.HealthCheckRequest{Service: ServiceName})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}

	authed := metadata.AppendToOutgoingContext(ctx, serviceTokenHeader, "shared-secret")
	resp, err := client.Check(authed, &healthv1.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.GetStatus() != healthv1.HealthCheckResponse_SERVING {
		t.Fatalf("expected serving, got %s", resp.GetStatus())
	}
}

func TestHealthWithoutToken(t *testing.T) {
	client, setStatus := startHealth(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthv1.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.GetStatus() != healthv1.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected not serving before first probe, got %s", resp.GetStatus())
	}
	setStatus(healthv1.HealthCheckResponse_SERVING)
	resp, err = client.Check(ctx, &healthv1.HealthCheckRequest{})
	if err != nil || resp.GetStatus() != healthv1.HealthCheckResponse_SERVING {
		t.Fatalf("expected serving, got %v (%v)", resp.GetStatus(), err)
	}
}

func TestInterceptorsRequireToken(t *testing.T) {
	if _, err := NewServiceAuthUnaryInterceptor(""); err == nil {
		t.Fatalf("expected empty token to be rejected")
	}
	if _, err := NewServiceAuthStreamInterceptor(""); err == nil {
		t.Fatalf("expected empty token to be rejected")
	}
}

func TestServiceTokenFromMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(serviceTokenHeader, "  abc "))
	if got := serviceTokenFromMetadata(ctx); got != "abc" {
		t.Fatalf("expected trimmed token, got %q", got)
	}
	if got := serviceTokenFromMetadata(context.Background()); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}
