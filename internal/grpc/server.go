// Package grpc exposes the internal health service to other services and
// orchestrators.
package grpc

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthv1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the health entry reported next to the overall ("") status.
const ServiceName = "teamdesk"

// NewServer builds a gRPC server with the health service registered. When
// token is empty calls are not authenticated.
func NewServer(token string, log zerolog.Logger) (*grpc.Server, *health.Server, error) {
	log = log.With().Str("component", "grpc").Logger()
	unary := []grpc.UnaryServerInterceptor{loggingInterceptor(log)}
	var stream []grpc.StreamServerInterceptor
	if token != "" {
		authUnary, err := NewServiceAuthUnaryInterceptor(token)
		if err != nil {
			return nil, nil, err
		}
		authStream, err := NewServiceAuthStreamInterceptor(token)
		if err != nil {
			return nil, nil, err
		}
		unary = append(unary, authUnary)
		stream = append(stream, authStream)
	} else {
		log.Warn().Msg("grpc service auth disabled: SERVICE_AUTH_TOKEN not set")
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	)
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthv1.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(ServiceName, healthv1.HealthCheckResponse_NOT_SERVING)
	healthv1.RegisterHealthServer(server, healthServer)
	return server, healthServer, nil
}

func loggingInterceptor(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug().
			Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("duration", time.Since(start)).
			Msg("grpc request")
		return resp, err
	}
}
