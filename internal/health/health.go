package health

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/elys-network/liquidvault/internal/logger"
)

// Server exposes grpc.health.v1.Health. The overall ("") status and every named service start SERVING.
type Server struct {
	grpc   *grpc.Server
	health *grpchealth.Server
	logger zerolog.Logger
}

// NewServer registers the health service on a fresh gRPC server.
func NewServer(services ...string) *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		health: grpchealth.NewServer(),
		logger: logger.GetForComponent("grpc_health"),
	}
	for _, svc := range services {
		s.health.SetServingStatus(svc, healthpb.HealthCheckResponse_SERVING)
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	return s
}

// SetServingStatus updates a service and mirrors it into the overall status.
func (s *Server) SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus(service, status)
	s.health.SetServingStatus("", status)
	if status != healthpb.HealthCheckResponse_SERVING {
		s.logger.Warn().Str("service", service).Str("status", status.String()).Msg("Health status changed")
	}
}

// Serve accepts connections on lis until ctx is cancelled or Stop is called.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("Starting gRPC health service")
	if err := s.grpc.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc health server: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, lis)
}

// Stop marks everything NOT_SERVING and stops the server gracefully.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
