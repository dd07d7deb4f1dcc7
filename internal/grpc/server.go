// Package grpc exposes the standard gRPC health service, driven by the health checker.
package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"persona-nft/backend/pkg/logger"
)

// ServiceName is the service reported alongside the overall ("") status
const ServiceName = "persona-nft.Backend"

// Server wraps a grpc.Server with a health service
type Server struct {
	srv    *grpc.Server
	health *health.Server
	log    *logger.Logger
}

// NewServer creates the gRPC server; it reports NOT_SERVING until SetServing(true)
func NewServer(log *logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	log = log.Component("grpc")

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(log)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	s := &Server{srv: srv, health: hs, log: log}
	s.SetServing(false)
	return s
}

// SetServing flips the reported status; pass it to health.Checker.OnChange
func (s *Server) SetServing(healthy bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if healthy {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve accepts connections on lis until Stop
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.srv.Serve(lis)
}

// Listen binds port and serves in the background
func (s *Server) Listen(port string) (net.Listener, error) {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := s.Serve(lis); err != nil {
			s.log.LogError(err, "gRPC server stopped")
		}
	}()
	return lis, nil
}

// Stop marks every service NOT_SERVING and drains in-flight calls
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.srv.Stop()
	}
}

func loggingInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			log.Warn("gRPC call failed", "method", info.FullMethod, "error", err.Error(), "latency_ms", time.Since(start).Milliseconds())
		} else {
			log.Debug("gRPC call", "method", info.FullMethod, "latency_ms", time.Since(start).Milliseconds())
		}
		return resp, err
	}
}
