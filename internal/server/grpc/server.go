// Package grpc serves detector control and events over gRPC.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/emmett/voxwake/internal/app"
	"github.com/emmett/voxwake/internal/apperr"
)

// Server wraps the gRPC server and services
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	addr       string
	log        *slog.Logger
}

// Config holds server configuration
type Config struct {
	Host string
	Port int
}

// Addr is the listen address
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// NewServer creates a gRPC server for svc
func NewServer(cfg Config, svc *app.Service, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		grpcServer: grpc.NewServer(
			grpc.ChainUnaryInterceptor(unaryErrors(log)),
			grpc.ChainStreamInterceptor(streamErrors(log)),
		),
		health: health.NewServer(),
		addr:   cfg.Addr(),
		log:    log,
	}

	RegisterDetectorServer(s.grpcServer, NewDetectorService(svc, log))
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return s
}

// GRPCServer returns the underlying server
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

// Serve accepts connections on lis until Stop
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("gRPC server listening", "addr", lis.Addr().String())
	err := s.grpcServer.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Start listens on the configured address and serves until ctx is done
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return s.Serve(lis)
}

// Stop gracefully stops the server, forcing it after a grace period
func (s *Server) Stop() {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.grpcServer.Stop()
	}
}

func unaryErrors(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			log.Warn("gRPC call failed", "method", info.FullMethod, "code", apperr.CodeOf(err).String(), "error", err)
			return nil, apperr.ToStatus(err)
		}
		return resp, nil
	}
}

func streamErrors(log *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := handler(srv, ss); err != nil {
			log.Warn("gRPC stream failed", "method", info.FullMethod, "error", err)
			return apperr.ToStatus(err)
		}
		return nil
	}
}
