package grpcserver

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	workqueuesvc "github.com/rzbill/floq/internal/services/workqueues"
	logpkg "github.com/rzbill/floq/pkg/log"
)

// Server owns the gRPC server instance.
type Server struct {
	grpc   *grpc.Server
	health *healthSvc
	logger logpkg.Logger
}

// New constructs a gRPC server and registers the queue and health services.
func New(svc *workqueuesvc.Service, logger logpkg.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = logpkg.NewNop()
	}
	s := &Server{logger: logger.WithComponent("grpc")}
	opts = append(opts, grpc.ChainUnaryInterceptor(s.logUnary))
	s.grpc = grpc.NewServer(opts...)

	qs := &queuesSvc{svc: svc}
	s.grpc.RegisterService(qs.serviceDesc(), qs)
	s.health = newHealthSvc(svc, s.logger)
	s.health.refresh(context.Background())
	healthpb.RegisterHealthServer(s.grpc, s.health)
	return s
}

// logUnary logs each call's method, code and latency.
func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	fields := []logpkg.Field{
		logpkg.Str("method", info.FullMethod),
		logpkg.Str("code", status.Code(err).String()),
		logpkg.Dur("elapsed", time.Since(start)),
	}
	if err != nil {
		s.logger.Debug("rpc failed", append(fields, logpkg.Err(err))...)
		return resp, err
	}
	s.logger.Debug("rpc", fields...)
	return resp, nil
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.logger.Info("grpc listening", logpkg.Str("addr", l.Addr().String()))
	hctx, stop := context.WithCancel(ctx)
	defer stop()
	go s.health.watch(hctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
