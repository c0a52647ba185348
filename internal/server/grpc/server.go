// Package grpc exposes the standard grpc.health.v1 service. The overall
// status follows the database supervisor: SERVING only while Connected.
package grpc

import (
	"context"
	"errors"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/peny/internal/logging"
	"github.com/dmitrijs2005/peny/internal/server/supervisor"
)

type HealthServer struct {
	address string
	logger  logging.Logger
	health  *health.Server
	srv     *grpc.Server
}

func NewHealthServer(a string, l logging.Logger) *HealthServer {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &HealthServer{
		address: a,
		logger:  l.With("module", "grpc_health"),
		health:  hs,
		srv:     srv,
	}
}

// SetState maps a supervisor state onto the overall serving status.
func (s *HealthServer) SetState(st supervisor.State) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if st == supervisor.Connected {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

func (s *HealthServer) SupervisorHooks() supervisor.Hooks {
	return supervisor.Hooks{
		StateChanged: func(_, to supervisor.State) { s.SetState(to) },
	}
}

func (s *HealthServer) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info(ctx, "Starting gRPC health server", "address", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *HealthServer) ListenAndServe(ctx context.Context) error {
	// announces address
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Stop reports NOT_SERVING to every watcher, then stops gracefully. If ctx
// expires first, open streams are cut.
func (s *HealthServer) Stop(ctx context.Context) {
	s.logger.Info(ctx, "Stopping gRPC health server...")
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
		<-done
	}
}
