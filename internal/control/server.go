// Package control exposes the console's connection health on a unix
// socket for leadctl.
package control

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/matheus3301/leadsync/internal/bus"
	"github.com/matheus3301/leadsync/internal/protocol"
	"github.com/matheus3301/leadsync/internal/status"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// PushService is the health service name tracking the push connection.
const PushService = "leadsync.push"

// Server serves grpc.health.v1 on the session's control socket.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	socketPath string
	machine    *status.Machine
	bus        *bus.Dispatcher
	logger     *zap.Logger

	unwatch func()
	done    chan struct{}
}

// NewServer binds the control socket. A stale socket file is replaced.
func NewServer(socketPath string, machine *status.Machine, d *bus.Dispatcher, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &Server{
		grpcServer: srv,
		health:     hs,
		listener:   listener,
		socketPath: socketPath,
		machine:    machine,
		bus:        d,
		logger:     logger.Named("control"),
		done:       make(chan struct{}),
	}, nil
}

// ServingStatus maps a connection state to its health status.
func ServingStatus(s status.State) healthpb.HealthCheckResponse_ServingStatus {
	if s == status.Connected {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Start serves in the background and follows connection state changes.
func (s *Server) Start() {
	var events <-chan protocol.Envelope
	events, s.unwatch = s.bus.Watch(protocol.TypeConnectionState, 16)
	s.health.SetServingStatus(PushService, ServingStatus(s.machine.Current()))

	go s.follow(events)
	go func() {
		s.logger.Info("control server starting", zap.String("socket", s.socketPath))
		if err := s.grpcServer.Serve(s.listener); err != nil {
			s.logger.Error("control server error", zap.Error(err))
		}
	}()
}

// follow refreshes the health status whenever the connection state
// changes. Events only signal a change: the watcher drops them when full,
// so the machine's current state is the one reported.
func (s *Server) follow(events <-chan protocol.Envelope) {
	for {
		select {
		case <-s.done:
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			s.health.SetServingStatus(PushService, ServingStatus(s.machine.Current()))
		}
	}
}

// Stop reports NOT_SERVING to watchers, shuts down gracefully and removes
// the socket file.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("control server stopping")
	if s.unwatch != nil {
		s.unwatch()
	}
	close(s.done)
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		// Watch streams never end on their own.
		s.grpcServer.Stop()
	}
	_ = os.Remove(s.socketPath)
}
