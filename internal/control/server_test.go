package control

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/leadsync/internal/bus"
	"github.com/matheus3301/leadsync/internal/protocol"
	"github.com/matheus3301/leadsync/internal/status"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func startServer(t *testing.T) (*Server, *status.Machine, healthpb.HealthClient) {
	t.Helper()
	// Short path: unix socket paths are limited to ~104 bytes on macOS.
	tmpDir, err := os.MkdirTemp("/tmp", "leadsync-ctl-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })
	socketPath := filepath.Join(tmpDir, "c.sock")

	d := bus.New(zap.NewNop())
	machine := status.NewMachine(d)
	srv, err := NewServer(socketPath, machine, d, zap.NewNop())
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	srv.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
	})

	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return srv, machine, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: PushService})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	return resp.Status
}

func waitFor(t *testing.T, client healthpb.HealthClient, want healthpb.HealthCheckResponse_ServingStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		got := check(t, client)
		if got == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("status = %v, want %v", got, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServingStatus(t *testing.T) {
	tests := []struct {
		state status.State
		want  healthpb.HealthCheckResponse_ServingStatus
	}{
		{status.Connected, healthpb.HealthCheckResponse_SERVING},
		{status.Connecting, healthpb.HealthCheckResponse_NOT_SERVING},
		{status.ReconnectScheduled, healthpb.HealthCheckResponse_NOT_SERVING},
		{status.Failed, healthpb.HealthCheckResponse_NOT_SERVING},
		{status.Disconnected, healthpb.HealthCheckResponse_NOT_SERVING},
	}
	for _, tt := range tests {
		if got := ServingStatus(tt.state); got != tt.want {
			t.Errorf("ServingStatus(%s) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestCheckFollowsConnectionState(t *testing.T) {
	_, machine, client := startServer(t)

	if got := check(t, client); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("initial status = %v, want NOT_SERVING", got)
	}

	if err := machine.Transition(status.Connecting, 0); err != nil {
		t.Fatal(err)
	}
	if err := machine.Transition(status.Connected, 0); err != nil {
		t.Fatal(err)
	}
	waitFor(t, client, healthpb.HealthCheckResponse_SERVING)

	if err := machine.Transition(status.ReconnectScheduled, 1); err != nil {
		t.Fatal(err)
	}
	waitFor(t, client, healthpb.HealthCheckResponse_NOT_SERVING)
}

func TestStaleEventDoesNotOverrideCurrentState(t *testing.T) {
	srv, machine, client := startServer(t)

	if err := machine.Transition(status.Connecting, 0); err != nil {
		t.Fatal(err)
	}
	if err := machine.Transition(status.Connected, 0); err != nil {
		t.Fatal(err)
	}
	waitFor(t, client, healthpb.HealthCheckResponse_SERVING)

	// A late event whose newer siblings were dropped still names an old state.
	stale, err := protocol.New(protocol.TypeConnectionState, protocol.ConnectionState{
		From: string(status.Connected),
		To:   string(status.ReconnectScheduled),
	})
	if err != nil {
		t.Fatal(err)
	}
	events := make(chan protocol.Envelope, 1)
	events <- stale
	close(events)
	srv.follow(events)

	if got := check(t, client); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status after stale event = %v, want SERVING", got)
	}
}

func TestWatchStreamsChanges(t *testing.T) {
	_, machine, client := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stream, err := client.Watch(ctx, &healthpb.HealthCheckRequest{Service: PushService})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	first, err := stream.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("first status = %v, want NOT_SERVING", first.Status)
	}

	_ = machine.Transition(status.Connecting, 0)
	_ = machine.Transition(status.Connected, 0)

	next, err := stream.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if next.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("next status = %v, want SERVING", next.Status)
	}
}

func TestStopRemovesSocket(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "leadsync-ctl-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	socketPath := filepath.Join(tmpDir, "c.sock")

	// A stale socket file from a crashed console is replaced.
	if err := os.WriteFile(socketPath, nil, 0600); err != nil {
		t.Fatal(err)
	}
	d := bus.New(nil)
	srv, err := NewServer(socketPath, status.NewMachine(d), d, nil)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	srv.Start()
	srv.Stop(context.Background())

	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket still present after Stop: %v", err)
	}
}
