package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/matheus3301/leadsync/internal/config"
	"github.com/matheus3301/leadsync/internal/lock"
	"github.com/matheus3301/leadsync/internal/loop"
	"github.com/matheus3301/leadsync/internal/session"
	"github.com/matheus3301/leadsync/internal/status"
	intsync "github.com/matheus3301/leadsync/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func testParams(t *testing.T, apiURL string) Params {
	t.Helper()
	// Short base path keeps the control socket under the unix path limit.
	home, err := os.MkdirTemp("/tmp", "leadsync-app-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(home) })
	t.Setenv(session.HomeEnv, home)

	s := config.Defaults()
	// Nothing listens on port 1; the manager keeps retrying in the background.
	s.PushURL = "ws://127.0.0.1:1/ws"
	s.APIBaseURL = apiURL
	s.UserID = "7"
	s.LogLevel = "debug"
	return Params{SessionName: "test", Settings: s}
}

// TestConsoleLifecycle starts the whole graph against a stub API and no
// push server, then checks the session resources are released on stop.
func TestConsoleLifecycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"conversations":[{"id":1,"displayName":"Ana","unreadCount":2}],"hasMore":false}`))
	}))
	defer srv.Close()

	p := testParams(t, srv.URL)
	var (
		engine  *intsync.Engine
		machine *status.Machine
	)
	app := fxtest.New(t, Module(p), fx.Populate(&engine, &machine))
	app.RequireStart()

	// The session is locked while the console runs.
	if _, err := lock.Acquire(session.Dir(p.SessionName)); err == nil {
		t.Error("second console acquired the session lock")
	} else {
		var held *lock.HeldError
		if !errors.As(err, &held) {
			t.Errorf("Acquire() error = %v, want HeldError", err)
		}
	}

	conn, err := grpc.NewClient(
		"unix://"+session.SocketPath(p.SessionName),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: "leadsync.push"})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("push health = %v, want NOT_SERVING without a push server", resp.Status)
	}
	if machine.Current() == status.Connected {
		t.Error("machine reports CONNECTED with nothing listening")
	}

	app.RequireStop()

	if _, err := os.Stat(session.SocketPath(p.SessionName)); !os.IsNotExist(err) {
		t.Errorf("control socket left behind: %v", err)
	}
	if _, err := os.Stat(session.LogPath(p.SessionName)); err != nil {
		t.Errorf("log file missing: %v", err)
	}
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		t.Fatalf("lock not released on stop: %v", err)
	}
	_ = l.Release()
}

// waitForList polls the loop-owned store until it holds n conversations.
func waitForList(t *testing.T, l *loop.Loop, engine *intsync.Engine, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		var got int
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := l.Do(ctx, func() { got = engine.Store().Len() })
		cancel()
		if err != nil {
			t.Fatalf("loop.Do() error = %v", err)
		}
		if got == n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("store has %d conversations, want %d", got, n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSnapshotSurvivesRestart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"conversations":[{"id":"a"},{"id":"b"}]}`))
	}))
	p := testParams(t, srv.URL)

	var (
		engine *intsync.Engine
		l      *loop.Loop
	)
	first := fxtest.New(t, Module(p), fx.Populate(&engine, &l))
	first.RequireStart()
	waitForList(t, l, engine, 2)
	first.RequireStop()
	srv.Close()

	// Second run: the API is down, so only the saved list can fill the store.
	p.Settings.APIBaseURL = "http://127.0.0.1:1"
	second := fxtest.New(t, Module(p), fx.Populate(&engine, &l))
	second.RequireStart()
	defer second.RequireStop()
	waitForList(t, l, engine, 2)
}
