// Package app wires the console's components into an fx application.
package app

import (
	"context"
	"errors"

	"github.com/benbjohnson/clock"
	"github.com/matheus3301/leadsync/internal/api"
	"github.com/matheus3301/leadsync/internal/bus"
	"github.com/matheus3301/leadsync/internal/config"
	"github.com/matheus3301/leadsync/internal/control"
	"github.com/matheus3301/leadsync/internal/lock"
	"github.com/matheus3301/leadsync/internal/logging"
	"github.com/matheus3301/leadsync/internal/loop"
	"github.com/matheus3301/leadsync/internal/present"
	"github.com/matheus3301/leadsync/internal/push"
	"github.com/matheus3301/leadsync/internal/session"
	"github.com/matheus3301/leadsync/internal/status"
	"github.com/matheus3301/leadsync/internal/store"
	intsync "github.com/matheus3301/leadsync/internal/sync"
	"github.com/matheus3301/leadsync/internal/thread"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Params holds the resolved session passed to the fx module.
type Params struct {
	SessionName string
	Settings    config.Session
	// Headless also logs to stderr. A terminal UI keeps stderr quiet.
	Headless bool
	// SocketPath overrides the control socket location; empty uses the
	// session directory.
	SocketPath string
}

// Frontend carries the optional UI capabilities. Whatever a frontend module
// does not provide falls back to the engine's logging or no-op stand-ins.
type Frontend struct {
	fx.In

	Surface    present.Surface      `optional:"true"`
	Composer   intsync.Composer     `optional:"true"`
	Notifier   intsync.Notifier     `optional:"true"`
	Stats      intsync.StatsSink    `optional:"true"`
	Documents  intsync.DocumentSink `optional:"true"`
	ThreadView thread.View          `optional:"true"`
}

// Module returns the fx module for the console core.
func Module(p Params) fx.Option {
	return fx.Module("leadsync",
		fx.Supply(p),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		fx.Provide(
			provideLogger,
			provideClock,
			provideLoop,
			provideDispatcher,
			provideStateMachine,
			provideLock,
			provideStore,
			provideTokens,
			provideAPI,
			provideManager,
			provideEngine,
			provideControl,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(lc fx.Lifecycle, p Params) (*zap.Logger, error) {
	logger, closeLog, err := logging.New(logging.Options{
		Path:    session.LogPath(p.SessionName),
		Session: p.SessionName,
		Level:   p.Settings.LogLevel,
		Stderr:  p.Headless,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(closeLog))
	return logger, nil
}

func provideClock() clock.Clock {
	return clock.New()
}

func provideLoop(clk clock.Clock, logger *zap.Logger) *loop.Loop {
	return loop.New(clk, logger.Named("loop"))
}

func provideDispatcher(logger *zap.Logger) *bus.Dispatcher {
	return bus.New(logger.Named("bus"))
}

func provideStateMachine(d *bus.Dispatcher) *status.Machine {
	return status.NewMachine(d)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore takes the lock so the database is never opened by a second
// console.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideTokens(p Params, clk clock.Clock) push.TokenSource {
	s := p.Settings
	if s.TokenSecret != "" {
		return &push.HMACTokenSource{
			Secret:   []byte(s.TokenSecret),
			UserID:   s.UserID,
			Username: s.Username,
			Clock:    clk,
		}
	}
	return push.StaticToken(s.Token)
}

func provideAPI(p Params, tokens push.TokenSource) *api.Client {
	return api.NewClient(p.Settings.APIBaseURL, api.WithTokenSource(tokens))
}

func provideManager(p Params, l *loop.Loop, tokens push.TokenSource, m *status.Machine, d *bus.Dispatcher, logger *zap.Logger) *push.Manager {
	s := p.Settings
	cfg := push.Config{
		URL:         s.PushURL,
		UserID:      s.UserID,
		BaseDelay:   s.ReconnectBase,
		MaxAttempts: s.MaxAttempts,
		Heartbeat:   s.Heartbeat,
		DialTimeout: s.DialTimeout,
	}
	return push.NewManager(cfg, l, nil, tokens, m, d, logger.Named("push"))
}

func provideEngine(p Params, l *loop.Loop, d *bus.Dispatcher, mgr *push.Manager, client *api.Client, db *store.DB, fe Frontend, logger *zap.Logger) *intsync.Engine {
	s := p.Settings
	return intsync.NewBuilder(l, d, mgr, client, logger).
		WithConfig(intsync.Config{
			PageSize:       s.PageSize,
			EchoWindow:     s.EchoWindow,
			RequestTimeout: s.RequestTimeout,
			Timings: present.Timings{
				Move:      s.Animation.Move,
				Highlight: s.Animation.Highlight,
				Badge:     s.Animation.Badge,
				Pulse:     s.Animation.Pulse,
			},
		}).
		WithSurface(fe.Surface).
		WithComposer(fe.Composer).
		WithNotifier(fe.Notifier).
		WithStatsSink(fe.Stats).
		WithDocumentSink(fe.Documents).
		WithThreadView(fe.ThreadView).
		WithSnapshots(db).
		Build()
}

func provideControl(p Params, _ *lock.Lock, m *status.Machine, d *bus.Dispatcher, logger *zap.Logger) (*control.Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = session.SocketPath(p.SessionName)
	}
	return control.NewServer(socketPath, m, d, logger)
}

func registerLifecycle(lc fx.Lifecycle, l *loop.Loop, engine *intsync.Engine, mgr *push.Manager, ctl *control.Server, lk *lock.Lock, db *store.DB, logger *zap.Logger) {
	var (
		stopLoop context.CancelFunc
		loopDone = make(chan struct{})
	)
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			stopLoop = cancel
			go func() {
				defer close(loopDone)
				if err := l.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("event loop stopped", zap.Error(err))
				}
			}()

			engine.Start()
			mgr.Start()
			ctl.Start()
			logger.Info("console started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctl.Stop(ctx)
			if err := mgr.Stop(ctx); err != nil {
				logger.Warn("push manager stop", zap.Error(err))
			}
			if err := engine.Stop(ctx); err != nil {
				logger.Warn("sync engine stop", zap.Error(err))
			}
			stopLoop()
			<-loopDone

			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("console stopped")
			return nil
		},
	})
}
