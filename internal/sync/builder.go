package sync

import (
	"context"
	"time"

	"github.com/matheus3301/leadsync/internal/bus"
	"github.com/matheus3301/leadsync/internal/convstore"
	"github.com/matheus3301/leadsync/internal/ledger"
	"github.com/matheus3301/leadsync/internal/loop"
	"github.com/matheus3301/leadsync/internal/present"
	"github.com/matheus3301/leadsync/internal/thread"
	"go.uber.org/zap"
)

// Config tunes the engine.
type Config struct {
	PageSize       int
	EchoWindow     time.Duration
	RequestTimeout time.Duration
	Timings        present.Timings
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() Config {
	return Config{
		PageSize:       50,
		EchoWindow:     ledger.DefaultWindow,
		RequestTimeout: 15 * time.Second,
		Timings:        present.DefaultTimings(),
	}
}

// Builder composes an Engine. Optional collaborators are registered
// explicitly; anything left out gets a no-op or logging stand-in.
type Builder struct {
	cfg       Config
	loop      *loop.Loop
	bus       *bus.Dispatcher
	conn      Connection
	api       API
	logger    *zap.Logger
	surface   present.Surface
	composer  Composer
	notifier  Notifier
	stats     StatsSink
	documents DocumentSink
	view      thread.View
	snapshots Snapshots
}

// NewBuilder starts composing an engine around its required parts.
func NewBuilder(l *loop.Loop, d *bus.Dispatcher, conn Connection, client API, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		cfg:    DefaultConfig(),
		loop:   l,
		bus:    d,
		conn:   conn,
		api:    client,
		logger: logger,
	}
}

// WithConfig overrides the defaults. Zero fields keep their default.
func (b *Builder) WithConfig(cfg Config) *Builder {
	def := DefaultConfig()
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.EchoWindow <= 0 {
		cfg.EchoWindow = def.EchoWindow
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	b.cfg = cfg
	return b
}

// WithSurface sets where the conversation list is drawn.
func (b *Builder) WithSurface(s present.Surface) *Builder {
	b.surface = s
	return b
}

// WithComposer registers the message input.
func (b *Builder) WithComposer(c Composer) *Builder {
	b.composer = c
	return b
}

// WithNotifier registers the user notification channel.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithStatsSink registers the stats consumer.
func (b *Builder) WithStatsSink(s StatsSink) *Builder {
	b.stats = s
	return b
}

// WithDocumentSink registers the document progress consumer.
func (b *Builder) WithDocumentSink(s DocumentSink) *Builder {
	b.documents = s
	return b
}

// WithThreadView registers the open conversation's message view.
func (b *Builder) WithThreadView(v thread.View) *Builder {
	b.view = v
	return b
}

// WithSnapshots registers list persistence.
func (b *Builder) WithSnapshots(s Snapshots) *Builder {
	b.snapshots = s
	return b
}

// Build assembles the engine. Call Start to register its handlers.
func (b *Builder) Build() *Engine {
	surface := b.surface
	if surface == nil {
		surface = present.NewLogSurface(b.logger)
	}
	e := &Engine{
		cfg:       b.cfg,
		loop:      b.loop,
		bus:       b.bus,
		conn:      b.conn,
		api:       b.api,
		logger:    b.logger.Named("sync"),
		ledger:    ledger.New(b.cfg.EchoWindow),
		thread:    thread.New(b.view),
		composer:  b.composer,
		notifier:  b.notifier,
		stats:     b.stats,
		documents: b.documents,
		snapshots: b.snapshots,
		inflight:  make(map[string]bool),
	}
	e.animator = present.NewAnimator(b.loop, surface, b.cfg.Timings, e.logger)
	e.store = convstore.New(e.animator)
	if e.composer == nil {
		e.composer = nopComposer{}
	}
	if e.notifier == nil {
		e.notifier = logNotifier{logger: e.logger}
	}
	if e.stats == nil {
		e.stats = nopStats{}
	}
	if e.documents == nil {
		e.documents = nopDocuments{}
	}
	if e.snapshots == nil {
		e.snapshots = nopSnapshots{}
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e
}
