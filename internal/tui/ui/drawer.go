package ui

import (
	"sync"

	"github.com/rivo/tview"
)

// Drawer funnels widget updates from other goroutines into the tview
// event loop. While the application is not running, updates are applied
// immediately under a lock instead.
//
// Updates are batched: at most one flush is ever waiting in tview's update
// queue, so Queue never blocks on it, even when the application stops
// draining the queue.
type Drawer struct {
	app       *tview.Application
	mu        sync.Mutex
	running   bool
	scheduled bool
	pending   []func()
}

// NewDrawer wraps app. A nil app never draws; updates are applied in place.
func NewDrawer(app *tview.Application) *Drawer {
	return &Drawer{app: app}
}

// App returns the wrapped application.
func (d *Drawer) App() *tview.Application { return d.app }

// Queue applies fn to the widgets.
func (d *Drawer) Queue(fn func()) {
	d.mu.Lock()
	if !d.running {
		defer d.mu.Unlock()
		fn()
		return
	}
	d.pending = append(d.pending, fn)
	if d.scheduled {
		d.mu.Unlock()
		return
	}
	d.scheduled = true
	d.mu.Unlock()

	// A flush left behind by a stopped app is applied by Run on its way out.
	d.app.QueueUpdateDraw(d.flush)
}

// flush runs on the tview goroutine.
func (d *Drawer) flush() {
	d.mu.Lock()
	fns := d.pending
	d.pending = nil
	d.scheduled = false
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Running reports whether the application is drawing.
func (d *Drawer) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Run runs the application until it stops. Updates queued but not drawn
// are applied before it returns.
func (d *Drawer) Run() error {
	d.mu.Lock()
	d.running = true
	d.mu.Unlock()

	err := d.app.Run()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
	d.scheduled = false
	fns := d.pending
	d.pending = nil
	for _, fn := range fns {
		fn()
	}
	return err
}
