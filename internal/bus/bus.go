// Package bus routes decoded push envelopes to the handlers registered for
// their type.
package bus

import (
	"fmt"
	"strings"
	"sync"

	"github.com/matheus3301/leadsync/internal/protocol"
	"go.uber.org/zap"
)

// Handler processes one envelope. A returned error is logged by the
// dispatcher and never stops dispatch.
type Handler func(env protocol.Envelope) error

// Handle identifies one registration so it can be removed.
type Handle uint64

// Result reports the outcome of dispatching one envelope.
type Result struct {
	Delivered int
	Failed    int
}

type registration struct {
	handle  Handle
	handler Handler
}

// Dispatcher is the subscription table. Handlers for a type run
// synchronously, in registration order, on the dispatching goroutine.
type Dispatcher struct {
	mu       sync.RWMutex
	subs     map[string][]registration
	watchers map[Handle]*watcher
	next     Handle
	logger   *zap.Logger
}

// New creates an empty dispatcher.
func New(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		subs:     make(map[string][]registration),
		watchers: make(map[Handle]*watcher),
		logger:   logger,
	}
}

// On registers handler for the literal event type. Any string is accepted,
// so new server event kinds need no dispatcher change.
func (d *Dispatcher) On(eventType string, handler Handler) Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	h := d.next
	d.subs[eventType] = append(d.subs[eventType], registration{handle: h, handler: handler})
	return h
}

// Off removes the first registration matching handle. Unknown handles are
// ignored.
func (d *Dispatcher) Off(eventType string, handle Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	regs := d.subs[eventType]
	for i, r := range regs {
		if r.handle == handle {
			d.subs[eventType] = append(regs[:i:i], regs[i+1:]...)
			if len(d.subs[eventType]) == 0 {
				delete(d.subs, eventType)
			}
			return
		}
	}
}

// Handlers returns how many handlers are registered for eventType.
func (d *Dispatcher) Handlers(eventType string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs[eventType])
}

// Dispatch decodes a raw wire message and publishes it. Malformed input is
// logged and dropped.
func (d *Dispatcher) Dispatch(raw []byte) Result {
	env, err := protocol.Decode(raw)
	if err != nil {
		d.logger.Warn("discarding malformed envelope", zap.Error(err), zap.Int("bytes", len(raw)))
		return Result{}
	}
	return d.Publish(env)
}

// Publish invokes every handler registered for env.Type, then hands the
// envelope to matching watchers.
func (d *Dispatcher) Publish(env protocol.Envelope) Result {
	d.mu.RLock()
	regs := append([]registration(nil), d.subs[env.Type]...)
	watchers := make([]*watcher, 0, len(d.watchers))
	for _, w := range d.watchers {
		watchers = append(watchers, w)
	}
	d.mu.RUnlock()
	defer func() {
		for _, w := range watchers {
			w.deliver(env)
		}
	}()

	var res Result
	for _, r := range regs {
		if err := d.invoke(r.handler, env); err != nil {
			res.Failed++
			d.logger.Error("event handler failed", zap.String("type", env.Type), zap.Error(err))
			continue
		}
		res.Delivered++
	}
	return res
}

func (d *Dispatcher) invoke(h Handler, env protocol.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(env)
}

// Watch returns a channel receiving every published envelope whose type
// starts with prefix, for observers on other goroutines. Envelopes are
// dropped when the buffer is full. The returned function unregisters it.
func (d *Dispatcher) Watch(prefix string, bufSize int) (<-chan protocol.Envelope, func()) {
	ch := make(chan protocol.Envelope, bufSize)
	d.mu.Lock()
	d.next++
	h := d.next
	d.watchers[h] = &watcher{prefix: prefix, ch: ch}
	d.mu.Unlock()

	return ch, func() {
		d.mu.Lock()
		delete(d.watchers, h)
		d.mu.Unlock()
	}
}

type watcher struct {
	prefix string
	ch     chan protocol.Envelope
}

func (w *watcher) deliver(env protocol.Envelope) {
	if !strings.HasPrefix(env.Type, w.prefix) {
		return
	}
	select {
	case w.ch <- env:
	default:
		// Drop if the watcher is not keeping up.
	}
}
