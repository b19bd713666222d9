package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/leadsync/internal/bus"
	"github.com/matheus3301/leadsync/internal/protocol"
)

// State represents the push connection state.
type State string

const (
	Disconnected       State = "DISCONNECTED"
	Connecting         State = "CONNECTING"
	Connected          State = "CONNECTED"
	ReconnectScheduled State = "RECONNECT_SCHEDULED"
	Failed             State = "FAILED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Disconnected:       {Connecting},
	Connecting:         {Connected, ReconnectScheduled, Failed, Disconnected},
	Connected:          {ReconnectScheduled, Disconnected, Connecting},
	ReconnectScheduled: {Connecting, Failed, Disconnected},
	Failed:             {Connecting, Disconnected},
}

// Machine tracks and enforces connection state transitions. Only the
// connection manager calls Transition; everything else observes.
type Machine struct {
	mu      sync.RWMutex
	current State
	attempt int
	bus     *bus.Dispatcher
}

// NewMachine creates a new state machine starting in Disconnected state.
func NewMachine(d *bus.Dispatcher) *Machine {
	return &Machine{
		current: Disconnected,
		bus:     d,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Attempt returns the reconnect attempt recorded with the last transition.
func (m *Machine) Attempt() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attempt
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State, attempt int) error {
	m.mu.Lock()
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		from := m.current
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	from := m.current
	m.current = to
	m.attempt = attempt
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(protocol.MustNew(protocol.TypeConnectionState, protocol.ConnectionState{
			From:    string(from),
			To:      string(to),
			Attempt: attempt,
		}))
	}
	return nil
}

// CanTransition reports whether to is reachable from the current state.
func (m *Machine) CanTransition(to State) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(validTransitions[m.current], to)
}
