// Package push owns the persistent push connection: dialing, heartbeat,
// reconnect with backoff and intentional close.
package push

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matheus3301/leadsync/internal/bus"
	"github.com/matheus3301/leadsync/internal/loop"
	"github.com/matheus3301/leadsync/internal/protocol"
	"github.com/matheus3301/leadsync/internal/status"
	"go.uber.org/zap"
)

// Config holds the connection parameters.
type Config struct {
	URL         string
	UserID      string
	BaseDelay   time.Duration
	MaxAttempts int
	Heartbeat   time.Duration
	DialTimeout time.Duration
}

// DefaultConfig returns the standard backoff and heartbeat settings.
func DefaultConfig() Config {
	return Config{
		BaseDelay:   3 * time.Second,
		MaxAttempts: 5,
		Heartbeat:   30 * time.Second,
		DialTimeout: 10 * time.Second,
	}
}

// Delay returns the wait before reconnect attempt k (1-indexed).
func Delay(base time.Duration, k int) time.Duration {
	if k < 1 {
		k = 1
	}
	return time.Duration(float64(base) * math.Pow(1.5, float64(k-1)))
}

// Manager maintains one push connection per console session. Apart from
// State, every method must be called on the loop.
type Manager struct {
	cfg     Config
	loop    *loop.Loop
	dialer  Dialer
	tokens  TokenSource
	machine *status.Machine
	bus     *bus.Dispatcher
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// seq tags the current connection attempt. Results carrying an older
	// tag come from a superseded attempt and are dropped.
	seq         uint64
	conn        Conn
	cancelDial  context.CancelFunc
	attempts    int
	intentional bool
	retry       *loop.Timer
	heartbeat   *loop.Timer
	room        string
}

// NewManager creates a manager in the DISCONNECTED state. A nil dialer uses
// gorilla/websocket; a nil token source sends no token.
func NewManager(cfg Config, l *loop.Loop, dialer Dialer, tokens TokenSource, machine *status.Machine, d *bus.Dispatcher, logger *zap.Logger) *Manager {
	def := DefaultConfig()
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = def.Heartbeat
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if dialer == nil {
		dialer = WebsocketDialer{}
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:     cfg,
		loop:    l,
		dialer:  dialer,
		tokens:  tokens,
		machine: machine,
		bus:     d,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start posts the initial connect onto the loop.
func (m *Manager) Start() {
	m.loop.Post(m.Connect)
}

// Stop closes the connection intentionally and waits for the loop to
// apply it.
func (m *Manager) Stop(ctx context.Context) error {
	err := m.loop.Do(ctx, m.Disconnect)
	m.cancel()
	return err
}

// State returns the current connection state. Safe from any goroutine.
func (m *Manager) State() status.State {
	return m.machine.Current()
}

// Connect opens the connection unless one is open or being opened. From
// DISCONNECTED or FAILED it starts a fresh backoff cycle.
func (m *Manager) Connect() {
	switch m.machine.Current() {
	case status.Connected, status.Connecting:
		return
	case status.Disconnected, status.Failed:
		m.attempts = 0
	}
	m.intentional = false
	m.stopRetry()
	m.transition(status.Connecting)
	m.dial()
}

// Disconnect closes the connection and suppresses any reconnect until the
// next Connect or Reconnect.
func (m *Manager) Disconnect() {
	m.intentional = true
	m.stopRetry()
	m.teardown()
	if m.machine.Current() != status.Disconnected {
		m.transition(status.Disconnected)
	}
}

// Reconnect drops whatever is in progress, resets the attempt counter and
// dials immediately.
func (m *Manager) Reconnect() {
	m.intentional = false
	m.attempts = 0
	m.stopRetry()
	m.teardown()
	if m.machine.Current() != status.Connecting {
		m.transition(status.Connecting)
	}
	m.dial()
}

// FocusRegained connects immediately unless already connected.
func (m *Manager) FocusRegained() {
	if m.machine.Current() == status.Connected {
		return
	}
	m.Connect()
}

// Send writes env to the open connection.
func (m *Manager) Send(env protocol.Envelope) error {
	if m.conn == nil || m.machine.Current() != status.Connected {
		return ErrClosed
	}
	if err := m.conn.WriteMessage(websocket.TextMessage, env.Raw); err != nil {
		m.logger.Warn("push write failed", zap.String("type", env.Type), zap.Error(err))
		m.dropped(m.seq, err)
		return fmt.Errorf("send %s: %w", env.Type, err)
	}
	return nil
}

// SubscribeConversation joins the per-conversation room. The room is
// remembered and joined again after every reconnect.
func (m *Manager) SubscribeConversation(id string) error {
	m.room = id
	if m.machine.Current() != status.Connected {
		return nil
	}
	return m.Send(protocol.MustNew(protocol.TypeSubscribeConversation, protocol.ConversationRoom{ConversationID: id}))
}

// UnsubscribeConversation leaves the room.
func (m *Manager) UnsubscribeConversation(id string) error {
	if m.room == id {
		m.room = ""
	}
	if m.machine.Current() != status.Connected {
		return nil
	}
	return m.Send(protocol.MustNew(protocol.TypeUnsubscribeConversation, protocol.ConversationRoom{ConversationID: id}))
}

// Room returns the currently joined conversation room.
func (m *Manager) Room() string { return m.room }

func (m *Manager) dial() {
	m.seq++
	seq := m.seq

	token, err := m.tokens.Token()
	if err != nil {
		m.failed(seq, fmt.Errorf("token: %w", err))
		return
	}
	target, err := withToken(m.cfg.URL, token)
	if err != nil {
		m.failed(seq, err)
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.DialTimeout)
	m.cancelDial = cancel
	m.logger.Debug("dialing push channel", zap.Uint64("seq", seq), zap.Int("attempt", m.attempts))
	go func() {
		conn, err := m.dialer.Dial(ctx, target)
		cancel()
		m.loop.Post(func() { m.dialed(seq, conn, err) })
	}()
}

func (m *Manager) dialed(seq uint64, conn Conn, err error) {
	if seq != m.seq || m.machine.Current() != status.Connecting {
		if conn != nil {
			_ = conn.Close()
		}
		m.logger.Debug("ignoring superseded dial result", zap.Uint64("seq", seq))
		return
	}
	m.cancelDial = nil
	if err != nil {
		m.failed(seq, err)
		return
	}

	m.conn = conn
	m.attempts = 0
	m.transition(status.Connected)
	m.logger.Info("push channel connected", zap.Uint64("seq", seq))

	m.scheduleHeartbeat(seq)
	go m.readPump(seq, conn)

	if err := m.Send(protocol.MustNew(protocol.TypeSubscribe, protocol.Subscribe{
		Data: protocol.SubscribeData{Type: protocol.SubscriptionConversations, UserID: m.cfg.UserID},
	})); err != nil {
		return
	}
	if m.room != "" {
		if err := m.Send(protocol.MustNew(protocol.TypeSubscribeConversation, protocol.ConversationRoom{ConversationID: m.room})); err != nil {
			return
		}
	}
	m.bus.Publish(protocol.MustNew(protocol.TypeConnected, nil))
}

func (m *Manager) readPump(seq uint64, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.loop.Post(func() { m.dropped(seq, err) })
			return
		}
		m.loop.Post(func() {
			if seq == m.seq {
				m.bus.Dispatch(data)
			}
		})
	}
}

// dropped handles the loss of an established connection.
func (m *Manager) dropped(seq uint64, err error) {
	if seq != m.seq || m.conn == nil {
		return
	}
	m.teardown()
	if m.intentional {
		return
	}
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		m.logger.Warn("push channel dropped", zap.Error(err))
	} else {
		m.logger.Info("push channel closed", zap.Error(err))
	}
	m.schedule(err)
}

// failed handles an attempt that never opened.
func (m *Manager) failed(seq uint64, err error) {
	if seq != m.seq {
		return
	}
	m.teardown()
	m.logger.Warn("push connect failed", zap.Int("attempt", m.attempts), zap.Error(err))
	m.schedule(err)
}

func (m *Manager) schedule(cause error) {
	if m.attempts >= m.cfg.MaxAttempts {
		m.transition(status.Failed)
		m.logger.Error("max reconnect attempts reached", zap.Int("attempts", m.attempts), zap.Error(cause))
		msg := ""
		if cause != nil {
			msg = cause.Error()
		}
		m.bus.Publish(protocol.MustNew(protocol.TypeReconnectFailed, protocol.ReconnectFailed{
			Attempts: m.attempts,
			Error:    msg,
		}))
		return
	}
	m.attempts++
	k := m.attempts
	delay := Delay(m.cfg.BaseDelay, k)
	m.transition(status.ReconnectScheduled)
	m.logger.Info("reconnect scheduled", zap.Int("attempt", k), zap.Duration("delay", delay))
	m.retry = m.loop.AfterFunc(delay, func() {
		m.retry = nil
		if m.machine.Current() != status.ReconnectScheduled {
			return
		}
		m.transition(status.Connecting)
		m.dial()
	})
}

func (m *Manager) scheduleHeartbeat(seq uint64) {
	m.heartbeat = m.loop.AfterFunc(m.cfg.Heartbeat, func() {
		m.heartbeat = nil
		if seq != m.seq || m.machine.Current() != status.Connected {
			return
		}
		if err := m.Send(protocol.MustNew(protocol.TypePing, nil)); err != nil {
			return
		}
		m.scheduleHeartbeat(seq)
	})
}

// teardown stops the heartbeat before anything else, then invalidates the
// current attempt and closes its connection.
func (m *Manager) teardown() {
	m.heartbeat.Stop()
	m.heartbeat = nil
	m.seq++
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			m.logger.Debug("close push connection", zap.Error(err))
		}
		m.conn = nil
	}
}

func (m *Manager) stopRetry() {
	m.retry.Stop()
	m.retry = nil
}

func (m *Manager) transition(to status.State) {
	if err := m.machine.Transition(to, m.attempts); err != nil {
		m.logger.Error("connection state", zap.Error(err))
	}
}
