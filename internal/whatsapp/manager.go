package whatsapp

import (
	"context"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"github.com/talkincode/wanotify/internal/domain"
	"go.uber.org/zap"
)

// TopicState is published with a Snapshot after every state change.
const TopicState = "session:state"

type Connectivity string

const (
	StateDisconnected Connectivity = "disconnected"
	StateConnecting   Connectivity = "connecting"
	StateConnected    Connectivity = "connected"
	StateLoggedOut    Connectivity = "logged_out"
)

// Snapshot is a copy of the session state.
type Snapshot struct {
	Connectivity     Connectivity `json:"connectivity"`
	PairingChallenge string       `json:"pairing_challenge,omitempty"`
	StartedAt        *time.Time   `json:"started_at,omitempty"`
	UptimeSeconds    int64        `json:"uptime_seconds"`
}

type Options struct {
	ReconnectDelay time.Duration
	SendTimeout    time.Duration
	InboundBuffer  int
	Bus            EventBus.Bus
}

func (o *Options) setDefaults() {
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 2 * time.Second
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 20 * time.Second
	}
	if o.InboundBuffer <= 0 {
		o.InboundBuffer = 256
	}
	if o.Bus == nil {
		o.Bus = EventBus.New()
	}
}

// Manager owns the single whatsapp session: it drives the connection state
// machine, reconnects after network drops and serializes sends.
type Manager struct {
	client Client
	opts   Options
	now    func() time.Time

	mu        sync.RWMutex
	state     Connectivity
	challenge string
	startedAt time.Time
	timer     *time.Timer
	inFlight  bool
	closed    bool

	sendMu  sync.Mutex
	inbound chan MessageReceived
}

func NewManager(client Client, opts Options) *Manager {
	opts.setDefaults()
	m := &Manager{
		client:  client,
		opts:    opts,
		now:     time.Now,
		state:   StateDisconnected,
		inbound: make(chan MessageReceived, opts.InboundBuffer),
	}
	client.SetEventHandler(m.handle)
	return m
}

// Bus returns the bus state changes are published on.
func (m *Manager) Bus() EventBus.Bus {
	return m.opts.Bus
}

// Messages is the inbound message stream.
func (m *Manager) Messages() <-chan MessageReceived {
	return m.inbound
}

// Start connects and blocks until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	zap.L().Info("whatsapp: starting session", zap.String("namespace", "whatsapp"))
	if err := m.Connect(ctx); err != nil {
		zap.L().Warn("whatsapp: initial connect failed", zap.String("namespace", "whatsapp"), zap.Error(err))
	}
	<-ctx.Done()
	zap.L().Info("whatsapp: shutting down session", zap.String("namespace", "whatsapp"))
	m.Close()
	return nil
}

// Connect resumes a stored session silently or starts pairing. It is also
// the only way out of StateLoggedOut.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.Wrap(domain.ErrServiceUnavailable, "whatsapp session closed")
	}
	if m.state == StateConnected || m.inFlight {
		m.mu.Unlock()
		return nil
	}
	m.stopTimerLocked()
	m.inFlight = true
	resume := m.client.HasCredentials()
	changed := false
	if !resume && m.state != StateConnecting {
		m.state = StateConnecting
		changed = true
	}
	if resume && m.state == StateLoggedOut {
		m.state = StateDisconnected
		changed = true
	}
	m.mu.Unlock()
	if changed {
		m.publish()
	}

	zap.L().Info("whatsapp: connecting", zap.String("namespace", "whatsapp"), zap.Bool("resume", resume))
	err := m.client.Connect(ctx)

	m.mu.Lock()
	m.inFlight = false
	if err == nil {
		m.mu.Unlock()
		return nil
	}
	changed = false
	if m.state != StateLoggedOut && m.state != StateConnected {
		changed = m.state != StateDisconnected
		m.state = StateDisconnected
		m.scheduleReconnectLocked()
	}
	m.mu.Unlock()
	if changed {
		m.publish()
	}
	zap.L().Warn("whatsapp: connect failed", zap.String("namespace", "whatsapp"), zap.Error(err))
	return errors.Wrapf(domain.ErrServiceUnavailable, "connect: %v", err)
}

// Close cancels reconnects and drops the connection.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.stopTimerLocked()
	m.mu.Unlock()
	m.client.Disconnect()
}

// Send delivers text to identity. It fails with domain.ErrNotConnected
// unless the session is connected, and with domain.ErrServiceUnavailable
// when the network rejects the message or the send timeout passes.
func (m *Manager) Send(ctx context.Context, identity, text string) error {
	if m.Snapshot().Connectivity != StateConnected {
		return errors.Wrap(domain.ErrNotConnected, "whatsapp session is not connected")
	}

	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.opts.SendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.client.SendText(ctx, identity, text)
	}()

	select {
	case err := <-done:
		if err != nil {
			zap.L().Warn("whatsapp: send message failed",
				zap.String("namespace", "whatsapp"),
				zap.String("identity", identity),
				zap.Error(err))
			return errors.Wrapf(domain.ErrServiceUnavailable, "send: %v", err)
		}
		zap.L().Debug("whatsapp: message sent", zap.String("namespace", "whatsapp"), zap.String("identity", identity))
		return nil
	case <-ctx.Done():
		return errors.Wrapf(domain.ErrServiceUnavailable, "send: %v", ctx.Err())
	}
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	s := Snapshot{Connectivity: m.state}
	if m.state != StateConnected {
		s.PairingChallenge = m.challenge
	}
	if m.state == StateConnected && !m.startedAt.IsZero() {
		started := m.startedAt
		s.StartedAt = &started
		s.UptimeSeconds = int64(m.now().Sub(started).Seconds())
	}
	return s
}

func (m *Manager) publish() {
	m.opts.Bus.Publish(TopicState, m.Snapshot())
}

// handle is the single dispatch point for client events.
func (m *Manager) handle(ev Event) {
	switch e := ev.(type) {
	case ConnectionChanged:
		m.onConnectionChanged(e)
	case MessageReceived:
		m.deliver(e)
	default:
		zap.L().Debug("whatsapp: unhandled event", zap.String("namespace", "whatsapp"), zap.Any("event", ev))
	}
}

func (m *Manager) onConnectionChanged(e ConnectionChanged) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	switch e.Kind {
	case KindPairingChallenge:
		if m.state == StateConnected {
			m.mu.Unlock()
			return
		}
		m.challenge = e.Challenge
		m.state = StateConnecting
		m.mu.Unlock()
		zap.L().Info("whatsapp: pairing challenge received", zap.String("namespace", "whatsapp"))

	case KindConnected:
		m.state = StateConnected
		m.challenge = ""
		m.startedAt = m.now()
		m.stopTimerLocked()
		m.mu.Unlock()
		zap.L().Info("whatsapp: connected", zap.String("namespace", "whatsapp"))
		m.persistCredentials()

	case KindDisconnected:
		if e.Cause == CauseLoggedOut {
			m.state = StateLoggedOut
			m.challenge = ""
			m.startedAt = time.Time{}
			m.stopTimerLocked()
			m.mu.Unlock()
			zap.L().Warn("whatsapp: logged out, pairing required", zap.String("namespace", "whatsapp"))
			break
		}
		if m.state == StateLoggedOut {
			m.mu.Unlock()
			return
		}
		m.state = StateDisconnected
		m.startedAt = time.Time{}
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		zap.L().Warn("whatsapp: disconnected, reconnect scheduled",
			zap.String("namespace", "whatsapp"),
			zap.Duration("delay", m.opts.ReconnectDelay))

	default:
		m.mu.Unlock()
		return
	}
	m.publish()
}

func (m *Manager) persistCredentials() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.client.PersistCredentials(ctx); err != nil {
		zap.L().Error("whatsapp: persist credentials failed", zap.String("namespace", "whatsapp"), zap.Error(err))
	}
}

// scheduleReconnectLocked arms the reconnect timer unless one is pending.
func (m *Manager) scheduleReconnectLocked() {
	if m.closed || m.state == StateLoggedOut || m.timer != nil {
		return
	}
	m.timer = time.AfterFunc(m.opts.ReconnectDelay, m.reconnect)
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) reconnect() {
	m.mu.Lock()
	m.timer = nil
	if m.closed || m.state == StateLoggedOut || m.state == StateConnected {
		m.mu.Unlock()
		return
	}
	if m.inFlight {
		// an attempt is running; check again after another delay
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	if err := m.Connect(context.Background()); err != nil {
		zap.L().Warn("whatsapp: reconnect attempt failed", zap.String("namespace", "whatsapp"), zap.Error(err))
	}
}

// deliver never blocks the caller, which is the network read loop.
func (m *Manager) deliver(msg MessageReceived) {
	select {
	case m.inbound <- msg:
	default:
		go func() { m.inbound <- msg }()
	}
}
