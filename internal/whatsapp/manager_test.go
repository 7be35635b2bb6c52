package whatsapp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/wanotify/internal/domain"
)

type sentText struct {
	identity string
	text     string
}

type fakeClient struct {
	mu         sync.Mutex
	creds      bool
	connects   int
	connectErr []error
	sendErr    error
	sendDelay  time.Duration
	sent       []sentText
	persisted  int
	handler    func(Event)
	onConnect  func(f *fakeClient)
}

func (f *fakeClient) HasCredentials() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creds
}

func (f *fakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connects++
	var err error
	if len(f.connectErr) > 0 {
		err = f.connectErr[0]
		f.connectErr = f.connectErr[1:]
	}
	hook := f.onConnect
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(f)
	}
	return nil
}

func (f *fakeClient) Disconnect() {}

func (f *fakeClient) SendText(ctx context.Context, identity, text string) error {
	if f.sendDelay > 0 {
		select {
		case <-time.After(f.sendDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentText{identity, text})
	return nil
}

func (f *fakeClient) PersistCredentials(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persisted++
	return nil
}

func (f *fakeClient) SetEventHandler(h func(Event)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *fakeClient) emit(ev Event) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h(ev)
}

func (f *fakeClient) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func emitConnected(f *fakeClient) {
	f.emit(ConnectionChanged{Kind: KindConnected})
}

type stateRecorder struct {
	mu     sync.Mutex
	states []Snapshot
}

func (r *stateRecorder) record(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) seen(c Connectivity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.states {
		if s.Connectivity == c {
			return true
		}
	}
	return false
}

func (r *stateRecorder) challengeSeen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.states {
		if s.PairingChallenge != "" {
			return true
		}
	}
	return false
}

func newTestManager(t *testing.T, f *fakeClient) (*Manager, *stateRecorder) {
	t.Helper()
	m := NewManager(f, Options{
		ReconnectDelay: 20 * time.Millisecond,
		SendTimeout:    100 * time.Millisecond,
		InboundBuffer:  1,
	})
	rec := &stateRecorder{}
	require.NoError(t, m.Bus().Subscribe(TopicState, rec.record))
	t.Cleanup(m.Close)
	return m, rec
}

func TestConnectResumesWithoutChallenge(t *testing.T) {
	f := &fakeClient{creds: true, onConnect: emitConnected}
	m, rec := newTestManager(t, f)

	assert.Equal(t, StateDisconnected, m.Snapshot().Connectivity)
	require.NoError(t, m.Connect(context.Background()))

	snap := m.Snapshot()
	assert.Equal(t, StateConnected, snap.Connectivity)
	assert.Empty(t, snap.PairingChallenge)
	require.NotNil(t, snap.StartedAt)
	assert.False(t, rec.seen(StateConnecting), "resume must not pass through connecting")
	assert.False(t, rec.challengeSeen())
	assert.Equal(t, 1, f.persisted)
}

func TestConnectPairing(t *testing.T) {
	f := &fakeClient{onConnect: func(f *fakeClient) {
		f.emit(ConnectionChanged{Kind: KindPairingChallenge, Challenge: "2@abc"})
	}}
	m, _ := newTestManager(t, f)

	require.NoError(t, m.Connect(context.Background()))
	snap := m.Snapshot()
	assert.Equal(t, StateConnecting, snap.Connectivity)
	assert.Equal(t, "2@abc", snap.PairingChallenge)
	assert.Zero(t, snap.UptimeSeconds)

	f.emit(ConnectionChanged{Kind: KindConnected})
	snap = m.Snapshot()
	assert.Equal(t, StateConnected, snap.Connectivity)
	assert.Empty(t, snap.PairingChallenge)
	assert.Equal(t, 1, f.persisted)
}

func TestLoggedOutIsTerminal(t *testing.T) {
	f := &fakeClient{creds: true, onConnect: emitConnected}
	m, rec := newTestManager(t, f)
	require.NoError(t, m.Connect(context.Background()))

	f.mu.Lock()
	f.creds = false
	f.mu.Unlock()
	f.emit(ConnectionChanged{Kind: KindDisconnected, Cause: CauseLoggedOut})
	// a socket close that follows the logout must not revive the session
	f.emit(ConnectionChanged{Kind: KindDisconnected, Cause: CauseNetwork})

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, StateLoggedOut, m.Snapshot().Connectivity)
	assert.Equal(t, 1, f.connectCount(), "no automatic reconnect after logout")
	assert.False(t, rec.seen(StateConnecting))

	// an explicit connect starts a fresh pairing
	f.mu.Lock()
	f.onConnect = func(f *fakeClient) {
		f.emit(ConnectionChanged{Kind: KindPairingChallenge, Challenge: "fresh"})
	}
	f.mu.Unlock()
	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, StateConnecting, m.Snapshot().Connectivity)
	assert.Equal(t, "fresh", m.Snapshot().PairingChallenge)
}

func TestNetworkDropReconnects(t *testing.T) {
	f := &fakeClient{creds: true, onConnect: emitConnected}
	m, _ := newTestManager(t, f)
	require.NoError(t, m.Connect(context.Background()))

	f.emit(ConnectionChanged{Kind: KindDisconnected, Cause: CauseNetwork})
	assert.Equal(t, StateDisconnected, m.Snapshot().Connectivity)

	require.Eventually(t, func() bool {
		return m.Snapshot().Connectivity == StateConnected
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, f.connectCount())
}

func TestConnectFailureRetries(t *testing.T) {
	f := &fakeClient{
		creds:      true,
		onConnect:  emitConnected,
		connectErr: []error{errors.New("dial tcp: timeout"), errors.New("dial tcp: timeout")},
	}
	m, _ := newTestManager(t, f)

	err := m.Connect(context.Background())
	assert.True(t, errors.Is(err, domain.ErrServiceUnavailable))

	require.Eventually(t, func() bool {
		return m.Snapshot().Connectivity == StateConnected
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, f.connectCount())
}

func TestSingleConnectInFlight(t *testing.T) {
	release := make(chan struct{})
	f := &fakeClient{creds: true, onConnect: func(f *fakeClient) {
		<-release
		f.emit(ConnectionChanged{Kind: KindConnected})
	}}
	m, _ := newTestManager(t, f)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Connect(context.Background())
		}()
	}
	require.Eventually(t, func() bool { return f.connectCount() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, f.connectCount())
	assert.Equal(t, StateConnected, m.Snapshot().Connectivity)
}

func TestSend(t *testing.T) {
	f := &fakeClient{creds: true, onConnect: emitConnected}
	m, _ := newTestManager(t, f)
	ctx := context.Background()

	err := m.Send(ctx, "201234567890", "hi")
	assert.True(t, errors.Is(err, domain.ErrNotConnected))

	require.NoError(t, m.Connect(ctx))
	require.NoError(t, m.Send(ctx, "201234567890", "hi"))
	assert.Equal(t, []sentText{{"201234567890", "hi"}}, f.sent)

	f.mu.Lock()
	f.sendErr = errors.New("server returned error 479")
	f.mu.Unlock()
	err = m.Send(ctx, "201234567890", "again")
	assert.True(t, errors.Is(err, domain.ErrServiceUnavailable))
}

func TestSendTimeout(t *testing.T) {
	f := &fakeClient{creds: true, onConnect: emitConnected, sendDelay: time.Second}
	m, _ := newTestManager(t, f)
	require.NoError(t, m.Connect(context.Background()))

	start := time.Now()
	err := m.Send(context.Background(), "201234567890", "slow")
	assert.True(t, errors.Is(err, domain.ErrServiceUnavailable))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestInboundDeliveryDoesNotBlock(t *testing.T) {
	f := &fakeClient{creds: true}
	m, _ := newTestManager(t, f)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			f.emit(MessageReceived{ID: string(rune('a' + i)), Sender: "201234567890", SenderServer: UserServer})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event handler blocked on a full inbound buffer")
	}

	got := map[string]bool{}
	for i := 0; i < 3; i++ {
		select {
		case msg := <-m.Messages():
			got[msg.ID] = true
		case <-time.After(time.Second):
			t.Fatal("missing inbound message")
		}
	}
	assert.Len(t, got, 3)
}

func TestMessageDirect(t *testing.T) {
	base := MessageReceived{Sender: "201234567890", SenderServer: UserServer}
	assert.True(t, base.Direct())

	own := base
	own.FromMe = true
	assert.False(t, own.Direct())

	group := base
	group.Group = true
	assert.False(t, group.Direct())

	status := base
	status.Broadcast = true
	assert.False(t, status.Direct())

	lid := base
	lid.SenderServer = "lid"
	assert.False(t, lid.Direct())
}
