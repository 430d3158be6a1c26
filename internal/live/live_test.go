package live_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsprackett/agenda-live/internal/events"
	"github.com/zsprackett/agenda-live/internal/live"
	"github.com/zsprackett/agenda-live/internal/notify"
	"github.com/zsprackett/agenda-live/internal/socketio"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransport blocks in Run until closed and records emitted events.
type fakeTransport struct {
	mu        sync.Mutex
	emitted   []string
	handler   socketio.Handler
	running   chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	closes    int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		running: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

func (f *fakeTransport) Run(ctx context.Context, h socketio.Handler) error {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
	close(f.running)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.closed:
		return nil
	}
}

func (f *fakeTransport) Emit(name string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, name)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) pings() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, name := range f.emitted {
		if name == events.NamePing {
			n++
		}
	}
	return n
}

type toasts struct {
	mu   sync.Mutex
	msgs []string
}

func (t *toasts) Toast(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs, msg)
}

func (t *toasts) all() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.msgs...)
}

type countingRefresher struct {
	calls chan struct{}
}

func (r *countingRefresher) Refresh(ctx context.Context) { r.calls <- struct{}{} }

type statusRecorder struct {
	mu      sync.Mutex
	history []live.Status
}

func (s *statusRecorder) SetStatus(st live.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, st)
}

func (s *statusRecorder) all() []live.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]live.Status(nil), s.history...)
}

func (s *statusRecorder) last() (live.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return 0, false
	}
	return s.history[len(s.history)-1], true
}

type fixture struct {
	client    *live.Client
	transport *fakeTransport
	toasts    *toasts
	refresher *countingRefresher
	status    *statusRecorder
	notifier  *notify.Notifier
	clock     time.Time
}

func newFixture(t *testing.T, keepAlive time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		transport: newFakeTransport(),
		toasts:    &toasts{},
		refresher: &countingRefresher{calls: make(chan struct{}, 16)},
		status:    &statusRecorder{},
		clock:     time.Date(2026, 5, 6, 10, 0, 0, 0, time.UTC),
	}
	f.notifier = notify.New(notify.Config{}, f.toasts, nil, discardLogger())
	f.notifier.SetNow(func() time.Time { return f.clock })
	f.client = live.New(live.Options{
		Dial:      func() (live.Transport, error) { return f.transport, nil },
		Notifier:  f.notifier,
		Refresher: f.refresher,
		Status:    f.status,
		KeepAlive: keepAlive,
		Logger:    discardLogger(),
	})
	t.Cleanup(f.client.Disconnect)
	return f
}

func (f *fixture) refreshes(t *testing.T, want int) {
	t.Helper()
	f.client.WaitRefreshes()
	assert.Len(t, f.refresher.calls, want)
}

func change(typ events.ChangeType, entity events.Entity, actor string) events.Event {
	return events.ChangeReceived{Change: events.Change{Type: typ, Entity: entity, Actor: actor}}
}

func TestOtherUsersChangeNotifiesAndRefreshes(t *testing.T) {
	f := newFixture(t, time.Hour)
	require.True(t, f.client.Init("Bruno"))

	f.client.Handle(change(events.Insert, events.EntityDemanda, "Ana"))

	assert.Equal(t, []string{"Ana criou uma demanda"}, f.toasts.all())
	f.refreshes(t, 1)
}

func TestOwnChangeRefreshesWithoutNotification(t *testing.T) {
	f := newFixture(t, time.Hour)
	require.True(t, f.client.Init("Ana"))

	f.client.Handle(change(events.Insert, events.EntityDemanda, "Ana"))

	assert.Empty(t, f.toasts.all())
	f.refreshes(t, 1)
}

func TestUnknownEntityRefreshesOnly(t *testing.T) {
	f := newFixture(t, time.Hour)
	require.True(t, f.client.Init("Bruno"))

	f.client.Handle(change(events.Insert, events.Entity("FORNECEDOR"), "Ana"))
	f.client.Handle(change(events.ChangeType("MERGE"), events.EntityDemanda, "Ana"))

	assert.Empty(t, f.toasts.all())
	f.refreshes(t, 2)
}

func TestDuplicateNotificationsWithinOneSecond(t *testing.T) {
	f := newFixture(t, time.Hour)
	require.True(t, f.client.Init("Bruno"))

	f.client.Handle(change(events.Update, events.EntityDemanda, "Ana"))
	f.clock = f.clock.Add(500 * time.Millisecond)
	f.client.Handle(change(events.Update, events.EntityDemanda, "Ana"))
	assert.Len(t, f.toasts.all(), 1)

	f.clock = f.clock.Add(1500 * time.Millisecond)
	f.client.Handle(change(events.Update, events.EntityDemanda, "Ana"))
	assert.Equal(t, []string{"Ana atualizou uma demanda", "Ana atualizou uma demanda"}, f.toasts.all())

	// every event refreshes, suppressed or not
	f.refreshes(t, 3)
}

func TestInitWithoutTransport(t *testing.T) {
	c := live.New(live.Options{Logger: discardLogger()})
	assert.False(t, c.Init("Ana"))

	c = live.New(live.Options{
		Dial:   func() (live.Transport, error) { return nil, errors.New("no socket library") },
		Logger: discardLogger(),
	})
	assert.False(t, c.Init("Ana"))
	c.Disconnect()
}

func TestInitTwiceKeepsOneConnection(t *testing.T) {
	dials := 0
	tr := newFakeTransport()
	c := live.New(live.Options{
		Dial: func() (live.Transport, error) {
			dials++
			return tr, nil
		},
		Logger: discardLogger(),
	})
	require.True(t, c.Init("Ana"))
	require.True(t, c.Init("Bruno"))
	assert.Equal(t, 1, dials)
	assert.Equal(t, "Bruno", c.User())
	c.Disconnect()
}

func TestConnectionStatusAndKeepAlive(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond)
	require.True(t, f.client.Init("Bruno"))
	<-f.transport.running

	_, ok := f.status.last()
	assert.False(t, ok, "indicator is created on the first status update")
	assert.False(t, f.client.IsConnected())

	f.client.OnConnect()
	st, _ := f.status.last()
	assert.Equal(t, live.Connected, st)
	assert.True(t, f.client.IsConnected())
	assert.True(t, f.client.KeepAliveRunning())
	require.Eventually(t, func() bool { return f.transport.pings() >= 2 }, time.Second, 5*time.Millisecond)

	f.client.OnDisconnect(socketio.ReasonTransportClose)
	st, _ = f.status.last()
	assert.Equal(t, live.Disconnected, st)
	assert.False(t, f.client.IsConnected())
	assert.False(t, f.client.KeepAliveRunning())
	stopped := f.transport.pings()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, f.transport.pings(), "no pings while disconnected")

	f.client.OnConnect()
	assert.True(t, f.client.KeepAliveRunning())
	require.Eventually(t, func() bool { return f.transport.pings() > stopped }, time.Second, 5*time.Millisecond)
}

func TestConnectErrorShowsDisconnected(t *testing.T) {
	f := newFixture(t, time.Hour)
	require.True(t, f.client.Init("Bruno"))

	f.client.OnConnectError(errors.New("dial tcp: connection refused"))
	st, ok := f.status.last()
	require.True(t, ok)
	assert.Equal(t, live.Disconnected, st)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond)
	f.client.Disconnect()

	require.True(t, f.client.Init("Bruno"))
	<-f.transport.running
	f.client.OnConnect()

	f.client.Disconnect()
	f.client.Disconnect()
	assert.False(t, f.client.IsConnected())
	assert.False(t, f.client.KeepAliveRunning())
	assert.Equal(t, 1, f.transport.closes)
}

func TestOnEventDecodesPayloads(t *testing.T) {
	f := newFixture(t, time.Hour)
	require.True(t, f.client.Init("Bruno"))

	f.client.OnEvent(events.NameChange, []byte(`{"tipo":"INSERT","entidade":"LOCACAO_FORNECEDOR","usuario":"Carla"}`))
	f.client.OnEvent(events.NameChange, []byte(`not json`))
	f.client.OnEvent("mensagem_desconhecida", nil)
	f.client.OnEvent(events.NamePong, nil)

	assert.Equal(t, []string{"Carla criou uma locação"}, f.toasts.all())
	f.refreshes(t, 1)
}

type presence struct{ users []string }

func (p *presence) ShowPresence(user string) { p.users = append(p.users, user) }

type capture struct{ got []events.Event }

func (c *capture) Broadcast(e events.Event) { c.got = append(c.got, e) }

func TestPresenceAndBroadcast(t *testing.T) {
	p := &presence{}
	b := &capture{}
	c := live.New(live.Options{Presence: p, Broadcaster: b, Logger: discardLogger()})

	c.Handle(events.PresenceReceived{User: "Ana"})
	c.Handle(events.Pong{})

	assert.Equal(t, []string{"Ana"}, p.users)
	assert.Equal(t, []events.Event{events.PresenceReceived{User: "Ana"}, events.Pong{}}, b.got)
}
