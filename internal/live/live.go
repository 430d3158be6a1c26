// Package live keeps the agenda view in sync with the server's change
// channel. It turns transport callbacks into events, shows toasts for other
// users' changes, reloads the view after every change and drives the
// connection indicator.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/zsprackett/agenda-live/internal/events"
	"github.com/zsprackett/agenda-live/internal/socketio"
)

// Transport is a reconnecting event channel. Run delivers callbacks to h on
// a single goroutine until ctx is cancelled or Close is called.
type Transport interface {
	Run(ctx context.Context, h socketio.Handler) error
	Emit(name string, args ...any) error
	Close() error
}

// Dialer creates the transport for one Init/Disconnect cycle. An error means
// the transport is unavailable.
type Dialer func() (Transport, error)

// SocketIODialer returns a Dialer that creates a socket.io client with opts.
func SocketIODialer(opts socketio.Options) Dialer {
	return func() (Transport, error) {
		return socketio.New(opts)
	}
}

type Notifier interface {
	Notify(message string, change events.Change) bool
}

type Refresher interface {
	Refresh(ctx context.Context)
}

type Options struct {
	Dial        Dialer
	Notifier    Notifier
	Refresher   Refresher
	Status      StatusView
	Presence    PresenceView
	Broadcaster events.Broadcaster
	// KeepAlive defaults to DefaultKeepAlive.
	KeepAlive time.Duration
	Logger    *slog.Logger
}

// Client is the live-update client. Its zero value is not usable; create
// one with New. Client implements socketio.Handler.
type Client struct {
	opts Options

	mu        sync.Mutex
	user      string
	connected bool
	transport Transport
	cancel    context.CancelFunc
	done      chan struct{}

	kaMu      sync.Mutex
	keepAlive *keepAlive

	refreshes sync.WaitGroup
}

func New(opts Options) *Client {
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = DefaultKeepAlive
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{opts: opts}
}

// Init records the local user and starts the connection. It returns false
// when no transport can be created. Calling Init while already running only
// replaces the user.
func (c *Client) Init(user string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.user = user
	if c.transport != nil {
		return true
	}
	if c.opts.Dial == nil {
		c.opts.Logger.Warn("live: no transport configured")
		return false
	}
	t, err := c.opts.Dial()
	if err != nil {
		c.opts.Logger.Warn("live: transport unavailable", "err", err)
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.transport, c.cancel, c.done = t, cancel, done

	c.opts.Logger.Info("live: connecting", "user", user)
	go func() {
		defer close(done)
		if err := t.Run(ctx, c); err != nil && !errors.Is(err, context.Canceled) {
			c.opts.Logger.Warn("live: transport stopped", "err", err)
		}
	}()
	return true
}

// IsConnected reports the last status the transport announced.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// User returns the identity given to Init.
func (c *Client) User() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Disconnect stops the keep-alive and closes the connection. In-flight
// refreshes are left to finish. Calling it again, or before Init, does
// nothing. It must not be called from a transport callback.
func (c *Client) Disconnect() {
	c.mu.Lock()
	t, cancel, done := c.transport, c.cancel, c.done
	c.transport, c.cancel, c.done = nil, nil, nil
	c.mu.Unlock()
	if t == nil {
		return
	}

	c.stopKeepAlive()
	if err := t.Close(); err != nil {
		c.opts.Logger.Warn("live: close transport", "err", err)
	}
	cancel()
	<-done
	// a connect racing the close may have restarted the ticker
	c.stopKeepAlive()

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.opts.Logger.Info("live: disconnected by client")
}

// WaitRefreshes blocks until every started refresh has returned.
func (c *Client) WaitRefreshes() {
	c.refreshes.Wait()
}

func (c *Client) OnConnect() { c.Handle(events.Connected{}) }

func (c *Client) OnDisconnect(reason string) { c.Handle(events.Disconnected{Reason: reason}) }

func (c *Client) OnConnectError(err error) { c.Handle(events.ConnectError{Err: err}) }

func (c *Client) OnEvent(name string, payload json.RawMessage) {
	e, err := events.Decode(name, payload)
	if err != nil {
		c.opts.Logger.Warn("live: bad event", "event", name, "err", err)
		return
	}
	if e == nil {
		c.opts.Logger.Debug("live: ignoring event", "event", name)
		return
	}
	c.Handle(e)
}

// Handle applies one event. Transports call it in delivery order from a
// single goroutine.
func (c *Client) Handle(e events.Event) {
	switch e := e.(type) {
	case events.Connected:
		c.opts.Logger.Info("live: connected")
		c.setStatus(true)
		c.startKeepAlive()
	case events.Disconnected:
		c.opts.Logger.Info("live: disconnected", "reason", e.Reason)
		c.setStatus(false)
		c.stopKeepAlive()
	case events.ConnectError:
		c.opts.Logger.Warn("live: connect error", "err", e.Err)
		c.setStatus(false)
	case events.ChangeReceived:
		c.opts.Logger.Debug("live: change received",
			"type", e.Change.Type, "entity", e.Change.Entity, "actor", e.Change.Actor)
		c.dispatch(e.Change)
	case events.PresenceReceived:
		c.opts.Logger.Info("live: user connected", "user", e.User)
		if c.opts.Presence != nil {
			c.opts.Presence.ShowPresence(e.User)
		}
	case events.Pong:
		c.opts.Logger.Debug("live: pong")
	}
	if c.opts.Broadcaster != nil {
		c.opts.Broadcaster.Broadcast(e)
	}
}

// dispatch notifies about someone else's change, then starts a refresh.
// Every change refreshes, whoever made it.
func (c *Client) dispatch(change events.Change) {
	if change.Actor == c.User() {
		c.opts.Logger.Debug("live: own change, refreshing without notification")
	} else if msg, ok := Message(change); ok && c.opts.Notifier != nil {
		c.opts.Notifier.Notify(msg, change)
	}
	c.refresh()
}

func (c *Client) refresh() {
	r := c.opts.Refresher
	if r == nil {
		return
	}
	c.refreshes.Add(1)
	go func() {
		defer c.refreshes.Done()
		r.Refresh(context.Background())
	}()
}

func (c *Client) setStatus(connected bool) {
	c.mu.Lock()
	c.connected = connected
	c.mu.Unlock()
	if c.opts.Status == nil {
		return
	}
	if connected {
		c.opts.Status.SetStatus(Connected)
	} else {
		c.opts.Status.SetStatus(Disconnected)
	}
}

func (c *Client) startKeepAlive() {
	c.kaMu.Lock()
	defer c.kaMu.Unlock()
	if c.keepAlive != nil {
		c.keepAlive.Stop()
	}
	c.keepAlive = startKeepAlive(c.opts.KeepAlive, c.ping)
}

func (c *Client) stopKeepAlive() {
	c.kaMu.Lock()
	defer c.kaMu.Unlock()
	if c.keepAlive != nil {
		c.keepAlive.Stop()
		c.keepAlive = nil
	}
}

// KeepAliveRunning reports whether the keep-alive ticker is active.
func (c *Client) KeepAliveRunning() bool {
	c.kaMu.Lock()
	defer c.kaMu.Unlock()
	return c.keepAlive != nil
}

func (c *Client) ping() {
	c.mu.Lock()
	t, connected := c.transport, c.connected
	c.mu.Unlock()
	if !connected || t == nil {
		return
	}
	if err := t.Emit(events.NamePing); err != nil {
		c.opts.Logger.Debug("live: keep-alive ping failed", "err", err)
	}
}
