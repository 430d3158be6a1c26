// Package socketio is a minimal Socket.IO v5 client over the Engine.IO v4
// websocket transport. It keeps one connection open and redials after a
// fixed delay whenever the connection is lost, for as long as Run is active.
package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Disconnect reasons, named after the ones socket.io clients report.
const (
	ReasonTransportClose   = "transport close"
	ReasonTransportError   = "transport error"
	ReasonPingTimeout      = "ping timeout"
	ReasonServerDisconnect = "io server disconnect"
	ReasonClientDisconnect = "io client disconnect"
)

var (
	ErrNotConnected = errors.New("socketio: not connected")
	ErrClosed       = errors.New("socketio: client closed")
)

const handshakeTimeout = 10 * time.Second

// Handler receives connection lifecycle callbacks. All calls happen on the
// goroutine running Run, in the order the server produced them.
type Handler interface {
	OnConnect()
	OnDisconnect(reason string)
	OnConnectError(err error)
	OnEvent(name string, payload json.RawMessage)
}

type Options struct {
	// URL is the http(s) base of the server, e.g. http://localhost:5000.
	URL  string
	Path string
	// Header is sent with the websocket upgrade request.
	Header http.Header
	// Auth, when non-nil, is sent as the CONNECT payload.
	Auth           any
	ReconnectDelay time.Duration
	Dialer         *websocket.Dialer
	Logger         *slog.Logger
}

type Client struct {
	opts  Options
	wsURL string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool

	writeMu sync.Mutex

	closed    chan struct{}
	closeOnce sync.Once
}

func New(opts Options) (*Client, error) {
	wsURL, err := websocketURL(opts.URL, opts.Path)
	if err != nil {
		return nil, err
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 3 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		opts:   opts,
		wsURL:  wsURL,
		closed: make(chan struct{}),
	}, nil
}

func websocketURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("socketio: parse url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("socketio: unsupported scheme %q", u.Scheme)
	}
	if path == "" {
		path = "/socket.io/"
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Run connects and keeps reconnecting until ctx is cancelled or Close is
// called. It returns nil after Close and ctx.Err() after cancellation.
func (c *Client) Run(ctx context.Context, h Handler) error {
	for {
		select {
		case <-c.closed:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		c.session(ctx, h)

		timer := time.NewTimer(c.opts.ReconnectDelay)
		select {
		case <-c.closed:
			timer.Stop()
			return nil
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			c.opts.Logger.Debug("socketio: reconnecting", "url", c.wsURL)
		}
	}
}

// session runs one connection attempt to completion.
func (c *Client) session(ctx context.Context, h Handler) {
	conn, _, err := c.opts.Dialer.DialContext(ctx, c.wsURL, c.opts.Header)
	if err != nil {
		h.OnConnectError(err)
		return
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-c.closed:
		case <-done:
			return
		}
		conn.Close()
	}()

	hs, err := c.handshake(conn)
	if err != nil {
		conn.Close()
		h.OnConnectError(err)
		return
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	h.OnConnect()
	reason := c.readLoop(conn, hs, h)

	c.mu.Lock()
	c.conn = nil
	c.connected = false
	c.mu.Unlock()
	conn.Close()

	h.OnDisconnect(reason)
}

func (c *Client) handshake(conn *websocket.Conn) (handshake, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		return handshake{}, fmt.Errorf("socketio: read open: %w", err)
	}
	hs, err := parseHandshake(frame)
	if err != nil {
		return hs, err
	}

	connect := Packet{Type: TypeConnect, ID: -1}
	if c.opts.Auth != nil {
		data, err := json.Marshal(c.opts.Auth)
		if err != nil {
			return hs, fmt.Errorf("socketio: encode auth: %w", err)
		}
		connect.Data = data
	}
	if err := c.write(conn, Encode(connect)); err != nil {
		return hs, fmt.Errorf("socketio: send connect: %w", err)
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return hs, fmt.Errorf("socketio: await connect: %w", err)
		}
		if len(frame) == 0 {
			continue
		}
		if frame[0] == enginePing {
			c.write(conn, []byte{enginePong})
			continue
		}
		p, err := Decode(frame)
		if err != nil {
			continue
		}
		switch p.Type {
		case TypeConnect:
			conn.SetReadDeadline(time.Now().Add(hs.readTimeout()))
			return hs, nil
		case TypeConnectError:
			return hs, errors.New(connectErrorMessage(p.Data))
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn, hs handshake, h Handler) string {
	for {
		conn.SetReadDeadline(time.Now().Add(hs.readTimeout()))
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return c.reasonFor(err)
		}
		if len(frame) == 0 {
			continue
		}
		switch frame[0] {
		case enginePing:
			if err := c.write(conn, []byte{enginePong}); err != nil {
				return ReasonTransportError
			}
		case engineClose:
			return ReasonTransportClose
		case engineMessage:
			p, err := Decode(frame)
			if err != nil {
				c.opts.Logger.Warn("socketio: bad packet", "err", err)
				continue
			}
			switch p.Type {
			case TypeEvent:
				name, payload, err := EventArgs(p.Data)
				if err != nil {
					c.opts.Logger.Warn("socketio: bad event", "err", err)
					continue
				}
				h.OnEvent(name, payload)
			case TypeDisconnect:
				return ReasonServerDisconnect
			}
		}
	}
}

func (c *Client) reasonFor(err error) string {
	select {
	case <-c.closed:
		return ReasonClientDisconnect
	default:
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ReasonPingTimeout
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return ReasonTransportClose
	}
	return ReasonTransportError
}

func (c *Client) write(conn *websocket.Conn, frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// Connected reports whether the namespace handshake has completed on the
// current connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Emit sends an event to the server. It fails with ErrNotConnected while the
// client is between connections.
func (c *Client) Emit(name string, args ...any) error {
	frame, err := EncodeEvent(name, args...)
	if err != nil {
		return err
	}
	c.mu.Lock()
	conn, connected := c.conn, c.connected
	c.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}
	return c.write(conn, frame)
}

// Close stops Run and closes the current connection, sending a namespace
// DISCONNECT first when connected. Calling Close more than once is safe.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		conn, connected := c.conn, c.connected
		c.mu.Unlock()
		if connected && conn != nil {
			c.write(conn, Encode(Packet{Type: TypeDisconnect, ID: -1}))
		}
		close(c.closed)
		if conn != nil {
			conn.Close()
		}
	})
	return nil
}
