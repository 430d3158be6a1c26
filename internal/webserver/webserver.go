// Package webserver mirrors the live channel onto a local HTTP feed so
// other tools (status bars, scripts) can follow agenda changes without
// their own login.
package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/zsprackett/agenda-live/internal/db"
	"github.com/zsprackett/agenda-live/internal/events"
	"github.com/zsprackett/agenda-live/internal/live"
)

const sseKeepAlive = 30 * time.Second

type Config struct {
	Enabled bool
	Port    int
	Host    string
}

// History lists stored notifications, newest first.
type History interface {
	RecentNotifications(limit int) ([]db.Notification, error)
}

// StatusSource reports the live connection; *live.Client satisfies it.
type StatusSource interface {
	IsConnected() bool
	User() string
}

type Server struct {
	history History
	cfg     Config
	logger  *slog.Logger

	mu      sync.Mutex
	status  StatusSource
	clients map[chan payload]struct{}
	addr    net.Addr
}

func New(history History, cfg Config, logger *slog.Logger) *Server {
	return &Server{
		history: history,
		cfg:     cfg,
		logger:  logger,
		clients: make(map[chan payload]struct{}),
	}
}

// SetStatus installs the connection the status endpoint reports on. The live
// client is built with the server as its broadcaster, so this comes after New.
func (s *Server) SetStatus(src StatusSource) {
	s.mu.Lock()
	s.status = src
	s.mu.Unlock()
}

func (s *Server) connection() (connected bool, user string) {
	s.mu.Lock()
	src := s.status
	s.mu.Unlock()
	if src == nil {
		return false, ""
	}
	return src.IsConnected(), src.User()
}

// payload is the JSON shape of one event on the feed.
type payload struct {
	Type    string `json:"type"`
	Tipo    string `json:"tipo,omitempty"`
	Entity  string `json:"entidade,omitempty"`
	User    string `json:"usuario,omitempty"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

func toPayload(e events.Event) (payload, bool) {
	switch e := e.(type) {
	case events.Connected:
		return payload{Type: "connected"}, true
	case events.Disconnected:
		return payload{Type: "disconnected", Reason: e.Reason}, true
	case events.ConnectError:
		p := payload{Type: "connect_error"}
		if e.Err != nil {
			p.Error = e.Err.Error()
		}
		return p, true
	case events.ChangeReceived:
		msg, _ := live.Message(e.Change)
		return payload{
			Type:    "change",
			Tipo:    string(e.Change.Type),
			Entity:  string(e.Change.Entity),
			User:    e.Change.Actor,
			Message: msg,
		}, true
	case events.PresenceReceived:
		return payload{Type: "presence", User: e.User}, true
	}
	return payload{}, false
}

// Broadcast implements events.Broadcaster. Slow clients miss events rather
// than block the live client.
func (s *Server) Broadcast(e events.Event) {
	p, ok := toPayload(e)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.clients {
		select {
		case ch <- p:
		default:
		}
	}
}

func (s *Server) addClient(ch chan payload) {
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeClient(ch chan payload) {
	s.mu.Lock()
	delete(s.clients, ch)
	s.mu.Unlock()
}

// Clients returns the number of open event streams.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/notifications", s.handleNotifications)
	mux.HandleFunc("GET /events", s.handleSSE)
	return mux
}

// Start listens in the background until ctx is cancelled. It does nothing
// when the relay is disabled.
func (s *Server) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port)))
	if err != nil {
		return fmt.Errorf("webserver: listen: %w", err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	srv := &http.Server{
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("webserver: serve", "err", err)
		}
	}()
	s.logger.Info("webserver: relay listening", "addr", ln.Addr().String())
	return nil
}

// Addr is the bound address once Start has succeeded.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

type statusResponse struct {
	Connected bool   `json:"connected"`
	User      string `json:"usuario"`
	Color     string `json:"color"`
	Title     string `json:"title"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := live.Disconnected
	connected, user := s.connection()
	if connected {
		st = live.Connected
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{
		Connected: st == live.Connected,
		User:      user,
		Color:     st.Color(),
		Title:     st.Tooltip(),
	})
}

type notificationJSON struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	User    string    `json:"usuario"`
	Entity  string    `json:"entidade"`
	Tipo    string    `json:"tipo"`
	At      time.Time `json:"at"`
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	items, err := s.history.RecentNotifications(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]notificationJSON, 0, len(items))
	for _, n := range items {
		out = append(out, notificationJSON{
			ID:      n.ID,
			Message: n.Message,
			User:    n.Actor,
			Entity:  n.Entity,
			Tipo:    n.ChangeType,
			At:      n.Time(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"notifications": out})
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ch := make(chan payload, 16)
	s.addClient(ch)
	defer s.removeClient(ch)

	// current state first, so a new client can draw its indicator
	hello := payload{Type: "disconnected"}
	if connected, _ := s.connection(); connected {
		hello.Type = "connected"
	}
	writeSSE(w, flusher, hello)

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case p := <-ch:
			writeSSE(w, flusher, p)
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, f http.Flusher, p payload) {
	data, _ := json.Marshal(p)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", p.Type, data)
	f.Flush()
}
