// Package socketiotest provides an in-process Socket.IO server for tests.
package socketiotest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/zsprackett/agenda-live/internal/socketio"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Frame is an event received from a client.
type Frame struct {
	Name    string
	Payload json.RawMessage
}

// Server accepts websocket clients, completes the Engine.IO/Socket.IO
// handshake and answers "ping" events with "pong".
type Server struct {
	*httptest.Server

	// RejectWith, when set before a client connects, is sent back as a
	// CONNECT_ERROR message instead of accepting the namespace.
	RejectWith string

	Received chan Frame

	mu       sync.Mutex
	conns    map[*websocket.Conn]*sync.Mutex
	connects int
	auth     []json.RawMessage
	queries  []string
}

func NewServer() *Server {
	s := &Server{
		Received: make(chan Frame, 64),
		conns:    make(map[*websocket.Conn]*sync.Mutex),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.queries = append(s.queries, r.URL.RawQuery)
	reject := s.RejectWith
	s.mu.Unlock()

	wmu := &sync.Mutex{}
	send := func(frame []byte) error {
		wmu.Lock()
		defer wmu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, frame)
	}

	open := `0{"sid":"test","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`
	if err := send([]byte(open)); err != nil {
		return
	}

	_, frame, err := conn.ReadMessage()
	if err != nil {
		return
	}
	p, err := socketio.Decode(frame)
	if err != nil || p.Type != socketio.TypeConnect {
		return
	}
	if reject != "" {
		body, _ := json.Marshal(map[string]string{"message": reject})
		send(socketio.Encode(socketio.Packet{Type: socketio.TypeConnectError, ID: -1, Data: body}))
		return
	}
	s.mu.Lock()
	s.conns[conn] = wmu
	s.connects++
	s.auth = append(s.auth, p.Data)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	if err := send([]byte(`40{"sid":"ns-test"}`)); err != nil {
		return
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if len(frame) == 0 || frame[0] != '4' {
			continue
		}
		p, err := socketio.Decode(frame)
		if err != nil {
			continue
		}
		switch p.Type {
		case socketio.TypeDisconnect:
			return
		case socketio.TypeEvent:
			name, payload, err := socketio.EventArgs(p.Data)
			if err != nil {
				continue
			}
			select {
			case s.Received <- Frame{Name: name, Payload: payload}:
			default:
			}
			if name == "ping" {
				pong, _ := socketio.EncodeEvent("pong")
				send(pong)
			}
		}
	}
}

// Emit sends an event to every connected client.
func (s *Server) Emit(name string, payload any) error {
	frame, err := socketio.EncodeEvent(name, payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, wmu := range s.conns {
		wmu.Lock()
		conn.WriteMessage(websocket.TextMessage, frame)
		wmu.Unlock()
	}
	return nil
}

// PingClients sends an engine-level ping to every client.
func (s *Server) PingClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, wmu := range s.conns {
		wmu.Lock()
		conn.WriteMessage(websocket.TextMessage, []byte("2"))
		wmu.Unlock()
	}
}

// DropAll closes every client connection without a close handshake.
func (s *Server) DropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// Clients returns the number of currently connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Connects returns how many namespace connections were accepted so far.
func (s *Server) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// Auth returns the CONNECT payloads received, in order.
func (s *Server) Auth() []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]json.RawMessage(nil), s.auth...)
}

// Queries returns the raw query strings of every upgrade request.
func (s *Server) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}
