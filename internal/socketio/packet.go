package socketio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Engine.IO v4 packet types, the first byte of every websocket frame.
const (
	engineOpen    byte = '0'
	engineClose   byte = '1'
	enginePing    byte = '2'
	enginePong    byte = '3'
	engineMessage byte = '4'
	engineNoop    byte = '6'
)

// Socket.IO v5 packet types, carried inside an engine message.
const (
	TypeConnect      byte = '0'
	TypeDisconnect   byte = '1'
	TypeEvent        byte = '2'
	TypeAck          byte = '3'
	TypeConnectError byte = '4'
)

var errEmptyFrame = errors.New("socketio: empty frame")

// Packet is a decoded Socket.IO packet. ID is -1 when the packet carries no
// ack id.
type Packet struct {
	Type      byte
	Namespace string
	ID        int
	Data      json.RawMessage
}

// handshake is the JSON body of the engine open packet.
type handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

func (h handshake) readTimeout() time.Duration {
	interval, timeout := h.PingInterval, h.PingTimeout
	if interval <= 0 {
		interval = 25000
	}
	if timeout <= 0 {
		timeout = 20000
	}
	return time.Duration(interval+timeout) * time.Millisecond
}

func parseHandshake(frame []byte) (handshake, error) {
	var h handshake
	if len(frame) == 0 || frame[0] != engineOpen {
		return h, fmt.Errorf("socketio: expected open packet, got %q", frame)
	}
	if err := json.Unmarshal(frame[1:], &h); err != nil {
		return h, fmt.Errorf("socketio: parse handshake: %w", err)
	}
	return h, nil
}

// Encode renders p as an engine message frame.
func Encode(p Packet) []byte {
	var b bytes.Buffer
	b.WriteByte(engineMessage)
	b.WriteByte(p.Type)
	if p.Namespace != "" && p.Namespace != "/" {
		b.WriteString(p.Namespace)
		b.WriteByte(',')
	}
	if p.ID >= 0 {
		b.WriteString(strconv.Itoa(p.ID))
	}
	b.Write(p.Data)
	return b.Bytes()
}

// EncodeEvent builds the frame for emitting name with the given arguments.
func EncodeEvent(name string, args ...any) ([]byte, error) {
	list := make([]any, 0, len(args)+1)
	list = append(list, name)
	list = append(list, args...)
	data, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("socketio: encode %s: %w", name, err)
	}
	return Encode(Packet{Type: TypeEvent, ID: -1, Data: data}), nil
}

// Decode parses an engine message frame (leading '4' included).
func Decode(frame []byte) (Packet, error) {
	p := Packet{ID: -1, Namespace: "/"}
	if len(frame) < 2 {
		return p, errEmptyFrame
	}
	if frame[0] != engineMessage {
		return p, fmt.Errorf("socketio: not a message frame: %q", frame)
	}
	p.Type = frame[1]
	rest := frame[2:]

	if len(rest) > 0 && rest[0] == '/' {
		end := bytes.IndexByte(rest, ',')
		if end < 0 {
			p.Namespace = string(rest)
			return p, nil
		}
		p.Namespace = string(rest[:end])
		rest = rest[end+1:]
	}

	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i > 0 {
		id, err := strconv.Atoi(string(rest[:i]))
		if err != nil {
			return p, fmt.Errorf("socketio: ack id: %w", err)
		}
		p.ID = id
		rest = rest[i:]
	}
	if len(rest) > 0 {
		p.Data = json.RawMessage(rest)
	}
	return p, nil
}

// EventArgs splits an EVENT packet body into its name and first argument.
// Extra arguments are ignored.
func EventArgs(data json.RawMessage) (string, json.RawMessage, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		return "", nil, fmt.Errorf("socketio: event body: %w", err)
	}
	if len(list) == 0 {
		return "", nil, errors.New("socketio: event without name")
	}
	var name string
	if err := json.Unmarshal(list[0], &name); err != nil {
		return "", nil, fmt.Errorf("socketio: event name: %w", err)
	}
	if len(list) < 2 {
		return name, nil, nil
	}
	return name, list[1], nil
}

// connectErrorMessage extracts the message of a CONNECT_ERROR packet.
func connectErrorMessage(data json.RawMessage) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return string(data)
}
