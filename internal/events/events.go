// Package events defines the closed set of things the live channel can tell
// us, plus the wire names they travel under.
package events

import (
	"encoding/json"
	"fmt"
)

// Server event names.
const (
	NameChange   = "alteracao_agenda"
	NamePresence = "usuario_conectou"
	NamePing     = "ping"
	NamePong     = "pong"
)

type ChangeType string

const (
	Insert ChangeType = "INSERT"
	Update ChangeType = "UPDATE"
	Delete ChangeType = "DELETE"
)

type Entity string

const (
	EntityDemanda            Entity = "DEMANDA"
	EntityDiariaTerceirizado Entity = "DIARIA_TERCEIRIZADO"
	EntityLocacaoFornecedor  Entity = "LOCACAO_FORNECEDOR"
)

// Change is the payload of an alteracao_agenda event.
type Change struct {
	Type   ChangeType `json:"tipo"`
	Entity Entity     `json:"entidade"`
	Actor  string     `json:"usuario"`
}

// Event is implemented by Connected, Disconnected, ConnectError,
// ChangeReceived, PresenceReceived and Pong only.
type Event interface {
	isEvent()
}

type Connected struct{}

type Disconnected struct {
	Reason string
}

type ConnectError struct {
	Err error
}

type ChangeReceived struct {
	Change Change
}

type PresenceReceived struct {
	User string
}

type Pong struct{}

func (Connected) isEvent()        {}
func (Disconnected) isEvent()     {}
func (ConnectError) isEvent()     {}
func (ChangeReceived) isEvent()   {}
func (PresenceReceived) isEvent() {}
func (Pong) isEvent()             {}

// Decode maps a named server event to its Event. Unknown names return
// (nil, nil) so callers can ignore them.
func Decode(name string, payload json.RawMessage) (Event, error) {
	switch name {
	case NameChange:
		var c Change
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return ChangeReceived{Change: c}, nil
	case NamePresence:
		var p struct {
			User string `json:"usuario"`
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, fmt.Errorf("decode %s: %w", name, err)
			}
		}
		return PresenceReceived{User: p.User}, nil
	case NamePong:
		return Pong{}, nil
	default:
		return nil, nil
	}
}

// Broadcaster receives every event after the live client has handled it.
// A nil Broadcaster is allowed; callers check before use.
type Broadcaster interface {
	Broadcast(e Event)
}
