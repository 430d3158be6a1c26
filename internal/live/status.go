package live

// Status is the connectivity shown by the indicator dot.
type Status int

const (
	Disconnected Status = iota
	Connected
)

func (s Status) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Color is the dot color as a hex RGB string.
func (s Status) Color() string {
	if s == Connected {
		return "#10b981"
	}
	return "#ef4444"
}

// Tooltip is the text shown next to or on hover over the dot.
func (s Status) Tooltip() string {
	if s == Connected {
		return "WebSocket conectado"
	}
	return "Desconectado"
}

// StatusView displays the indicator. The view creates its widget on the
// first call.
type StatusView interface {
	SetStatus(s Status)
}

// PresenceView shows who else just came online.
type PresenceView interface {
	ShowPresence(user string)
}
