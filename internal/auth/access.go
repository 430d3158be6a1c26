package auth

import (
	"errors"
	"strings"
)

// AccessLevel is the per-user permission flag issued at login.
type AccessLevel string

const (
	Edit     AccessLevel = "E"
	ReadOnly AccessLevel = "L"
	NoAccess AccessLevel = "N"
)

// ErrNoAccess is returned when the user may not open the agenda at all.
var ErrNoAccess = errors.New("auth: user has no access to the agenda")

// DeniedMessage is shown when a read-only user triggers a write action.
const DeniedMessage = "Você não tem permissão para esta ação"

// ParseAccessLevel maps the server flag to a level. Anything unrecognised
// is treated as NoAccess.
func ParseAccessLevel(s string) AccessLevel {
	switch lvl := AccessLevel(strings.ToUpper(strings.TrimSpace(s))); lvl {
	case Edit, ReadOnly:
		return lvl
	default:
		return NoAccess
	}
}

func (a AccessLevel) CanView() bool  { return a == Edit || a == ReadOnly }
func (a AccessLevel) CanWrite() bool { return a == Edit }

// IsReadOnly reports whether write actions must be hidden and the header
// marked.
func (a AccessLevel) IsReadOnly() bool { return a == ReadOnly }

func (a AccessLevel) String() string {
	switch a {
	case Edit:
		return "edição"
	case ReadOnly:
		return "Modo Leitura"
	default:
		return "sem acesso"
	}
}
