package ui

import (
	"github.com/gdamore/tcell/v2"

	"github.com/zsprackett/agenda-live/internal/live"
)

// Theme colors for the TUI.
var (
	ColorBackground      = tcell.NewHexColor(0x1e1e2e)
	ColorBackgroundPanel = tcell.NewHexColor(0x181825)
	ColorBackgroundElem  = tcell.NewHexColor(0x313244)
	ColorPrimary         = tcell.NewHexColor(0x89b4fa) // blue
	ColorAccent          = tcell.NewHexColor(0xcba6f7) // mauve
	ColorText            = tcell.NewHexColor(0xcdd6f4)
	ColorTextMuted       = tcell.NewHexColor(0x6c7086)
	ColorWarning         = tcell.NewHexColor(0xf9e2af) // yellow
	ColorBorder          = tcell.NewHexColor(0x45475a)
	ColorSelected        = tcell.NewHexColor(0x89b4fa)
	ColorSelectedText    = tcell.NewHexColor(0x1e1e2e)
	ColorHighlight       = tcell.NewHexColor(0x5c5a2e) // refreshed rows
	ColorToast           = tcell.NewHexColor(0x313244)
)

const (
	IconDot      = "●"
	IconDemanda  = "◆"
	IconDiaria   = "◇"
	IconReadOnly = "👁"
)

// StatusDot returns the indicator glyph and its color.
func StatusDot(s live.Status) (string, tcell.Color) {
	return IconDot, tcell.GetColor(s.Color())
}

// statusTag renders the dot and its tooltip text as tview color tags.
func statusTag(s live.Status) string {
	return "[" + s.Color() + "]" + IconDot + "[-] " + s.Tooltip()
}
