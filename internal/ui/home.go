package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/agenda-live/internal/agenda"
	"github.com/zsprackett/agenda-live/internal/auth"
	"github.com/zsprackett/agenda-live/internal/live"
)

var weekdays = [...]string{"Seg", "Ter", "Qua", "Qui", "Sex", "Sáb", "Dom"}

// Keys that may carry a row's date, title and owner, in order of preference.
var (
	dateKeys  = []string{"data", "data_inicio", "dt_inicio", "dtinicio", "data_evento"}
	titleKeys = []string{"titulo", "descricao", "cliente", "evento", "nome"}
	ownerKeys = []string{"responsavel", "usuario", "terceirizado", "fornecedor"}
)

// row is one rendered agenda line.
type row struct {
	day    int // 0 = Monday, -1 = outside the week
	kind   string
	title  string
	owner  string
	record agenda.Record
}

// Home is the main screen: header with user and connection dot, the agenda
// table for the selected week and a footer with key hints and presence.
type Home struct {
	*tview.Flex
	queue   func(func())
	header  *tview.TextView
	table   *tview.Table
	footer  *tview.TextView
	stopped chan struct{}

	fetcher agenda.Fetcher

	mu        sync.Mutex
	user      string
	access    auth.AccessLevel
	week      agenda.Week
	rows      []row
	status    *live.Status
	presence  string
	seenAt    time.Time
	highlight bool
	pulse     int    // generation of the latest Highlight
	reloads   uint64 // last sequence handed to a Reload
	applied   uint64 // sequence of the rows on screen

	// after schedules the end of a highlight; replaced in tests.
	after func(d time.Duration, f func())

	onWeekChange func(agenda.Week)
	onRefresh    func()
	onEdit       func(agenda.Record)
	onDenied     func()
	onHelp       func()
	onQuit       func()
}

// NewHome builds the screen. queue must arrange for f to run on the UI
// goroutine and redraw, without waiting for it; fetcher loads a week's data.
func NewHome(queue func(func()), fetcher agenda.Fetcher, user string, access auth.AccessLevel, week agenda.Week) *Home {
	h := &Home{
		queue:   queue,
		fetcher: fetcher,
		user:    user,
		access:  access,
		week:    week,
		stopped: make(chan struct{}),
		after:   func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}

	h.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	h.header.SetBackgroundColor(ColorBackgroundPanel)

	h.table = tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0).
		SetSelectedStyle(tcell.StyleDefault.
			Background(ColorSelected).
			Foreground(ColorSelectedText))
	h.table.SetBackgroundColor(ColorBackground)

	h.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	h.footer.SetBackgroundColor(ColorBackgroundPanel)

	h.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(h.header, 1, 0, false).
		AddItem(h.table, 0, 1, true).
		AddItem(h.footer, 1, 0, false)

	h.setupInput()
	h.renderTable()
	h.updateHeader()
	h.updateFooter()
	return h
}

func (h *Home) SetCallbacks(
	onWeekChange func(agenda.Week),
	onRefresh func(),
	onEdit func(agenda.Record),
	onDenied func(),
	onHelp func(),
	onQuit func(),
) {
	h.onWeekChange = onWeekChange
	h.onRefresh = onRefresh
	h.onEdit = onEdit
	h.onDenied = onDenied
	h.onHelp = onHelp
	h.onQuit = onQuit
}

// AttachToasts places the toast stack between the table and the footer.
func (h *Home) AttachToasts(t *Toasts) {
	h.Flex.RemoveItem(h.footer)
	h.Flex.AddItem(t, 0, 0, false)
	h.Flex.AddItem(h.footer, 1, 0, false)
	t.resize = func(lines int) { h.Flex.ResizeItem(t, lines, 0) }
}

// Stop releases callers blocked on the UI goroutine once the app has quit.
func (h *Home) Stop() {
	select {
	case <-h.stopped:
	default:
		close(h.stopped)
	}
}

// onUI runs f on the UI goroutine and waits for it. It must not be called
// from the UI goroutine.
func (h *Home) onUI(f func()) bool {
	done := make(chan struct{})
	h.queue(func() {
		f()
		close(done)
	})
	select {
	case <-done:
		return true
	case <-h.stopped:
		return false
	}
}

// Reload fetches the current week and replaces the table data. A response
// is dropped when the week changed while it was in flight or when a later
// reload has already been applied.
func (h *Home) Reload(ctx context.Context) error {
	h.mu.Lock()
	week := h.week
	h.reloads++
	seq := h.reloads
	h.mu.Unlock()

	data, err := h.fetcher.Fetch(ctx, week)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !sameWeek(week, h.week) || seq < h.applied {
		return nil
	}
	h.applied = seq
	h.rows = buildRows(week, data)
	return nil
}

// SetData replaces the table data for w without drawing it. Data for a week
// that is no longer on screen is dropped.
func (h *Home) SetData(w agenda.Week, data *agenda.Data) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !sameWeek(w, h.week) {
		return
	}
	h.rows = buildRows(w, data)
}

func sameWeek(a, b agenda.Week) bool {
	return a.Start.Equal(b.Start)
}

func (h *Home) Render() {
	h.queue(h.renderTable)
}

func (h *Home) CurrentWeek() (agenda.Week, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.week, !h.week.Start.IsZero()
}

func (h *Home) ScrollOffset() int {
	var offset int
	h.onUI(func() { offset, _ = h.table.GetOffset() })
	return offset
}

func (h *Home) ScrollTo(offset int) {
	h.queue(func() { h.table.SetOffset(offset, 0) })
}

// Highlight tints every agenda row for d. A newer pulse extends an older
// one rather than being cut short by it.
func (h *Home) Highlight(d time.Duration) {
	h.mu.Lock()
	h.pulse++
	gen := h.pulse
	h.highlight = true
	h.mu.Unlock()
	h.queue(h.renderTable)

	h.after(d, func() {
		h.mu.Lock()
		if h.pulse != gen {
			h.mu.Unlock()
			return
		}
		h.highlight = false
		h.mu.Unlock()
		h.queue(h.renderTable)
	})
}

// SetStatus updates the connection dot. The dot is drawn from the first
// call on.
func (h *Home) SetStatus(s live.Status) {
	h.mu.Lock()
	h.status = &s
	h.mu.Unlock()
	h.queue(h.updateHeader)
}

func (h *Home) ShowPresence(user string) {
	h.mu.Lock()
	h.presence = user
	h.seenAt = time.Now()
	h.mu.Unlock()
	h.queue(h.updateFooter)
}

func (h *Home) setWeek(w agenda.Week) {
	h.mu.Lock()
	h.week = w
	h.rows = nil
	h.mu.Unlock()
	h.renderTable()
	h.updateHeader()
	if h.onWeekChange != nil {
		h.onWeekChange(w)
	}
}

func buildRows(week agenda.Week, d *agenda.Data) []row {
	if d == nil {
		return nil
	}
	var rows []row
	add := func(kind string, recs []agenda.Record) {
		for _, rec := range recs {
			rows = append(rows, row{
				day:    dayIndex(week, rec.Field(dateKeys...)),
				kind:   kind,
				title:  rec.Field(titleKeys...),
				owner:  rec.Field(ownerKeys...),
				record: rec,
			})
		}
	}
	add("demanda", d.Demandas)
	add("diária", d.DiariasTerceirizados)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].day != rows[j].day {
			// rows outside the week go last
			if rows[i].day < 0 || rows[j].day < 0 {
				return rows[j].day < 0 && rows[i].day >= 0
			}
			return rows[i].day < rows[j].day
		}
		return rows[i].kind < rows[j].kind
	})
	return rows
}

// dayIndex maps a date (YYYY-MM-DD, optionally followed by a time) to its
// offset from Monday, or -1.
func dayIndex(week agenda.Week, date string) int {
	if len(date) < 10 {
		return -1
	}
	for i := 0; i < 7; i++ {
		if week.Start.AddDate(0, 0, i).Format(time.DateOnly) == date[:10] {
			return i
		}
	}
	return -1
}

func (h *Home) renderTable() {
	h.mu.Lock()
	rows := append([]row(nil), h.rows...)
	highlight := h.highlight
	week := h.week
	h.mu.Unlock()

	selected, _ := h.table.GetSelection()
	h.table.Clear()
	for col, title := range []string{"Dia", "Tipo", "Descrição", "Responsável"} {
		h.table.SetCell(0, col, tview.NewTableCell(title).
			SetTextColor(ColorPrimary).
			SetBackgroundColor(ColorBackgroundElem).
			SetSelectable(false))
	}
	if len(rows) == 0 {
		h.table.SetCell(1, 0, tview.NewTableCell("  nenhum registro nesta semana").
			SetTextColor(ColorTextMuted).
			SetSelectable(false))
		return
	}

	bg := ColorBackground
	if highlight {
		bg = ColorHighlight
	}
	for i, r := range rows {
		icon, color := IconDemanda, ColorText
		if r.kind != "demanda" {
			icon, color = IconDiaria, ColorAccent
		}
		cells := []string{dayLabel(week, r.day), icon + " " + r.kind, r.title, r.owner}
		for col, text := range cells {
			h.table.SetCell(i+1, col, tview.NewTableCell(text).
				SetTextColor(color).
				SetBackgroundColor(bg).
				SetExpansion(col/2).
				SetSelectable(true))
		}
	}

	if selected < 1 {
		selected = 1
	}
	if selected > len(rows) {
		selected = len(rows)
	}
	h.table.Select(selected, 0)
}

func dayLabel(week agenda.Week, day int) string {
	if day < 0 {
		return "—"
	}
	return weekdays[day] + " " + week.Start.AddDate(0, 0, day).Format("02/01")
}

func (h *Home) updateHeader() {
	h.mu.Lock()
	user, access, week, status := h.user, h.access, h.week, h.status
	h.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "[blue]AGENDA[-]  %s  [::b]%s[::-]", week, tview.Escape(user))
	if access.IsReadOnly() {
		fmt.Fprintf(&b, "  [black:yellow] %s %s [-:-]", IconReadOnly, access)
	}
	if status != nil {
		b.WriteString("   ")
		b.WriteString(statusTag(*status))
	}
	h.header.SetText(b.String())
}

func (h *Home) updateFooter() {
	h.mu.Lock()
	access, presence, seenAt := h.access, h.presence, h.seenAt
	h.mu.Unlock()

	hints := "[green]↑↓[-] navegar  [green]" + tview.Escape("[ ]") + "[-] semana  [green]r[-] recarregar  "
	if access.CanWrite() {
		hints += "[green]e[-] editar  "
	}
	hints += "[green]?[-] ajuda  [green]q[-] sair"
	if presence != "" {
		hints += fmt.Sprintf("   [gray]%s entrou %s[-]", tview.Escape(presence), humanize.Time(seenAt))
	}
	h.footer.SetText(hints)
}

func (h *Home) selectedRow() (row, bool) {
	sel, _ := h.table.GetSelection()
	h.mu.Lock()
	defer h.mu.Unlock()
	if sel < 1 || sel > len(h.rows) {
		return row{}, false
	}
	return h.rows[sel-1], true
}

func (h *Home) setupInput() {
	h.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case '[':
			week, _ := h.CurrentWeek()
			h.setWeek(week.Prev())
			return nil
		case ']':
			week, _ := h.CurrentWeek()
			h.setWeek(week.Next())
			return nil
		case 't':
			h.setWeek(agenda.WeekOf(time.Now()))
			return nil
		case 'r':
			if h.onRefresh != nil {
				h.onRefresh()
			}
			return nil
		case 'e':
			if !h.access.CanWrite() {
				if h.onDenied != nil {
					h.onDenied()
				}
				return nil
			}
			if r, ok := h.selectedRow(); ok && h.onEdit != nil {
				h.onEdit(r.record)
			}
			return nil
		case '?':
			if h.onHelp != nil {
				h.onHelp()
			}
			return nil
		case 'q':
			if h.onQuit != nil {
				h.onQuit()
			}
			return nil
		}
		return event
	})
}
