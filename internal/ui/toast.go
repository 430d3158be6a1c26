package ui

import (
	"strings"
	"sync"
	"time"

	"github.com/rivo/tview"

	"github.com/zsprackett/agenda-live/internal/notify"
)

const toastWidth = 44

type toast struct {
	id      int
	message string
	fading  bool
}

// Toasts is a stack of transient messages shown right-aligned above the
// footer. It implements notify.Toaster and may be called from any goroutine.
type Toasts struct {
	*tview.Flex
	view  *tview.TextView
	queue func(func())
	// resize sets the stack height; installed by the screen holding it.
	resize func(lines int)
	// after schedules dismissal; replaced in tests.
	after func(d time.Duration, f func())

	mu     sync.Mutex
	items  []*toast
	nextID int
}

func NewToasts(queue func(func())) *Toasts {
	t := &Toasts{
		queue: queue,
		after: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
	t.view = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true)
	t.view.SetBackgroundColor(ColorToast)
	t.view.SetBorderPadding(0, 0, 1, 1)

	t.Flex = tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(nil, 0, 1, false).
		AddItem(t.view, toastWidth, 0, false).
		AddItem(nil, 1, 0, false)
	return t
}

// Toast shows message for notify.ToastVisible, fades it for
// notify.ToastFade, then removes it.
func (t *Toasts) Toast(message string) {
	t.mu.Lock()
	t.nextID++
	item := &toast{id: t.nextID, message: message}
	t.items = append(t.items, item)
	t.mu.Unlock()
	t.queue(t.render)

	t.after(notify.ToastVisible, func() {
		t.mu.Lock()
		item.fading = true
		t.mu.Unlock()
		t.queue(t.render)

		t.after(notify.ToastFade, func() {
			t.remove(item.id)
			t.queue(t.render)
		})
	})
}

func (t *Toasts) remove(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, it := range t.items {
		if it.id == id {
			t.items = append(t.items[:i], t.items[i+1:]...)
			return
		}
	}
}

// Messages returns the toasts on screen, oldest first.
func (t *Toasts) Messages() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.items))
	for _, it := range t.items {
		out = append(out, it.message)
	}
	return out
}

func (t *Toasts) text() (string, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	lines := make([]string, 0, len(t.items))
	for _, it := range t.items {
		color := "white"
		if it.fading {
			color = "gray"
		}
		lines = append(lines, "["+color+"]🔔 "+tview.Escape(it.message)+"[-]")
	}
	return strings.Join(lines, "\n"), len(lines)
}

func (t *Toasts) render() {
	text, n := t.text()
	t.view.SetText(text)
	if t.resize != nil {
		t.resize(n)
	}
}
