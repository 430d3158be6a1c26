package notify_test

import (
	"testing"
	"time"

	"github.com/zsprackett/agenda-live/internal/notify"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
}

func TestHistory_SuppressesWithinOneSecond(t *testing.T) {
	clock := newClock()
	h := notify.NewHistory()
	h.SetNow(clock.Now)

	if !h.Admit("Ana criou uma demanda") {
		t.Fatal("first message must be admitted")
	}
	clock.Advance(500 * time.Millisecond)
	if h.Admit("Ana criou uma demanda") {
		t.Error("identical message 500ms later must be suppressed")
	}
}

func TestHistory_AdmitsAfterOneSecond(t *testing.T) {
	clock := newClock()
	h := notify.NewHistory()
	h.SetNow(clock.Now)

	h.Admit("Ana criou uma demanda")
	clock.Advance(1500 * time.Millisecond)
	if !h.Admit("Ana criou uma demanda") {
		t.Error("identical message 1500ms later must be admitted")
	}
}

func TestHistory_ExactlyOneSecondIsNotDuplicate(t *testing.T) {
	clock := newClock()
	h := notify.NewHistory()
	h.SetNow(clock.Now)

	h.Admit("x")
	clock.Advance(time.Second)
	if !h.Admit("x") {
		t.Error("message exactly one window later must be admitted")
	}
}

func TestHistory_DifferentTextNotSuppressed(t *testing.T) {
	clock := newClock()
	h := notify.NewHistory()
	h.SetNow(clock.Now)

	h.Admit("Ana criou uma demanda")
	if !h.Admit("Ana excluiu uma demanda") {
		t.Error("different text must not be suppressed")
	}
}

func TestHistory_SuppressedMessageDoesNotExtendWindow(t *testing.T) {
	clock := newClock()
	h := notify.NewHistory()
	h.SetNow(clock.Now)

	h.Admit("x")
	clock.Advance(800 * time.Millisecond)
	h.Admit("x") // suppressed
	clock.Advance(300 * time.Millisecond)
	if !h.Admit("x") {
		t.Error("window is measured from the last shown message")
	}
}

func TestHistory_PrunesAfterRetention(t *testing.T) {
	clock := newClock()
	h := notify.NewHistory()
	h.SetNow(clock.Now)

	h.Admit("a")
	h.Admit("b")
	if h.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", h.Len())
	}
	clock.Advance(notify.Retention)
	h.Admit("c")
	if h.Len() != 1 {
		t.Errorf("expected old entries pruned on insert, got %d entries", h.Len())
	}
}
