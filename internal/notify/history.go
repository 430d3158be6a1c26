package notify

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	// DuplicateWindow is how long an identical message stays suppressed.
	DuplicateWindow = time.Second
	// Retention bounds how long admitted messages are remembered.
	Retention = 5 * time.Second
)

// History remembers recently shown messages so the same text is not shown
// twice within DuplicateWindow.
type History struct {
	mu      sync.Mutex
	entries *cache.Cache
	now     func() time.Time
}

func NewHistory() *History {
	return &History{
		entries: cache.New(Retention, Retention),
		now:     time.Now,
	}
}

// SetNow replaces the time source. Used in tests only.
func (h *History) SetNow(fn func() time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = fn
}

// Admit reports whether message may be shown now and, if so, records it.
func (h *History) Admit(message string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if v, ok := h.entries.Get(message); ok {
		if now.Sub(v.(time.Time)) < DuplicateWindow {
			return false
		}
	}
	h.entries.Set(message, now, Retention)
	h.prune(now)
	return true
}

func (h *History) prune(now time.Time) {
	for key, item := range h.entries.Items() {
		if at, ok := item.Object.(time.Time); ok && now.Sub(at) >= Retention {
			h.entries.Delete(key)
		}
	}
}

// Len returns the number of remembered messages.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries.ItemCount()
}
