package notify

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/zsprackett/agenda-live/internal/db"
	"github.com/zsprackett/agenda-live/internal/events"
)

// Toasts stay on screen for ToastVisible, then fade out over ToastFade
// before being removed.
const (
	ToastVisible = 2500 * time.Millisecond
	ToastFade    = 300 * time.Millisecond
)

// Toaster puts a transient message on screen.
type Toaster interface {
	Toast(message string)
}

// Recorder persists shown notifications.
type Recorder interface {
	InsertNotification(n *db.Notification) error
}

// Config holds forwarding settings. Forwarding is off when both targets
// are empty.
type Config struct {
	Webhook   string
	NtfyURL   string
	PerMinute int
}

// Notifier shows de-duplicated toasts and fans them out to the notification
// log and the optional webhook/ntfy forwarders.
type Notifier struct {
	cfg     Config
	history *History
	toaster Toaster
	store   Recorder
	limiter *rate.Limiter
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

// New returns a Notifier. toaster and store may be nil.
func New(cfg Config, toaster Toaster, store Recorder, logger *slog.Logger) *Notifier {
	perMinute := cfg.PerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	return &Notifier{
		cfg:     cfg,
		history: NewHistory(),
		toaster: toaster,
		store:   store,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  logger,
		now:     time.Now,
	}
}

// SetNow replaces the time source for the notifier and its history. Used in
// tests only.
func (n *Notifier) SetNow(fn func() time.Time) {
	n.now = fn
	n.history.SetNow(fn)
}

// Notify shows message for change unless the same text was shown less than
// DuplicateWindow ago. It reports whether the toast was shown.
func (n *Notifier) Notify(message string, change events.Change) bool {
	if !n.history.Admit(message) {
		n.logger.Debug("notify: duplicate suppressed", "message", message)
		return false
	}

	if n.toaster != nil {
		n.toaster.Toast(message)
	} else {
		n.logger.Info("notify: toast", "message", message)
	}

	if n.store != nil {
		rec := &db.Notification{
			Message:    message,
			Actor:      change.Actor,
			Entity:     string(change.Entity),
			ChangeType: string(change.Type),
			CreatedAt:  n.now().UnixMilli(),
		}
		if err := n.store.InsertNotification(rec); err != nil {
			n.logger.Warn("notify: record failed", "err", err)
		}
	}

	if n.cfg.Webhook != "" || n.cfg.NtfyURL != "" {
		if n.limiter.Allow() {
			go n.forward(message, change)
		} else {
			n.logger.Warn("notify: forward rate limit reached, dropping", "message", message)
		}
	}
	return true
}

func (n *Notifier) forward(message string, change events.Change) {
	if n.cfg.Webhook != "" {
		n.sendWebhook(message, change)
	}
	if n.cfg.NtfyURL != "" {
		n.sendNtfy(message, change)
	}
}

type webhookPayload struct {
	Message   string `json:"message"`
	Actor     string `json:"actor"`
	Entity    string `json:"entity"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

func (n *Notifier) sendWebhook(message string, change events.Change) {
	n.post("webhook", n.cfg.Webhook, webhookPayload{
		Message:   message,
		Actor:     change.Actor,
		Entity:    string(change.Entity),
		Type:      string(change.Type),
		Timestamp: n.now().UTC().Format(time.RFC3339),
	})
}

type ntfyPayload struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
}

func (n *Notifier) sendNtfy(message string, change events.Change) {
	n.post("ntfy", n.cfg.NtfyURL, ntfyPayload{
		Title:    "Agenda",
		Message:  message,
		Priority: 3,
		Tags:     []string{"calendar", string(change.Entity)},
	})
}

func (n *Notifier) post(target, url string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Warn("notify: encode payload", "target", target, "err", err)
		return
	}
	resp, err := n.client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		n.logger.Warn("notify: "+target+" post failed", "err", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.logger.Warn("notify: "+target+" rejected", "status", resp.StatusCode)
	}
}

// LogToaster writes toasts to a logger; used when there is no screen.
type LogToaster struct {
	Logger *slog.Logger
}

func (t LogToaster) Toast(message string) {
	t.Logger.Info("toast", "message", message)
}
