package notify_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zsprackett/agenda-live/internal/db"
	"github.com/zsprackett/agenda-live/internal/events"
	"github.com/zsprackett/agenda-live/internal/notify"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type captureToaster struct {
	mu       sync.Mutex
	messages []string
}

func (c *captureToaster) Toast(m string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
}

func (c *captureToaster) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

type memRecorder struct {
	rows []*db.Notification
	err  error
}

func (m *memRecorder) InsertNotification(n *db.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, n)
	return nil
}

var anaInsert = events.Change{Type: events.Insert, Entity: events.EntityDemanda, Actor: "Ana"}

func TestNotify_DuplicatesWithinWindowShownOnce(t *testing.T) {
	clock := newClock()
	toaster := &captureToaster{}
	n := notify.New(notify.Config{}, toaster, nil, discardLogger())
	n.SetNow(clock.Now)

	if !n.Notify("Ana criou uma demanda", anaInsert) {
		t.Fatal("first notification should be shown")
	}
	clock.Advance(500 * time.Millisecond)
	if n.Notify("Ana criou uma demanda", anaInsert) {
		t.Error("second notification 500ms later should be suppressed")
	}
	if toaster.count() != 1 {
		t.Errorf("expected 1 toast, got %d", toaster.count())
	}
}

func TestNotify_SpacedNotificationsBothShown(t *testing.T) {
	clock := newClock()
	toaster := &captureToaster{}
	n := notify.New(notify.Config{}, toaster, nil, discardLogger())
	n.SetNow(clock.Now)

	n.Notify("Ana criou uma demanda", anaInsert)
	clock.Advance(1500 * time.Millisecond)
	n.Notify("Ana criou uma demanda", anaInsert)

	if toaster.count() != 2 {
		t.Errorf("expected 2 toasts, got %d", toaster.count())
	}
}

func TestNotify_RecordsShownOnly(t *testing.T) {
	clock := newClock()
	store := &memRecorder{}
	n := notify.New(notify.Config{}, &captureToaster{}, store, discardLogger())
	n.SetNow(clock.Now)

	n.Notify("Ana criou uma demanda", anaInsert)
	n.Notify("Ana criou uma demanda", anaInsert)

	if len(store.rows) != 1 {
		t.Fatalf("expected 1 stored row, got %d", len(store.rows))
	}
	row := store.rows[0]
	if row.Actor != "Ana" || row.Entity != "DEMANDA" || row.ChangeType != "INSERT" {
		t.Errorf("unexpected row: %+v", row)
	}
	if row.CreatedAt != clock.Now().UnixMilli() {
		t.Errorf("created_at: got %d", row.CreatedAt)
	}
}

func TestNotify_RecordErrorLoggedNotFatal(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	toaster := &captureToaster{}
	n := notify.New(notify.Config{}, toaster, &memRecorder{err: errors.New("disk full")}, logger)

	if !n.Notify("Ana criou uma demanda", anaInsert) {
		t.Fatal("store failure must not hide the toast")
	}
	if !strings.Contains(buf.String(), "record failed") {
		t.Errorf("expected warn log, got %q", buf.String())
	}
}

func TestNotify_ForwardsToNtfy(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		received <- body
		w.WriteHeader(200)
	}))
	defer srv.Close()

	n := notify.New(notify.Config{NtfyURL: srv.URL + "/agenda"}, &captureToaster{}, nil, discardLogger())
	n.Notify("Ana criou uma demanda", anaInsert)

	select {
	case body := <-received:
		if body["message"] != "Ana criou uma demanda" {
			t.Errorf("unexpected message: %v", body["message"])
		}
		if body["title"] != "Agenda" {
			t.Errorf("unexpected title: %v", body["title"])
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no POST received")
	}
}

func TestNotify_ForwardRateLimited(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
	}))
	defer srv.Close()

	var buf strings.Builder
	var bufMu sync.Mutex
	logger := slog.New(slog.NewTextHandler(writerFunc(func(p []byte) (int, error) {
		bufMu.Lock()
		defer bufMu.Unlock()
		return buf.Write(p)
	}), &slog.HandlerOptions{Level: slog.LevelWarn}))

	n := notify.New(notify.Config{Webhook: srv.URL, PerMinute: 1}, &captureToaster{}, nil, logger)
	n.Notify("a", anaInsert)
	n.Notify("b", anaInsert)

	bufMu.Lock()
	defer bufMu.Unlock()
	if !strings.Contains(buf.String(), "rate limit") {
		t.Errorf("expected rate limit warning, got %q", buf.String())
	}
}

func TestNotify_WebhookErrorLogged(t *testing.T) {
	done := make(chan string, 1)
	logger := slog.New(slog.NewTextHandler(writerFunc(func(p []byte) (int, error) {
		select {
		case done <- string(p):
		default:
		}
		return len(p), nil
	}), &slog.HandlerOptions{Level: slog.LevelWarn}))

	// Nothing listens on port 1, so the POST fails.
	n := notify.New(notify.Config{Webhook: "http://127.0.0.1:1"}, &captureToaster{}, nil, logger)
	n.Notify("Ana criou uma demanda", anaInsert)

	select {
	case line := <-done:
		if !strings.Contains(line, "webhook") {
			t.Errorf("expected warn log mentioning webhook, got %q", line)
		}
	case <-time.After(6 * time.Second):
		t.Fatal("no warning logged")
	}
}

func TestLogToaster(t *testing.T) {
	var buf strings.Builder
	notify.LogToaster{Logger: slog.New(slog.NewTextHandler(&buf, nil))}.Toast("Bruno atualizou uma diária")
	if !strings.Contains(buf.String(), "Bruno atualizou uma diária") {
		t.Errorf("toast not logged: %q", buf.String())
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
