package agenda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// HighlightDuration is how long refreshed cells stay highlighted.
const HighlightDuration = 600 * time.Millisecond

// highlightDelay lets the render settle before the pulse starts.
const highlightDelay = 100 * time.Millisecond

// ErrNoWeek means the fallback path could not tell which week is on screen.
var ErrNoWeek = errors.New("agenda: current week unknown")

// Loader reloads the host's data set by itself.
type Loader interface {
	Reload(ctx context.Context) error
}

type Renderer interface {
	Render()
}

// WeekSource reports the week currently on screen.
type WeekSource interface {
	CurrentWeek() (Week, bool)
}

// DataSink receives data fetched by the fallback path, together with the
// week it was fetched for. The week may no longer be on screen by then.
type DataSink interface {
	SetData(w Week, d *Data)
}

type Scroller interface {
	ScrollOffset() int
	ScrollTo(offset int)
}

type Highlighter interface {
	Highlight(d time.Duration)
}

type Fetcher interface {
	Fetch(ctx context.Context, w Week) (*Data, error)
}

// Hooks are the host capabilities a Refresher may use. Every field is
// optional. When Loader is nil the Refresher fetches the data itself using
// Weeks and hands it to Sink.
type Hooks struct {
	Loader      Loader
	Renderer    Renderer
	Weeks       WeekSource
	Sink        DataSink
	Scroller    Scroller
	Highlighter Highlighter
}

// Refresher brings the agenda view up to date after a change event.
type Refresher struct {
	hooks   Hooks
	fetcher Fetcher
	logger  *slog.Logger
	// after schedules the highlight pulse; replaced in tests.
	after func(d time.Duration, f func())
}

func NewRefresher(hooks Hooks, fetcher Fetcher, logger *slog.Logger) *Refresher {
	return &Refresher{
		hooks:   hooks,
		fetcher: fetcher,
		logger:  logger,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Refresh runs Reload and logs the outcome. It never fails.
func (r *Refresher) Refresh(ctx context.Context) {
	err := r.Reload(ctx)
	switch {
	case err == nil:
		r.logger.Debug("agenda: reloaded")
	case errors.Is(err, ErrNoWeek):
		r.logger.Info("agenda: reload skipped", "reason", err)
	default:
		r.logger.Error("agenda: reload failed", "err", err)
	}
}

// Reload refreshes the view through the host loader when there is one and
// through a direct fetch otherwise, keeping the scroll position.
func (r *Refresher) Reload(ctx context.Context) error {
	if r.hooks.Loader == nil {
		return r.reloadDirect(ctx)
	}

	offset, restore := r.saveScroll()
	if err := r.hooks.Loader.Reload(ctx); err != nil {
		return fmt.Errorf("host reload: %w", err)
	}
	r.render()
	restore(offset)
	r.pulse()
	return nil
}

func (r *Refresher) reloadDirect(ctx context.Context) error {
	if r.hooks.Weeks == nil {
		return ErrNoWeek
	}
	week, ok := r.hooks.Weeks.CurrentWeek()
	if !ok {
		return ErrNoWeek
	}
	if r.fetcher == nil {
		return errors.New("agenda: no fetcher for direct reload")
	}

	offset, restore := r.saveScroll()
	data, err := r.fetcher.Fetch(ctx, week)
	if err != nil {
		return fmt.Errorf("fetch %s..%s: %w", week.Inicio(), week.Fim(), err)
	}
	if r.hooks.Sink != nil {
		r.hooks.Sink.SetData(week, data)
	}
	r.render()
	restore(offset)
	r.pulse()
	return nil
}

func (r *Refresher) saveScroll() (int, func(int)) {
	if r.hooks.Scroller == nil {
		return 0, func(int) {}
	}
	return r.hooks.Scroller.ScrollOffset(), r.hooks.Scroller.ScrollTo
}

func (r *Refresher) render() {
	if r.hooks.Renderer != nil {
		r.hooks.Renderer.Render()
	}
}

func (r *Refresher) pulse() {
	h := r.hooks.Highlighter
	if h == nil {
		return
	}
	r.after(highlightDelay, func() { h.Highlight(HighlightDuration) })
}
