package ui

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"time"

	"github.com/rivo/tview"

	"github.com/zsprackett/agenda-live/internal/agenda"
	"github.com/zsprackett/agenda-live/internal/auth"
	"github.com/zsprackett/agenda-live/internal/config"
	"github.com/zsprackett/agenda-live/internal/db"
	"github.com/zsprackett/agenda-live/internal/live"
	"github.com/zsprackett/agenda-live/internal/notify"
	"github.com/zsprackett/agenda-live/internal/socketio"
	"github.com/zsprackett/agenda-live/internal/ui/dialogs"
	"github.com/zsprackett/agenda-live/internal/webserver"
)

type App struct {
	tapp      *tview.Application
	pages     *tview.Pages
	queue     *updateQueue
	home      *Home
	toasts    *Toasts
	store     *db.DB
	sess      *auth.Session
	cfg       config.Config
	live      *live.Client
	refresher *agenda.Refresher
	relay     *webserver.Server
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *slog.Logger
}

func NewApp(store *db.DB, cfg config.Config, sess *auth.Session, logger *slog.Logger) (*App, error) {
	a := &App{
		store:  store,
		cfg:    cfg,
		sess:   sess,
		logger: logger,
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	fetcher, err := agenda.NewClient(cfg.ServerURL, cfg.Agenda.DataPath, sess.Token, cfg.AgendaTimeout())
	if err != nil {
		return nil, err
	}

	a.tapp = tview.NewApplication()
	a.pages = tview.NewPages()
	a.queue = newUpdateQueue(func(f func()) { a.tapp.QueueUpdateDraw(f) })

	a.home = NewHome(a.queue.Post, fetcher, sess.DisplayName(), sess.AccessLevel, a.startWeek())
	a.toasts = NewToasts(a.queue.Post)
	a.home.AttachToasts(a.toasts)

	notifier := notify.New(notify.Config{
		Webhook:   cfg.Notifications.Webhook,
		NtfyURL:   cfg.Notifications.NtfyURL,
		PerMinute: cfg.Notifications.PerMinute,
	}, a.toasts, store, logger)

	a.refresher = agenda.NewRefresher(agenda.Hooks{
		Loader:      a.home,
		Renderer:    a.home,
		Weeks:       a.home,
		Sink:        a.home,
		Scroller:    a.home,
		Highlighter: a.home,
	}, fetcher, logger)

	a.relay = webserver.New(store, webserver.Config{
		Enabled: cfg.Relay.Enabled,
		Host:    cfg.Relay.Host,
		Port:    cfg.Relay.Port,
	}, logger)

	a.live = live.New(live.Options{
		Dial:        LiveDialer(cfg, sess, logger),
		Notifier:    notifier,
		Refresher:   a.refresher,
		Status:      a.home,
		Presence:    a.home,
		Broadcaster: a.relay,
		KeepAlive:   cfg.KeepAlive(),
		Logger:      logger,
	})
	a.relay.SetStatus(a.live)

	a.pages.AddPage("home", a.home, true, true)
	a.tapp.SetRoot(a.pages, true).EnableMouse(false)

	a.home.SetCallbacks(
		a.onWeekChange,
		a.reload,
		a.onEdit,
		func() { a.toasts.Toast(auth.DeniedMessage) },
		a.showHelp,
		a.onQuit,
	)
	return a, nil
}

// LiveDialer connects to the server's socket.io endpoint as sess.
func LiveDialer(cfg config.Config, sess *auth.Session, logger *slog.Logger) live.Dialer {
	header := http.Header{}
	if sess.Token != "" {
		header.Set("Authorization", "Bearer "+sess.Token)
	}
	return live.SocketIODialer(socketio.Options{
		URL:            cfg.ServerURL,
		Path:           cfg.Live.SocketPath,
		Header:         header,
		Auth:           sess.ConnectAuth(),
		ReconnectDelay: cfg.ReconnectDelay(),
		Logger:         logger,
	})
}

// startWeek resumes the last week viewed, or the current one.
func (a *App) startWeek() agenda.Week {
	start, err := a.store.GetMeta(db.MetaWeekStart)
	if err == nil && start != "" {
		if w, err := agenda.ParseWeek(start); err == nil {
			return w
		}
	}
	return agenda.WeekOf(time.Now())
}

func (a *App) Run() error {
	if err := a.relay.Start(a.ctx); err != nil {
		a.logger.Warn("ui: relay disabled", "err", err)
	}
	if !a.live.Init(a.sess.DisplayName()) {
		a.toasts.Toast("Atualização em tempo real indisponível")
	}
	a.reload()

	err := a.tapp.Run()

	// the loop is gone: stop posting to it before the transport
	// delivers its last callbacks
	a.queue.Stop()
	a.home.Stop()
	a.live.Disconnect()
	a.cancel()
	if week, ok := a.home.CurrentWeek(); ok {
		if err := a.store.SetMeta(db.MetaWeekStart, week.Inicio()); err != nil {
			a.logger.Warn("ui: save week", "err", err)
		}
	}
	if n, err := a.store.PruneNotifications(db.NotificationLogSize); err == nil && n > 0 {
		a.logger.Debug("ui: pruned notification log", "removed", n)
	}
	return err
}

func (a *App) reload() {
	go a.refresher.Refresh(a.ctx)
}

func (a *App) onWeekChange(w agenda.Week) {
	if err := a.store.SetMeta(db.MetaWeekStart, w.Inicio()); err != nil {
		a.logger.Warn("ui: save week", "err", err)
	}
	a.reload()
}

func (a *App) onEdit(rec agenda.Record) {
	u, err := url.Parse(a.cfg.ServerURL)
	if err != nil {
		return
	}
	u.Path = "/agenda"
	if id := rec.Field("id"); id != "" {
		q := u.Query()
		q.Set("id", id)
		u.RawQuery = q.Encode()
	}
	if err := openBrowser(u.String()); err != nil {
		a.toasts.Toast(fmt.Sprintf("Não foi possível abrir o navegador: %v", err))
	}
}

func openBrowser(target string) error {
	name := "xdg-open"
	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target).Start()
	}
	return exec.Command(name, target).Start()
}

func (a *App) showDialog(name string, widget tview.Primitive, width, height int) {
	modal := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexColumn).
			AddItem(nil, 0, 1, false).
			AddItem(widget, width, 0, true).
			AddItem(nil, 0, 1, false), height, 0, true).
		AddItem(nil, 0, 1, false)
	a.pages.AddPage(name, modal, true, true)
	a.tapp.SetFocus(widget)
}

func (a *App) closeDialog(name string) {
	a.pages.RemovePage(name)
	a.tapp.SetFocus(a.home.table)
}

func (a *App) showHelp() {
	help := dialogs.HelpDialog(func() {
		a.closeDialog("help")
	})
	a.showDialog("help", help, 56, 22)
}

func (a *App) onQuit() {
	confirm := dialogs.ConfirmDialog("Sair do agenda-live?",
		func() { a.tapp.Stop() },
		func() { a.closeDialog("quit") },
	)
	a.pages.AddPage("quit", confirm, true, true)
	a.tapp.SetFocus(confirm)
}
