package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zsprackett/agenda-live/internal/agenda"
	"github.com/zsprackett/agenda-live/internal/auth"
	"github.com/zsprackett/agenda-live/internal/db"
	"github.com/zsprackett/agenda-live/internal/live"
	"github.com/zsprackett/agenda-live/internal/notify"
	"github.com/zsprackett/agenda-live/internal/ui"
	"github.com/zsprackett/agenda-live/internal/webserver"
)

// weekLog is the headless stand-in for the agenda screen: it always shows
// the current week and logs what each refresh brought in.
type weekLog struct {
	store  *db.DB
	logger *slog.Logger
	now    func() time.Time
}

func (v *weekLog) CurrentWeek() (agenda.Week, bool) {
	return agenda.WeekOf(v.now()), true
}

func (v *weekLog) SetData(week agenda.Week, d *agenda.Data) {
	v.logger.Info("agenda refreshed",
		"week", week.String(),
		"demandas", len(d.Demandas),
		"diarias", len(d.DiariasTerceirizados))
	if err := v.store.Touch(); err != nil {
		v.logger.Warn("agenda: record sync time", "err", err)
	}
}

func runHeadless(ctx context.Context, e *env, store *db.DB, sess *auth.Session) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher, err := agenda.NewClient(e.cfg.ServerURL, e.cfg.Agenda.DataPath, sess.Token, e.cfg.AgendaTimeout())
	if err != nil {
		return err
	}
	view := &weekLog{store: store, logger: e.logger, now: time.Now}
	refresher := agenda.NewRefresher(agenda.Hooks{Weeks: view, Sink: view}, fetcher, e.logger)

	notifier := notify.New(notify.Config{
		Webhook:   e.cfg.Notifications.Webhook,
		NtfyURL:   e.cfg.Notifications.NtfyURL,
		PerMinute: e.cfg.Notifications.PerMinute,
	}, notify.LogToaster{Logger: e.logger}, store, e.logger)

	relay := webserver.New(store, webserver.Config{
		Enabled: e.cfg.Relay.Enabled,
		Host:    e.cfg.Relay.Host,
		Port:    e.cfg.Relay.Port,
	}, e.logger)

	client := live.New(live.Options{
		Dial:        ui.LiveDialer(e.cfg, sess, e.logger),
		Notifier:    notifier,
		Refresher:   refresher,
		Broadcaster: relay,
		KeepAlive:   e.cfg.KeepAlive(),
		Logger:      e.logger,
	})
	relay.SetStatus(client)

	if err := relay.Start(ctx); err != nil {
		return err
	}
	if !client.Init(sess.DisplayName()) {
		return errors.New("live updates unavailable")
	}
	refresher.Refresh(ctx)

	<-ctx.Done()
	e.logger.Info("agenda-live stopping")
	client.Disconnect()
	client.WaitRefreshes()
	if _, err := store.PruneNotifications(db.NotificationLogSize); err != nil {
		e.logger.Warn("prune notifications", "err", err)
	}
	return nil
}
