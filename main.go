package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zsprackett/agenda-live/internal/applog"
	"github.com/zsprackett/agenda-live/internal/auth"
	"github.com/zsprackett/agenda-live/internal/config"
	"github.com/zsprackett/agenda-live/internal/db"
)

var version = "dev"

// env is what every subcommand needs once flags are parsed.
type env struct {
	cfg    config.Config
	logger *slog.Logger
	closer io.Closer
}

func (e *env) Close() {
	if e.closer != nil {
		e.closer.Close()
	}
}

func loadEnv(echo io.Writer) (*env, error) {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	e := &env{cfg: cfg}
	logger, closer, err := applog.Init(applog.InitConfig{
		LogDir:   cfg.LogDir,
		LogLevel: cfg.LogLevel,
		Echo:     echo,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not init log file: %v\n", err)
		logger = slog.Default()
	} else {
		e.closer = closer
	}
	e.logger = logger
	return e, nil
}

func (e *env) openDB() (*db.DB, error) {
	if err := os.MkdirAll(filepath.Dir(e.cfg.DBPath), 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	store, err := db.Open(e.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return store, nil
}

func (e *env) sessions() (*auth.Store, error) {
	ring, err := auth.OpenKeyring(e.cfg.Auth.KeyringDir)
	if err != nil {
		return nil, err
	}
	return auth.NewStore(ring), nil
}

// requireSession returns the stored session if it may open the agenda.
func (e *env) requireSession() (*auth.Session, error) {
	store, err := e.sessions()
	if err != nil {
		return nil, err
	}
	sess, err := store.Require()
	switch {
	case errors.Is(err, auth.ErrNotLoggedIn):
		return nil, errors.New("not logged in; run: agenda-live login <usuario>")
	case errors.Is(err, auth.ErrSessionExpired):
		return nil, errors.New("session expired; run: agenda-live login " + sess.Login)
	case err != nil:
		return nil, err
	}
	if !sess.AccessLevel.CanView() {
		return nil, auth.ErrNoAccess
	}
	return sess, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "agenda-live",
		Short:         "Terminal agenda with live updates",
		SilenceUsage:  true,
		SilenceErrors: true,
		// no subcommand opens the agenda
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgenda(cmd, false)
		},
	}
	root.AddCommand(
		newRunCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newHistoryCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
