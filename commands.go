package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zsprackett/agenda-live/internal/auth"
	"github.com/zsprackett/agenda-live/internal/ui"
)

func newRunCmd() *cobra.Command {
	var headless bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open the agenda and follow changes live",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgenda(cmd, headless)
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "log notifications instead of drawing the agenda")
	return cmd
}

func runAgenda(cmd *cobra.Command, headless bool) error {
	if !headless && !term.IsTerminal(int(os.Stdout.Fd())) {
		headless = true
	}
	var echo io.Writer
	if headless {
		echo = os.Stderr
	}
	e, err := loadEnv(echo)
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := e.requireSession()
	if err != nil {
		return err
	}
	store, err := e.openDB()
	if err != nil {
		return err
	}
	defer store.Close()

	e.logger.Info("agenda-live starting", "version", version, "user", sess.Login, "access", string(sess.AccessLevel), "headless", headless)
	if headless {
		return runHeadless(cmd.Context(), e, store, sess)
	}
	app, err := ui.NewApp(store, e.cfg, sess, e.logger)
	if err != nil {
		return err
	}
	return app.Run()
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <usuario>",
		Short: "Sign in and store the session in the keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(nil)
			if err != nil {
				return err
			}
			defer e.Close()

			password, err := readPassword(cmd, "Senha para "+args[0]+": ")
			if err != nil {
				return err
			}
			store, err := e.sessions()
			if err != nil {
				return err
			}
			client, err := auth.NewClient(e.cfg.ServerURL, e.cfg.Auth.LoginPath, e.cfg.Auth.LogoutPath, store, e.logger)
			if err != nil {
				return err
			}
			sess, err := client.Login(context.Background(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", sess.DisplayName(), sess.AccessLevel)
			if !sess.AccessLevel.CanView() {
				fmt.Fprintln(cmd.OutOrStdout(), auth.DeniedMessage)
			}
			return nil
		},
	}
}

// readPassword reads without echo from a terminal, or a line from piped
// input.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session on the server and forget it locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(nil)
			if err != nil {
				return err
			}
			defer e.Close()

			store, err := e.sessions()
			if err != nil {
				return err
			}
			client, err := auth.NewClient(e.cfg.ServerURL, e.cfg.Auth.LoginPath, e.cfg.Auth.LogoutPath, store, e.logger)
			if err != nil {
				return err
			}
			if err := client.Logout(context.Background()); err != nil {
				// the local session is gone either way
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(nil)
			if err != nil {
				return err
			}
			defer e.Close()

			store, err := e.sessions()
			if err != nil {
				return err
			}
			sess, err := store.Require()
			if errors.Is(err, auth.ErrNotLoggedIn) {
				fmt.Fprintln(cmd.OutOrStdout(), "not logged in")
				return nil
			}
			if err != nil && !errors.Is(err, auth.ErrSessionExpired) {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", sess.DisplayName(), sess.Login)
			fmt.Fprintf(out, "access:  %s\n", sess.AccessLevel)
			switch {
			case sess.ExpiresAt.IsZero():
				fmt.Fprintln(out, "expires: unknown")
			case err != nil:
				fmt.Fprintf(out, "expired: %s\n", humanize.Time(sess.ExpiresAt))
			default:
				fmt.Fprintf(out, "expires: %s\n", humanize.Time(sess.ExpiresAt))
			}
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(nil)
			if err != nil {
				return err
			}
			defer e.Close()

			if limit <= 0 {
				limit = e.cfg.Notifications.HistoryLimit
			}
			store, err := e.openDB()
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.RecentNotifications(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "no notifications yet")
				return nil
			}
			for _, n := range items {
				fmt.Fprintf(out, "%-16s %s\n", humanize.Time(n.Time()), n.Message)
			}
			if last := store.LastSync(); !last.IsZero() {
				fmt.Fprintf(out, "\nlast refresh %s\n", humanize.Time(last))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of notifications to show (default from config)")
	return cmd
}
