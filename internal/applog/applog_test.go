package applog_test

import (
	"bytes"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zsprackett/agenda-live/internal/applog"
)

func TestDailyRotator_CreatesFileOnFirstWrite(t *testing.T) {
	dir := t.TempDir()
	r := applog.NewDailyRotator(dir, 7)
	defer r.Close()

	if _, err := r.Write([]byte("hello\n")); err != nil {
		t.Fatal(err)
	}

	name := applog.FileName(dir, time.Now().Format(time.DateOnly))
	if _, err := os.Stat(name); err != nil {
		t.Errorf("expected log file %q to exist: %v", name, err)
	}
}

func TestDailyRotator_SwitchesFileAtMidnight(t *testing.T) {
	dir := t.TempDir()
	r := applog.NewDailyRotator(dir, 7)
	defer r.Close()

	r.SetNow(func() time.Time { return time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC) })
	r.Write([]byte("before\n"))
	r.SetNow(func() time.Time { return time.Date(2026, 3, 10, 0, 1, 0, 0, time.UTC) })
	r.Write([]byte("after\n"))

	matches, _ := filepath.Glob(filepath.Join(dir, "agenda-live-*.log"))
	if len(matches) != 2 {
		t.Fatalf("expected 2 log files, got %d", len(matches))
	}
	data, _ := os.ReadFile(applog.FileName(dir, "2026-03-10"))
	if string(data) != "after\n" {
		t.Errorf("second day file: got %q", data)
	}
}

func TestDailyRotator_PrunesOldFiles(t *testing.T) {
	dir := t.TempDir()
	r := applog.NewDailyRotator(dir, 2)

	for day := 1; day <= 4; day++ {
		d := day
		r.SetNow(func() time.Time { return time.Date(2026, 2, d, 8, 0, 0, 0, time.UTC) })
		if _, err := r.Write([]byte("x\n")); err != nil {
			t.Fatal(err)
		}
	}
	r.Close()

	matches, _ := filepath.Glob(filepath.Join(dir, "agenda-live-*.log"))
	if len(matches) != 2 {
		t.Fatalf("expected 2 files after pruning, got %v", matches)
	}
	for _, m := range matches {
		base := filepath.Base(m)
		if base == "agenda-live-2026-02-01.log" || base == "agenda-live-2026-02-02.log" {
			t.Errorf("%s should have been pruned", base)
		}
	}
}

func TestInit_EchoesToWriter(t *testing.T) {
	var echo bytes.Buffer
	logger, closer, err := applog.Init(applog.InitConfig{
		LogDir:   filepath.Join(t.TempDir(), "logs"),
		LogLevel: "debug",
		Echo:     &echo,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	logger.Debug("live: connected", "user", "ana")
	if !strings.Contains(echo.String(), "live: connected") {
		t.Errorf("echo writer missing record: %q", echo.String())
	}
}

func TestInit_StdlibLogRedirected(t *testing.T) {
	dir := t.TempDir()
	_, closer, err := applog.Init(applog.InitConfig{LogDir: dir, LogLevel: "info"})
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	log.Print("stdlib-marker")

	data, err := os.ReadFile(applog.FileName(dir, time.Now().Format(time.DateOnly)))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "stdlib-marker") {
		t.Errorf("stdlib output not in log file: %q", data)
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		input string
		level slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" ERROR ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := applog.ParseLevel(tc.input); got != tc.level {
			t.Errorf("ParseLevel(%q): got %v want %v", tc.input, got, tc.level)
		}
	}
}
