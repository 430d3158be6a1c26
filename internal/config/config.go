package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type LiveConfig struct {
	SocketPath       string `json:"socketPath" yaml:"socket_path"`
	KeepAliveSeconds int    `json:"keepAliveSeconds" yaml:"keep_alive_seconds" envconfig:"AGENDA_KEEPALIVE_SECONDS"`
	ReconnectDelayMs int    `json:"reconnectDelayMs" yaml:"reconnect_delay_ms" envconfig:"AGENDA_RECONNECT_DELAY_MS"`
}

type AgendaConfig struct {
	DataPath       string `json:"dataPath" yaml:"data_path"`
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeout_seconds"`
}

type AuthConfig struct {
	LoginPath  string `json:"loginPath" yaml:"login_path"`
	LogoutPath string `json:"logoutPath" yaml:"logout_path"`
	// KeyringDir is used by the encrypted-file backend when no OS keyring
	// is available.
	KeyringDir string `json:"keyringDir" yaml:"keyring_dir"`
}

type NotificationsConfig struct {
	Webhook      string `json:"webhook" yaml:"webhook" envconfig:"AGENDA_NOTIFY_WEBHOOK"`
	NtfyURL      string `json:"ntfy" yaml:"ntfy" envconfig:"AGENDA_NOTIFY_NTFY"`
	PerMinute    int    `json:"perMinute" yaml:"per_minute"`
	HistoryLimit int    `json:"historyLimit" yaml:"history_limit"`
}

// RelayConfig controls the local HTTP feed that mirrors live events as
// server-sent events.
type RelayConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" envconfig:"AGENDA_RELAY_ENABLED"`
	Host    string `json:"host" yaml:"host"`
	Port    int    `json:"port" yaml:"port" envconfig:"AGENDA_RELAY_PORT"`
}

type Config struct {
	ServerURL     string              `json:"serverUrl" yaml:"server_url" envconfig:"AGENDA_SERVER_URL"`
	LogDir        string              `json:"logDir" yaml:"log_dir" envconfig:"AGENDA_LOG_DIR"`
	LogLevel      string              `json:"logLevel" yaml:"log_level" envconfig:"AGENDA_LOG_LEVEL"`
	DBPath        string              `json:"dbPath" yaml:"db_path" envconfig:"AGENDA_DB_PATH"`
	Live          LiveConfig          `json:"live" yaml:"live"`
	Agenda        AgendaConfig        `json:"agenda" yaml:"agenda"`
	Auth          AuthConfig          `json:"auth" yaml:"auth"`
	Notifications NotificationsConfig `json:"notifications" yaml:"notifications"`
	Relay         RelayConfig         `json:"relay" yaml:"relay"`
}

func baseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".agenda-live")
}

func Defaults() Config {
	dir := baseDir()
	return Config{
		ServerURL: "http://localhost:5000",
		LogDir:    filepath.Join(dir, "logs"),
		LogLevel:  "info",
		DBPath:    filepath.Join(dir, "state.db"),
		Live: LiveConfig{
			SocketPath:       "/socket.io/",
			KeepAliveSeconds: 30,
			ReconnectDelayMs: 3000,
		},
		Agenda: AgendaConfig{
			DataPath:       "/api/agenda/dados",
			TimeoutSeconds: 15,
		},
		Auth: AuthConfig{
			LoginPath:  "/autenticar-login",
			LogoutPath: "/logout",
			KeyringDir: filepath.Join(dir, "credentials"),
		},
		Notifications: NotificationsConfig{
			PerMinute:    30,
			HistoryLimit: 20,
		},
		Relay: RelayConfig{
			Host: "127.0.0.1",
			Port: 7781,
		},
	}
}

// DefaultPath looks for config.yaml first and falls back to config.json.
func DefaultPath() string {
	dir := baseDir()
	for _, name := range []string{"config.yaml", "config.yml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, "config.json")
}

// Load starts from Defaults, overlays the file at path (JSON, or YAML when
// the extension says so) and then any AGENDA_* environment variables.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := decode(path, data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

func (c Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("serverUrl: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("serverUrl: scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("serverUrl: missing host")
	}
	if c.Relay.Enabled && (c.Relay.Port < 0 || c.Relay.Port > 65535) {
		return fmt.Errorf("relay.port: out of range: %d", c.Relay.Port)
	}
	return nil
}

// KeepAlive returns the ping interval, falling back to 30s for non-positive values.
func (c Config) KeepAlive() time.Duration {
	if c.Live.KeepAliveSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Live.KeepAliveSeconds) * time.Second
}

func (c Config) ReconnectDelay() time.Duration {
	if c.Live.ReconnectDelayMs <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.Live.ReconnectDelayMs) * time.Millisecond
}

func (c Config) AgendaTimeout() time.Duration {
	if c.Agenda.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Agenda.TimeoutSeconds) * time.Second
}
