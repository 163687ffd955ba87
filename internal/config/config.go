package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/jask/rlaconsole/internal/api"
)

// Config holds application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Poll     PollConfig     `mapstructure:"poll"`
	Login    LoginConfig    `mapstructure:"login"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Sandbox  SandboxConfig  `mapstructure:"sandbox"`
}

// ServerConfig points at the audit server.
type ServerConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// Origin is the public address agents open; share links are built on it.
	Origin         string        `mapstructure:"origin"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AuditConfig selects what the console watches.
type AuditConfig struct {
	ElectionID      string   `mapstructure:"election_id"`
	JurisdictionIDs []string `mapstructure:"jurisdiction_ids"`
	AuditType       string   `mapstructure:"audit_type"`
	OnlineEntry     bool     `mapstructure:"online_entry"`
}

type PollConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	LoginInterval time.Duration `mapstructure:"login_interval"`
}

type LoginConfig struct {
	CodeLength       int           `mapstructure:"code_length"`
	ConfirmedDismiss time.Duration `mapstructure:"confirmed_dismiss"`
}

// DatabaseConfig holds the activity journal's sqlite settings. An empty
// Migrations uses the migrations built into the binary.
type DatabaseConfig struct {
	Path       string `mapstructure:"path"`
	Migrations string `mapstructure:"migrations"`
}

type LogConfig struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type SandboxConfig struct {
	Addr           string        `mapstructure:"addr"`
	Scenario       string        `mapstructure:"scenario"`
	RosterDuration time.Duration `mapstructure:"roster_duration"`
	DrawDuration   time.Duration `mapstructure:"draw_duration"`
}

// EnvPrefix prefixes every environment override, e.g. RLACONSOLE_POLL_INTERVAL.
const EnvPrefix = "RLACONSOLE"

func dataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "rlaconsole")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.base_url", "http://localhost:3000")
	v.SetDefault("server.origin", "http://localhost:3000")
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("audit.election_id", "")
	v.SetDefault("audit.jurisdiction_ids", []string{})
	v.SetDefault("audit.audit_type", string(api.BallotPolling))
	v.SetDefault("audit.online_entry", true)
	v.SetDefault("poll.interval", time.Second)
	v.SetDefault("poll.timeout", 2*time.Minute)
	v.SetDefault("poll.login_interval", time.Second)
	v.SetDefault("login.code_length", 3)
	v.SetDefault("login.confirmed_dismiss", 1500*time.Millisecond)
	v.SetDefault("database.path", filepath.Join(dataDir(), "activity.db"))
	v.SetDefault("database.migrations", "")
	v.SetDefault("log.path", filepath.Join(dataDir(), "rlaconsole.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("sandbox.addr", "127.0.0.1:3000")
	v.SetDefault("sandbox.scenario", "")
	v.SetDefault("sandbox.roster_duration", 3*time.Second)
	v.SetDefault("sandbox.draw_duration", 5*time.Second)
}

// Path is the config file location: $RLACONSOLE_CONFIG, or
// ~/.config/rlaconsole/config.toml.
func Path() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "rlaconsole", "config.toml")
}

// Loader reads one config file plus environment overrides and can watch the
// file for edits.
type Loader struct {
	v    *viper.Viper
	path string
	mu   sync.Mutex
}

func NewLoader(path string) *Loader {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v, path: path}
}

// Load reads the file if present. A missing file is not an error.
func (l *Loader) Load() (Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(l.path); statErr == nil {
			return Config{}, errors.Wrapf(err, "read config %s", l.path)
		}
	}
	return l.decode()
}

func (l *Loader) decode() (Config, error) {
	var c Config
	if err := l.v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "unmarshal config")
	}
	return c, nil
}

// Watch calls onChange with the re-read config every time the file is
// written or replaced.
func (l *Loader) Watch(onChange func(Config, error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		l.mu.Lock()
		c, err := l.decode()
		l.mu.Unlock()
		onChange(c, err)
	})
	l.v.WatchConfig()
}

// Load reads configuration from the default path and env.
func Load() (Config, error) {
	return NewLoader(Path()).Load()
}

// Validate checks the settings the coordinators depend on.
func (c Config) Validate() error {
	if c.Audit.ElectionID == "" {
		return errors.New("audit.election_id is required")
	}
	if !api.AuditType(c.Audit.AuditType).Valid() {
		return errors.Errorf("audit.audit_type %q is not one of BALLOT_POLLING, BATCH_COMPARISON, BALLOT_COMPARISON, HYBRID", c.Audit.AuditType)
	}
	if c.Login.CodeLength < 1 || c.Login.CodeLength > 8 {
		return errors.Errorf("login.code_length must be between 1 and 8, got %d", c.Login.CodeLength)
	}
	if c.Poll.Interval < 0 || c.Poll.Timeout < 0 || c.Poll.LoginInterval < 0 {
		return errors.New("poll durations must not be negative")
	}
	return nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "mkdir config dir")
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("server.base_url", cfg.Server.BaseURL)
	v.Set("server.origin", cfg.Server.Origin)
	v.Set("server.request_timeout", cfg.Server.RequestTimeout.String())
	v.Set("audit.election_id", cfg.Audit.ElectionID)
	v.Set("audit.jurisdiction_ids", cfg.Audit.JurisdictionIDs)
	v.Set("audit.audit_type", cfg.Audit.AuditType)
	v.Set("audit.online_entry", cfg.Audit.OnlineEntry)
	v.Set("poll.interval", cfg.Poll.Interval.String())
	v.Set("poll.timeout", cfg.Poll.Timeout.String())
	v.Set("poll.login_interval", cfg.Poll.LoginInterval.String())
	v.Set("login.code_length", cfg.Login.CodeLength)
	v.Set("login.confirmed_dismiss", cfg.Login.ConfirmedDismiss.String())
	v.Set("database.path", cfg.Database.Path)
	v.Set("database.migrations", cfg.Database.Migrations)
	v.Set("log.path", cfg.Log.Path)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.json", cfg.Log.JSON)
	v.Set("sandbox.addr", cfg.Sandbox.Addr)
	v.Set("sandbox.scenario", cfg.Sandbox.Scenario)
	v.Set("sandbox.roster_duration", cfg.Sandbox.RosterDuration.String())
	v.Set("sandbox.draw_duration", cfg.Sandbox.DrawDuration.String())

	if err := v.WriteConfigAs(path); err != nil {
		return errors.Wrap(err, "write config")
	}
	return nil
}
