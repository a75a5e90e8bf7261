// Package config defines planday's configuration file and defaults. All
// process-wide settings are resolved once at startup and passed explicitly
// into the components that need them; there are no hidden singletons.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	yamlv3 "gopkg.in/yaml.v3"
)

const FileName = "planday.yaml"

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

type Config struct {
	Planner PlannerConfig `yaml:"planner"`
	Storage StorageConfig `yaml:"storage"`
	User    UserConfig    `yaml:"user"`
	Timer   TimerConfig   `yaml:"timer"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Logging LoggingConfig `yaml:"logging"`
	Notify  NotifyConfig  `yaml:"notify"`
}

type PlannerConfig struct {
	Version string `yaml:"version"`
	Created string `yaml:"created"`
}

type StorageConfig struct {
	// Backend selects the remote document store: "file" or "sqlite".
	Backend  string `yaml:"backend"`
	Instance string `yaml:"instance"`
	// PollIntervalMs is the sqlite subscription poll interval.
	PollIntervalMs int `yaml:"poll_interval_ms"`
}

type UserConfig struct {
	ID string `yaml:"id"`
}

type TimerConfig struct {
	TickIntervalMs int `yaml:"tick_interval_ms"`
}

type DaemonConfig struct {
	ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type NotifyConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration a fresh `planday init` writes.
func Default() Config {
	return Config{
		Planner: PlannerConfig{Version: "1.0.0"},
		Storage: StorageConfig{
			Backend:        BackendFile,
			Instance:       "default",
			PollIntervalMs: 1000,
		},
		User:    UserConfig{ID: "local"},
		Timer:   TimerConfig{TickIntervalMs: 1000},
		Daemon:  DaemonConfig{ShutdownTimeoutSec: 10},
		Logging: LoggingConfig{Level: "info"},
		Notify:  NotifyConfig{Enabled: true},
	}
}

// Load reads the config inside dir, filling unset fields from Default. A
// missing file yields Default unchanged.
func Load(dir string) (Config, error) {
	cfg := Default()

	content, err := os.ReadFile(filepath.Join(dir, FileName))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yamlv3.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = def.Storage.Backend
	}
	if cfg.Storage.Instance == "" {
		cfg.Storage.Instance = def.Storage.Instance
	}
	if cfg.Storage.PollIntervalMs <= 0 {
		cfg.Storage.PollIntervalMs = def.Storage.PollIntervalMs
	}
	if cfg.User.ID == "" {
		cfg.User.ID = def.User.ID
	}
	if cfg.Timer.TickIntervalMs <= 0 {
		cfg.Timer.TickIntervalMs = def.Timer.TickIntervalMs
	}
	if cfg.Daemon.ShutdownTimeoutSec <= 0 {
		cfg.Daemon.ShutdownTimeoutSec = def.Daemon.ShutdownTimeoutSec
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
}

func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

// Save writes the config into dir.
func Save(dir string, cfg Config) error {
	content, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), content, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
