// Package config loads the backlog daemon settings and task definitions from YAML.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"

	"github.com/Summon528/Flexget/backlog"
	"github.com/Summon528/Flexget/duration"
	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// DSNEnv overrides database.dsn, keeping credentials out of the file.
	DSNEnv = "FLEXGET_BACKLOG_DSN"
)

type Database struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns,omitempty"`
}

// Task is one feed to process. Backlog is nil unless the task asks for
// learning; an explicit empty value is kept so validation can reject it.
type Task struct {
	RSS     string  `yaml:"rss,omitempty"`
	Backlog *string `yaml:"backlog,omitempty"`
}

type Config struct {
	Listen   string          `yaml:"listen"`
	LogLevel string          `yaml:"log_level"`
	Database Database        `yaml:"database"`
	Tasks    map[string]Task `yaml:"tasks"`
}

// Options returns the task settings as the run configuration seen by plugins.
func (t Task) Options() map[string]any {
	opts := map[string]any{}
	if t.RSS != "" {
		opts["rss"] = t.RSS
	}
	if t.Backlog != nil {
		opts[backlog.ConfigKey] = *t.Backlog
	}
	return opts
}

// TaskNames returns the configured task names, sorted.
func (c *Config) TaskNames() []string {
	names := make([]string, 0, len(c.Tasks))
	for name := range c.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "flexget", "backlog.yaml")
}

func DefaultDatabasePath() string {
	return filepath.Join(xdg.DataHome, "flexget", "backlog.db")
}

func defaults() *Config {
	return &Config{
		Listen:   ":8080",
		LogLevel: "info",
		Database: Database{Driver: DriverSQLite},
		Tasks:    map[string]Task{},
	}
}

// Load reads the config at path. An empty path means DefaultPath, which may
// be absent, in which case defaults are returned.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			cfg := defaults()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML document on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies the DSN override, then the SQLite default path when the
// driver is sqlite and no DSN was given.
func applyEnv(cfg *Config) {
	if dsn := os.Getenv(DSNEnv); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if cfg.Database.Driver == DriverSQLite && cfg.Database.DSN == "" {
		cfg.Database.DSN = DefaultDatabasePath()
	}
}

func validate(cfg *Config) error {
	switch cfg.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("database.driver %q unknown: want sqlite|postgres", cfg.Database.Driver)
	}
	if cfg.Database.Driver == DriverPostgres && cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for postgres (or set %s)", DSNEnv)
	}

	for name, task := range cfg.Tasks {
		if name == "" {
			return errors.New("task name must not be empty")
		}
		if task.Backlog != nil {
			if err := duration.Validate(*task.Backlog); err != nil {
				return fmt.Errorf("task %q: backlog: %w", name, err)
			}
		}
		if task.RSS != "" {
			u, err := url.Parse(task.RSS)
			if err != nil {
				return fmt.Errorf("task %q: invalid rss url: %w", name, err)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("task %q: rss url scheme must be http or https, got %q", name, u.Scheme)
			}
		}
	}
	return nil
}
