// Package config loads the server's YAML configuration. Grounded on
// projects/04-service-mesh-proxy/config/config.go's struct-plus-defaults
// shape, finishing the YAML parsing its TODO left stubbed out by wiring
// gopkg.in/yaml.v3 instead of a hand-rolled or JSON fallback.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level server configuration.
type Config struct {
	DBRoot string `yaml:"db_root"`
	KeyHex string `yaml:"key_hex"`

	Query   ListenerConfig `yaml:"query"`
	Metrics ListenerConfig `yaml:"metrics"`

	LogLevel string `yaml:"log_level"`
}

// ListenerConfig describes one of the two listener sockets (query,
// metrics), each with its own bounded connection pool.
type ListenerConfig struct {
	Addr        string        `yaml:"addr"`
	MaxConns    int           `yaml:"max_conns"`
	TickTimeout time.Duration `yaml:"tick_timeout"`
}

var defaults = Config{
	Query: ListenerConfig{
		Addr:        ":4770",
		MaxConns:    64,
		TickTimeout: time.Second,
	},
	Metrics: ListenerConfig{
		Addr:        ":4771",
		MaxConns:    16,
		TickTimeout: time.Second,
	},
	LogLevel: "errors",
}

// Load reads a YAML config file and applies defaults for unset fields.
// A missing file is not an error: it yields the in-memory defaults, since
// bolodb is expected to run with a sensible out-of-the-box configuration.
func Load(path string) (*Config, error) {
	cfg := defaults

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Query.Addr == "" {
		cfg.Query.Addr = defaults.Query.Addr
	}
	if cfg.Query.MaxConns == 0 {
		cfg.Query.MaxConns = defaults.Query.MaxConns
	}
	if cfg.Query.TickTimeout == 0 {
		cfg.Query.TickTimeout = defaults.Query.TickTimeout
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = defaults.Metrics.Addr
	}
	if cfg.Metrics.MaxConns == 0 {
		cfg.Metrics.MaxConns = defaults.Metrics.MaxConns
	}
	if cfg.Metrics.TickTimeout == 0 {
		cfg.Metrics.TickTimeout = defaults.Metrics.TickTimeout
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
}
