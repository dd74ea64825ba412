package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable name, e.g. MATRIXCI_ADDR.
const Prefix = "MATRIXCI"

// Config is the root configuration struct
type Config struct {
	// Server
	Addr      string `envconfig:"ADDR" default:":8080"`
	ServerURL string `envconfig:"SERVER_URL" default:"http://localhost:8080"`

	// Recording
	LedgerPath string `envconfig:"LEDGER_PATH" default:"./ledger.jsonl"`
	PlanDir    string `envconfig:"PLAN_DIR" default:"./plans"`
	KeyDir     string `envconfig:"KEY_DIR" default:"./keys"`

	// Expansion
	DefaultPython string `envconfig:"DEFAULT_PYTHON"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

// Load applies defaults and MATRIXCI_* environment overrides.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.LogFormat = strings.ToLower(c.LogFormat)
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q (want debug, info, warn or error)", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (want text or json)", c.LogFormat)
	}
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
	return nil
}
