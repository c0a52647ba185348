// Package config loads runtime configuration for the Peny CLI.
//
// Sources, later wins: defaults, environment (PENY_SERVER_URL,
// PENY_SESSION_FILE, PENY_TIMEOUT), an optional JSON file selected with
// -c/-config, and the flags -a (server URL), -f (session file) and
// -timeout.
//
//	{
//	  "server_url": "http://127.0.0.1:3000",
//	  "session_file": "/home/me/.peny/session.json",
//	  "timeout": "10s"
//	}
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/peny/internal/timex"
)

type Config struct {
	ServerURL   string
	SessionFile string
	Timeout     time.Duration
}

// LoadDefaults populates c with defaults. The session file lives under the
// user's home directory, or the working directory if that is unknown.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:3000"
	c.SessionFile = defaultSessionFile()
	c.Timeout = 10 * time.Second
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".peny", "session.json")
}

func parseEnv(c *Config) error {
	if v := os.Getenv("PENY_SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("PENY_SESSION_FILE"); v != "" {
		c.SessionFile = v
	}
	if v := os.Getenv("PENY_TIMEOUT"); v != "" {
		d, err := timex.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PENY_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	return nil
}

// LoadConfig applies defaults, environment, JSON and flags in that order.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseJson(cfg); err != nil {
		return nil, fmt.Errorf("json config: %w", err)
	}
	if err := parseFlags(cfg); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	return cfg, nil
}
