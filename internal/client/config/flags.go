package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/peny/internal/flagx"
	"github.com/dmitrijs2005/peny/internal/timex"
)

// parseFlags reads -a, -f and -timeout. Other arguments belong to the CLI
// commands and are filtered out first.
func parseFlags(cfg *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-f", "-timeout"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "server base URL")
	fs.StringVar(&cfg.SessionFile, "f", cfg.SessionFile, "session file path")
	timeout := timex.Duration{Duration: cfg.Timeout}
	fs.Var(&timeout, "timeout", "request timeout")

	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.Timeout = timeout.Duration
	return nil
}
