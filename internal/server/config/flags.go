package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/peny/internal/flagx"
	"github.com/dmitrijs2005/peny/internal/timex"
)

// parseFlags populates selected server Config fields from command-line flags.
//
//	-a string    HTTP bind address (e.g. ":3000")
//	-g string    gRPC health bind address
//	-d string    PostgreSQL DSN
//	-l string    log level
//	-s string    access token secret
//	-rs string   refresh token secret
//	-t duration  access token TTL ("15m")
//	-rt duration refresh token TTL ("7d")
//	-retries int maximum connection attempts
//
// os.Args is filtered first so flags owned by other components (-c) do not
// break parsing.
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-l", "-s", "-rs", "-t", "-rt", "-retries"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port to run server")
	fs.StringVar(&config.GRPCHealthAddr, "g", config.GRPCHealthAddr, "gRPC health address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level (debug|info|warn|error)")
	fs.StringVar(&config.AccessTokenSecret, "s", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RefreshTokenSecret, "rs", config.RefreshTokenSecret, "refresh token secret")

	accessTTL := timex.Duration{Duration: config.AccessTokenTTL}
	refreshTTL := timex.Duration{Duration: config.RefreshTokenTTL}
	fs.Var(&accessTTL, "t", "access token TTL")
	fs.Var(&refreshTTL, "rt", "refresh token TTL")

	fs.IntVar(&config.DBMaxRetries, "retries", config.DBMaxRetries, "maximum database connection attempts")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.AccessTokenTTL = accessTTL.Duration
	config.RefreshTokenTTL = refreshTTL.Duration
	return nil
}
