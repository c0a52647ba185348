package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/peny/internal/logging"
	"github.com/dmitrijs2005/peny/internal/server/auth"
	"github.com/dmitrijs2005/peny/internal/server/config"
	"github.com/dmitrijs2005/peny/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/peny/internal/server/seed"
	"github.com/dmitrijs2005/peny/internal/server/services"
	"github.com/dmitrijs2005/peny/internal/server/supervisor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	passwords, err := seed.LoadPasswords(os.Args[1:])
	if err != nil {
		return err
	}

	logger := logging.NewJSON(os.Stdout, cfg.LogLevel)

	db, err := repomanager.Open(cfg.DatabaseDSN)
	if err != nil {
		return err
	}

	sup, err := supervisor.New(db, supervisor.Config{
		MaxRetries:        cfg.DBMaxRetries,
		BaseDelay:         cfg.DBRetryDelay,
		MaxDelay:          cfg.DBMaxRetryDelay,
		Jitter:            cfg.DBRetryJitter,
		HeartbeatInterval: cfg.DBHeartbeatInterval,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sup.Shutdown(sctx)
	}()

	if err := sup.Connect(ctx); err != nil {
		return err
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	accounts := services.NewAccountService(db, rm, auth.NewBcryptHasher(cfg.BcryptCost), logger)

	n, err := seed.Run(ctx, accounts, seed.Accounts(passwords), logger)
	if err != nil {
		return err
	}
	logger.Info(ctx, "seed completed", "created", n)
	return nil
}
