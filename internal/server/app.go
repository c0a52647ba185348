// Package server wires configuration, the database supervisor, services
// and the HTTP and gRPC health listeners into one process, and runs the
// shutdown sequence on SIGINT or SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/peny/internal/logging"
	"github.com/dmitrijs2005/peny/internal/server/auth"
	"github.com/dmitrijs2005/peny/internal/server/config"
	"github.com/dmitrijs2005/peny/internal/server/httpapi"
	"github.com/dmitrijs2005/peny/internal/server/metrics"
	"github.com/dmitrijs2005/peny/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/peny/internal/server/services"
	"github.com/dmitrijs2005/peny/internal/server/supervisor"

	gs "github.com/dmitrijs2005/peny/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager

	// preopened listeners; nil means listen on the configured addresses
	httpListener net.Listener
	grpcListener net.Listener
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	db, err := repomanager.Open(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		repomanager: repomanager.NewPostgresRepositoryManager(),
	}, nil
}

func (app *App) supervisorConfig() supervisor.Config {
	c := app.config
	return supervisor.Config{
		MaxRetries:        c.DBMaxRetries,
		BaseDelay:         c.DBRetryDelay,
		MaxDelay:          c.DBMaxRetryDelay,
		Jitter:            c.DBRetryJitter,
		HeartbeatInterval: c.DBHeartbeatInterval,
	}
}

// Run blocks until a termination signal, ctx cancellation or a listener
// failure. A database that cannot be reached at startup returns an error
// wrapping common.ErrPersistenceUnavailable.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	reg := metrics.NewRegistry()
	health := gs.NewHealthServer(app.config.GRPCHealthAddr, app.logger)

	sup, err := supervisor.New(app.db, app.supervisorConfig(), app.logger)
	if err != nil {
		return err
	}
	sup.AddHooks(reg.SupervisorHooks())
	sup.AddHooks(health.SupervisorHooks())

	if err := sup.Connect(ctx); err != nil {
		app.logger.Error(ctx, "database unavailable, aborting startup", "error", err)
		_ = sup.Shutdown(context.Background())
		return err
	}

	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		_ = sup.Shutdown(context.Background())
		return fmt.Errorf("migrations: %w", err)
	}

	sup.StartHeartbeat()

	router, err := app.buildRouter(sup, reg)
	if err != nil {
		_ = sup.Shutdown(context.Background())
		return err
	}
	httpSrv := httpapi.NewServer(app.config.HTTPAddr, router, app.logger)

	errCh := make(chan error, 2)
	go func() { errCh <- app.serveHTTP(ctx, httpSrv) }()
	go func() { errCh <- app.serveGRPC(ctx, health) }()

	var runErr error
	select {
	case <-ctx.Done():
		app.logger.Info(ctx, "Received shutdown signal")
	case runErr = <-errCh:
		app.logger.Error(ctx, "listener failed", "error", runErr)
	}

	app.shutdown(httpSrv, health, sup)
	return runErr
}

func (app *App) buildRouter(sup *supervisor.Supervisor, reg *metrics.Registry) (http.Handler, error) {
	c := app.config

	issuer, err := auth.NewIssuer(c.AccessTokenSecret, c.RefreshTokenSecret, c.AccessTokenTTL, c.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	hasher := auth.NewBcryptHasher(c.BcryptCost)

	return httpapi.NewRouter(httpapi.Deps{
		Sessions: services.NewSessionService(app.db, app.repomanager, issuer, hasher, app.logger),
		Accounts: services.NewAccountService(app.db, app.repomanager, hasher, app.logger),
		Photos:   services.NewPhotoService(c),
		DB:       sup,
		Metrics:  reg.Handler(),
		Observer: reg,
		Logger:   app.logger,
	}), nil
}

func (app *App) serveHTTP(ctx context.Context, s *httpapi.Server) error {
	if app.httpListener != nil {
		return s.Serve(ctx, app.httpListener)
	}
	return s.ListenAndServe(ctx)
}

func (app *App) serveGRPC(ctx context.Context, s *gs.HealthServer) error {
	if app.grpcListener != nil {
		return s.Serve(ctx, app.grpcListener)
	}
	return s.ListenAndServe(ctx)
}

// shutdown stops HTTP, then gRPC, then the supervisor, all bounded by the
// configured timeout.
func (app *App) shutdown(httpSrv *httpapi.Server, health *gs.HealthServer, sup *supervisor.Supervisor) {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		app.logger.Error(ctx, "http shutdown", "error", err)
	}
	health.Stop(ctx)
	if err := sup.Shutdown(ctx); err != nil {
		app.logger.Error(ctx, "supervisor shutdown", "error", err)
	}
	app.logger.Info(ctx, "Shutdown complete")
}
