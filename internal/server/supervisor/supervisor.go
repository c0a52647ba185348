// Package supervisor keeps the server's database connection alive: it
// connects with capped exponential backoff at startup, probes the database
// on a fixed interval, reconnects after a failed probe, and coordinates a
// single clean shutdown.
package supervisor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/peny/internal/common"
	"github.com/dmitrijs2005/peny/internal/logging"
)

// Database is the part of *sql.DB the supervisor drives.
type Database interface {
	PingContext(ctx context.Context) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Close() error
}

// Config controls retry and heartbeat timing.
type Config struct {
	// MaxRetries is the total number of connection attempts per sequence.
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	Jitter            time.Duration
	HeartbeatInterval time.Duration
}

func (c Config) validate() error {
	switch {
	case c.MaxRetries < 1:
		return errors.New("supervisor: MaxRetries must be at least 1")
	case c.BaseDelay <= 0:
		return errors.New("supervisor: BaseDelay must be positive")
	case c.MaxDelay < c.BaseDelay:
		return errors.New("supervisor: MaxDelay must not be below BaseDelay")
	case c.Jitter < 0:
		return errors.New("supervisor: Jitter must not be negative")
	case c.HeartbeatInterval <= 0:
		return errors.New("supervisor: HeartbeatInterval must be positive")
	}
	return nil
}

const probeQuery = "SELECT 1"

var errShuttingDown = errors.New("supervisor is shutting down")

type Supervisor struct {
	db  Database
	cfg Config
	log logging.Logger

	state        atomic.Int32
	reconnecting atomic.Bool
	shuttingDown atomic.Bool

	// ctx bounds the heartbeat and reconnect goroutines; Shutdown cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	wg        sync.WaitGroup
	hooks     []Hooks
	heartbeat bool

	jitter func(time.Duration) time.Duration
}

func New(db Database, cfg Config, log logging.Logger) (*Supervisor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Supervisor{
		db:     db,
		cfg:    cfg,
		log:    log.With("module", "supervisor"),
		ctx:    ctx,
		cancel: cancel,
		jitter: randomJitter,
	}, nil
}

// AddHooks registers event callbacks. Call it before Connect.
func (s *Supervisor) AddHooks(h Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, h)
}

func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Ready reports whether requests can be served against the database.
func (s *Supervisor) Ready() bool {
	return s.State() == Connected
}

// Connect runs the startup connection sequence. Running out of attempts
// returns an error wrapping common.ErrPersistenceUnavailable; the process
// must not serve traffic in that case.
func (s *Supervisor) Connect(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	s.setState(Connecting)

	attempts, err := s.connectWithRetry(ctx)
	if err != nil {
		s.setState(Disconnected)
		s.log.Error(ctx, "database unreachable, giving up", "attempts", attempts, "error", err)
		return fmt.Errorf("%w after %d attempt(s): %w", common.ErrPersistenceUnavailable, attempts, err)
	}

	s.setState(Connected)
	return nil
}

func (s *Supervisor) connectWithRetry(ctx context.Context) (int, error) {
	attempt := 0

	err := retry.Do(ctx, newBackoff(s.cfg, s.jitter), func(ctx context.Context) error {
		if s.shuttingDown.Load() {
			return errShuttingDown
		}

		attempt++
		s.log.Info(ctx, "connecting to database", "attempt", attempt, "max_attempts", s.cfg.MaxRetries)

		err := s.db.PingContext(ctx)
		s.emit(func(h Hooks) {
			if h.ConnectAttempt != nil {
				h.ConnectAttempt(err)
			}
		})
		if err != nil {
			s.log.Error(ctx, "database connection attempt failed", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}

		s.log.Info(ctx, "database connected", "attempt", attempt)
		return nil
	})

	return attempt, err
}

// StartHeartbeat launches the periodic liveness probe. Calling it more than
// once, or after Shutdown, does nothing.
func (s *Supervisor) StartHeartbeat() {
	if !s.spawn(func() { s.heartbeatLoop() }, true) {
		return
	}
	s.log.Info(s.ctx, "heartbeat started", "interval", s.cfg.HeartbeatInterval.String())
}

func (s *Supervisor) heartbeatLoop() {
	t := time.NewTicker(s.cfg.HeartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			s.beat(s.ctx)
		}
	}
}

// beat runs one probe. Success is silent; failure hands off to a
// background reconnect unless one is already running.
func (s *Supervisor) beat(ctx context.Context) {
	if s.shuttingDown.Load() {
		return
	}

	if _, err := s.db.ExecContext(ctx, probeQuery); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Warn(ctx, "database heartbeat failed", "error", err)
		s.emit(func(h Hooks) {
			if h.HeartbeatFailed != nil {
				h.HeartbeatFailed(err)
			}
		})

		if s.reconnecting.Load() {
			s.log.Debug(ctx, "reconnect already in progress, dropping heartbeat failure")
			return
		}
		s.spawn(func() { _, _ = s.TryReconnect(s.ctx) }, false)
		return
	}

	if s.state.CompareAndSwap(int32(Disconnected), int32(Connected)) {
		s.notifyState(Disconnected, Connected)
		s.log.Info(ctx, "database reachable again")
	}
}

// TryReconnect runs one reconnection sequence. If another sequence is in
// flight, or shutdown has begun, it returns immediately with ran=false.
// A failed sequence leaves the supervisor Disconnected; the next heartbeat
// tries again.
func (s *Supervisor) TryReconnect(ctx context.Context) (ran bool, err error) {
	if s.shuttingDown.Load() {
		return false, nil
	}
	if !s.reconnecting.CompareAndSwap(false, true) {
		return false, nil
	}
	defer s.reconnecting.Store(false)

	s.setState(Reconnecting)
	s.log.Warn(ctx, "attempting to reconnect to database")

	_, err = s.connectWithRetry(ctx)
	s.emit(func(h Hooks) {
		if h.Reconnected != nil {
			h.Reconnected(err)
		}
	})

	if err != nil {
		if s.shuttingDown.Load() {
			return true, nil
		}
		s.log.Error(ctx, "database reconnect failed", "error", err)
		s.setState(Disconnected)
		return true, err
	}

	s.setState(Connected)
	s.log.Info(ctx, "database reconnected")
	return true, nil
}

// Shutdown stops the heartbeat, aborts any reconnect in flight, waits for
// supervisor goroutines (bounded by ctx) and closes the database. Only the
// first call does the work; later calls return nil at once.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	first := s.shuttingDown.CompareAndSwap(false, true)
	s.mu.Unlock()

	if !first {
		s.log.Debug(ctx, "shutdown already in progress, ignoring")
		return nil
	}

	s.forceState(ShuttingDown)
	s.log.Info(ctx, "shutting down connection supervisor")

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn(ctx, "supervisor goroutines did not stop in time", "error", ctx.Err())
	}

	err := s.db.Close()
	s.forceState(Disconnected)

	if err != nil {
		s.log.Error(ctx, "error closing database", "error", err)
		return fmt.Errorf("close database: %w", err)
	}

	s.log.Info(ctx, "database disconnected cleanly")
	return nil
}

// spawn starts fn on a tracked goroutine unless shutdown has begun. With
// once set, fn is the heartbeat and may only start a single time.
func (s *Supervisor) spawn(fn func(), once bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shuttingDown.Load() {
		return false
	}
	if once {
		if s.heartbeat {
			return false
		}
		s.heartbeat = true
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
	return true
}

// setState moves to `to` unless shutdown has begun; from then on only
// forceState may change the state. The state itself is checked inside the
// CAS loop because the flag and the swap are not one atomic step.
func (s *Supervisor) setState(to State) {
	for {
		if s.shuttingDown.Load() {
			return
		}
		from := s.state.Load()
		if State(from) == to || State(from) == ShuttingDown {
			return
		}
		if s.state.CompareAndSwap(from, int32(to)) {
			s.notifyState(State(from), to)
			return
		}
	}
}

func (s *Supervisor) forceState(to State) {
	from := State(s.state.Swap(int32(to)))
	if from != to {
		s.notifyState(from, to)
	}
}

func (s *Supervisor) notifyState(from, to State) {
	s.emit(func(h Hooks) {
		if h.StateChanged != nil {
			h.StateChanged(from, to)
		}
	})
}

func (s *Supervisor) emit(fn func(Hooks)) {
	s.mu.Lock()
	hooks := make([]Hooks, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	for _, h := range hooks {
		fn(h)
	}
}
