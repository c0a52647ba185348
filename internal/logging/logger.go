// Package logging is the structured logger every Peny component writes to.
// The only implementation wraps log/slog; tests use Nop.
package logging

import "context"

// Logger takes a message plus alternating key/value pairs:
//
//	log.Info(ctx, "db.connected", "attempt", 2)
//
// The context is passed through to the handler so request-scoped values
// can be attached there.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a logger that adds args to every record.
	With(args ...any) Logger
}
