package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// setupDB opens a private in-memory SQLite with an accounts/credentials
// pair shaped like the real schema.
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE accounts (id TEXT PRIMARY KEY, email TEXT NOT NULL UNIQUE);
		CREATE TABLE credentials (account_id TEXT PRIMARY KEY REFERENCES accounts(id), refresh_token TEXT);`)
	require.NoError(t, err)
	return db
}

func count(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func createAccount(ctx context.Context, tx DBTX, id, email string) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO accounts (id, email) VALUES (?, ?)`, id, email); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO credentials (account_id, refresh_token) VALUES (?, ?)`, id, "rt-"+id)
	return err
}

func TestWithTx_CommitsAccountAndCredential(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return createAccount(ctx, tx, "a1", "jane@example.com")
	})
	require.NoError(t, err)
	require.Equal(t, 1, count(t, db, "accounts"))
	require.Equal(t, 1, count(t, db, "credentials"))
}

func TestWithTx_FailedSecondInsertLeavesNoAccount(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	err := WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO accounts (id, email) VALUES ('a1', 'jane@example.com')`); err != nil {
			return err
		}
		return errors.New("credential insert failed")
	})
	require.EqualError(t, err, "credential insert failed")
	require.Equal(t, 0, count(t, db, "accounts"))

	require.NoError(t, WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		return createAccount(ctx, tx, "a1", "jane@example.com")
	}))
	err = WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		return createAccount(ctx, tx, "a2", "jane@example.com")
	})
	require.Error(t, err)
	require.Equal(t, 1, count(t, db, "accounts"))
	require.Equal(t, 1, count(t, db, "credentials"))
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := setupDB(t)

	defer func() {
		require.NotNil(t, recover(), "panic must propagate")
		require.Equal(t, 0, count(t, db, "accounts"))
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO accounts (id, email) VALUES ('a1', 'jane@example.com')`)
		require.NoError(t, err)
		panic("kaput")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(context.Context, DBTX) error {
		called = true
		return nil
	})
	require.Error(t, err)
	require.False(t, called)
}

func TestMustAffect_RefreshTokenSwap(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	require.NoError(t, WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		return createAccount(ctx, tx, "a1", "jane@example.com")
	}))

	swap := func(oldToken, newToken string) error {
		res, err := db.ExecContext(ctx,
			`UPDATE credentials SET refresh_token = ? WHERE account_id = 'a1' AND refresh_token = ?`, newToken, oldToken)
		require.NoError(t, err)
		return MustAffect(res)
	}

	require.NoError(t, swap("rt-a1", "rt-2"))
	require.ErrorIs(t, swap("rt-a1", "rt-3"), ErrNoRowsAffected)
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"}

	require.True(t, IsUniqueViolation(dup))
	require.True(t, IsUniqueViolation(fmt.Errorf("db error: %w", dup)))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, IsUniqueViolation(errors.New("boom")))
	require.False(t, IsUniqueViolation(nil))
}

func TestIsInvalidText(t *testing.T) {
	bad := &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "x"`}

	require.True(t, IsInvalidText(bad))
	require.True(t, IsInvalidText(fmt.Errorf("db error: %w", bad)))
	require.False(t, IsInvalidText(&pgconn.PgError{Code: "23505"}))
	require.False(t, IsInvalidText(errors.New("boom")))
}
