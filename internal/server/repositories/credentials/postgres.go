// Package credentials persists auth records (password digest and refresh
// token state) in PostgreSQL.
package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/peny/internal/common"
	"github.com/dmitrijs2005/peny/internal/dbx"
	"github.com/dmitrijs2005/peny/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Credential) error {
	query :=
		`INSERT INTO user_auth (user_id, password_hash, refresh_token, token_expiry)
		 VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query, c.AccountID, c.PasswordHash, nullString(c.RefreshToken), nullTime(c.TokenExpiry))
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByAccountID(ctx context.Context, accountID string) (*models.Credential, error) {
	query :=
		`SELECT user_id, password_hash, refresh_token, token_expiry
		 FROM user_auth WHERE user_id = $1`

	return r.getOne(ctx, query, accountID)
}

func (r *PostgresRepository) FindActiveByRefreshToken(ctx context.Context, token string, now time.Time) (*models.Credential, error) {
	query :=
		`SELECT user_id, password_hash, refresh_token, token_expiry
		 FROM user_auth WHERE refresh_token = $1 AND token_expiry > $2`

	return r.getOne(ctx, query, token, now)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Credential, error) {
	var (
		c      models.Credential
		token  sql.NullString
		expiry sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&c.AccountID, &c.PasswordHash, &token, &expiry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if token.Valid {
		c.RefreshToken = &token.String
	}
	if expiry.Valid {
		c.TokenExpiry = &expiry.Time
	}
	return &c, nil
}

func (r *PostgresRepository) SetRefreshToken(ctx context.Context, accountID, token string, expiry time.Time) error {
	query :=
		`UPDATE user_auth SET refresh_token = $2, token_expiry = $3, updated_at = now()
		 WHERE user_id = $1`

	return r.execOne(ctx, query, accountID, token, expiry)
}

func (r *PostgresRepository) RotateRefreshToken(ctx context.Context, accountID, oldToken, newToken string, expiry, now time.Time) error {
	query :=
		`UPDATE user_auth SET refresh_token = $3, token_expiry = $4, updated_at = now()
		 WHERE user_id = $1 AND refresh_token = $2 AND token_expiry > $5`

	return r.execOne(ctx, query, accountID, oldToken, newToken, expiry, now)
}

func (r *PostgresRepository) ClearRefreshToken(ctx context.Context, token string) error {
	query :=
		`UPDATE user_auth SET refresh_token = NULL, token_expiry = NULL, updated_at = now()
		 WHERE refresh_token = $1`

	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ClearByAccountID(ctx context.Context, accountID string) error {
	query :=
		`UPDATE user_auth SET refresh_token = NULL, token_expiry = NULL, updated_at = now()
		 WHERE user_id = $1`

	if _, err := r.db.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// execOne runs a write that must touch exactly one row.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	if err := dbx.MustAffect(res); err != nil {
		if errors.Is(err, dbx.ErrNoRowsAffected) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p, Valid: true}
}
