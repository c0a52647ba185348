// Package accounts persists Account rows in PostgreSQL.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/peny/internal/common"
	"github.com/dmitrijs2005/peny/internal/dbx"
	"github.com/dmitrijs2005/peny/internal/server/models"
)

const columns = `id, name, email, role, photo_url, is_deleted, created_at, updated_at, created_by, updated_by`

type PostgresRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) error {
	query :=
		`INSERT INTO users (id, name, email, role, photo_url, created_by, updated_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.Name, a.Email, string(a.Role), nullString(a.PhotoURL), nullString(a.CreatedBy),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorConflict
		}
		return fmt.Errorf("db error: %w", err)
	}

	a.UpdatedBy = a.CreatedBy
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + columns + ` FROM users WHERE id = $1 AND is_deleted = false`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + columns + ` FROM users WHERE email = $1 AND is_deleted = false`
	return r.getOne(ctx, query, email)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidText(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) EmailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND ($2 = '' OR id::text <> $2))`

	var taken bool
	if err := r.db.QueryRowContext(ctx, query, email, exceptID).Scan(&taken); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return taken, nil
}

// List returns one page of active accounts, newest first, and the total
// number of matches.
func (r *PostgresRepository) List(ctx context.Context, f models.AccountFilter) ([]models.Account, int, error) {
	where := `is_deleted = false
		 AND ($1 = '' OR name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')
		 AND ($2 = '' OR role = $2)`
	search := escapeLike(f.Search)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM users WHERE `+where, search, string(f.Role)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	if total == 0 {
		return []models.Account{}, 0, nil
	}

	query := `SELECT ` + columns + ` FROM users WHERE ` + where + `
		 ORDER BY created_at DESC, id
		 LIMIT $3 OFFSET $4`

	rows, err := r.db.QueryContext(ctx, query, search, string(f.Role), f.Size, f.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	items := make([]models.Account, 0, f.Size)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("db error: %w", err)
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	return items, total, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, p models.AccountPatch, updatedBy string) (*models.Account, error) {
	var role *string
	if p.Role != nil {
		s := string(*p.Role)
		role = &s
	}

	query :=
		`UPDATE users SET
		   name       = COALESCE($2, name),
		   email      = COALESCE($3, email),
		   role       = COALESCE($4, role),
		   photo_url  = CASE WHEN $5::boolean THEN NULLIF($6, '') ELSE photo_url END,
		   updated_by = $7,
		   updated_at = $8
		 WHERE id = $1 AND is_deleted = false
		 RETURNING ` + columns

	a, err := scanAccount(r.db.QueryRowContext(ctx, query,
		id, nullString(p.Name), nullString(p.Email), nullString(role),
		p.PhotoURL != nil, nullString(p.PhotoURL), updatedBy, r.now(),
	))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows), dbx.IsInvalidText(err):
			return nil, common.ErrorNotFound
		case dbx.IsUniqueViolation(err):
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id, deletedBy string) error {
	query :=
		`UPDATE users SET is_deleted = true, updated_by = $2, updated_at = $3
		 WHERE id = $1 AND is_deleted = false`

	res, err := r.db.ExecContext(ctx, query, id, deletedBy, r.now())
	if err != nil {
		if dbx.IsInvalidText(err) {
			return common.ErrorNotFound
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

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*models.Account, error) {
	var (
		a                   models.Account
		role                string
		photo, created, upd sql.NullString
	)
	if err := s.Scan(&a.ID, &a.Name, &a.Email, &role, &photo, &a.IsDeleted, &a.CreatedAt, &a.UpdatedAt, &created, &upd); err != nil {
		return nil, err
	}
	a.Role = models.Role(role)
	a.PhotoURL = stringPtr(photo)
	a.CreatedBy = stringPtr(created)
	a.UpdatedBy = stringPtr(upd)
	return &a, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(strings.TrimSpace(s))
}
