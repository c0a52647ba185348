package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/peny/internal/common"
	"github.com/dmitrijs2005/peny/internal/dbx"
	"github.com/dmitrijs2005/peny/internal/logging"
	"github.com/dmitrijs2005/peny/internal/server/auth"
	"github.com/dmitrijs2005/peny/internal/server/models"
	"github.com/dmitrijs2005/peny/internal/server/repositories/repomanager"
)

// CreateAccountInput is an already validated administrative create.
type CreateAccountInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
	PhotoURL *string
}

// AccountService implements account administration. Accounts created here
// have no session until they log in.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      auth.Hasher
	log         logging.Logger
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, hasher auth.Hasher, log logging.Logger) *AccountService {
	return &AccountService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		log:         log.With("module", "accounts"),
	}
}

func (s *AccountService) Create(ctx context.Context, in CreateAccountInput, actorID string) (*models.PublicAccount, error) {
	taken, err := s.repomanager.Accounts(s.db).EmailTaken(ctx, in.Email, "")
	if err != nil {
		return nil, s.internal(ctx, "create: email lookup failed", err)
	}
	if taken {
		return nil, common.ErrorConflict
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.internal(ctx, "create: hash failed", err)
	}

	role := in.Role
	if role == "" {
		role = models.DefaultRole
	}

	account := &models.Account{
		ID:       uuid.NewString(),
		Name:     in.Name,
		Email:    in.Email,
		Role:     role,
		PhotoURL: in.PhotoURL,
	}
	if actorID != "" {
		account.CreatedBy = &actorID
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Accounts(tx).Create(ctx, account); err != nil {
			return err
		}
		return s.repomanager.Credentials(tx).Create(ctx, &models.Credential{
			AccountID:    account.ID,
			PasswordHash: digest,
		})
	})
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, common.ErrorConflict
		}
		return nil, s.internal(ctx, "create: transaction failed", err)
	}

	s.log.Info(ctx, "account created", "account_id", account.ID, "actor_id", actorID)
	p := account.PublicWithTimestamps()
	return &p, nil
}

func (s *AccountService) List(ctx context.Context, filter models.AccountFilter) (*models.Page[models.PublicAccount], error) {
	rows, total, err := s.repomanager.Accounts(s.db).List(ctx, filter)
	if err != nil {
		return nil, s.internal(ctx, "list failed", err)
	}

	items := make([]models.PublicAccount, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].PublicWithTimestamps())
	}

	page := models.NewPage(items, filter.Page, filter.Size, total)
	return &page, nil
}

func (s *AccountService) Get(ctx context.Context, id string) (*models.PublicAccount, error) {
	account, err := s.repomanager.Accounts(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "get failed", err)
	}
	p := account.PublicWithTimestamps()
	return &p, nil
}

// Update applies patch to an active account. A new email that belongs to
// any other account, soft-deleted or not, is common.ErrorConflict.
func (s *AccountService) Update(ctx context.Context, id string, patch models.AccountPatch, actorID string) (*models.PublicAccount, error) {
	repo := s.repomanager.Accounts(s.db)

	if patch.Email != nil {
		taken, err := repo.EmailTaken(ctx, *patch.Email, id)
		if err != nil {
			return nil, s.internal(ctx, "update: email lookup failed", err)
		}
		if taken {
			return nil, common.ErrorConflict
		}
	}

	account, err := repo.Update(ctx, id, patch, actorID)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			return nil, common.ErrorNotFound
		case errors.Is(err, common.ErrorConflict):
			return nil, common.ErrorConflict
		}
		return nil, s.internal(ctx, "update failed", err)
	}

	p := account.PublicWithTimestamps()
	return &p, nil
}

// Delete soft-deletes the account and ends its session.
func (s *AccountService) Delete(ctx context.Context, id, actorID string) (*Message, error) {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Accounts(tx).SoftDelete(ctx, id, actorID); err != nil {
			return err
		}
		return s.repomanager.Credentials(tx).ClearByAccountID(ctx, id)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "delete: transaction failed", err)
	}

	s.log.Info(ctx, "account deleted", "account_id", id, "actor_id", actorID)
	return &Message{Message: "User deleted successfully"}, nil
}

// EnsureAccount creates the account unless its email is already taken.
// created reports whether a row was written.
func (s *AccountService) EnsureAccount(ctx context.Context, in CreateAccountInput) (created bool, err error) {
	_, err = s.Create(ctx, in, "")
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, common.ErrorConflict):
		return false, nil
	}
	return false, err
}

func (s *AccountService) internal(ctx context.Context, msg string, err error) error {
	s.log.Error(ctx, msg, "error", err)
	return common.ErrorInternal
}
