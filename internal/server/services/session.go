// Package services contains server-side business logic. SessionService owns
// the session lifecycle: register, login, refresh with strict rotation,
// logout and profile lookup.
package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/peny/internal/common"
	"github.com/dmitrijs2005/peny/internal/dbx"
	"github.com/dmitrijs2005/peny/internal/logging"
	"github.com/dmitrijs2005/peny/internal/server/auth"
	"github.com/dmitrijs2005/peny/internal/server/models"
	"github.com/dmitrijs2005/peny/internal/server/repositories/repomanager"
)

// TokenIssuer mints and verifies token pairs.
type TokenIssuer interface {
	Issue(accountID string) (auth.TokenPair, error)
	Verify(token string, kind auth.Kind) (string, error)
}

// AuthResult is returned by register, login and refresh.
type AuthResult struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	User         models.PublicAccount `json:"user"`
}

type Message struct {
	Message string `json:"message"`
}

// RegisterInput is an already validated registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
	PhotoURL *string
}

type SessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      TokenIssuer
	hasher      auth.Hasher
	log         logging.Logger
	now         func() time.Time

	// dummyDigest is checked against when the account does not exist, so a
	// failed login costs the same either way.
	dummyDigest func() string
}

// fallbackDummyDigest is a cost-10 bcrypt digest of a throwaway password.
const fallbackDummyDigest = "$2a$10$XajjQvNhvvRt5GSeFk1xFeyqRrsxkhBkUiQeg0dt.wU1qD4aFDcga"

func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, issuer TokenIssuer, hasher auth.Hasher, log logging.Logger) *SessionService {
	s := &SessionService{
		db:          db,
		repomanager: m,
		issuer:      issuer,
		hasher:      hasher,
		log:         log.With("module", "session"),
		now:         time.Now,
	}
	s.dummyDigest = sync.OnceValue(func() string {
		d, err := hasher.Hash(uuid.NewString())
		if err != nil {
			s.log.Error(context.Background(), "dummy digest, using fallback", "error", err)
			return fallbackDummyDigest
		}
		return d
	})
	return s
}

// Register creates the account and its credential record in one
// transaction and starts a session for it. Any existing row with the same
// email, soft-deleted or not, yields common.ErrorConflict.
func (s *SessionService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	taken, err := s.repomanager.Accounts(s.db).EmailTaken(ctx, in.Email, "")
	if err != nil {
		s.log.Error(ctx, "register: email lookup failed", "error", err)
		return nil, common.ErrorInternal
	}
	if taken {
		return nil, common.ErrorConflict
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.log.Error(ctx, "register: hash failed", "error", err)
		return nil, common.ErrorInternal
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

	pair, err := s.issuer.Issue(account.ID)
	if err != nil {
		s.log.Error(ctx, "register: issue tokens failed", "error", err)
		return nil, common.ErrorInternal
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Accounts(tx).Create(ctx, account); err != nil {
			return err
		}
		return s.repomanager.Credentials(tx).Create(ctx, &models.Credential{
			AccountID:    account.ID,
			PasswordHash: digest,
			RefreshToken: &pair.RefreshToken,
			TokenExpiry:  &pair.RefreshExpiresAt,
		})
	})
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, common.ErrorConflict
		}
		s.log.Error(ctx, "register: transaction failed", "error", err)
		return nil, common.ErrorInternal
	}

	s.log.Info(ctx, "account registered", "account_id", account.ID)
	return s.result(pair, account), nil
}

// Login checks the password and starts a new session, replacing any
// refresh token the account held before. Unknown email, soft-deleted
// account and wrong password all give common.ErrorUnauthorized.
func (s *SessionService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	account, cred, err := s.lookupCredentials(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(password, s.dummyDigest())
			return nil, common.ErrorUnauthorized
		}
		s.log.Error(ctx, "login: lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	if !s.hasher.Verify(password, cred.PasswordHash) {
		s.log.Debug(ctx, "login: password mismatch", "account_id", account.ID)
		return nil, common.ErrorUnauthorized
	}

	pair, err := s.issuer.Issue(account.ID)
	if err != nil {
		s.log.Error(ctx, "login: issue tokens failed", "error", err)
		return nil, common.ErrorInternal
	}

	if err := s.repomanager.Credentials(s.db).SetRefreshToken(ctx, account.ID, pair.RefreshToken, pair.RefreshExpiresAt); err != nil {
		s.log.Error(ctx, "login: store refresh token failed", "error", err)
		return nil, common.ErrorInternal
	}

	return s.result(pair, account), nil
}

func (s *SessionService) lookupCredentials(ctx context.Context, email string) (*models.Account, *models.Credential, error) {
	account, err := s.repomanager.Accounts(s.db).GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	cred, err := s.repomanager.Credentials(s.db).GetByAccountID(ctx, account.ID)
	if err != nil {
		return nil, nil, err
	}
	return account, cred, nil
}

// Refresh exchanges a refresh token for a new pair. The old token is
// consumed: replaying it, even before it expires, gives
// common.ErrorUnauthorized.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	accountID, err := s.issuer.Verify(refreshToken, auth.KindRefresh)
	if err != nil {
		s.log.Debug(ctx, "refresh: token rejected", "reason", err)
		return nil, common.ErrorUnauthorized
	}

	now := s.now()

	cred, err := s.repomanager.Credentials(s.db).FindActiveByRefreshToken(ctx, refreshToken, now)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Debug(ctx, "refresh: token not stored or expired", "account_id", accountID)
			return nil, common.ErrorUnauthorized
		}
		s.log.Error(ctx, "refresh: lookup failed", "error", err)
		return nil, common.ErrorInternal
	}
	if cred.AccountID != accountID {
		s.log.Warn(ctx, "refresh: token subject does not match stored owner", "account_id", accountID)
		return nil, common.ErrorUnauthorized
	}

	account, err := s.repomanager.Accounts(s.db).GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		s.log.Error(ctx, "refresh: account lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	pair, err := s.issuer.Issue(accountID)
	if err != nil {
		s.log.Error(ctx, "refresh: issue tokens failed", "error", err)
		return nil, common.ErrorInternal
	}

	err = s.repomanager.Credentials(s.db).RotateRefreshToken(ctx, accountID, refreshToken, pair.RefreshToken, pair.RefreshExpiresAt, now)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Debug(ctx, "refresh: token rotated concurrently", "account_id", accountID)
			return nil, common.ErrorUnauthorized
		}
		s.log.Error(ctx, "refresh: rotate failed", "error", err)
		return nil, common.ErrorInternal
	}

	return s.result(pair, account), nil
}

// Logout forgets the refresh token wherever it is stored. It succeeds
// whether or not the token matched anything.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) (*Message, error) {
	if refreshToken != "" {
		if err := s.repomanager.Credentials(s.db).ClearRefreshToken(ctx, refreshToken); err != nil {
			s.log.Error(ctx, "logout: clear refresh token failed", "error", err)
			return nil, common.ErrorInternal
		}
	}
	return &Message{Message: "Logged out successfully"}, nil
}

// GetProfile returns the public fields of an active account. A missing or
// soft-deleted account is common.ErrorUnauthorized since the caller's token
// no longer names a valid identity.
func (s *SessionService) GetProfile(ctx context.Context, accountID string) (*models.PublicAccount, error) {
	account, err := s.repomanager.Accounts(s.db).GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		s.log.Error(ctx, "profile: lookup failed", "error", err)
		return nil, common.ErrorInternal
	}
	p := account.Public()
	return &p, nil
}

// Authenticate resolves a bearer access token to an account id.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (string, error) {
	accountID, err := s.issuer.Verify(accessToken, auth.KindAccess)
	if err != nil {
		s.log.Debug(ctx, "access token rejected", "reason", err)
		return "", common.ErrorUnauthorized
	}
	return accountID, nil
}

func (s *SessionService) result(pair auth.TokenPair, account *models.Account) *AuthResult {
	return &AuthResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         account.Public(),
	}
}
