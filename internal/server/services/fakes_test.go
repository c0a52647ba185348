package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/peny/internal/common"
	"github.com/dmitrijs2005/peny/internal/dbx"
	"github.com/dmitrijs2005/peny/internal/logging"
	"github.com/dmitrijs2005/peny/internal/server/auth"
	"github.com/dmitrijs2005/peny/internal/server/models"
	"github.com/dmitrijs2005/peny/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/peny/internal/server/repositories/credentials"
)

// memStore backs both fake repositories. Writes are not transactional;
// sqlmock only checks that the service opens and closes a transaction.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]models.Account
	creds    map[string]models.Credential
	seq      int

	failAccounts    error
	failCredCreate  error
	failClear       error
	beforeRotate    func()
}

func newMemStore() *memStore {
	return &memStore{
		accounts: map[string]models.Account{},
		creds:    map[string]models.Credential{},
	}
}

type fakeAccounts struct{ s *memStore }

func (f fakeAccounts) Create(_ context.Context, a *models.Account) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failAccounts != nil {
		return f.s.failAccounts
	}
	for _, e := range f.s.accounts {
		if e.Email == a.Email {
			return common.ErrorConflict
		}
	}
	f.s.seq++
	a.CreatedAt = time.Unix(int64(f.s.seq), 0).UTC()
	a.UpdatedAt = a.CreatedAt
	a.UpdatedBy = a.CreatedBy
	f.s.accounts[a.ID] = *a
	return nil
}

func (f fakeAccounts) GetByID(_ context.Context, id string) (*models.Account, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failAccounts != nil {
		return nil, f.s.failAccounts
	}
	a, ok := f.s.accounts[id]
	if !ok || a.IsDeleted {
		return nil, common.ErrorNotFound
	}
	return &a, nil
}

func (f fakeAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failAccounts != nil {
		return nil, f.s.failAccounts
	}
	for _, a := range f.s.accounts {
		if a.Email == email && !a.IsDeleted {
			return &a, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeAccounts) EmailTaken(_ context.Context, email, exceptID string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failAccounts != nil {
		return false, f.s.failAccounts
	}
	for _, a := range f.s.accounts {
		if a.Email == email && a.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeAccounts) List(_ context.Context, filter models.AccountFilter) ([]models.Account, int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failAccounts != nil {
		return nil, 0, f.s.failAccounts
	}
	var all []models.Account
	for _, a := range f.s.accounts {
		if a.IsDeleted {
			continue
		}
		if filter.Role != "" && a.Role != filter.Role {
			continue
		}
		q := strings.ToLower(filter.Search)
		if q != "" && !strings.Contains(strings.ToLower(a.Name), q) && !strings.Contains(strings.ToLower(a.Email), q) {
			continue
		}
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	start := min(filter.Offset(), len(all))
	end := min(start+filter.Size, len(all))
	return all[start:end], len(all), nil
}

func (f fakeAccounts) Update(_ context.Context, id string, p models.AccountPatch, updatedBy string) (*models.Account, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	a, ok := f.s.accounts[id]
	if !ok || a.IsDeleted {
		return nil, common.ErrorNotFound
	}
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Email != nil {
		a.Email = *p.Email
	}
	if p.Role != nil {
		a.Role = *p.Role
	}
	if p.PhotoURL != nil {
		if *p.PhotoURL == "" {
			a.PhotoURL = nil
		} else {
			photo := *p.PhotoURL
			a.PhotoURL = &photo
		}
	}
	a.UpdatedBy = &updatedBy
	f.s.accounts[id] = a
	return &a, nil
}

func (f fakeAccounts) SoftDelete(_ context.Context, id, deletedBy string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	a, ok := f.s.accounts[id]
	if !ok || a.IsDeleted {
		return common.ErrorNotFound
	}
	a.IsDeleted = true
	a.UpdatedBy = &deletedBy
	f.s.accounts[id] = a
	return nil
}

type fakeCredentials struct{ s *memStore }

func (f fakeCredentials) Create(_ context.Context, c *models.Credential) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failCredCreate != nil {
		return f.s.failCredCreate
	}
	f.s.creds[c.AccountID] = *c
	return nil
}

func (f fakeCredentials) GetByAccountID(_ context.Context, accountID string) (*models.Credential, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c, ok := f.s.creds[accountID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &c, nil
}

func (f fakeCredentials) FindActiveByRefreshToken(_ context.Context, token string, now time.Time) (*models.Credential, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, c := range f.s.creds {
		if c.RefreshToken != nil && *c.RefreshToken == token && c.Active(now) {
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeCredentials) SetRefreshToken(_ context.Context, accountID, token string, expiry time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c, ok := f.s.creds[accountID]
	if !ok {
		return common.ErrorNotFound
	}
	c.RefreshToken, c.TokenExpiry = &token, &expiry
	f.s.creds[accountID] = c
	return nil
}

func (f fakeCredentials) RotateRefreshToken(_ context.Context, accountID, oldToken, newToken string, expiry, now time.Time) error {
	if f.s.beforeRotate != nil {
		f.s.beforeRotate()
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c, ok := f.s.creds[accountID]
	if !ok || c.RefreshToken == nil || *c.RefreshToken != oldToken || !c.Active(now) {
		return common.ErrorNotFound
	}
	c.RefreshToken, c.TokenExpiry = &newToken, &expiry
	f.s.creds[accountID] = c
	return nil
}

func (f fakeCredentials) ClearRefreshToken(_ context.Context, token string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failClear != nil {
		return f.s.failClear
	}
	for id, c := range f.s.creds {
		if c.RefreshToken != nil && *c.RefreshToken == token {
			c.RefreshToken, c.TokenExpiry = nil, nil
			f.s.creds[id] = c
		}
	}
	return nil
}

func (f fakeCredentials) ClearByAccountID(_ context.Context, accountID string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if c, ok := f.s.creds[accountID]; ok {
		c.RefreshToken, c.TokenExpiry = nil, nil
		f.s.creds[accountID] = c
	}
	return nil
}

type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Accounts(dbx.DBTX) accounts.Repository { return fakeAccounts{m.s} }
func (m *fakeRepoManager) Credentials(dbx.DBTX) credentials.Repository { return fakeCredentials{m.s} }

// clock is a settable time source shared by the issuer and the service.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	store    *memStore
	mock     sqlmock.Sqlmock
	clock    *clock
	issuer   *auth.Issuer
	sessions *SessionService
	accounts *AccountService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clk := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	issuer, err := auth.NewIssuer("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour, auth.WithClock(clk.Now))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	store := newMemStore()
	rm := &fakeRepoManager{s: store}
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	sessions := NewSessionService(db, rm, issuer, hasher, logging.Nop())
	sessions.now = clk.Now

	return &fixture{
		store:    store,
		mock:     mock,
		clock:    clk,
		issuer:   issuer,
		sessions: sessions,
		accounts: NewAccountService(db, rm, hasher, logging.Nop()),
	}
}

func (f *fixture) expectTx() {
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
}
