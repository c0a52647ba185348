package credentials

import (
	"context"
	"time"

	"github.com/dmitrijs2005/peny/internal/server/models"
)

// Repository is the credential store: one auth record per account holding
// the password digest and the single currently valid refresh token.
type Repository interface {
	Create(ctx context.Context, c *models.Credential) error
	GetByAccountID(ctx context.Context, accountID string) (*models.Credential, error)
	// FindActiveByRefreshToken matches the exact stored token value whose
	// expiry is after now.
	FindActiveByRefreshToken(ctx context.Context, token string, now time.Time) (*models.Credential, error)
	// SetRefreshToken replaces whatever token the account held.
	SetRefreshToken(ctx context.Context, accountID, token string, expiry time.Time) error
	// RotateRefreshToken swaps oldToken for newToken only if oldToken is
	// still the stored, unexpired value. ErrorNotFound means it was not.
	RotateRefreshToken(ctx context.Context, accountID, oldToken, newToken string, expiry, now time.Time) error
	// ClearRefreshToken drops the token wherever it is stored. Unknown tokens
	// are not an error.
	ClearRefreshToken(ctx context.Context, token string) error
	ClearByAccountID(ctx context.Context, accountID string) error
}
