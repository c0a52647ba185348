// Package auth mints and verifies the signed access/refresh token pair and
// hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/peny/internal/common"
)

// Kind tells access and refresh tokens apart. Each kind has its own secret.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims carries the account id as subject. ID (jti) makes every token
// unique even when two are minted within the same second.
type Claims struct {
	jwt.RegisteredClaims
	Type Kind `json:"typ"`
}

type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

type IssuerOption func(*Issuer)

// WithClock overrides the time source used for iat/exp and verification.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, opts ...IssuerOption) (*Issuer, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}

	i := &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
	for _, o := range opts {
		o(i)
	}
	return i, nil
}

// Issue signs a fresh access/refresh pair for accountID.
// RefreshExpiresAt equals the refresh token's exp claim.
func (i *Issuer) Issue(accountID string) (TokenPair, error) {
	now := i.now()

	access, _, err := i.sign(accountID, KindAccess, now)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, exp, err := i.sign(accountID, KindRefresh, now)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh, RefreshExpiresAt: exp}, nil
}

func (i *Issuer) sign(accountID string, kind Kind, now time.Time) (string, time.Time, error) {
	secret, ttl := i.params(kind)
	exp := jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
		Type: kind,
	})

	s, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return s, exp.Time, nil
}

// Verify checks signature, expiry and kind, and returns the subject.
// Every failure wraps common.ErrInvalidToken; the wrapped text is meant for
// logs only.
func (i *Issuer) Verify(tokenString string, kind Kind) (string, error) {
	secret, _ := i.params(kind)
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if claims.Type != kind {
		return "", fmt.Errorf("%w: expected %s token, got %q", common.ErrInvalidToken, kind, claims.Type)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", common.ErrInvalidToken)
	}

	return claims.Subject, nil
}

func (i *Issuer) params(kind Kind) ([]byte, time.Duration) {
	if kind == KindRefresh {
		return i.refreshSecret, i.refreshTTL
	}
	return i.accessSecret, i.accessTTL
}

func (i *Issuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }
