package models

import "time"

// Credential is the auth record paired one-to-one with an Account.
// RefreshToken and TokenExpiry are either both set or both nil.
type Credential struct {
	AccountID    string
	PasswordHash string
	RefreshToken *string
	TokenExpiry  *time.Time
}

// Active reports whether the stored refresh token may still be exchanged.
func (c *Credential) Active(now time.Time) bool {
	return c.RefreshToken != nil && c.TokenExpiry != nil && now.Before(*c.TokenExpiry)
}
