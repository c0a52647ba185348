// Package models holds the server-side domain types shared by repositories,
// services and the HTTP layer.
package models

import "time"

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleSecretary Role = "SECRETARY"
)

// DefaultRole is assigned when a registration does not name one.
const DefaultRole = RoleSecretary

// Roles lists every assignable role.
var Roles = []Role{RoleAdmin, RoleSecretary}

// Account is a stored identity. Accounts are never removed; IsDeleted marks
// them inactive and every normal read skips them.
type Account struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	PhotoURL  *string
	IsDeleted bool
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy *string
	UpdatedBy *string
}

// PublicAccount is the outward view of an Account. Secrets never appear here.
type PublicAccount struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	PhotoURL  *string    `json:"photoUrl"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Public returns the profile fields only.
func (a *Account) Public() PublicAccount {
	return PublicAccount{
		ID:       a.ID,
		Name:     a.Name,
		Email:    a.Email,
		Role:     a.Role,
		PhotoURL: a.PhotoURL,
	}
}

// PublicWithTimestamps is Public plus audit times, used by admin listings.
func (a *Account) PublicWithTimestamps() PublicAccount {
	p := a.Public()
	created, updated := a.CreatedAt, a.UpdatedAt
	p.CreatedAt = &created
	p.UpdatedAt = &updated
	return p
}

// AccountPatch lists the fields an update may change. Nil leaves a field as
// is. An empty PhotoURL clears the photo.
type AccountPatch struct {
	Name     *string
	Email    *string
	Role     *Role
	PhotoURL *string
}

func (p AccountPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Role == nil && p.PhotoURL == nil
}

type AccountFilter struct {
	Search string
	Role   Role
	Page   int
	Size   int
}

func (f AccountFilter) Offset() int {
	return (f.Page - 1) * f.Size
}
