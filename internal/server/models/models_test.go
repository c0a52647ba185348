package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicAccount_MissingPhotoIsNull(t *testing.T) {
	a := &Account{ID: "1", Name: "Alice", Email: "a@x.com", Role: RoleSecretary}

	b, err := json.Marshal(a.Public())
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","name":"Alice","email":"a@x.com","role":"SECRETARY","photoUrl":null}`, string(b))
}

func TestCredential_Active(t *testing.T) {
	now := time.Now()
	tok := "t"
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	assert.True(t, (&Credential{RefreshToken: &tok, TokenExpiry: &future}).Active(now))
	assert.False(t, (&Credential{RefreshToken: &tok, TokenExpiry: &past}).Active(now))
	assert.False(t, (&Credential{TokenExpiry: &future}).Active(now))
	assert.False(t, (&Credential{RefreshToken: &tok}).Active(now))
}

func TestNewPage(t *testing.T) {
	p := NewPage([]int{1, 2}, 2, 2, 5)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrev)

	empty := NewPage[int](nil, 1, 10, 0)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNext)
	assert.False(t, empty.HasPrev)
}
