package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	user, err := CreateUser("alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Name)
	assert.Equal(t, STATUS_ACTIVE, user.Status)
	assert.NotEqual(t, "secret123", user.Password)
	assert.True(t, CheckPasswordHash("secret123", user.Password))
	assert.False(t, CheckPasswordHash("wrong", user.Password))
}

func TestCreateUserValidation(t *testing.T) {
	_, err := CreateUser("al", "alice@example.com", "secret123")
	assert.Error(t, err, "name too short")

	_, err = CreateUser("alice", "not-an-email", "secret123")
	assert.Error(t, err, "invalid email")

	_, err = CreateUser("alice", "alice@example.com", "short")
	assert.Error(t, err, "password too short")
}

func TestGenerateAPIKey(t *testing.T) {
	key, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "pfx_"))
	assert.Len(t, key, 4+64)

	other, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	// Lookups use the hash, never the plaintext key.
	hash := HashAPIKey(key)
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashAPIKey(key))
	assert.NotEqual(t, hash, HashAPIKey(other))
}
