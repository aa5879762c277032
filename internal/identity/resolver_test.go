package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTResolverRequiresSecret(t *testing.T) {
	_, err := NewJWTResolver("")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestResolveEmptyTokenIsAnonymous(t *testing.T) {
	r, err := NewJWTResolver("secret")
	require.NoError(t, err)

	principal, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, principal)
}

func TestResolveValidToken(t *testing.T) {
	r, err := NewJWTResolver("secret")
	require.NoError(t, err)

	token, err := SignTestToken("secret", "uid-1", "alice@example.com", "Alice Smith")
	require.NoError(t, err)

	principal, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	require.NotNil(t, principal)
	assert.Equal(t, "uid-1", principal.UID)
	assert.Equal(t, "alice@example.com", principal.Email)
	assert.Equal(t, "Alice Smith", principal.DisplayName)
}

func TestResolveDisplayNameFallsBackToEmail(t *testing.T) {
	r, err := NewJWTResolver("secret")
	require.NoError(t, err)

	token, err := SignTestToken("secret", "uid-1", "bob@example.com", "")
	require.NoError(t, err)

	principal, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	require.NotNil(t, principal)
	assert.Equal(t, "bob", principal.DisplayName)
}

func TestResolveBadSignatureIsAnonymous(t *testing.T) {
	r, err := NewJWTResolver("secret")
	require.NoError(t, err)

	token, err := SignTestToken("other-secret", "uid-1", "", "")
	require.NoError(t, err)

	principal, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Nil(t, principal)
}

func TestResolveGarbageTokenIsAnonymous(t *testing.T) {
	r, err := NewJWTResolver("secret")
	require.NoError(t, err)

	principal, err := r.Resolve(context.Background(), "not-a-jwt")
	require.NoError(t, err)
	assert.Nil(t, principal)
}
