package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"send2me-service/internal/client"
	"send2me-service/internal/docstore"
)

func newTestAccountStore(t *testing.T) *AccountStore {
	t.Helper()
	mr := miniredis.RunT(t)
	store := docstore.New(client.NewRedisClientFromAddr(mr.Addr()), 4)
	s := NewAccountStore(store)
	s.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestReserveUsernameAndLookup(t *testing.T) {
	s := newTestAccountStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReserveUsername(ctx, "uid-1", "alice", "alice@example.com"))

	account, err := s.GetAccountByUID(ctx, "uid-1")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "alice", account.Username)
	assert.Equal(t, "alice", account.LinkSlug)
	assert.Equal(t, "alice@example.com", account.Email)
	assert.True(t, account.AgreedToTOS)

	byName, err := s.GetAccountByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, "uid-1", byName.UID)
}

func TestReserveUsernameIdempotentForOwner(t *testing.T) {
	s := newTestAccountStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReserveUsername(ctx, "uid-1", "alice", "alice@example.com"))
	require.NoError(t, s.ReserveUsername(ctx, "uid-1", "alice", "alice@new.example.com"))

	account, err := s.GetAccountByUID(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "alice@new.example.com", account.Email, "re-reservation re-merges profile fields")
}

func TestReserveUsernameTakenByOtherAccount(t *testing.T) {
	s := newTestAccountStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReserveUsername(ctx, "uid-1", "alice", "alice@example.com"))
	err := s.ReserveUsername(ctx, "uid-2", "alice", "mallory@example.com")
	require.ErrorIs(t, err, ErrUsernameTaken)

	// original mapping is unchanged and no profile was written for uid-2
	account, err := s.GetAccountByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "uid-1", account.UID)

	other, err := s.GetAccountByUID(ctx, "uid-2")
	require.NoError(t, err)
	assert.Nil(t, other, "failed reservation must not write the profile")
}

func TestGetAccountByUsernameMissing(t *testing.T) {
	s := newTestAccountStore(t)

	account, err := s.GetAccountByUsername(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, account)
}
