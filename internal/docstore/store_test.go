package docstore

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"send2me-service/internal/client"
)

type testDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	return New(client.NewRedisClientFromAddr(mr.Addr()), 4)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)

	var doc testDoc
	found, err := s.Get(context.Background(), "nope", &doc)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSetAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "doc:1", testDoc{Name: "a", Count: 2}))

	var doc testDoc
	found, err := s.Get(ctx, "doc:1", &doc)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, testDoc{Name: "a", Count: 2}, doc)
}

func TestTransactionReadModifyWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "doc:1", testDoc{Name: "a", Count: 1}))

	err := s.RunTransaction(ctx, func(tx *Tx) error {
		var doc testDoc
		found, err := tx.Get("doc:1", &doc)
		if err != nil {
			return err
		}
		require.True(t, found)
		doc.Count++
		tx.Set("doc:1", doc)
		return nil
	}, "doc:1")
	require.NoError(t, err)

	var doc testDoc
	_, err = s.Get(ctx, "doc:1", &doc)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Count)
}

func TestTransactionAbortWritesNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "doc:1", testDoc{Name: "a"}))

	boom := errors.New("boom")
	err := s.RunTransaction(ctx, func(tx *Tx) error {
		tx.Set("doc:1", testDoc{Name: "changed"})
		return boom
	}, "doc:1")
	require.ErrorIs(t, err, boom)

	var doc testDoc
	_, err = s.Get(ctx, "doc:1", &doc)
	require.NoError(t, err)
	assert.Equal(t, "a", doc.Name, "aborted transaction must not write")
}

func TestTransactionMultipleKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.RunTransaction(ctx, func(tx *Tx) error {
		tx.Set("doc:a", testDoc{Name: "a"})
		tx.Set("doc:b", testDoc{Name: "b"})
		return nil
	}, "doc:a", "doc:b")
	require.NoError(t, err)

	var a, b testDoc
	foundA, err := s.Get(ctx, "doc:a", &a)
	require.NoError(t, err)
	foundB, err := s.Get(ctx, "doc:b", &b)
	require.NoError(t, err)
	assert.True(t, foundA)
	assert.True(t, foundB)
}

func TestTransactionDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "doc:1", testDoc{Name: "a"}))
	err := s.RunTransaction(ctx, func(tx *Tx) error {
		tx.Delete("doc:1")
		return nil
	}, "doc:1")
	require.NoError(t, err)

	var doc testDoc
	found, err := s.Get(ctx, "doc:1", &doc)
	require.NoError(t, err)
	assert.False(t, found)
}
