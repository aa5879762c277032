package scylla

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"send2me-service/internal/model"
)

// fakeMessageIter replays prepared rows through the same scan contract
// gocql.Iter exposes.
type fakeMessageIter struct {
	rows     []model.Message
	idx      int
	scans    int
	closeErr error
}

func (f *fakeMessageIter) Scan(dest ...interface{}) bool {
	if f.idx >= len(f.rows) {
		return false
	}
	f.scans++
	row := f.rows[f.idx]
	f.idx++

	*(dest[0].(*string)) = row.ID
	*(dest[1].(*string)) = row.ToUID
	*(dest[2].(*string)) = row.ToUsername
	*(dest[3].(*string)) = row.Text
	*(dest[4].(*bool)) = row.Anon
	*(dest[5].(*string)) = row.FromUID
	*(dest[6].(*string)) = row.FromUsername
	*(dest[7].(*string)) = row.FromEmail
	*(dest[8].(*string)) = row.FromGivenName
	*(dest[9].(*string)) = row.FromFamilyName
	*(dest[10].(*string)) = row.Meta.IPHash
	*(dest[11].(*string)) = row.Meta.UAHash
	*(dest[12].(*string)) = row.Meta.Country
	*(dest[13].(*string)) = row.Meta.Device
	*(dest[14].(*time.Time)) = row.CreatedAt
	return true
}

func (f *fakeMessageIter) Close() error { return f.closeErr }

func messageRow(id string, anon bool) model.Message {
	return model.Message{
		ID:         id,
		ToUID:      "uid-alice",
		ToUsername: "alice",
		Text:       "hello",
		Anon:       anon,
		CreatedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCollectMessagesFindsMatchesBeyondNewestRows(t *testing.T) {
	// the newest rows are all identified; the anonymous ones sit behind them
	rows := make([]model.Message, 0, 14)
	for i := 0; i < 8; i++ {
		rows = append(rows, messageRow(fmt.Sprintf("ident-%d", i), false))
	}
	for i := 0; i < 6; i++ {
		rows = append(rows, messageRow(fmt.Sprintf("anon-%d", i), true))
	}

	messages, err := collectMessages(&fakeMessageIter{rows: rows}, FilterAnon, 10)
	require.NoError(t, err)
	require.Len(t, messages, 6)
	for i, m := range messages {
		assert.Equal(t, fmt.Sprintf("anon-%d", i), m.ID)
		assert.True(t, m.Anon)
	}
}

func TestCollectMessagesLimitCountsMatchingRowsOnly(t *testing.T) {
	rows := make([]model.Message, 0, 12)
	for i := 0; i < 6; i++ {
		rows = append(rows, messageRow(fmt.Sprintf("ident-%d", i), false))
		rows = append(rows, messageRow(fmt.Sprintf("anon-%d", i), true))
	}

	messages, err := collectMessages(&fakeMessageIter{rows: rows}, FilterAnon, 4)
	require.NoError(t, err)
	require.Len(t, messages, 4)
	assert.Equal(t, "anon-0", messages[0].ID)
	assert.Equal(t, "anon-3", messages[3].ID)
}

func TestCollectMessagesStopsScanningAtLimit(t *testing.T) {
	rows := make([]model.Message, 0, 20)
	for i := 0; i < 20; i++ {
		rows = append(rows, messageRow(fmt.Sprintf("m-%d", i), true))
	}

	iter := &fakeMessageIter{rows: rows}
	messages, err := collectMessages(iter, FilterAll, 5)
	require.NoError(t, err)
	assert.Len(t, messages, 5)
	assert.Equal(t, 5, iter.scans, "remaining rows must not be fetched")
}

func TestCollectMessagesCloseError(t *testing.T) {
	iter := &fakeMessageIter{closeErr: gocql.ErrTimeoutNoResponse}
	_, err := collectMessages(iter, FilterAll, 10)
	require.ErrorIs(t, err, gocql.ErrTimeoutNoResponse)
}

func TestParseFilter(t *testing.T) {
	assert.Equal(t, FilterAnon, ParseFilter("anon"))
	assert.Equal(t, FilterIdentified, ParseFilter("identified"))
	assert.Equal(t, FilterAll, ParseFilter("all"))
	assert.Equal(t, FilterAll, ParseFilter(""))
	assert.Equal(t, FilterAll, ParseFilter("bogus"))
}

func TestBindInsertIsGoroutineLocal(t *testing.T) {
	repo := NewMessageRepository(&ScyllaClient{
		Prepared: &PreparedStatements{InsertMessage: &gocql.Query{}},
	})

	// concurrent saves must each bind their own copy of the shared
	// prepared statement; run under -race to catch a shared-values write
	var wg sync.WaitGroup
	queries := make([]*gocql.Query, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := messageRow(fmt.Sprintf("m-%d", i), true)
			queries[i] = repo.bindInsert(context.Background(), &msg)
		}(i)
	}
	wg.Wait()

	for i, q := range queries {
		require.NotNil(t, q)
		assert.NotSame(t, repo.client.Prepared.InsertMessage, q)
		for j := i + 1; j < len(queries); j++ {
			assert.NotSame(t, q, queries[j])
		}
	}
}
