// Package docstore is a small transactional document store over Redis.
// Documents are JSON values at string keys. RunTransaction gives a callback
// read-then-write atomicity over the keys it touches, using WATCH-based
// optimistic concurrency: queued writes only commit if no watched key
// changed, and conflicting commits are retried up to a bound.
//
// This is the single shared primitive behind username reservations,
// rate-limit counters and browser-verification records; none of those
// mutate multi-field state outside of a transaction.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"send2me-service/internal/client"
	"send2me-service/internal/util"
)

// ErrConflict is returned when a transaction keeps colliding with concurrent
// writers and the retry budget is exhausted. Fatal for the request; callers
// do not add their own retry layer on top.
var ErrConflict = errors.New("document transaction conflict: retries exhausted")

const defaultTxRetries = 8

// Store is a keyed JSON document store.
type Store struct {
	redis      *client.RedisClient
	maxRetries int
}

// New wraps a Redis client. maxRetries bounds optimistic retries per
// transaction; zero selects the default.
func New(redisClient *client.RedisClient, maxRetries int) *Store {
	if maxRetries <= 0 {
		maxRetries = defaultTxRetries
	}
	return &Store{redis: redisClient, maxRetries: maxRetries}
}

// Get unmarshals the document at key into dest. Returns false when the
// document does not exist.
func (s *Store) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, found, err := s.redis.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("docstore get %s: %w", key, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("docstore decode %s: %w", key, err)
	}
	return true, nil
}

// Set writes the document at key unconditionally, outside any transaction.
func (s *Store) Set(ctx context.Context, key string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore encode %s: %w", key, err)
	}
	if err := s.redis.Set(ctx, key, data, 0); err != nil {
		return fmt.Errorf("docstore set %s: %w", key, err)
	}
	return nil
}

// Tx is the view handed to a transaction callback. Reads go through the
// watched connection; writes are staged and committed atomically when the
// callback returns nil.
type Tx struct {
	ctx    context.Context
	rtx    *redis.Tx
	writes []stagedWrite
}

type stagedWrite struct {
	key    string
	doc    interface{}
	delete bool
}

// Get reads the document at key within the transaction.
func (tx *Tx) Get(key string, dest interface{}) (bool, error) {
	raw, err := tx.rtx.Get(tx.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("docstore tx get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("docstore tx decode %s: %w", key, err)
	}
	return true, nil
}

// Set stages a full-document write.
func (tx *Tx) Set(key string, doc interface{}) {
	tx.writes = append(tx.writes, stagedWrite{key: key, doc: doc})
}

// Delete stages a document removal.
func (tx *Tx) Delete(key string) {
	tx.writes = append(tx.writes, stagedWrite{key: key, delete: true})
}

// RunTransaction executes fn with read-then-write atomicity over keys.
// A non-nil error from fn aborts the transaction with no writes. Conflicts
// with concurrent writers are retried up to the configured bound, after
// which ErrConflict is returned.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx *Tx) error, keys ...string) error {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.redis.Watch(ctx, func(rtx *redis.Tx) error {
			tx := &Tx{ctx: ctx, rtx: rtx}
			if err := fn(tx); err != nil {
				return err
			}
			if len(tx.writes) == 0 {
				return nil
			}

			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, w := range tx.writes {
					if w.delete {
						pipe.Del(ctx, w.key)
						continue
					}
					data, err := json.Marshal(w.doc)
					if err != nil {
						return fmt.Errorf("docstore encode %s: %w", w.key, err)
					}
					pipe.Set(ctx, w.key, data, 0)
				}
				return nil
			})
			return err
		}, keys...)

		if err == redis.TxFailedErr {
			util.Debug("docstore transaction conflict, retrying",
				util.Int("attempt", attempt+1),
				util.Strings("keys", keys))
			continue
		}
		return err
	}
	return ErrConflict
}
