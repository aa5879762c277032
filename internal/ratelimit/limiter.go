// Package ratelimit implements a fixed-window counter over the transactional
// document store. Counters live alongside the other shared documents, never
// in process memory, so concurrent server instances see the same quota.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"send2me-service/internal/docstore"
	"send2me-service/internal/model"
)

const keyPrefix = "rate_limits:"

// Result reports one increment attempt.
type Result struct {
	Allowed   bool
	Remaining int
}

// Limiter mutates fixed-window counters through docstore transactions.
type Limiter struct {
	store *docstore.Store
	now   func() time.Time
}

// NewLimiter builds a limiter over the shared document store.
func NewLimiter(store *docstore.Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// TargetKey scopes a counter to one recipient and one sender hash.
func TargetKey(recipientUID, ipHash string) string {
	return fmt.Sprintf("target:%s:%s", recipientUID, ipHash)
}

// GlobalKey scopes a counter to one sender hash across all recipients.
func GlobalKey(ipHash string) string {
	return fmt.Sprintf("global:%s", ipHash)
}

// Increment applies one attempt against the counter for key within a single
// transaction:
//
//   - no counter yet: start a window at count 1
//   - window expired: restart at count 1 (a reset, not a rollover; a burst
//     right after expiry is allowed, which is fixed-window behavior)
//   - window active and count at limit: deny without writing, so rejected
//     attempts neither consume quota nor extend the window
//   - otherwise: increment
func (l *Limiter) Increment(ctx context.Context, key string, window time.Duration, limit int) (Result, error) {
	docKey := keyPrefix + key
	var result Result

	err := l.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		nowMs := l.now().UnixMilli()

		var counter model.RateLimitCounter
		found, err := tx.Get(docKey, &counter)
		if err != nil {
			return err
		}

		if !found || nowMs-counter.WindowStartedAt > window.Milliseconds() {
			tx.Set(docKey, model.RateLimitCounter{
				Count:           1,
				WindowStartedAt: nowMs,
				UpdatedAt:       l.now().UTC(),
			})
			result = Result{Allowed: true, Remaining: limit - 1}
			return nil
		}

		if counter.Count >= limit {
			result = Result{Allowed: false, Remaining: 0}
			return nil
		}

		counter.Count++
		counter.UpdatedAt = l.now().UTC()
		tx.Set(docKey, counter)
		result = Result{Allowed: true, Remaining: limit - counter.Count}
		return nil
	}, docKey)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit increment %s: %w", key, err)
	}
	return result, nil
}
