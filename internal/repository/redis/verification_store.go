package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"send2me-service/internal/docstore"
	"send2me-service/internal/model"
)

const verificationKeyPrefix = "browser_verifications:"

// Verification outcomes.
const (
	VerificationPassed = "passed"
	VerificationFailed = "failed"
)

// clientHintFields are the only client-hint attributes persisted; everything
// else the browser offers is dropped.
var clientHintFields = map[string]struct{}{
	"brands":          {},
	"mobile":          {},
	"platform":        {},
	"platformVersion": {},
	"architecture":    {},
	"model":           {},
	"uaFullVersion":   {},
	"bitness":         {},
}

// VerificationStore keeps one challenge-outcome record per hashed IP,
// maintained with upsert-merge semantics.
type VerificationStore struct {
	store *docstore.Store
	now   func() time.Time
}

// NewVerificationStore wraps the shared document store.
func NewVerificationStore(store *docstore.Store) *VerificationStore {
	return &VerificationStore{store: store, now: time.Now}
}

// UpsertInput is one observed challenge outcome.
type UpsertInput struct {
	IPHash        string
	RayID         string
	UserAgent     string
	Status        string
	UserAgentData map[string]string
}

// Get returns the record for ipHash, or nil when absent.
func (s *VerificationStore) Get(ctx context.Context, ipHash string) (*model.BrowserVerification, error) {
	var record model.BrowserVerification
	found, err := s.store.Get(ctx, verificationKeyPrefix+ipHash, &record)
	if err != nil {
		return nil, fmt.Errorf("get browser verification: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &record, nil
}

// HasPassed reports whether the record exists and its latest outcome passed.
func HasPassed(record *model.BrowserVerification) bool {
	return record != nil && record.Status == VerificationPassed
}

// Upsert merges input into the record for its hashed IP: first-verified is
// preserved, last-verified advances, and the verification count increments.
// At most one record per hashed IP ever exists.
func (s *VerificationStore) Upsert(ctx context.Context, input UpsertInput) error {
	if input.IPHash == "" {
		return fmt.Errorf("cannot persist verification without an ip hash")
	}

	key := verificationKeyPrefix + input.IPHash
	err := s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		now := s.now().UTC()

		var record model.BrowserVerification
		exists, err := tx.Get(key, &record)
		if err != nil {
			return err
		}
		if !exists {
			record = model.BrowserVerification{
				IPHash:          input.IPHash,
				FirstVerifiedAt: now,
			}
		}

		record.RayID = input.RayID
		record.Status = input.Status
		record.UserAgent = input.UserAgent
		if hints := SanitizeClientHints(input.UserAgentData); hints != nil {
			record.UserAgentData = hints
		}
		record.LastVerifiedAt = now
		record.UpdatedAt = now
		record.VerificationCount++

		tx.Set(key, record)
		return nil
	}, key)
	if err != nil {
		return fmt.Errorf("upsert browser verification: %w", err)
	}
	return nil
}

// SanitizeClientHints keeps only the allowed client-hint attributes, with
// trimmed non-empty values. Returns nil when nothing survives.
func SanitizeClientHints(data map[string]string) map[string]string {
	if len(data) == 0 {
		return nil
	}
	sanitized := make(map[string]string)
	for field, value := range data {
		if _, allowed := clientHintFields[field]; !allowed {
			continue
		}
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		sanitized[field] = trimmed
	}
	if len(sanitized) == 0 {
		return nil
	}
	return sanitized
}
