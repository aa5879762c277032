// Package redis holds the repositories backed by the transactional document
// store: accounts, username reservations and browser-verification records.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"send2me-service/internal/docstore"
	"send2me-service/internal/model"
	"send2me-service/internal/util"
)

const (
	userKeyPrefix     = "users:"
	usernameKeyPrefix = "usernames:"
)

// ErrUsernameTaken is returned when a reservation is held by another account.
var ErrUsernameTaken = errors.New("username already taken")

// AccountStore reads and writes accounts and their username reservations.
type AccountStore struct {
	store *docstore.Store
	now   func() time.Time
}

// NewAccountStore wraps the shared document store.
func NewAccountStore(store *docstore.Store) *AccountStore {
	return &AccountStore{store: store, now: time.Now}
}

// GetAccountByUID returns the account for uid, or nil when absent.
func (s *AccountStore) GetAccountByUID(ctx context.Context, uid string) (*model.Account, error) {
	var account model.Account
	found, err := s.store.Get(ctx, userKeyPrefix+uid, &account)
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", uid, err)
	}
	if !found {
		return nil, nil
	}
	return &account, nil
}

// GetAccountByUsername resolves a normalized username through its
// reservation record to the owning account. Returns nil when either side is
// absent.
func (s *AccountStore) GetAccountByUsername(ctx context.Context, normalizedUsername string) (*model.Account, error) {
	var reservation model.UsernameReservation
	found, err := s.store.Get(ctx, usernameKeyPrefix+normalizedUsername, &reservation)
	if err != nil {
		return nil, fmt.Errorf("get reservation %s: %w", normalizedUsername, err)
	}
	if !found {
		return nil, nil
	}

	account, err := s.GetAccountByUID(ctx, reservation.UID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		// Reservations are written in the same transaction as the profile,
		// so this indicates manual data surgery rather than a race.
		util.Warn("username reservation points at a missing account",
			util.String("username", normalizedUsername),
			util.String("uid", reservation.UID))
	}
	return account, nil
}

// ReserveUsername claims usernameKey for uid and merges the profile fields,
// in one transaction over both documents. If another account holds the
// reservation the transaction aborts with ErrUsernameTaken and nothing is
// written; re-reservation by the same owner is idempotent.
func (s *AccountStore) ReserveUsername(ctx context.Context, uid, usernameKey, email string) error {
	reservationKey := usernameKeyPrefix + usernameKey
	accountKey := userKeyPrefix + uid

	err := s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		now := s.now().UTC()

		var reservation model.UsernameReservation
		reserved, err := tx.Get(reservationKey, &reservation)
		if err != nil {
			return err
		}
		if reserved && reservation.UID != uid {
			return ErrUsernameTaken
		}
		if !reserved {
			reservation = model.UsernameReservation{
				Username:  usernameKey,
				UID:       uid,
				CreatedAt: now,
			}
		}

		var account model.Account
		exists, err := tx.Get(accountKey, &account)
		if err != nil {
			return err
		}
		if !exists {
			account = model.Account{UID: uid, CreatedAt: now}
		}
		account.Email = email
		account.Username = usernameKey
		account.LinkSlug = usernameKey
		account.AgreedToTOS = true
		account.AgreedAt = now
		account.UpdatedAt = now

		// Either both documents land or neither does.
		tx.Set(reservationKey, reservation)
		tx.Set(accountKey, account)
		return nil
	}, reservationKey, accountKey)
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("reserve username %s: %w", usernameKey, err)
	}
	return nil
}
