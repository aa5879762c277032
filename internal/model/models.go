package model

import "time"

// -------------------- ACCOUNT MODEL --------------------

// Account is the profile behind a claimed link. UID is the identity
// provider's subject id and the owning key. Username is empty until the
// account claims one through the reservation service, and from then on it is
// only mutated by re-reservation under the same owner.
type Account struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	LinkSlug    string    `json:"link_slug"`
	AgreedToTOS bool      `json:"agreed_to_tos"`
	AgreedAt    time.Time `json:"agreed_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UsernameReservation maps a normalized username to its owning account.
// It doubles as the uniqueness lock: one record per claimed username,
// created in the same transaction as the account profile update.
type UsernameReservation struct {
	Username  string    `json:"username"`
	UID       string    `json:"uid"`
	CreatedAt time.Time `json:"created_at"`
}

// -------------------- MESSAGE MODEL --------------------

// Message is an accepted submission. Immutable once persisted. When Anon is
// true every From* field is empty, no matter who sent it.
type Message struct {
	ID         string    `json:"id" db:"message_id"`
	ToUID      string    `json:"to_uid" db:"to_uid"`
	ToUsername string    `json:"to_username" db:"to_username"`
	Text       string    `json:"text" db:"body"`
	Anon       bool      `json:"anon" db:"anon"`

	FromUID        string `json:"from_uid,omitempty" db:"from_uid"`
	FromUsername   string `json:"from_username,omitempty" db:"from_username"`
	FromEmail      string `json:"from_email,omitempty" db:"from_email"`
	FromGivenName  string `json:"from_given_name,omitempty" db:"from_given_name"`
	FromFamilyName string `json:"from_family_name,omitempty" db:"from_family_name"`

	Meta      MessageMeta `json:"meta"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// MessageMeta carries hashed request metadata for abuse tracking. Raw IP and
// user-agent values are never stored.
type MessageMeta struct {
	IPHash  string `json:"ip_hash" db:"ip_hash"`
	UAHash  string `json:"ua_hash" db:"ua_hash"`
	Country string `json:"country,omitempty" db:"country"`
	Device  string `json:"device,omitempty" db:"device"`
}

// MessageStats are inbox counts for a recipient.
type MessageStats struct {
	Total      int `json:"total"`
	Anon       int `json:"anon"`
	Identified int `json:"identified"`
}

// -------------------- RATE LIMIT MODEL --------------------

// RateLimitCounter is a fixed-window counter document. The count is only
// valid while now - WindowStartedAt <= the window duration; an expired
// window restarts at 1 rather than accumulating.
type RateLimitCounter struct {
	Count           int       `json:"count"`
	WindowStartedAt int64     `json:"window_started_at"` // unix millis
	UpdatedAt       time.Time `json:"updated_at"`
}

// -------------------- BROWSER VERIFICATION MODEL --------------------

// BrowserVerification records challenge outcomes per originating IP.
// At most one record per hashed IP, maintained with upsert-merge semantics.
type BrowserVerification struct {
	IPHash            string            `json:"ip_hash"`
	RayID             string            `json:"ray_id"`
	Status            string            `json:"status"` // "passed" or "failed"
	UserAgent         string            `json:"user_agent,omitempty"`
	UserAgentData     map[string]string `json:"user_agent_data,omitempty"`
	FirstVerifiedAt   time.Time         `json:"first_verified_at"`
	LastVerifiedAt    time.Time         `json:"last_verified_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	VerificationCount int               `json:"verification_count"`
}

// -------------------- PRINCIPAL MODEL --------------------

// Principal is the resolved identity of an authenticated caller. Username
// and LinkSlug are filled in from the account store when present.
type Principal struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	Username    string `json:"username,omitempty"`
	LinkSlug    string `json:"link_slug,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}
