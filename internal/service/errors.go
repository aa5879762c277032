package service

import "errors"

// Sentinel errors shared by the services. Handlers map these onto HTTP
// statuses; the messages are user facing.
var (
	ErrRecipientNotFound = errors.New("Receiver not found.")
	ErrAgreementRequired = errors.New("You must accept the terms to continue.")
	ErrUnauthorized      = errors.New("Unauthorized")
)

// BotVerificationError is a failed Turnstile challenge. Codes carries the
// provider's error codes for logging.
type BotVerificationError struct {
	Message string
	Codes   []string
}

func (e *BotVerificationError) Error() string { return e.Message }

// AsBotVerificationError unwraps err into a BotVerificationError.
func AsBotVerificationError(err error) (*BotVerificationError, bool) {
	var botErr *BotVerificationError
	if errors.As(err, &botErr) {
		return botErr, true
	}
	return nil, false
}

// RateLimitError is a denied submission. Scope distinguishes the per-target
// window from the global per-sender window.
type RateLimitError struct {
	Scope   string
	Message string
}

func (e *RateLimitError) Error() string { return e.Message }

// AsRateLimitError unwraps err into a RateLimitError.
func AsRateLimitError(err error) (*RateLimitError, bool) {
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return rlErr, true
	}
	return nil, false
}

// Rate limit scopes.
const (
	ScopeTarget = "target"
	ScopeGlobal = "global"
)
