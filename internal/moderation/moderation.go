// Package moderation validates message bodies and usernames: text
// normalization, blocked-term matching, link detection and username format
// rules. All functions are pure; violations are reported as typed errors so
// callers can branch on the kind without string matching.
package moderation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	minMessageLength = 2
	maxMessageLength = 500
)

// Kind identifies a moderation violation.
type Kind string

const (
	KindTooShort         Kind = "too_short"
	KindTooLong          Kind = "too_long"
	KindPolicyViolation  Kind = "policy_violation"
	KindContainsLink     Kind = "contains_link"
	KindInvalidUsername  Kind = "invalid_username"
	KindReservedUsername Kind = "reserved_username"
)

// Violation is a user-correctable moderation failure. Message is safe to
// echo to the caller; it never reveals which blocked term matched.
type Violation struct {
	Kind    Kind
	Message string
}

func (v *Violation) Error() string { return v.Message }

// AsViolation unwraps err into a *Violation when it is one.
func AsViolation(err error) (*Violation, bool) {
	v, ok := err.(*Violation)
	return v, ok
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	// Heuristic URL detection: scheme-prefixed, www-prefixed, mailto/ftp, or
	// a bare domain ending in a common TLD. False negatives are acceptable;
	// this is a UX gate, not a security boundary.
	urlRe = regexp.MustCompile(`(?i)((https?://|www\.)\S+)|((mailto:|ftp:)\S+)|(\S+\.(com|net|org|io|me|co|app|xyz|in|gov)(/|\b))`)

	// Raw usernames: 3-20 chars, lowercase alphanumeric edges, dots and
	// underscores allowed in the middle.
	usernameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_.]{1,18}[a-z0-9]$`)
)

// Normalize lower-cases, NFKD-decomposes, strips diacritics, collapses
// lookalike characters outside the allowed set, squeezes whitespace and
// trims. It is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	lowered := strings.ToLower(text)
	decomposed := norm.NFKD.String(lowered)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining diacritical mark, dropped
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '.' || r == '_':
			b.WriteRune(r)
		default:
			if mapped, ok := collapsedCharMap[r]; ok {
				b.WriteRune(mapped)
			} else {
				b.WriteRune(' ')
			}
		}
	}

	collapsed := whitespaceRe.ReplaceAllString(b.String(), " ")
	return strings.TrimSpace(collapsed)
}

// ContainsLinks reports whether text contains a URL-like token.
func ContainsLinks(text string) bool {
	return urlRe.MatchString(text)
}

// ViolatesPolicy reports whether the normalized text contains any entry of
// the blocked-term list.
func ViolatesPolicy(text string) bool {
	normalized := Normalize(text)
	for _, term := range blockedTerms {
		if strings.Contains(normalized, term) {
			return true
		}
	}
	return false
}

// ValidateUsername checks the raw username against the format rules and the
// normalized form against the reserved-name list. Returns the raw username
// unchanged on success.
func ValidateUsername(username string) (string, error) {
	if !usernameRe.MatchString(username) {
		return "", &Violation{
			Kind:    KindInvalidUsername,
			Message: "Username must be 3-20 characters, lowercase letters, numbers, dots, or underscores.",
		}
	}

	normalized := strings.ReplaceAll(Normalize(username), " ", "")
	if _, reserved := reservedUsernames[normalized]; reserved {
		return "", &Violation{
			Kind:    KindReservedUsername,
			Message: "This username is reserved. Please choose another.",
		}
	}

	return username, nil
}

// ValidateMessage trims the text and runs the moderation checks in contract
// order: length bounds first (cheap), then policy, then links. Returns the
// trimmed text on success.
func ValidateMessage(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < minMessageLength {
		return "", &Violation{
			Kind:    KindTooShort,
			Message: "Message must be at least 2 characters.",
		}
	}
	if utf8.RuneCountInString(trimmed) > maxMessageLength {
		return "", &Violation{
			Kind:    KindTooLong,
			Message: "Message must be at most 500 characters.",
		}
	}
	if ViolatesPolicy(trimmed) {
		return "", &Violation{
			Kind:    KindPolicyViolation,
			Message: "Message violates our community guidelines.",
		}
	}
	if ContainsLinks(trimmed) {
		return "", &Violation{
			Kind:    KindContainsLink,
			Message: "Please remove links before sending.",
		}
	}
	return trimmed, nil
}

// MessageClientHint returns the violation message for text, or "" when the
// message is acceptable. Used for live client-side feedback; never
// authoritative.
func MessageClientHint(text string) string {
	if _, err := ValidateMessage(text); err != nil {
		return err.Error()
	}
	return ""
}
