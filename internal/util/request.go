package util

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the best-effort originating IP address for a request.
// The router's RealIP middleware already rewrites RemoteAddr from
// X-Forwarded-For / X-Real-IP, so RemoteAddr is the primary source.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	forwardedFor := r.Header.Get("X-Forwarded-For")
	if forwardedFor == "" {
		return ""
	}
	first, _, _ := strings.Cut(forwardedFor, ",")
	return strings.TrimSpace(first)
}

// BearerToken extracts the token from an Authorization: Bearer header.
// Returns "" when the header is absent or malformed.
func BearerToken(r *http.Request) string {
	value := r.Header.Get("Authorization")
	if value == "" {
		return ""
	}
	scheme, token, found := strings.Cut(value, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Redact shortens a sensitive value for logging, e.g. "abcdef123" -> "ab***23".
func Redact(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "***"
	}
	return value[:2] + "***" + value[len(value)-2:]
}
