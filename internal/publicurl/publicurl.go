// Package publicurl resolves the public base URL used to build permanent
// profile links. Resolution walks an explicit ordered list of named sources
// and takes the first well-formed, non-local value, so a localhost origin
// can never be persisted as a user's permanent public URL by accident.
package publicurl

import (
	"net/url"
	"regexp"
	"strings"
)

// FallbackBaseURL is the hardcoded production fallback, used when no
// configured source yields a usable value.
const FallbackBaseURL = "https://send2me.app"

var localHostnames = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"0.0.0.0":   {},
	"::1":       {},
	"[::1]":     {},
}

var schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z\d+\-.]*://`)

// Source is one candidate base URL with a name for diagnostics.
type Source struct {
	Name       string
	Value      string
	AllowLocal bool
}

// Resolver evaluates candidate sources in priority order.
type Resolver struct {
	sources []Source
}

// NewResolver builds a resolver over the configured sources. The hardcoded
// production fallback is always appended last.
func NewResolver(sources ...Source) *Resolver {
	all := make([]Source, 0, len(sources)+1)
	all = append(all, sources...)
	all = append(all, Source{Name: "fallback", Value: FallbackBaseURL, AllowLocal: true})
	return &Resolver{sources: all}
}

// Resolve returns the first candidate that normalizes to a usable origin.
// A caller-supplied preferred origin is evaluated before the configured
// sources; allowLocal applies to that preferred value only.
func (r *Resolver) Resolve(preferred string, allowLocal bool) string {
	candidates := make([]Source, 0, len(r.sources)+1)
	candidates = append(candidates, Source{Name: "preferred", Value: preferred, AllowLocal: allowLocal})
	candidates = append(candidates, r.sources...)

	for _, c := range candidates {
		normalized, ok := NormalizeBaseURL(c.Value)
		if !ok {
			continue
		}
		if !c.AllowLocal && IsProbablyLocal(normalized) {
			continue
		}
		return normalized
	}
	return FallbackBaseURL
}

func ensureScheme(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if schemeRe.MatchString(trimmed) {
		return trimmed
	}
	// protocol-relative
	if strings.HasPrefix(trimmed, "//") {
		return "https:" + trimmed
	}
	return "https://" + trimmed
}

// NormalizeBaseURL reduces raw to an origin (scheme://host[:port]),
// defaulting to https when the scheme is missing. Returns false for empty
// or unparseable input.
func NormalizeBaseURL(raw string) (string, bool) {
	withScheme := ensureScheme(raw)
	if withScheme == "" {
		return "", false
	}
	parsed, err := url.Parse(withScheme)
	if err != nil || parsed.Host == "" {
		return "", false
	}
	return parsed.Scheme + "://" + parsed.Host, true
}

// IsProbablyLocal reports whether the normalized base points at a loopback
// or developer hostname. Unparseable input counts as local.
func IsProbablyLocal(normalizedBase string) bool {
	parsed, err := url.Parse(normalizedBase)
	if err != nil {
		return true
	}
	hostname := strings.ToLower(parsed.Hostname())
	if _, local := localHostnames[hostname]; local {
		return true
	}
	return strings.HasSuffix(hostname, ".localhost") || strings.HasSuffix(hostname, ".local")
}

// BuildProfileURL joins a base URL with a reserved username to form the
// public profile link.
func BuildProfileURL(base, username string) string {
	normalized, ok := NormalizeBaseURL(base)
	if !ok {
		normalized = FallbackBaseURL
	}
	trimmedBase := strings.TrimSuffix(normalized, "/")
	return trimmedBase + "/u/" + url.PathEscape(strings.TrimSpace(username))
}
