package publicurl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"full url", "https://send2me.app/some/path", "https://send2me.app", true},
		{"missing scheme", "example.com", "https://example.com", true},
		{"protocol relative", "//example.com", "https://example.com", true},
		{"keeps port", "http://localhost:3000", "http://localhost:3000", true},
		{"empty", "", "", false},
		{"whitespace", "   ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeBaseURL(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsProbablyLocal(t *testing.T) {
	assert.True(t, IsProbablyLocal("http://localhost:3000"))
	assert.True(t, IsProbablyLocal("https://127.0.0.1"))
	assert.True(t, IsProbablyLocal("https://app.localhost"))
	assert.True(t, IsProbablyLocal("https://dev.local"))
	assert.False(t, IsProbablyLocal("https://send2me.app"))
}

func TestResolvePriorityOrder(t *testing.T) {
	r := NewResolver(
		Source{Name: "PUBLIC_BASE_URL", Value: "https://first.example.com"},
		Source{Name: "SITE_URL", Value: "https://second.example.com"},
	)

	assert.Equal(t, "https://preferred.example.com", r.Resolve("https://preferred.example.com", false))
	assert.Equal(t, "https://first.example.com", r.Resolve("", false))
}

func TestResolveSkipsLocalCandidates(t *testing.T) {
	r := NewResolver(
		Source{Name: "PUBLIC_BASE_URL", Value: "http://localhost:3000"},
		Source{Name: "SITE_URL", Value: "https://real.example.com"},
	)

	// local preferred origin is skipped unless explicitly allowed
	assert.Equal(t, "https://real.example.com", r.Resolve("http://localhost:8080", false))
	assert.Equal(t, "http://localhost:8080", r.Resolve("http://localhost:8080", true))
}

func TestResolveFallsBack(t *testing.T) {
	r := NewResolver(
		Source{Name: "PUBLIC_BASE_URL", Value: "http://localhost:3000"},
	)
	assert.Equal(t, FallbackBaseURL, r.Resolve("", false))
}

func TestBuildProfileURL(t *testing.T) {
	assert.Equal(t, "https://send2me.app/u/alice", BuildProfileURL("https://send2me.app", "alice"))
	assert.Equal(t, "https://send2me.app/u/alice", BuildProfileURL("https://send2me.app/", " alice "))
	// bad base falls back rather than producing a broken link
	assert.Equal(t, FallbackBaseURL+"/u/alice", BuildProfileURL("", "alice"))
}
