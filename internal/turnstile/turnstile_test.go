package turnstile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(t *testing.T, handler http.HandlerFunc) *Verifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	v, err := NewVerifier("test-secret", srv.URL, 2*time.Second)
	require.NoError(t, err)
	return v
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := NewVerifier("", "", 0)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestVerifyEmptyTokenShortCircuits(t *testing.T) {
	called := false
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	res := v.Verify(context.Background(), "   ", Options{})
	assert.False(t, res.Success)
	assert.Equal(t, []string{CodeMissingInput}, res.Errors)
	assert.False(t, called, "no network call should be made for an empty token")
}

func TestVerifySuccess(t *testing.T) {
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "test-secret", r.PostForm.Get("secret"))
		assert.Equal(t, "tok-123", r.PostForm.Get("response"))
		assert.Equal(t, "192.0.2.1", r.PostForm.Get("remoteip"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true}`))
	})

	res := v.Verify(context.Background(), "tok-123", Options{IP: "192.0.2.1"})
	assert.True(t, res.Success)
	assert.Empty(t, res.Errors)
	assert.NotNil(t, res.Errors)
}

func TestVerifyProviderRejection(t *testing.T) {
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response","timeout-or-duplicate"]}`))
	})

	res := v.Verify(context.Background(), "tok-123", Options{})
	assert.False(t, res.Success)
	assert.Equal(t, []string{"invalid-input-response", "timeout-or-duplicate"}, res.Errors)
}

func TestVerifyHTTPError(t *testing.T) {
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	res := v.Verify(context.Background(), "tok-123", Options{})
	assert.False(t, res.Success)
	assert.Equal(t, []string{CodeHTTPError}, res.Errors)
}

func TestVerifyInvalidJSON(t *testing.T) {
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	res := v.Verify(context.Background(), "tok-123", Options{})
	assert.False(t, res.Success)
	assert.Equal(t, []string{CodeInvalidJSON}, res.Errors)
}

func TestVerifyTimeout(t *testing.T) {
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(3 * time.Second)
	})

	res := v.Verify(context.Background(), "tok-123", Options{Timeout: 1 * time.Second})
	assert.False(t, res.Success)
	assert.Equal(t, []string{CodeTimeoutOrAbort}, res.Errors)
}

func TestVerifyNetworkError(t *testing.T) {
	v, err := NewVerifier("test-secret", "http://127.0.0.1:1", 2*time.Second)
	require.NoError(t, err)

	res := v.Verify(context.Background(), "tok-123", Options{})
	assert.False(t, res.Success)
	assert.Equal(t, []string{CodeNetworkError}, res.Errors)
}

func TestClampTimeout(t *testing.T) {
	assert.Equal(t, defaultTimeout, clampTimeout(0))
	assert.Equal(t, minTimeout, clampTimeout(10*time.Millisecond))
	assert.Equal(t, maxTimeout, clampTimeout(time.Minute))
	assert.Equal(t, 3*time.Second, clampTimeout(3*time.Second))
}

func TestDescribeErrors(t *testing.T) {
	t.Run("known code", func(t *testing.T) {
		assert.Equal(t,
			"Please complete the verification challenge first.",
			DescribeErrors([]string{"missing-input-response"}))
	})

	t.Run("deduplicates", func(t *testing.T) {
		single := DescribeErrors([]string{"internal-error"})
		assert.Equal(t, single, DescribeErrors([]string{"internal-error", "internal-error"}))
	})

	t.Run("unknown falls back", func(t *testing.T) {
		assert.Equal(t, genericFailureMessage, DescribeErrors([]string{"mystery-code"}))
	})

	t.Run("empty falls back", func(t *testing.T) {
		assert.Equal(t, genericFailureMessage, DescribeErrors(nil))
	})
}
