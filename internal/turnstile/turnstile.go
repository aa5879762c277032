// Package turnstile wraps server-side verification of Cloudflare Turnstile
// challenge tokens. Every failure mode is normalized into a Result with a
// stable error code; only a missing server secret is surfaced as an error,
// because that is a fatal configuration problem rather than a bad token.
package turnstile

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultEndpoint is Cloudflare's siteverify endpoint.
const DefaultEndpoint = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

const (
	minTimeout     = 1 * time.Second
	maxTimeout     = 15 * time.Second
	defaultTimeout = 5 * time.Second
)

// Synthetic error codes for failures that happen before a provider verdict
// is available. They share the namespace of the provider's own codes so the
// caller handles both uniformly.
const (
	CodeMissingInput   = "missing-input-response"
	CodeTimeoutOrAbort = "timeout-or-abort"
	CodeNetworkError   = "network-error"
	CodeHTTPError      = "http-error"
	CodeInvalidJSON    = "invalid-json"
)

// ErrNotConfigured reports a missing server secret.
var ErrNotConfigured = errors.New("turnstile secret key is not configured")

// Result is the normalized verification outcome.
type Result struct {
	Success bool
	Errors  []string
}

// Options tune a single verification call.
type Options struct {
	// IP is the client's remote address, forwarded to the provider when set.
	IP string
	// Timeout overrides the verifier default; clamped to [1s, 15s].
	Timeout time.Duration
}

// Verifier performs siteverify calls with a shared HTTP client.
type Verifier struct {
	secret   string
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

// NewVerifier constructs a Verifier. Fails fast when the secret is unset.
func NewVerifier(secret, endpoint string, timeout time.Duration) (*Verifier, error) {
	if secret == "" {
		return nil, ErrNotConfigured
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Verifier{
		secret:   secret,
		endpoint: endpoint,
		timeout:  clampTimeout(timeout),
		client:   &http.Client{},
	}, nil
}

func clampTimeout(d time.Duration) time.Duration {
	if d == 0 {
		return defaultTimeout
	}
	if d < minTimeout {
		return minTimeout
	}
	if d > maxTimeout {
		return maxTimeout
	}
	return d
}

// Verify submits token to the provider and returns the normalized result.
// An empty token short-circuits without a network call.
func (v *Verifier) Verify(ctx context.Context, token string, opts Options) Result {
	if strings.TrimSpace(token) == "" {
		return Result{Success: false, Errors: []string{CodeMissingInput}}
	}

	timeout := v.timeout
	if opts.Timeout != 0 {
		timeout = clampTimeout(opts.Timeout)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if opts.IP != "" {
		form.Set("remoteip", opts.IP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{Success: false, Errors: []string{CodeNetworkError}}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return Result{Success: false, Errors: []string{CodeTimeoutOrAbort}}
		}
		return Result{Success: false, Errors: []string{CodeNetworkError}}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Success: false, Errors: []string{CodeHTTPError}}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{Success: false, Errors: []string{CodeNetworkError}}
	}

	var payload struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Result{Success: false, Errors: []string{CodeInvalidJSON}}
	}

	errs := payload.ErrorCodes
	if errs == nil {
		errs = []string{}
	}
	return Result{Success: payload.Success, Errors: errs}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}

const genericFailureMessage = "Turnstile verification failed. Please refresh the challenge and try again."

var errorDescriptions = map[string]string{
	"missing-input-secret": "The server is missing its Turnstile secret. Please contact support.",
	"invalid-input-secret": "The server's Turnstile secret is invalid. Please contact support.",
	"missing-input-response": "Please complete the verification challenge first.",
	"invalid-input-response": "Verification expired or is invalid. Refresh the challenge and try again.",
	"bad-request":          "The verification request was malformed. Please try again.",
	"timeout-or-duplicate": "This verification was already used. Refresh the challenge and try again.",
	"internal-error":       "The verification service hit an internal error. Please try again.",
	CodeTimeoutOrAbort:     "Verification timed out. Please try again.",
	CodeNetworkError:       "Could not reach the verification service. Please try again.",
	CodeHTTPError:          "The verification service returned an error. Please try again.",
	CodeInvalidJSON:        "The verification service returned an unexpected response. Please try again.",
}

// DescribeErrors maps provider/synthetic error codes to human-readable
// messages. Duplicate codes are collapsed; unknown or absent codes fall back
// to a generic message.
func DescribeErrors(codes []string) string {
	seen := make(map[string]struct{}, len(codes))
	var messages []string
	for _, code := range codes {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		if msg, ok := errorDescriptions[code]; ok {
			messages = append(messages, msg)
		}
	}
	if len(messages) == 0 {
		return genericFailureMessage
	}
	return strings.Join(messages, " ")
}
