// Package identity resolves bearer credentials to a calling principal.
// Absence of a credential is the anonymous-caller case, not an error, and a
// credential that fails verification is treated the same way after a warning.
// The intake pipeline then simply has no sender identity to attach.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"send2me-service/internal/model"
	"send2me-service/internal/util"
)

// ErrNotConfigured reports a missing signing secret at startup.
var ErrNotConfigured = errors.New("identity jwt secret is not configured")

// Resolver turns an opaque bearer credential into a principal, or nil for
// anonymous callers.
type Resolver interface {
	Resolve(ctx context.Context, bearerToken string) (*model.Principal, error)
}

// JWTResolver verifies HS256-signed bearer tokens issued by the identity
// provider.
type JWTResolver struct {
	secret []byte
}

// NewJWTResolver constructs a resolver. Fails fast when the secret is unset.
func NewJWTResolver(secret string) (*JWTResolver, error) {
	if secret == "" {
		return nil, ErrNotConfigured
	}
	return &JWTResolver{secret: []byte(secret)}, nil
}

// Resolve parses and verifies the token. An empty token resolves to nil
// (anonymous). A token that fails verification also resolves to nil; the
// submission then proceeds without sender identity.
func (r *JWTResolver) Resolve(ctx context.Context, bearerToken string) (*model.Principal, error) {
	if bearerToken == "" {
		return nil, nil
	}

	token, err := jwt.Parse(bearerToken, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		util.Warn("failed to verify session token",
			util.String("token", util.Redact(bearerToken)),
			util.ErrorField(err))
		return nil, nil
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		util.Warn("session token has unexpected claims type")
		return nil, nil
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		util.Warn("session token is missing a subject")
		return nil, nil
	}

	principal := &model.Principal{
		UID:         sub,
		Email:       stringClaim(claims, "email"),
		DisplayName: stringClaim(claims, "name"),
	}

	// Fallback: derive a display name from the email local part.
	if principal.DisplayName == "" && principal.Email != "" {
		for i, c := range principal.Email {
			if c == '@' {
				principal.DisplayName = principal.Email[:i]
				break
			}
		}
	}

	return principal, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

var _ Resolver = (*JWTResolver)(nil)

// SignTestToken issues a token the resolver will accept. Only used from
// tests and local tooling.
func SignTestToken(secret, uid, email, name string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   uid,
		"email": email,
		"name":  name,
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign test token: %w", err)
	}
	return signed, nil
}
