package handler

import (
	"context"
	"net/http"

	"send2me-service/internal/identity"
	"send2me-service/internal/model"
	redisrepo "send2me-service/internal/repository/redis"
	"send2me-service/internal/util"
)

type contextKey string

const principalKey contextKey = "principal"

// Authenticator resolves bearer tokens into principals and enriches them
// with the account profile. A missing or invalid token yields no principal
// rather than an error; the anonymous case is legitimate on most routes.
type Authenticator struct {
	resolver identity.Resolver
	accounts *redisrepo.AccountStore
}

func NewAuthenticator(resolver identity.Resolver, accounts *redisrepo.AccountStore) *Authenticator {
	return &Authenticator{resolver: resolver, accounts: accounts}
}

// Principal resolves the request's caller, or nil for anonymous requests.
func (a *Authenticator) Principal(r *http.Request) (*model.Principal, error) {
	principal, err := a.resolver.Resolve(r.Context(), util.BearerToken(r))
	if err != nil {
		return nil, err
	}
	if principal == nil {
		return nil, nil
	}

	account, err := a.accounts.GetAccountByUID(r.Context(), principal.UID)
	if err != nil {
		return nil, err
	}
	if account != nil {
		principal.Username = account.Username
		principal.LinkSlug = account.LinkSlug
	}
	return principal, nil
}

// Middleware stores the resolved principal on the request context. Routes
// that tolerate anonymous callers read a nil principal.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.Principal(r)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Unable to resolve the session right now.")
			return
		}
		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFrom(r.Context()) == nil {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PrincipalFrom returns the principal stored by the auth middleware, or nil.
func PrincipalFrom(ctx context.Context) *model.Principal {
	principal, _ := ctx.Value(principalKey).(*model.Principal)
	return principal
}
