package service

import (
	"context"

	"go.uber.org/zap"

	"send2me-service/internal/model"
	"send2me-service/internal/moderation"
	"send2me-service/internal/publicurl"
	"send2me-service/internal/util"
)

// UsernameReserver claims usernames transactionally.
type UsernameReserver interface {
	ReserveUsername(ctx context.Context, uid, usernameKey, email string) error
}

// ClaimInput is one link claim request.
type ClaimInput struct {
	Username string
	Agree    bool
	// Origin is the caller-supplied base URL candidate, tried before the
	// configured sources.
	Origin string
}

// LinkService claims a public link for an authenticated account.
type LinkService struct {
	accounts      UsernameReserver
	urls          *publicurl.Resolver
	allowLocalURL bool
}

func NewLinkService(accounts UsernameReserver, urls *publicurl.Resolver, allowLocalURL bool) *LinkService {
	return &LinkService{accounts: accounts, urls: urls, allowLocalURL: allowLocalURL}
}

// Claim validates and reserves the username for the principal, then returns
// the shareable profile URL. The terms agreement is checked before any
// validation or write.
func (s *LinkService) Claim(ctx context.Context, principal *model.Principal, input ClaimInput) (string, error) {
	if principal == nil {
		return "", ErrUnauthorized
	}
	if !input.Agree {
		return "", ErrAgreementRequired
	}

	username, err := moderation.ValidateUsername(input.Username)
	if err != nil {
		return "", err
	}
	usernameKey := moderation.Normalize(username)

	if err := s.accounts.ReserveUsername(ctx, principal.UID, usernameKey, principal.Email); err != nil {
		return "", err
	}

	base := s.urls.Resolve(input.Origin, s.allowLocalURL)
	profileURL := publicurl.BuildProfileURL(base, usernameKey)

	util.Info("Public link claimed",
		zap.String("uid", principal.UID),
		zap.String("username", usernameKey))

	return profileURL, nil
}
