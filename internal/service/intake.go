package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"send2me-service/internal/config"
	"send2me-service/internal/hashing"
	"send2me-service/internal/identity"
	"send2me-service/internal/model"
	"send2me-service/internal/moderation"
	"send2me-service/internal/ratelimit"
	"send2me-service/internal/turnstile"
	"send2me-service/internal/util"
)

// Fallback inputs for metadata hashing when the request carries no usable
// value. Hashing a constant keeps the rate limiter working for such
// requests instead of exempting them.
const (
	fallbackIP        = "anonymous"
	fallbackUserAgent = "unknown"
)

// BotVerifier checks a Turnstile challenge token.
type BotVerifier interface {
	Verify(ctx context.Context, token string, opts turnstile.Options) turnstile.Result
}

// RecipientDirectory resolves normalized usernames to accounts.
type RecipientDirectory interface {
	GetAccountByUsername(ctx context.Context, normalizedUsername string) (*model.Account, error)
}

// MessageSaver persists accepted messages.
type MessageSaver interface {
	SaveMessage(ctx context.Context, message *model.Message) error
}

// RateChecker runs one fixed-window check-and-increment.
type RateChecker interface {
	Increment(ctx context.Context, key string, window time.Duration, limit int) (ratelimit.Result, error)
}

// IntakeReporter receives intake decisions for abuse tracking.
type IntakeReporter interface {
	ReportAccepted(ctx context.Context, message *model.Message)
	ReportRejected(ctx context.Context, reason, toUID, ipHash, uaHash string)
}

// SendInput is one message submission.
type SendInput struct {
	To             string
	Text           string
	Anon           bool
	TurnstileToken string
	BearerToken    string
	IP             string
	UserAgent      string
	Country        string
	Device         string
}

// IntakeService runs the message intake pipeline: bot check, recipient
// lookup, moderation, metadata hashing, rate limiting, sender resolution,
// persistence. Checks run in a fixed order so a rejected request reveals
// only the first gate it failed.
type IntakeService struct {
	verifier   BotVerifier
	recipients RecipientDirectory
	limiter    RateChecker
	identity   identity.Resolver
	messages   MessageSaver
	hasher     *hashing.Hasher
	reporter   IntakeReporter
	limits     config.RateLimitConfig
}

func NewIntakeService(
	verifier BotVerifier,
	recipients RecipientDirectory,
	limiter RateChecker,
	resolver identity.Resolver,
	messages MessageSaver,
	hasher *hashing.Hasher,
	reporter IntakeReporter,
	limits config.RateLimitConfig,
) *IntakeService {
	return &IntakeService{
		verifier:   verifier,
		recipients: recipients,
		limiter:    limiter,
		identity:   resolver,
		messages:   messages,
		hasher:     hasher,
		reporter:   reporter,
		limits:     limits,
	}
}

// Send processes one submission and returns the persisted message. The
// rejection errors are typed: BotVerificationError, ErrRecipientNotFound,
// moderation.Violation, RateLimitError. Anything else is an internal
// failure.
func (s *IntakeService) Send(ctx context.Context, input SendInput) (*model.Message, error) {
	ipHash := s.hashOrFallback(input.IP, fallbackIP)
	uaHash := s.hashOrFallback(input.UserAgent, fallbackUserAgent)

	verification := s.verifier.Verify(ctx, input.TurnstileToken, turnstile.Options{IP: input.IP})
	if !verification.Success {
		message := turnstile.DescribeErrors(verification.Errors)
		util.Warn("Turnstile verification failed for send endpoint",
			zap.Strings("errors", verification.Errors),
			zap.String("ip_hash", ipHash))
		s.reporter.ReportRejected(ctx, "bot_verification_failed", "", ipHash, uaHash)
		return nil, &BotVerificationError{Message: message, Codes: verification.Errors}
	}

	recipient, err := s.recipients.GetAccountByUsername(ctx, moderation.Normalize(input.To))
	if err != nil {
		return nil, fmt.Errorf("recipient lookup: %w", err)
	}
	if recipient == nil || recipient.Username == "" {
		s.reporter.ReportRejected(ctx, "recipient_not_found", "", ipHash, uaHash)
		return nil, ErrRecipientNotFound
	}

	text, err := moderation.ValidateMessage(input.Text)
	if err != nil {
		s.reporter.ReportRejected(ctx, "moderation_violation", recipient.UID, ipHash, uaHash)
		return nil, err
	}

	if err := s.checkRateLimits(ctx, recipient.UID, ipHash); err != nil {
		if rlErr, ok := AsRateLimitError(err); ok {
			s.reporter.ReportRejected(ctx, "rate_limited_"+rlErr.Scope, recipient.UID, ipHash, uaHash)
		}
		return nil, err
	}

	principal, err := s.identity.Resolve(ctx, input.BearerToken)
	if err != nil {
		return nil, fmt.Errorf("resolve sender: %w", err)
	}

	message := &model.Message{
		ToUID:      recipient.UID,
		ToUsername: recipient.Username,
		Text:       text,
		Anon:       input.Anon,
		Meta: model.MessageMeta{
			IPHash:  ipHash,
			UAHash:  uaHash,
			Country: input.Country,
			Device:  input.Device,
		},
	}

	// Sender identity is only attached when the sender is authenticated and
	// explicitly chose not to be anonymous. The anon flag wins over any
	// session that happens to be present.
	if !input.Anon && principal != nil {
		message.FromUID = principal.UID
		message.FromUsername = principal.Username
		message.FromEmail = principal.Email
		message.FromGivenName, message.FromFamilyName = splitDisplayName(principal.DisplayName)
	}

	if err := s.messages.SaveMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	s.reporter.ReportAccepted(ctx, message)
	return message, nil
}

// checkRateLimits runs the per-target and global windows concurrently. Both
// counters increment on an allowed request; when both deny, the target
// message wins.
func (s *IntakeService) checkRateLimits(ctx context.Context, recipientUID, ipHash string) error {
	if recipientUID == "" || ipHash == "" {
		return &RateLimitError{Scope: ScopeGlobal, Message: "Missing metadata for rate limiting."}
	}

	var targetRes, globalRes ratelimit.Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		targetRes, err = s.limiter.Increment(gctx, ratelimit.TargetKey(recipientUID, ipHash),
			s.limits.TargetWindow, s.limits.TargetLimit)
		return err
	})
	g.Go(func() error {
		var err error
		globalRes, err = s.limiter.Increment(gctx, ratelimit.GlobalKey(ipHash),
			s.limits.GlobalWindow, s.limits.GlobalLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}

	if !targetRes.Allowed {
		return &RateLimitError{Scope: ScopeTarget, Message: "You're sending messages too quickly to this user."}
	}
	if !globalRes.Allowed {
		return &RateLimitError{Scope: ScopeGlobal, Message: "Too many messages sent. Please wait a moment."}
	}
	return nil
}

func (s *IntakeService) hashOrFallback(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		value = fallback
	}
	return s.hasher.Hash(value)
}

// splitDisplayName breaks a display name on the first whitespace run. The
// remainder, spaces included, becomes the family name.
func splitDisplayName(displayName string) (given, family string) {
	trimmed := strings.TrimSpace(displayName)
	if trimmed == "" {
		return "", ""
	}
	parts := strings.SplitN(trimmed, " ", 2)
	given = parts[0]
	if len(parts) > 1 {
		family = parts[1]
	}
	return given, family
}
