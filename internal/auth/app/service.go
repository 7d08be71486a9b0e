package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"architect/internal/auth/domain"
	"architect/internal/auth/ports"
	domainlead "architect/internal/domain/lead"
	apperrors "architect/internal/errors"
	"architect/internal/logging"
	"architect/internal/observability"
	id "architect/internal/utils/id"
)

const (
	// CallbackPath is where emailed links land.
	CallbackPath = "/v1/auth/callback"
	// DefaultRedirect is where a completed sign-in navigates when no redirect was requested.
	DefaultRedirect = "/results"

	linkTokenBytes = 32
)

// Magic-link metric outcomes.
const (
	OutcomeSent     = "sent"
	OutcomeDenied   = "denied"
	OutcomeFailed   = "failed"
	OutcomeRedeemed = "redeemed"
	OutcomeRejected = "rejected"
)

// Config controls link and session lifetimes.
type Config struct {
	LinkTTL       time.Duration
	SessionTTL    time.Duration
	PublicBaseURL string
	Issuer        string
}

// Service implements magic-link sign-in on top of the auth ports.
type Service struct {
	links    ports.LinkStore
	sessions ports.SessionStore
	tokens   ports.TokenManager
	mailer   ports.Mailer
	config   Config
	now      func() time.Time
	logger   logging.Logger
	metrics  *observability.MetricsCollector
}

// NewService constructs a new auth service.
func NewService(links ports.LinkStore, sessions ports.SessionStore, tokens ports.TokenManager, mailer ports.Mailer, cfg Config) *Service {
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = 15 * time.Minute
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &Service{
		links:    links,
		sessions: sessions,
		tokens:   tokens,
		mailer:   mailer,
		config:   cfg,
		now:      time.Now,
		logger:   logging.NewComponentLogger("Auth"),
	}
}

// WithNow overrides the time source, primarily for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithLogger replaces the component logger.
func (s *Service) WithLogger(logger logging.Logger) {
	if !logging.IsNil(logger) {
		s.logger = logger
	}
}

// WithMetrics enables magic-link counters.
func (s *Service) WithMetrics(metrics *observability.MetricsCollector) {
	s.metrics = metrics
}

// SessionTTL returns the configured session lifetime.
func (s *Service) SessionTTL() time.Duration {
	return s.config.SessionTTL
}

// SignInWithEmailLink emails a one-time sign-in link to a student address.
// The returned string is the confirmation shown on the login page.
func (s *Service) SignInWithEmailLink(ctx context.Context, email, redirect string) (string, error) {
	logger := logging.FromContext(ctx, s.logger)
	email = domainlead.NormalizeEmail(email)
	if !domainlead.AllowedEmail(email) {
		s.metrics.RecordMagicLink(ctx, OutcomeDenied)
		return "", apperrors.NewPolicyError(domainlead.LoginDeniedMessage)
	}
	redirect = sanitizeRedirect(redirect)

	token, err := id.NewToken(linkTokenBytes)
	if err != nil {
		return "", s.linkFailure(ctx, err)
	}
	now := s.now()
	link := domain.MagicLink{
		Email:     email,
		Redirect:  redirect,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.LinkTTL),
	}
	if err := s.links.Save(ctx, domain.FingerprintLinkToken(token), link); err != nil {
		return "", s.linkFailure(ctx, fmt.Errorf("save link: %w", err))
	}
	if err := s.mailer.SendMagicLink(ctx, email, s.callbackURL(token)); err != nil {
		logger.Warn("Magic link delivery to %s failed: %v", email, err)
		return "", s.linkFailure(ctx, err)
	}
	logger.Info("Magic link issued for %s (expires %s)", email, link.ExpiresAt.Format(time.RFC3339))
	s.metrics.RecordMagicLink(ctx, OutcomeSent)
	return domain.MessageLinkSent, nil
}

// CompleteLink redeems a link token once and opens a session.
func (s *Service) CompleteLink(ctx context.Context, token string) (domain.SignedSession, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		s.metrics.RecordMagicLink(ctx, OutcomeRejected)
		return domain.SignedSession{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, domain.ErrLinkNotFound)
	}
	link, err := s.links.Consume(ctx, domain.FingerprintLinkToken(token))
	if err != nil {
		s.metrics.RecordMagicLink(ctx, OutcomeRejected)
		if errors.Is(err, domain.ErrLinkNotFound) {
			return domain.SignedSession{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
		}
		return domain.SignedSession{}, fmt.Errorf("consume link: %w", err)
	}
	now := s.now()
	if link.Expired(now) {
		s.metrics.RecordMagicLink(ctx, OutcomeRejected)
		return domain.SignedSession{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, domain.ErrLinkExpired)
	}

	session := domain.Session{
		ID:        id.NewSessionID(),
		Email:     link.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.SessionTTL),
	}
	signed, err := s.tokens.Issue(ctx, session)
	if err != nil {
		return domain.SignedSession{}, fmt.Errorf("issue session token: %w", err)
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return domain.SignedSession{}, fmt.Errorf("create session: %w", err)
	}
	logging.FromContext(ctx, s.logger).Info("Session %s opened for %s", session.ID, session.Email)
	s.metrics.RecordMagicLink(ctx, OutcomeRedeemed)
	return domain.SignedSession{Session: session, Token: signed, Redirect: link.Redirect}, nil
}

// CurrentSession resolves a session token. Unknown, expired and revoked sessions
// all report apperrors.ErrUnauthorized.
func (s *Service) CurrentSession(ctx context.Context, token string) (domain.Session, error) {
	if strings.TrimSpace(token) == "" {
		return domain.Session{}, apperrors.ErrUnauthorized
	}
	claims, err := s.tokens.Parse(ctx, token)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
	}
	session, err := s.sessions.Find(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.Session{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
		}
		return domain.Session{}, fmt.Errorf("find session: %w", err)
	}
	if session.Revoked() {
		return domain.Session{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, domain.ErrSessionRevoked)
	}
	if !s.now().Before(session.ExpiresAt) {
		return domain.Session{}, fmt.Errorf("%w: session expired", apperrors.ErrUnauthorized)
	}
	return session, nil
}

// SignOut revokes a session. Revoking an unknown session is a no-op.
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, sessionID, s.now()); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("revoke session: %w", err)
	}
	logging.FromContext(ctx, s.logger).Info("Session %s revoked", sessionID)
	return nil
}

func (s *Service) linkFailure(ctx context.Context, err error) error {
	s.metrics.RecordMagicLink(ctx, OutcomeFailed)
	return &apperrors.ServiceError{Service: "mailer", Message: domain.MessageLinkFailed, Err: err}
}

func (s *Service) callbackURL(token string) string {
	return s.config.PublicBaseURL + CallbackPath + "?" + url.Values{"token": {token}}.Encode()
}

// sanitizeRedirect keeps redirects on-site.
func sanitizeRedirect(redirect string) string {
	redirect = strings.TrimSpace(redirect)
	if redirect == "" || !strings.HasPrefix(redirect, "/") || strings.HasPrefix(redirect, "//") || strings.Contains(redirect, "\\") {
		return DefaultRedirect
	}
	return redirect
}
