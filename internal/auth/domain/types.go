package domain

import (
	"errors"
	"time"
)

// Messages shown on the login page.
const (
	MessageLinkSent   = "Magic link sent! Please check your student email inbox."
	MessageLinkFailed = "Failed to send login link. Try again."
)

var (
	ErrLinkNotFound     = errors.New("magic link not found")
	ErrLinkExpired      = errors.New("magic link expired")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionRevoked   = errors.New("session revoked")
	ErrInvalidToken     = errors.New("invalid session token")
	ErrSecretNotDefined = errors.New("jwt secret not configured")
)

// MagicLink is a pending one-time sign-in. It is keyed by the token fingerprint.
type MagicLink struct {
	Email     string
	Redirect  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the link can no longer be redeemed at now.
func (l MagicLink) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// Session is a signed-in student.
type Session struct {
	ID        string
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Revoked reports whether the session was signed out.
func (s Session) Revoked() bool {
	return s.RevokedAt != nil
}

// Claims are the fields carried by a session token.
type Claims struct {
	Subject   string
	Email     string
	SessionID string
	ExpiresAt time.Time
}

// SignedSession is what a completed link hands back to the caller.
type SignedSession struct {
	Session  Session
	Token    string
	Redirect string
}
