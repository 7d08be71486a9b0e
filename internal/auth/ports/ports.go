package ports

import (
	"context"
	"time"

	"architect/internal/auth/domain"
)

// LinkStore persists pending magic links by token fingerprint.
type LinkStore interface {
	Save(ctx context.Context, fingerprint string, link domain.MagicLink) error
	// Consume removes and returns the link. A second call for the same fingerprint fails.
	Consume(ctx context.Context, fingerprint string) (domain.MagicLink, error)
}

// SessionStore persists issued sessions.
type SessionStore interface {
	Create(ctx context.Context, session domain.Session) error
	Find(ctx context.Context, id string) (domain.Session, error)
	Revoke(ctx context.Context, id string, at time.Time) error
}

// Mailer delivers the sign-in URL to the student.
type Mailer interface {
	SendMagicLink(ctx context.Context, email, link string) error
}

// TokenManager signs and parses session tokens.
type TokenManager interface {
	Issue(ctx context.Context, session domain.Session) (string, error)
	Parse(ctx context.Context, token string) (domain.Claims, error)
}
