package adapters

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"architect/internal/auth/domain"
)

func TestJWTTokenManagerRoundTrip(t *testing.T) {
	manager := NewJWTTokenManager("secret", "architect")
	now := time.Now().Truncate(time.Second)
	token, err := manager.Issue(context.Background(), domain.Session{
		ID:        "sess-1",
		Email:     "a@my.richfield.ac.za",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)

	claims, err := manager.Parse(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "a@my.richfield.ac.za", claims.Email)
	assert.True(t, claims.ExpiresAt.Equal(now.Add(time.Hour)))
}

func TestJWTTokenManagerRejectsForeignTokens(t *testing.T) {
	manager := NewJWTTokenManager("secret", "architect")
	ctx := context.Background()

	wrongIssuer, err := NewJWTTokenManager("secret", "someone-else").Issue(ctx, domain.Session{
		ID: "s", ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	_, err = manager.Parse(ctx, wrongIssuer)
	require.ErrorIs(t, err, domain.ErrInvalidToken)

	expired, err := manager.Issue(ctx, domain.Session{ID: "s", ExpiresAt: time.Now().Add(-time.Minute)})
	require.NoError(t, err)
	_, err = manager.Parse(ctx, expired)
	require.ErrorIs(t, err, domain.ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"session_id": "s", "iss": "architect", "exp": time.Now().Add(time.Hour).Unix()})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = manager.Parse(ctx, unsigned)
	require.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = NewJWTTokenManager("", "architect").Issue(ctx, domain.Session{ID: "s"})
	require.ErrorIs(t, err, domain.ErrSecretNotDefined)
}

func TestMemoryLinkStoreConsumeOnce(t *testing.T) {
	store := NewMemoryLinkStore()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, store.Save(ctx, "fp", domain.MagicLink{Email: "a@richfield.ac.za", ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, store.Save(ctx, "old", domain.MagicLink{ExpiresAt: now.Add(-time.Minute)}))

	assert.Equal(t, 1, store.Purge(now))

	link, err := store.Consume(ctx, "fp")
	require.NoError(t, err)
	assert.Equal(t, "a@richfield.ac.za", link.Email)

	_, err = store.Consume(ctx, "fp")
	require.ErrorIs(t, err, domain.ErrLinkNotFound)
}

func TestMemorySessionStoreRevoke(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, domain.Session{ID: "s1"}))

	first := time.Unix(100, 0)
	require.NoError(t, store.Revoke(ctx, "s1", first))
	require.NoError(t, store.Revoke(ctx, "s1", time.Unix(200, 0)))

	session, err := store.Find(ctx, "s1")
	require.NoError(t, err)
	require.True(t, session.Revoked())
	assert.True(t, session.RevokedAt.Equal(first))

	require.ErrorIs(t, store.Revoke(ctx, "missing", first), domain.ErrSessionNotFound)
}

func TestSMTPMailerComposesMessage(t *testing.T) {
	mailer := NewSMTPMailer(SMTPConfig{Host: "smtp.richfield.ac.za", Username: "noreply", Password: "pw", From: "noreply@richfield.ac.za"})
	var gotAddr string
	var gotTo []string
	var gotMsg string
	mailer.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		assert.NotNil(t, a)
		assert.Equal(t, "noreply@richfield.ac.za", from)
		return nil
	}

	err := mailer.SendMagicLink(context.Background(), "a@my.richfield.ac.za", "https://x/v1/auth/callback?token=abc")
	require.NoError(t, err)
	assert.Equal(t, "smtp.richfield.ac.za:587", gotAddr)
	assert.Equal(t, []string{"a@my.richfield.ac.za"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: "+magicLinkSubject)
	assert.Contains(t, gotMsg, "https://x/v1/auth/callback?token=abc")
	assert.True(t, strings.HasPrefix(gotMsg, "From: noreply@richfield.ac.za\r\n"))
}

func TestSMTPMailerErrors(t *testing.T) {
	mailer := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 2525})
	mailer.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 busy") }

	err := mailer.SendMagicLink(context.Background(), "a@my.richfield.ac.za", "link")
	require.ErrorContains(t, err, "421 busy")

	err = mailer.SendMagicLink(context.Background(), "a@my.richfield.ac.za\r\nBcc: x@y", "link")
	require.ErrorContains(t, err, "invalid recipient")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, mailer.SendMagicLink(ctx, "a@my.richfield.ac.za", "link"), context.Canceled)
}

func TestLogMailerNeverFails(t *testing.T) {
	require.NoError(t, NewLogMailer(nil).SendMagicLink(context.Background(), "a@my.richfield.ac.za", "link"))
}
