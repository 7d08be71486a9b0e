package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"architect/internal/auth/domain"
	"architect/internal/auth/ports"
)

// JWTTokenManager signs session tokens with HS256.
type JWTTokenManager struct {
	secret []byte
	issuer string
}

// NewJWTTokenManager creates a new token manager.
func NewJWTTokenManager(secret, issuer string) *JWTTokenManager {
	return &JWTTokenManager{secret: []byte(secret), issuer: issuer}
}

// Issue implements ports.TokenManager.
func (m *JWTTokenManager) Issue(_ context.Context, session domain.Session) (string, error) {
	if len(m.secret) == 0 {
		return "", domain.ErrSecretNotDefined
	}
	claims := jwt.MapClaims{
		"sub":        session.Email,
		"email":      session.Email,
		"session_id": session.ID,
		"iat":        session.CreatedAt.Unix(),
		"exp":        session.ExpiresAt.Unix(),
		"iss":        m.issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse implements ports.TokenManager.
func (m *JWTTokenManager) Parse(_ context.Context, token string) (domain.Claims, error) {
	if len(m.secret) == 0 {
		return domain.Claims{}, domain.ErrSecretNotDefined
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return domain.Claims{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return domain.Claims{}, errors.New("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	sessionID, _ := claims["session_id"].(string)
	if sessionID == "" {
		return domain.Claims{}, fmt.Errorf("%w: missing session_id", domain.ErrInvalidToken)
	}
	expValue, _ := claims["exp"].(float64)
	return domain.Claims{
		Subject:   sub,
		Email:     email,
		SessionID: sessionID,
		ExpiresAt: time.Unix(int64(expValue), 0),
	}, nil
}

var _ ports.TokenManager = (*JWTTokenManager)(nil)
