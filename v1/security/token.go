// Package security holds the request protection checks run before a submission is accepted:
// anti-forgery tokens, IP bans, captcha verification and spam classification.
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "attribute-forms"

// ErrScopeMismatch is returned when a token was issued for a different form instance
var ErrScopeMismatch = errors.New("token scope mismatch")

// TokenValidator checks an anti-forgery token against a scope
type TokenValidator interface {
	Validate(token, scope string) error
}

// ScopeClaims are the claims carried by an anti-forgery token
type ScopeClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// TokenService issues and validates short-lived HS256 tokens bound to a scope
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate issues a token for scope
func (s *TokenService) Generate(scope string) (string, error) {
	now := s.now()
	claims := ScopeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Scope: scope,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate checks signature, expiry and scope
func (s *TokenService) Validate(tokenString, scope string) error {
	if tokenString == "" {
		return errors.New("token is empty")
	}
	claims := &ScopeClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return err
	}
	if claims.Scope != scope {
		return fmt.Errorf("%w: expected %s, got %s", ErrScopeMismatch, scope, claims.Scope)
	}
	return nil
}
