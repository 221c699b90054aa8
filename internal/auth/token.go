package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/meridian-clinic/meridian/internal/shared"
)

// TokenSigner issues and verifies symmetric-key signed bearer tokens.
// Tokens are self-contained: verification is a pure cryptographic check
// with no store lookup.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenSigner constructs a signer with the given HS256 secret and
// token lifetime.
func NewTokenSigner(secret []byte, ttl time.Duration) *TokenSigner {
	return &TokenSigner{secret: secret, ttl: ttl, now: time.Now}
}

// TTL returns the configured token lifetime.
func (s *TokenSigner) TTL() time.Duration {
	return s.ttl
}

// Sign mints a token binding the account identifier with a fresh expiry.
func (s *TokenSigner) Sign(accountID uuid.UUID) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   accountID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})
	return token.SignedString(s.secret)
}

// Verify checks signature and expiry and returns the bound account
// identifier. Any parse, signature, or expiry failure maps to
// shared.ErrInvalidToken.
func (s *TokenSigner) Verify(tokenString string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return uuid.Nil, shared.ErrInvalidToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, shared.ErrInvalidToken
	}
	return id, nil
}
