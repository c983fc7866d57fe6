package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ksyq12/tsm/internal/errors"
)

const issuer = "tsm"

// Tokens issues and verifies HS256 session tokens. The subject is the
// user's public id.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a Tokens for secret. Tokens expire after ttl.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the session lifetime.
func (t *Tokens) TTL() time.Duration {
	return t.ttl
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Version int `json:"ver,omitempty"`
}

// Session is what a verified token says about its holder.
type Session struct {
	Subject string
	Version int // must match the user's current token version
}

// Issue signs a token for publicID at the given token version and returns it
// with its expiry.
func (t *Tokens) Issue(publicID string, version int) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   publicID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Version: version,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(errors.ErrCodeInternal, "failed to sign token", err)
	}
	return signed, expires, nil
}

// Verify checks the signature and expiry of tokenString and returns the
// session it carries.
func (t *Tokens) Verify(tokenString string) (Session, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Session{}, &errors.AppError{Code: errors.ErrCodeUnauthorized, Message: "invalid token", Err: err}
	}
	if claims.Subject == "" {
		return Session{}, errors.Unauthorized("token has no subject")
	}
	return Session{Subject: claims.Subject, Version: claims.Version}, nil
}

// NewResetToken returns a random password reset token and the hash to store
// for it.
func NewResetToken() (raw, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	raw = hex.EncodeToString(buf)
	return raw, HashResetToken(raw), nil
}

// HashResetToken hashes a raw reset token for storage and lookup.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
