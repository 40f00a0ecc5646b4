// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/switchyard-ci/switchyard/lib/access"
	"github.com/switchyard-ci/switchyard/lib/clock"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "switchyard_session"

// DefaultSessionTTL is how long a login session stays valid.
const DefaultSessionTTL = 12 * time.Hour

// Sessions issues and verifies the signed session cookies that carry
// caller identity between the login route and every other route.
// Tokens are HS256 JWTs; the subject claim is the identity.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock

	// secure marks issued cookies Secure. Disabled only in the
	// development deployment mode, alongside authentication itself.
	secure bool
}

// SessionConfig configures Sessions. Secret is required; TTL defaults
// to DefaultSessionTTL and Clock to the real clock.
type SessionConfig struct {
	Secret []byte
	TTL    time.Duration
	Secure bool
	Clock  clock.Clock
}

// NewSessions creates a session manager.
func NewSessions(config SessionConfig) (*Sessions, error) {
	if len(config.Secret) == 0 {
		return nil, fmt.Errorf("web: session secret is empty")
	}
	ttl := config.TTL
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Sessions{
		secret: config.Secret,
		ttl:    ttl,
		clock:  clk,
		secure: config.Secure,
	}, nil
}

// Issue writes a session cookie for the identity onto the response.
func (s *Sessions) Issue(writer http.ResponseWriter, identity access.Identity) error {
	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   string(identity),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("web: signing session token: %w", err)
	}

	http.SetCookie(writer, &http.Cookie{
		Name:     SessionCookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(s.ttl / time.Second),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Verify extracts the caller identity from the request's session
// cookie. A missing, malformed, or expired cookie yields Anonymous —
// the request proceeds unauthenticated and the policy decides.
func (s *Sessions) Verify(request *http.Request) access.Identity {
	cookie, err := request.Cookie(SessionCookieName)
	if err != nil {
		return access.Anonymous
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
	)
	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(cookie.Value, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return access.Anonymous
	}
	return access.Identity(claims.Subject)
}

type identityKey struct{}

// withIdentity stores the caller identity on the request context.
func withIdentity(ctx context.Context, identity access.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the caller identity attached by the
// router's session middleware. Anonymous when none is present.
func IdentityFromContext(ctx context.Context) access.Identity {
	if identity, ok := ctx.Value(identityKey{}).(access.Identity); ok {
		return identity
	}
	return access.Anonymous
}
