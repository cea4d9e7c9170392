// Package token mints, caches, and validates HS256 access tokens.
//
// Tokens are stateless: possession of a correctly signed, unexpired
// token is sufficient proof of identity. The cache entry under
// "access_token:<username>" is an optimization that avoids re-minting
// on repeated logins inside the validity window, not a security
// control; the signed exp claim stays the source of truth.
package token

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vyrodovalexey/authgw/internal/cache"
	"github.com/vyrodovalexey/authgw/internal/observability"
)

// KeyPrefix is the cache key prefix for cached access tokens. It is
// disjoint from the rate limit prefix so the two never collide.
const KeyPrefix = "access_token:"

// SigningMethod is the fixed algorithm used for all tokens.
var SigningMethod = jwt.SigningMethodHS256

// Issuer mints new access tokens or reuses cached ones.
type Issuer struct {
	cache    cache.Cache
	secret   []byte
	validity time.Duration
	logger   observability.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// IssuerOption is a functional option for the issuer.
type IssuerOption func(*Issuer)

// WithIssuerLogger sets the logger.
func WithIssuerLogger(logger observability.Logger) IssuerOption {
	return func(i *Issuer) {
		i.logger = logger
	}
}

// WithIssuerMetrics sets the metrics recorder.
func WithIssuerMetrics(m *observability.Metrics) IssuerOption {
	return func(i *Issuer) {
		i.metrics = m
	}
}

// WithIssuerClock overrides the clock. Used by tests.
func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer creates a token issuer signing with secret and issuing
// tokens valid for the given duration.
func NewIssuer(c cache.Cache, secret []byte, validity time.Duration, opts ...IssuerOption) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("signing secret is required")
	}
	if validity <= 0 {
		return nil, fmt.Errorf("token validity must be positive, got %s", validity)
	}

	i := &Issuer{
		cache:    c,
		secret:   secret,
		validity: validity,
		logger:   observability.NopLogger(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i, nil
}

// IssueOrReuse returns an access token for the user and its remaining
// validity. A cached non-expired token is returned unchanged with the
// TTL left on its cache entry; otherwise a new token is minted and
// cached for the full validity duration.
//
// Two concurrent logins may both mint; both tokens are independently
// valid and the last cache write wins, so the race is benign.
func (i *Issuer) IssueOrReuse(ctx context.Context, username string) (string, time.Duration, error) {
	key := KeyPrefix + username

	cached, err := i.cache.Get(ctx, key)
	if err == nil {
		ttl, ttlErr := i.cache.TTL(ctx, key)
		if ttlErr == nil && ttl > 0 {
			i.recordIssued(observability.TokenReused)
			i.logger.Debug("reusing cached access token",
				observability.String("username", username),
				observability.Duration("remaining", ttl),
			)
			return cached, ttl, nil
		}
		// Entry vanished between Get and TTL; mint a fresh token.
	} else if err != cache.ErrCacheMiss {
		// Cache trouble must not block logins; mint without caching.
		i.logger.Warn("token cache unavailable, minting uncached token",
			observability.String("username", username),
			observability.Error(err),
		)
		tok, mintErr := i.mint(username)
		if mintErr != nil {
			return "", 0, mintErr
		}
		i.recordIssued(observability.TokenMinted)
		return tok, i.validity, nil
	}

	tok, err := i.mint(username)
	if err != nil {
		return "", 0, err
	}

	if err := i.cache.SetWithTTL(ctx, key, tok, i.validity); err != nil {
		i.logger.Warn("failed to cache access token",
			observability.String("username", username),
			observability.Error(err),
		)
	}

	i.recordIssued(observability.TokenMinted)
	i.logger.Debug("minted access token",
		observability.String("username", username),
		observability.Duration("validity", i.validity),
	)

	return tok, i.validity, nil
}

// mint creates and signs a new token for the user.
func (i *Issuer) mint(username string) (string, error) {
	now := i.now()

	claims := jwt.RegisteredClaims{
		Subject:   username,
		ExpiresAt: jwt.NewNumericDate(now.Add(i.validity)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.New().String(),
	}

	tok, err := jwt.NewWithClaims(SigningMethod, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tok, nil
}

// recordIssued records the issuance source if metrics are wired.
func (i *Issuer) recordIssued(source string) {
	if i.metrics != nil {
		i.metrics.RecordTokenIssued(source)
	}
}
