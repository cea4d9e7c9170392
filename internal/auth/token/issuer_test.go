package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/authgw/internal/cache"
)

var testSecret = []byte("issuer-test-secret")

// unavailableCache fails every operation with a connection error.
type unavailableCache struct{}

func (unavailableCache) Incr(context.Context, string) (int64, error) {
	return 0, errConnRefused
}
func (unavailableCache) ExpireAt(context.Context, string, time.Time) error {
	return errConnRefused
}
func (unavailableCache) SetWithTTL(context.Context, string, string, time.Duration) error {
	return errConnRefused
}
func (unavailableCache) Get(context.Context, string) (string, error) {
	return "", errConnRefused
}
func (unavailableCache) TTL(context.Context, string) (time.Duration, error) {
	return 0, errConnRefused
}
func (unavailableCache) Close() error { return nil }

var errConnRefused = errors.New("connection refused")

func newTestIssuer(t *testing.T, validity time.Duration) (*Issuer, *cache.MemoryCache, *time.Time) {
	t.Helper()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	c := cache.NewMemoryCache(cache.WithClock(clock))
	t.Cleanup(func() { _ = c.Close() })

	i, err := NewIssuer(c, testSecret, validity, WithIssuerClock(clock))
	require.NoError(t, err)
	return i, c, &now
}

func TestNewIssuer_Validation(t *testing.T) {
	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })

	_, err := NewIssuer(c, nil, time.Hour)
	assert.Error(t, err)

	_, err = NewIssuer(c, testSecret, 0)
	assert.Error(t, err)
}

func TestIssueOrReuse_MintsAndCaches(t *testing.T) {
	i, c, _ := newTestIssuer(t, time.Hour)
	ctx := context.Background()

	tok, expiresIn, err := i.IssueOrReuse(ctx, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.Equal(t, time.Hour, expiresIn)

	cached, err := c.Get(ctx, "access_token:alice")
	require.NoError(t, err)
	assert.Equal(t, tok, cached)

	ttl, err := c.TTL(ctx, "access_token:alice")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ttl)
}

func TestIssueOrReuse_ReturnsSameTokenWithRemainingTTL(t *testing.T) {
	i, _, now := newTestIssuer(t, time.Hour)
	ctx := context.Background()

	first, firstExpiry, err := i.IssueOrReuse(ctx, "alice")
	require.NoError(t, err)

	*now = now.Add(20 * time.Minute)

	second, secondExpiry, err := i.IssueOrReuse(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, time.Hour, firstExpiry)
	assert.Equal(t, 40*time.Minute, secondExpiry)
}

func TestIssueOrReuse_MintsNewTokenAfterExpiry(t *testing.T) {
	i, _, now := newTestIssuer(t, time.Hour)
	ctx := context.Background()

	first, _, err := i.IssueOrReuse(ctx, "alice")
	require.NoError(t, err)

	*now = now.Add(61 * time.Minute)

	second, expiresIn, err := i.IssueOrReuse(ctx, "alice")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, time.Hour, expiresIn)
}

func TestIssueOrReuse_DistinctUsersGetDistinctTokens(t *testing.T) {
	i, _, _ := newTestIssuer(t, time.Hour)
	ctx := context.Background()

	alice, _, err := i.IssueOrReuse(ctx, "alice")
	require.NoError(t, err)
	bob, _, err := i.IssueOrReuse(ctx, "bob")
	require.NoError(t, err)

	assert.NotEqual(t, alice, bob)
}

func TestIssueOrReuse_MintsUncachedOnCacheFailure(t *testing.T) {
	i, err := NewIssuer(unavailableCache{}, testSecret, time.Hour)
	require.NoError(t, err)

	tok, expiresIn, err := i.IssueOrReuse(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.Equal(t, time.Hour, expiresIn)
}

// Token claims are verified with an independent JWT implementation so a
// systematic signing mistake cannot hide behind symmetric bugs.
func TestIssueOrReuse_TokenVerifiableIndependently(t *testing.T) {
	i, _, now := newTestIssuer(t, time.Hour)

	tok, _, err := i.IssueOrReuse(context.Background(), "alice")
	require.NoError(t, err)

	parsed, err := jwxjwt.Parse([]byte(tok),
		jwxjwt.WithKey(jwa.HS256, testSecret),
		jwxjwt.WithValidate(false),
	)
	require.NoError(t, err)

	assert.Equal(t, "alice", parsed.Subject())
	assert.Equal(t, now.Add(time.Hour).Unix(), parsed.Expiration().Unix())
	assert.Equal(t, now.Unix(), parsed.IssuedAt().Unix())
	assert.NotEmpty(t, parsed.JwtID())
}

func TestIssueOrReuse_RejectedByWrongKey(t *testing.T) {
	i, _, _ := newTestIssuer(t, time.Hour)

	tok, _, err := i.IssueOrReuse(context.Background(), "alice")
	require.NoError(t, err)

	_, err = jwxjwt.Parse([]byte(tok),
		jwxjwt.WithKey(jwa.HS256, []byte("different-secret")),
		jwxjwt.WithValidate(false),
	)
	assert.Error(t, err)
}
