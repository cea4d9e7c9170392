package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hashed, err := Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", string(hashed))

	assert.True(t, Verify("s3cret", hashed))
	assert.False(t, Verify("wrong", hashed))
	assert.False(t, Verify("", hashed))
}

func TestHash_DistinctSalts(t *testing.T) {
	h1, err := Hash("s3cret")
	require.NoError(t, err)
	h2, err := Hash("s3cret")
	require.NoError(t, err)

	// Same password, different salts.
	assert.NotEqual(t, h1, h2)
	assert.True(t, Verify("s3cret", h1))
	assert.True(t, Verify("s3cret", h2))
}

func TestVerify_InvalidHash(t *testing.T) {
	assert.False(t, Verify("s3cret", []byte("not-a-bcrypt-hash")))
	assert.False(t, Verify("s3cret", nil))
}
