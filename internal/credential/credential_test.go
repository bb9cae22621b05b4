package credential

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashVerifyRoundTrip(t *testing.T) {
	h := NewHasher(4)
	hash, err := h.Hash("s3cret-password")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	require.NotContains(t, hash, "s3cret-password")

	require.True(t, h.Verify(hash, "s3cret-password"))
	require.False(t, h.Verify(hash, "wrong-password"))
}

func TestHashIsSaltedPerCall(t *testing.T) {
	h := NewHasher(4)
	first, err := h.Hash("same-input")
	require.NoError(t, err)
	second, err := h.Hash("same-input")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.True(t, h.Verify(first, "same-input"))
	require.True(t, h.Verify(second, "same-input"))
}

func TestVerifyGarbageHash(t *testing.T) {
	h := NewHasher(0)
	require.False(t, h.Verify("not-a-bcrypt-hash", "anything"))
}
