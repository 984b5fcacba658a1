package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHasher(t *testing.T) *Argon2Hasher {
	t.Helper()
	params := Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	h, err := NewArgon2Hasher(params, NewHashPool(2))
	require.NoError(t, err)
	return h
}

func TestArgon2Hasher_VerifySoundness(t *testing.T) {
	h := newTestHasher(t)
	ctx := context.Background()

	hash, err := h.Hash(ctx, "correct-password")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	t.Run("matching password verifies", func(t *testing.T) {
		assert.NoError(t, h.Verify(ctx, hash, "correct-password"))
	})

	t.Run("wrong password fails", func(t *testing.T) {
		assert.Error(t, h.Verify(ctx, hash, "wrong-password"))
	})
}

func TestArgon2Hasher_DistinctSaltsPerHash(t *testing.T) {
	h := newTestHasher(t)
	ctx := context.Background()

	h1, err := h.Hash(ctx, "same-password")
	require.NoError(t, err)
	h2, err := h.Hash(ctx, "same-password")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.NoError(t, h.Verify(ctx, h1, "same-password"))
	assert.NoError(t, h.Verify(ctx, h2, "same-password"))
}

func TestArgon2Hasher_DummyHashVerifies(t *testing.T) {
	h := newTestHasher(t)
	ctx := context.Background()

	// DummyHash is derived from the fixed dummyPassword constant, so it
	// must itself verify successfully — sign_in's enumeration-resistant
	// path relies on this to make a nonexistent-user check look
	// identical to a real one.
	assert.NoError(t, h.Verify(ctx, h.DummyHash(), dummyPassword))
	assert.Error(t, h.Verify(ctx, h.DummyHash(), "anything-else"))
}
