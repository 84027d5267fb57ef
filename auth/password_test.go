package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordProducesPHCString(t *testing.T) {
	hasher := NewPasswordHasher()

	hash, err := hasher.HashPassword("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"), "hash should be PHC format, got %q", hash)
	assert.Len(t, strings.Split(hash, "$"), 6)
}

func TestHashPasswordUsesFreshSalts(t *testing.T) {
	hasher := NewPasswordHasher()

	first, err := hasher.HashPassword("same password")
	require.NoError(t, err)
	second, err := hasher.HashPassword("same password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVerifyPasswordRoundTrip(t *testing.T) {
	hasher := NewPasswordHasher()

	hash, err := hasher.HashPassword("s3cret-passphrase")
	require.NoError(t, err)

	assert.NoError(t, hasher.VerifyPassword("s3cret-passphrase", hash))
	assert.ErrorIs(t, hasher.VerifyPassword("wrong-passphrase", hash), ErrInvalidCredentials)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	hasher := NewPasswordHasher()

	for _, malformed := range []string{
		"",
		"not a hash",
		"$argon2id$v=19$m=65536,t=3,p=2$toofewparts",
		"$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
	} {
		assert.ErrorIs(t, hasher.VerifyPassword("anything", malformed), ErrMalformedHash, "input %q", malformed)
	}
}

func TestVerifyDummyDoesNotPanic(t *testing.T) {
	hasher := NewPasswordHasher()
	hasher.VerifyDummy("whatever was typed")
}
