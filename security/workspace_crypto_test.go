package security

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMasterKey(b byte) []byte {
	key := make([]byte, MasterKeySize)
	for i := range key {
		key[i] = b
	}
	return key
}

func TestNewWorkspaceCipherRejectsShortKey(t *testing.T) {
	_, err := NewWorkspaceCipher([]byte("too short"))
	assert.ErrorIs(t, err, ErrInvalidMasterKey)
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	cipher, err := NewWorkspaceCipher(testMasterKey(0x42))
	require.NoError(t, err)

	workspaceID := uuid.New()

	first, err := cipher.DeriveKey(workspaceID)
	require.NoError(t, err)
	second, err := cipher.DeriveKey(workspaceID)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	other, err := cipher.DeriveKey(uuid.New())
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestSealOpenRoundTrip(t *testing.T) {
	cipher, err := NewWorkspaceCipher(testMasterKey(0x42))
	require.NoError(t, err)

	workspaceID := uuid.New()
	connectionID := uuid.New()
	plaintext := []byte(`{"token":"xoxb-secret"}`)

	blob, err := cipher.Seal(workspaceID, connectionID, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, blob)
	assert.Equal(t, byte(1), blob[0])

	opened, err := cipher.Open(workspaceID, connectionID, blob)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpenFailsWithWrongKey(t *testing.T) {
	cipher, err := NewWorkspaceCipher(testMasterKey(0x42))
	require.NoError(t, err)
	other, err := NewWorkspaceCipher(testMasterKey(0x43))
	require.NoError(t, err)

	workspaceID := uuid.New()
	connectionID := uuid.New()

	blob, err := cipher.Seal(workspaceID, connectionID, []byte("secret"))
	require.NoError(t, err)

	_, err = other.Open(workspaceID, connectionID, blob)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestOpenFailsWithWrongAssociatedData(t *testing.T) {
	cipher, err := NewWorkspaceCipher(testMasterKey(0x42))
	require.NoError(t, err)

	workspaceID := uuid.New()
	connectionID := uuid.New()

	blob, err := cipher.Seal(workspaceID, connectionID, []byte("secret"))
	require.NoError(t, err)

	// Wrong connection id.
	_, err = cipher.Open(workspaceID, uuid.New(), blob)
	assert.ErrorIs(t, err, ErrDecryptFailed)

	// Wrong workspace id (different derived key and AAD).
	_, err = cipher.Open(uuid.New(), connectionID, blob)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestOpenRejectsMalformedBlobs(t *testing.T) {
	cipher, err := NewWorkspaceCipher(testMasterKey(0x42))
	require.NoError(t, err)

	workspaceID := uuid.New()
	connectionID := uuid.New()

	_, err = cipher.Open(workspaceID, connectionID, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformedBlob)

	blob, err := cipher.Seal(workspaceID, connectionID, []byte("secret"))
	require.NoError(t, err)

	// Unknown version byte.
	tampered := bytes.Clone(blob)
	tampered[0] = 9
	_, err = cipher.Open(workspaceID, connectionID, tampered)
	assert.ErrorIs(t, err, ErrMalformedBlob)

	// Flipped ciphertext byte fails authentication.
	tampered = bytes.Clone(blob)
	tampered[len(tampered)-1] ^= 0xFF
	_, err = cipher.Open(workspaceID, connectionID, tampered)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}
