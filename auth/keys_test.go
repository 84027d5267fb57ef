package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generateKeyPEMs creates a fresh Ed25519 key pair in PEM form.
func generateKeyPEMs(t *testing.T) (privatePEM, publicPEM []byte) {
	t.Helper()

	public, private, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	privateDER, err := x509.MarshalPKCS8PrivateKey(private)
	require.NoError(t, err)
	publicDER, err := x509.MarshalPKIXPublicKey(public)
	require.NoError(t, err)

	privatePEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privateDER})
	publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})
	return privatePEM, publicPEM
}

func TestNewSessionKeysSelfTest(t *testing.T) {
	privatePEM, publicPEM := generateKeyPEMs(t)

	keys, err := NewSessionKeys(privatePEM, publicPEM)
	require.NoError(t, err)
	assert.NotNil(t, keys)
}

func TestNewSessionKeysRejectsMismatchedPair(t *testing.T) {
	privatePEM, _ := generateKeyPEMs(t)
	_, otherPublicPEM := generateKeyPEMs(t)

	_, err := NewSessionKeys(privatePEM, otherPublicPEM)
	assert.Error(t, err, "mismatched key pair must fail the round-trip self-test")
}

func TestNewSessionKeysRejectsInvalidPEM(t *testing.T) {
	privatePEM, publicPEM := generateKeyPEMs(t)

	_, err := NewSessionKeys([]byte("not pem"), publicPEM)
	assert.Error(t, err)

	_, err = NewSessionKeys(privatePEM, []byte("not pem"))
	assert.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	privatePEM, publicPEM := generateKeyPEMs(t)
	keys, err := NewSessionKeys(privatePEM, publicPEM)
	require.NoError(t, err)

	accountID := uuid.New()
	accessSeq := uuid.New()

	token, err := keys.Encode(accountID, accessSeq, time.Hour)
	require.NoError(t, err)

	claims, err := keys.Decode(token)
	require.NoError(t, err)

	assert.Equal(t, accountID.String(), claims.Subject)
	assert.Equal(t, accessSeq, claims.AccessSeq)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestDecodeRejectsExpiredToken(t *testing.T) {
	privatePEM, publicPEM := generateKeyPEMs(t)
	keys, err := NewSessionKeys(privatePEM, publicPEM)
	require.NoError(t, err)

	token, err := keys.Encode(uuid.New(), uuid.New(), -time.Minute)
	require.NoError(t, err)

	_, err = keys.Decode(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestDecodeRejectsForeignSignature(t *testing.T) {
	privatePEM, publicPEM := generateKeyPEMs(t)
	keys, err := NewSessionKeys(privatePEM, publicPEM)
	require.NoError(t, err)

	otherPrivate, otherPublic := generateKeyPEMs(t)
	otherKeys, err := NewSessionKeys(otherPrivate, otherPublic)
	require.NoError(t, err)

	token, err := otherKeys.Encode(uuid.New(), uuid.New(), time.Hour)
	require.NoError(t, err)

	_, err = keys.Decode(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
