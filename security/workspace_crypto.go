// Package security implements the workspace-scoped cryptography used to
// protect third-party connection credentials at rest.
//
// A process-wide master key deterministically derives one key per workspace
// via HKDF-SHA256; derived keys seal and open connection blobs with
// XChaCha20-Poly1305. Determinism keeps ciphertexts readable across restarts
// and horizontal scaling.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// MasterKeySize is the required master key length in bytes.
	MasterKeySize = 32

	// derivationInfo binds derived keys to this scheme version. Changing it
	// invalidates every existing ciphertext.
	derivationInfo = "nvisy-workspace-v1"

	// blobVersion prefixes every sealed blob so the format can evolve.
	blobVersion = byte(1)
)

var (
	// ErrInvalidMasterKey indicates a master key of the wrong length.
	ErrInvalidMasterKey = errors.New("security: master key must be 32 bytes")

	// ErrMalformedBlob indicates a sealed blob that is too short or carries
	// an unknown version byte.
	ErrMalformedBlob = errors.New("security: malformed encrypted blob")

	// ErrDecryptFailed indicates an authentication failure while opening a
	// sealed blob (wrong key, wrong associated data, or tampering).
	ErrDecryptFailed = errors.New("security: decryption failed")
)

// WorkspaceCipher derives per-workspace keys from a master key and performs
// authenticated encryption of connection data.
type WorkspaceCipher struct {
	masterKey []byte
}

// NewWorkspaceCipher creates a cipher around a 32-byte master key.
func NewWorkspaceCipher(masterKey []byte) (*WorkspaceCipher, error) {
	if len(masterKey) != MasterKeySize {
		return nil, ErrInvalidMasterKey
	}
	key := make([]byte, MasterKeySize)
	copy(key, masterKey)
	return &WorkspaceCipher{masterKey: key}, nil
}

// DeriveKey derives the encryption key for a workspace. Derivation is
// deterministic: the same master key and workspace id always produce the
// same key.
func (c *WorkspaceCipher) DeriveKey(workspaceID uuid.UUID) ([]byte, error) {
	salt := workspaceID[:]
	reader := hkdf.New(sha256.New, c.masterKey, salt, []byte(derivationInfo))

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("security: key derivation: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext under the workspace-derived key. The returned blob
// is version || nonce || ciphertext+tag. The associated data binds the blob
// to the (workspace, connection) pair so a ciphertext cannot be replayed
// under another connection.
func (c *WorkspaceCipher) Seal(workspaceID, connectionID uuid.UUID, plaintext []byte) ([]byte, error) {
	key, err := c.DeriveKey(workspaceID)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("security: cipher init: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("security: nonce generation: %w", err)
	}

	blob := make([]byte, 0, 1+len(nonce)+len(plaintext)+aead.Overhead())
	blob = append(blob, blobVersion)
	blob = append(blob, nonce...)
	blob = aead.Seal(blob, nonce, plaintext, associatedData(workspaceID, connectionID))
	return blob, nil
}

// Open decrypts a blob produced by Seal. It fails if the key, associated
// data, or blob contents do not match.
func (c *WorkspaceCipher) Open(workspaceID, connectionID uuid.UUID, blob []byte) ([]byte, error) {
	if len(blob) < 1+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, ErrMalformedBlob
	}
	if blob[0] != blobVersion {
		return nil, ErrMalformedBlob
	}

	key, err := c.DeriveKey(workspaceID)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("security: cipher init: %w", err)
	}

	nonce := blob[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := blob[1+chacha20poly1305.NonceSizeX:]

	plaintext, err := aead.Open(nil, nonce, ciphertext, associatedData(workspaceID, connectionID))
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

func associatedData(workspaceID, connectionID uuid.UUID) []byte {
	aad := make([]byte, 0, 32)
	aad = append(aad, workspaceID[:]...)
	aad = append(aad, connectionID[:]...)
	return aad
}
