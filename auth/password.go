// Package auth implements the authentication and authorization kernel:
// Argon2id password hashing, Ed25519 JWT session keys, API token claims, and
// role-based permission resolution over workspace membership.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters following the OWASP recommendation for interactive
// logins. Encoded into every hash so they can be raised later without
// invalidating stored hashes.
const (
	argonMemoryKiB = 64 * 1024
	argonTime      = 3
	argonThreads   = 2
	argonSaltLen   = 16
	argonKeyLen    = 32
)

var (
	// ErrInvalidCredentials is returned when a password does not match its hash.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrMalformedHash is returned when a stored hash is not a valid PHC string.
	ErrMalformedHash = errors.New("auth: malformed password hash")
)

// PasswordHasher hashes and verifies passwords with Argon2id. The zero value
// is not usable; construct with NewPasswordHasher.
type PasswordHasher struct {
	memory  uint32
	time    uint32
	threads uint8
}

// NewPasswordHasher creates a hasher with the default parameters.
func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{
		memory:  argonMemoryKiB,
		time:    argonTime,
		threads: argonThreads,
	}
}

// HashPassword hashes a password with a fresh random salt and returns a PHC
// format string ($argon2id$v=19$m=...,t=...,p=...$salt$digest) suitable for
// long-term storage.
func (h *PasswordHasher) HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: salt generation: %w", err)
	}

	digest := argon2.IDKey([]byte(password), salt, h.time, h.memory, h.threads, argonKeyLen)

	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memory, h.time, h.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	)
	return encoded, nil
}

// VerifyPassword checks a password against a stored PHC hash. The comparison
// is constant-time. Returns ErrInvalidCredentials on mismatch.
func (h *PasswordHasher) VerifyPassword(password, storedHash string) error {
	params, salt, digest, err := decodeHash(storedHash)
	if err != nil {
		return err
	}

	computed := argon2.IDKey([]byte(password), salt, params.time, params.memory, params.threads, uint32(len(digest)))
	if subtle.ConstantTimeCompare(computed, digest) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// VerifyDummy burns the same CPU cost as a real verification. The login path
// calls this when no account matches the supplied email, so response timing
// does not reveal whether an account exists.
func (h *PasswordHasher) VerifyDummy(password string) {
	salt := make([]byte, argonSaltLen)
	argon2.IDKey([]byte(password), salt, h.time, h.memory, h.threads, argonKeyLen)
}

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
}

func decodeHash(encoded string) (argonParams, []byte, []byte, error) {
	var params argonParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return params, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return params, nil, nil, ErrMalformedHash
	}

	var threads uint
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &threads); err != nil {
		return params, nil, nil, ErrMalformedHash
	}
	params.threads = uint8(threads)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, ErrMalformedHash
	}

	digest, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, ErrMalformedHash
	}

	return params, salt, digest, nil
}
