package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nvisycom/server/common"
)

var log = common.Component("auth")

// ErrInvalidToken is returned when a JWT fails signature or claim validation.
var ErrInvalidToken = errors.New("auth: invalid token")

// ErrExpiredToken is returned when a JWT carries an expiry in the past.
var ErrExpiredToken = errors.New("auth: token expired")

// Claims are the JWT session claims. AccessSeq links the token to its
// ApiToken record in the KV store so revocation is KV-driven.
type Claims struct {
	AccessSeq uuid.UUID `json:"access_seq"`
	jwt.RegisteredClaims
}

// SessionKeys holds the Ed25519 key pair used to sign and verify session
// JWTs. Keys are loaded once at startup from PEM files; the handle is cheap
// to copy and safe for concurrent use.
type SessionKeys struct {
	signingKey   ed25519.PrivateKey
	verifyingKey ed25519.PublicKey
	issuer       string
}

// LoadSessionKeys reads the private (signing) and public (verifying) keys
// from PEM files and performs a round-trip self-test. A mismatched pair
// fails here rather than at the first login.
func LoadSessionKeys(privatePEMPath, publicPEMPath string) (*SessionKeys, error) {
	privatePEM, err := os.ReadFile(privatePEMPath)
	if err != nil {
		return nil, fmt.Errorf("auth: read private key file: %w", err)
	}
	publicPEM, err := os.ReadFile(publicPEMPath)
	if err != nil {
		return nil, fmt.Errorf("auth: read public key file: %w", err)
	}
	return NewSessionKeys(privatePEM, publicPEM)
}

// NewSessionKeys parses PEM-encoded keys and validates them with an
// encode/decode round trip.
func NewSessionKeys(privatePEM, publicPEM []byte) (*SessionKeys, error) {
	privateKey, err := jwt.ParseEdPrivateKeyFromPEM(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("auth: parse private key PEM: %w", err)
	}
	publicKey, err := jwt.ParseEdPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("auth: parse public key PEM: %w", err)
	}

	signing, ok := privateKey.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("auth: private key is not Ed25519")
	}
	verifying, ok := publicKey.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("auth: public key is not Ed25519")
	}

	keys := &SessionKeys{
		signingKey:   signing,
		verifyingKey: verifying,
		issuer:       "nvisy.com",
	}

	if err := keys.selfTest(); err != nil {
		return nil, err
	}

	log.Info("session keys loaded and validated")
	return keys, nil
}

// Encode signs session claims for an account. The access sequence must refer
// to a live ApiToken record.
func (k *SessionKeys) Encode(accountID, accessSeq uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		AccessSeq: accessSeq,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			Issuer:    k.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(k.signingKey)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies a JWT and returns its claims. Expired tokens return
// ErrExpiredToken; any other failure returns ErrInvalidToken.
func (k *SessionKeys) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return k.verifyingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// selfTest encodes and decodes a short-lived synthetic claim to prove the
// key pair matches.
func (k *SessionKeys) selfTest() error {
	token, err := k.Encode(uuid.New(), uuid.New(), 5*time.Minute)
	if err != nil {
		return fmt.Errorf("auth: key self-test encode: %w", err)
	}
	if _, err := k.Decode(token); err != nil {
		return fmt.Errorf("auth: key self-test decode (key pair mismatch?): %w", err)
	}
	return nil
}
