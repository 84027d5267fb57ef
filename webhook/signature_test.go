package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignMatchesReferenceComputation(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"event":"document.created"}`)
	timestamp := int64(1700000000)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("1700000000."))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, expected, Sign(secret, timestamp, body))
}

func TestSignHasHeaderForm(t *testing.T) {
	signature := Sign("secret", 12345, []byte("payload"))
	assert.True(t, strings.HasPrefix(signature, "sha256="))
	assert.Len(t, signature, len("sha256=")+64)
}

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"hello":"world"}`)
	timestamp := int64(1700000000)

	signature := Sign(secret, timestamp, body)

	assert.True(t, VerifySignature(secret, timestamp, body, signature))
	assert.False(t, VerifySignature("other secret", timestamp, body, signature))
	assert.False(t, VerifySignature(secret, timestamp+1, body, signature))
	assert.False(t, VerifySignature(secret, timestamp, []byte("tampered"), signature))
}

func TestEventCategory(t *testing.T) {
	assert.Equal(t, "document", DocumentCreated.Category())
	assert.Equal(t, "connection", ConnectionDesynced.Category())
	assert.Equal(t, "pipeline_run", PipelineRunFailed.Category())
}
