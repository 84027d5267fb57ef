package content

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadContentComputesDigest(t *testing.T) {
	data := []byte("hello content pipeline")

	got, meta, err := ReadContent(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, data, got)
	require.NotNil(t, meta.SHA256)

	digest := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(digest[:]), *meta.SHA256)
}

func TestReadContentLimitedBoundary(t *testing.T) {
	data := []byte("exactly sixteen!")
	require.Len(t, data, 16)

	// At exactly the limit the read succeeds.
	got, _, err := ReadContentLimited(bytes.NewReader(data), 16)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// One byte over fails.
	_, _, err = ReadContentLimited(bytes.NewReader(append(data, '!')), 16)
	assert.ErrorIs(t, err, ErrContentTooLarge)
}

func TestReadContentChunked(t *testing.T) {
	data := []byte("abcdefghij")

	var chunks [][]byte
	meta, err := ReadContentChunked(bytes.NewReader(data), 4, func(chunk []byte) error {
		chunks = append(chunks, bytes.Clone(chunk))
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, [][]byte{[]byte("abcd"), []byte("efgh"), []byte("ij")}, chunks)

	digest := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(digest[:]), *meta.SHA256)
}

func TestReadContentChunkedStopsOnCallbackError(t *testing.T) {
	stop := errors.New("enough")
	calls := 0

	_, err := ReadContentChunked(strings.NewReader("abcdefghij"), 2, func([]byte) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, calls)
}

func TestReadContentChunkedRejectsBadChunkSize(t *testing.T) {
	_, err := ReadContentChunked(strings.NewReader("abc"), 0, func([]byte) error { return nil })
	assert.Error(t, err)
}

func TestReadContentVerified(t *testing.T) {
	data := []byte("verified payload")

	got, _, err := ReadContentVerified(bytes.NewReader(data), func(b []byte) bool {
		return bytes.Equal(b, data)
	})
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, _, err = ReadContentVerified(bytes.NewReader(data), func([]byte) bool { return false })
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestWriteContent(t *testing.T) {
	var sink bytes.Buffer
	data := []byte("written payload")

	meta, err := WriteContent(&sink, data)
	require.NoError(t, err)

	assert.Equal(t, data, sink.Bytes())
	require.NotNil(t, meta.SHA256)
	digest := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(digest[:]), *meta.SHA256)
}

func TestWriteContentChunked(t *testing.T) {
	var sink bytes.Buffer

	_, err := WriteContentChunked(&sink, []byte("abcdefghij"), 3)
	require.NoError(t, err)
	assert.Equal(t, "abcdefghij", sink.String())
}

func TestWriteMultipleContent(t *testing.T) {
	var sink bytes.Buffer

	metas, err := WriteMultipleContent(&sink, [][]byte{[]byte("one"), []byte("two"), []byte("three")})
	require.NoError(t, err)

	assert.Len(t, metas, 3)
	assert.Equal(t, "onetwothree", sink.String())
}

func TestWriteContentVerified(t *testing.T) {
	var sink bytes.Buffer
	data := []byte("check me")

	_, err := WriteContentVerified(&sink, data, func() int64 { return int64(sink.Len()) })
	require.NoError(t, err)

	_, err = WriteContentVerified(&sink, data, func() int64 { return -1 })
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestMetadataUUIDsAreUnique(t *testing.T) {
	_, first, err := ReadContent(strings.NewReader("a"))
	require.NoError(t, err)
	_, second, err := ReadContent(strings.NewReader("a"))
	require.NoError(t, err)

	assert.NotEqual(t, first.ContentSourceUUID, second.ContentSourceUUID)
}
