// Package content provides byte-stream read/write primitives shared by the
// file processing pipeline. The same helpers consume local files, network
// streams, and object-store readers; every operation yields ContentMetadata
// describing what moved.
package content

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// ErrContentTooLarge is returned by ReadContentLimited when the source
// exceeds the byte bound.
var ErrContentTooLarge = errors.New("content: source exceeds size limit")

// ErrVerificationFailed is returned when a caller-supplied verifier rejects
// the content.
var ErrVerificationFailed = errors.New("content: verification failed")

// Metadata describes one completed content operation.
type Metadata struct {
	// ContentSourceUUID identifies the operation for correlation.
	ContentSourceUUID uuid.UUID
	// Path is the source or destination path when one exists.
	Path *string
	// SHA256 is the hex digest of the transferred bytes.
	SHA256 *string
}

func newMetadata(data []byte, path *string) *Metadata {
	digest := sha256.Sum256(data)
	hexDigest := hex.EncodeToString(digest[:])
	return &Metadata{
		ContentSourceUUID: uuid.New(),
		Path:              path,
		SHA256:            &hexDigest,
	}
}

// ReadContent reads a source to exhaustion.
func ReadContent(r io.Reader) ([]byte, *Metadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("content: read: %w", err)
	}
	return data, newMetadata(data, nil), nil
}

// ReadContentLimited reads a source that must not exceed maxBytes. A source
// of exactly maxBytes succeeds; one more byte fails with ErrContentTooLarge.
func ReadContentLimited(r io.Reader, maxBytes int64) ([]byte, *Metadata, error) {
	limited := io.LimitReader(r, maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, nil, fmt.Errorf("content: read: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, nil, ErrContentTooLarge
	}
	return data, newMetadata(data, nil), nil
}

// ReadContentChunked streams a source through cb in chunks of chunkSize
// bytes. Reading stops at the first callback error, which is returned
// unwrapped so callers can match on it.
func ReadContentChunked(r io.Reader, chunkSize int, cb func(chunk []byte) error) (*Metadata, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("content: chunk size must be positive, got %d", chunkSize)
	}

	hasher := sha256.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			hasher.Write(chunk)
			if cbErr := cb(chunk); cbErr != nil {
				return nil, cbErr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("content: read: %w", err)
		}
	}

	hexDigest := hex.EncodeToString(hasher.Sum(nil))
	return &Metadata{
		ContentSourceUUID: uuid.New(),
		SHA256:            &hexDigest,
	}, nil
}

// ReadContentVerified reads a source and rejects the result when the
// verifier returns false.
func ReadContentVerified(r io.Reader, verify func(data []byte) bool) ([]byte, *Metadata, error) {
	data, meta, err := ReadContent(r)
	if err != nil {
		return nil, nil, err
	}
	if !verify(data) {
		return nil, nil, ErrVerificationFailed
	}
	return data, meta, nil
}

// WriteContent writes data to a sink.
func WriteContent(w io.Writer, data []byte) (*Metadata, error) {
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("content: write: %w", err)
	}
	return newMetadata(data, nil), nil
}

// WriteContentChunked writes data in chunks of chunkSize bytes.
func WriteContentChunked(w io.Writer, data []byte, chunkSize int) (*Metadata, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("content: chunk size must be positive, got %d", chunkSize)
	}

	for offset := 0; offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if _, err := w.Write(data[offset:end]); err != nil {
			return nil, fmt.Errorf("content: write: %w", err)
		}
	}
	return newMetadata(data, nil), nil
}

// WriteMultipleContent writes each payload in order and returns one
// metadata record per payload.
func WriteMultipleContent(w io.Writer, payloads [][]byte) ([]*Metadata, error) {
	metas := make([]*Metadata, 0, len(payloads))
	for _, payload := range payloads {
		meta, err := WriteContent(w, payload)
		if err != nil {
			return metas, err
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// AppendContent writes data to the end of a seekable sink.
func AppendContent(ws io.WriteSeeker, data []byte) (*Metadata, error) {
	if _, err := ws.Seek(0, io.SeekEnd); err != nil {
		return nil, fmt.Errorf("content: seek: %w", err)
	}
	return WriteContent(ws, data)
}

// WriteContentVerified writes data and confirms the sink-reported size via
// checkSize. Sinks that cannot report a size pass a negative value to fail.
func WriteContentVerified(w io.Writer, data []byte, checkSize func() int64) (*Metadata, error) {
	meta, err := WriteContent(w, data)
	if err != nil {
		return nil, err
	}
	if checkSize != nil && checkSize() != int64(len(data)) {
		return nil, ErrVerificationFailed
	}
	return meta, nil
}
