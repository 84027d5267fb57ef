package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("nats: object not found")

// ObjectMetadata describes a stored blob.
type ObjectMetadata struct {
	Name     string
	Size     uint64
	Digest   string
	Modified time.Time
}

// ObjectStore is a binding to a JetStream object bucket for arbitrary byte
// blobs. Larger file content lives in the MinIO-backed storage package; this
// store carries broker-local intermediates.
type ObjectStore struct {
	os     jetstream.ObjectStore
	bucket string
}

// NewObjectStore creates (or binds to) an object bucket.
func NewObjectStore(ctx context.Context, client *Client, bucket, description string) (*ObjectStore, error) {
	os, err := client.js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: description,
	})
	if err != nil {
		return nil, fmt.Errorf("nats: create object bucket %q: %w", bucket, err)
	}

	log.WithField("bucket", bucket).Info("object bucket ready")
	return &ObjectStore{os: os, bucket: bucket}, nil
}

// Bucket returns the bucket name.
func (s *ObjectStore) Bucket() string {
	return s.bucket
}

// Put stores a blob and returns its metadata.
func (s *ObjectStore) Put(ctx context.Context, key string, data []byte) (*ObjectMetadata, error) {
	info, err := s.os.PutBytes(ctx, key, data)
	if err != nil {
		return nil, fmt.Errorf("nats: object put %s/%s: %w", s.bucket, key, err)
	}
	return objectMetadata(info), nil
}

// Get fetches a blob.
func (s *ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.os.GetBytes(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("nats: object get %s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

// Stat returns a blob's metadata without fetching its content.
func (s *ObjectStore) Stat(ctx context.Context, key string) (*ObjectMetadata, error) {
	info, err := s.os.GetInfo(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("nats: object stat %s/%s: %w", s.bucket, key, err)
	}
	return objectMetadata(info), nil
}

// Delete removes a blob.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	if err := s.os.Delete(ctx, key); err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("nats: object delete %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func objectMetadata(info *jetstream.ObjectInfo) *ObjectMetadata {
	return &ObjectMetadata{
		Name:     info.Name,
		Size:     info.Size,
		Digest:   info.Digest,
		Modified: info.ModTime,
	}
}
