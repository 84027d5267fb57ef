package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// ErrKeyNotFound is returned by KvStore.Get for absent keys.
var ErrKeyNotFound = errors.New("nats: key not found")

// KvStore is a typed view over a JetStream key-value bucket. Values are
// JSON-serialized; the bucket carries a default TTL applied by the broker.
type KvStore[V any] struct {
	kv     jetstream.KeyValue
	bucket string
}

// NewKvStore creates (or binds to) a bucket with the given TTL and
// description.
func NewKvStore[V any](ctx context.Context, client *Client, bucket, description string, ttl time.Duration) (*KvStore[V], error) {
	kv, err := client.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: description,
		TTL:         ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("nats: create kv bucket %q: %w", bucket, err)
	}

	log.WithFields(map[string]any{
		"bucket": bucket,
		"ttl":    ttl.String(),
	}).Info("kv bucket ready")

	return &KvStore[V]{kv: kv, bucket: bucket}, nil
}

// Bucket returns the bucket name.
func (s *KvStore[V]) Bucket() string {
	return s.bucket
}

// Get fetches and decodes a value. Absent keys return ErrKeyNotFound.
func (s *KvStore[V]) Get(ctx context.Context, key string) (V, error) {
	var value V

	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return value, ErrKeyNotFound
		}
		return value, fmt.Errorf("nats: kv get %s/%s: %w", s.bucket, key, err)
	}

	if err := json.Unmarshal(entry.Value(), &value); err != nil {
		return value, fmt.Errorf("nats: kv decode %s/%s: %w", s.bucket, key, err)
	}
	return value, nil
}

// Put encodes and stores a value. Writes are last-writer-wins.
func (s *KvStore[V]) Put(ctx context.Context, key string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("nats: kv encode %s/%s: %w", s.bucket, key, err)
	}
	if _, err := s.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("nats: kv put %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *KvStore[V]) Delete(ctx context.Context, key string) error {
	if err := s.kv.Purge(ctx, key); err != nil {
		return fmt.Errorf("nats: kv delete %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Keys lists all keys in the bucket. An empty bucket yields an empty slice.
func (s *KvStore[V]) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("nats: kv keys %s: %w", s.bucket, err)
	}
	return keys, nil
}
