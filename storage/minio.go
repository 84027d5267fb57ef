// Package storage provides object storage for file content over a
// MinIO/S3-compatible backend. Four buckets are managed: uploaded files,
// processing intermediates, thumbnails, and avatars.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nvisycom/server/common"
	"github.com/nvisycom/server/config"
)

var log = common.Component("storage")

// Bucket names managed by the service.
const (
	BucketFiles         = "files"
	BucketIntermediates = "intermediates"
	BucketThumbnails    = "thumbnails"
	BucketAvatars       = "avatars"
)

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// Service wraps the MinIO client with bucket management and typed helpers.
type Service struct {
	client *minio.Client
}

// NewService connects to the object store and ensures the managed buckets
// exist.
func NewService(ctx context.Context, cfg config.MinioConfig) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: client init: %w", err)
	}

	service := &Service{client: client}
	for _, bucket := range []string{BucketFiles, BucketIntermediates, BucketThumbnails, BucketAvatars} {
		if err := service.ensureBucket(ctx, bucket); err != nil {
			return nil, err
		}
	}

	log.WithField("endpoint", cfg.Endpoint).Info("object storage ready")
	return service, nil
}

func (s *Service) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("storage: check bucket %q: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("storage: create bucket %q: %w", bucket, err)
	}
	log.WithField("bucket", bucket).Info("created bucket")
	return nil
}

// Put streams an object into a bucket and returns its metadata.
func (s *Service) Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) (*ObjectInfo, error) {
	info, err := s.client.PutObject(ctx, bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: put %s/%s: %w", bucket, key, err)
	}
	return &ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  contentType,
		LastModified: time.Now().UTC(),
	}, nil
}

// PutBytes stores an in-memory payload.
func (s *Service) PutBytes(ctx context.Context, bucket, key string, data []byte, contentType string) (*ObjectInfo, error) {
	return s.Put(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), contentType)
}

// Get opens an object for reading. The caller must close the reader.
func (s *Service) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage: get %s/%s: %w", bucket, key, err)
	}
	// GetObject is lazy; a Stat surfaces missing keys immediately.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if isNoSuchKey(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("storage: stat %s/%s: %w", bucket, key, err)
	}
	return obj, nil
}

// Stat returns an object's metadata.
func (s *Service) Stat(ctx context.Context, bucket, key string) (*ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("storage: stat %s/%s: %w", bucket, key, err)
	}
	return &ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

// Delete removes an object. Deleting an absent object is not an error.
func (s *Service) Delete(ctx context.Context, bucket, key string) error {
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("storage: delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}
