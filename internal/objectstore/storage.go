// Package objectstore wraps MinIO/S3 interactions: presigned upload grants
// for clients and metadata probes for the processing pipeline.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrObjectMissing is returned by Stat when the key does not exist in the
// bucket. This is a permanent condition for a given event, not a retryable
// one.
var ErrObjectMissing = errors.New("object not found in storage")

// probeTimeout bounds the metadata probe so a wedged endpoint surfaces as a
// transient failure instead of hanging a worker.
const probeTimeout = 10 * time.Second

// Config holds the connection and bucket settings for the store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
}

// UploadGrant is a time-boxed, size-bounded permission to POST bytes to one
// exact object key. URL and Fields are handed to the client verbatim.
type UploadGrant struct {
	URL    string            `json:"uploadUrl"`
	Fields map[string]string `json:"uploadFields"`
}

// Storage wraps a MinIO client scoped to the videos bucket.
type Storage struct {
	client *minio.Client
	bucket string
	region string
}

// New creates a MinIO client from cfg.
func New(cfg Config) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
	}, nil
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.bucket
}

// EnsureBucket makes sure the videos bucket exists before use.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// PresignUploadPost issues a POST policy scoped to exactly one key and
// content type, valid for ttl and capped at maxBytes.
func (s *Storage) PresignUploadPost(ctx context.Context, key, contentType string, maxBytes int64, ttl time.Duration) (*UploadGrant, error) {
	policy := minio.NewPostPolicy()
	if err := policy.SetBucket(s.bucket); err != nil {
		return nil, fmt.Errorf("post policy bucket: %w", err)
	}
	if err := policy.SetKey(key); err != nil {
		return nil, fmt.Errorf("post policy key: %w", err)
	}
	if err := policy.SetContentType(contentType); err != nil {
		return nil, fmt.Errorf("post policy content type: %w", err)
	}
	if err := policy.SetContentLengthRange(0, maxBytes); err != nil {
		return nil, fmt.Errorf("post policy length range: %w", err)
	}
	if err := policy.SetExpires(time.Now().UTC().Add(ttl)); err != nil {
		return nil, fmt.Errorf("post policy expiry: %w", err)
	}
	u, fields, err := s.client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return nil, fmt.Errorf("presign post policy: %w", err)
	}
	return &UploadGrant{URL: u.String(), Fields: fields}, nil
}

// Stat probes the object's metadata and returns its size. A missing object
// maps to ErrObjectMissing; anything else is treated as transient by the
// caller.
func (s *Storage) Stat(ctx context.Context, bucket, key string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return 0, ErrObjectMissing
		}
		return 0, fmt.Errorf("stat object %s/%s: %w", bucket, key, err)
	}
	return info.Size, nil
}

// ObjectURL builds the public URL recorded on completed videos.
func (s *Storage) ObjectURL(bucket, key string) string {
	base := s.client.EndpointURL()
	return fmt.Sprintf("%s://%s/%s/%s", base.Scheme, base.Host, bucket, key)
}
