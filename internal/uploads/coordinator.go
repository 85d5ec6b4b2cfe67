// Package uploads issues upload grants and seeds the record lifecycle.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediaqos/mediaqos/internal/model"
	"github.com/mediaqos/mediaqos/internal/objectstore"
	"github.com/mediaqos/mediaqos/internal/videostore"
)

// ErrUploadInit flattens every failure mode of RequestUpload. If the grant
// cannot be issued after the record was created, the record simply stays
// PENDING_UPLOAD and the client retries with a fresh video id.
var ErrUploadInit = errors.New("upload initialization failed")

const (
	defaultFilename    = "video.mp4"
	defaultContentType = "video/mp4"
)

// GrantIssuer is the slice of objectstore.Storage the coordinator needs.
type GrantIssuer interface {
	PresignUploadPost(ctx context.Context, key, contentType string, maxBytes int64, ttl time.Duration) (*objectstore.UploadGrant, error)
}

// Result carries the fresh video id plus the grant handed back verbatim.
type Result struct {
	VideoID string
	Grant   *objectstore.UploadGrant
}

// Coordinator creates PENDING_UPLOAD records and issues write grants. It
// never moves bytes itself.
type Coordinator struct {
	store    videostore.Store
	grants   GrantIssuer
	maxBytes int64
	grantTTL time.Duration
	logger   zerolog.Logger
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(store videostore.Store, grants GrantIssuer, maxBytes int64, grantTTL time.Duration, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		grants:   grants,
		maxBytes: maxBytes,
		grantTTL: grantTTL,
		logger:   logger.With().Str("component", "uploads").Logger(),
	}
}

// ObjectKey computes the deterministic storage key for a video. The layout
// is load-bearing: the processing pipeline recovers the video id from the
// second path segment of incoming event keys.
func ObjectKey(videoID, filename string) string {
	return fmt.Sprintf("uploads/%s/%s", videoID, filepath.Base(filename))
}

// RequestUpload creates the record in PENDING_UPLOAD and returns a
// time-boxed, size-bounded POST grant scoped to the computed key.
func (c *Coordinator) RequestUpload(ctx context.Context, filename, contentType string) (*Result, error) {
	if filename == "" {
		filename = defaultFilename
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	videoID := uuid.NewString()
	key := ObjectKey(videoID, filename)

	rec := &model.VideoRecord{
		VideoID:     videoID,
		Filename:    filepath.Base(filename),
		ContentType: contentType,
		Status:      model.StatusPendingUpload,
	}
	if err := c.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: create record: %w", ErrUploadInit, err)
	}

	grant, err := c.grants.PresignUploadPost(ctx, key, contentType, c.maxBytes, c.grantTTL)
	if err != nil {
		c.logger.Error().Err(err).Str("videoId", videoID).Msg("grant issuance failed, record stays PENDING_UPLOAD")
		return nil, fmt.Errorf("%w: presign upload: %w", ErrUploadInit, err)
	}

	c.logger.Info().Str("videoId", videoID).Str("key", key).Msg("upload grant issued")
	return &Result{VideoID: videoID, Grant: grant}, nil
}
