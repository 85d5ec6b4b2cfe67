// Package videostore is the persistence layer for video records. Every other
// component mutates records exclusively through the Store interface, which
// keeps the pipeline testable against the in-memory implementation.
package videostore

import (
	"context"
	"errors"
	"time"

	"github.com/mediaqos/mediaqos/internal/model"
)

var (
	// ErrNotFound is returned when no record exists for the given video id.
	ErrNotFound = errors.New("video record not found")
	// ErrAlreadyExists is returned by Create on a video id collision.
	ErrAlreadyExists = errors.New("video record already exists")
	// ErrUnavailable wraps transient store failures; callers decide whether
	// to retry (the queue redelivers, the HTTP layer answers 500).
	ErrUnavailable = errors.New("video store unavailable")
)

// opTimeout bounds every store round trip so no pipeline stage can block
// indefinitely on a wedged backend.
const opTimeout = 3 * time.Second

// Fields carries the optional metadata merged into a record by UpdateStatus.
// Nil members are left untouched, mirroring a partial update expression.
type Fields struct {
	S3Key        *string
	S3Bucket     *string
	FileSize     *int64
	ProcessedAt  *time.Time
	VideoURL     *string
	ErrorMessage *string
}

// Store is the record store adapter. UpdateStatus is a blind merge of the
// named fields, not a compare-and-swap; idempotency is the caller's job.
// IncrementViews must be a single atomic operation at the store level so
// concurrent view tracking never loses an update.
type Store interface {
	Create(ctx context.Context, rec *model.VideoRecord) error
	Get(ctx context.Context, videoID string) (*model.VideoRecord, error)
	UpdateStatus(ctx context.Context, videoID string, status model.VideoStatus, fields Fields) error
	IncrementViews(ctx context.Context, videoID string, delta int64) error
	ScanAll(ctx context.Context) ([]*model.VideoRecord, error)
}
