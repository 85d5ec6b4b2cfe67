package uploads

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaqos/mediaqos/internal/model"
	"github.com/mediaqos/mediaqos/internal/objectstore"
	"github.com/mediaqos/mediaqos/internal/videostore"
)

type fakeGrantIssuer struct {
	err      error
	lastKey  string
	lastType string
	maxBytes int64
	ttl      time.Duration
}

func (f *fakeGrantIssuer) PresignUploadPost(_ context.Context, key, contentType string, maxBytes int64, ttl time.Duration) (*objectstore.UploadGrant, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastKey = key
	f.lastType = contentType
	f.maxBytes = maxBytes
	f.ttl = ttl
	return &objectstore.UploadGrant{
		URL:    "http://storage.local/mediaqos-videos",
		Fields: map[string]string{"key": key, "Content-Type": contentType},
	}, nil
}

func TestRequestUploadCreatesPendingRecord(t *testing.T) {
	store := videostore.NewMemoryStore()
	issuer := &fakeGrantIssuer{}
	c := NewCoordinator(store, issuer, 100<<20, time.Hour, zerolog.Nop())

	res, err := c.RequestUpload(context.Background(), "clip.mp4", "video/mp4")
	require.NoError(t, err)
	require.NotEmpty(t, res.VideoID)

	rec, err := store.Get(context.Background(), res.VideoID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingUpload, rec.Status)
	assert.Equal(t, "clip.mp4", rec.Filename)
	assert.Equal(t, "video/mp4", rec.ContentType)
	assert.Zero(t, rec.Views)

	assert.Equal(t, "uploads/"+res.VideoID+"/clip.mp4", issuer.lastKey)
	assert.Equal(t, "video/mp4", issuer.lastType)
	assert.Equal(t, int64(100<<20), issuer.maxBytes)
	assert.Equal(t, time.Hour, issuer.ttl)
	assert.Equal(t, "http://storage.local/mediaqos-videos", res.Grant.URL)
}

func TestRequestUploadGeneratesUniqueIDs(t *testing.T) {
	store := videostore.NewMemoryStore()
	c := NewCoordinator(store, &fakeGrantIssuer{}, 100<<20, time.Hour, zerolog.Nop())

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		res, err := c.RequestUpload(context.Background(), "clip.mp4", "video/mp4")
		require.NoError(t, err)
		require.False(t, seen[res.VideoID], "video id %s issued twice", res.VideoID)
		seen[res.VideoID] = true
	}
}

func TestRequestUploadDefaultsFilenameAndContentType(t *testing.T) {
	store := videostore.NewMemoryStore()
	issuer := &fakeGrantIssuer{}
	c := NewCoordinator(store, issuer, 100<<20, time.Hour, zerolog.Nop())

	res, err := c.RequestUpload(context.Background(), "", "")
	require.NoError(t, err)

	rec, err := store.Get(context.Background(), res.VideoID)
	require.NoError(t, err)
	assert.Equal(t, "video.mp4", rec.Filename)
	assert.Equal(t, "video/mp4", rec.ContentType)
}

func TestRequestUploadStripsPathFromFilename(t *testing.T) {
	store := videostore.NewMemoryStore()
	issuer := &fakeGrantIssuer{}
	c := NewCoordinator(store, issuer, 100<<20, time.Hour, zerolog.Nop())

	res, err := c.RequestUpload(context.Background(), "../../etc/passwd", "video/mp4")
	require.NoError(t, err)
	assert.False(t, strings.Contains(issuer.lastKey, ".."), "object key must not contain path traversal: %s", issuer.lastKey)
	assert.Equal(t, "uploads/"+res.VideoID+"/passwd", issuer.lastKey)
}

func TestRequestUploadGrantFailureLeavesPendingRecord(t *testing.T) {
	store := videostore.NewMemoryStore()
	issuer := &fakeGrantIssuer{err: errors.New("storage unreachable")}
	c := NewCoordinator(store, issuer, 100<<20, time.Hour, zerolog.Nop())

	_, err := c.RequestUpload(context.Background(), "clip.mp4", "video/mp4")
	require.ErrorIs(t, err, ErrUploadInit)

	// The record stays PENDING_UPLOAD and is simply never completed; the
	// client retries and receives a fresh video id.
	records, err := store.ScanAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.StatusPendingUpload, records[0].Status)
}
