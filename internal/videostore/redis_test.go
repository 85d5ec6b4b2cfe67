package videostore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaqos/mediaqos/internal/model"
)

func setupRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client)
}

func TestRedisStoreCreateGetRoundTrip(t *testing.T) {
	store := setupRedisStore(t)
	ctx := context.Background()

	rec := &model.VideoRecord{
		VideoID:     "vid-1",
		Filename:    "clip.mp4",
		ContentType: "video/mp4",
		Status:      model.StatusPendingUpload,
	}
	require.NoError(t, store.Create(ctx, rec))

	got, err := store.Get(ctx, "vid-1")
	require.NoError(t, err)
	assert.Equal(t, "vid-1", got.VideoID)
	assert.Equal(t, "clip.mp4", got.Filename)
	assert.Equal(t, "video/mp4", got.ContentType)
	assert.Equal(t, model.StatusPendingUpload, got.Status)
	assert.Zero(t, got.Views)
	assert.True(t, got.CreatedAt.Equal(rec.CreatedAt))
	assert.Nil(t, got.ProcessedAt)
}

func TestRedisStoreCreateCollision(t *testing.T) {
	store := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &model.VideoRecord{VideoID: "vid-1", Status: model.StatusPendingUpload}))
	err := store.Create(ctx, &model.VideoRecord{VideoID: "vid-1", Status: model.StatusPendingUpload})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestRedisStoreGetMissing(t *testing.T) {
	store := setupRedisStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreUpdateStatusMergesFields(t *testing.T) {
	store := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &model.VideoRecord{VideoID: "vid-1", Filename: "clip.mp4", Status: model.StatusPendingUpload}))

	key := "uploads/vid-1/clip.mp4"
	bucket := "mediaqos-videos"
	size := int64(4096)
	require.NoError(t, store.UpdateStatus(ctx, "vid-1", model.StatusProcessing, Fields{
		S3Key:    &key,
		S3Bucket: &bucket,
		FileSize: &size,
	}))

	got, err := store.Get(ctx, "vid-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, got.Status)
	assert.Equal(t, key, got.S3Key)
	assert.Equal(t, bucket, got.S3Bucket)
	assert.Equal(t, size, got.FileSize)
	// Fields not named in the update stay untouched.
	assert.Equal(t, "clip.mp4", got.Filename)

	processedAt := time.Now().UTC()
	url := "http://localhost:9000/mediaqos-videos/" + key
	require.NoError(t, store.UpdateStatus(ctx, "vid-1", model.StatusCompleted, Fields{
		ProcessedAt: &processedAt,
		VideoURL:    &url,
	}))

	got, err = store.Get(ctx, "vid-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	require.NotNil(t, got.ProcessedAt)
	assert.True(t, got.ProcessedAt.Equal(processedAt))
	assert.Equal(t, url, got.VideoURL)
	assert.Equal(t, key, got.S3Key)
}

func TestRedisStoreUpdateStatusMissing(t *testing.T) {
	store := setupRedisStore(t)

	err := store.UpdateStatus(context.Background(), "nope", model.StatusProcessing, Fields{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreIncrementViewsMissing(t *testing.T) {
	store := setupRedisStore(t)

	err := store.IncrementViews(context.Background(), "nope", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreConcurrentIncrements(t *testing.T) {
	store := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &model.VideoRecord{VideoID: "vid-1", Status: model.StatusCompleted}))

	const callers = 50
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, store.IncrementViews(ctx, "vid-1", 1))
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "vid-1")
	require.NoError(t, err)
	assert.Equal(t, int64(callers), got.Views)
}

func TestRedisStoreScanAll(t *testing.T) {
	store := setupRedisStore(t)
	ctx := context.Background()

	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		require.NoError(t, store.Create(ctx, &model.VideoRecord{VideoID: id, Status: model.StatusPendingUpload}))
	}

	records, err := store.ScanAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	seen := map[string]bool{}
	for _, rec := range records {
		seen[rec.VideoID] = true
	}
	for _, id := range ids {
		assert.True(t, seen[id], "missing record %s", id)
	}
}
