package videostore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaqos/mediaqos/internal/model"
)

func TestMemoryStoreCreateCollision(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &model.VideoRecord{VideoID: "vid-1", Status: model.StatusPendingUpload}))
	err := store.Create(ctx, &model.VideoRecord{VideoID: "vid-1", Status: model.StatusPendingUpload})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &model.VideoRecord{VideoID: "vid-1", Status: model.StatusPendingUpload}))

	got, err := store.Get(ctx, "vid-1")
	require.NoError(t, err)
	got.Status = model.StatusFailed

	again, err := store.Get(ctx, "vid-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingUpload, again.Status, "caller mutation must not leak into the store")
}

func TestMemoryStoreConcurrentIncrements(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &model.VideoRecord{VideoID: "vid-1", Status: model.StatusCompleted}))

	const callers = 100
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

func TestMemoryStoreIncrementMissing(t *testing.T) {
	store := NewMemoryStore()

	err := store.IncrementViews(context.Background(), "nope", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}
