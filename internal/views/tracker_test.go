package views

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaqos/mediaqos/internal/model"
	"github.com/mediaqos/mediaqos/internal/videostore"
)

func TestTrackViewUnknownRecord(t *testing.T) {
	tracker := NewTracker(videostore.NewMemoryStore(), zerolog.Nop())

	err := tracker.TrackView(context.Background(), "ghost")
	assert.ErrorIs(t, err, videostore.ErrNotFound)
}

func TestTrackViewConcurrentCallersLoseNothing(t *testing.T) {
	store := videostore.NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), &model.VideoRecord{VideoID: "vid-1", Status: model.StatusCompleted}))
	tracker := NewTracker(store, zerolog.Nop())

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, tracker.TrackView(context.Background(), "vid-1"))
		}()
	}
	wg.Wait()

	rec, err := store.Get(context.Background(), "vid-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Views)
}
