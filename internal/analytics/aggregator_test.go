package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaqos/mediaqos/internal/model"
	"github.com/mediaqos/mediaqos/internal/videostore"
)

func seedStore(t *testing.T, recs ...*model.VideoRecord) *videostore.MemoryStore {
	t.Helper()
	store := videostore.NewMemoryStore()
	for _, rec := range recs {
		require.NoError(t, store.Create(context.Background(), rec))
	}
	return store
}

func TestListSummaryTotals(t *testing.T) {
	store := seedStore(t,
		&model.VideoRecord{VideoID: "a", Status: model.StatusCompleted, Views: 4},
		&model.VideoRecord{VideoID: "b", Status: model.StatusCompleted, Views: 6},
		&model.VideoRecord{VideoID: "c", Status: model.StatusPendingUpload, Views: 0},
	)
	agg := NewAggregator(store)

	summary, err := agg.ListSummary(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalVideos)
	assert.Equal(t, 2, summary.CompletedVideos)
	assert.Equal(t, int64(10), summary.TotalViews)
	assert.Len(t, summary.Videos, 3)
}

func TestListSummaryAppliesLimit(t *testing.T) {
	var recs []*model.VideoRecord
	for _, id := range []string{"a", "b", "c", "d"} {
		recs = append(recs, &model.VideoRecord{VideoID: id, Status: model.StatusCompleted, Views: 1})
	}
	agg := NewAggregator(seedStore(t, recs...))

	summary, err := agg.ListSummary(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TotalVideos, "totals cover all records")
	assert.Len(t, summary.Videos, 2, "listing is capped")
}

func TestTopViewedOrderingAndTieBreak(t *testing.T) {
	store := seedStore(t,
		&model.VideoRecord{VideoID: "v1", Status: model.StatusCompleted, Views: 50},
		&model.VideoRecord{VideoID: "v2", Status: model.StatusCompleted, Views: 10},
		&model.VideoRecord{VideoID: "v4", Status: model.StatusCompleted, Views: 30},
		&model.VideoRecord{VideoID: "v3", Status: model.StatusCompleted, Views: 30},
		&model.VideoRecord{VideoID: "v5", Status: model.StatusCompleted, Views: 5},
	)
	agg := NewAggregator(store)

	top, err := agg.TopViewed(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, top, 5)

	gotViews := []int64{top[0].Views, top[1].Views, top[2].Views, top[3].Views, top[4].Views}
	assert.Equal(t, []int64{50, 30, 30, 10, 5}, gotViews)
	// Tied records are ordered by videoId ascending so rankings are stable
	// across calls.
	assert.Equal(t, "v3", top[1].VideoID)
	assert.Equal(t, "v4", top[2].VideoID)
}

func TestTopViewedLimit(t *testing.T) {
	store := seedStore(t,
		&model.VideoRecord{VideoID: "a", Status: model.StatusCompleted, Views: 3},
		&model.VideoRecord{VideoID: "b", Status: model.StatusCompleted, Views: 2},
		&model.VideoRecord{VideoID: "c", Status: model.StatusCompleted, Views: 1},
	)
	agg := NewAggregator(store)

	top, err := agg.TopViewed(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "a", top[0].VideoID)
	assert.Equal(t, "b", top[1].VideoID)
}
