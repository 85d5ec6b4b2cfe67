// Package views applies view-count increments to video records.
package views

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mediaqos/mediaqos/internal/metrics"
	"github.com/mediaqos/mediaqos/internal/videostore"
)

// Tracker increments the views counter using the store's atomic increment
// primitive, so concurrent callers never lose an update.
type Tracker struct {
	store  videostore.Store
	logger zerolog.Logger
}

// NewTracker constructs a Tracker.
func NewTracker(store videostore.Store, logger zerolog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger.With().Str("component", "views").Logger(),
	}
}

// TrackView adds one view to the record. The record is expected to exist
// already; videostore.ErrNotFound surfaces to the caller instead of silently
// creating a counter for an unknown video.
func (t *Tracker) TrackView(ctx context.Context, videoID string) error {
	if err := t.store.IncrementViews(ctx, videoID, 1); err != nil {
		return fmt.Errorf("track view %s: %w", videoID, err)
	}
	metrics.ViewsTrackedTotal.Inc()
	t.logger.Debug().Str("videoId", videoID).Msg("view tracked")
	return nil
}
