// Package analytics computes read-side aggregates over the record store.
// Both operations scan the full record set and reflect whatever snapshot the
// store returns; they make no consistency promise beyond that.
package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/mediaqos/mediaqos/internal/model"
	"github.com/mediaqos/mediaqos/internal/videostore"
)

// Summary is the aggregate view over all records.
type Summary struct {
	TotalVideos     int                  `json:"totalVideos"`
	CompletedVideos int                  `json:"completedVideos"`
	TotalViews      int64                `json:"totalViews"`
	Videos          []*model.VideoRecord `json:"videos"`
}

// Aggregator answers analytics queries from full store scans.
type Aggregator struct {
	store videostore.Store
}

// NewAggregator constructs an Aggregator.
func NewAggregator(store videostore.Store) *Aggregator {
	return &Aggregator{store: store}
}

// ListSummary returns totals plus at most limit records. Records are listed
// in the same deterministic order as TopViewed so repeated calls agree.
func (a *Aggregator) ListSummary(ctx context.Context, limit int) (*Summary, error) {
	records, err := a.store.ScanAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	sortByViews(records)

	s := &Summary{TotalVideos: len(records)}
	for _, rec := range records {
		if rec.Status == model.StatusCompleted {
			s.CompletedVideos++
		}
		s.TotalViews += rec.Views
	}
	if len(records) > limit {
		records = records[:limit]
	}
	s.Videos = records
	return s, nil
}

// TopViewed returns the n most viewed records, views descending, ties broken
// by videoId ascending. The explicit tie-break matters because scan order is
// store-defined and would otherwise make rankings flap between calls.
func (a *Aggregator) TopViewed(ctx context.Context, n int) ([]*model.VideoRecord, error) {
	records, err := a.store.ScanAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	sortByViews(records)
	if len(records) > n {
		records = records[:n]
	}
	return records, nil
}

func sortByViews(records []*model.VideoRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Views != records[j].Views {
			return records[i].Views > records[j].Views
		}
		return records[i].VideoID < records[j].VideoID
	})
}
