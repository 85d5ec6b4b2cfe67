// Package metrics exposes the pipeline's prometheus collectors and the
// operational HTTP endpoint serving them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values for EventsTotal.
const (
	ResultCompleted = "completed"
	ResultFailed    = "failed"
	ResultSkipped   = "skipped"
	ResultIgnored   = "ignored"
	ResultRejected  = "rejected"
	ResultRetried   = "retried"
)

var (
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediaqos_events_total",
		Help: "Storage events handled by the processing pipeline, by result",
	}, []string{"result"})

	EventProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mediaqos_event_processing_duration_seconds",
		Help:    "Duration of a single storage event transition",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})

	UploadsInitiatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediaqos_uploads_initiated_total",
		Help: "Upload grants issued",
	})

	ViewsTrackedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediaqos_views_tracked_total",
		Help: "View increments applied",
	})
)
