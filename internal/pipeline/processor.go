// Package pipeline drives video records through their lifecycle in response
// to storage put events. Deliveries are at-least-once and possibly out of
// order, so every transition is written as a pure function of the triggering
// event: re-applying it converges to the same record state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediaqos/mediaqos/internal/metrics"
	"github.com/mediaqos/mediaqos/internal/model"
	"github.com/mediaqos/mediaqos/internal/notification"
	"github.com/mediaqos/mediaqos/internal/objectstore"
	"github.com/mediaqos/mediaqos/internal/videostore"
)

// ObjectProber is the slice of objectstore.Storage the pipeline needs: a
// metadata-only existence/size check standing in for real validation work,
// plus URL construction for completed records.
type ObjectProber interface {
	Stat(ctx context.Context, bucket, key string) (int64, error)
	ObjectURL(bucket, key string) string
}

// Processor applies normalized storage events to the record store.
type Processor struct {
	store  videostore.Store
	probe  ObjectProber
	logger zerolog.Logger
}

// NewProcessor constructs a Processor.
func NewProcessor(store videostore.Store, probe ObjectProber, logger zerolog.Logger) *Processor {
	return &Processor{
		store:  store,
		probe:  probe,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}
}

// HandleDelivery normalizes one raw queue message and processes each inner
// event independently. Ignores and rejects are consumed on the spot. The
// returned error is non-nil only when at least one event hit a transient
// failure, which tells the queue to redeliver the message; events that
// already succeeded are safe to re-run because processing is idempotent.
func (p *Processor) HandleDelivery(ctx context.Context, body []byte) error {
	var transient []error
	for _, oc := range notification.Normalize(body) {
		switch oc.Kind {
		case notification.KindIgnore:
			metrics.EventsTotal.WithLabelValues(metrics.ResultIgnored).Inc()
			p.logger.Debug().Msg("synthetic test notification, ignoring")
		case notification.KindReject:
			metrics.EventsTotal.WithLabelValues(metrics.ResultRejected).Inc()
			p.logger.Warn().Str("reason", oc.Reason).Msg("unprocessable notification, consuming")
		case notification.KindEvent:
			start := time.Now()
			err := p.ProcessEvent(ctx, oc.Event)
			metrics.EventProcessingDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.EventsTotal.WithLabelValues(metrics.ResultRetried).Inc()
				transient = append(transient, err)
			}
		}
	}
	if len(transient) > 0 {
		return fmt.Errorf("%d event(s) need redelivery: %w", len(transient), errors.Join(transient...))
	}
	return nil
}

// ProcessEvent advances one record. A nil return means the event is fully
// consumed (success, no-op, or a failure recorded on the record); an error
// means the condition is transient and the event must be redelivered.
func (p *Processor) ProcessEvent(ctx context.Context, ev notification.ObjectPutEvent) error {
	log := p.logger.With().Str("videoId", ev.VideoID).Str("key", ev.Key).Logger()

	rec, err := p.store.Get(ctx, ev.VideoID)
	if err != nil {
		if errors.Is(err, videostore.ErrNotFound) {
			// No record will ever match this key; retrying cannot help.
			metrics.EventsTotal.WithLabelValues(metrics.ResultSkipped).Inc()
			log.Warn().Msg("event references unknown record, dropping")
			return nil
		}
		return fmt.Errorf("load record %s: %w", ev.VideoID, err)
	}

	// Idempotency is keyed on (videoId, storageKey): a terminal record for a
	// different key belongs to another upload attempt and must not be
	// overwritten by this stale event.
	if rec.Status.Terminal() && rec.S3Key != "" && rec.S3Key != ev.Key {
		metrics.EventsTotal.WithLabelValues(metrics.ResultSkipped).Inc()
		log.Info().Str("recordKey", rec.S3Key).Msg("stale event for a different upload attempt, skipping")
		return nil
	}
	if rec.Status == model.StatusCompleted && rec.S3Key == ev.Key {
		metrics.EventsTotal.WithLabelValues(metrics.ResultSkipped).Inc()
		log.Debug().Msg("duplicate delivery for completed record, no-op")
		return nil
	}

	// Step 1: mark PROCESSING with the event's own fields. Re-applying this
	// for a duplicate delivery writes the same values again.
	err = p.store.UpdateStatus(ctx, ev.VideoID, model.StatusProcessing, videostore.Fields{
		S3Key:    &ev.Key,
		S3Bucket: &ev.Bucket,
		FileSize: &ev.Size,
	})
	if err != nil {
		return fmt.Errorf("mark processing %s: %w", ev.VideoID, err)
	}

	// Step 2: probe the stored object.
	size, err := p.probe.Stat(ctx, ev.Bucket, ev.Key)
	if err != nil {
		if errors.Is(err, objectstore.ErrObjectMissing) {
			return p.fail(ctx, ev, log, "uploaded object not found in storage")
		}
		return fmt.Errorf("probe %s/%s: %w", ev.Bucket, ev.Key, err)
	}
	if ev.Size > 0 && size != ev.Size {
		return p.fail(ctx, ev, log, fmt.Sprintf("stored size %d does not match event size %d", size, ev.Size))
	}

	// Step 3: transition to COMPLETED.
	now := time.Now().UTC()
	videoURL := p.probe.ObjectURL(ev.Bucket, ev.Key)
	err = p.store.UpdateStatus(ctx, ev.VideoID, model.StatusCompleted, videostore.Fields{
		ProcessedAt: &now,
		VideoURL:    &videoURL,
	})
	if err != nil {
		return fmt.Errorf("mark completed %s: %w", ev.VideoID, err)
	}

	metrics.EventsTotal.WithLabelValues(metrics.ResultCompleted).Inc()
	log.Info().Int64("fileSize", size).Msg("video processing completed")
	return nil
}

// fail records an unrecoverable processing failure on the record and consumes
// the event. Only a failing store write keeps the event eligible for
// redelivery.
func (p *Processor) fail(ctx context.Context, ev notification.ObjectPutEvent, log zerolog.Logger, reason string) error {
	err := p.store.UpdateStatus(ctx, ev.VideoID, model.StatusFailed, videostore.Fields{
		ErrorMessage: &reason,
	})
	if err != nil {
		return fmt.Errorf("mark failed %s: %w", ev.VideoID, err)
	}
	metrics.EventsTotal.WithLabelValues(metrics.ResultFailed).Inc()
	log.Warn().Str("reason", reason).Msg("video processing failed")
	return nil
}
