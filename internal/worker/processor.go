// Package worker plugs the processing pipeline into the asynq worker loop.
package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/mediaqos/mediaqos/internal/pipeline"
	"github.com/mediaqos/mediaqos/internal/queue"
)

// Processor adapts pipeline.Processor to asynq's handler contract.
type Processor struct {
	pipeline *pipeline.Processor
	logger   zerolog.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(p *pipeline.Processor, logger zerolog.Logger) *Processor {
	return &Processor{
		pipeline: p,
		logger:   logger.With().Str("component", "worker").Logger(),
	}
}

// Handler registers the notification task handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ProcessNotificationTask, p.handleNotification)
	return mux
}

// handleNotification returns an error only for transient conditions, which
// makes asynq redeliver the task after backoff. Unprocessable payloads are
// consumed inside HandleDelivery so they never loop.
func (p *Processor) handleNotification(ctx context.Context, task *asynq.Task) error {
	if err := p.pipeline.HandleDelivery(ctx, task.Payload()); err != nil {
		p.logger.Warn().Err(err).Msg("notification left for redelivery")
		return err
	}
	return nil
}
