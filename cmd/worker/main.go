package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/mediaqos/mediaqos/internal/config"
	"github.com/mediaqos/mediaqos/internal/metrics"
	"github.com/mediaqos/mediaqos/internal/objectstore"
	"github.com/mediaqos/mediaqos/internal/pipeline"
	"github.com/mediaqos/mediaqos/internal/videostore"
	"github.com/mediaqos/mediaqos/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "mediaqos-worker").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	store, closeStore, err := videostore.NewFromConfig(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("init video store")
	}
	defer closeStore()

	objects, err := objectstore.New(objectstore.Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		UseSSL:    cfg.S3UseSSL,
		Bucket:    cfg.VideoBucket,
		Region:    cfg.S3Region,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init object store")
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ensure bucket")
	}

	processor := pipeline.NewProcessor(store, objects, logger)
	handler := worker.NewProcessor(processor, logger)

	srv := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.Workers,
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			// Exponential backoff capped at a minute keeps redelivery of
			// transient failures snappy without hammering the store.
			d := time.Duration(1<<uint(n)) * time.Second
			if d > time.Minute {
				d = time.Minute
			}
			return d
		},
	})

	metricsSrv := metrics.StartServer(cfg.MetricsAddress, logger)

	go func() {
		// Shutdown stops pulling new batches and lets in-flight events
		// finish instead of abandoning a record mid-transition.
		<-ctx.Done()
		srv.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	logger.Info().Int("workers", cfg.Workers).Msg("worker starting")
	if err := srv.Run(handler.Handler()); err != nil {
		logger.Error().Err(err).Msg("worker stopped")
		os.Exit(1)
	}
}
