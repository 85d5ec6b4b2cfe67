package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mediaqos/mediaqos/internal/analytics"
	"github.com/mediaqos/mediaqos/internal/api"
	"github.com/mediaqos/mediaqos/internal/config"
	"github.com/mediaqos/mediaqos/internal/metrics"
	"github.com/mediaqos/mediaqos/internal/objectstore"
	"github.com/mediaqos/mediaqos/internal/queue"
	"github.com/mediaqos/mediaqos/internal/uploads"
	"github.com/mediaqos/mediaqos/internal/videostore"
	"github.com/mediaqos/mediaqos/internal/views"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "mediaqos-api").Logger()

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

	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	coordinator := uploads.NewCoordinator(store, objects, cfg.MaxUploadBytes, cfg.GrantTTL, logger)
	tracker := views.NewTracker(store, logger)
	aggregator := analytics.NewAggregator(store)

	enqueue := func(ctx context.Context, body []byte) error {
		return queue.EnqueueNotification(ctx, queueClient, body)
	}

	srv := api.New(cfg, coordinator, tracker, aggregator, enqueue, logger)
	metricsSrv := metrics.StartServer(cfg.MetricsAddress, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("api stopped")
		os.Exit(1)
	}
}
