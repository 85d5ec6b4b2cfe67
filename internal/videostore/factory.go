package videostore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mediaqos/mediaqos/internal/config"
)

// NewFromConfig builds the Store selected by cfg.StoreBackend. The returned
// close func releases the backend's connections and is safe to call once.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := NewRedisStore(client)
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, func() { _ = client.Close() }, nil

	case config.StorePostgres:
		pool, err := Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return NewPostgresStore(pool), pool.Close, nil

	case config.StoreMemory:
		return NewMemoryStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
