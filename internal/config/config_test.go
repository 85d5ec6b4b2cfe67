package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, StoreRedis, cfg.StoreBackend)
	assert.Equal(t, int64(100<<20), cfg.MaxUploadBytes)
	assert.Equal(t, time.Hour, cfg.GrantTTL)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "mediaqos-videos", cfg.VideoBucket)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MEDIAQOS_ADDRESS", ":9999")
	t.Setenv("MEDIAQOS_STORE", StoreMemory)
	t.Setenv("MEDIAQOS_MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("MEDIAQOS_GRANT_TTL", "15m")
	t.Setenv("MEDIAQOS_WORKERS", "12")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Address)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, int64(1<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 15*time.Minute, cfg.GrantTTL)
	assert.Equal(t, 12, cfg.Workers)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("MEDIAQOS_STORE", "cassandra")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("MEDIAQOS_WORKERS", "many")
	t.Setenv("MEDIAQOS_MAX_UPLOAD_BYTES", "-5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, int64(100<<20), cfg.MaxUploadBytes)
}
