package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-bot/internal/config"
	"github.com/i474232898/weather-bot/internal/store"
)

func TestOpenSharedCacheRefusesMemory(t *testing.T) {
	for _, backend := range []string{"memory", ""} {
		_, err := openSharedCache(context.Background(), &config.AppConfig{CacheBackend: backend})
		assert.ErrorIs(t, err, errProcessLocalCache, "backend %q", backend)
	}
}

func TestOpenSharedCacheNone(t *testing.T) {
	cache, err := openSharedCache(context.Background(), &config.AppConfig{CacheBackend: "none"})
	assert.True(t, errors.Is(err, store.ErrCacheUnavailable))
	require.NotNil(t, cache)
	assert.False(t, cache.Available())
}

func TestKnownDomain(t *testing.T) {
	assert.True(t, knownDomain("weather"))
	assert.True(t, knownDomain("cities"))
	assert.False(t, knownDomain("users"))
}
