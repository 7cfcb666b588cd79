package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type downBackend struct{ *MemoryBackend }

func (downBackend) Name() string               { return "down" }
func (downBackend) Ping(context.Context) error { return errors.New("connection refused") }

func TestKeyNormalization(t *testing.T) {
	assert.Equal(t, "weather:new_york", Key(DomainWeather, "New York"))
	assert.Equal(t, "weather:new_york", Key(DomainWeather, "  new   YORK "))
	assert.Equal(t, "cities:id:2801268", Key(DomainCities, "id:2801268"))
}

func TestCacheRoundTripAndStats(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, NewMemoryBackend())
	require.NoError(t, err)
	require.True(t, c.Available())

	_, ok := c.Get(ctx, DomainWeather, "Moscow")
	assert.False(t, ok)

	assert.True(t, c.Set(ctx, DomainWeather, "Moscow", []byte(`{"a":1}`), time.Minute))

	val, ok := c.Get(ctx, DomainWeather, "moscow")
	require.True(t, ok, "lookup must be case-insensitive through normalization")
	assert.Equal(t, `{"a":1}`, string(val))

	st := c.Stats(ctx)
	assert.True(t, st.Available)
	assert.Equal(t, "memory", st.Backend)
	assert.Equal(t, 1, st.Keys)
	assert.EqualValues(t, 1, st.Hits)
	assert.EqualValues(t, 1, st.Misses)
	assert.Empty(t, st.Error)
}

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c, err := New(ctx, NewMemoryBackend().WithClock(clock.Now))
	require.NoError(t, err)

	c.Set(ctx, DomainCities, "par", []byte("[]"), 30*time.Second)
	clock.Advance(31 * time.Second)

	_, ok := c.Get(ctx, DomainCities, "par")
	assert.False(t, ok)
}

func TestCacheClear(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, NewMemoryBackend())
	require.NoError(t, err)

	seed := func() {
		c.Set(ctx, DomainWeather, "paris", []byte("1"), time.Minute)
		c.Set(ctx, DomainWeather, "berlin", []byte("2"), time.Minute)
		c.Set(ctx, DomainForecast, "paris", []byte("3"), time.Minute)
		c.Set(ctx, DomainCities, "par", []byte("4"), time.Minute)
	}

	t.Run("single key", func(t *testing.T) {
		seed()
		require.True(t, c.Clear(ctx, DomainWeather, "Paris"))
		_, ok := c.Get(ctx, DomainWeather, "paris")
		assert.False(t, ok)
		_, ok = c.Get(ctx, DomainWeather, "berlin")
		assert.True(t, ok)
		_, ok = c.Get(ctx, DomainForecast, "paris")
		assert.True(t, ok)
	})

	t.Run("whole domain", func(t *testing.T) {
		seed()
		require.True(t, c.Clear(ctx, DomainWeather, ""))
		_, ok := c.Get(ctx, DomainWeather, "berlin")
		assert.False(t, ok)
		_, ok = c.Get(ctx, DomainCities, "par")
		assert.True(t, ok)
	})

	t.Run("everything", func(t *testing.T) {
		seed()
		require.True(t, c.Clear(ctx, "", ""))
		assert.Equal(t, 0, c.Stats(ctx).Keys)
	})
}

func TestCacheDegradedMode(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, downBackend{NewMemoryBackend()})
	require.ErrorIs(t, err, ErrCacheUnavailable)
	require.NotNil(t, c)
	assert.False(t, c.Available())

	assert.False(t, c.Set(ctx, DomainWeather, "paris", []byte("1"), time.Minute))
	_, ok := c.Get(ctx, DomainWeather, "paris")
	assert.False(t, ok)
	assert.False(t, c.Clear(ctx, "", ""))

	st := c.Stats(ctx)
	assert.False(t, st.Available)
	assert.Equal(t, "down", st.Backend)
	assert.NotEmpty(t, st.Error)

	nilCache, err := New(ctx, nil)
	require.ErrorIs(t, err, ErrCacheUnavailable)
	assert.False(t, nilCache.Available())
	assert.NoError(t, nilCache.Close())
}
