package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryBackendExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := NewMemoryBackend().WithClock(clock.Now)

	require.NoError(t, m.Set(ctx, "weather:paris", []byte("v"), 10*time.Second))

	val, ok, err := m.Get(ctx, "weather:paris")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), val)

	clock.Advance(9 * time.Second)
	_, ok, _ = m.Get(ctx, "weather:paris")
	assert.True(t, ok, "entry should still be live before ttl elapses")

	clock.Advance(time.Second)
	_, ok, _ = m.Get(ctx, "weather:paris")
	assert.False(t, ok, "entry must be absent once ttl elapsed")

	n, err := m.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, m.physicalLen(), "expired entry stays until swept")

	assert.Equal(t, 1, m.Sweep(clock.Now()))
	assert.Equal(t, 0, m.physicalLen())
}

func TestMemoryBackendZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := NewMemoryBackend().WithClock(clock.Now)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	clock.Advance(1000 * time.Hour)

	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, 0, m.Sweep(clock.Now()))
}

func TestMemoryBackendDeletePrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	require.NoError(t, m.Set(ctx, "weather:a", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "weather:b", []byte("2"), time.Minute))
	require.NoError(t, m.Set(ctx, "cities:a", []byte("3"), time.Minute))

	n, err := m.DeletePrefix(ctx, "weather:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok, _ := m.Get(ctx, "cities:a")
	assert.True(t, ok)
}

func TestMemoryBackendReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	in := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", in, time.Minute))
	in[0] = 'x'

	out, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(out))
	out[1] = 'y'

	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

// physicalLen includes expired entries not yet swept.
func (m *MemoryBackend) physicalLen() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
