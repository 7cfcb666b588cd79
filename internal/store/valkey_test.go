package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValkeyBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewValkeyBackend(ValkeyConfig{
		Address:      mr.Addr(),
		KeyPrefix:    "weather_bot:",
		DisableCache: true,
	})
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, "valkey", b.Name())
	checkSharedBackend(t, mr, b)
}

func TestValkeyBackendUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewValkeyBackend(ValkeyConfig{Address: addr, DisableCache: true})
	assert.Error(t, err)
}

func TestValkeyBackendManyKeys(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	b, err := NewValkeyBackend(ValkeyConfig{Address: mr.Addr(), KeyPrefix: "wb:", DisableCache: true})
	require.NoError(t, err)
	defer b.Close()

	for i := 0; i < 250; i++ {
		require.NoError(t, b.Set(ctx, "cities:"+string(rune('a'+i%26))+string(rune('a'+i/26)), []byte("[]"), 0))
	}
	n, err := b.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250, n)

	cleared, err := b.DeletePrefix(ctx, "cities:")
	require.NoError(t, err)
	assert.Equal(t, 250, cleared)
}
