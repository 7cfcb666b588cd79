package store

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyConfig configures a ValkeyBackend.
type ValkeyConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	// DisableCache turns off client-side caching for servers without
	// CLIENT TRACKING support.
	DisableCache bool
}

// ValkeyBackend stores cache entries in Valkey.
type ValkeyBackend struct {
	inner  valkey.Client
	prefix string
}

// NewValkeyBackend creates the client. valkey-go dials eagerly, so an
// unreachable server surfaces here rather than on Ping.
func NewValkeyBackend(cfg ValkeyConfig) (*ValkeyBackend, error) {
	opts := valkey.ClientOption{
		InitAddress:  []string{cfg.Address},
		SelectDB:     cfg.DB,
		DisableCache: cfg.DisableCache,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	inner, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}
	return &ValkeyBackend{inner: inner, prefix: cfg.KeyPrefix}, nil
}

func (v *ValkeyBackend) Name() string { return "valkey" }

func (v *ValkeyBackend) fullKey(key string) string { return v.prefix + key }

func (v *ValkeyBackend) Ping(ctx context.Context) error {
	return v.inner.Do(ctx, v.inner.B().Ping().Build()).Error()
}

func (v *ValkeyBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	cmd := v.inner.B().Get().Key(v.fullKey(key)).Build()
	data, err := v.inner.Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get %q from valkey: %w", key, err)
	}
	return data, true, nil
}

func (v *ValkeyBackend) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	var err error
	if ttl > 0 {
		cmd := v.inner.B().Set().
			Key(v.fullKey(key)).
			Value(valkey.BinaryString(val)).
			Ex(ttl).
			Build()
		err = v.inner.Do(ctx, cmd).Error()
	} else {
		cmd := v.inner.B().Set().
			Key(v.fullKey(key)).
			Value(valkey.BinaryString(val)).
			Build()
		err = v.inner.Do(ctx, cmd).Error()
	}
	if err != nil {
		return fmt.Errorf("failed to set %q in valkey: %w", key, err)
	}
	return nil
}

func (v *ValkeyBackend) Delete(ctx context.Context, key string) error {
	cmd := v.inner.B().Del().Key(v.fullKey(key)).Build()
	return v.inner.Do(ctx, cmd).Error()
}

func (v *ValkeyBackend) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := v.inner.B().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		result, err := v.inner.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("failed to scan valkey keys: %w", err)
		}
		keys = append(keys, result.Elements...)

		cursor = result.Cursor
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (v *ValkeyBackend) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := v.scan(ctx, v.fullKey(prefix)+"*")
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := v.inner.Do(ctx, v.inner.B().Del().Key(keys...).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to delete valkey keys: %w", err)
	}
	return int(n), nil
}

func (v *ValkeyBackend) Len(ctx context.Context) (int, error) {
	keys, err := v.scan(ctx, v.prefix+"*")
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (v *ValkeyBackend) Close() error {
	v.inner.Close()
	return nil
}
