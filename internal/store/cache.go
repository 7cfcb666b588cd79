package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/i474232898/weather-bot/internal/common"
)

// Domain partitions cache keys by request type.
type Domain string

const (
	DomainWeather  Domain = "weather"
	DomainForecast Domain = "forecast"
	DomainCities   Domain = "cities"
)

// Domains lists every cache domain, used when clearing everything.
var Domains = []Domain{DomainWeather, DomainForecast, DomainCities}

// ErrCacheUnavailable is returned by New when the backend cannot be reached.
// The returned Cache is still usable in degraded (pass-through) mode.
var ErrCacheUnavailable = errors.New("cache backend unavailable")

// Backend is the physical key/value store behind the Cache.
// Get reports ok=false for absent or expired keys.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Len(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// Stats is a snapshot of cache health and usage.
type Stats struct {
	Available bool   `json:"connected"`
	Backend   string `json:"backend"`
	Keys      int    `json:"keys_count"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Error     string `json:"error,omitempty"`
}

// Cache is a TTL key/value store keyed by (domain, normalized identifier).
// When the backend is unavailable it degrades to a silent pass-through.
type Cache struct {
	backend   Backend
	available bool
	log       *logrus.Entry

	hits   atomic.Int64
	misses atomic.Int64
}

// New pings the backend and returns a Cache. A nil or unreachable backend
// yields a degraded cache together with ErrCacheUnavailable; the cache is
// never nil.
func New(ctx context.Context, backend Backend) (*Cache, error) {
	c := &Cache{
		backend: backend,
		log:     logrus.WithField("component", "cache"),
	}
	if backend == nil {
		c.log.Warn("[CACHE] no backend configured; caching disabled")
		return c, ErrCacheUnavailable
	}
	if err := backend.Ping(ctx); err != nil {
		c.log.WithError(err).Warnf("[CACHE] %s unreachable; caching disabled", backend.Name())
		return c, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	c.available = true
	c.log.Infof("[CACHE] using %s backend", backend.Name())
	return c, nil
}

// Key builds the physical key for an identifier.
func Key(domain Domain, identifier string) string {
	return string(domain) + ":" + common.Normalize(identifier)
}

// Available reports whether the backend answered the initial ping.
func (c *Cache) Available() bool { return c.available }

// Get returns the stored value iff present and unexpired.
func (c *Cache) Get(ctx context.Context, domain Domain, identifier string) ([]byte, bool) {
	if !c.available {
		return nil, false
	}
	key := Key(domain, identifier)
	val, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.log.WithError(err).Errorf("[CACHE] get %s failed", key)
		c.misses.Inc()
		return nil, false
	}
	if !ok {
		c.misses.Inc()
		return nil, false
	}
	c.hits.Inc()
	c.log.Debugf("[CACHE] hit %s", key)
	return val, true
}

// Set stores value under (domain, identifier) for ttl. It reports false when
// the backend is unavailable or the write failed.
func (c *Cache) Set(ctx context.Context, domain Domain, identifier string, value []byte, ttl time.Duration) bool {
	if !c.available {
		return false
	}
	key := Key(domain, identifier)
	if err := c.backend.Set(ctx, key, value, ttl); err != nil {
		c.log.WithError(err).Errorf("[CACHE] set %s failed", key)
		return false
	}
	c.log.Debugf("[CACHE] stored %s (ttl=%s)", key, ttl)
	return true
}

// Clear removes one key (domain and identifier set), one whole domain
// (identifier empty) or every domain (domain empty).
func (c *Cache) Clear(ctx context.Context, domain Domain, identifier string) bool {
	if !c.available {
		return false
	}

	switch {
	case domain != "" && identifier != "":
		key := Key(domain, identifier)
		if err := c.backend.Delete(ctx, key); err != nil {
			c.log.WithError(err).Errorf("[CACHE] clear %s failed", key)
			return false
		}
		c.log.Infof("[CACHE] cleared %s", key)
	case domain != "":
		n, err := c.backend.DeletePrefix(ctx, string(domain)+":")
		if err != nil {
			c.log.WithError(err).Errorf("[CACHE] clear domain %s failed", domain)
			return false
		}
		c.log.Infof("[CACHE] cleared %d keys of domain %s", n, domain)
	default:
		total := 0
		for _, d := range Domains {
			n, err := c.backend.DeletePrefix(ctx, string(d)+":")
			if err != nil {
				c.log.WithError(err).Errorf("[CACHE] clear domain %s failed", d)
				return false
			}
			total += n
		}
		c.log.Infof("[CACHE] cleared %d keys", total)
	}
	return true
}

// Stats reports availability, key count and hit/miss counters.
func (c *Cache) Stats(ctx context.Context) Stats {
	st := Stats{
		Available: c.available,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
	}
	if c.backend == nil {
		st.Error = "cache backend not configured"
		return st
	}
	st.Backend = c.backend.Name()
	if !c.available {
		st.Error = "cache backend not connected"
		return st
	}
	n, err := c.backend.Len(ctx)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Keys = n
	return st
}

// Close releases the backend.
func (c *Cache) Close() error {
	if c.backend == nil {
		return nil
	}
	return c.backend.Close()
}
