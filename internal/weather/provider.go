package weather

import (
	"context"
	"time"

	"github.com/i474232898/weather-bot/internal/store"
)

// Provider abstracts the upstream weather/geocoding service (WeatherAPI.com).
type Provider interface {
	FetchCurrent(ctx context.Context, ref CityRef) (CurrentPayload, error)
	FetchForecast(ctx context.Context, ref CityRef, days int) (ForecastPayload, error)
	SearchCities(ctx context.Context, query string) ([]City, error)
}

// Cache is the cache-aside contract the Service relies on. Both methods are
// silent: an unavailable cache reports a miss and a failed write.
type Cache interface {
	Get(ctx context.Context, domain store.Domain, identifier string) ([]byte, bool)
	Set(ctx context.Context, domain store.Domain, identifier string, value []byte, ttl time.Duration) bool
}

// UserCityStore persists the user -> city mapping. GetCity reports ok=false
// when the user never picked a city.
type UserCityStore interface {
	GetCity(ctx context.Context, userID int64) (cityID string, ok bool, err error)
	SetCity(ctx context.Context, userID int64, cityID string) error
}
