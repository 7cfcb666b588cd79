package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/i474232898/weather-bot/internal/store"
)

const (
	DefaultForecastDays = 3
	MaxForecastDays     = 10
	DefaultPageSize     = 3
)

// ServiceConfig holds per-domain TTLs and the default page size.
type ServiceConfig struct {
	TTLWeather  time.Duration
	TTLForecast time.Duration
	TTLCities   time.Duration
	PageSize    int
}

// DefaultServiceConfig returns the stock TTLs (10m / 30m / 1h) and page size 3.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		TTLWeather:  10 * time.Minute,
		TTLForecast: 30 * time.Minute,
		TTLCities:   time.Hour,
		PageSize:    DefaultPageSize,
	}
}

// Service answers weather, forecast and city-search requests cache-aside
// over the upstream Provider.
type Service struct {
	cache    Cache
	provider Provider
	users    UserCityStore
	cfg      ServiceConfig
	log      *logrus.Entry
}

// NewService creates a new Service.
func NewService(cache Cache, provider Provider, users UserCityStore, cfg ServiceConfig) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Service{
		cache:    cache,
		provider: provider,
		users:    users,
		cfg:      cfg,
		log:      logrus.WithField("component", "weather"),
	}
}

// PageSize is the default number of candidates per page.
func (s *Service) PageSize() int { return s.cfg.PageSize }

// GetWeatherByUser returns current weather for the user's stored city.
func (s *Service) GetWeatherByUser(ctx context.Context, userID int64) (WeatherResult, error) {
	cityID, ok, err := s.users.GetCity(ctx, userID)
	if err != nil {
		s.log.WithError(err).Errorf("[WEATHER] reading city of user %d failed", userID)
		ok = false
	}
	if !ok || cityID == "" {
		return failedWeather(ErrNoCitySelected), ErrNoCitySelected
	}
	return s.currentWeather(ctx, ByID(cityID))
}

// GetWeatherByCity returns current weather for a free-text city name.
func (s *Service) GetWeatherByCity(ctx context.Context, city string) (WeatherResult, error) {
	return s.currentWeather(ctx, ByName(city))
}

// GetWeatherByCityID returns current weather for a provider city id.
func (s *Service) GetWeatherByCityID(ctx context.Context, cityID string) (WeatherResult, error) {
	return s.currentWeather(ctx, ByID(cityID))
}

func (s *Service) currentWeather(ctx context.Context, ref CityRef) (WeatherResult, error) {
	if _, err := ref.Query(); err != nil {
		return failedWeather(err), err
	}
	identifier := ref.String()

	if raw, ok := s.cache.Get(ctx, store.DomainWeather, identifier); ok {
		var cached WeatherResult
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		s.log.Warnf("[WEATHER] dropping undecodable cache entry for %s", identifier)
	}

	payload, err := s.provider.FetchCurrent(ctx, ref)
	if err != nil {
		s.log.WithError(err).Warnf("[WEATHER] current weather for %s failed", identifier)
		return failedWeather(err), err
	}

	result := WeatherResult{
		Success:       true,
		FormattedText: FormatCurrent(payload),
		Raw:           &payload,
	}
	s.store(ctx, store.DomainWeather, identifier, result, s.cfg.TTLWeather)
	return result, nil
}

// GetForecastByCity returns a days-long forecast. days == 0 means the default (3).
func (s *Service) GetForecastByCity(ctx context.Context, city string, days int) (ForecastResult, error) {
	if days == 0 {
		days = DefaultForecastDays
	}
	if days < 1 || days > MaxForecastDays {
		err := fmt.Errorf("%w: %d", ErrInvalidDays, days)
		return ForecastResult{Error: err.Error()}, err
	}

	ref := ByName(city)
	if _, err := ref.Query(); err != nil {
		return ForecastResult{Error: err.Error()}, err
	}

	identifier := city
	if days != DefaultForecastDays {
		identifier += ":" + strconv.Itoa(days) + "d"
	}

	if raw, ok := s.cache.Get(ctx, store.DomainForecast, identifier); ok {
		var cached ForecastResult
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		s.log.Warnf("[WEATHER] dropping undecodable forecast entry for %s", identifier)
	}

	payload, err := s.provider.FetchForecast(ctx, ref, days)
	if err != nil {
		s.log.WithError(err).Warnf("[WEATHER] forecast for %s failed", identifier)
		return ForecastResult{Error: userMessage(err)}, err
	}

	result := ForecastResult{
		Success:       true,
		FormattedText: FormatForecast(payload),
		Raw:           &payload,
	}
	s.store(ctx, store.DomainForecast, identifier, result, s.cfg.TTLForecast)
	return result, nil
}

// SearchCities returns one page of candidates. The full candidate list is
// cached, so paging through a query costs one upstream call.
func (s *Service) SearchCities(ctx context.Context, query string, page, pageSize int) (CitySearchResult, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinQueryLength {
		return CitySearchResult{Cities: []City{}}, ErrQueryTooShort
	}
	if pageSize <= 0 {
		pageSize = s.cfg.PageSize
	}

	all, err := s.allCities(ctx, query)
	if err != nil {
		return CitySearchResult{Cities: []City{}}, err
	}
	return Paginate(all, page, pageSize), nil
}

func (s *Service) allCities(ctx context.Context, query string) ([]City, error) {
	if raw, ok := s.cache.Get(ctx, store.DomainCities, query); ok {
		var cached []City
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		s.log.Warnf("[WEATHER] dropping undecodable city list for %q", query)
	}

	cities, err := s.provider.SearchCities(ctx, query)
	if err != nil {
		s.log.WithError(err).Warnf("[WEATHER] city search %q failed", query)
		return nil, err
	}
	if cities == nil {
		cities = []City{}
	}
	s.store(ctx, store.DomainCities, query, cities, s.cfg.TTLCities)
	return cities, nil
}

// SelectCity stores cityID as the user's city.
func (s *Service) SelectCity(ctx context.Context, userID int64, cityID string) error {
	if strings.TrimSpace(cityID) == "" {
		return ErrInvalidCityRef
	}
	if err := s.users.SetCity(ctx, userID, cityID); err != nil {
		return fmt.Errorf("saving city for user %d: %w", userID, err)
	}
	s.log.Infof("[WEATHER] user %d selected city %s", userID, cityID)
	return nil
}

func (s *Service) store(ctx context.Context, domain store.Domain, identifier string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.WithError(err).Errorf("[WEATHER] encoding %s entry for %s", domain, identifier)
		return
	}
	s.cache.Set(ctx, domain, identifier, data, ttl)
}

func failedWeather(err error) WeatherResult {
	return WeatherResult{Error: userMessage(err)}
}

// userMessage maps sentinel errors to short client-facing texts.
func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoCitySelected):
		return "City not selected"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "Failed to fetch weather data"
	case errors.Is(err, ErrQueryTooShort):
		return "Query must be at least 2 characters"
	case errors.Is(err, ErrInvalidCityRef):
		return "City is required"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Request cancelled"
	default:
		return err.Error()
	}
}
