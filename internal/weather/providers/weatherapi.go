package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-bot/internal/weather"
)

const DefaultWeatherAPIBaseURL = "https://api.weatherapi.com/v1"

// WeatherAPIConfig configures WeatherAPIProvider.
type WeatherAPIConfig struct {
	BaseURL          string
	APIKey           string
	Lang             string
	MaxAttempts      int
	RetryDelay       time.Duration
	BreakerThreshold uint32
}

// WeatherAPIProvider implements weather.Provider for WeatherAPI.com.
type WeatherAPIProvider struct {
	apiKey  string
	lang    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, cfg WeatherAPIConfig) *WeatherAPIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultWeatherAPIBaseURL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = time.Second
	}

	return &WeatherAPIProvider{
		apiKey:  cfg.APIKey,
		lang:    cfg.Lang,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpCfg: HTTPClientConfig{
			Client: client,
			Retry: RetryConfig{
				MaxAttempts: cfg.MaxAttempts,
				Delay:       cfg.RetryDelay,
			},
		},
		circuit: newBreaker("weatherapi", cfg.BreakerThreshold),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return "weatherapi"
}

func (p *WeatherAPIProvider) get(ctx context.Context, endpoint string, values url.Values, out any) error {
	if p.apiKey == "" {
		return fmt.Errorf("%w: weatherapi api key is not configured", weather.ErrUpstreamUnavailable)
	}
	values.Set("key", p.apiKey)
	if p.lang != "" {
		values.Set("lang", p.lang)
	}
	u := fmt.Sprintf("%s/%s?%s", p.baseURL, endpoint, values.Encode())

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}
	decode := func(body []byte) error {
		return json.Unmarshal(body, out)
	}
	return doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest, decode)
}

func (p *WeatherAPIProvider) FetchCurrent(ctx context.Context, ref weather.CityRef) (weather.CurrentPayload, error) {
	q, err := ref.Query()
	if err != nil {
		return weather.CurrentPayload{}, err
	}

	var payload weather.CurrentPayload
	values := url.Values{}
	values.Set("q", q)
	if err := p.get(ctx, "current.json", values, &payload); err != nil {
		return weather.CurrentPayload{}, err
	}
	return payload, nil
}

func (p *WeatherAPIProvider) FetchForecast(ctx context.Context, ref weather.CityRef, days int) (weather.ForecastPayload, error) {
	q, err := ref.Query()
	if err != nil {
		return weather.ForecastPayload{}, err
	}

	var payload weather.ForecastPayload
	values := url.Values{}
	values.Set("q", q)
	values.Set("days", strconv.Itoa(days))
	if err := p.get(ctx, "forecast.json", values, &payload); err != nil {
		return weather.ForecastPayload{}, err
	}
	return payload, nil
}

type searchEntry struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

// SearchCities returns candidates in the provider's ranking order.
func (p *WeatherAPIProvider) SearchCities(ctx context.Context, query string) ([]weather.City, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < weather.MinQueryLength {
		return nil, weather.ErrQueryTooShort
	}

	var entries []searchEntry
	values := url.Values{}
	values.Set("q", query)
	if err := p.get(ctx, "search.json", values, &entries); err != nil {
		return nil, err
	}

	cities := make([]weather.City, 0, len(entries))
	for _, e := range entries {
		cities = append(cities, weather.City{
			ID:      strconv.FormatInt(e.ID, 10),
			Name:    e.Name,
			Country: e.Country,
		})
	}
	return cities, nil
}
