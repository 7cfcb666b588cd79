package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-bot/internal/dispatch"
	"github.com/i474232898/weather-bot/internal/store"
	"github.com/i474232898/weather-bot/internal/weather"
)

type stubProvider struct {
	fail bool
}

func (p stubProvider) FetchCurrent(_ context.Context, ref weather.CityRef) (weather.CurrentPayload, error) {
	if p.fail {
		return weather.CurrentPayload{}, weather.ErrUpstreamUnavailable
	}
	var out weather.CurrentPayload
	out.Location.Name = ref.Name
	if ref.ID != "" {
		out.Location.Name = "Berlin"
	}
	out.Location.Country = "Germany"
	out.Current.TempC = 20
	out.Current.Condition.Text = "Sunny"
	return out, nil
}

func (p stubProvider) FetchForecast(_ context.Context, ref weather.CityRef, days int) (weather.ForecastPayload, error) {
	if p.fail {
		return weather.ForecastPayload{}, weather.ErrUpstreamUnavailable
	}
	var out weather.ForecastPayload
	out.Location.Name = ref.Name
	for i := 0; i < days; i++ {
		out.Forecast.ForecastDay = append(out.Forecast.ForecastDay, weather.ForecastDay{Date: "2024-05-01"})
	}
	return out, nil
}

func (p stubProvider) SearchCities(_ context.Context, query string) ([]weather.City, error) {
	if p.fail {
		return nil, weather.ErrUpstreamUnavailable
	}
	return []weather.City{
		{ID: "1", Name: "Berlin", Country: "Germany"},
		{ID: "2", Name: "Berlingen", Country: "Switzerland"},
		{ID: "3", Name: "Berlin", Country: "USA"},
		{ID: "4", Name: "Berlinchen", Country: "Germany"},
	}, nil
}

type stubRenderer struct{ err error }

func (r stubRenderer) Render(weather.CurrentPayload) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("\x89PNG"), nil
}

type harness struct {
	app   *fiber.App
	users *store.MemoryUserCities
	cache *store.Cache
}

func newHarness(t *testing.T, p stubProvider, r stubRenderer) harness {
	t.Helper()
	cache, err := store.New(context.Background(), store.NewMemoryBackend())
	require.NoError(t, err)
	users := store.NewMemoryUserCities()
	svc := weather.NewService(cache, p, users, weather.DefaultServiceConfig())

	app := fiber.New()
	RegisterRoutes(app, Deps{Service: svc, Cache: cache, Renderer: r, APIKeyConfigured: true})
	return harness{app: app, users: users, cache: cache}
}

func (h harness) do(t *testing.T, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := h.app.Test(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

// TestForecastDaysValidation verifies that the forecast endpoint enforces the
// expected 1-7 range for the `days` query parameter.
func TestForecastDaysValidation(t *testing.T) {
	h := newHarness(t, stubProvider{}, stubRenderer{})

	for _, days := range []string{"0", "8", "abc"} {
		resp, _ := h.do(t, http.MethodGet, "/api/v1/weather/forecast/Paris?days="+days, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "days=%s", days)
	}

	resp, body := h.do(t, http.MethodGet, "/api/v1/weather/forecast/Paris", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res weather.ForecastResult
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.Success)
	require.NotNil(t, res.Raw)
	assert.Len(t, res.Raw.Forecast.ForecastDay, 3)
}

func TestCurrentWeather(t *testing.T) {
	h := newHarness(t, stubProvider{}, stubRenderer{})
	resp, body := h.do(t, http.MethodGet, "/api/v1/weather/current/Paris", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res weather.WeatherResult
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.Success)
	assert.Contains(t, res.FormattedText, "<b>Paris</b>")

	down := newHarness(t, stubProvider{fail: true}, stubRenderer{})
	resp, _ = down.do(t, http.MethodGet, "/api/v1/weather/current/Paris", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPathParamsAreUnescaped(t *testing.T) {
	h := newHarness(t, stubProvider{}, stubRenderer{})

	resp, body := h.do(t, http.MethodGet, "/api/v1/weather/current/New%20York", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res weather.WeatherResult
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Contains(t, res.FormattedText, "<b>New York</b>")
	assert.NotContains(t, res.FormattedText, "%20")

	resp, body = h.do(t, http.MethodGet, "/api/v1/weather/forecast/S%C3%A3o%20Paulo?days=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fc weather.ForecastResult
	require.NoError(t, json.Unmarshal(body, &fc))
	require.NotNil(t, fc.Raw)
	assert.Equal(t, "São Paulo", fc.Raw.Location.Name)
}

func TestWeatherByCityID(t *testing.T) {
	h := newHarness(t, stubProvider{}, stubRenderer{})

	resp, body := h.do(t, http.MethodGet, "/api/v1/weather/by_id/2950159", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res weather.WeatherResult
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.Success)
	assert.Contains(t, res.FormattedText, "<b>Berlin</b>")

	resp, _ = h.do(t, http.MethodGet, "/api/v1/weather/by_id/%20", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	down := newHarness(t, stubProvider{fail: true}, stubRenderer{})
	resp, _ = down.do(t, http.MethodGet, "/api/v1/weather/by_id/2950159", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWeatherByUser(t *testing.T) {
	h := newHarness(t, stubProvider{}, stubRenderer{})

	resp, body := h.do(t, http.MethodPost, "/api/v1/weather", `{"user_id": 7}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res weather.WeatherResult
	require.NoError(t, json.Unmarshal(body, &res))
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)

	resp, body = h.do(t, http.MethodPost, "/api/v1/user/city", `{"user_id": 7, "city_id": "1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message": "City selected!"}`, string(body))

	_, body = h.do(t, http.MethodPost, "/api/v1/weather", `{"user_id": 7}`)
	res = weather.WeatherResult{}
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.Success)
	assert.Contains(t, res.FormattedText, "<b>Berlin</b>")

	resp, _ = h.do(t, http.MethodPost, "/api/v1/weather", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCitySearchPaging(t *testing.T) {
	h := newHarness(t, stubProvider{}, stubRenderer{})

	_, body := h.do(t, http.MethodPost, "/api/v1/city/search", `{"user_id": 1, "query": "Berl", "page": 1, "page_size": 3}`)
	var res weather.CitySearchResult
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Len(t, res.Cities, 3)
	assert.True(t, res.HasNext)

	_, body = h.do(t, http.MethodPost, "/api/v1/city/search", `{"user_id": 1, "query": "Berl", "page": 2, "page_size": 3}`)
	res = weather.CitySearchResult{}
	require.NoError(t, json.Unmarshal(body, &res))
	require.Len(t, res.Cities, 1)
	assert.Equal(t, "4", res.Cities[0].ID)
	assert.False(t, res.HasNext)

	resp, _ := h.do(t, http.MethodPost, "/api/v1/city/search", `{"user_id": 1, "query": "B"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	down := newHarness(t, stubProvider{fail: true}, stubRenderer{})
	resp, body = down.do(t, http.MethodPost, "/api/v1/city/search", `{"query": "Berl"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"cities": [], "has_next": false}`, string(body))
}

func TestUserCityValidation(t *testing.T) {
	h := newHarness(t, stubProvider{}, stubRenderer{})
	resp, _ := h.do(t, http.MethodPost, "/api/v1/user/city", `{"user_id": 7}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = h.do(t, http.MethodPost, "/api/v1/user/city", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImageRoutes(t *testing.T) {
	h := newHarness(t, stubProvider{}, stubRenderer{})

	resp, body := h.do(t, http.MethodPost, "/api/v1/weather/image", `{"user_id": 9}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Select a city first", string(body))

	resp, body = h.do(t, http.MethodPost, "/api/v1/weather/image_by_city", `{"city": "Paris"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, []byte("\x89PNG"), body)

	broken := newHarness(t, stubProvider{}, stubRenderer{err: errors.New("no font")})
	resp, _ = broken.do(t, http.MethodPost, "/api/v1/weather/image_by_city", `{"city": "Paris"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHealthAndCache(t *testing.T) {
	h := newHarness(t, stubProvider{}, stubRenderer{})

	resp, body := h.do(t, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health struct {
		Status           string      `json:"status"`
		APIKeyConfigured bool        `json:"api_key_configured"`
		Cache            store.Stats `json:"cache"`
	}
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health.Status)
	assert.True(t, health.APIKeyConfigured)
	assert.True(t, health.Cache.Available)
	assert.Equal(t, "memory", health.Cache.Backend)
	assert.NotContains(t, string(body), `"dispatch"`)

	h.do(t, http.MethodGet, "/api/v1/weather/current/Paris", "")
	h.do(t, http.MethodGet, "/api/v1/weather/current/Rome", "")

	_, body = h.do(t, http.MethodGet, "/api/v1/cache/stats", "")
	var st store.Stats
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, 2, st.Keys)

	resp, _ = h.do(t, http.MethodDelete, "/api/v1/cache?domain=weather&identifier=paris", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, h.cache.Stats(context.Background()).Keys)

	resp, _ = h.do(t, http.MethodDelete, "/api/v1/cache?domain=bogus", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = h.do(t, http.MethodDelete, "/api/v1/cache?identifier=paris", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = h.do(t, http.MethodDelete, "/api/v1/cache", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, h.cache.Stats(context.Background()).Keys)
}

func TestHealthReportsDispatchPool(t *testing.T) {
	cache, err := store.New(context.Background(), store.NewMemoryBackend())
	require.NoError(t, err)
	svc := weather.NewService(cache, stubProvider{}, store.NewMemoryUserCities(), weather.DefaultServiceConfig())

	app := fiber.New()
	RegisterRoutes(app, Deps{
		Service:  svc,
		Cache:    cache,
		Renderer: stubRenderer{},
		Dispatch: func() dispatch.PoolStats {
			return dispatch.PoolStats{NumWorkers: 4, QueueSize: 16}
		},
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Dispatch *dispatch.PoolStats `json:"dispatch"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	require.NotNil(t, health.Dispatch)
	assert.Equal(t, 4, health.Dispatch.NumWorkers)
	assert.Equal(t, 16, health.Dispatch.QueueSize)
}
