package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type AppConfig struct {
	// Upstream weather API.
	WeatherAPIKey     string        `mapstructure:"WEATHER_API_KEY"`
	WeatherAPIBaseURL string        `mapstructure:"WEATHER_API_BASE_URL" validate:"required,url"`
	WeatherAPILang    string        `mapstructure:"WEATHER_API_LANG" validate:"required"`
	HTTPTimeout       time.Duration `mapstructure:"HTTP_TIMEOUT" validate:"gt=0"`

	UpstreamMaxAttempts      int           `mapstructure:"UPSTREAM_MAX_ATTEMPTS" validate:"min=1,max=10"`
	UpstreamRetryDelay       time.Duration `mapstructure:"UPSTREAM_RETRY_DELAY" validate:"gte=0"`
	UpstreamBreakerThreshold uint32        `mapstructure:"UPSTREAM_BREAKER_THRESHOLD" validate:"min=1"`

	// Cache.
	CacheBackend   string        `mapstructure:"CACHE_BACKEND" validate:"oneof=memory redis valkey none"`
	CacheKeyPrefix string        `mapstructure:"CACHE_KEY_PREFIX"`
	RedisAddr      string        `mapstructure:"REDIS_ADDR" validate:"required_if=CacheBackend redis"`
	RedisPassword  string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int           `mapstructure:"REDIS_DB" validate:"gte=0"`
	ValkeyAddr     string        `mapstructure:"VALKEY_ADDR" validate:"required_if=CacheBackend valkey"`
	ValkeyNoCache  bool          `mapstructure:"VALKEY_DISABLE_CLIENT_CACHE"`
	TTLWeather     time.Duration `mapstructure:"CACHE_TTL_WEATHER" validate:"gt=0"`
	TTLForecast    time.Duration `mapstructure:"CACHE_TTL_FORECAST" validate:"gt=0"`
	TTLCities      time.Duration `mapstructure:"CACHE_TTL_CITIES" validate:"gt=0"`
	SweepInterval  time.Duration `mapstructure:"SWEEP_INTERVAL" validate:"gt=0"`

	// User -> city persistence.
	UsersDBDriver string `mapstructure:"USERS_DB_DRIVER" validate:"oneof=sqlite postgres memory"`
	UsersDBDSN    string `mapstructure:"USERS_DB_DSN" validate:"required_unless=UsersDBDriver memory"`

	// Chat bot. An empty token runs the HTTP API only.
	BotToken          string        `mapstructure:"BOT_TOKEN"`
	DebounceDelay     time.Duration `mapstructure:"DEBOUNCE_DELAY" validate:"gte=0"`
	CityPageSize      int           `mapstructure:"CITY_PAGE_SIZE" validate:"min=1,max=10"`
	DispatchWorkers   int           `mapstructure:"DISPATCH_WORKERS" validate:"min=1"`
	DispatchQueueSize int           `mapstructure:"DISPATCH_QUEUE_SIZE" validate:"min=1"`

	Port     string `mapstructure:"PORT" validate:"required,numeric"`
	LogLevel string `mapstructure:"LOG_LEVEL" validate:"oneof=trace debug info warn warning error fatal panic"`
}

var defaults = map[string]any{
	"WEATHER_API_BASE_URL":        "https://api.weatherapi.com/v1",
	"WEATHER_API_LANG":            "en",
	"HTTP_TIMEOUT":                "10s",
	"UPSTREAM_MAX_ATTEMPTS":       3,
	"UPSTREAM_RETRY_DELAY":        "1s",
	"UPSTREAM_BREAKER_THRESHOLD":  5,
	"CACHE_BACKEND":               "memory",
	"CACHE_KEY_PREFIX":            "weather_bot:",
	"REDIS_ADDR":                  "localhost:6379",
	"REDIS_DB":                    0,
	"VALKEY_ADDR":                 "localhost:6379",
	"VALKEY_DISABLE_CLIENT_CACHE": false,
	"CACHE_TTL_WEATHER":           "10m",
	"CACHE_TTL_FORECAST":          "30m",
	"CACHE_TTL_CITIES":            "1h",
	"SWEEP_INTERVAL":              "1m",
	"USERS_DB_DRIVER":             "sqlite",
	"USERS_DB_DSN":                "weather_bot.db",
	"DEBOUNCE_DELAY":              "1s",
	"CITY_PAGE_SIZE":              3,
	"DISPATCH_WORKERS":            8,
	"DISPATCH_QUEUE_SIZE":         64,
	"PORT":                        "8080",
	"LOG_LEVEL":                   "info",
}

var validate = validator.New()

// Load reads configuration from .env and the environment with sensible defaults.
func Load() (*AppConfig, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	for k, def := range defaults {
		v.SetDefault(k, def)
	}
	for _, k := range []string{"WEATHER_API_KEY", "REDIS_PASSWORD", "BOT_TOKEN"} {
		_ = v.BindEnv(k)
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(cfg.CacheBackend))
	cfg.UsersDBDriver = strings.ToLower(strings.TrimSpace(cfg.UsersDBDriver))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.WeatherAPIKey == "" {
		logrus.Warn("[CONFIG] WEATHER_API_KEY is not set; upstream calls will fail")
	}
	return &cfg, nil
}

// Level parses LogLevel, falling back to info.
func (c *AppConfig) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// String masks secrets.
func (c *AppConfig) String() string {
	mask := func(s string) string {
		if s == "" {
			return "(empty)"
		}
		return "********"
	}

	var sb strings.Builder
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  WeatherAPIKey: %s\n", mask(c.WeatherAPIKey))
	fmt.Fprintf(&sb, "  WeatherAPIBaseURL: %s\n", c.WeatherAPIBaseURL)
	fmt.Fprintf(&sb, "  Upstream: attempts=%d delay=%s breaker=%d timeout=%s\n",
		c.UpstreamMaxAttempts, c.UpstreamRetryDelay, c.UpstreamBreakerThreshold, c.HTTPTimeout)
	fmt.Fprintf(&sb, "  CacheBackend: %s\n", c.CacheBackend)
	fmt.Fprintf(&sb, "  CacheTTL: weather=%s forecast=%s cities=%s\n", c.TTLWeather, c.TTLForecast, c.TTLCities)
	fmt.Fprintf(&sb, "  UsersDB: %s\n", c.UsersDBDriver)
	fmt.Fprintf(&sb, "  BotToken: %s\n", mask(c.BotToken))
	fmt.Fprintf(&sb, "  Port: %s\n", c.Port)
	return sb.String()
}
