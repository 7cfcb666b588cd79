// Package app assembles the bot, the HTTP API and their shared services.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	httpapi "github.com/i474232898/weather-bot/internal/api/http"
	"github.com/i474232898/weather-bot/internal/config"
	"github.com/i474232898/weather-bot/internal/conversation"
	"github.com/i474232898/weather-bot/internal/debounce"
	"github.com/i474232898/weather-bot/internal/dispatch"
	"github.com/i474232898/weather-bot/internal/render"
	"github.com/i474232898/weather-bot/internal/scheduler"
	"github.com/i474232898/weather-bot/internal/store"
	"github.com/i474232898/weather-bot/internal/transport/telegram"
	"github.com/i474232898/weather-bot/internal/weather"
	"github.com/i474232898/weather-bot/internal/weather/providers"
)

type userStore interface {
	weather.UserCityStore
	io.Closer
}

// App holds every long-lived component. Bot is nil when no token is configured.
type App struct {
	cfg *config.AppConfig
	log *logrus.Entry

	Cache     *store.Cache
	Service   *weather.Service
	HTTP      *fiber.App
	Scheduler *scheduler.Scheduler
	Pool      *dispatch.Pool
	Bot       *telegram.Bot

	users userStore
}

// OpenCache builds the configured cache backend. The returned cache is
// usable even when err wraps store.ErrCacheUnavailable.
func OpenCache(ctx context.Context, cfg *config.AppConfig) (*store.Cache, *store.MemoryBackend, error) {
	var (
		backend store.Backend
		mem     *store.MemoryBackend
	)
	switch cfg.CacheBackend {
	case "memory", "":
		mem = store.NewMemoryBackend()
		backend = mem
	case "redis":
		backend = store.NewRedisBackend(store.RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.CacheKeyPrefix,
		})
	case "valkey":
		vb, err := store.NewValkeyBackend(store.ValkeyConfig{
			Address:      cfg.ValkeyAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			KeyPrefix:    cfg.CacheKeyPrefix,
			DisableCache: cfg.ValkeyNoCache,
		})
		if err != nil {
			logrus.WithError(err).Error("[APP] valkey client init failed")
		} else {
			backend = vb
		}
	case "none":
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cache, err := store.New(pingCtx, backend)
	return cache, mem, err
}

func openUsers(cfg *config.AppConfig) (userStore, error) {
	if cfg.UsersDBDriver == "memory" {
		return store.NewMemoryUserCities(), nil
	}
	return store.OpenUserCities(store.UsersConfig{Driver: cfg.UsersDBDriver, DSN: cfg.UsersDBDSN})
}

// Build wires all components without starting any of them.
func Build(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	log := logrus.WithField("component", "app")

	cache, mem, err := OpenCache(ctx, cfg)
	if err != nil {
		if !errors.Is(err, store.ErrCacheUnavailable) {
			return nil, err
		}
		log.WithError(err).Warn("[APP] continuing without cache")
	}

	users, err := openUsers(cfg)
	if err != nil {
		_ = cache.Close()
		return nil, fmt.Errorf("open user store: %w", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	provider := providers.NewWeatherAPIProvider(httpClient, providers.WeatherAPIConfig{
		BaseURL:          cfg.WeatherAPIBaseURL,
		APIKey:           cfg.WeatherAPIKey,
		Lang:             cfg.WeatherAPILang,
		MaxAttempts:      cfg.UpstreamMaxAttempts,
		RetryDelay:       cfg.UpstreamRetryDelay,
		BreakerThreshold: cfg.UpstreamBreakerThreshold,
	})

	service := weather.NewService(cache, provider, users, weather.ServiceConfig{
		TTLWeather:  cfg.TTLWeather,
		TTLForecast: cfg.TTLForecast,
		TTLCities:   cfg.TTLCities,
		PageSize:    cfg.CityPageSize,
	})
	renderer := render.NewCardRenderer()

	a := &App{
		cfg:       cfg,
		log:       log,
		Cache:     cache,
		Service:   service,
		Scheduler: scheduler.New(cfg.SweepInterval),
		users:     users,
	}
	if mem != nil {
		a.Scheduler.Register("cache", mem)
	}

	if cfg.BotToken != "" {
		bot, err := telegram.New(telegram.Config{Token: cfg.BotToken})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		guard := debounce.New(cfg.DebounceDelay)
		machine := conversation.NewMachine(service, bot, renderer, conversation.NewRegistry(), cfg.CityPageSize)
		a.Pool = dispatch.NewPool(cfg.DispatchWorkers, cfg.DispatchQueueSize)
		bot.Attach(dispatch.NewInbox(guard, a.Pool, machine))
		a.Bot = bot

		a.Scheduler.Register("debounce", scheduler.SweepFunc(func(now time.Time) int {
			return guard.Sweep(now.Add(-guard.Delay()))
		}))
	} else {
		log.Warn("[APP] BOT_TOKEN is empty; running HTTP API only")
	}

	a.HTTP = newHTTPApp()
	httpapi.RegisterRoutes(a.HTTP, httpapi.Deps{
		Service:          service,
		Cache:            cache,
		Renderer:         renderer,
		APIKeyConfigured: cfg.WeatherAPIKey != "",
		Dispatch:         a.dispatchStats(),
	})
	return a, nil
}

func (a *App) dispatchStats() func() dispatch.PoolStats {
	if a.Pool == nil {
		return nil
	}
	return a.Pool.Stats
}

func newHTTPApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "weather-bot",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Weather Bot API is running"})
	})
	return app
}

// Run starts every component and blocks until ctx is cancelled, then shuts
// them down in reverse order.
func (a *App) Run(ctx context.Context) error {
	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer a.Scheduler.Stop()

	if a.Bot != nil {
		a.Pool.Start(ctx)
		go a.Bot.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("[APP] listening on :%s", a.cfg.Port)
		errCh <- a.HTTP.Listen(":" + a.cfg.Port)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		runErr = fmt.Errorf("http server: %w", err)
	}

	if a.Bot != nil {
		a.Bot.Stop()
		a.Pool.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HTTP.ShutdownWithContext(shutdownCtx); err != nil {
		a.log.WithError(err).Error("[APP] error during shutdown")
	}
	return runErr
}

// Close releases storage handles.
func (a *App) Close() error {
	var errs []error
	if a.users != nil {
		errs = append(errs, a.users.Close())
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	return errors.Join(errs...)
}
