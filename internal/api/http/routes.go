package httpapi

import (
	"errors"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-bot/internal/dispatch"
	"github.com/i474232898/weather-bot/internal/store"
	"github.com/i474232898/weather-bot/internal/weather"
)

var validate = validator.New()

// Renderer turns a current-weather payload into a PNG card.
type Renderer interface {
	Render(p weather.CurrentPayload) ([]byte, error)
}

// Deps are the collaborators behind the HTTP API.
type Deps struct {
	Service          *weather.Service
	Cache            *store.Cache
	Renderer         Renderer
	APIKeyConfigured bool
	// Dispatch reports the bot's worker pool. Nil when the bot is disabled.
	Dispatch func() dispatch.PoolStats
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	v1 := app.Group("/api/v1")

	v1.Get("/health", func(c *fiber.Ctx) error {
		body := fiber.Map{
			"status":             "healthy",
			"api_key_configured": d.APIKeyConfigured,
			"cache":              d.Cache.Stats(c.UserContext()),
		}
		if d.Dispatch != nil {
			body["dispatch"] = d.Dispatch()
		}
		return c.JSON(body)
	})

	v1.Post("/weather", func(c *fiber.Ctx) error {
		var req userRequest
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
		res, _ := d.Service.GetWeatherByUser(c.UserContext(), req.UserID)
		return c.JSON(res)
	})

	v1.Post("/weather/by_city", func(c *fiber.Ctx) error {
		var req cityRequest
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
		res, _ := d.Service.GetWeatherByCity(c.UserContext(), req.City)
		return c.JSON(res)
	})

	v1.Post("/weather/forecast_by_city", func(c *fiber.Ctx) error {
		var req forecastRequest
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
		res, _ := d.Service.GetForecastByCity(c.UserContext(), req.City, req.Days)
		return c.JSON(res)
	})

	v1.Get("/weather/current/:city", func(c *fiber.Ctx) error {
		city, err := pathParam(c, "city")
		if err != nil {
			return err
		}
		res, err := d.Service.GetWeatherByCity(c.UserContext(), city)
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(res)
	})

	v1.Get("/weather/by_id/:id", func(c *fiber.Ctx) error {
		id, err := pathParam(c, "id")
		if err != nil {
			return err
		}
		res, err := d.Service.GetWeatherByCityID(c.UserContext(), id)
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(res)
	})

	v1.Get("/weather/forecast/:city", func(c *fiber.Ctx) error {
		city, err := pathParam(c, "city")
		if err != nil {
			return err
		}
		q := forecastQuery{City: city, Days: weather.DefaultForecastDays}
		if raw := c.Query("days"); raw != "" {
			days, err := strconv.Atoi(raw)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "days must be an integer")
			}
			q.Days = days
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		res, err := d.Service.GetForecastByCity(c.UserContext(), q.City, q.Days)
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(res)
	})

	v1.Post("/city/search", func(c *fiber.Ctx) error {
		var req searchRequest
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
		if req.Page == 0 {
			req.Page = 1
		}
		res, err := d.Service.SearchCities(c.UserContext(), req.Query, req.Page, req.PageSize)
		if err != nil {
			if errors.Is(err, weather.ErrQueryTooShort) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			// upstream failures read as "nothing found"
			return c.JSON(weather.CitySearchResult{Cities: []weather.City{}})
		}
		return c.JSON(res)
	})

	v1.Post("/user/city", func(c *fiber.Ctx) error {
		var req userCityRequest
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
		if err := d.Service.SelectCity(c.UserContext(), req.UserID, req.CityID); err != nil {
			if errors.Is(err, weather.ErrInvalidCityRef) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to save city")
		}
		return c.JSON(fiber.Map{"message": "City selected!"})
	})

	v1.Post("/weather/image", func(c *fiber.Ctx) error {
		var req userRequest
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
		res, err := d.Service.GetWeatherByUser(c.UserContext(), req.UserID)
		if errors.Is(err, weather.ErrNoCitySelected) {
			return plain(c, fiber.StatusBadRequest, "Select a city first")
		}
		return sendImage(c, d.Renderer, res, err)
	})

	v1.Post("/weather/image_by_city", func(c *fiber.Ctx) error {
		var req cityRequest
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
		res, err := d.Service.GetWeatherByCity(c.UserContext(), req.City)
		return sendImage(c, d.Renderer, res, err)
	})

	v1.Get("/cache/stats", func(c *fiber.Ctx) error {
		return c.JSON(d.Cache.Stats(c.UserContext()))
	})

	v1.Delete("/cache", func(c *fiber.Ctx) error {
		q := clearQuery{Domain: c.Query("domain"), Identifier: c.Query("identifier")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		ok := d.Cache.Clear(c.UserContext(), store.Domain(q.Domain), q.Identifier)
		if !ok {
			return fiber.NewError(fiber.StatusServiceUnavailable, "cache unavailable")
		}
		return c.JSON(fiber.Map{"cleared": true, "domain": q.Domain, "identifier": q.Identifier})
	})
}

type userRequest struct {
	UserID int64 `json:"user_id" validate:"required"`
}

type cityRequest struct {
	City string `json:"city" validate:"required"`
}

type forecastRequest struct {
	City string `json:"city" validate:"required"`
	Days int    `json:"days" validate:"omitempty,min=1,max=10"`
}

// forecastQuery holds parameters for the GET forecast endpoint.
type forecastQuery struct {
	City string `validate:"required"`
	Days int    `validate:"min=1,max=7"`
}

type searchRequest struct {
	UserID   int64  `json:"user_id"`
	Query    string `json:"query" validate:"required"`
	Page     int    `json:"page" validate:"gte=0"`
	PageSize int    `json:"page_size" validate:"gte=0,lte=50"`
}

type userCityRequest struct {
	UserID int64  `json:"user_id" validate:"required"`
	CityID string `json:"city_id" validate:"required"`
}

type clearQuery struct {
	Domain     string `validate:"omitempty,oneof=weather forecast cities"`
	Identifier string `validate:"excluded_without=Domain"`
}

func bindAndValidate(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// pathParam returns a decoded route parameter. Fiber matches on the raw path,
// so "New%20York" arrives escaped unless the app sets UnescapePath.
func pathParam(c *fiber.Ctx, name string) (string, error) {
	v, err := url.PathUnescape(c.Params(name))
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "malformed "+name)
	}
	return v, nil
}

// lookupError maps service errors for the GET lookup routes.
func lookupError(err error) error {
	switch {
	case errors.Is(err, weather.ErrInvalidCityRef), errors.Is(err, weather.ErrInvalidDays):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, weather.ErrUpstreamUnavailable):
		return fiber.NewError(fiber.StatusNotFound, "city not found")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}
}

func sendImage(c *fiber.Ctx, r Renderer, res weather.WeatherResult, err error) error {
	if err != nil || res.Raw == nil {
		return plain(c, fiber.StatusInternalServerError, "Failed to fetch weather")
	}
	png, err := r.Render(*res.Raw)
	if err != nil {
		return plain(c, fiber.StatusInternalServerError, "Failed to render image")
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

func plain(c *fiber.Ctx, status int, msg string) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(status).SendString(msg)
}
