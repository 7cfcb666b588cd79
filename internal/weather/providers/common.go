package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-bot/internal/weather"
)

// RetryConfig controls the flat-delay retry loop.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client *http.Client
	Retry  RetryConfig
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid retry configuration")
)

// statusError keeps the status code of a failed attempt for logging.
type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string { return fmt.Sprintf("%v: %d", e.err, e.code) }
func (e *statusError) Unwrap() error { return e.err }

func newBreaker(name string, threshold uint32) *gobreaker.CircuitBreaker {
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: upstreamHealthy,
	})
}

// upstreamHealthy reports whether err leaves the upstream's health intact.
// Client errors (unknown city, bad query) are answers about the request, not
// an outage, so they must not open the breaker for everyone else.
func upstreamHealthy(err error) bool {
	if err == nil {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 400 && se.code < 500 && se.code != http.StatusTooManyRequests
	}
	return false
}

// doRequestWithResilience executes the request up to MaxAttempts times,
// sleeping a flat Delay between attempts. Each attempt runs through the
// circuit breaker and succeeds only with a 2xx status; the body is returned
// fully read. Exhaustion and an open breaker both yield
// weather.ErrUpstreamUnavailable.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func(ctx context.Context) (*http.Request, error),
	decode func(body []byte) error,
) error {
	if cfg.Client == nil {
		return errNoHTTPClient
	}
	if cfg.Retry.MaxAttempts < 1 || cfg.Retry.Delay < 0 {
		return errInvalidConfig
	}

	log := logrus.WithField("component", "upstream")
	var lastErr error

	for attempt := 1; attempt <= cfg.Retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := buildRequest(ctx)
		if err != nil {
			return err
		}

		_, err = cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return nil, &statusError{code: resp.StatusCode, err: errRateLimited}
			case resp.StatusCode >= 500:
				return nil, &statusError{code: resp.StatusCode, err: errServerError}
			case resp.StatusCode < 200 || resp.StatusCode >= 300:
				return nil, &statusError{code: resp.StatusCode, err: errUnexpected}
			}

			body, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				return nil, readErr
			}
			return nil, decode(body)
		})
		if err == nil {
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			log.Warnf("[UPSTREAM] %s circuit open", cb.Name())
			return fmt.Errorf("%w: %v", weather.ErrUpstreamUnavailable, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		lastErr = err
		var se *statusError
		if errors.As(err, &se) {
			log.Warnf("[UPSTREAM] %s attempt %d/%d: status %d", req.URL.Path, attempt, cfg.Retry.MaxAttempts, se.code)
		} else {
			log.Warnf("[UPSTREAM] %s attempt %d/%d: %v", req.URL.Path, attempt, cfg.Retry.MaxAttempts, err)
		}

		if attempt == cfg.Retry.MaxAttempts {
			break
		}

		timer := time.NewTimer(cfg.Retry.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w: %v", weather.ErrUpstreamUnavailable, lastErr)
}
