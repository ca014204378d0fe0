package ratelimit

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/bilim/config"
)

type Config struct {
	Store          Store
	Rate           int
	Period         time.Duration
	CountMode      config.CountingMode
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context) error
	Now            func() time.Time
}

// Middleware limits requests per key within a fixed window. In CountFailures
// mode only responses with status >= 400, or requests flagged with
// MarkFailure, consume the budget.
func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}
	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}
	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = DefaultKeyGenerator
	}
	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}
	if cfg.CountMode == "" {
		cfg.CountMode = config.CountAll
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := cfg.KeyGenerator(c)
			resetTime := cfg.Now().Add(cfg.Period)

			count, existingReset, exists := cfg.Store.Get(key)
			if exists {
				resetTime = existingReset
			}

			if count >= cfg.Rate {
				setHeaders(c, cfg.Rate, 0, resetTime)
				return cfg.OnLimitReached(c)
			}

			if cfg.CountMode == config.CountAll {
				count = cfg.Store.Increment(key, resetTime)
				setHeaders(c, cfg.Rate, cfg.Rate-count, resetTime)
				return next(c)
			}

			setHeaders(c, cfg.Rate, cfg.Rate-count, resetTime)
			err := next(c)
			if failed(c, err) {
				cfg.Store.Increment(key, resetTime)
			}
			return err
		}
	}
}

func setHeaders(c echo.Context, limit, remaining int, resetTime time.Time) {
	header := c.Response().Header()
	header.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	header.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	header.Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))
}

const failureKey = "ratelimit.failure"

// MarkFailure makes the current request consume budget even though its
// response is not an error status, e.g. a redirect back to a form.
func MarkFailure(c echo.Context) {
	c.Set(failureKey, true)
}

func failed(c echo.Context, err error) bool {
	if marked, _ := c.Get(failureKey).(bool); marked {
		return true
	}
	return responseStatus(c, err) >= http.StatusBadRequest
}

// responseStatus reports the status the client will see, including errors
// that the echo error handler has not rendered yet.
func responseStatus(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	return http.StatusInternalServerError
}

func DefaultKeyGenerator(c echo.Context) string {
	realIP := c.RealIP()
	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}
	return "rate_limit:" + realIP
}

// RouteKeyGenerator keys the budget by client address and route so separate
// endpoints do not share one counter.
func RouteKeyGenerator(c echo.Context) string {
	return DefaultKeyGenerator(c) + ":" + c.Path()
}

func DefaultOnLimitReached(c echo.Context) error {
	return echo.NewHTTPError(http.StatusTooManyRequests, "Too Many Requests")
}

// FromConfig builds a failure-counting limiter from application settings. A
// disabled limiter is a pass-through.
func FromConfig(cfg *config.RateLimitConfig, store Store) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return Middleware(&Config{
		Store:        store,
		Rate:         cfg.Rate,
		Period:       cfg.Period,
		CountMode:    config.CountFailures,
		KeyGenerator: RouteKeyGenerator,
	})
}
