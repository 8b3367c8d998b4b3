package middleware

import (
	"log"
	"net/http"
	"time"

	"authserv/internal/caching"

	"github.com/labstack/echo/v4"
)

// RateLimit throttles an endpoint per client IP using the redis counter.
// Cache failures fail open; throttling is protection, not correctness.
func RateLimit(cache caching.CacheService, name string, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := name + ":" + c.RealIP()
			ctx := c.Request().Context()

			limited, err := cache.IsRateLimited(ctx, key, limit, window)
			if err != nil {
				log.Printf("WARN: rate limit check failed for %s: %v", key, err)
				return next(c)
			}
			if limited {
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
			}
			if err := cache.IncrementRateLimit(ctx, key, window); err != nil {
				log.Printf("WARN: rate limit increment failed for %s: %v", key, err)
			}
			return next(c)
		}
	}
}
