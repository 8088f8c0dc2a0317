package middleware

import (
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/labstack/echo/v4"
	"github.com/pilab-dev/planauth/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL  = 10 * time.Minute
	limiterCapacity = 10000
)

// IPRateLimiter keeps one token bucket per client IP. Buckets of idle
// clients are forgotten after a while.
type IPRateLimiter struct {
	limiters *ttlcache.Cache[string, *rate.Limiter]
	rate     rate.Limit
	burst    int
}

// NewIPRateLimiter allows rps requests per second per IP with the given
// burst. A non-positive rps disables limiting.
func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &IPRateLimiter{
		limiters: ttlcache.New(
			ttlcache.WithTTL[string, *rate.Limiter](limiterIdleTTL),
			ttlcache.WithCapacity[string, *rate.Limiter](limiterCapacity),
		),
		rate:  rate.Limit(rps),
		burst: burst,
	}
}

// Allow reports whether a request from ip may proceed now.
func (l *IPRateLimiter) Allow(ip string) bool {
	if l.rate <= 0 {
		return true
	}
	if item := l.limiters.Get(ip); item != nil {
		return item.Value().Allow()
	}
	item, _ := l.limiters.GetOrSet(ip, rate.NewLimiter(l.rate, l.burst))
	return item.Value().Allow()
}

// Middleware answers 429 once a client exceeds its budget.
func (l *IPRateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !l.Allow(ip) {
				log.Warn().Str("ip", ip).Str("path", c.Path()).Msg("Rate limit exceeded")
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusTooManyRequests, &errors.APIError{Detail: "Too many requests"})
			}
			return next(c)
		}
	}
}
