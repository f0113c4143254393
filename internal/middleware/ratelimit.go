package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/trip-reservation/internal/config"
)

// tokenBucket takes one token from the bucket at KEYS[1], crediting the
// whole refill steps elapsed since the stored stamp first. Replies
// {allowed, tokens left, ms until the next refill step}.
var tokenBucket = redis.NewScript(`
local now, cap, step, every, ttl = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])
local level = tonumber(redis.call('HGET', KEYS[1], 'level'))
local stamp = tonumber(redis.call('HGET', KEYS[1], 'stamp'))
if not level or not stamp then
	level, stamp = cap, now
end
if now > stamp then
	local steps = math.floor((now - stamp) / every)
	level = math.min(cap, level + steps * step)
	stamp = stamp + steps * every
end
local ok, wait = 0, 0
if level >= 1 then
	ok, level = 1, level - 1
else
	wait = every - (now - stamp)
	if wait < 0 then wait = 0 end
end
redis.call('HSET', KEYS[1], 'level', level, 'stamp', stamp)
redis.call('PEXPIRE', KEYS[1], ttl)
return { ok, level, wait }
`)

// nowMillis is the bucket clock.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

// NewTokenBucket limits requests per key with a Redis token bucket. When
// Redis is unavailable the request is let through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb redis.Scripter, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			vals, err := tokenBucket.Run(c.Request().Context(), rdb, []string{key},
				nowMillis(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				cfg.TTL.Milliseconds(),
			).Int64Slice()
			if err != nil || len(vals) != 3 {
				log.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
				return next(c)
			}
			allowed, remaining, retryMs := vals[0] == 1, vals[1], vals[2]

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if !allowed {
				secs := int(math.Ceil(float64(retryMs) / 1000))
				h.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := identity(c)
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "user_route":
		parts = append(parts, "user", uid, "route", route)
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	default:
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	}
	return strings.Join(parts, ":")
}
