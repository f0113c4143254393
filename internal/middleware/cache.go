package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/trip-reservation/internal/config"
)

// captureWriter tees the response body while forwarding it to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	limit  int
	over   bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.over {
		if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
			cw.over = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

// cachedResponse is what is stored in Redis.
type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

func cacheKey(cfg config.CacheConfig, scope string, c echo.Context) string {
	r := c.Request()
	sum := sha1.Sum([]byte(r.Method + " " + r.URL.Path + "?" + r.URL.RawQuery))
	return fmt.Sprintf("%s:%s:%x", cfg.Prefix, scope, sum[:])
}

// NewRedisCache serves repeated reads of a listing from Redis. Entries live
// under prefix:scope so EvictOnWrite can drop them when the data changes.
// A response is only stored when the scope generation did not move while the
// handler ran, so a read that raced a write is not cached after the evict.
// Redis errors are logged and the request falls through to the handler.
func NewRedisCache(cfg config.CacheConfig, rdb redis.Cmdable, scope string, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[c.Request().Method] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKey(cfg, scope, c)

			bs, err := rdb.Get(ctx, key).Bytes()
			switch {
			case err == nil:
				var hit cachedResponse
				if json.Unmarshal(bs, &hit) == nil {
					c.Response().Header().Set("X-Cache", "HIT")
					return c.Blob(hit.Status, hit.ContentType, hit.Body)
				}
			case !errors.Is(err, redis.Nil):
				log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
				return next(c)
			}
			gen, err := generation(ctx, rdb, cfg.Prefix, scope)
			if err != nil {
				log.Warn("cache read failed", zap.String("scope", scope), zap.Error(err))
				return next(c)
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.over {
				return nil
			}
			wctx := context.WithoutCancel(ctx)
			if now, err := generation(wctx, rdb, cfg.Prefix, scope); err != nil || now != gen {
				return nil
			}
			payload, err := json.Marshal(cachedResponse{
				Status:      cw.status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        cw.buf.Bytes(),
			})
			if err != nil {
				return nil
			}
			if err := rdb.Set(wctx, key, payload, cfg.TTL).Err(); err != nil {
				log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
			}
			return nil
		}
	}
}

// EvictOnWrite drops every cached entry of the given scopes after a
// successful non-GET request.
func EvictOnWrite(cfg config.CacheConfig, rdb redis.Cmdable, log *zap.Logger, scopes ...string) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			m := c.Request().Method
			if m == http.MethodGet || m == http.MethodHead || err != nil || c.Response().Status >= 400 {
				return err
			}
			ctx := context.WithoutCancel(c.Request().Context())
			for _, s := range scopes {
				if err := rdb.Incr(ctx, genKey(cfg.Prefix, s)).Err(); err != nil {
					log.Warn("cache generation bump failed", zap.String("scope", s), zap.Error(err))
				}
				if n, evErr := Evict(ctx, rdb, cfg.Prefix, s); evErr != nil {
					log.Warn("cache evict failed", zap.String("scope", s), zap.Error(evErr))
				} else if n > 0 {
					log.Debug("cache evicted", zap.String("scope", s), zap.Int("keys", n))
				}
			}
			return nil
		}
	}
}

// Evict deletes the keys of one scope and reports how many it removed.
func Evict(ctx context.Context, rdb redis.Cmdable, prefix, scope string) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	match := prefix + ":" + scope + ":*"
	for {
		keys, next, err := rdb.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			if err := rdb.Del(ctx, keys...).Err(); err != nil {
				return removed, err
			}
			removed += len(keys)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

// genKey sits outside prefix:scope:* so Evict never deletes it.
func genKey(prefix, scope string) string { return prefix + ":gen:" + scope }

func generation(ctx context.Context, rdb redis.Cmdable, prefix, scope string) (string, error) {
	v, err := rdb.Get(ctx, genKey(prefix, scope)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// CacheScopes used by the router.
const (
	ScopeTrips   = "trips"
	ScopeClients = "clients"
)
