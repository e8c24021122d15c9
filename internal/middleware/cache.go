package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/spinsa/inventario/internal/config"
)

// captureWriter copies the response body, up to limit bytes, while
// forwarding it to the client.
type captureWriter struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.truncated {
		if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
			cw.truncated = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

// ScopeFunc names the cache partition of a request.  An empty scope
// disables caching for that request.
type ScopeFunc func(c echo.Context) string

// CacheKey builds the Redis key of a cached command response.
func CacheKey(cfg config.CacheConfig, command, scope string) string {
	return strings.Join([]string{cfg.Prefix, "cmd", command, "scope", scope}, ":")
}

// NewRedisCache serves configured read commands from Redis.  Only 200
// responses are stored.  Responses are partitioned by scope so that a
// cached answer is never served across sessions.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, scope ScopeFunc, logger *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil || scope == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			command := c.Param("command")
			if !cfg.Commands[command] {
				return next(c)
			}
			s := scope(c)
			if s == "" {
				return next(c)
			}
			ctx := c.Request().Context()
			key := CacheKey(cfg, command, s)

			body, err := rdb.Get(ctx, key).Bytes()
			switch {
			case err == nil:
				c.Response().Header().Set("X-Cache", "HIT")
				return c.JSONBlob(http.StatusOK, body)
			case !errors.Is(err, redis.Nil):
				logger.Warn("cache read failed", slog.String("key", key), slog.Any("error", err))
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.truncated || cw.buf.Len() == 0 {
				return nil
			}
			if err := rdb.SetEx(context.WithoutCancel(ctx), key, cw.buf.Bytes(), ttl).Err(); err != nil {
				logger.Warn("cache write failed", slog.String("key", key), slog.Any("error", err))
			}
			return nil
		}
	}
}
