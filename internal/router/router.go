package router // router defines how HTTP routes are registered for the API

import (
	"log/slog"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/spinsa/inventario/internal/config"
	"github.com/spinsa/inventario/internal/handler"
	"github.com/spinsa/inventario/internal/middleware"
	"github.com/spinsa/inventario/internal/model"
)

// SessionReader is the part of the session store the cache needs.
type SessionReader interface {
	Read() (*model.User, error)
}

// Deps carries everything the routes are built from.  Redis may be nil;
// the limiter and the cache then pass requests through.
type Deps struct {
	Invoke       *handler.InvokeHandler
	Hub          *handler.Hub
	Health       *handler.HealthHandler
	Sessions     SessionReader
	BridgeSecret string
	RateLimit    config.RateLimitConfig
	Cache        config.CacheConfig
	Redis        *redis.Client
	Logger       *slog.Logger
}

// RegisterRoutes mounts the health check and the bridge-protected /v1 API.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", d.Health.Health)

	v1 := e.Group("/v1", middleware.RequestID(), middleware.BridgeAuth(d.BridgeSecret, d.Logger))
	v1.POST("/invoke/:command", d.Invoke.Invoke,
		middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Logger),
		middleware.NewRedisCache(d.Cache, d.Redis, sessionScope(d.Sessions), d.Logger),
	)
	v1.GET("/events", d.Hub.ServeWS)
}

// sessionScope partitions cached responses by the signed-in user.
func sessionScope(s SessionReader) middleware.ScopeFunc {
	if s == nil {
		return nil
	}
	return func(echo.Context) string {
		u, err := s.Read()
		if err != nil || u == nil {
			return ""
		}
		return strconv.FormatInt(u.ID, 10)
	}
}
