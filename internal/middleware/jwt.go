package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/spinsa/inventario/internal/utils"
)

// BridgeAuth returns an Echo middleware that only lets the UI shell through.
// The bridge token is read from the Authorization header ("Bearer <jwt>")
// or, for the websocket upgrade where browsers cannot set headers, from
// the token query parameter.
func BridgeAuth(secret string, logger *slog.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearer(c.Request())
			if raw == "" {
				return refuse(c, http.StatusUnauthorized, "unauthenticated", "missing bridge token")
			}
			if err := utils.ParseBridgeToken(secret, raw); err != nil {
				logger.Warn("bridge token refused",
					slog.String("request_id", RequestIDFrom(c)),
					slog.String("path", c.Path()),
					slog.Any("error", err))
				return refuse(c, http.StatusUnauthorized, "unauthenticated", "invalid bridge token")
			}
			return next(c)
		}
	}
}

func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// refuse writes the error envelope used by the invoke endpoint.
func refuse(c echo.Context, status int, kind, msg string) error {
	return c.JSON(status, echo.Map{
		"ok":    false,
		"error": echo.Map{"kind": kind, "message": msg},
	})
}
