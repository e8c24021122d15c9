package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/spinsa/inventario/internal/database"
)

// HealthHandler reports whether the process is up and the database reachable.
type HealthHandler struct {
	Conn *database.Provider
}

func NewHealthHandler(conn *database.Provider) *HealthHandler {
	return &HealthHandler{Conn: conn}
}

// Health answers 200 with {"status":"ok"} when the database answers a ping,
// 503 otherwise.  It never reconnects; the provider's first outcome stands.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	db, err := h.Conn.Get(ctx)
	if err == nil {
		err = db.PingContext(ctx)
	}
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "database": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "database": db.Dialect().Name()})
}
