package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/spinsa/inventario/internal/gateway"
	"github.com/spinsa/inventario/internal/middleware"
)

// maxPayload bounds the JSON body of one command.
const maxPayload = 1 << 20

// commandTimeout bounds a single command; background work started by a
// command is not tied to it.
const commandTimeout = 15 * time.Second

// Invoker runs a named command.  *gateway.Gateway implements it.
type Invoker interface {
	Invoke(ctx context.Context, name string, payload json.RawMessage) (any, error)
}

// InvokeHandler exposes the command gateway over HTTP.
type InvokeHandler struct {
	gw     Invoker
	logger *slog.Logger
}

func NewInvokeHandler(gw Invoker, logger *slog.Logger) *InvokeHandler {
	if gw == nil {
		panic("nil gateway passed to NewInvokeHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InvokeHandler{gw: gw, logger: logger.With(slog.String("component", "transport"))}
}

type errorPart struct {
	Kind    gateway.Kind `json:"kind"`
	Message string       `json:"message"`
}

type envelope struct {
	OK    bool       `json:"ok"`
	Data  any        `json:"data"`
	Error *errorPart `json:"error,omitempty"`
}

// statusOf maps failure kinds to HTTP statuses.  Kinds only reported inside
// a Result never reach it.
func statusOf(k gateway.Kind) int {
	switch k {
	case gateway.KindUnauthenticated, gateway.KindInvalidCredentials:
		return http.StatusUnauthorized
	case gateway.KindForbidden:
		return http.StatusForbidden
	case gateway.KindNotFound:
		return http.StatusNotFound
	case gateway.KindInvalid, gateway.KindNoChange:
		return http.StatusBadRequest
	case gateway.KindThrottled:
		return http.StatusTooManyRequests
	case gateway.KindConflict:
		return http.StatusConflict
	case gateway.KindConnection:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Invoke handles POST /v1/invoke/:command.  The body is the command payload
// and may be empty.  Results of mutations, successful or not, are 200.
func (h *InvokeHandler) Invoke(c echo.Context) error {
	name := c.Param("command")
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPayload+1))
	if err != nil {
		return h.fail(c, name, &gateway.Error{Kind: gateway.KindInvalid, Message: "No se pudo leer la solicitud.", Err: err})
	}
	if len(body) > maxPayload {
		return h.fail(c, name, &gateway.Error{Kind: gateway.KindInvalid, Message: "La solicitud es demasiado grande."})
	}
	if len(bytes.TrimSpace(body)) > 0 && !json.Valid(body) {
		return h.fail(c, name, &gateway.Error{Kind: gateway.KindInvalid, Message: "El cuerpo no es JSON válido."})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), commandTimeout)
	defer cancel()

	out, err := h.gw.Invoke(ctx, name, json.RawMessage(body))
	if err != nil {
		return h.fail(c, name, err)
	}
	return c.JSON(http.StatusOK, envelope{OK: true, Data: out})
}

func (h *InvokeHandler) fail(c echo.Context, name string, err error) error {
	k := gateway.KindOf(err)
	msg := gateway.Message(k)
	var gerr *gateway.Error
	if errors.As(err, &gerr) && gerr.Message != "" {
		msg = gerr.Message
	}
	status := statusOf(k)
	if status >= http.StatusInternalServerError {
		h.logger.Error("invoke failed",
			slog.String("request_id", middleware.RequestIDFrom(c)),
			slog.String("command", name),
			slog.Any("error", err))
	}
	return c.JSON(status, envelope{OK: false, Error: &errorPart{Kind: k, Message: msg}})
}
