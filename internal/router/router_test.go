package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spinsa/inventario/internal/auth"
	"github.com/spinsa/inventario/internal/config"
	"github.com/spinsa/inventario/internal/database"
	"github.com/spinsa/inventario/internal/gateway"
	"github.com/spinsa/inventario/internal/handler"
	"github.com/spinsa/inventario/internal/model"
	"github.com/spinsa/inventario/internal/repository"
	"github.com/spinsa/inventario/internal/session"
	"github.com/spinsa/inventario/internal/utils"
)

const secret = "bridge-secret"

type stack struct {
	srv   *httptest.Server
	token string
	users *repository.UserRepo
	mr    *miniredis.Miniredis
}

func newStack(t *testing.T) *stack {
	t.Helper()
	db, err := database.Open(context.Background(), database.Options{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "r.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	conn := database.Static(db)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := session.NewStore(t.TempDir(), nil)
	users := repository.NewUserRepo(conn)
	hub := handler.NewHub(nil)
	gw := gateway.New(gateway.Deps{
		Auth:        auth.NewService(users, store, nil, nil),
		Sessions:    store,
		Users:       users,
		Brands:      repository.NewBrandRepo(conn),
		Pieces:      repository.NewPieceRepo(conn),
		Inventories: repository.NewInventoryRepo(conn),
		Productions: repository.NewProductionRepo(conn),
		Shell:       hub,
	})
	t.Cleanup(gw.Close)

	e := echo.New()
	RegisterRoutes(e, Deps{
		Invoke:       handler.NewInvokeHandler(gw, nil),
		Hub:          hub,
		Health:       handler.NewHealthHandler(conn),
		Sessions:     store,
		BridgeSecret: secret,
		RateLimit:    config.RateLimitConfig{Enabled: true, Capacity: 100, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl"},
		Cache:        config.CacheConfig{Enabled: true, Commands: map[string]bool{"obtener-marcas": true}, TTL: time.Minute, Prefix: "cache"},
		Redis:        rdb,
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Stop)

	tok, err := utils.NewBridgeToken(secret, time.Hour)
	require.NoError(t, err)
	return &stack{srv: srv, token: tok.Token, users: users, mr: mr}
}

func (s *stack) invoke(t *testing.T, command string, payload any) (int, map[string]any) {
	t.Helper()
	var body string
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = string(b)
	}
	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/v1/invoke/"+command, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHealthIsPublic(t *testing.T) {
	s := newStack(t)
	resp, err := http.Get(s.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInvokeRequiresBridgeToken(t *testing.T) {
	s := newStack(t)
	resp, err := http.Post(s.srv.URL+"/v1/invoke/obtener-piezas", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestLoginFlowOverHTTP(t *testing.T) {
	s := newStack(t)
	_, err := s.users.Insert(context.Background(),
		model.User{Name: "Ana", Email: "ana@spinsa.mx", RoleID: model.RoleAdmin}, "clave")
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/v1/events?token=" + s.token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	var hello handler.Event
	require.NoError(t, ws.ReadJSON(&hello))

	status, out := s.invoke(t, "obtener-marcas", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthenticated", out["error"].(map[string]any)["kind"])

	status, out = s.invoke(t, "login-attempt", map[string]string{"correo": "ana@spinsa.mx", "password": "mala"})
	require.Equal(t, http.StatusOK, status)
	data := out["data"].(map[string]any)
	assert.Equal(t, false, data["success"])
	assert.Equal(t, "invalid_credentials", data["kind"])

	status, out = s.invoke(t, "login-attempt", map[string]string{"correo": "ana@spinsa.mx", "password": "clave"})
	require.Equal(t, http.StatusOK, status)
	data = out["data"].(map[string]any)
	assert.Equal(t, true, data["success"])
	assert.Equal(t, auth.ViewAdminDashboard, data["view"])

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var nav handler.Event
	require.NoError(t, ws.ReadJSON(&nav))
	assert.Equal(t, handler.EventNavigate, nav.Type)
	assert.Equal(t, auth.ViewAdminDashboard, nav.View)

	status, out = s.invoke(t, "obtener-marcas", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, out["data"], 4)
	assert.True(t, s.mr.Exists("cache:cmd:obtener-marcas:scope:1"))

	status, out = s.invoke(t, "no-existe", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, false, out["ok"])
}
