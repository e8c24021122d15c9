package handler

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Event is the envelope pushed to the UI over the websocket.
type Event struct {
	Type string `json:"type"`
	View string `json:"view,omitempty"`
	Data any    `json:"data,omitempty"`
}

// EventNavigate asks the UI to load View.
const EventNavigate = "navigate"

// uiMessage is what the UI sends back.  Only view-ready is understood.
type uiMessage struct {
	Type string `json:"type"`
	View string `json:"view"`
}

const msgViewReady = "view-ready"

const (
	clientBuffer = 64
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	// The endpoint sits behind the bridge token; origin is not a boundary.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

type wsClient struct {
	events chan Event
}

// Hub fans events out to connected UI windows and tracks navigations
// waiting for their view to report ready.  It implements gateway.Shell.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	pendMu  sync.Mutex
	pending map[string][]chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		pending: make(map[string][]chan struct{}),
		stop:    make(chan struct{}),
		logger:  logger.With(slog.String("component", "hub")),
	}
}

// Navigate tells the UI to show view.  The returned channel is closed when
// a window reports the view ready.  A newer navigation supersedes pending
// ones for other views; their channels are never closed.
func (h *Hub) Navigate(view string) <-chan struct{} {
	ready := make(chan struct{})
	h.pendMu.Lock()
	waiting := h.pending[view]
	clear(h.pending)
	h.pending[view] = append(waiting, ready)
	h.pendMu.Unlock()

	h.broadcast(Event{Type: EventNavigate, View: view})
	return ready
}

// Send pushes an event with payload to every window.
func (h *Hub) Send(event string, payload any) {
	h.broadcast(Event{Type: event, Data: payload})
}

// Clients reports the number of connected windows.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop disconnects every window.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *Hub) markReady(view string) {
	h.pendMu.Lock()
	waiting := h.pending[view]
	delete(h.pending, view)
	h.pendMu.Unlock()
	for _, ch := range waiting {
		close(ch)
	}
}

func (h *Hub) broadcast(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		h.logger.Debug("event without listeners", slog.String("type", evt.Type))
	}
	for c := range h.clients {
		select {
		case c.events <- evt:
		default:
			h.logger.Warn("client buffer full, event dropped", slog.String("type", evt.Type))
		}
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// ServeWS handles GET /v1/events.  Writes go through a single goroutine;
// the handler goroutine reads view-ready messages until the socket closes.
func (h *Hub) ServeWS(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return nil
	}
	defer ws.Close()

	client := &wsClient{events: make(chan Event, clientBuffer)}
	client.events <- Event{Type: "connected"}
	h.register(client)
	defer h.unregister(client)
	h.logger.Info("ui connected", slog.String("remote", c.RealIP()))

	done := make(chan struct{})
	go h.writeLoop(ws, client, done)

	ws.SetReadLimit(64 * 1024)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error { return ws.SetReadDeadline(time.Now().Add(pongWait)) })
	for {
		var msg uiMessage
		if err := ws.ReadJSON(&msg); err != nil {
			h.logger.Info("ui disconnected", slog.Any("error", err))
			break
		}
		switch msg.Type {
		case msgViewReady:
			h.markReady(msg.View)
		default:
			h.logger.Debug("ignored ui message", slog.String("type", msg.Type))
		}
	}
	close(done)
	return nil
}

func (h *Hub) writeLoop(ws *websocket.Conn, client *wsClient, done <-chan struct{}) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case <-h.stop:
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), time.Now().Add(writeWait))
			_ = ws.Close()
			return
		case evt := <-client.events:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(evt); err != nil {
				h.logger.Warn("websocket write failed", slog.String("type", evt.Type), slog.Any("error", err))
				_ = ws.Close()
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = ws.Close()
				return
			}
		}
	}
}
