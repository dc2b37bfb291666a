package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"NetflowWatch/internal/domain/models"
	"NetflowWatch/internal/domain/repository"
	pkgkafka "NetflowWatch/pkg/kafka"
	applogger "NetflowWatch/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const writeWait = 5 * time.Second

// AlertHub pushes alerts to connected websocket subscribers.
type AlertHub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	log      *applogger.Logger
	closed   bool
}

func NewAlertHub(l *applogger.Logger) *AlertHub {
	if l == nil {
		l = applogger.Nop()
	}
	return &AlertHub{
		clients:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:      l,
	}
}

var _ repository.AlertPublisher = (*AlertHub)(nil)

func (h *AlertHub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/alerts", h.serve)
}

func (h *AlertHub) serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	// subscribers never send; reading only detects the close
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

func (h *AlertHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// PublishAlert sends the alert to every subscriber.
func (h *AlertHub) PublishAlert(ctx context.Context, alert models.Alert) error {
	msg, err := json.Marshal(models.NewAlertView(alert))
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	h.Broadcast(msg)
	return nil
}

// Broadcast writes msg to all subscribers and drops the ones that fail.
// It returns the number of successful deliveries.
func (h *AlertHub) Broadcast(msg []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug("websocket write failed", applogger.Error(err))
			_ = conn.Close()
			delete(h.clients, conn)
			continue
		}
		sent++
	}
	return sent
}

// Clients returns the number of connected subscribers.
func (h *AlertHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *AlertHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn := range h.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		delete(h.clients, conn)
	}
	return nil
}

// AlertRelay forwards alerts published on Kafka by the agent to the hub.
type AlertRelay struct {
	hub   *AlertHub
	topic string
}

func NewAlertRelay(hub *AlertHub, topic string) *AlertRelay {
	return &AlertRelay{hub: hub, topic: topic}
}

func (r *AlertRelay) Topic() string { return r.topic }

// Handle forwards the raw payload once it decodes as an alert. Records tagged
// with another schema are skipped, untagged ones are trusted.
func (r *AlertRelay) Handle(ctx context.Context, d pkgkafka.Delivery) error {
	if schema, ok := d.Headers["schema"]; ok && schema != models.AlertSchema {
		return nil
	}
	var v models.AlertView
	if err := json.Unmarshal(d.Value, &v); err != nil {
		return fmt.Errorf("decode alert: %w", err)
	}
	if v.ID == "" {
		return fmt.Errorf("decode alert: missing id")
	}
	r.hub.Broadcast(d.Value)
	return nil
}
