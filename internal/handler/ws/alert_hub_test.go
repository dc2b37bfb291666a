package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"NetflowWatch/internal/domain/models"
	pkgkafka "NetflowWatch/pkg/kafka"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

func dial(t *testing.T, hub *AlertHub) (*websocket.Conn, func()) {
	t.Helper()
	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/alerts"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	return conn, func() {
		_ = conn.Close()
		srv.Close()
	}
}

func TestAlertHubPublish(t *testing.T) {
	hub := NewAlertHub(nil)
	conn, done := dial(t, hub)
	defer done()

	alert := models.Alert{
		ID:        "a1",
		Threshold: 2,
		Window:    7,
		CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Anomalies: []models.Anomaly{{
			Polarity: models.PolarityLow,
			Row:      models.DailyNetflowRow{Date: time.Date(2025, 5, 8, 0, 0, 0, 0, time.UTC), Netflow: -900, ZScore: models.Float(-2.2)},
		}},
	}
	if err := hub.PublishAlert(context.Background(), alert); err != nil {
		t.Fatalf("publish: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var v models.AlertView
	if err := json.Unmarshal(msg, &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.ID != "a1" || len(v.Anomalies) != 1 || v.Anomalies[0].Date != "2025-05-08" {
		t.Fatalf("payload %+v", v)
	}
}

func TestAlertRelay(t *testing.T) {
	hub := NewAlertHub(nil)
	conn, done := dial(t, hub)
	defer done()

	relay := NewAlertRelay(hub, "netflow.alerts")
	if err := relay.Handle(context.Background(), pkgkafka.Delivery{Value: []byte("not json")}); err == nil {
		t.Fatalf("expected decode error")
	}
	foreign := pkgkafka.Delivery{Value: []byte("not json"), Headers: map[string]string{"schema": "other.v2"}}
	if err := relay.Handle(context.Background(), foreign); err != nil {
		t.Fatalf("foreign schema should be skipped: %v", err)
	}
	d := pkgkafka.Delivery{
		Value:   []byte(`{"id":"r1","anomalies":[]}`),
		Headers: map[string]string{"schema": models.AlertSchema},
	}
	if err := relay.Handle(context.Background(), d); err != nil {
		t.Fatalf("relay: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil || !strings.Contains(string(msg), `"r1"`) {
		t.Fatalf("relayed %s %v", msg, err)
	}
}

func TestAlertHubClose(t *testing.T) {
	hub := NewAlertHub(nil)
	_, done := dial(t, hub)
	defer done()

	if err := hub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if hub.Clients() != 0 {
		t.Fatalf("clients left after close")
	}
	if n := hub.Broadcast([]byte("x")); n != 0 {
		t.Fatalf("broadcast after close reached %d", n)
	}
}
