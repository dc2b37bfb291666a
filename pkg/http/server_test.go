package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	srv := NewServer(nil,
		WithMetricsPath(""),
		WithHealthCheck("memory", func(context.Context) error { return nil }),
	)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var body APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != http.StatusOK {
		t.Fatalf("body %+v", body)
	}
}

func TestHealthEndpointUnhealthy(t *testing.T) {
	srv := NewServer(nil,
		WithMetricsPath(""),
		WithHealthCheck("clickhouse", func(context.Context) error { return errors.New("down") }),
	)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var body APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 in body, got %+v", body)
	}
}
