package clickhouse

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(ClientConfig{
		Host:         "ch",
		Port:         9000,
		Database:     "netflow",
		User:         "default",
		Password:     "p@ss",
		DialTimeout:  5 * time.Second,
		MaxExecTime:  time.Minute,
		AsyncInsert:  true,
		WaitForAsync: true,
	})
	for _, want := range []string{
		"clickhouse://default:p%40ss@ch:9000/netflow?",
		"dial_timeout=5s",
		"max_execution_time=60",
		"async_insert=1",
		"wait_for_async_insert=1",
	} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("dsn %q missing %q", dsn, want)
		}
	}
	if strings.Contains(BuildDSN(ClientConfig{Host: "ch", Port: 8123, UseHTTP: true}), "clickhouse://") {
		t.Fatalf("http scheme not applied")
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(context.Background()); !errors.Is(err, errNoHost) {
		t.Fatalf("expected errNoHost, got %v", err)
	}
}

func TestOptionsKeepDefaults(t *testing.T) {
	cfg := defaultClientConfig()
	WithTimeouts(0, 30*time.Second, 0)(cfg)
	WithPingRetry(0, time.Second)(cfg)
	if cfg.DialTimeout != 5*time.Second || cfg.ReadTimeout != 30*time.Second || cfg.PingAttempts != 1 {
		t.Fatalf("config %+v", cfg)
	}
}
