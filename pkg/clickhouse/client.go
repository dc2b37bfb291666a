package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	applogger "NetflowWatch/pkg/logger"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

// Client owns the database/sql pool for one ClickHouse database.
type Client struct {
	db       *sql.DB
	database string
}

// NewClient opens a pool and pings the server, retrying per WithPingRetry.
func NewClient(ctx context.Context, opts ...ClientOption) (*Client, error) {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("clickhouse", BuildDSN(*cfg))
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := ping(ctx, db, cfg); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Client{db: db, database: cfg.Database}, nil
}

func ping(ctx context.Context, db *sql.DB, cfg *ClientConfig) error {
	l := cfg.Logger
	if l == nil {
		l = applogger.Nop()
	}
	for attempt := 1; ; attempt++ {
		pctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		err := db.PingContext(pctx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt >= cfg.PingAttempts {
			return fmt.Errorf("clickhouse ping after %d attempt(s): %w", attempt, err)
		}
		l.Warn("clickhouse not ready",
			applogger.Int("attempt", attempt),
			applogger.String("host", cfg.Host),
			applogger.Error(err),
		)
		t := time.NewTimer(cfg.PingBackoff)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}

func (c *Client) DB() *sql.DB      { return c.db }
func (c *Client) Database() string { return c.database }

// Health pings the server; it backs the /health check.
func (c *Client) Health(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
