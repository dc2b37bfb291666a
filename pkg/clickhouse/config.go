package clickhouse

import (
	"errors"
	"net/url"
	"strconv"
	"time"

	applogger "NetflowWatch/pkg/logger"
)

var errNoHost = errors.New("clickhouse: host is required")

// ClientOption configures Client.
type ClientOption func(*ClientConfig)

// ClientConfig holds ClickHouse connection settings.
type ClientConfig struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	UseHTTP         bool
	AsyncInsert     bool
	WaitForAsync    bool
	MaxExecTime     time.Duration
	PingAttempts    int
	PingBackoff     time.Duration
	Logger          *applogger.Logger
}

func defaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Port:            9000,
		Database:        "default",
		User:            "default",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		PingAttempts:    1,
		PingBackoff:     time.Second,
	}
}

func WithHost(host string) ClientOption           { return func(c *ClientConfig) { c.Host = host } }
func WithPort(port int) ClientOption              { return func(c *ClientConfig) { c.Port = port } }
func WithDatabase(db string) ClientOption         { return func(c *ClientConfig) { c.Database = db } }
func WithHTTP(on bool) ClientOption               { return func(c *ClientConfig) { c.UseHTTP = on } }
func WithLogger(l *applogger.Logger) ClientOption { return func(c *ClientConfig) { c.Logger = l } }

func WithCredentials(user, password string) ClientOption {
	return func(c *ClientConfig) { c.User, c.Password = user, password }
}

func WithMaxConnections(maxOpen, maxIdle int) ClientOption {
	return func(c *ClientConfig) { c.MaxOpenConns, c.MaxIdleConns = maxOpen, maxIdle }
}

// WithTimeouts sets dial, read and write timeouts. Zero keeps the default.
func WithTimeouts(dial, read, write time.Duration) ClientOption {
	return func(c *ClientConfig) {
		if dial > 0 {
			c.DialTimeout = dial
		}
		if read > 0 {
			c.ReadTimeout = read
		}
		if write > 0 {
			c.WriteTimeout = write
		}
	}
}

// WithAsyncInsert batches inserts server side; wait makes the insert return
// only after the batch is flushed, which the store relies on for durability.
func WithAsyncInsert(enabled, wait bool) ClientOption {
	return func(c *ClientConfig) { c.AsyncInsert, c.WaitForAsync = enabled, wait }
}

// WithMaxExecutionTime caps server-side query time.
func WithMaxExecutionTime(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.MaxExecTime = d }
}

// WithPingRetry retries the startup ping for servers that come up after us.
func WithPingRetry(attempts int, backoff time.Duration) ClientOption {
	return func(c *ClientConfig) { c.PingAttempts, c.PingBackoff = max(attempts, 1), backoff }
}

func (c *ClientConfig) validate() error {
	if c.Host == "" {
		return errNoHost
	}
	return nil
}

// BuildDSN renders the connection string for clickhouse-go's database/sql driver.
// write_timeout stays client side; not every server accepts it as a setting.
func BuildDSN(cfg ClientConfig) string {
	scheme := "clickhouse"
	if cfg.UseHTTP {
		scheme = "http"
	}
	q := url.Values{}
	if cfg.DialTimeout > 0 {
		q.Set("dial_timeout", cfg.DialTimeout.String())
	}
	if cfg.ReadTimeout > 0 {
		q.Set("read_timeout", cfg.ReadTimeout.String())
	}
	if cfg.MaxExecTime > 0 {
		q.Set("max_execution_time", strconv.Itoa(int(cfg.MaxExecTime.Seconds())))
	}
	if cfg.AsyncInsert {
		q.Set("async_insert", "1")
		if cfg.WaitForAsync {
			q.Set("wait_for_async_insert", "1")
		}
	}
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:     "/" + cfg.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}
