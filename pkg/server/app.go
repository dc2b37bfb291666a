package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"NetflowWatch/internal/usecase"
	"NetflowWatch/pkg/config"
	xhttp "NetflowWatch/pkg/http"
	pkgkafka "NetflowWatch/pkg/kafka"
	applogger "NetflowWatch/pkg/logger"
)

// Option configures App.
type Option func(*App)

func WithHTTPServer(s *xhttp.Server) Option        { return func(a *App) { a.httpServer = s } }
func WithAgent(ag *usecase.NetflowAgent) Option    { return func(a *App) { a.agent = ag } }
func WithIngest(in *usecase.TransferIngest) Option { return func(a *App) { a.ingest = in } }
func WithRelay(c *pkgkafka.Consumer) Option        { return func(a *App) { a.consumer = c } }

// WithClosers appends resources closed, in order, after every loop stopped.
func WithClosers(cs ...io.Closer) Option {
	return func(a *App) { a.closers = append(a.closers, cs...) }
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	agent      *usecase.NetflowAgent
	ingest     *usecase.TransferIngest
	consumer   *pkgkafka.Consumer
	closers    []io.Closer
	wg         sync.WaitGroup
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, opts ...Option) *App {
	if l == nil {
		l = applogger.Nop()
	}
	a := &App{cfg: cfg, log: l}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until interrupted or until the agent
// stops for good (lost or contended lock).
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			return err
		}
		a.log.Info("alert relay started", applogger.String("topic", a.cfg.Kafka.Topic))
	}

	if a.ingest != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.ingestLoop(ctx)
		}()
	}

	agentErr := make(chan error, 1)
	if a.agent != nil && a.cfg.Agent.Enabled {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			agentErr <- a.agent.Run(ctx, true)
		}()
		a.log.Info("agent started",
			applogger.Duration("interval", a.cfg.Agent.Interval),
			applogger.Float64("z", a.cfg.Netflow.ZThreshold),
			applogger.Int("window", a.cfg.Netflow.Window),
		)
	}

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.log.Error("http server start error", applogger.Error(err))
			cancel()
			return errors.Join(err, a.shutdown())
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err := <-agentErr:
		if err != nil {
			a.log.Error("agent stopped", applogger.Error(err))
			runErr = err
		}
	}
	cancel()
	return errors.Join(runErr, a.shutdown())
}

// ingestLoop refreshes recent transfers so the agent sees today's flows.
func (a *App) ingestLoop(ctx context.Context) {
	interval := max(a.cfg.Agent.Interval, usecase.MinAgentInterval)
	for {
		if _, err := a.ingest.Sync(ctx, a.cfg.Etherscan.SyncDays); err != nil && ctx.Err() == nil {
			a.log.Warn("transfer sync failed", applogger.Error(err))
		}
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	a.log.Info("shutting down...")
	timeout := a.cfg.Server.ShutdownTimeout
	if a.httpServer != nil {
		timeout = a.httpServer.ShutdownTimeout()
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("background loops did not stop in time")
	}

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn("close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
