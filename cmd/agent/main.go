package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "NetflowWatch/internal/domain/repository"
	"NetflowWatch/internal/repository"
	"NetflowWatch/internal/services/alerting"
	"NetflowWatch/internal/services/netflow"
	"NetflowWatch/internal/usecase"
	pkgkafka "NetflowWatch/pkg/kafka"
	applogger "NetflowWatch/pkg/logger"
	"NetflowWatch/pkg/util"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	csvPath := flag.String("csv", "", "daily total netflow CSV (required)")
	win := flag.Int("win", 7, "rolling window in days")
	z := flag.Float64("z", 2.0, "|zscore| alert threshold")
	minPeriods := flag.Int("min-periods", 0, "observations required for statistics (0: half the window, at least 3)")
	memoryPath := flag.String("memory", ".agent_memory/netflow_agent.json", "alert memory file")
	outDocs := flag.String("out_docs", "docs", "report directory")
	loop := flag.Bool("loop", false, "keep running, one pass per -sleep")
	sleep := flag.Int("sleep", 3600, "seconds between passes with -loop (minimum 5)")
	rotate := flag.Bool("rotate-monthly", false, "at start, archive the memory once per month and write reports under the month directory")
	redisAddr := flag.String("redis", "", "keep the memory and lock in Redis at this address instead of -memory")
	redisKey := flag.String("redis-key", "netflow:agent:seen", "Redis key of the memory set")
	brokers := flag.String("kafka-brokers", "", "comma separated brokers; publishes every alert when set")
	topic := flag.String("kafka-topic", "netflow.alerts", "alert topic")
	debug := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	l := applogger.NewWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}, level).
		With(applogger.String("component", "agent"))

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "agent: -csv is required")
		flag.Usage()
		os.Exit(2)
	}
	if *z <= 0 || *win < 1 || *minPeriods < 0 || *minPeriods > *win {
		fmt.Fprintf(os.Stderr, "agent: invalid detector parameters win=%d min-periods=%d z=%g\n", *win, *minPeriods, *z)
		os.Exit(2)
	}
	interval := max(time.Duration(*sleep)*time.Second, usecase.MinAgentInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, l, options{
		csv:       *csvPath,
		memory:    *memoryPath,
		docs:      *outDocs,
		redisAddr: *redisAddr,
		redisKey:  *redisKey,
		brokers:   util.SplitNonEmpty(*brokers, ","),
		topic:     *topic,
		loop:      *loop,
		interval:  interval,
		rotate:    *rotate,
		threshold: *z,
		detect:    netflow.DetectParams{Window: *win, MinPeriods: *minPeriods},
	})
	stop()
	switch {
	case errors.Is(err, usecase.ErrLocked):
		l.Error("another agent holds the memory lock; remove a stale lock file by hand if no agent runs", applogger.Error(err))
		os.Exit(1)
	case err != nil:
		l.Error("agent failed", applogger.Error(err))
		os.Exit(1)
	}
}

type options struct {
	csv       string
	memory    string
	docs      string
	redisAddr string
	redisKey  string
	brokers   []string
	topic     string
	loop      bool
	interval  time.Duration
	rotate    bool
	threshold float64
	detect    netflow.DetectParams
}

func run(ctx context.Context, l *applogger.Logger, o options) error {
	var (
		store domrepo.AlertMemoryStore
		lock  domrepo.InstanceLock
	)
	if o.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: o.redisAddr})
		defer rdb.Close()
		mem := repository.NewRedisAlertMemory(rdb, o.redisKey, max(10*time.Minute, 2*o.interval))
		store, lock = mem, mem
	} else {
		store = repository.NewFileAlertMemory(o.memory)
		lock = repository.NewFileInstanceLock(o.memory)
	}

	var sinks []usecase.AlertSink
	if len(o.brokers) > 0 {
		producer, err := pkgkafka.NewProducer(pkgkafka.WithBrokers(o.brokers), pkgkafka.WithHashByKey(true))
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		pub := repository.NewKafkaAlertPublisher(producer, o.topic)
		defer pub.Close()
		sinks = append(sinks, usecase.AlertSink{Name: "kafka", Publisher: pub})
	}

	agent := usecase.NewNetflowAgent(
		repository.NewCSVSeriesSource(o.csv),
		alerting.NewMemory(store, l, nil),
		repository.NewMarkdownReportWriter(o.docs),
		lock,
		sinks,
		nil,
		l,
		usecase.AgentOptions{
			Threshold:     o.threshold,
			Params:        o.detect,
			Interval:      o.interval,
			RotateMonthly: o.rotate,
			DocsDir:       o.docs,
		},
	)

	l.Info("agent starting",
		applogger.String("csv", o.csv),
		applogger.String("memory", store.Backend()),
		applogger.Bool("loop", o.loop),
		applogger.Duration("interval", o.interval),
	)
	return agent.Run(ctx, o.loop)
}
