package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"NetflowWatch/internal/domain/models"
	"NetflowWatch/internal/services/netflow"
	"NetflowWatch/pkg/config"
	applogger "NetflowWatch/pkg/logger"

	"github.com/rs/zerolog"
)

const usage = `usage: netflow <command> [flags]

commands:
  fetch      download exchange transfers from Etherscan into CSV (and ClickHouse)
  aggregate  reduce transfer CSVs to daily per-exchange and total netflow
  flag       add rolling statistics and anomaly columns to a daily CSV
  topk       rank days by |zscore|
  coverage   check transfer exports for truncation

run "netflow <command> -h" for the flags of a command
`

const defaultConfig = "config/config.yaml"

// exitSuspicious is the exit code when an export looks truncated.
const exitSuspicious = 2

type command func(ctx context.Context, args []string, l *applogger.Logger) error

type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func main() {
	commands := map[string]command{
		"fetch":     runFetch,
		"aggregate": runAggregate,
		"flag":      runFlag,
		"topk":      runTopK,
		"coverage":  runCoverage,
	}
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	l := applogger.NewWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}, zerolog.InfoLevel).
		With(applogger.String("cmd", os.Args[1]))
	err := cmd(ctx, os.Args[2:], l)
	stop()
	os.Exit(exitCode(err, l))
}

func exitCode(err error, l *applogger.Logger) int {
	var ee *exitError
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return 0
	case errors.As(err, &ee):
		l.Warn(ee.msg)
		return ee.code
	case models.IsInputError(err):
		l.Error("invalid input", applogger.Error(err))
		return 1
	default:
		l.Error("command failed", applogger.Error(err))
		return 1
	}
}

// loadConfig reads the YAML file when present, else starts from defaults.
// Environment overrides apply either way.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err == nil {
		return config.LoadWithEnv(path)
	}
	cfg := config.Default()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// detectFlags registers -win and -min-periods with the configured defaults.
func detectFlags(fs *flag.FlagSet, cfg *config.Config) func() netflow.DetectParams {
	win := fs.Int("win", cfg.Netflow.Window, "rolling window in days")
	minPeriods := fs.Int("min-periods", cfg.Netflow.MinPeriods, "observations required for statistics (0: half the window, at least 3)")
	return func() netflow.DetectParams {
		return netflow.DetectParams{Window: *win, MinPeriods: *minPeriods}
	}
}

// preConfig extracts -config before the full flag set is built, so config
// values can serve as flag defaults.
func preConfig(args []string) (*config.Config, error) {
	path := defaultConfig
	for i, a := range args {
		name, val, hasVal := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasVal {
			path = val
		} else if i+1 < len(args) {
			path = args[i+1]
		}
		break
	}
	return loadConfig(path)
}

func parseDay(name, raw string, def time.Time) (time.Time, error) {
	if raw == "" {
		return def, nil
	}
	d, err := models.ParseDay(raw)
	if err != nil {
		return time.Time{}, &models.InputError{Row: -1, Field: name, Value: raw, Err: models.ErrInvalidValue}
	}
	return d, nil
}

func requireArgs(fs *flag.FlagSet, what string) ([]string, error) {
	if fs.NArg() == 0 {
		return nil, &models.InputError{Row: -1, Field: what, Err: fmt.Errorf("%w: no input files", models.ErrInvalidValue)}
	}
	return fs.Args(), nil
}
