package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"NetflowWatch/internal/domain/models"
	"NetflowWatch/internal/repository"
	"NetflowWatch/internal/services/netflow"
	"NetflowWatch/internal/usecase"
	applogger "NetflowWatch/pkg/logger"
)

// runFlag writes <name>_ANOM.csv next to each daily CSV. Files with an exchange
// column are scored per exchange.
func runFlag(ctx context.Context, args []string, l *applogger.Logger) error {
	cfg, err := preConfig(args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("flag", flag.ContinueOnError)
	fs.String("config", defaultConfig, "config file path")
	params := detectFlags(fs, cfg)
	z := fs.Float64("z", cfg.Netflow.FlagThreshold, "|zscore| threshold for anomaly_hi/anomaly_lo")
	outDir := fs.String("out", "", "output directory (default: next to the input)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	files, err := requireArgs(fs, "files")
	if err != nil {
		return err
	}
	if *z <= 0 {
		return &models.InputError{Row: -1, Field: "z", Value: fmt.Sprint(*z), Err: models.ErrInvalidParams}
	}

	pipeline := usecase.NewNetflowPipeline(params(), nil, l)
	for _, path := range files {
		rows, err := repository.ReadDailyFile(path)
		if err != nil {
			return err
		}
		byExchange := hasExchange(rows)
		var res usecase.PipelineResult
		if byExchange {
			res, err = pipeline.Detect(ctx, rows, nil)
		} else {
			res, err = pipeline.Detect(ctx, nil, rows)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		detected := res.Total
		if byExchange {
			detected = res.PerExchange
		}

		dir := filepath.Dir(path)
		if *outDir != "" {
			if err := os.MkdirAll(*outDir, 0o755); err != nil {
				return err
			}
			dir = *outDir
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + "_ANOM.csv"
		out := filepath.Join(dir, name)
		if err := writeDaily(out, detected, repository.DailyCSVOptions{Exchange: byExchange, Threshold: z}); err != nil {
			return err
		}
		l.Info("anomalies flagged",
			applogger.String("out", out),
			applogger.Int("rows", len(detected)),
			applogger.Int("anomalies", len(netflow.Anomalies(detected, *z))),
			applogger.Float64("z", *z),
		)
	}
	return nil
}

func hasExchange(rows []models.DailyNetflowRow) bool {
	for _, r := range rows {
		if r.Exchange != "" {
			return true
		}
	}
	return false
}
