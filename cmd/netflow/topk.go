package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"NetflowWatch/internal/domain/models"
	"NetflowWatch/internal/repository"
	"NetflowWatch/internal/usecase"
	applogger "NetflowWatch/pkg/logger"
)

func runTopK(ctx context.Context, args []string, l *applogger.Logger) error {
	cfg, err := preConfig(args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("topk", flag.ContinueOnError)
	fs.String("config", defaultConfig, "config file path")
	params := detectFlags(fs, cfg)
	totalPath := fs.String("total", "", "daily total CSV (required)")
	byExPath := fs.String("by-exchange", "", "daily per-exchange CSV")
	k := fs.Int("k", cfg.Netflow.TopK, "days to keep per series")
	outDir := fs.String("out", "docs", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *totalPath == "" {
		return &models.InputError{Row: -1, Field: "total", Err: fmt.Errorf("%w: required", models.ErrInvalidValue)}
	}
	if *k < 1 {
		return &models.InputError{Row: -1, Field: "k", Value: fmt.Sprint(*k), Err: models.ErrInvalidParams}
	}

	total, err := repository.ReadDailyFile(*totalPath)
	if err != nil {
		return err
	}
	var perExchange []models.DailyNetflowRow
	if *byExPath != "" {
		if perExchange, err = repository.ReadDailyFile(*byExPath); err != nil {
			return err
		}
	}

	pipeline := usecase.NewNetflowPipeline(params(), nil, l)
	res, err := pipeline.Detect(ctx, perExchange, total)
	if err != nil {
		return err
	}
	topTotal, topByEx := pipeline.TopK(res, *k)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	totalOut := filepath.Join(*outDir, "topk_netflow_total.csv")
	if err := writeDaily(totalOut, topTotal, repository.DailyCSVOptions{Stats: true}); err != nil {
		return err
	}
	if *byExPath != "" {
		if err := writeDaily(filepath.Join(*outDir, "topk_netflow_by_exchange.csv"), topByEx, repository.DailyCSVOptions{Exchange: true, Stats: true}); err != nil {
			return err
		}
	}
	mdOut := filepath.Join(*outDir, "top_netflow_zscore.md")
	if err := repository.WriteFile(mdOut, func(w io.Writer) error {
		return repository.RenderTopK(w, topTotal, topByEx)
	}); err != nil {
		return err
	}
	l.Info("top-k written",
		applogger.Int("k", *k),
		applogger.Int("total", len(topTotal)),
		applogger.Int("by_exchange", len(topByEx)),
		applogger.String("markdown", mdOut),
	)
	return nil
}
