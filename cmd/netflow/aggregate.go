package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"NetflowWatch/internal/domain/models"
	"NetflowWatch/internal/repository"
	"NetflowWatch/internal/services/netflow"
	"NetflowWatch/internal/usecase"
	applogger "NetflowWatch/pkg/logger"
	"NetflowWatch/pkg/util"
)

func runAggregate(ctx context.Context, args []string, l *applogger.Logger) error {
	cfg, err := preConfig(args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("aggregate", flag.ContinueOnError)
	fs.String("config", defaultConfig, "config file path")
	exchangesRaw := fs.String("exchanges", "", "label=address pairs, comma separated (default: exchanges from config)")
	valueCol := fs.String("value-col", "value", "amount column")
	outDir := fs.String("out", "data", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	files, err := requireArgs(fs, "files")
	if err != nil {
		return err
	}

	raw := cfg.Exchanges
	if *exchangesRaw != "" {
		raw = map[string]string{}
		for _, pair := range util.SplitNonEmpty(*exchangesRaw, ",") {
			label, addr, ok := strings.Cut(pair, "=")
			if !ok {
				return &models.InputError{Row: -1, Field: "exchanges", Value: pair, Err: models.ErrInvalidValue}
			}
			raw[label] = addr
		}
	}
	exchanges, err := models.NewExchangeAddressMap(raw)
	if err != nil {
		return err
	}
	if len(exchanges) == 0 {
		return &models.InputError{Row: -1, Field: "exchanges", Err: fmt.Errorf("%w: no custody addresses", models.ErrInvalidValue)}
	}

	batches := make([][]models.TransferRecord, 0, len(files))
	for _, path := range files {
		ts, err := repository.ReadTransfersFile(path, repository.TransferCSVOptions{ValueColumn: *valueCol})
		if err != nil {
			return err
		}
		batches = append(batches, ts)
	}
	merged := netflow.MergeTransfers(batches...)

	pipeline := usecase.NewNetflowPipeline(netflow.DetectParams{}, nil, l)
	perExchange, total := pipeline.Aggregate(merged, exchanges)
	period := netflow.Period(total)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	byExPath := filepath.Join(*outDir, "netflow_daily_by_exchange_"+period+".csv")
	totalPath := filepath.Join(*outDir, "netflow_daily_total_"+period+".csv")
	if err := writeDaily(byExPath, perExchange, repository.DailyCSVOptions{Exchange: true}); err != nil {
		return err
	}
	if err := writeDaily(totalPath, total, repository.DailyCSVOptions{}); err != nil {
		return err
	}
	l.Info("netflow aggregated",
		applogger.Int("transfers", len(merged)),
		applogger.Int("days", len(total)),
		applogger.String("by_exchange", byExPath),
		applogger.String("total", totalPath),
	)
	return nil
}

func writeDaily(path string, rows []models.DailyNetflowRow, opts repository.DailyCSVOptions) error {
	return repository.WriteFile(path, func(w io.Writer) error {
		return repository.WriteDailyCSV(w, rows, opts)
	})
}
