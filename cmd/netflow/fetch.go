package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"NetflowWatch/internal/di"
	"NetflowWatch/internal/domain/models"
	domrepo "NetflowWatch/internal/domain/repository"
	"NetflowWatch/internal/repository"
	"NetflowWatch/internal/service/etherscan"
	"NetflowWatch/internal/services/netflow"
	"NetflowWatch/internal/usecase"
	applogger "NetflowWatch/pkg/logger"
)

func runFetch(ctx context.Context, args []string, l *applogger.Logger) error {
	cfg, err := preConfig(args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.String("config", defaultConfig, "config file path")
	fromRaw := fs.String("from", "", "first day YYYY-MM-DD (default: etherscan.sync_days before -to)")
	toRaw := fs.String("to", "", "last day YYYY-MM-DD, inclusive (default: today UTC)")
	outDir := fs.String("out", "data", "output directory for transfer CSVs")
	store := fs.Bool("store", false, "also insert the merged transfers into ClickHouse")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if cfg.Etherscan.APIKey == "" {
		return &models.InputError{Row: -1, Field: "etherscan.api_key", Err: fmt.Errorf("%w: set ETHERSCAN_API_KEY", models.ErrInvalidValue)}
	}
	exchanges, err := di.ProvideExchanges(cfg)
	if err != nil {
		return err
	}
	if len(exchanges) == 0 {
		return &models.InputError{Row: -1, Field: "exchanges", Err: fmt.Errorf("%w: no custody addresses configured", models.ErrInvalidValue)}
	}
	to, err := parseDay("to", *toRaw, models.DayOf(time.Now()))
	if err != nil {
		return err
	}
	from, err := parseDay("from", *fromRaw, to.AddDate(0, 0, -max(cfg.Etherscan.SyncDays, 1)+1))
	if err != nil {
		return err
	}

	var ns domrepo.NetflowStore
	if *store {
		cfg.ClickHouse.Enabled = true
		client, err := di.ProvideClickHouseClient(cfg, l)
		if err != nil {
			return err
		}
		defer client.Close()
		if ns, err = di.ProvideNetflowStore(client, l); err != nil {
			return err
		}
	}

	client := di.ProvideEtherscanClient(cfg, l)
	ingest := usecase.NewTransferIngest(client, client, ns, exchanges, etherscan.HardMax, nil, l)
	res, err := ingest.Fetch(ctx, from, to)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	for _, label := range slices.Sorted(maps.Keys(res.PerExchange)) {
		path := filepath.Join(*outDir, label+"_transfers.csv")
		if err := writeTransfers(path, res.PerExchange[label]); err != nil {
			return err
		}
	}
	combined := filepath.Join(*outDir, "combined_transfers.csv")
	if err := writeTransfers(combined, res.Combined); err != nil {
		return err
	}
	l.Info("transfers written",
		applogger.String("combined", combined),
		applogger.Int("rows", len(res.Combined)),
		applogger.Bool("stored", ns != nil),
	)

	for _, label := range slices.Sorted(maps.Keys(res.Coverage)) {
		printCoverage(os.Stdout, label, res.Coverage[label])
	}
	if bad := res.Suspicious(); len(bad) > 0 {
		return &exitError{code: exitSuspicious, msg: "possible truncation: " + strings.Join(bad, ", ")}
	}
	return nil
}

func writeTransfers(path string, ts []models.TransferRecord) error {
	return repository.WriteFile(path, func(w io.Writer) error {
		return repository.WriteTransfersCSV(w, ts)
	})
}

// printCoverage writes one block per export: requested vs observed range and verdict.
func printCoverage(w io.Writer, name string, c netflow.Coverage) {
	const layout = "2006-01-02 15:04:05"
	fmt.Fprintf(w, "== %s\n", name)
	fmt.Fprintf(w, "rows:      %d\n", c.Rows)
	fmt.Fprintf(w, "requested: %s .. %s\n", c.RequestFrom.Format(layout), c.RequestTo.Format(layout))
	if c.Rows == 0 {
		fmt.Fprintf(w, "observed:  none\n")
	} else {
		fmt.Fprintf(w, "observed:  %s .. %s\n", c.DataFrom.Format(layout), c.DataTo.Format(layout))
		fmt.Fprintf(w, "gaps:      start %+.2fd, end %+.2fd\n", c.StartGapDays, c.EndGapDays)
	}
	if c.Truncated() {
		fmt.Fprintf(w, "verdict:   SUSPICIOUS\n")
		for _, r := range c.Reasons {
			fmt.Fprintf(w, "  - %s\n", r)
		}
	} else {
		fmt.Fprintf(w, "verdict:   ok\n")
	}
	fmt.Fprintln(w)
}
