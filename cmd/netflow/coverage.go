package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"NetflowWatch/internal/domain/models"
	"NetflowWatch/internal/repository"
	"NetflowWatch/internal/service/etherscan"
	"NetflowWatch/internal/services/netflow"
	applogger "NetflowWatch/pkg/logger"
)

func runCoverage(ctx context.Context, args []string, l *applogger.Logger) error {
	fs := flag.NewFlagSet("coverage", flag.ContinueOnError)
	fromRaw := fs.String("from", "", "requested first day YYYY-MM-DD (required)")
	toRaw := fs.String("to", "", "requested last day YYYY-MM-DD, inclusive (required)")
	hardMax := fs.Int("hard-max", etherscan.HardMax, "row count that suggests the API page limit was hit")
	tolerance := fs.Float64("tolerance", 1, "allowed edge gap in days")
	valueCol := fs.String("value-col", "value", "amount column")
	if err := fs.Parse(args); err != nil {
		return err
	}
	files, err := requireArgs(fs, "files")
	if err != nil {
		return err
	}
	if *fromRaw == "" {
		return &models.InputError{Row: -1, Field: "from", Err: fmt.Errorf("%w: required", models.ErrInvalidValue)}
	}
	from, err := parseDay("from", *fromRaw, time.Time{})
	if err != nil {
		return err
	}
	to, err := parseDay("to", *toRaw, from)
	if err != nil {
		return err
	}
	from, to = models.DayRange(from, to)

	var bad []string
	for _, path := range files {
		ts, err := repository.ReadTransfersFile(path, repository.TransferCSVOptions{ValueColumn: *valueCol})
		if err != nil {
			return err
		}
		c := netflow.CheckCoverage(ts, from, to, *hardMax, *tolerance)
		printCoverage(os.Stdout, filepath.Base(path), c)
		if c.Truncated() {
			bad = append(bad, filepath.Base(path))
		}
	}
	l.Info("coverage checked", applogger.Int("files", len(files)), applogger.Int("suspicious", len(bad)))
	if len(bad) > 0 {
		return &exitError{code: exitSuspicious, msg: "possible truncation: " + strings.Join(bad, ", ")}
	}
	return nil
}
