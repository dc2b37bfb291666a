package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"NetflowWatch/internal/domain/models"
	applogger "NetflowWatch/pkg/logger"
)

const transfersCSV = `hash,blockNumber,timeStamp,from,to,value
0x1,100,1746097200,0xaaa,0xB,10
0x2,101,1746183600,0xaaa,0xB,12
0x3,102,1746270000,0xb,0xccc,4
0x3,102,1746270000,0xb,0xccc,4
0x4,103,1746356400,0xaaa,0xb,9
`

func writeInput(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestAggregateFlagTopK(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	noConfig := filepath.Join(dir, "missing.yaml")
	in := writeInput(t, dir, "combined.csv", transfersCSV)

	err := runAggregate(ctx, []string{"-config", noConfig, "-exchanges", "binance=0xb", "-out", dir, in}, applogger.Nop())
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	total := filepath.Join(dir, "netflow_daily_total_2025-05-01__2025-05-04.csv")
	got := readOutput(t, total)
	// the duplicated outflow row is merged away
	want := "date,inflow,outflow,netflow\n2025-05-01,10,0,10\n2025-05-02,12,0,12\n2025-05-03,0,4,-4\n2025-05-04,9,0,9\n"
	if got != want {
		t.Fatalf("total csv:\n%s\nwant:\n%s", got, want)
	}
	byEx := readOutput(t, filepath.Join(dir, "netflow_daily_by_exchange_2025-05-01__2025-05-04.csv"))
	if !strings.HasPrefix(byEx, "date,exchange,inflow,outflow,netflow\n2025-05-01,binance,") {
		t.Fatalf("by exchange csv:\n%s", byEx)
	}

	if err := runFlag(ctx, []string{"-config", noConfig, "-win", "3", "-min-periods", "2", total}, applogger.Nop()); err != nil {
		t.Fatalf("flag: %v", err)
	}
	anom := readOutput(t, strings.TrimSuffix(total, ".csv")+"_ANOM.csv")
	if !strings.HasPrefix(anom, "date,inflow,outflow,netflow,roll_mean,roll_std,zscore,anomaly_hi,anomaly_lo\n2025-05-01,10,0,10,,,,false,false\n") {
		t.Fatalf("anom csv:\n%s", anom)
	}

	out := filepath.Join(dir, "docs")
	if err := runTopK(ctx, []string{"-config", noConfig, "-win", "3", "-min-periods", "2", "-k", "2", "-total", total, "-out", out}, applogger.Nop()); err != nil {
		t.Fatalf("topk: %v", err)
	}
	top := readOutput(t, filepath.Join(out, "topk_netflow_total.csv"))
	if lines := strings.Split(strings.TrimSpace(top), "\n"); len(lines) != 3 {
		t.Fatalf("topk csv:\n%s", top)
	}
	if md := readOutput(t, filepath.Join(out, "top_netflow_zscore.md")); !strings.Contains(md, "## Total") {
		t.Fatalf("markdown:\n%s", md)
	}
}

func TestCoverageExitCode(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "binance.csv", transfersCSV)

	err := runCoverage(context.Background(), []string{"-from", "2025-05-01", "-to", "2025-05-04", in}, applogger.Nop())
	if err != nil {
		t.Fatalf("full export should pass: %v", err)
	}

	err = runCoverage(context.Background(), []string{"-from", "2025-05-01", "-to", "2025-05-04", "-hard-max", "5", in}, applogger.Nop())
	var ee *exitError
	if !errors.As(err, &ee) || exitCode(err, applogger.Nop()) != exitSuspicious {
		t.Fatalf("expected exit %d, got %v", exitSuspicious, err)
	}

	err = runCoverage(context.Background(), []string{"-to", "2025-05-04", in}, applogger.Nop())
	if !models.IsInputError(err) || exitCode(err, applogger.Nop()) != 1 {
		t.Fatalf("missing -from should be an input error, got %v", err)
	}
}

func TestPreConfigFindsFlag(t *testing.T) {
	dir := t.TempDir()
	path := writeInput(t, dir, "c.yaml", "netflow:\n  window: 14\n")
	for _, args := range [][]string{
		{"-config", path, "x.csv"},
		{"--config=" + path},
	} {
		cfg, err := preConfig(args)
		if err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		if cfg.Netflow.Window != 14 {
			t.Fatalf("%v: window %d", args, cfg.Netflow.Window)
		}
	}
}
