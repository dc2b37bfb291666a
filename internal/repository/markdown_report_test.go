package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"NetflowWatch/internal/domain/models"
)

func sampleAlert() models.Alert {
	return models.Alert{
		ID:        "a1",
		Threshold: 2,
		Window:    7,
		Anomalies: []models.Anomaly{{
			Polarity: models.PolarityHigh,
			Row: models.DailyNetflowRow{
				Date:     time.Date(2025, 5, 7, 0, 0, 0, 0, time.UTC),
				Inflow:   1234567.9,
				Outflow:  1000,
				Netflow:  1233567.9,
				RollMean: models.Float(80.7),
				RollStd:  models.Float(171.18),
				ZScore:   models.Float(2.44949),
			},
		}},
	}
}

func TestMarkdownReportWriter(t *testing.T) {
	dir := t.TempDir()
	w := NewMarkdownReportWriter(dir)
	w.now = func() time.Time { return time.Date(2025, 6, 1, 8, 30, 15, 0, time.UTC) }

	path, err := w.WriteReport(context.Background(), sampleAlert())
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != "agent_report_2025-06-01_083015Z.md" {
		t.Fatalf("name %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	body := string(b)
	if !strings.Contains(body, "| 2025-05-07 | high | 2.449 | 1 233 567 | 1 234 567 | 1 000 | 80 | 171.2 |") {
		t.Fatalf("unexpected report:\n%s", body)
	}

	second, err := w.WriteReport(context.Background(), sampleAlert())
	if err != nil || second == path {
		t.Fatalf("second report in the same second must not overwrite: %s %v", second, err)
	}
}

func TestMarkdownReportWriterSkipsEmpty(t *testing.T) {
	w := NewMarkdownReportWriter(t.TempDir())
	path, err := w.WriteReport(context.Background(), models.Alert{})
	if err != nil || path != "" {
		t.Fatalf("empty alert: %q %v", path, err)
	}
}

func TestMarkdownReportWriterRedirect(t *testing.T) {
	base := t.TempDir()
	w := NewMarkdownReportWriter(base)
	monthly := filepath.Join(base, "agent_reports", "2025-06")
	w.Redirect(monthly)
	path, err := w.WriteReport(context.Background(), sampleAlert())
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Dir(path) != monthly {
		t.Fatalf("report not redirected: %s", path)
	}
}

func TestGrouped(t *testing.T) {
	cases := map[float64]string{0: "0", 999: "999", 1000: "1 000", -1234567.8: "-1 234 567", 12345: "12 345"}
	for in, want := range cases {
		if got := grouped(in); got != want {
			t.Fatalf("grouped(%v) = %q, want %q", in, got, want)
		}
	}
}
