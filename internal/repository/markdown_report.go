package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"NetflowWatch/internal/domain/models"
	"NetflowWatch/internal/domain/repository"
)

// MarkdownReportWriter writes one agent_report_<UTC timestamp>.md per alert.
type MarkdownReportWriter struct {
	mu  sync.RWMutex
	dir string
	now func() time.Time
}

func NewMarkdownReportWriter(dir string) *MarkdownReportWriter {
	return &MarkdownReportWriter{dir: dir, now: time.Now}
}

var _ repository.ReportWriter = (*MarkdownReportWriter)(nil)

func (w *MarkdownReportWriter) Dir() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dir
}

func (w *MarkdownReportWriter) Redirect(dir string) {
	w.mu.Lock()
	w.dir = dir
	w.mu.Unlock()
}

// WriteReport writes the report and returns its path. No anomalies, no file.
func (w *MarkdownReportWriter) WriteReport(ctx context.Context, alert models.Alert) (string, error) {
	if len(alert.Anomalies) == 0 {
		return "", nil
	}
	dir := w.Dir()
	stamp := w.now().UTC().Format("2006-01-02_150405Z")

	var sb strings.Builder
	if err := RenderAgentReport(&sb, stamp, alert); err != nil {
		return "", err
	}

	path := filepath.Join(dir, "agent_report_"+stamp+".md")
	for i := 1; ; i++ {
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		path = filepath.Join(dir, fmt.Sprintf("agent_report_%s_%d.md", stamp, i))
	}
	if err := writeFileAtomic(path, []byte(sb.String())); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// RenderAgentReport renders the anomaly table of one alert.
func RenderAgentReport(out io.Writer, stamp string, alert models.Alert) error {
	lines := []string{
		fmt.Sprintf("# Netflow Agent Report - %s (UTC)", stamp),
		"",
		"| date | polarity | zscore | netflow | inflow | outflow | roll_mean | roll_std |",
		"|------|----------|--------|---------|--------|---------|-----------|----------|",
	}
	for _, a := range alert.Anomalies {
		r := a.Row
		lines = append(lines, fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s | %s |",
			r.DateKey(),
			a.Polarity,
			fixed(r.ZScore, 3),
			grouped(r.Netflow),
			grouped(r.Inflow),
			grouped(r.Outflow),
			groupedOptional(r.RollMean),
			fixed(r.RollStd, 1),
		))
	}
	lines = append(lines,
		"",
		fmt.Sprintf("> Rule: |zscore| >= %s over a %d-day window triggers an alert. Generated automatically by the netflow agent.",
			strconv.FormatFloat(alert.Threshold, 'f', -1, 64), alert.Window),
		"",
	)
	_, err := io.WriteString(out, strings.Join(lines, "\n"))
	return err
}

// RenderTopK renders the top-k markdown summary (total and per exchange).
func RenderTopK(out io.Writer, total, byExchange []models.DailyNetflowRow) error {
	lines := []string{
		"# Top-k netflow days (by |z|)",
		"",
		"## Total",
		"",
		"| date | netflow | zscore |",
		"|------|---------|--------|",
	}
	for _, r := range total {
		lines = append(lines, fmt.Sprintf("| %s | %s | %s |", r.DateKey(), grouped(r.Netflow), fixed(r.ZScore, 3)))
	}
	lines = append(lines,
		"",
		"## By exchange",
		"",
		"| date | exchange | netflow | zscore |",
		"|------|----------|---------|--------|",
	)
	for _, r := range byExchange {
		lines = append(lines, fmt.Sprintf("| %s | %s | %s | %s |", r.DateKey(), r.Exchange, grouped(r.Netflow), fixed(r.ZScore, 3)))
	}
	lines = append(lines, "")
	_, err := io.WriteString(out, strings.Join(lines, "\n"))
	return err
}

func fixed(v *float64, prec int) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func groupedOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return grouped(*v)
}

// grouped truncates to an integer and separates thousands with spaces: -1234567.8 -> "-1 234 567".
func grouped(v float64) string {
	n := int64(math.Trunc(v))
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(c)
	}
	return sign + b.String()
}
