package netflow

import (
	"fmt"
	"math"

	"NetflowWatch/internal/domain/models"
)

// DetectParams configures the rolling z-score.
type DetectParams struct {
	Window     int
	MinPeriods int // 0 selects DefaultMinPeriods(Window)
}

// DefaultMinPeriods is max(3, window/2), capped at window.
func DefaultMinPeriods(window int) int {
	return min(window, max(3, window/2))
}

func (p DetectParams) resolve() (DetectParams, error) {
	if p.Window < 1 {
		return p, &models.InputError{Row: -1, Field: "window", Err: fmt.Errorf("%w: window must be >= 1, got %d", models.ErrInvalidParams, p.Window)}
	}
	if p.MinPeriods == 0 {
		p.MinPeriods = DefaultMinPeriods(p.Window)
	}
	if p.MinPeriods < 1 || p.MinPeriods > p.Window {
		return p, &models.InputError{Row: -1, Field: "min_periods", Err: fmt.Errorf("%w: min_periods must be in [1, %d], got %d", models.ErrInvalidParams, p.Window, p.MinPeriods)}
	}
	return p, nil
}

// CheckSeries verifies the detector precondition: one exchange label, strictly
// ascending dates and finite netflow values.
func CheckSeries(rows []models.DailyNetflowRow) error {
	for i, r := range rows {
		if math.IsNaN(r.Netflow) || math.IsInf(r.Netflow, 0) {
			return &models.InputError{Row: i, Field: "netflow", Value: fmt.Sprint(r.Netflow), Err: models.ErrNonFinite}
		}
		if i == 0 {
			continue
		}
		prev := rows[i-1]
		if r.Exchange != prev.Exchange {
			return &models.InputError{Row: i, Field: "exchange", Value: r.Exchange, Err: models.ErrMixedSeries}
		}
		switch {
		case r.Date.Equal(prev.Date):
			return &models.InputError{Row: i, Field: "date", Value: r.DateKey(), Err: models.ErrDuplicateDate}
		case r.Date.Before(prev.Date):
			return &models.InputError{Row: i, Field: "date", Value: r.DateKey(), Err: models.ErrUnsorted}
		}
	}
	return nil
}

// Detect attaches trailing-window statistics to a single date-sorted series.
// The window for row i is the min(window, i+1) observations ending at i. Rows with
// fewer than MinPeriods observations, or whose window has zero spread, get a nil z-score.
// The input slice is not modified. Unsorted input is an error, never re-sorted here.
func Detect(rows []models.DailyNetflowRow, p DetectParams) ([]models.DailyNetflowRow, error) {
	p, err := p.resolve()
	if err != nil {
		return nil, err
	}
	if err := CheckSeries(rows); err != nil {
		return nil, err
	}

	out := make([]models.DailyNetflowRow, len(rows))
	for i, r := range rows {
		r.RollMean, r.RollStd, r.ZScore = nil, nil, nil
		start := max(0, i+1-p.Window)
		window := rows[start : i+1]
		if len(window) >= p.MinPeriods {
			mean, std := meanStd(window)
			r.RollMean = models.Float(mean)
			r.RollStd = models.Float(std)
			if std != 0 {
				r.ZScore = models.Float((r.Netflow - mean) / std)
			}
		}
		out[i] = r
	}
	return out, nil
}

// meanStd returns the mean and population standard deviation (ddof = 0) of netflow.
// A window of identical values yields exactly zero spread.
func meanStd(window []models.DailyNetflowRow) (float64, float64) {
	n := float64(len(window))
	sum := 0.0
	lo, hi := window[0].Netflow, window[0].Netflow
	for _, r := range window {
		sum += r.Netflow
		lo = math.Min(lo, r.Netflow)
		hi = math.Max(hi, r.Netflow)
	}
	mean := sum / n
	if lo == hi {
		return lo, 0
	}
	ss := 0.0
	for _, r := range window {
		d := r.Netflow - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / n)
}

// IsAnomaly reports |z| >= threshold. A nil z-score is never anomalous.
func IsAnomaly(z *float64, threshold float64) bool {
	return z != nil && math.Abs(*z) >= threshold
}

// PolarityOf classifies a defined z-score against the threshold.
func PolarityOf(z, threshold float64) (models.Polarity, bool) {
	switch {
	case z >= threshold:
		return models.PolarityHigh, true
	case z <= -threshold:
		return models.PolarityLow, true
	default:
		return "", false
	}
}

// Anomalies returns the rows whose |zscore| reached threshold, in input order.
func Anomalies(rows []models.DailyNetflowRow, threshold float64) []models.Anomaly {
	out := make([]models.Anomaly, 0)
	for _, r := range rows {
		if !IsAnomaly(r.ZScore, threshold) {
			continue
		}
		if pol, ok := PolarityOf(*r.ZScore, threshold); ok {
			out = append(out, models.Anomaly{Row: r, Polarity: pol})
		}
	}
	return out
}
