package usecase

import (
	"context"
	"fmt"
	"time"

	"NetflowWatch/internal/domain/models"
	domrepo "NetflowWatch/internal/domain/repository"
	"NetflowWatch/internal/services/netflow"
)

// DailySource yields aggregated daily tables for a date range.
type DailySource interface {
	LoadDaily(ctx context.Context, from, to time.Time) (perExchange, total []models.DailyNetflowRow, err error)
}

// TransferSeriesSource builds daily tables from stored transfers.
type TransferSeriesSource struct {
	transfers domrepo.TransferSource
	exchanges models.ExchangeAddressMap
	lookback  int
	now       func() time.Time
}

func NewTransferSeriesSource(ts domrepo.TransferSource, exchanges models.ExchangeAddressMap, lookbackDays int) *TransferSeriesSource {
	return &TransferSeriesSource{transfers: ts, exchanges: exchanges, lookback: lookbackDays, now: time.Now}
}

var _ domrepo.SeriesSource = (*TransferSeriesSource)(nil)

func (s *TransferSeriesSource) LoadDaily(ctx context.Context, from, to time.Time) ([]models.DailyNetflowRow, []models.DailyNetflowRow, error) {
	from, to = models.DayRange(from, to)
	ts, err := s.transfers.QueryTransfers(ctx, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("query transfers: %w", err)
	}
	perExchange, total := netflow.Aggregate(netflow.ClassifyAll(ts, s.exchanges))
	return perExchange, total, nil
}

// LoadTotal returns the total series over the trailing lookback days, today included.
func (s *TransferSeriesSource) LoadTotal(ctx context.Context) ([]models.DailyNetflowRow, error) {
	to := s.now().UTC()
	from := to.AddDate(0, 0, -(s.lookback - 1))
	_, total, err := s.LoadDaily(ctx, from, to)
	return total, err
}

// CSVDailySource serves a pre-aggregated total CSV; it has no per-exchange table.
type CSVDailySource struct {
	series domrepo.SeriesSource
}

func NewCSVDailySource(series domrepo.SeriesSource) *CSVDailySource {
	return &CSVDailySource{series: series}
}

func (s *CSVDailySource) LoadDaily(ctx context.Context, from, to time.Time) ([]models.DailyNetflowRow, []models.DailyNetflowRow, error) {
	rows, err := s.series.LoadTotal(ctx)
	if err != nil {
		return nil, nil, err
	}
	out := make([]models.DailyNetflowRow, 0, len(rows))
	for _, r := range rows {
		if (!from.IsZero() && r.Date.Before(models.DayOf(from))) || (!to.IsZero() && r.Date.After(models.DayOf(to))) {
			continue
		}
		out = append(out, r)
	}
	return nil, out, nil
}
