package netflow

import (
	"sort"
	"time"

	"NetflowWatch/internal/domain/models"
)

type dayKey struct {
	date     time.Time
	exchange string
}

// Aggregate reduces classified transfers to per-(date, exchange) rows and a per-date total.
// Transfers without an exchange label are skipped. Netflow is computed after the
// inflow/outflow pivot; total inflow, outflow and netflow are summed independently.
// Both outputs are sorted by date, per-exchange rows then by label.
func Aggregate(ts []models.ClassifiedTransfer) (perExchange, total []models.DailyNetflowRow) {
	sums := make(map[dayKey]*models.DailyNetflowRow)
	for _, t := range ts {
		if t.Exchange == "" {
			continue
		}
		k := dayKey{date: t.Day(), exchange: t.Exchange}
		row, ok := sums[k]
		if !ok {
			row = &models.DailyNetflowRow{Date: k.date, Exchange: k.exchange}
			sums[k] = row
		}
		switch t.Direction {
		case models.DirectionInflow:
			row.Inflow += t.Value
		case models.DirectionOutflow:
			row.Outflow += t.Value
		}
	}

	perExchange = make([]models.DailyNetflowRow, 0, len(sums))
	for _, row := range sums {
		row.Netflow = row.Inflow - row.Outflow
		perExchange = append(perExchange, *row)
	}
	SortRows(perExchange)

	return perExchange, Total(perExchange)
}

// Total sums per-exchange rows into the per-date total series.
func Total(perExchange []models.DailyNetflowRow) []models.DailyNetflowRow {
	byDate := make(map[time.Time]*models.DailyNetflowRow)
	for _, r := range perExchange {
		tr, ok := byDate[r.Date]
		if !ok {
			tr = &models.DailyNetflowRow{Date: r.Date}
			byDate[r.Date] = tr
		}
		tr.Inflow += r.Inflow
		tr.Outflow += r.Outflow
		tr.Netflow += r.Netflow
	}
	out := make([]models.DailyNetflowRow, 0, len(byDate))
	for _, tr := range byDate {
		out = append(out, *tr)
	}
	SortRows(out)
	return out
}

// SortRows sorts rows in place by date, then exchange label.
func SortRows(rows []models.DailyNetflowRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].Exchange < rows[j].Exchange
	})
}

// SplitByExchange groups rows into one date-sorted series per exchange label.
func SplitByExchange(rows []models.DailyNetflowRow) map[string][]models.DailyNetflowRow {
	out := make(map[string][]models.DailyNetflowRow)
	for _, r := range rows {
		out[r.Exchange] = append(out[r.Exchange], r)
	}
	for _, series := range out {
		SortRows(series)
	}
	return out
}

// Exchanges returns the distinct exchange labels of rows in ascending order.
func Exchanges(rows []models.DailyNetflowRow) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		seen[r.Exchange] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for ex := range seen {
		out = append(out, ex)
	}
	sort.Strings(out)
	return out
}
