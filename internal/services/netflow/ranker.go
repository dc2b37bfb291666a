package netflow

import (
	"math"
	"sort"

	"NetflowWatch/internal/domain/models"
)

// TopK returns the k rows with the largest |zscore|, most recent date first on ties.
// Rows without a z-score are excluded. k <= 0 yields an empty result.
func TopK(rows []models.DailyNetflowRow, k int) []models.DailyNetflowRow {
	ranked := make([]models.DailyNetflowRow, 0, len(rows))
	if k <= 0 {
		return ranked
	}
	for _, r := range rows {
		if r.ZScore != nil {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		ai, aj := math.Abs(*ranked[i].ZScore), math.Abs(*ranked[j].ZScore)
		if ai != aj {
			return ai > aj
		}
		if !ranked[i].Date.Equal(ranked[j].Date) {
			return ranked[i].Date.After(ranked[j].Date)
		}
		return ranked[i].Exchange < ranked[j].Exchange
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// TopKByExchange ranks each exchange series independently and concatenates the
// results in ascending label order.
func TopKByExchange(rows []models.DailyNetflowRow, k int) []models.DailyNetflowRow {
	groups := SplitByExchange(rows)
	out := make([]models.DailyNetflowRow, 0)
	for _, ex := range Exchanges(rows) {
		out = append(out, TopK(groups[ex], k)...)
	}
	return out
}
