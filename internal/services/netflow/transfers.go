package netflow

import (
	"sort"
	"strconv"
	"time"

	"NetflowWatch/internal/domain/models"
)

type transferKey struct {
	hash     string
	ts       int64
	from     string
	to       string
	value    string
	exchange string
}

// MergeTransfers concatenates transfer batches, orders them by timestamp then label,
// and drops exact duplicates on (hash, timestamp, from, to, value, exchange).
func MergeTransfers(batches ...[]models.TransferRecord) []models.TransferRecord {
	var all []models.TransferRecord
	for _, b := range batches {
		all = append(all, b...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Timestamp != all[j].Timestamp {
			return all[i].Timestamp < all[j].Timestamp
		}
		return models.NormalizeLabel(all[i].Exchange) < models.NormalizeLabel(all[j].Exchange)
	})

	seen := make(map[transferKey]struct{}, len(all))
	out := make([]models.TransferRecord, 0, len(all))
	for _, t := range all {
		k := transferKey{
			hash:     t.Hash,
			ts:       t.Timestamp,
			from:     models.NormalizeAddress(t.From),
			to:       models.NormalizeAddress(t.To),
			value:    strconv.FormatFloat(t.Value, 'g', -1, 64),
			exchange: models.NormalizeLabel(t.Exchange),
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Coverage summarizes how well a transfer export covers a requested range.
type Coverage struct {
	Rows         int
	RequestFrom  time.Time
	RequestTo    time.Time
	DataFrom     time.Time
	DataTo       time.Time
	StartGapDays float64 // positive: data starts after the requested start
	EndGapDays   float64 // positive: data ends before the requested end
	Reasons      []string
}

// Truncated reports whether any truncation heuristic fired.
func (c Coverage) Truncated() bool { return len(c.Reasons) > 0 }

// CheckCoverage flags exports that hit the page hard limit or leave edge gaps wider
// than toleranceDays. Empty input reports zero rows and no reasons.
func CheckCoverage(ts []models.TransferRecord, from, to time.Time, hardMax int, toleranceDays float64) Coverage {
	c := Coverage{Rows: len(ts), RequestFrom: from.UTC(), RequestTo: to.UTC()}
	if len(ts) == 0 {
		return c
	}
	lo, hi := ts[0].Timestamp, ts[0].Timestamp
	for _, t := range ts {
		lo = min(lo, t.Timestamp)
		hi = max(hi, t.Timestamp)
	}
	c.DataFrom = time.Unix(lo, 0).UTC()
	c.DataTo = time.Unix(hi, 0).UTC()
	c.StartGapDays = c.DataFrom.Sub(c.RequestFrom).Hours() / 24
	c.EndGapDays = c.RequestTo.Sub(c.DataTo).Hours() / 24

	if hardMax > 0 && c.Rows >= hardMax {
		c.Reasons = append(c.Reasons, "rows >= hard max "+strconv.Itoa(hardMax)+", possible page limit")
	}
	if c.StartGapDays > toleranceDays {
		c.Reasons = append(c.Reasons, "data starts "+strconv.FormatFloat(c.StartGapDays, 'f', 2, 64)+"d after requested start")
	}
	if c.EndGapDays > toleranceDays {
		c.Reasons = append(c.Reasons, "data ends "+strconv.FormatFloat(c.EndGapDays, 'f', 2, 64)+"d before requested end")
	}
	return c
}

// Period names an aggregated output by its first and last date ("empty" when no rows).
func Period(rows []models.DailyNetflowRow) string {
	if len(rows) == 0 {
		return "empty"
	}
	lo, hi := rows[0].Date, rows[0].Date
	for _, r := range rows {
		if r.Date.Before(lo) {
			lo = r.Date
		}
		if r.Date.After(hi) {
			hi = r.Date
		}
	}
	return lo.Format(models.DateLayout) + "__" + hi.Format(models.DateLayout)
}
