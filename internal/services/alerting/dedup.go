package alerting

import (
	"NetflowWatch/internal/domain/models"
)

// FilterNew keeps anomalies whose date is not in seen. Anomalies sharing a date
// collapse to the first one. The returned set is seen plus the new dates; seen
// itself is left untouched so the caller can persist only after reporting.
func FilterNew(anoms []models.Anomaly, seen models.SeenDates) ([]models.Anomaly, models.SeenDates) {
	updated := seen.Clone()
	fresh := make([]models.Anomaly, 0, len(anoms))
	for _, a := range anoms {
		date := a.DateKey()
		if updated.Has(date) {
			continue
		}
		updated.Add(date)
		fresh = append(fresh, a)
	}
	return fresh, updated
}
