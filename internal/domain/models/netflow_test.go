package models

import (
	"testing"
	"time"
)

func TestDayRange(t *testing.T) {
	from, to := DayRange(
		time.Date(2025, 5, 1, 13, 0, 0, 0, time.UTC),
		time.Date(2025, 5, 3, 2, 0, 0, 0, time.UTC),
	)
	if from.Format(time.RFC3339) != "2025-05-01T00:00:00Z" || to.Format(time.RFC3339) != "2025-05-04T00:00:00Z" {
		t.Fatalf("range %v %v", from, to)
	}
}

func TestDayOfUsesUTC(t *testing.T) {
	east := time.FixedZone("UTC+9", 9*3600)
	got := DayOf(time.Date(2025, 5, 2, 3, 0, 0, 0, east))
	if got.Format(time.RFC3339) != "2025-05-01T00:00:00Z" {
		t.Fatalf("day %v", got)
	}
}
