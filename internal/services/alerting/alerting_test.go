package alerting

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"NetflowWatch/internal/domain/models"
)

type memStore struct {
	seen     models.SeenDates
	loadErr  error
	archives map[string][]string
}

func (m *memStore) Load(ctx context.Context) (models.SeenDates, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.seen.Clone(), nil
}

func (m *memStore) Save(ctx context.Context, seen models.SeenDates) error {
	m.seen = seen.Clone()
	return nil
}

func (m *memStore) Archive(ctx context.Context, month string) (models.MemoryArchive, error) {
	if m.archives == nil {
		m.archives = make(map[string][]string)
	}
	dates := m.seen.Sorted()
	m.archives[month] = dates
	m.seen = models.NewSeenDates()
	return models.MemoryArchive{Month: month, Dates: dates, Location: "mem:" + month}, nil
}

func (m *memStore) Backend() string { return "memory" }

func anomaly(date string, z float64) models.Anomaly {
	d, _ := time.Parse(models.DateLayout, date)
	pol := models.PolarityHigh
	if z < 0 {
		pol = models.PolarityLow
	}
	return models.Anomaly{Row: models.DailyNetflowRow{Date: d, ZScore: models.Float(z)}, Polarity: pol}
}

func TestFilterNewDedupesByDate(t *testing.T) {
	seen := models.NewSeenDates("2025-05-01")
	anoms := []models.Anomaly{
		anomaly("2025-05-01", 3),
		anomaly("2025-05-02", 2.5),
		anomaly("2025-05-02", -2.5),
		anomaly("2025-05-03", -4),
	}
	fresh, updated := FilterNew(anoms, seen)
	if len(fresh) != 2 || fresh[0].DateKey() != "2025-05-02" || fresh[1].DateKey() != "2025-05-03" {
		t.Fatalf("fresh %+v", fresh)
	}
	if fresh[0].Polarity != models.PolarityHigh {
		t.Fatalf("first anomaly of a date should be kept")
	}
	if !reflect.DeepEqual(updated.Sorted(), []string{"2025-05-01", "2025-05-02", "2025-05-03"}) {
		t.Fatalf("updated %v", updated.Sorted())
	}
	if seen.Len() != 1 {
		t.Fatalf("input memory mutated: %v", seen.Sorted())
	}
}

func TestFilterNewAcrossDays(t *testing.T) {
	dayN := []models.Anomaly{anomaly("2025-05-07", 2.4)}
	_, mem := FilterNew(dayN, models.NewSeenDates())

	dayN1 := []models.Anomaly{anomaly("2025-05-07", 2.4), anomaly("2025-05-08", -2.1)}
	fresh, _ := FilterNew(dayN1, mem)
	if len(fresh) != 1 || fresh[0].DateKey() != "2025-05-08" {
		t.Fatalf("re-detected anomaly not suppressed: %+v", fresh)
	}
}

func TestFilterNewEmpty(t *testing.T) {
	fresh, updated := FilterNew(nil, nil)
	if len(fresh) != 0 || updated == nil || updated.Len() != 0 {
		t.Fatalf("fresh %v updated %v", fresh, updated)
	}
}

func TestMemoryLoadFailsOpen(t *testing.T) {
	m := NewMemory(&memStore{loadErr: errors.New("corrupt")}, nil, nil)
	seen := m.Load(context.Background())
	if seen == nil || seen.Len() != 0 {
		t.Fatalf("expected empty memory, got %v", seen)
	}
}

func TestMemoryRotate(t *testing.T) {
	ctx := context.Background()
	store := &memStore{seen: models.NewSeenDates("2025-05-01", "2025-05-02")}
	m := NewMemory(store, nil, nil)

	arch, err := m.Rotate(ctx, "2025-06")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if !reflect.DeepEqual(arch.Dates, []string{"2025-05-01", "2025-05-02"}) {
		t.Fatalf("archive %v", arch.Dates)
	}
	if m.Load(ctx).Len() != 0 {
		t.Fatalf("memory not reset")
	}
	if _, err := m.Rotate(ctx, "June"); err == nil {
		t.Fatalf("expected invalid month error")
	}
}

func TestReportDir(t *testing.T) {
	if got := ReportDir("docs", "2025-06"); got != "docs/agent_reports/2025-06" {
		t.Fatalf("dir %s", got)
	}
}
