package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"NetflowWatch/internal/domain/models"
)

func dailySeries(start time.Time, vals ...float64) []models.DailyNetflowRow {
	rows := make([]models.DailyNetflowRow, len(vals))
	for i, v := range vals {
		rows[i] = models.DailyNetflowRow{Date: start.AddDate(0, 0, i), Netflow: v, Inflow: math.Max(v, 0), Outflow: math.Max(-v, 0)}
	}
	return rows
}

var may1 = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

type staticSeries struct {
	rows  []models.DailyNetflowRow
	err   error
	calls int
}

func (s *staticSeries) LoadTotal(ctx context.Context) ([]models.DailyNetflowRow, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.DailyNetflowRow(nil), s.rows...), nil
}

type memStore struct {
	mu       sync.Mutex
	seen     models.SeenDates
	loadErr  error
	saveErr  error
	saves    int
	archives map[string][]string
	rotated  string
	events   *[]string
}

func (m *memStore) Load(ctx context.Context) (models.SeenDates, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.seen.Clone(), nil
}

func (m *memStore) Save(ctx context.Context, seen models.SeenDates) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.events != nil {
		*m.events = append(*m.events, "save")
	}
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.seen = seen.Clone()
	return nil
}

func (m *memStore) Archive(ctx context.Context, month string) (models.MemoryArchive, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rotated == month {
		return models.MemoryArchive{Month: month, AlreadyRotated: true}, nil
	}
	m.rotated = month
	if m.archives == nil {
		m.archives = make(map[string][]string)
	}
	dates := m.seen.Sorted()
	m.archives[month] = dates
	m.seen = models.NewSeenDates()
	return models.MemoryArchive{Month: month, Dates: dates, Location: "mem:" + month}, nil
}

func (m *memStore) Backend() string { return "memory" }

type reportRecorder struct {
	dir    string
	alerts []models.Alert
	err    error
	events *[]string
}

func (r *reportRecorder) WriteReport(ctx context.Context, alert models.Alert) (string, error) {
	if r.events != nil {
		*r.events = append(*r.events, "report")
	}
	if r.err != nil {
		return "", r.err
	}
	r.alerts = append(r.alerts, alert)
	return r.dir + "/report.md", nil
}

func (r *reportRecorder) Redirect(dir string) { r.dir = dir }
func (r *reportRecorder) Dir() string         { return r.dir }

type sinkRecorder struct {
	name   string
	err    error
	alerts []models.Alert
	events *[]string
}

func (s *sinkRecorder) PublishAlert(ctx context.Context, alert models.Alert) error {
	if s.events != nil {
		*s.events = append(*s.events, "publish:"+s.name)
	}
	if s.err != nil {
		return s.err
	}
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *sinkRecorder) Close() error { return nil }

type flagLock struct {
	held     bool
	released bool
}

func (l *flagLock) Acquire(ctx context.Context) (bool, error) {
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *flagLock) Release(ctx context.Context) error {
	if !l.held {
		return errors.New("not held")
	}
	l.held = false
	l.released = true
	return nil
}

type staticDaily struct {
	perExchange []models.DailyNetflowRow
	total       []models.DailyNetflowRow
	calls       int
	from, to    time.Time
}

func (s *staticDaily) LoadDaily(ctx context.Context, from, to time.Time) ([]models.DailyNetflowRow, []models.DailyNetflowRow, error) {
	s.calls++
	s.from, s.to = from, to
	return append([]models.DailyNetflowRow(nil), s.perExchange...), append([]models.DailyNetflowRow(nil), s.total...), nil
}
