package repository

import (
	"context"
	"time"

	"NetflowWatch/internal/domain/models"
)

// AlertMemoryStore persists the set of already reported dates.
type AlertMemoryStore interface {
	Load(ctx context.Context) (models.SeenDates, error)
	Save(ctx context.Context, seen models.SeenDates) error
	// Archive snapshots the current set under the month label and resets the store.
	// It runs at most once per month: the rotated month is persisted and a repeat
	// call reports AlreadyRotated. An existing snapshot is merged into, never replaced.
	Archive(ctx context.Context, month string) (models.MemoryArchive, error)
	Backend() string
}

// InstanceLock guards a memory store against concurrent agents.
type InstanceLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// SeriesSource yields the daily total netflow series consumed by the agent.
type SeriesSource interface {
	LoadTotal(ctx context.Context) ([]models.DailyNetflowRow, error)
}

// TransferSource yields raw transfers for a time range.
type TransferSource interface {
	QueryTransfers(ctx context.Context, from, to time.Time) ([]models.TransferRecord, error)
}

type NetflowStore interface {
	TransferSource
	Init(ctx context.Context) error
	StoreTransfers(ctx context.Context, ts []models.TransferRecord) error
	StoreDaily(ctx context.Context, rows []models.DailyNetflowRow) error
	Health(ctx context.Context) error
	Close() error
}

// ReportWriter durably writes a human readable report and returns its location.
type ReportWriter interface {
	WriteReport(ctx context.Context, alert models.Alert) (string, error)
	// Redirect changes the report output directory (monthly rotation).
	Redirect(dir string)
	Dir() string
}

// AlertPublisher fans an alert out to downstream consumers. Best effort.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert models.Alert) error
	Close() error
}

type Metrics interface {
	RecordRowsProcessed(series string, n int)
	RecordAnomalies(polarity string, n int)
	RecordAlertsEmitted(sink string, n int)
	RecordLastZScore(series string, z float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
