package alerting

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"NetflowWatch/internal/domain/models"
	"NetflowWatch/internal/domain/repository"
	xlogger "NetflowWatch/pkg/logger"
)

// Memory is the alert memory on top of a persistence backend.
// Loading fails open: an unreadable or corrupt store reads as empty.
type Memory struct {
	store   repository.AlertMemoryStore
	logger  *xlogger.Logger
	metrics repository.Metrics
}

func NewMemory(store repository.AlertMemoryStore, logger *xlogger.Logger, metrics repository.Metrics) *Memory {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &Memory{store: store, logger: logger, metrics: metrics}
}

// Load returns the reported dates, or an empty set with a warning when the store cannot be read.
func (m *Memory) Load(ctx context.Context) models.SeenDates {
	seen, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn("alert memory unreadable, starting empty",
			xlogger.String("backend", m.store.Backend()),
			xlogger.Error(err),
		)
		if m.metrics != nil {
			m.metrics.RecordError("memory_load")
		}
		return models.NewSeenDates()
	}
	if seen == nil {
		return models.NewSeenDates()
	}
	return seen
}

// Commit persists the updated set. Call only after the report was durably written.
func (m *Memory) Commit(ctx context.Context, seen models.SeenDates) error {
	if err := m.store.Save(ctx, seen); err != nil {
		if m.metrics != nil {
			m.metrics.RecordError("memory_save")
		}
		return fmt.Errorf("save alert memory: %w", err)
	}
	return nil
}

// Rotate archives the whole set under month (YYYY-MM) and resets it to empty.
// Rotating the same month again is a no-op, so restarts keep the memory.
func (m *Memory) Rotate(ctx context.Context, month string) (models.MemoryArchive, error) {
	if _, err := time.Parse(models.MonthLayout, month); err != nil {
		return models.MemoryArchive{}, fmt.Errorf("rotate: invalid month %q: %w", month, err)
	}
	arch, err := m.store.Archive(ctx, month)
	if err != nil {
		return models.MemoryArchive{}, fmt.Errorf("rotate alert memory: %w", err)
	}
	if arch.AlreadyRotated {
		m.logger.Info("alert memory already rotated for month", xlogger.String("month", month))
		return arch, nil
	}
	m.logger.Info("alert memory rotated",
		xlogger.String("month", month),
		xlogger.Int("archived", len(arch.Dates)),
		xlogger.String("location", arch.Location),
	)
	return arch, nil
}

func (m *Memory) Backend() string { return m.store.Backend() }

// ReportDir is the month-scoped report directory under docs.
func ReportDir(docs, month string) string {
	return filepath.Join(docs, "agent_reports", month)
}
