package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"NetflowWatch/internal/domain/models"
	"NetflowWatch/internal/domain/repository"
)

// memoryDoc is the on-disk layout: {"seen_dates": [...sorted...]}. rotated_month
// records the last month the file was rotated for.
type memoryDoc struct {
	SeenDates    []string `json:"seen_dates"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
	RotatedMonth string   `json:"rotated_month,omitempty"`
}

// FileAlertMemory keeps the alert memory in a JSON file. Archives go to
// <dir>/archive/<name>_<YYYY-MM>.json. Single writer only; see FileInstanceLock.
type FileAlertMemory struct {
	path string
	now  func() time.Time
}

func NewFileAlertMemory(path string) *FileAlertMemory {
	return &FileAlertMemory{path: path, now: time.Now}
}

var _ repository.AlertMemoryStore = (*FileAlertMemory)(nil)

func (s *FileAlertMemory) Backend() string { return "file" }

func (s *FileAlertMemory) Path() string { return s.path }

// Load returns an empty set when the file does not exist.
func (s *FileAlertMemory) Load(ctx context.Context) (models.SeenDates, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.NewSeenDates(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory: %w", err)
	}
	var doc memoryDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse memory %s: %w", s.path, err)
	}
	return models.NewSeenDates(doc.SeenDates...), nil
}

// Save writes the set atomically (temp file + rename), keeping the rotated month.
func (s *FileAlertMemory) Save(ctx context.Context, seen models.SeenDates) error {
	var prev memoryDoc
	if b, err := os.ReadFile(s.path); err == nil {
		_ = json.Unmarshal(b, &prev)
	}
	return s.write(memoryDoc{SeenDates: seen.Sorted(), RotatedMonth: prev.RotatedMonth})
}

func (s *FileAlertMemory) write(doc memoryDoc) error {
	if doc.SeenDates == nil {
		doc.SeenDates = []string{}
	}
	doc.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal memory: %w", err)
	}
	return writeFileAtomic(s.path, b)
}

// ArchivePath is where the snapshot for month is kept.
func (s *FileAlertMemory) ArchivePath(month string) string {
	base := strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))
	return filepath.Join(filepath.Dir(s.path), "archive", fmt.Sprintf("%s_%s.json", base, month))
}

// Archive moves the dates into the month snapshot and leaves an empty memory
// tagged with month. A corrupt memory is archived byte for byte, but only when
// no snapshot exists yet.
func (s *FileAlertMemory) Archive(ctx context.Context, month string) (models.MemoryArchive, error) {
	arch := models.MemoryArchive{Month: month}
	b, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return arch, fmt.Errorf("read memory: %w", err)
	}

	var doc memoryDoc
	parsed := err == nil && json.Unmarshal(b, &doc) == nil
	if parsed && doc.RotatedMonth == month {
		arch.AlreadyRotated = true
		return arch, nil
	}

	loc := s.ArchivePath(month)
	switch {
	case err != nil:
		// no memory yet; only the rotated month is recorded
	case !parsed:
		if _, serr := os.Stat(loc); serr == nil {
			return arch, fmt.Errorf("archive %s exists, refusing to replace it with a corrupt memory", loc)
		}
		if err := writeFileAtomic(loc, b); err != nil {
			return arch, fmt.Errorf("write archive: %w", err)
		}
		arch.Location = loc
	case len(doc.SeenDates) > 0:
		dates, err := mergeArchive(loc, doc.SeenDates)
		if err != nil {
			return arch, err
		}
		snap, err := json.MarshalIndent(memoryDoc{SeenDates: dates, UpdatedAt: s.now().UTC().Format(time.RFC3339)}, "", "  ")
		if err != nil {
			return arch, fmt.Errorf("marshal archive: %w", err)
		}
		if err := writeFileAtomic(loc, snap); err != nil {
			return arch, fmt.Errorf("write archive: %w", err)
		}
		arch.Location = loc
		arch.Dates = models.NewSeenDates(doc.SeenDates...).Sorted()
	}

	if err := s.write(memoryDoc{RotatedMonth: month}); err != nil {
		return arch, fmt.Errorf("reset memory: %w", err)
	}
	return arch, nil
}

// mergeArchive unions dates with the snapshot already at path, if any.
func mergeArchive(path string, dates []string) ([]string, error) {
	merged := models.NewSeenDates(dates...)
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return merged.Sorted(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	var prev memoryDoc
	if err := json.Unmarshal(b, &prev); err != nil {
		return nil, fmt.Errorf("archive %s unreadable, refusing to replace it: %w", path, err)
	}
	for _, d := range prev.SeenDates {
		merged.Add(d)
	}
	return merged.Sorted(), nil
}

// FileInstanceLock is an O_EXCL lock file next to the memory file.
// A crashed holder leaves a stale lock that must be removed by hand.
type FileInstanceLock struct {
	path string
}

func NewFileInstanceLock(memoryPath string) *FileInstanceLock {
	return &FileInstanceLock{path: memoryPath + ".lock"}
}

var _ repository.InstanceLock = (*FileInstanceLock)(nil)

func (l *FileInstanceLock) Acquire(ctx context.Context) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("lock dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create lock: %w", err)
	}
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	return true, f.Close()
}

func (l *FileInstanceLock) Release(ctx context.Context) error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
