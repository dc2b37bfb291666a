package repository

import (
	"context"
	"reflect"
	"testing"
	"time"

	"NetflowWatch/internal/domain/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisMemory(t *testing.T) (*RedisAlertMemory, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cli.Close() })
	return NewRedisAlertMemory(cli, "netflow:seen", time.Minute), mr, cli
}

func TestRedisAlertMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newRedisMemory(t)

	seen, err := s.Load(ctx)
	if err != nil || seen.Len() != 0 {
		t.Fatalf("empty load: %v %v", seen, err)
	}
	if err := s.Save(ctx, models.NewSeenDates("2025-05-01", "2025-05-02")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, models.NewSeenDates("2025-05-03")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Len() != 1 || !got.Has("2025-05-03") {
		t.Fatalf("save should replace the set: %v", got.Sorted())
	}
}

func TestRedisAlertMemoryArchive(t *testing.T) {
	ctx := context.Background()
	s, mr, _ := newRedisMemory(t)
	if err := s.Save(ctx, models.NewSeenDates("2025-05-01", "2025-05-02")); err != nil {
		t.Fatalf("save: %v", err)
	}

	arch, err := s.Archive(ctx, "2025-06")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if arch.Location != "netflow:seen:archive:2025-06" || len(arch.Dates) != 2 {
		t.Fatalf("archive %+v", arch)
	}
	if mr.Exists("netflow:seen") {
		t.Fatalf("memory key should be gone")
	}
	members, err := mr.Members("netflow:seen:archive:2025-06")
	if err != nil || len(members) != 2 {
		t.Fatalf("archived members %v %v", members, err)
	}

	empty, err := s.Archive(ctx, "2025-07")
	if err != nil || empty.Location != "" {
		t.Fatalf("archiving empty memory: %+v %v", empty, err)
	}
}

func TestRedisAlertMemoryArchiveOncePerMonth(t *testing.T) {
	ctx := context.Background()
	s, mr, _ := newRedisMemory(t)
	mr.SetAdd(s.ArchiveKey("2025-06"), "2025-04-30")
	if err := s.Save(ctx, models.NewSeenDates("2025-05-01")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.Archive(ctx, "2025-06"); err != nil {
		t.Fatalf("archive: %v", err)
	}
	archived, _ := mr.Members(s.ArchiveKey("2025-06"))
	if !reflect.DeepEqual(archived, []string{"2025-04-30", "2025-05-01"}) {
		t.Fatalf("existing snapshot not merged: %v", archived)
	}

	if err := s.Save(ctx, models.NewSeenDates("2025-06-03")); err != nil {
		t.Fatalf("save: %v", err)
	}
	again, err := s.Archive(ctx, "2025-06")
	if err != nil || !again.AlreadyRotated {
		t.Fatalf("second rotation: %+v %v", again, err)
	}
	if members, _ := mr.Members("netflow:seen"); !reflect.DeepEqual(members, []string{"2025-06-03"}) {
		t.Fatalf("memory wiped by repeat rotation: %v", members)
	}
	if archived, _ := mr.Members(s.ArchiveKey("2025-06")); len(archived) != 2 {
		t.Fatalf("snapshot changed: %v", archived)
	}
}

func TestRedisInstanceLock(t *testing.T) {
	ctx := context.Background()
	a, _, cli := newRedisMemory(t)
	b := NewRedisAlertMemory(cli, "netflow:seen", time.Minute)

	ok, err := a.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("acquire: %v %v", ok, err)
	}
	if ok, _ := b.Acquire(ctx); ok {
		t.Fatalf("second instance acquired the lock")
	}
	// releasing a lock held by someone else is a no-op
	if err := b.Release(ctx); err != nil {
		t.Fatalf("foreign release: %v", err)
	}
	if ok, _ := b.Acquire(ctx); ok {
		t.Fatalf("lock released by non-holder")
	}
	if err := a.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := b.Acquire(ctx); !ok {
		t.Fatalf("acquire after release failed")
	}
}

func TestRedisInstanceLockRefresh(t *testing.T) {
	ctx := context.Background()
	a, mr, cli := newRedisMemory(t)
	b := NewRedisAlertMemory(cli, "netflow:seen", time.Minute)

	if ok, _ := a.Acquire(ctx); !ok {
		t.Fatalf("acquire failed")
	}
	mr.FastForward(50 * time.Second)
	if ok, err := a.Refresh(ctx); err != nil || !ok {
		t.Fatalf("refresh: %v %v", ok, err)
	}
	mr.FastForward(50 * time.Second)
	if !mr.Exists("netflow:seen:lock") {
		t.Fatalf("refreshed lock expired")
	}
	if ok, _ := b.Refresh(ctx); ok {
		t.Fatalf("non-holder refreshed the lock")
	}

	mr.FastForward(2 * time.Minute)
	if ok, _ := a.Refresh(ctx); ok {
		t.Fatalf("expired lock reported as held")
	}
}
