package usecase

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"NetflowWatch/internal/domain/models"
	domrepo "NetflowWatch/internal/domain/repository"
	internalrepo "NetflowWatch/internal/repository"
	"NetflowWatch/internal/services/alerting"
	"NetflowWatch/internal/services/netflow"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// restartTwice starts two agents one after the other in the same month over one
// store, the way a service restart does, and returns the reports they wrote.
func restartTwice(t *testing.T, store domrepo.AlertMemoryStore) []models.Alert {
	t.Helper()
	ctx := context.Background()
	rep := &reportRecorder{dir: "docs"}
	for i := 0; i < 2; i++ {
		src := &staticSeries{rows: dailySeries(may1, 10, 12, 9, 11, 10, 13, 500, 12, 11)}
		a := NewNetflowAgent(src, alerting.NewMemory(store, nil, nil), rep, nil, nil, nil, nil, AgentOptions{
			Threshold:     2.0,
			Params:        netflow.DetectParams{Window: 7, MinPeriods: 3},
			RotateMonthly: true,
			DocsDir:       "docs",
		})
		a.now = func() time.Time { return time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC) }
		if err := a.Run(ctx, false); err != nil {
			t.Fatalf("start %d: %v", i+1, err)
		}
	}
	return rep.alerts
}

func TestAgentRestartSameMonthFileMemory(t *testing.T) {
	ctx := context.Background()
	store := internalrepo.NewFileAlertMemory(filepath.Join(t.TempDir(), "netflow_agent.json"))
	if err := store.Save(ctx, models.NewSeenDates("2025-05-01", "2025-05-02")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	alerts := restartTwice(t, store)
	if len(alerts) != 1 || alerts[0].Anomalies[0].DateKey() != "2025-05-07" {
		t.Fatalf("second start re-alerted: %d reports", len(alerts))
	}

	seen, err := store.Load(ctx)
	if err != nil || !seen.Has("2025-05-07") {
		t.Fatalf("memory lost across restart: %v %v", seen.Sorted(), err)
	}
	snap, err := internalrepo.NewFileAlertMemory(store.ArchivePath("2025-06")).Load(ctx)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !reflect.DeepEqual(snap.Sorted(), []string{"2025-05-01", "2025-05-02"}) {
		t.Fatalf("archive overwritten: %v", snap.Sorted())
	}
}

func TestAgentRestartSameMonthRedisMemory(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cli.Close() })
	store := internalrepo.NewRedisAlertMemory(cli, "netflow:seen", time.Minute)
	if err := store.Save(ctx, models.NewSeenDates("2025-05-01", "2025-05-02")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	alerts := restartTwice(t, store)
	if len(alerts) != 1 {
		t.Fatalf("second start re-alerted: %d reports", len(alerts))
	}

	members, err := mr.Members("netflow:seen")
	if err != nil || !reflect.DeepEqual(members, []string{"2025-05-07"}) {
		t.Fatalf("memory lost across restart: %v %v", members, err)
	}
	archived, err := mr.Members(store.ArchiveKey("2025-06"))
	if err != nil || !reflect.DeepEqual(archived, []string{"2025-05-01", "2025-05-02"}) {
		t.Fatalf("archive overwritten: %v %v", archived, err)
	}
}
