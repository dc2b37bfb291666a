package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"NetflowWatch/internal/domain/models"
	domrepo "NetflowWatch/internal/domain/repository"
	"NetflowWatch/internal/services/alerting"
	"NetflowWatch/internal/services/netflow"
	applogger "NetflowWatch/pkg/logger"
	"NetflowWatch/pkg/metrics"

	"github.com/google/uuid"
)

// MinAgentInterval is the shortest pause between two agent passes.
const MinAgentInterval = 5 * time.Second

// ErrLocked is returned when another agent holds the memory lock.
var ErrLocked = errors.New("agent: alert memory is locked by another instance")

// ErrLockLost is returned when a TTL lock could not be renewed between passes.
var ErrLockLost = errors.New("agent: alert memory lock lost")

// lockRefresher is implemented by locks that expire unless renewed.
type lockRefresher interface {
	Refresh(ctx context.Context) (bool, error)
}

// AlertSink is a named best-effort alert destination.
type AlertSink struct {
	Name      string
	Publisher domrepo.AlertPublisher
}

// AgentOptions configures the daily agent.
type AgentOptions struct {
	Threshold     float64
	Params        netflow.DetectParams
	Interval      time.Duration
	RotateMonthly bool
	DocsDir       string
}

// AgentResult summarizes one pass.
type AgentResult struct {
	Rows      int
	Detected  int
	New       []models.Anomaly
	Alert     *models.Alert
	Published []string
}

// NetflowAgent is the daily total-series watcher: detect, keep unseen dates,
// report, fan out, then remember.
type NetflowAgent struct {
	source  domrepo.SeriesSource
	memory  *alerting.Memory
	reports domrepo.ReportWriter
	lock    domrepo.InstanceLock
	sinks   []AlertSink
	metrics domrepo.Metrics
	log     *applogger.Logger
	opts    AgentOptions

	runID string
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewNetflowAgent(
	source domrepo.SeriesSource,
	memory *alerting.Memory,
	reports domrepo.ReportWriter,
	lock domrepo.InstanceLock,
	sinks []AlertSink,
	m domrepo.Metrics,
	l *applogger.Logger,
	opts AgentOptions,
) *NetflowAgent {
	if m == nil {
		m = metrics.Nop{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &NetflowAgent{
		source:  source,
		memory:  memory,
		reports: reports,
		lock:    lock,
		sinks:   sinks,
		metrics: m,
		log:     l,
		opts:    opts,
		runID:   uuid.NewString(),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Rotate archives the memory under month and sends later reports to the month directory.
func (a *NetflowAgent) Rotate(ctx context.Context, month string) error {
	if _, err := a.memory.Rotate(ctx, month); err != nil {
		return err
	}
	a.reports.Redirect(alerting.ReportDir(a.opts.DocsDir, month))
	return nil
}

// RunOnce performs a single detection pass. The series must already be date
// sorted; the detector rejects it otherwise. Memory is saved only after the
// report is written, so a crash in between repeats the alert instead of losing it.
func (a *NetflowAgent) RunOnce(ctx context.Context) (AgentResult, error) {
	start := a.now()
	defer func() { a.metrics.RecordLatency("agent_pass", a.now().Sub(start).Seconds()) }()

	rows, err := a.source.LoadTotal(ctx)
	if err != nil {
		a.metrics.RecordError("source")
		return AgentResult{}, fmt.Errorf("load series: %w", err)
	}
	detected, err := netflow.Detect(rows, a.opts.Params)
	if err != nil {
		a.metrics.RecordError("detect")
		return AgentResult{}, fmt.Errorf("detect: %w", err)
	}
	a.metrics.RecordRowsProcessed("total", len(detected))
	for i := len(detected) - 1; i >= 0; i-- {
		if detected[i].ZScore != nil {
			a.metrics.RecordLastZScore("total", *detected[i].ZScore)
			break
		}
	}

	anoms := netflow.Anomalies(detected, a.opts.Threshold)
	seen := a.memory.Load(ctx)
	fresh, updated := alerting.FilterNew(anoms, seen)
	res := AgentResult{Rows: len(rows), Detected: len(anoms), New: fresh}

	if len(fresh) == 0 {
		a.log.Info("no new anomalies",
			applogger.Int("rows", len(rows)),
			applogger.Int("detected", len(anoms)),
			applogger.Int("seen", seen.Len()),
		)
		return res, nil
	}

	alert := models.Alert{
		ID:        uuid.NewString(),
		RunID:     a.runID,
		CreatedAt: a.now().UTC(),
		Threshold: a.opts.Threshold,
		Window:    a.opts.Params.Window,
		Anomalies: fresh,
	}
	path, err := a.reports.WriteReport(ctx, alert)
	if err != nil {
		a.metrics.RecordError("report")
		return res, fmt.Errorf("write report: %w", err)
	}
	alert.Report = path
	a.metrics.RecordAlertsEmitted("report", 1)
	for _, an := range fresh {
		a.metrics.RecordAnomalies(string(an.Polarity), 1)
	}

	for _, s := range a.sinks {
		if err := s.Publisher.PublishAlert(ctx, alert); err != nil {
			a.metrics.RecordError("publish_" + s.Name)
			a.log.Warn("alert publish failed", applogger.String("sink", s.Name), applogger.Error(err))
			continue
		}
		a.metrics.RecordAlertsEmitted(s.Name, 1)
		res.Published = append(res.Published, s.Name)
	}

	if err := a.memory.Commit(ctx, updated); err != nil {
		return res, err
	}
	res.Alert = &alert

	a.log.Info("new anomalies reported",
		applogger.Int("count", len(fresh)),
		applogger.String("report", path),
		applogger.String("alert_id", alert.ID),
		applogger.Strings("sinks", res.Published),
	)
	return res, nil
}

// Run holds the instance lock for its whole duration. With RotateMonthly the
// memory is rotated for the current UTC month once, at start; the stores make a
// second start in the same month a no-op. The loop itself never rotates, a new
// month is picked up by the next start. Without loop it performs a single pass.
func (a *NetflowAgent) Run(ctx context.Context, loop bool) error {
	if a.lock != nil {
		ok, err := a.lock.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return ErrLocked
		}
		defer func() {
			if err := a.lock.Release(context.WithoutCancel(ctx)); err != nil {
				a.log.Warn("release lock failed", applogger.Error(err))
			}
		}()
	}

	if a.opts.RotateMonthly {
		if err := a.Rotate(ctx, models.MonthOf(a.now())); err != nil {
			return err
		}
	}

	interval := max(a.opts.Interval, MinAgentInterval)
	for {
		if _, err := a.RunOnce(ctx); err != nil {
			if !loop {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			a.log.Error("agent pass failed", applogger.Error(err))
		}
		if !loop {
			return nil
		}
		if err := a.sleep(ctx, interval); err != nil {
			return nil
		}
		if r, ok := a.lock.(lockRefresher); ok {
			held, err := r.Refresh(ctx)
			if err != nil {
				a.log.Warn("lock refresh failed", applogger.Error(err))
			} else if !held {
				return ErrLockLost
			}
		}
	}
}
