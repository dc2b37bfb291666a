package usecase

import (
	"context"
	"fmt"
	"time"

	"NetflowWatch/internal/domain/models"
	"NetflowWatch/internal/service/cache"
	svcmetrics "NetflowWatch/internal/service/metrics"
	"NetflowWatch/internal/services/alerting"
	"NetflowWatch/internal/services/netflow"
	applogger "NetflowWatch/pkg/logger"
)

// SeriesParams selects a date range and detector settings.
type SeriesParams struct {
	From       time.Time
	To         time.Time
	Window     int
	MinPeriods int
	Z          float64
}

func (p SeriesParams) key() string {
	return fmt.Sprintf("detect:%s:%s:%d:%d", p.From.Format(models.DateLayout), p.To.Format(models.DateLayout), p.Window, p.MinPeriods)
}

// NetflowQueryUseCase answers the read API. Detected tables are cached per
// (range, window, min_periods); thresholds are applied after the cache.
type NetflowQueryUseCase struct {
	source   DailySource
	pipeline *NetflowPipeline
	memory   *alerting.Memory
	cache    cache.BytesCache
	ttl      time.Duration
	lookback int
	timeout  time.Duration
	log      *applogger.Logger
	now      func() time.Time
}

func NewNetflowQueryUseCase(source DailySource, pipeline *NetflowPipeline, memory *alerting.Memory, c cache.BytesCache, ttl time.Duration, lookbackDays int, l *applogger.Logger) *NetflowQueryUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	return &NetflowQueryUseCase{
		source:   source,
		pipeline: pipeline,
		memory:   memory,
		cache:    c,
		ttl:      ttl,
		lookback: lookbackDays,
		timeout:  10 * time.Second,
		log:      l,
		now:      time.Now,
	}
}

func (uc *NetflowQueryUseCase) normalize(p SeriesParams) SeriesParams {
	if p.To.IsZero() {
		p.To = uc.now().UTC()
	}
	if p.From.IsZero() {
		p.From = p.To.AddDate(0, 0, -(uc.lookback - 1))
	}
	p.From, p.To = models.DayOf(p.From), models.DayOf(p.To)
	return p
}

func (uc *NetflowQueryUseCase) detect(ctx context.Context, p SeriesParams) (PipelineResult, error) {
	p = uc.normalize(p)
	if p.From.After(p.To) {
		return PipelineResult{}, &models.InputError{Row: -1, Field: "from", Value: p.From.Format(models.DateLayout), Err: fmt.Errorf("%w: from is after to", models.ErrInvalidParams)}
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	key := p.key()
	if uc.cache != nil {
		var cached PipelineResult
		ok, err := cache.GetJSON(ctx, uc.cache, key, &cached)
		if err != nil {
			uc.log.Warn("netflow cache read failed", applogger.String("key", key), applogger.Error(err))
		}
		if ok {
			svcmetrics.CacheLookups.WithLabelValues("hit").Inc()
			return cached, nil
		}
		svcmetrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	perExchange, total, err := uc.source.LoadDaily(ctx, p.From, p.To)
	if err != nil {
		return PipelineResult{}, err
	}
	res, err := uc.pipeline.WithParams(netflow.DetectParams{Window: p.Window, MinPeriods: p.MinPeriods}).Detect(ctx, perExchange, total)
	if err != nil {
		return PipelineResult{}, err
	}

	if uc.cache != nil {
		if err := cache.SetJSON(ctx, uc.cache, key, res, uc.ttl); err != nil {
			uc.log.Warn("netflow cache write failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return res, nil
}

// Total returns the detected total series.
func (uc *NetflowQueryUseCase) Total(ctx context.Context, p SeriesParams) ([]models.DailyNetflowRow, error) {
	res, err := uc.detect(ctx, p)
	if err != nil {
		return nil, err
	}
	return res.Total, nil
}

// Exchanges returns the detected per-exchange rows, optionally restricted to one label.
func (uc *NetflowQueryUseCase) Exchanges(ctx context.Context, p SeriesParams, exchange string) ([]models.DailyNetflowRow, error) {
	res, err := uc.detect(ctx, p)
	if err != nil {
		return nil, err
	}
	label := models.NormalizeLabel(exchange)
	if label == "" {
		return res.PerExchange, nil
	}
	out := make([]models.DailyNetflowRow, 0)
	for _, r := range res.PerExchange {
		if r.Exchange == label {
			out = append(out, r)
		}
	}
	return out, nil
}

// Anomalies returns the total-series anomalies at p.Z.
func (uc *NetflowQueryUseCase) Anomalies(ctx context.Context, p SeriesParams) ([]models.Anomaly, error) {
	rows, err := uc.Total(ctx, p)
	if err != nil {
		return nil, err
	}
	return netflow.Anomalies(rows, p.Z), nil
}

// TopK ranks the total series ("total") or each exchange series ("exchange").
func (uc *NetflowQueryUseCase) TopK(ctx context.Context, p SeriesParams, k int, scope string) ([]models.DailyNetflowRow, error) {
	res, err := uc.detect(ctx, p)
	if err != nil {
		return nil, err
	}
	switch scope {
	case "", "total":
		return netflow.TopK(res.Total, k), nil
	case "exchange":
		return netflow.TopKByExchange(res.PerExchange, k), nil
	default:
		return nil, &models.InputError{Row: -1, Field: "scope", Value: scope, Err: models.ErrInvalidParams}
	}
}

// Memory reports the current alert memory.
func (uc *NetflowQueryUseCase) Memory(ctx context.Context) models.MemoryView {
	seen := uc.memory.Load(ctx)
	return models.MemoryView{
		Backend:   uc.memory.Backend(),
		Count:     seen.Len(),
		SeenDates: seen.Sorted(),
	}
}
