package usecase

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"NetflowWatch/internal/domain/models"
	domrepo "NetflowWatch/internal/domain/repository"
	"NetflowWatch/internal/services/netflow"
	applogger "NetflowWatch/pkg/logger"
	"NetflowWatch/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

// PipelineResult holds the detected per-exchange and total tables.
type PipelineResult struct {
	PerExchange []models.DailyNetflowRow
	Total       []models.DailyNetflowRow
}

// NetflowPipeline runs classify, aggregate and detect over a batch of transfers
// or daily rows. Detection input is sorted first, so callers may pass rows in any order.
type NetflowPipeline struct {
	params  netflow.DetectParams
	metrics domrepo.Metrics
	log     *applogger.Logger
}

func NewNetflowPipeline(params netflow.DetectParams, m domrepo.Metrics, l *applogger.Logger) *NetflowPipeline {
	if m == nil {
		m = metrics.Nop{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &NetflowPipeline{params: params, metrics: m, log: l}
}

func (p *NetflowPipeline) Params() netflow.DetectParams { return p.params }

// WithParams returns a copy of the pipeline using params.
func (p *NetflowPipeline) WithParams(params netflow.DetectParams) *NetflowPipeline {
	cp := *p
	cp.params = params
	return &cp
}

// Aggregate classifies transfers against exchanges and reduces them to daily rows.
func (p *NetflowPipeline) Aggregate(ts []models.TransferRecord, exchanges models.ExchangeAddressMap) (perExchange, total []models.DailyNetflowRow) {
	classified := netflow.ClassifyAll(ts, exchanges)
	perExchange, total = netflow.Aggregate(classified)
	p.log.Debug("netflow aggregated",
		applogger.Int("transfers", len(ts)),
		applogger.Int("exchange_rows", len(perExchange)),
		applogger.Int("days", len(total)),
	)
	return perExchange, total
}

// Detect computes statistics for the total series and every exchange series.
// Exchange series run concurrently; the first failure cancels the rest.
func (p *NetflowPipeline) Detect(ctx context.Context, perExchange, total []models.DailyNetflowRow) (PipelineResult, error) {
	start := time.Now()
	defer func() { p.metrics.RecordLatency("detect", time.Since(start).Seconds()) }()

	sortedTotal := append([]models.DailyNetflowRow(nil), total...)
	netflow.SortRows(sortedTotal)

	groups := netflow.SplitByExchange(perExchange)
	labels := netflow.Exchanges(perExchange)
	results := make([][]models.DailyNetflowRow, len(labels))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0) + 1)
	var detectedTotal []models.DailyNetflowRow
	g.Go(func() error {
		rows, err := netflow.Detect(sortedTotal, p.params)
		if err != nil {
			return fmt.Errorf("total: %w", err)
		}
		detectedTotal = rows
		return nil
	})
	for i, ex := range labels {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows, err := netflow.Detect(groups[ex], p.params)
			if err != nil {
				return fmt.Errorf("exchange %s: %w", ex, err)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.metrics.RecordError("detect")
		return PipelineResult{}, err
	}

	out := make([]models.DailyNetflowRow, 0, len(perExchange))
	for i, ex := range labels {
		out = append(out, results[i]...)
		p.metrics.RecordRowsProcessed(ex, len(results[i]))
	}
	netflow.SortRows(out)
	p.metrics.RecordRowsProcessed("total", len(detectedTotal))

	return PipelineResult{PerExchange: out, Total: detectedTotal}, nil
}

// Run aggregates transfers and detects on the result.
func (p *NetflowPipeline) Run(ctx context.Context, ts []models.TransferRecord, exchanges models.ExchangeAddressMap) (PipelineResult, error) {
	perExchange, total := p.Aggregate(ts, exchanges)
	return p.Detect(ctx, perExchange, total)
}

// TopK ranks the total series and each exchange series of res.
func (p *NetflowPipeline) TopK(res PipelineResult, k int) (total, byExchange []models.DailyNetflowRow) {
	return netflow.TopK(res.Total, k), netflow.TopKByExchange(res.PerExchange, k)
}
