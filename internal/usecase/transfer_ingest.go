package usecase

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"NetflowWatch/internal/domain/models"
	domrepo "NetflowWatch/internal/domain/repository"
	domsvc "NetflowWatch/internal/domain/service"
	"NetflowWatch/internal/services/netflow"
	applogger "NetflowWatch/pkg/logger"
	"NetflowWatch/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

// IngestResult holds one fetch over all custody addresses.
type IngestResult struct {
	From        time.Time
	To          time.Time
	PerExchange map[string][]models.TransferRecord
	Combined    []models.TransferRecord
	Coverage    map[string]netflow.Coverage
}

// Suspicious lists the labels whose export looks truncated.
func (r IngestResult) Suspicious() []string {
	var out []string
	for _, label := range slices.Sorted(maps.Keys(r.Coverage)) {
		if r.Coverage[label].Truncated() {
			out = append(out, label)
		}
	}
	return out
}

// TransferIngest pulls token transfers for every custody address, labels them and
// optionally stores the merged set.
type TransferIngest struct {
	blocks    domsvc.BlockResolver
	fetcher   domsvc.TransferFetcher
	store     domrepo.NetflowStore
	exchanges models.ExchangeAddressMap
	hardMax   int
	parallel  int
	metrics   domrepo.Metrics
	log       *applogger.Logger
}

func NewTransferIngest(
	blocks domsvc.BlockResolver,
	fetcher domsvc.TransferFetcher,
	store domrepo.NetflowStore,
	exchanges models.ExchangeAddressMap,
	hardMax int,
	m domrepo.Metrics,
	l *applogger.Logger,
) *TransferIngest {
	if m == nil {
		m = metrics.Nop{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &TransferIngest{
		blocks:    blocks,
		fetcher:   fetcher,
		store:     store,
		exchanges: exchanges,
		hardMax:   hardMax,
		parallel:  2,
		metrics:   m,
		log:       l,
	}
}

// Fetch retrieves transfers for the inclusive day range [from, to].
func (in *TransferIngest) Fetch(ctx context.Context, from, to time.Time) (IngestResult, error) {
	start := time.Now()
	defer func() { in.metrics.RecordLatency("ingest", time.Since(start).Seconds()) }()

	from, end := models.DayRange(from, to)
	if !from.Before(end) {
		return IngestResult{}, &models.InputError{Row: -1, Field: "from", Err: fmt.Errorf("%w: from is after to", models.ErrInvalidParams)}
	}
	startBlock, err := in.blocks.BlockByTime(ctx, from, "after")
	if err != nil {
		return IngestResult{}, fmt.Errorf("start block: %w", err)
	}
	endBlock, err := in.blocks.BlockByTime(ctx, end.Add(-time.Second), "before")
	if err != nil {
		return IngestResult{}, fmt.Errorf("end block: %w", err)
	}
	in.log.Info("fetching transfers",
		applogger.String("from", from.Format(models.DateLayout)),
		applogger.String("to", models.DayOf(to).Format(models.DateLayout)),
		applogger.Int64("start_block", int64(startBlock)),
		applogger.Int64("end_block", int64(endBlock)),
		applogger.Int("exchanges", len(in.exchanges)),
	)

	labels := in.exchanges.Labels()
	batches := make([][]models.TransferRecord, len(labels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.parallel)
	for i, label := range labels {
		g.Go(func() error {
			ts, err := in.fetcher.FetchTransfers(gctx, in.exchanges[label], startBlock, endBlock)
			if err != nil {
				in.metrics.RecordError("fetch")
				return fmt.Errorf("fetch %s: %w", label, err)
			}
			for j := range ts {
				ts[j].Exchange = label
			}
			batches[i] = ts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return IngestResult{}, err
	}

	res := IngestResult{
		From:        from,
		To:          end,
		PerExchange: make(map[string][]models.TransferRecord, len(labels)),
		Coverage:    make(map[string]netflow.Coverage, len(labels)),
	}
	for i, label := range labels {
		res.PerExchange[label] = batches[i]
		cov := netflow.CheckCoverage(batches[i], from, end, in.hardMax, 1)
		res.Coverage[label] = cov
		if cov.Truncated() {
			in.log.Warn("transfer export may be truncated",
				applogger.String("exchange", label),
				applogger.Int("rows", cov.Rows),
				applogger.Strings("reasons", cov.Reasons),
			)
		}
	}
	res.Combined = netflow.MergeTransfers(batches...)

	if in.store != nil && len(res.Combined) > 0 {
		if err := in.store.StoreTransfers(ctx, res.Combined); err != nil {
			in.metrics.RecordError("store")
			return res, fmt.Errorf("store transfers: %w", err)
		}
	}
	in.log.Info("transfers fetched", applogger.Int("rows", len(res.Combined)))
	return res, nil
}

// Sync fetches the trailing days up to today, for the service loop.
func (in *TransferIngest) Sync(ctx context.Context, days int) (IngestResult, error) {
	to := time.Now().UTC()
	return in.Fetch(ctx, to.AddDate(0, 0, -(max(days, 1)-1)), to)
}
