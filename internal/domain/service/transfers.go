package service

import (
	"context"
	"time"

	"NetflowWatch/internal/domain/models"
)

// BlockResolver maps a timestamp to the closest block number.
type BlockResolver interface {
	BlockByTime(ctx context.Context, at time.Time, closest string) (uint64, error)
}

// TransferFetcher retrieves token transfers touching one address within a block range.
type TransferFetcher interface {
	FetchTransfers(ctx context.Context, address string, startBlock, endBlock uint64) ([]models.TransferRecord, error)
}
