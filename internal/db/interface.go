package db

import (
	"context"

	"github.com/SIMPLYBOYS/mempool_scanner/internal/types"
)

// SwapStore is the journal of observed swaps.
type SwapStore interface {
	RecordSwap(ctx context.Context, swap *types.ClassifiedSwap) error
	RecentSwaps(ctx context.Context, limit int) ([]SwapRecord, error)
	SwapStats(ctx context.Context) (SwapStats, error)
	Close() error
}
