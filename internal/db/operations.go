package db

import (
	"context"
	"database/sql"

	apperrors "github.com/SIMPLYBOYS/mempool_scanner/internal/errors"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/types"
)

// RecordSwap journals swap. A hash already present is left untouched, so
// replays after a reconnect are harmless.
func (s *DBServiceImpl) RecordSwap(ctx context.Context, swap *types.ClassifiedSwap) error {
	value := swap.Tx.Value
	if value == "" {
		value = "0x0"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_swaps (tx_hash, from_addr, to_addr, method, value_wei, value_eth, is_big, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tx_hash) DO NOTHING`,
		swap.Tx.Hash, swap.Tx.From, swap.Tx.To, swap.Method, value, swap.ValueEth.String(), swap.IsBig, swap.ObservedAt)
	if err != nil {
		return &apperrors.DatabaseError{Operation: "record swap", Err: err}
	}
	return nil
}

// RecentSwaps returns up to limit swaps, newest first.
func (s *DBServiceImpl) RecentSwaps(ctx context.Context, limit int) ([]SwapRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tx_hash, from_addr, to_addr, method, value_wei, value_eth, is_big, observed_at
		FROM pending_swaps
		ORDER BY observed_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, &apperrors.DatabaseError{Operation: "query recent swaps", Err: err}
	}
	defer rows.Close()

	swaps := []SwapRecord{}
	for rows.Next() {
		var r SwapRecord
		if err := rows.Scan(&r.ID, &r.TxHash, &r.From, &r.To, &r.Method, &r.ValueWei, &r.ValueEth, &r.IsBig, &r.ObservedAt); err != nil {
			return nil, &apperrors.DatabaseError{Operation: "scan swap row", Err: err}
		}
		swaps = append(swaps, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperrors.DatabaseError{Operation: "iterate swap rows", Err: err}
	}
	return swaps, nil
}

func (s *DBServiceImpl) SwapStats(ctx context.Context) (SwapStats, error) {
	var (
		stats    SwapStats
		lastSeen sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_big),
		       COALESCE(SUM(value_eth), 0),
		       MAX(observed_at)
		FROM pending_swaps`).Scan(&stats.Total, &stats.BigSwaps, &stats.TotalEth, &lastSeen)
	if err != nil {
		return SwapStats{}, &apperrors.DatabaseError{Operation: "query swap stats", Err: err}
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		stats.LastSeen = &t
	}
	return stats, nil
}
