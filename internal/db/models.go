package db

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 500
)

type SwapRecord struct {
	ID         int64           `json:"id"`
	TxHash     string          `json:"tx_hash"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Method     string          `json:"method"`
	ValueWei   string          `json:"value_wei"`
	ValueEth   decimal.Decimal `json:"value_eth"`
	IsBig      bool            `json:"is_big"`
	ObservedAt time.Time       `json:"observed_at"`
}

type SwapStats struct {
	Total    int64           `json:"total"`
	BigSwaps int64           `json:"big_swaps"`
	TotalEth decimal.Decimal `json:"total_eth"`
	LastSeen *time.Time      `json:"last_seen,omitempty"`
}
