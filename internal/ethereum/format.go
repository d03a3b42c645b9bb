package ethereum

import (
	"fmt"

	"github.com/SIMPLYBOYS/mempool_scanner/internal/types"
	"github.com/shopspring/decimal"
)

const (
	hashPrefixLen = 18
	fromPrefixLen = 10
	toSuffixLen   = 8
)

// FormatLogLine renders a swap as a single console line.
func FormatLogLine(tx types.TransactionRecord, valueEth decimal.Decimal) string {
	return fmt.Sprintf("Swap | %s ETH | from %s -> %s | tx %s",
		valueEth.StringFixed(2),
		head(tx.From, fromPrefixLen),
		tail(tx.To, toSuffixLen),
		head(tx.Hash, hashPrefixLen),
	)
}

// FormatSwapLine is FormatLogLine followed by the method label.
func FormatSwapLine(swap *types.ClassifiedSwap) string {
	return FormatLogLine(swap.Tx, swap.ValueEth) + " | " + swap.Method
}

// FormatBigSwapAlert renders the alert text for a swap above the threshold.
func FormatBigSwapAlert(tx types.TransactionRecord, valueEth, ethUSD decimal.Decimal, logLine string) string {
	return fmt.Sprintf("Big swap: %s ETH (~$%s)\n%s",
		valueEth.StringFixed(1),
		valueEth.Mul(ethUSD).StringFixed(0),
		logLine,
	)
}

func head(s string, n int) string {
	if s == "" {
		return "?"
	}
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func tail(s string, n int) string {
	if s == "" {
		return "?"
	}
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
