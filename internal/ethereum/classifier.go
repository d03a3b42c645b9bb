package ethereum

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/SIMPLYBOYS/mempool_scanner/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// selectorLen is the length of a 0x-prefixed 4-byte selector.
const selectorLen = 10

// RouterSet holds lower-cased router addresses.
type RouterSet map[string]struct{}

// NewRouterSet validates and normalizes addrs.
func NewRouterSet(addrs []string) (RouterSet, error) {
	set := make(RouterSet, len(addrs))
	for _, addr := range addrs {
		addr = strings.TrimSpace(addr)
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid router address %q", addr)
		}
		set[strings.ToLower(common.HexToAddress(addr).Hex())] = struct{}{}
	}
	return set, nil
}

// Contains reports whether addr is a member, ignoring case.
func (s RouterSet) Contains(addr string) bool {
	if addr == "" {
		return false
	}
	_, ok := s[strings.ToLower(addr)]
	return ok
}

// Addresses returns the members in sorted order.
func (s RouterSet) Addresses() []string {
	out := make([]string, 0, len(s))
	for addr := range s {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// SelectorSet holds lower-cased 0x-prefixed 4-byte selectors.
type SelectorSet map[string]struct{}

// NewSelectorSet validates and normalizes selectors.
func NewSelectorSet(selectors []string) (SelectorSet, error) {
	set := make(SelectorSet, len(selectors))
	for _, sel := range selectors {
		norm := normalizeSelector(sel)
		raw, err := hexutil.Decode(norm)
		if err != nil || len(raw) != 4 {
			return nil, fmt.Errorf("invalid selector %q", sel)
		}
		set[norm] = struct{}{}
	}
	return set, nil
}

// Contains reports whether selector is a member, ignoring case.
func (s SelectorSet) Contains(selector string) bool {
	_, ok := s[normalizeSelector(selector)]
	return ok
}

func normalizeSelector(sel string) string {
	return strings.ToLower(strings.TrimSpace(sel))
}

// ParseWei decodes a hex quantity. Empty, prefix-only or malformed input yields zero.
func ParseWei(weiHex string) *big.Int {
	digits := strings.TrimSpace(weiHex)
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		digits = digits[2:]
	}
	if digits == "" || digits[0] == '+' || digits[0] == '-' {
		return new(big.Int)
	}
	wei, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return new(big.Int)
	}
	return wei
}

// ParseEth converts a hex wei quantity to an exact ETH amount.
func ParseEth(weiHex string) decimal.Decimal {
	return decimal.NewFromBigInt(ParseWei(weiHex), -18)
}

// Selector returns the lower-cased leading selector of input, or "" when input is too short.
func Selector(input string) string {
	if len(input) < selectorLen {
		return ""
	}
	return strings.ToLower(input[:selectorLen])
}

// IsTrackedSwap reports whether tx targets a tracked router with a tracked selector.
func IsTrackedSwap(tx types.TransactionRecord, routers RouterSet, selectors SelectorSet) bool {
	if !routers.Contains(tx.To) {
		return false
	}
	sel := Selector(tx.Input)
	if sel == "" {
		return false
	}
	_, ok := selectors[sel]
	return ok
}

// Classifier applies the router/selector rules and the big-swap threshold.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	routers   RouterSet
	selectors SelectorSet
	threshold decimal.Decimal
	now       func() time.Time
}

func NewClassifier(routers RouterSet, selectors SelectorSet, threshold decimal.Decimal) *Classifier {
	return &Classifier{
		routers:   routers,
		selectors: selectors,
		threshold: threshold,
		now:       time.Now,
	}
}

func (c *Classifier) Routers() RouterSet {
	return c.routers
}

func (c *Classifier) Threshold() decimal.Decimal {
	return c.threshold
}

// Classify returns the classified swap and true when tx is tracked.
func (c *Classifier) Classify(tx types.TransactionRecord) (*types.ClassifiedSwap, bool) {
	if !IsTrackedSwap(tx, c.routers, c.selectors) {
		return nil, false
	}

	valueEth := ParseEth(tx.Value)
	return &types.ClassifiedSwap{
		Tx:         tx,
		ValueEth:   valueEth,
		IsBig:      valueEth.GreaterThanOrEqual(c.threshold),
		Method:     MethodName(Selector(tx.Input)),
		ObservedAt: c.now(),
	}, true
}
