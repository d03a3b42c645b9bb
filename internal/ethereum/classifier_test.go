package ethereum

import (
	"testing"

	"github.com/SIMPLYBOYS/mempool_scanner/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultSets(t *testing.T) (RouterSet, SelectorSet) {
	t.Helper()
	routers, err := NewRouterSet(DefaultRouters)
	require.NoError(t, err)
	selectors, err := NewSelectorSet(DefaultSelectors())
	require.NoError(t, err)
	return routers, selectors
}

func TestParseEth(t *testing.T) {
	testCases := []struct {
		name     string
		in       string
		expected string
	}{
		{"empty", "", "0"},
		{"prefix only", "0x", "0"},
		{"upper prefix only", "0X", "0"},
		{"zero", "0x0", "0"},
		{"one ether", "0xDE0B6B3A7640000", "1"},
		{"one ether lower", "0xde0b6b3a7640000", "1"},
		{"leading zeros", "0x00de0b6b3a7640000", "1"},
		{"one wei", "0x1", "0.000000000000000001"},
		{"twelve hundred ether", "0x410d586a20a4c00000", "1200"},
		{"half ether", "0x6f05b59d3b20000", "0.5"},
		{"malformed", "0xzz", "0"},
		{"signed", "0x-1", "0"},
		{"no prefix", "de0b6b3a7640000", "1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			expected := decimal.RequireFromString(tc.expected)
			assert.True(t, expected.Equal(ParseEth(tc.in)), "got %s", ParseEth(tc.in).String())
		})
	}
}

func TestParseEthLargeValueKeepsPrecision(t *testing.T) {
	// 2^128 - 1 wei
	v := ParseEth("0xffffffffffffffffffffffffffffffff")
	assert.Equal(t, "340282366920938463463.374607431768211455", v.String())
}

func TestIsTrackedSwap(t *testing.T) {
	routers, selectors := defaultSets(t)

	testCases := []struct {
		name     string
		tx       types.TransactionRecord
		expected bool
	}{
		{
			name:     "v2 swapExactETHForTokens",
			tx:       types.TransactionRecord{To: UniswapV2Router, Input: "0x7ff36ab5000000"},
			expected: true,
		},
		{
			name:     "checksummed router and upper selector",
			tx:       types.TransactionRecord{To: "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D", Input: "0x7FF36AB5"},
			expected: true,
		},
		{
			name:     "missing to",
			tx:       types.TransactionRecord{Input: "0x7ff36ab5"},
			expected: false,
		},
		{
			name:     "unknown router",
			tx:       types.TransactionRecord{To: "0x1111111111111111111111111111111111111111", Input: "0x7ff36ab5"},
			expected: false,
		},
		{
			name:     "short input",
			tx:       types.TransactionRecord{To: UniswapV2Router, Input: "0x7ff36a"},
			expected: false,
		},
		{
			name:     "empty input",
			tx:       types.TransactionRecord{To: UniswapV3Router, Input: ""},
			expected: false,
		},
		{
			name:     "untracked selector",
			tx:       types.TransactionRecord{To: UniswapV3Router02, Input: "0xa9059cbb0000"},
			expected: false,
		},
		{
			name:     "v3 multicall",
			tx:       types.TransactionRecord{To: UniswapV3Router02, Input: "0xac9650d80000"},
			expected: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsTrackedSwap(tc.tx, routers, selectors))
		})
	}
}

func TestNewRouterSetRejectsInvalid(t *testing.T) {
	_, err := NewRouterSet([]string{"0x1234"})
	assert.Error(t, err)
}

func TestNewSelectorSetRejectsInvalid(t *testing.T) {
	for _, sel := range []string{"0x1234", "7ff36ab5", "0x7ff36ab5ff", "0xzzzzzzzz"} {
		_, err := NewSelectorSet([]string{sel})
		assert.Error(t, err, sel)
	}
}

func TestRouterSetAddressesSorted(t *testing.T) {
	routers, _ := defaultSets(t)
	assert.Equal(t, []string{UniswapV3Router02, UniswapV2Router, UniswapV3Router}, routers.Addresses())
}

func TestClassifierClassify(t *testing.T) {
	routers, selectors := defaultSets(t)
	c := NewClassifier(routers, selectors, decimal.NewFromInt(50))

	swap, ok := c.Classify(types.TransactionRecord{
		Hash:  "0xabc",
		To:    UniswapV2Router,
		Input: "0x7ff36ab5",
		Value: "0xDE0B6B3A7640000",
	})
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(1).Equal(swap.ValueEth))
	assert.False(t, swap.IsBig)
	assert.Equal(t, "swapExactETHForTokens", swap.Method)
	assert.False(t, swap.ObservedAt.IsZero())

	// exactly at the threshold counts as big
	swap, ok = c.Classify(types.TransactionRecord{
		To:    UniswapV2Router,
		Input: "0x7ff36ab5",
		Value: "0x2b5e3af16b1880000", // 50 ETH
	})
	require.True(t, ok)
	assert.True(t, swap.IsBig)

	_, ok = c.Classify(types.TransactionRecord{To: UniswapV2Router, Input: "0x"})
	assert.False(t, ok)
}

func TestMethodName(t *testing.T) {
	assert.Equal(t, "exactInputSingle", MethodName("0x04E45AAF"))
	assert.Equal(t, "unknown", MethodName("0xdeadbeef"))
}
