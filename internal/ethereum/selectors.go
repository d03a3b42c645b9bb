package ethereum

// Uniswap router addresses (lower-case).
const (
	UniswapV2Router   = "0x7a250d5630b4cf539739df2c5dacb4c659f2488d"
	UniswapV3Router   = "0xe592427a0aece92de3edee1f18e0157c05861564"
	UniswapV3Router02 = "0x68b3465833fb72a70ecdf485e0e4c7bd8665fc45"
)

// DefaultRouters are the routers watched when no list is configured.
var DefaultRouters = []string{
	UniswapV2Router,
	UniswapV3Router,
	UniswapV3Router02,
}

// knownSelectors labels the swap and swap-adjacent selectors of the default routers.
var knownSelectors = map[string]string{
	// Uniswap V2
	"0x7ff36ab5": "swapExactETHForTokens",
	"0x18cbafe5": "swapExactTokensForETH",
	"0x38ed1739": "swapExactTokensForTokens",
	"0x8803dbee": "swapTokensForExactTokens",
	"0xfb3bdb41": "swapETHForExactTokens",
	"0x4a25d94a": "swapTokensForExactETH",
	"0x5c11d795": "swapExactTokensForTokensSupportingFeeOnTransferTokens",
	"0x791ac947": "swapExactTokensForETHSupportingFeeOnTransferTokens",
	"0xb6f9de95": "swapExactETHForTokensSupportingFeeOnTransferTokens",
	"0x42712a67": "multicall",
	// Uniswap V3
	"0x04e45aaf": "exactInputSingle",
	"0x414bf389": "exactInputSingle",
	"0xb858183f": "exactInput",
	"0xc04b8d59": "exactInput",
	"0x5023b4df": "exactOutputSingle",
	"0x09b81346": "exactOutput",
	"0xac9650d8": "multicall",
	// liquidity, reported as DEX activity
	"0xf305d719": "addLiquidityETH",
}

// DefaultSelectors returns the selectors tracked when none are configured.
func DefaultSelectors() []string {
	out := make([]string, 0, len(knownSelectors))
	for sel := range knownSelectors {
		out = append(out, sel)
	}
	return out
}

// MethodName returns a label for selector, or "unknown".
func MethodName(selector string) string {
	if name, ok := knownSelectors[normalizeSelector(selector)]; ok {
		return name
	}
	return "unknown"
}
