package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/SIMPLYBOYS/mempool_scanner/pkg/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// ChainlinkETHUSDAddress is the mainnet Chainlink ETH/USD aggregator.
const ChainlinkETHUSDAddress = "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"

const latestRoundDataABI = `[{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"}]`

// PriceSource supplies the ETH/USD multiplier used in alerts. ETHUSD must not block.
type PriceSource interface {
	ETHUSD() decimal.Decimal
}

// StaticPrice is a fixed multiplier from configuration.
type StaticPrice decimal.Decimal

func (p StaticPrice) ETHUSD() decimal.Decimal {
	return decimal.Decimal(p)
}

// EthereumClient is the subset of ethclient.Client used for price lookups.
type EthereumClient interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

type ClientCreator func(url string) (EthereumClient, error)

func defaultClientCreator(url string) (EthereumClient, error) {
	return ethclient.Dial(url)
}

// ChainlinkPrice keeps a cached ETH/USD answer refreshed from a Chainlink aggregator.
// Until the first successful refresh it reports the fallback multiplier.
type ChainlinkPrice struct {
	client     EthereumClient
	aggregator common.Address
	abi        abi.ABI
	ttl        time.Duration

	mu      sync.RWMutex
	current decimal.Decimal
}

// DialChainlinkPrice connects to rpcURL and returns a price source for aggregator.
func DialChainlinkPrice(rpcURL, aggregator string, fallback decimal.Decimal, ttl time.Duration, creator ClientCreator) (*ChainlinkPrice, error) {
	if creator == nil {
		creator = defaultClientCreator
	}
	client, err := creator(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the Ethereum client: %w", err)
	}
	p, err := NewChainlinkPrice(client, aggregator, fallback, ttl)
	if err != nil {
		client.Close()
		return nil, err
	}
	return p, nil
}

func NewChainlinkPrice(client EthereumClient, aggregator string, fallback decimal.Decimal, ttl time.Duration) (*ChainlinkPrice, error) {
	if !common.IsHexAddress(aggregator) {
		return nil, fmt.Errorf("invalid aggregator address %q", aggregator)
	}
	parsedABI, err := abi.JSON(strings.NewReader(latestRoundDataABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ChainlinkPrice{
		client:     client,
		aggregator: common.HexToAddress(aggregator),
		abi:        parsedABI,
		ttl:        ttl,
		current:    fallback,
	}, nil
}

func (p *ChainlinkPrice) ETHUSD() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Refresh reads latestRoundData once and updates the cached price.
func (p *ChainlinkPrice) Refresh(ctx context.Context) error {
	data, err := p.abi.Pack("latestRoundData")
	if err != nil {
		return fmt.Errorf("failed to pack data for latestRoundData function call: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	result, err := p.client.CallContract(ctx, ethereum.CallMsg{
		To:   &p.aggregator,
		Data: data,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to call latestRoundData function: %w", err)
	}

	out, err := p.abi.Unpack("latestRoundData", result)
	if err != nil {
		return fmt.Errorf("failed to unpack result: %w", err)
	}
	if len(out) < 2 {
		return fmt.Errorf("unexpected latestRoundData output length %d", len(out))
	}
	answer, ok := out[1].(*big.Int)
	if !ok || answer.Sign() <= 0 {
		return fmt.Errorf("invalid latestRoundData answer %v", out[1])
	}

	// Chainlink ETH/USD answers carry 8 decimals
	price := decimal.NewFromBigInt(answer, -8)

	p.mu.Lock()
	p.current = price
	p.mu.Unlock()
	return nil
}

// Run refreshes the price every ttl until ctx is done.
func (p *ChainlinkPrice) Run(ctx context.Context) {
	ticker := time.NewTicker(p.ttl)
	defer ticker.Stop()

	for {
		if err := p.Refresh(ctx); err != nil {
			logger.Warn("ETH/USD price refresh failed, keeping %s: %v", p.ETHUSD().StringFixed(2), err)
		} else {
			logger.Debug("ETH/USD price refreshed: %s", p.ETHUSD().StringFixed(2))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *ChainlinkPrice) Close() {
	if p.client != nil {
		p.client.Close()
	}
}
