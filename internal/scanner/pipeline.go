package scanner

import (
	"context"

	"github.com/SIMPLYBOYS/mempool_scanner/internal/ethereum"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/metrics"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/types"
	"github.com/SIMPLYBOYS/mempool_scanner/pkg/logger"
)

// AlertSink takes formatted big-swap alerts. Implementations must not block.
type AlertSink interface {
	SendAlert(text string)
}

// SwapSink receives every classified swap. Implementations must not block;
// they queue or drop.
type SwapSink interface {
	SubmitSwap(swap *types.ClassifiedSwap)
}

type nopAlerts struct{}

func (nopAlerts) SendAlert(string) {}

// Pipeline is the per-batch path from decoded transactions to log lines,
// alerts and sinks. It runs on the session goroutine.
type Pipeline struct {
	classifier *ethereum.Classifier
	price      ethereum.PriceSource
	alerts     AlertSink
	sinks      []SwapSink
	metrics    *metrics.Metrics
	log        *logger.Logger
}

func NewPipeline(classifier *ethereum.Classifier, price ethereum.PriceSource, alerts AlertSink, m *metrics.Metrics, log *logger.Logger, sinks ...SwapSink) *Pipeline {
	if alerts == nil {
		alerts = nopAlerts{}
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if log == nil {
		log = logger.Default()
	}
	return &Pipeline{
		classifier: classifier,
		price:      price,
		alerts:     alerts,
		sinks:      sinks,
		metrics:    m,
		log:        log,
	}
}

// AddSink registers another swap sink. Call before the feed starts.
func (p *Pipeline) AddSink(sink SwapSink) {
	p.sinks = append(p.sinks, sink)
}

// HandleTransactions classifies txs in order. No deduplication happens here:
// a hash seen twice is reported twice.
func (p *Pipeline) HandleTransactions(ctx context.Context, txs []types.TransactionRecord) {
	for _, tx := range txs {
		if ctx.Err() != nil {
			return
		}
		p.handle(tx)
	}
}

func (p *Pipeline) handle(tx types.TransactionRecord) {
	swap, ok := p.classifier.Classify(tx)
	if !ok {
		if p.log.Enabled(logger.DEBUG) {
			p.log.Debug("Ignored tx %s to=%s selector=%s", tx.Hash, tx.To, ethereum.Selector(tx.Input))
		}
		return
	}

	p.metrics.SwapsDetected.Inc()
	p.log.Info("%s", ethereum.FormatSwapLine(swap))

	if swap.IsBig {
		p.metrics.BigSwaps.Inc()
		logLine := ethereum.FormatLogLine(swap.Tx, swap.ValueEth)
		p.alerts.SendAlert(ethereum.FormatBigSwapAlert(swap.Tx, swap.ValueEth, p.price.ETHUSD(), logLine))
	}

	for _, sink := range p.sinks {
		sink.SubmitSwap(swap)
	}
}
