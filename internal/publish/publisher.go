package publish

import (
	"context"
	"encoding/json"
	"time"

	apperrors "github.com/SIMPLYBOYS/mempool_scanner/internal/errors"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/metrics"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/types"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/worker"
	"github.com/SIMPLYBOYS/mempool_scanner/pkg/logger"
)

const EventPendingSwap = "pending_swap"

// Envelope wraps every published event.
type Envelope struct {
	Type string          `json:"type"`
	TS   int64           `json:"ts"`
	Data json.RawMessage `json:"data"`
}

func encodeSwap(swap *types.ClassifiedSwap, now time.Time) ([]byte, error) {
	data, err := json.Marshal(swap)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: EventPendingSwap, TS: now.UnixMilli(), Data: data})
}

// Publisher delivers swaps to an external bus.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, swap *types.ClassifiedSwap) error
	Close() error
}

// Fanout publishes every submitted swap to all publishers from a background
// worker. A failing publisher does not stop the others.
type Fanout struct {
	publishers []Publisher
	timeout    time.Duration
	log        *logger.Logger
	queue      *worker.Queue[*types.ClassifiedSwap]
}

func NewFanout(publishers []Publisher, queueSize int, m *metrics.Metrics) *Fanout {
	if m == nil {
		m = metrics.New(nil)
	}
	f := &Fanout{
		publishers: publishers,
		timeout:    5 * time.Second,
		log:        logger.Default().With("component", "publish"),
	}
	f.queue = worker.NewQueue("publish", queueSize, 1, f.publish).OnDrop(func() {
		m.SinkDropped.WithLabelValues("publish").Inc()
	})
	return f
}

func (f *Fanout) SubmitSwap(swap *types.ClassifiedSwap) {
	f.queue.TryEnqueue(swap)
}

func (f *Fanout) publish(swap *types.ClassifiedSwap) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	for _, p := range f.publishers {
		if err := p.Publish(ctx, swap); err != nil {
			f.log.LogError(&apperrors.PublishError{Sink: p.Name(), Err: err})
		}
	}
}

// Close drains queued swaps, then closes every publisher.
func (f *Fanout) Close() {
	f.queue.Close()
	for _, p := range f.publishers {
		if err := p.Close(); err != nil {
			f.log.Warn("Closing %s publisher: %v", p.Name(), err)
		}
	}
}
