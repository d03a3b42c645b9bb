package db

import (
	"context"
	"time"

	"github.com/SIMPLYBOYS/mempool_scanner/internal/metrics"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/types"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/worker"
	"github.com/SIMPLYBOYS/mempool_scanner/pkg/logger"
)

// Recorder journals swaps off the feed goroutine. Write failures are logged
// and the swap is lost.
type Recorder struct {
	store   SwapStore
	timeout time.Duration
	log     *logger.Logger
	queue   *worker.Queue[*types.ClassifiedSwap]
}

func NewRecorder(store SwapStore, queueSize int, m *metrics.Metrics) *Recorder {
	if m == nil {
		m = metrics.New(nil)
	}
	r := &Recorder{
		store:   store,
		timeout: 5 * time.Second,
		log:     logger.Default().With("component", "journal"),
	}
	r.queue = worker.NewQueue("journal", queueSize, 1, r.record).OnDrop(func() {
		m.SinkDropped.WithLabelValues("journal").Inc()
	})
	return r
}

func (r *Recorder) SubmitSwap(swap *types.ClassifiedSwap) {
	r.queue.TryEnqueue(swap)
}

func (r *Recorder) record(swap *types.ClassifiedSwap) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.store.RecordSwap(ctx, swap); err != nil {
		r.log.LogError(err)
	}
}

// Close drains pending writes.
func (r *Recorder) Close() {
	r.queue.Close()
}
