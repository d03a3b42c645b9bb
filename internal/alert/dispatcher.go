package alert

import (
	"context"
	"time"

	"github.com/SIMPLYBOYS/mempool_scanner/internal/metrics"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/worker"
	"github.com/SIMPLYBOYS/mempool_scanner/pkg/logger"
)

// Dispatcher hands alerts to a background worker so delivery never blocks the
// caller. Failures are logged and counted, never returned.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	metrics *metrics.Metrics
	log     *logger.Logger
	queue   *worker.Queue[string]
}

func NewDispatcher(sender Sender, queueSize int, timeout time.Duration, m *metrics.Metrics) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if m == nil {
		m = metrics.New(nil)
	}
	d := &Dispatcher{
		sender:  sender,
		timeout: timeout,
		metrics: m,
		log:     logger.Default().With("component", "alert"),
	}
	d.queue = worker.NewQueue("alert", queueSize, 1, d.deliver).OnDrop(func() {
		m.Alerts.WithLabelValues("dropped").Inc()
		m.SinkDropped.WithLabelValues("alert").Inc()
	})
	return d
}

// Enabled reports whether alerts go anywhere.
func (d *Dispatcher) Enabled() bool {
	_, nop := d.sender.(NopSender)
	return !nop
}

// SendAlert queues text for delivery and returns immediately.
func (d *Dispatcher) SendAlert(text string) {
	if !d.Enabled() {
		return
	}
	d.queue.TryEnqueue(text)
}

func (d *Dispatcher) deliver(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sender.Send(ctx, text); err != nil {
		d.metrics.Alerts.WithLabelValues("failed").Inc()
		d.log.LogError(err)
		return
	}
	d.metrics.Alerts.WithLabelValues("sent").Inc()
}

// Close waits for queued alerts to be attempted.
func (d *Dispatcher) Close() {
	d.queue.Close()
}
