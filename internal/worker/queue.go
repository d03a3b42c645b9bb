package worker

import (
	"sync"

	"github.com/SIMPLYBOYS/mempool_scanner/pkg/logger"
)

// Queue hands items to a fixed set of workers over a bounded buffer.
// TryEnqueue never blocks, so producers on the stream path are not stalled
// by slow consumers.
type Queue[T any] struct {
	name   string
	items  chan T
	handle func(T)
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	onDrop func()
}

// NewQueue starts workers goroutines calling handle for each item.
func NewQueue[T any](name string, size, workers int, handle func(T)) *Queue[T] {
	if size <= 0 {
		size = 1
	}
	if workers <= 0 {
		workers = 1
	}
	q := &Queue[T]{
		name:   name,
		items:  make(chan T, size),
		handle: handle,
	}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.run()
	}
	return q
}

// OnDrop registers a callback invoked whenever an item is rejected.
func (q *Queue[T]) OnDrop(fn func()) *Queue[T] {
	q.onDrop = fn
	return q
}

// TryEnqueue queues item, reporting false when the queue is full or closed.
func (q *Queue[T]) TryEnqueue(item T) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.dropped()
		return false
	}
	select {
	case q.items <- item:
		return true
	default:
		q.dropped()
		return false
	}
}

func (q *Queue[T]) dropped() {
	logger.Warn("%s queue full or closed, dropping item", q.name)
	if q.onDrop != nil {
		q.onDrop()
	}
}

// Len is the number of buffered items.
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Close stops accepting items and waits until buffered items are handled.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.items)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue[T]) run() {
	defer q.wg.Done()
	for item := range q.items {
		q.safeHandle(item)
	}
}

func (q *Queue[T]) safeHandle(item T) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("%s worker recovered from panic: %v", q.name, r)
		}
	}()
	q.handle(item)
}
