package feed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/SIMPLYBOYS/mempool_scanner/internal/errors"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/metrics"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/types"
	"github.com/SIMPLYBOYS/mempool_scanner/pkg/logger"
)

// State is the lifecycle position of a Session.
type State int32

const (
	StateSubscribing State = iota
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateSubscribing:
		return "subscribing"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// TxHandler receives every batch of decoded transactions in arrival order.
type TxHandler interface {
	HandleTransactions(ctx context.Context, txs []types.TransactionRecord)
}

// TxHandlerFunc adapts a function to TxHandler.
type TxHandlerFunc func(ctx context.Context, txs []types.TransactionRecord)

func (f TxHandlerFunc) HandleTransactions(ctx context.Context, txs []types.TransactionRecord) {
	f(ctx, txs)
}

// Session owns one connection: it subscribes once and then streams
// notifications into the handler until the read fails or ctx is cancelled.
type Session struct {
	conn    Conn
	sub     Subscription
	handler TxHandler
	metrics *metrics.Metrics
	log     *logger.Logger

	state  atomic.Int32
	frames atomic.Int64

	mu             sync.RWMutex
	subscriptionID string
	lastFrameAt    time.Time
}

func NewSession(conn Conn, sub Subscription, handler TxHandler, m *metrics.Metrics, log *logger.Logger) *Session {
	if log == nil {
		log = logger.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Session{conn: conn, sub: sub, handler: handler, metrics: m, log: log}
}

// Run blocks until the connection fails or ctx is done. A cancelled context
// yields ctx.Err(); everything else comes back as *errors.FeedError.
func (s *Session) Run(ctx context.Context) error {
	defer s.state.Store(int32(StateClosed))

	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	s.state.Store(int32(StateSubscribing))
	req := s.sub.request()
	if err := s.conn.WriteJSON(req); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &apperrors.FeedError{Operation: "subscribe", Err: err}
	}
	s.log.Info("Subscribed to %s for %d routers", req.Params[0], len(s.sub.ToAddresses))
	s.state.Store(int32(StateStreaming))

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &apperrors.FeedError{Operation: "read", Err: err}
		}
		if err := s.handleFrame(ctx, data, req.ID); err != nil {
			return err
		}
	}
}

func (s *Session) handleFrame(ctx context.Context, data []byte, requestID uint64) error {
	s.frames.Add(1)
	s.mu.Lock()
	s.lastFrameAt = time.Now()
	s.mu.Unlock()
	s.metrics.FramesReceived.Inc()

	f := decodeFrame(data)
	switch f.kind {
	case frameConfirmation:
		s.mu.Lock()
		s.subscriptionID = f.subscriptionID
		s.mu.Unlock()
		s.log.Info("Subscription active: subscription_id=%s...", truncate(f.subscriptionID, 16))

	case frameDiscard:
		s.metrics.Discard(f.reason())
		if f.reason() == metrics.ReasonRPCError {
			s.log.Warn("Feed returned error: code=%d message=%s", f.rpcErr.Code, f.rpcErr.Message)
			// A rejected subscribe leaves nothing to stream; let the supervisor retry.
			if f.requestID == requestID && s.SubscriptionID() == "" {
				return &apperrors.FeedError{
					Operation: "subscribe",
					Err:       fmt.Errorf("rejected: %d %s", f.rpcErr.Code, f.rpcErr.Message),
				}
			}
			return nil
		}
		if s.log.Enabled(logger.DEBUG) {
			s.log.Debug("Skipping frame: %v", f.err)
		}

	case frameTransactions:
		for i := 0; i < f.badTxs; i++ {
			s.metrics.Discard(metrics.ReasonBadTx)
		}
		if len(f.txs) == 0 {
			return nil
		}
		s.metrics.TransactionsSeen.Add(float64(len(f.txs)))
		if s.log.Enabled(logger.DEBUG) {
			s.log.Debug("Received %d tx (first to=%s)", len(f.txs), truncate(f.txs[0].To, 10))
		}
		s.handler.HandleTransactions(ctx, f.txs)
	}
	return nil
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// SubscriptionID is empty until the feed confirms the subscription.
func (s *Session) SubscriptionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscriptionID
}

func (s *Session) LastFrameAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFrameAt
}

// Frames is the number of frames read on this connection.
func (s *Session) Frames() int64 {
	return s.frames.Load()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
