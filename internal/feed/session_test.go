package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/SIMPLYBOYS/mempool_scanner/internal/errors"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/metrics"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/types"
)

// fakeConn replays queued frames and returns io.EOF once the queue is closed.
type fakeConn struct {
	frames   chan []byte
	closed   chan struct{}
	once     sync.Once
	writeErr error

	mu      sync.Mutex
	written [][]byte
}

func newFakeConn(frames ...string) *fakeConn {
	c := &fakeConn{frames: make(chan []byte, len(frames)+1), closed: make(chan struct{})}
	for _, f := range frames {
		c.frames <- []byte(f)
	}
	return c
}

func (c *fakeConn) end() *fakeConn {
	close(c.frames)
	return c
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.written = append(c.written, data)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case <-c.closed:
		return 0, nil, errors.New("use of closed network connection")
	case f, ok := <-c.frames:
		if !ok {
			return 0, nil, io.EOF
		}
		return websocket.TextMessage, f, nil
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

type recordingHandler struct {
	mu      sync.Mutex
	batches [][]types.TransactionRecord
	notify  chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{notify: make(chan struct{}, 16)}
}

func (h *recordingHandler) HandleTransactions(ctx context.Context, txs []types.TransactionRecord) {
	h.mu.Lock()
	h.batches = append(h.batches, txs)
	h.mu.Unlock()
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

func (h *recordingHandler) Batches() [][]types.TransactionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]types.TransactionRecord(nil), h.batches...)
}

const (
	confirmationFrame = `{"jsonrpc":"2.0","id":1,"result":"0x9ce59a13059e417087c02d3236a0b1cc"}`
	singleTxFrame     = `{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0x9ce59a13059e417087c02d3236a0b1cc","result":{"hash":"0x01","from":"0xaa","to":"0x7a250d5630b4cf539739df2c5dacb4c659f2488d","input":"0x7ff36ab5","value":"0xde0b6b3a7640000"}}}`
	listTxFrame       = `{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0x9ce59a13059e417087c02d3236a0b1cc","result":[{"hash":"0x02"},{"hash":"0x03"},{"hash":"0x04"}]}}`
)

func testSubscription() Subscription {
	return Subscription{ToAddresses: []string{"0x7a250d5630b4cf539739df2c5dacb4c659f2488d"}}
}

func TestSessionSubscribesOnceAndStoresID(t *testing.T) {
	conn := newFakeConn(confirmationFrame).end()
	handler := newRecordingHandler()
	session := NewSession(conn, testSubscription(), handler, metrics.New(nil), nil)

	err := session.Run(context.Background())

	var feedErr *apperrors.FeedError
	require.ErrorAs(t, err, &feedErr)
	assert.Equal(t, "read", feedErr.Operation)
	assert.ErrorIs(t, err, io.EOF)

	writes := conn.writes()
	require.Len(t, writes, 1)
	assert.JSONEq(t, `{"id":1,"jsonrpc":"2.0","method":"eth_subscribe","params":["alchemy_pendingTransactions",{"toAddress":["0x7a250d5630b4cf539739df2c5dacb4c659f2488d"],"hashesOnly":false}]}`, string(writes[0]))

	assert.Equal(t, "0x9ce59a13059e417087c02d3236a0b1cc", session.SubscriptionID())
	assert.Empty(t, handler.Batches())
	assert.Equal(t, StateClosed, session.State())
}

func TestSessionSkipsMalformedFrame(t *testing.T) {
	conn := newFakeConn("not json at all", singleTxFrame).end()
	handler := newRecordingHandler()
	m := metrics.New(nil)
	session := NewSession(conn, testSubscription(), handler, m, nil)

	_ = session.Run(context.Background())

	batches := handler.Batches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	assert.Equal(t, "0x01", batches[0][0].Hash)
	assert.Equal(t, "0xde0b6b3a7640000", batches[0][0].Value)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FramesDiscarded.WithLabelValues(metrics.ReasonInvalidJSON)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.FramesReceived))
	assert.Equal(t, int64(2), session.Frames())
	assert.False(t, session.LastFrameAt().IsZero())
}

func TestSessionHandlesListPayload(t *testing.T) {
	conn := newFakeConn(confirmationFrame, listTxFrame, singleTxFrame).end()
	handler := newRecordingHandler()
	m := metrics.New(nil)
	session := NewSession(conn, testSubscription(), handler, m, nil)

	_ = session.Run(context.Background())

	batches := handler.Batches()
	require.Len(t, batches, 2)
	require.Len(t, batches[0], 3)
	assert.Equal(t, "0x02", batches[0][0].Hash)
	assert.Equal(t, "0x04", batches[0][2].Hash)
	assert.Equal(t, "0x01", batches[1][0].Hash)
	assert.Equal(t, float64(4), testutil.ToFloat64(m.TransactionsSeen))
}

func TestSessionCountsBadTransactions(t *testing.T) {
	conn := newFakeConn(`{"params":{"result":[7,{"hash":"0x2"}]}}`).end()
	handler := newRecordingHandler()
	m := metrics.New(nil)
	session := NewSession(conn, testSubscription(), handler, m, nil)

	_ = session.Run(context.Background())

	batches := handler.Batches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	assert.Equal(t, "0x2", batches[0][0].Hash)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FramesDiscarded.WithLabelValues(metrics.ReasonBadTx)))
}

func TestSessionIgnoresUnrelatedRPCError(t *testing.T) {
	conn := newFakeConn(confirmationFrame, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"busy"}}`, singleTxFrame).end()
	handler := newRecordingHandler()
	m := metrics.New(nil)
	session := NewSession(conn, testSubscription(), handler, m, nil)

	err := session.Run(context.Background())

	assert.ErrorIs(t, err, io.EOF)
	assert.Len(t, handler.Batches(), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FramesDiscarded.WithLabelValues(metrics.ReasonRPCError)))
}

func TestSessionRejectedSubscription(t *testing.T) {
	conn := newFakeConn(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`, singleTxFrame).end()
	handler := newRecordingHandler()
	session := NewSession(conn, testSubscription(), handler, metrics.New(nil), nil)

	err := session.Run(context.Background())

	var feedErr *apperrors.FeedError
	require.ErrorAs(t, err, &feedErr)
	assert.Equal(t, "subscribe", feedErr.Operation)
	assert.Contains(t, err.Error(), "invalid params")
	assert.Empty(t, handler.Batches())
}

func TestSessionSubscribeWriteError(t *testing.T) {
	conn := newFakeConn().end()
	conn.writeErr = errors.New("broken pipe")
	session := NewSession(conn, testSubscription(), newRecordingHandler(), metrics.New(nil), nil)

	err := session.Run(context.Background())

	var feedErr *apperrors.FeedError
	require.ErrorAs(t, err, &feedErr)
	assert.Equal(t, "subscribe", feedErr.Operation)
	assert.Equal(t, "feed error during subscribe: broken pipe", err.Error())
}

func TestSessionCancelClosesConnection(t *testing.T) {
	conn := newFakeConn(confirmationFrame)
	session := NewSession(conn, testSubscription(), newRecordingHandler(), metrics.New(nil), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	require.Eventually(t, func() bool { return session.SubscriptionID() != "" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateStreaming, session.State())
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("session did not stop after cancel")
	}
}
