package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/SIMPLYBOYS/mempool_scanner/internal/errors"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/metrics"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/types"
	"github.com/SIMPLYBOYS/mempool_scanner/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	clientBuffer   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard is served from anywhere
	},
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// WebSocketManager fans classified swaps out to dashboard clients. Broadcasts
// never block the caller: when the buffer is full the message is dropped.
type WebSocketManager struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	mutex      sync.Mutex
	metrics    *metrics.Metrics
	log        *logger.Logger
}

func NewWebSocketManager(bufferSize int, m *metrics.Metrics) *WebSocketManager {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &WebSocketManager{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, bufferSize),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		metrics:    m,
		log:        logger.Default().With("component", "websocket"),
	}
}

// Run owns the client set until ctx is cancelled, then disconnects everyone.
func (manager *WebSocketManager) Run(ctx context.Context) {
	defer close(manager.done)
	for {
		select {
		case <-ctx.Done():
			manager.mutex.Lock()
			for c := range manager.clients {
				delete(manager.clients, c)
				close(c.send)
			}
			manager.mutex.Unlock()
			return
		case c := <-manager.register:
			manager.mutex.Lock()
			manager.clients[c] = true
			manager.mutex.Unlock()
		case c := <-manager.unregister:
			manager.mutex.Lock()
			if _, ok := manager.clients[c]; ok {
				delete(manager.clients, c)
				close(c.send)
			}
			manager.mutex.Unlock()
		case message := <-manager.broadcast:
			manager.mutex.Lock()
			for c := range manager.clients {
				select {
				case c.send <- message:
				default:
					manager.log.Warn("Dropping slow dashboard client %s", c.conn.RemoteAddr())
					delete(manager.clients, c)
					close(c.send)
				}
			}
			manager.mutex.Unlock()
		}
	}
}

func (manager *WebSocketManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		manager.log.Error("Failed to upgrade connection: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	select {
	case manager.register <- c:
	case <-manager.done:
		conn.Close()
		return
	}

	go manager.readPump(c)
	go manager.writePump(c)
}

// ClientCount is the number of connected dashboard clients.
func (manager *WebSocketManager) ClientCount() int {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	return len(manager.clients)
}

func (manager *WebSocketManager) readPump(c *client) {
	defer func() {
		select {
		case manager.unregister <- c:
		case <-manager.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				manager.log.Warn("Unexpected close error: %v", err)
			}
			break
		}
	}
}

// writePump is the only writer on the connection.
func (manager *WebSocketManager) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				manager.log.Debug("Error writing to dashboard client: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// BroadcastSwap queues swap for every connected client.
func (manager *WebSocketManager) BroadcastSwap(swap *types.ClassifiedSwap) error {
	data, err := json.Marshal(map[string]interface{}{
		"type": "swap",
		"swap": swap,
	})
	if err != nil {
		return &errors.WebSocketError{Operation: "marshal swap", Err: err}
	}

	select {
	case manager.broadcast <- data:
	default:
		manager.metrics.SinkDropped.WithLabelValues("websocket").Inc()
	}
	return nil
}

// SubmitSwap lets the manager sit in the swap pipeline.
func (manager *WebSocketManager) SubmitSwap(swap *types.ClassifiedSwap) {
	if err := manager.BroadcastSwap(swap); err != nil {
		manager.log.Error("%v", err)
	}
}
