package api

import (
	"net/http"
	"time"

	"github.com/SIMPLYBOYS/mempool_scanner/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter initializes the Gin router and sets up the routes
func SetupRouter(h *Handler, wsManager *websocket.WebSocketManager, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.Default()
	r.Use(ErrorMiddleware())

	r.GET("/health", h.Health)

	r.GET("/swaps/recent", h.GetRecentSwaps)
	r.GET("/swaps/stats", h.GetSwapStats)

	r.GET("/ethereum/price", h.GetEthereumPrice)

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	if wsManager != nil {
		r.GET("/ws", func(c *gin.Context) {
			wsManager.HandleWebSocket(c.Writer, c.Request)
		})
	}

	return r
}

// NewServer wraps the router in an http.Server with conservative timeouts.
// WriteTimeout stays unset because /ws connections are long-lived.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
