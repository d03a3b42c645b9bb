package api

import (
	"net/http"
	"strconv"

	"github.com/SIMPLYBOYS/mempool_scanner/internal/db"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/errors"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/ethereum"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/feed"
	"github.com/gin-gonic/gin"
)

// StatusProvider reports the feed connection state.
type StatusProvider interface {
	Status() feed.Status
}

type Handler struct {
	status StatusProvider
	store  db.SwapStore
	price  ethereum.PriceSource
}

// NewHandler builds the API handlers. store may be nil when the journal is
// disabled.
func NewHandler(status StatusProvider, store db.SwapStore, price ethereum.PriceSource) *Handler {
	return &Handler{status: status, store: store, price: price}
}

// Health reports 200 while a feed session is live and 503 while reconnecting.
func (h *Handler) Health(c *gin.Context) {
	st := h.status.Status()
	code := http.StatusOK
	state := "ok"
	if !st.Connected {
		code = http.StatusServiceUnavailable
		state = "reconnecting"
	}
	c.JSON(code, gin.H{"status": state, "feed": st})
}

// GetRecentSwaps handles GET /swaps/recent?limit=N
func (h *Handler) GetRecentSwaps(c *gin.Context) {
	if h.store == nil {
		c.Error(&errors.APIError{StatusCode: http.StatusServiceUnavailable, Message: "Swap journal is disabled"})
		return
	}

	limit := db.DefaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.Error(&errors.APIError{StatusCode: http.StatusBadRequest, Message: "limit must be a positive integer", Err: err})
			return
		}
		limit = n
	}

	swaps, err := h.store.RecentSwaps(c.Request.Context(), limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"swaps": swaps, "count": len(swaps)})
}

// GetSwapStats handles GET /swaps/stats
func (h *Handler) GetSwapStats(c *gin.Context) {
	if h.store == nil {
		c.Error(&errors.APIError{StatusCode: http.StatusServiceUnavailable, Message: "Swap journal is disabled"})
		return
	}

	stats, err := h.store.SwapStats(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetEthereumPrice handles GET /ethereum/price
func (h *Handler) GetEthereumPrice(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"eth_usd": h.price.ETHUSD()})
}
