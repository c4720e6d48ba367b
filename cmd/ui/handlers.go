package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"onchain-trade-agent/internal/database"
	"onchain-trade-agent/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxLimit = 500

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log   *zap.Logger
	store *database.Store
	now   func() time.Time
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, store *database.Store) *APIHandler {
	return &APIHandler{log: log, store: store, now: time.Now}
}

// Register mounts the routes on r.
func (h *APIHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.HealthHandler)

	api := r.Group("/api")
	api.GET("/status", h.StatusHandler)
	api.GET("/trades", h.TradesHandler)
	api.GET("/trades/open", h.OpenTradesHandler)
	api.GET("/statistics", h.StatisticsHandler)
	api.GET("/snapshots", h.SnapshotsHandler)
}

// HealthHandler reports whether the database answers.
func (h *APIHandler) HealthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := database.Ping(ctx, h.store.DB()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// StatusHandler returns the latest portfolio snapshot.
func (h *APIHandler) StatusHandler(c *gin.Context) {
	snaps, err := h.store.RecentSnapshots(c.Request.Context(), 1)
	if err != nil {
		h.fail(c, "Failed to get latest snapshot", err)
		return
	}
	if len(snaps) == 0 {
		c.JSON(http.StatusOK, gin.H{"snapshot": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshot": snaps[0]})
}

// TradesHandler returns the most recent trades.
func (h *APIHandler) TradesHandler(c *gin.Context) {
	trades, err := h.store.RecentTrades(c.Request.Context(), limitQuery(c, 100))
	if err != nil {
		h.fail(c, "Failed to get trades", err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

// OpenTradesHandler returns the open positions.
func (h *APIHandler) OpenTradesHandler(c *gin.Context) {
	trades, err := h.store.OpenTrades(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to get open trades", err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

// SnapshotsHandler returns recent portfolio snapshots.
func (h *APIHandler) SnapshotsHandler(c *gin.Context) {
	snaps, err := h.store.RecentSnapshots(c.Request.Context(), limitQuery(c, 96))
	if err != nil {
		h.fail(c, "Failed to get snapshots", err)
		return
	}
	c.JSON(http.StatusOK, snaps)
}

// StatsDetail holds calculated statistics for a given period.
type StatsDetail struct {
	TotalTrades      int64   `json:"total_trades"`
	ProfitableTrades int64   `json:"profitable_trades"`
	WinRate          float64 `json:"win_rate"`
	TotalPnlBps      int64   `json:"total_pnl_bps"`
}

func (s *StatsDetail) add(t models.Trade) {
	s.TotalTrades++
	if *t.PnlBps > 0 {
		s.ProfitableTrades++
	}
	s.TotalPnlBps += *t.PnlBps
}

func (s *StatsDetail) finish() {
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.ProfitableTrades) / float64(s.TotalTrades)
	}
}

// StatisticsResponse is the structure for the /api/statistics endpoint.
type StatisticsResponse struct {
	Since24h StatsDetail `json:"since_24h"`
	AllTime  StatsDetail `json:"all_time"`
}

// StatisticsHandler calculates win rate and realized P&L over closed trades.
func (h *APIHandler) StatisticsHandler(c *gin.Context) {
	closed, err := h.store.ClosedTrades(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to calculate statistics", err)
		return
	}

	since24h := h.now().Add(-24 * time.Hour)
	var resp StatisticsResponse
	for _, t := range closed {
		if t.PnlBps == nil {
			continue
		}
		resp.AllTime.add(t)
		if t.ExitAt != nil && t.ExitAt.After(since24h) {
			resp.Since24h.add(t)
		}
	}
	resp.AllTime.finish()
	resp.Since24h.finish()

	c.JSON(http.StatusOK, resp)
}

func (h *APIHandler) fail(c *gin.Context, msg string, err error) {
	h.log.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func limitQuery(c *gin.Context, def int) int {
	if val := c.Query("limit"); val != "" {
		if i, err := strconv.Atoi(val); err == nil && i > 0 {
			return min(i, maxLimit)
		}
	}
	return def
}
