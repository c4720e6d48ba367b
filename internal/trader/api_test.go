package trader

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"onchain-trade-agent/internal/models"
	"onchain-trade-agent/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAPIServer_Status(t *testing.T) {
	// Arrange
	cfg := testConfig()
	cfg.Trading.DryRun = true
	h := setupTest(t, cfg, false)
	h.engine.last = CycleStatus{ID: "cycle-1", Outcome: observability.OutcomeOK, PortfolioValueUSD: "2785.00"}
	s := NewAPIServer(h.engine, zap.NewNop())

	// Act
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		UUID      string      `json:"uuid"`
		DryRun    bool        `json:"dry_run"`
		Channels  []string    `json:"channels"`
		LastCycle CycleStatus `json:"last_cycle"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, h.engine.UUID, body.UUID)
	assert.True(t, body.DryRun)
	assert.Equal(t, []string{models.PlatformTwitter}, body.Channels)
	assert.Equal(t, "cycle-1", body.LastCycle.ID)
	assert.Equal(t, "2785.00", body.LastCycle.PortfolioValueUSD)
}

func TestAPIServer_HealthAndMetrics(t *testing.T) {
	h := setupTest(t, testConfig(), false)
	h.metrics.OpenPositions.Set(2)
	s := NewAPIServer(h.engine, zap.NewNop())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "onchain_trade_agent_portfolio_open_positions 2")
}
