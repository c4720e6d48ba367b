package trades

import (
	"context"
	"testing"
	"time"

	"onchain-trade-agent/internal/database"
	"onchain-trade-agent/internal/market"
	"onchain-trade-agent/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupTest creates a manager backed by an in-memory database.
func setupTest(t *testing.T) (*Manager, *database.Store) {
	t.Helper()
	db, err := database.NewDatabase("file::memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	store := database.NewStore(db)
	m := NewManager(store, zap.NewNop())
	fixed := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }
	return m, store
}

var weth = market.Market{ID: "WETH-USDC", Name: "WETH / USDC"}

func TestManager_OpenClose(t *testing.T) {
	// Arrange
	m, store := setupTest(t)
	ctx := context.Background()

	// Act
	trade, err := m.Open(ctx, weth, models.SideYes, decimal.RequireFromString("2000.1234567"), "0xentry")
	require.NoError(t, err)

	// Assert
	assert.Equal(t, models.TradeStatusOpen, trade.Status)
	assert.Equal(t, "2000.123457", trade.EntryPrice)
	assert.Equal(t, "WETH / USDC", trade.MarketName)
	assert.Nil(t, trade.ExitPrice)
	assert.Nil(t, trade.PnlBps)

	closed, err := m.Close(ctx, trade.ID, decimal.NewFromInt(1700), "0xexit", -1500)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusClosed, closed.Status)
	require.NotNil(t, closed.ExitPrice)
	assert.Equal(t, "1700.000000", *closed.ExitPrice)
	require.NotNil(t, closed.ExitTxHash)
	require.NotNil(t, closed.ExitAt)
	require.NotNil(t, closed.PnlBps)
	assert.EqualValues(t, -1500, *closed.PnlBps)

	open, err := store.OpenTrades(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestManager_CloseTwiceIsRejected(t *testing.T) {
	m, _ := setupTest(t)
	ctx := context.Background()
	trade, err := m.Open(ctx, weth, models.SideYes, decimal.NewFromInt(1), "0x1")
	require.NoError(t, err)
	_, err = m.Close(ctx, trade.ID, decimal.NewFromInt(2), "0x2", 10000)
	require.NoError(t, err)

	_, err = m.Close(ctx, trade.ID, decimal.NewFromInt(3), "0x3", 20000)
	assert.ErrorIs(t, err, ErrNotOpen)

	_, err = m.Close(ctx, 9999, decimal.NewFromInt(3), "0x3", 0)
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestManager_AttachCollectible(t *testing.T) {
	m, store := setupTest(t)
	ctx := context.Background()
	trade, err := m.Open(ctx, weth, models.SideYes, decimal.NewFromInt(1), "0x1")
	require.NoError(t, err)
	_, err = m.Close(ctx, trade.ID, decimal.NewFromInt(2), "0x2", 10000)
	require.NoError(t, err)

	require.NoError(t, m.AttachCollectible(ctx, trade.ID, "7"))
	require.NoError(t, m.AttachCollectible(ctx, trade.ID, "7"))

	got, err := store.TradeByID(ctx, trade.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CollectibleID)
	assert.Equal(t, "7", *got.CollectibleID)
	assert.Equal(t, models.TradeStatusClosed, got.Status)
}

func TestRealizedPnlBps(t *testing.T) {
	tests := []struct {
		entry string
		exit  string
		want  int64
	}{
		{"2000.000000", "1700", -1500},
		{"2000.000000", "2600", 3000},
		{"3.000000", "3.0001", 0},
		{"3.000000", "3.0002", 1},
		{"100", "99.995", -1},
	}
	for _, tt := range tests {
		got, err := RealizedPnlBps(tt.entry, decimal.RequireFromString(tt.exit))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s -> %s", tt.entry, tt.exit)
	}

	_, err := RealizedPnlBps("0", decimal.NewFromInt(1))
	assert.Error(t, err)
}
