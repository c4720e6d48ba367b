package database

import (
	"context"
	"testing"
	"time"

	"onchain-trade-agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupTest creates an in-memory store for testing.
func setupTest(t *testing.T) *Store {
	t.Helper()
	db, err := NewDatabase("file::memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return NewStore(db)
}

func openTrade(t *testing.T, s *Store, marketID string, at time.Time) *models.Trade {
	t.Helper()
	trade := &models.Trade{
		MarketID:    marketID,
		MarketName:  marketID,
		Side:        models.SideYes,
		EntryPrice:  "2000.000000",
		EntryTxHash: "0xentry",
		EntryAt:     at,
		Status:      models.TradeStatusOpen,
	}
	require.NoError(t, s.InsertTrade(context.Background(), trade))
	require.NotZero(t, trade.ID)
	return trade
}

func TestStore_TradeLifecycle(t *testing.T) {
	// Arrange
	s := setupTest(t)
	ctx := context.Background()
	now := time.Now().UTC()
	trade := openTrade(t, s, "WETH-USDC", now.Add(-time.Hour))

	open, err := s.OpenTrades(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)

	// Act
	closed, err := s.CloseTrade(ctx, trade.ID, "1700.000000", "0xexit", now, -1500)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusClosed, closed.Status)
	require.NotNil(t, closed.ExitPrice)
	assert.Equal(t, "1700.000000", *closed.ExitPrice)
	require.NotNil(t, closed.PnlBps)
	assert.EqualValues(t, -1500, *closed.PnlBps)
	require.NotNil(t, closed.ExitAt)
	require.NotNil(t, closed.ExitTxHash)

	open, err = s.OpenTrades(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = s.CloseTrade(ctx, trade.ID, "1.000000", "0xagain", now, 0)
	assert.ErrorIs(t, err, ErrNoRowsUpdated)

	require.NoError(t, s.SetTradeCollectible(ctx, trade.ID, "42"))
	got, err := s.TradeByID(ctx, trade.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CollectibleID)
	assert.Equal(t, "42", *got.CollectibleID)
}

func TestStore_ClosedTradesSince(t *testing.T) {
	s := setupTest(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := openTrade(t, s, "DEGEN-USDC", now.Add(-72*time.Hour))
	_, err := s.CloseTrade(ctx, old.ID, "1.000000", "0x1", now.Add(-48*time.Hour), 100)
	require.NoError(t, err)

	recent := openTrade(t, s, "BRETT-USDC", now.Add(-3*time.Hour))
	_, err = s.CloseTrade(ctx, recent.ID, "1.000000", "0x2", now.Add(-time.Hour), 250)
	require.NoError(t, err)

	openTrade(t, s, "WETH-USDC", now.Add(-time.Minute))

	got, err := s.ClosedTradesSince(ctx, now.Add(-24*time.Hour), 50)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "BRETT-USDC", got[0].MarketID)

	all, err := s.ClosedTrades(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	latest, err := s.RecentTrades(ctx, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "WETH-USDC", latest[0].MarketID)
}

func TestStore_Mentions(t *testing.T) {
	s := setupTest(t)
	ctx := context.Background()

	inserted, err := s.InsertMention(ctx, &models.Mention{Platform: models.PlatformTwitter, ExternalID: "111", Author: "alice", Content: "gm"})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.InsertMention(ctx, &models.Mention{Platform: models.PlatformTwitter, ExternalID: "111", Author: "alice", Content: "gm"})
	require.NoError(t, err)
	assert.False(t, inserted, "duplicate external id must be a no-op")

	inserted, err = s.InsertMention(ctx, &models.Mention{Platform: models.PlatformFarcaster, ExternalID: "111", Author: "bob", Content: "hi"})
	require.NoError(t, err)
	assert.True(t, inserted, "same id on another platform is a different mention")

	pending, err := s.UnrepliedMentions(ctx, models.PlatformTwitter, 20)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.MarkMentionReplied(ctx, pending[0].ID, "999", time.Now()))
	assert.ErrorIs(t, s.MarkMentionReplied(ctx, pending[0].ID, "1000", time.Now()), ErrNoRowsUpdated)

	pending, err = s.UnrepliedMentions(ctx, models.PlatformTwitter, 20)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStore_LastPostAt(t *testing.T) {
	s := setupTest(t)
	ctx := context.Background()

	_, ok, err := s.LastPostAt(ctx, models.PostDailySummary)
	require.NoError(t, err)
	assert.False(t, ok)

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	second := first.Add(2 * time.Hour)
	for i, at := range []time.Time{first, second} {
		post := &models.SocialPost{Platform: models.PlatformTwitter, ExternalID: string(rune('a' + i)), Type: models.PostDailySummary, Content: "summary"}
		post.CreatedAt = at
		require.NoError(t, s.InsertSocialPost(ctx, post))
	}
	require.NoError(t, s.InsertSocialPost(ctx, &models.SocialPost{Platform: models.PlatformTwitter, ExternalID: "z", Type: models.PostAlert}))

	at, ok, err := s.LastPostAt(ctx, models.PostDailySummary)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, second.Equal(at), "got %s", at)
}

func TestStore_Snapshots(t *testing.T) {
	s := setupTest(t)
	ctx := context.Background()

	require.NoError(t, s.InsertSnapshot(ctx, &models.PortfolioSnapshot{TotalValueUSD: "100.00", TotalValueEth: "0.05", OpenPositions: 1, DailyPnlBps: 20}))
	snaps, err := s.RecentSnapshots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 1, snaps[0].OpenPositions)
}
