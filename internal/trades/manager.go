package trades

import (
	"context"
	"errors"
	"fmt"
	"time"

	"onchain-trade-agent/internal/database"
	"onchain-trade-agent/internal/market"
	"onchain-trade-agent/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceDecimals is the fixed precision of stored entry and exit prices.
const PriceDecimals = 6

// ErrNotOpen is returned when closing a trade that is not OPEN.
var ErrNotOpen = errors.New("trade is not open")

// Store is the persistence the lifecycle needs.
type Store interface {
	InsertTrade(ctx context.Context, trade *models.Trade) error
	CloseTrade(ctx context.Context, id uint, exitPrice, txHash string, exitAt time.Time, pnlBps int64) (*models.Trade, error)
	SetTradeCollectible(ctx context.Context, id uint, collectibleID string) error
}

var _ Store = (*database.Store)(nil)

// Manager moves trades through OPEN -> CLOSED.
type Manager struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewManager creates a lifecycle manager.
func NewManager(store Store, logger *zap.Logger) *Manager {
	return &Manager{store: store, logger: logger.Named("trades"), now: time.Now}
}

// Open records a new OPEN trade. Callers make sure no other trade is open on the market.
func (m *Manager) Open(ctx context.Context, mk market.Market, side string, entryPrice decimal.Decimal, txHash string) (*models.Trade, error) {
	trade := &models.Trade{
		MarketID:    mk.ID,
		MarketName:  mk.Name,
		Side:        side,
		EntryPrice:  FormatPrice(entryPrice),
		EntryTxHash: txHash,
		EntryAt:     m.now().UTC(),
		Status:      models.TradeStatusOpen,
	}
	if err := m.store.InsertTrade(ctx, trade); err != nil {
		return nil, err
	}
	m.logger.Info("Trade opened",
		zap.Uint("trade_id", trade.ID),
		zap.String("market", trade.MarketID),
		zap.String("entry_price", trade.EntryPrice),
		zap.String("tx", txHash),
	)
	return trade, nil
}

// Close moves an OPEN trade to CLOSED with its exit and realized P&L.
func (m *Manager) Close(ctx context.Context, tradeID uint, exitPrice decimal.Decimal, txHash string, pnlBps int64) (*models.Trade, error) {
	trade, err := m.store.CloseTrade(ctx, tradeID, FormatPrice(exitPrice), txHash, m.now().UTC(), pnlBps)
	if errors.Is(err, database.ErrNoRowsUpdated) {
		return nil, fmt.Errorf("close trade %d: %w", tradeID, ErrNotOpen)
	}
	if err != nil {
		return nil, err
	}
	m.logger.Info("Trade closed",
		zap.Uint("trade_id", trade.ID),
		zap.String("market", trade.MarketID),
		zap.String("exit_price", FormatPrice(exitPrice)),
		zap.Int64("pnl_bps", pnlBps),
		zap.String("tx", txHash),
	)
	return trade, nil
}

// AttachCollectible records the collectible minted for a trade. Repeating it with the same
// id leaves the trade unchanged.
func (m *Manager) AttachCollectible(ctx context.Context, tradeID uint, collectibleID string) error {
	if err := m.store.SetTradeCollectible(ctx, tradeID, collectibleID); err != nil {
		return fmt.Errorf("attach collectible to trade %d: %w", tradeID, err)
	}
	return nil
}

// FormatPrice renders a price with the stored fixed precision.
func FormatPrice(p decimal.Decimal) string {
	return p.StringFixed(PriceDecimals)
}

// RealizedPnlBps rounds (exit - entry) / entry * 10000 to the nearest basis point.
func RealizedPnlBps(entryPrice string, exit decimal.Decimal) (int64, error) {
	entry, err := decimal.NewFromString(entryPrice)
	if err != nil {
		return 0, fmt.Errorf("invalid entry price %q: %w", entryPrice, err)
	}
	if !entry.IsPositive() {
		return 0, fmt.Errorf("invalid entry price %q", entryPrice)
	}
	return exit.Sub(entry).Mul(decimal.NewFromInt(10000)).Div(entry).Round(0).IntPart(), nil
}
