package trader

import (
	"context"

	"onchain-trade-agent/internal/ai"
	"onchain-trade-agent/internal/collectible"
	"onchain-trade-agent/internal/market"
	"onchain-trade-agent/internal/models"
	"onchain-trade-agent/internal/risk"
	"onchain-trade-agent/internal/trades"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// minSellDivisor keeps the sell fraction finite for a zero max position size.
const minSellDivisor = 0.0001

// execute runs the plan in order and returns the open trades by market after execution.
// The index is updated as trades open and close, so a market is never bought twice in one
// cycle and a sell always sees the trade it closes.
func (e *Engine) execute(ctx context.Context, plan *risk.Plan, commentary string, state *cycleState, p *portfolio) map[string]*models.Trade {
	open := make(map[string]*models.Trade, len(state.openTrades))
	for i := range state.openTrades {
		t := &state.openTrades[i]
		open[t.MarketID] = t
	}
	markets := market.Index(state.markets)
	available := p.baseBalance

	for _, d := range plan.Decisions() {
		if m := e.deps.Metrics; m != nil {
			m.Decisions.WithLabelValues(string(d.Action)).Inc()
			if plan.Triggered(d.MarketID) {
				m.RiskOverrides.Inc()
			}
		}

		mk, ok := markets[d.MarketID]
		if !ok || d.Action == ai.ActionHold {
			continue
		}
		log := e.logger.With(
			zap.String("market", d.MarketID),
			zap.String("action", string(d.Action)),
			zap.Float64("size_pct", d.SizePct),
			zap.String("reason", d.Reason),
		)
		if !mk.Price.IsPositive() {
			log.Warn("Skipping decision, market has no usable price", zap.String("price", mk.Price.String()))
			continue
		}

		switch d.Action {
		case ai.ActionBuy:
			if _, exists := open[d.MarketID]; exists {
				log.Info("Skipping BUY, already open position")
				continue
			}
			notional := decimal.Min(
				p.totalUSD.Mul(decimal.NewFromFloat(d.SizePct)),
				p.totalUSD.Mul(decimal.NewFromFloat(e.cfg.Trading.MaxPositionSize)),
				available,
			)
			if notional.LessThan(decimal.NewFromFloat(e.cfg.Trading.MinTradeUSD)) {
				log.Info("Skipping BUY, notional too small", zap.String("notional_usd", notional.StringFixed(2)))
				continue
			}
			trade, ok := e.buy(ctx, log, mk, notional)
			if !ok {
				continue
			}
			available = available.Sub(notional)
			open[d.MarketID] = trade

		case ai.ActionSell:
			trade, exists := open[d.MarketID]
			if !exists {
				log.Info("Skipping SELL, no open position")
				continue
			}
			fraction := decimal.Min(
				decimal.NewFromInt(1),
				decimal.NewFromFloat(d.SizePct).Div(decimal.NewFromFloat(max(e.cfg.Trading.MaxPositionSize, minSellDivisor))),
			)
			if e.sell(ctx, log, mk, trade, fraction, commentary) {
				delete(open, d.MarketID)
			}
		}
	}
	return open
}

// buy executes a BUY, records the trade and announces it. ok is false when nothing opened.
func (e *Engine) buy(ctx context.Context, log *zap.Logger, mk market.Market, notional decimal.Decimal) (*models.Trade, bool) {
	res, err := e.deps.Executor.Buy(ctx, mk, notional)
	e.recordExecution(string(ai.ActionBuy), err)
	if err != nil {
		log.Error("Buy failed", zap.Error(err))
		return nil, false
	}

	txHash := res.TxHash.Hex()
	trade, err := e.deps.Trades.Open(ctx, mk, models.SideYes, mk.Price, txHash)
	if err != nil {
		// The swap settled; the position exists on-chain even without a row.
		log.Error("Failed to record opened trade", zap.String("tx", txHash), zap.Error(err))
		return nil, false
	}

	content := e.deps.Templates.TradeEntry(mk.Name, string(ai.ActionBuy), mk.Price, notional, txHash)
	if err := e.postToAll(ctx, content, models.PostTradeEntry, &trade.ID); err != nil {
		log.Error("Failed to announce trade entry", zap.Uint("trade_id", trade.ID), zap.Error(err))
	}
	return trade, true
}

// sell executes a SELL, closes the trade, announces it and mints a collectible when the
// contract deems the trade notable. It reports whether the trade was closed. Nothing is
// settled unless the close can be recorded.
func (e *Engine) sell(ctx context.Context, log *zap.Logger, mk market.Market, trade *models.Trade, fraction decimal.Decimal, commentary string) bool {
	pnlBps, err := trades.RealizedPnlBps(trade.EntryPrice, mk.Price)
	if err != nil {
		log.Error("Cannot compute realized P&L, not selling", zap.Uint("trade_id", trade.ID), zap.Error(err))
		return false
	}

	res, err := e.deps.Executor.Sell(ctx, mk, fraction)
	e.recordExecution(string(ai.ActionSell), err)
	if err != nil {
		log.Error("Sell failed", zap.Uint("trade_id", trade.ID), zap.Error(err))
		return false
	}

	txHash := res.TxHash.Hex()
	closed, err := e.deps.Trades.Close(ctx, trade.ID, mk.Price, txHash, pnlBps)
	if err != nil {
		log.Error("Failed to close trade", zap.Uint("trade_id", trade.ID), zap.String("tx", txHash), zap.Error(err))
		return false
	}

	content := e.deps.Templates.TradeExit(mk.Name, mk.Price, pnlBps, txHash)
	if err := e.postToAll(ctx, content, models.PostTradeExit, &closed.ID); err != nil {
		log.Error("Failed to announce trade exit", zap.Uint("trade_id", closed.ID), zap.Error(err))
	}

	switch {
	case e.deps.Collectibles == nil:
	case e.cfg.Trading.DryRun:
		log.Debug("Dry run, collectible minting skipped", zap.Uint("trade_id", closed.ID))
	default:
		e.maybeMint(ctx, log, mk, closed, pnlBps, commentary)
	}
	return true
}

func (e *Engine) maybeMint(ctx context.Context, log *zap.Logger, mk market.Market, trade *models.Trade, pnlBps int64, commentary string) {
	notable, err := e.deps.Collectibles.IsNotable(ctx, pnlBps)
	if err != nil {
		log.Error("Collectible notability check failed", zap.Uint("trade_id", trade.ID), zap.Error(err))
		return
	}
	if !notable {
		log.Debug("Trade not notable, no collectible", zap.Int64("pnl_bps", pnlBps))
		return
	}

	entry, err := decimal.NewFromString(trade.EntryPrice)
	if err != nil {
		log.Error("Stored entry price unreadable, no collectible", zap.Uint("trade_id", trade.ID), zap.Error(err))
		return
	}
	minted, err := e.deps.Collectibles.Mint(ctx, collectible.MintRequest{
		Market:     mk.Name,
		Position:   collectible.PositionLong,
		EntryPrice: entry,
		ExitPrice:  mk.Price,
		PnlBps:     pnlBps,
		ClosedAt:   e.now(),
		Commentary: commentary,
	})
	if err != nil {
		log.Error("Collectible mint failed", zap.Uint("trade_id", trade.ID), zap.Error(err))
		return
	}
	if minted.TokenID == "" {
		log.Warn("Collectible minted without token id", zap.String("tx", minted.TxHash.Hex()))
		return
	}

	if err := e.deps.Trades.AttachCollectible(ctx, trade.ID, minted.TokenID); err != nil {
		log.Error("Failed to attach collectible", zap.Uint("trade_id", trade.ID), zap.Error(err))
	}
	content := e.deps.Templates.CollectibleMint(mk.Name, pnlBps, minted.TokenID, minted.TxHash.Hex())
	if err := e.postToAll(ctx, content, models.PostNFTMint, &trade.ID); err != nil {
		log.Error("Failed to announce collectible", zap.Uint("trade_id", trade.ID), zap.Error(err))
	}
}

func (e *Engine) recordExecution(side string, err error) {
	if m := e.deps.Metrics; m != nil {
		m.RecordExecution(side, err)
	}
}
