package trader

import (
	"context"
	"fmt"
	"time"

	"onchain-trade-agent/internal/market"
	"onchain-trade-agent/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type portfolio struct {
	baseBalance decimal.Decimal
	holdingsUSD decimal.Decimal
	ethUSD      decimal.Decimal
	totalUSD    decimal.Decimal
	// wethPrice is zero when no WETH market is configured.
	wethPrice decimal.Decimal
}

// valuePortfolio is base balance + each held token at market price + gas balance at the
// WETH price. Balances are read concurrently.
func (e *Engine) valuePortfolio(ctx context.Context, markets []market.Market, ethBalance decimal.Decimal) (*portfolio, error) {
	base := e.deps.Markets.BaseToken()
	held := make([]decimal.Decimal, len(markets))
	var baseBalance decimal.Decimal

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bal, err := e.tokenBalance(gctx, base)
		if err != nil {
			return err
		}
		baseBalance = bal
		return nil
	})
	for i, m := range markets {
		g.Go(func() error {
			bal, err := e.tokenBalance(gctx, m.QuoteToken)
			if err != nil {
				return err
			}
			held[i] = bal
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p := &portfolio{baseBalance: baseBalance}
	for i, m := range markets {
		p.holdingsUSD = p.holdingsUSD.Add(held[i].Mul(m.Price))
	}

	// A missing WETH market values the gas balance at zero.
	if weth, ok := market.FindBySymbol(markets, wethSymbol); ok {
		p.wethPrice = weth.Price
		p.ethUSD = ethBalance.Mul(weth.Price)
	} else {
		e.logger.Debug("No WETH market, gas balance valued at zero")
	}

	p.totalUSD = p.baseBalance.Add(p.holdingsUSD).Add(p.ethUSD)
	e.logger.Info("Portfolio valued",
		zap.String("total_usd", p.totalUSD.StringFixed(2)),
		zap.String("available_usd", p.baseBalance.StringFixed(2)),
		zap.String("holdings_usd", p.holdingsUSD.StringFixed(2)),
	)
	return p, nil
}

func (e *Engine) tokenBalance(ctx context.Context, token market.Token) (decimal.Decimal, error) {
	units, err := e.deps.Wallet.TokenBalance(ctx, common.HexToAddress(token.Address))
	if err != nil {
		return decimal.Zero, fmt.Errorf("read %s balance: %w", token.Symbol, err)
	}
	return token.FromUnits(decimal.NewFromBigInt(units, 0)), nil
}

// dailyPnlBps sums realized P&L over trades closed in the trailing 24 hours.
func (e *Engine) dailyPnlBps(ctx context.Context) (int64, error) {
	closed, err := e.deps.Store.ClosedTradesSince(ctx, e.now().Add(-24*time.Hour), recentClosedLimit)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, t := range closed {
		if t.PnlBps != nil {
			sum += *t.PnlBps
		}
	}
	return sum, nil
}

// snapshot persists the cycle's portfolio view.
func (e *Engine) snapshot(ctx context.Context, p *portfolio, openPositions int) error {
	pnl, err := e.dailyPnlBps(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	totalEth := decimal.Zero
	if p.wethPrice.IsPositive() {
		totalEth = p.totalUSD.DivRound(p.wethPrice, 6)
	}

	snap := &models.PortfolioSnapshot{
		TotalValueUSD: p.totalUSD.StringFixed(2),
		TotalValueEth: totalEth.StringFixed(6),
		OpenPositions: openPositions,
		DailyPnlBps:   pnl,
	}
	if err := e.deps.Store.InsertSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	if m := e.deps.Metrics; m != nil {
		m.PortfolioValueUSD.Set(p.totalUSD.InexactFloat64())
		m.OpenPositions.Set(float64(openPositions))
	}
	return nil
}
