package market

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"onchain-trade-agent/internal/config"
	"onchain-trade-agent/internal/retry"
	"onchain-trade-agent/internal/zerox"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceSource returns indicative swap prices.
type PriceSource interface {
	Price(ctx context.Context, req zerox.SwapRequest) (*zerox.Price, error)
}

// Fetcher refreshes prices for the configured markets.
type Fetcher struct {
	prices  PriceSource
	base    Token
	markets []config.Market
	retry   retry.Options
	logger  *zap.Logger
	now     func() time.Time
}

// NewFetcher creates a fetcher for the given markets quoted against base.
func NewFetcher(prices PriceSource, base config.Token, markets []config.Market, logger *zap.Logger) *Fetcher {
	l := logger.Named("markets")
	return &Fetcher{
		prices:  prices,
		base:    TokenFromConfig(base),
		markets: markets,
		retry: retry.Options{
			Retries:     2,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    3 * time.Second,
			ShouldRetry: zerox.IsRetryable,
			Logger:      l,
		},
		logger: l,
		now:    time.Now,
	}
}

// BaseToken returns the settlement token every market is quoted against.
func (f *Fetcher) BaseToken() Token {
	return f.base
}

// FetchMarkets prices every market by selling one base token for the market token.
// Markets are fetched one after another; the whole batch is retried as a unit.
func (f *Fetcher) FetchMarkets(ctx context.Context) ([]Market, error) {
	return retry.Do(ctx, f.retry, func(ctx context.Context) ([]Market, error) {
		out := make([]Market, 0, len(f.markets))
		for _, mc := range f.markets {
			token := TokenFromConfig(mc.Token)
			price, err := f.price(ctx, token)
			if err != nil {
				return nil, fmt.Errorf("price %s: %w", mc.ID, err)
			}
			out = append(out, Market{
				ID:         mc.ID,
				Name:       mc.Name,
				BaseToken:  f.base,
				QuoteToken: token,
				Price:      price,
				UpdatedAt:  f.now().UTC(),
			})
		}
		return out, nil
	})
}

func (f *Fetcher) price(ctx context.Context, token Token) (decimal.Decimal, error) {
	oneBase := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(f.base.Decimals)), nil)
	p, err := f.prices.Price(ctx, zerox.SwapRequest{
		SellToken:  f.base.Address,
		BuyToken:   token.Address,
		SellAmount: oneBase,
	})
	if err != nil {
		return decimal.Zero, err
	}
	return ComputePrice(f.base, token, p.SellAmount, p.BuyAmount)
}

// ComputePrice derives base units per quote token from a swap of sellAmount base units for
// buyAmount quote units. A zero buy amount yields a zero price.
func ComputePrice(base, quote Token, sellAmount, buyAmount string) (decimal.Decimal, error) {
	sell, err := decimal.NewFromString(sellAmount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid sell amount %q: %w", sellAmount, err)
	}
	buy, err := decimal.NewFromString(buyAmount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid buy amount %q: %w", buyAmount, err)
	}
	buyHuman := quote.FromUnits(buy)
	if buyHuman.IsZero() {
		return decimal.Zero, nil
	}
	return base.FromUnits(sell).DivRound(buyHuman, 18), nil
}
