package execution

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"onchain-trade-agent/internal/market"
	"onchain-trade-agent/internal/retry"
	"onchain-trade-agent/internal/zerox"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrInsufficientBalance is returned by Sell when there is nothing to sell.
var ErrInsufficientBalance = errors.New("insufficient token balance to sell")

// ZeroTxHash is reported for swaps skipped in dry-run mode.
var ZeroTxHash = common.Hash{}

// Wallet is the on-chain account used for settlement.
type Wallet interface {
	Address() common.Address
	TokenBalance(ctx context.Context, token common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error)
	Send(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error)
}

// Venue returns firm swap quotes.
type Venue interface {
	Quote(ctx context.Context, req zerox.SwapRequest) (*zerox.Quote, error)
}

// Result describes a settled (or simulated) swap.
type Result struct {
	TxHash common.Hash
	// Price is the market price the decision was taken at.
	Price decimal.Decimal
	// SizeUSD is the base-token amount spent (buy) or received (sell).
	SizeUSD decimal.Decimal
	// ReceivedAmount is the quoted buy amount in the bought token's smallest units.
	ReceivedAmount *big.Int
}

// Engine turns BUY/SELL decisions into swaps.
type Engine struct {
	wallet Wallet
	venue  Venue
	dryRun bool
	retry  retry.Options
	logger *zap.Logger
}

// NewEngine creates an execution engine. In dry-run mode quotes and allowances are still
// read but nothing is submitted on-chain.
func NewEngine(wallet Wallet, venue Venue, dryRun bool, logger *zap.Logger) *Engine {
	l := logger.Named("execution")
	return &Engine{
		wallet: wallet,
		venue:  venue,
		dryRun: dryRun,
		retry: retry.Options{
			Retries:     2,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    3 * time.Second,
			ShouldRetry: zerox.IsRetryable,
			Logger:      l,
		},
		logger: l,
	}
}

// Buy spends notionalUSD of the base token on the market's token.
func (e *Engine) Buy(ctx context.Context, m market.Market, notionalUSD decimal.Decimal) (*Result, error) {
	sellAmount := m.BaseToken.ToUnits(notionalUSD).BigInt()
	if sellAmount.Sign() <= 0 {
		return nil, fmt.Errorf("buy %s: notional %s rounds to zero", m.ID, notionalUSD)
	}

	quote, err := e.quote(ctx, m.BaseToken, m.QuoteToken, sellAmount)
	if err != nil {
		return nil, fmt.Errorf("buy %s: %w", m.ID, err)
	}
	quotedSell, err := zerox.ParseAmount(quote.SellAmount)
	if err != nil {
		return nil, fmt.Errorf("buy %s: %w", m.ID, err)
	}
	received, err := zerox.ParseAmount(quote.BuyAmount)
	if err != nil {
		return nil, fmt.Errorf("buy %s: %w", m.ID, err)
	}

	hash, err := e.settle(ctx, m.BaseToken, quote, quotedSell)
	if err != nil {
		return nil, fmt.Errorf("buy %s: %w", m.ID, err)
	}

	e.logger.Info("Buy executed",
		zap.String("market", m.ID),
		zap.String("notional_usd", notionalUSD.StringFixed(2)),
		zap.String("received", received.String()),
		zap.String("tx", hash.Hex()),
		zap.Bool("dry_run", e.dryRun),
	)
	return &Result{TxHash: hash, Price: m.Price, SizeUSD: notionalUSD, ReceivedAmount: received}, nil
}

// Sell sells sellFraction of the wallet's holding of the market's token for the base token.
func (e *Engine) Sell(ctx context.Context, m market.Market, sellFraction decimal.Decimal) (*Result, error) {
	token := common.HexToAddress(m.QuoteToken.Address)
	balance, err := e.wallet.TokenBalance(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("sell %s: %w", m.ID, err)
	}

	amount := decimal.NewFromBigInt(balance, 0).Mul(sellFraction).Floor().BigInt()
	if amount.Sign() <= 0 {
		return nil, ErrInsufficientBalance
	}

	quote, err := e.quote(ctx, m.QuoteToken, m.BaseToken, amount)
	if err != nil {
		return nil, fmt.Errorf("sell %s: %w", m.ID, err)
	}
	received, err := zerox.ParseAmount(quote.BuyAmount)
	if err != nil {
		return nil, fmt.Errorf("sell %s: %w", m.ID, err)
	}

	hash, err := e.settle(ctx, m.QuoteToken, quote, amount)
	if err != nil {
		return nil, fmt.Errorf("sell %s: %w", m.ID, err)
	}

	sizeUSD := m.BaseToken.FromUnits(decimal.NewFromBigInt(received, 0))
	e.logger.Info("Sell executed",
		zap.String("market", m.ID),
		zap.String("amount", amount.String()),
		zap.String("size_usd", sizeUSD.StringFixed(2)),
		zap.String("tx", hash.Hex()),
		zap.Bool("dry_run", e.dryRun),
	)
	return &Result{TxHash: hash, Price: m.Price, SizeUSD: sizeUSD, ReceivedAmount: received}, nil
}

func (e *Engine) quote(ctx context.Context, sell, buy market.Token, amount *big.Int) (*zerox.Quote, error) {
	req := zerox.SwapRequest{
		SellToken:  sell.Address,
		BuyToken:   buy.Address,
		SellAmount: amount,
		Taker:      e.wallet.Address().Hex(),
	}
	return retry.Do(ctx, e.retry, func(ctx context.Context) (*zerox.Quote, error) {
		return e.venue.Quote(ctx, req)
	})
}

// settle makes sure the venue may pull amount of token, then submits the swap once.
func (e *Engine) settle(ctx context.Context, token market.Token, quote *zerox.Quote, amount *big.Int) (common.Hash, error) {
	if err := e.ensureAllowance(ctx, common.HexToAddress(token.Address), common.HexToAddress(quote.AllowanceTarget), amount); err != nil {
		return common.Hash{}, err
	}

	if e.dryRun {
		return ZeroTxHash, nil
	}

	data, err := decodeHex(quote.Data)
	if err != nil {
		return common.Hash{}, fmt.Errorf("quote calldata: %w", err)
	}
	value := new(big.Int)
	if quote.Value != "" {
		if value, err = zerox.ParseAmount(quote.Value); err != nil {
			return common.Hash{}, fmt.Errorf("quote value: %w", err)
		}
	}
	return e.wallet.Send(ctx, common.HexToAddress(quote.To), data, value)
}

func (e *Engine) ensureAllowance(ctx context.Context, token, spender common.Address, amount *big.Int) error {
	current, err := e.wallet.Allowance(ctx, token, spender)
	if err != nil {
		return err
	}
	if current.Cmp(amount) >= 0 {
		return nil
	}
	if e.dryRun {
		e.logger.Info("Dry run: skipping approval", zap.String("token", token.Hex()), zap.String("amount", amount.String()))
		return nil
	}
	_, err = e.wallet.Approve(ctx, token, spender, amount)
	return err
}

func decodeHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, fmt.Errorf("missing 0x prefix")
	}
	return common.FromHex(s), nil
}
