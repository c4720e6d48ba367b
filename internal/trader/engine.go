package trader

import (
	"context"
	"fmt"
	"math/big"
	"runtime/debug"
	"sync"
	"time"

	"onchain-trade-agent/internal/ai"
	"onchain-trade-agent/internal/collectible"
	"onchain-trade-agent/internal/config"
	"onchain-trade-agent/internal/execution"
	"onchain-trade-agent/internal/market"
	"onchain-trade-agent/internal/models"
	"onchain-trade-agent/internal/observability"
	"onchain-trade-agent/internal/risk"
	"onchain-trade-agent/internal/schedule"
	"onchain-trade-agent/internal/social"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	lowBalanceAlertInterval = 6 * time.Hour
	summaryInterval         = 24 * time.Hour
	recentClosedLimit       = 50
	unrepliedLimit          = 20
	wethSymbol              = "WETH"
)

// MarketSource prices the configured markets.
type MarketSource interface {
	FetchMarkets(ctx context.Context) ([]market.Market, error)
	BaseToken() market.Token
}

// NewsSource returns recent headlines.
type NewsSource interface {
	Headlines(ctx context.Context) ([]market.Headline, error)
}

// Decider produces trade decisions and mention replies.
type Decider interface {
	Analyze(ctx context.Context, in ai.Input) (*ai.DecisionSet, error)
	Reply(ctx context.Context, platform, mentionText, author string) string
}

// Executor settles buys and sells.
type Executor interface {
	Buy(ctx context.Context, m market.Market, notionalUSD decimal.Decimal) (*execution.Result, error)
	Sell(ctx context.Context, m market.Market, sellFraction decimal.Decimal) (*execution.Result, error)
}

// Lifecycle records trade state transitions.
type Lifecycle interface {
	Open(ctx context.Context, mk market.Market, side string, entryPrice decimal.Decimal, txHash string) (*models.Trade, error)
	Close(ctx context.Context, tradeID uint, exitPrice decimal.Decimal, txHash string, pnlBps int64) (*models.Trade, error)
	AttachCollectible(ctx context.Context, tradeID uint, collectibleID string) error
}

// Store is the persistence the engine reads and appends to.
type Store interface {
	OpenTrades(ctx context.Context) ([]models.Trade, error)
	ClosedTradesSince(ctx context.Context, since time.Time, limit int) ([]models.Trade, error)
	InsertSnapshot(ctx context.Context, snap *models.PortfolioSnapshot) error
	InsertSocialPost(ctx context.Context, post *models.SocialPost) error
	LastPostAt(ctx context.Context, postType string) (time.Time, bool, error)
	InsertMention(ctx context.Context, m *models.Mention) (bool, error)
	UnrepliedMentions(ctx context.Context, platform string, limit int) ([]models.Mention, error)
	MarkMentionReplied(ctx context.Context, id uint, replyID string, at time.Time) error
}

// Balances reads the agent wallet.
type Balances interface {
	NativeBalance(ctx context.Context) (*big.Int, error)
	TokenBalance(ctx context.Context, token common.Address) (*big.Int, error)
}

// Collectibles mints trade collectibles for notable closes.
type Collectibles interface {
	IsNotable(ctx context.Context, pnlBps int64) (bool, error)
	Mint(ctx context.Context, req collectible.MintRequest) (*collectible.Minted, error)
}

// Deps are the engine's collaborators. Collectibles and Metrics are optional; Channels holds
// only the enabled social channels.
type Deps struct {
	Markets      MarketSource
	News         NewsSource
	Decider      Decider
	Executor     Executor
	Trades       Lifecycle
	Store        Store
	Wallet       Balances
	Collectibles Collectibles
	Channels     []social.Channel
	Templates    *social.Templates
	Metrics      *observability.Metrics
}

// CycleStatus describes the most recent cycle.
type CycleStatus struct {
	ID                string    `json:"id"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	Outcome           string    `json:"outcome"`
	Error             string    `json:"error,omitempty"`
	PortfolioValueUSD string    `json:"portfolio_value_usd,omitempty"`
}

// Engine runs the observe, decide, execute and announce cycle.
type Engine struct {
	UUID      string
	Name      string
	StartTime time.Time

	logger *zap.Logger
	cfg    *config.Config
	deps   Deps

	// lastLowBalanceAlert is only touched from the loop goroutine.
	lastLowBalanceAlert time.Time
	now                 func() time.Time

	mu   sync.RWMutex
	last CycleStatus
}

// NewEngine creates a trading engine.
func NewEngine(logger *zap.Logger, cfg *config.Config, deps Deps) *Engine {
	return &Engine{
		UUID:      uuid.NewString(),
		Name:      "onchain-trade-agent",
		StartTime: time.Now(),
		logger:    logger.Named("engine"),
		cfg:       cfg,
		deps:      deps,
		now:       time.Now,
	}
}

// LastCycle returns the status of the most recent cycle.
func (e *Engine) LastCycle() CycleStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// Run starts the trading loop. It returns only when ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	interval := e.cfg.Trading.LoopInterval
	e.logger.Info("Starting trading loop",
		zap.String("engine_id", e.UUID),
		zap.Duration("interval", interval),
		zap.Bool("dry_run", e.cfg.Trading.DryRun),
		zap.Int("channels", len(e.deps.Channels)),
	)

	for {
		started := e.now()
		e.runCycle(ctx)

		delay := schedule.Remaining(schedule.NextDelay(interval, schedule.DefaultVariance), e.now().Sub(started))
		e.logger.Debug("Sleeping until next cycle", zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			e.logger.Info("Stopping trading engine...")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// runCycle runs one iteration and never lets an error or panic escape.
func (e *Engine) runCycle(ctx context.Context) {
	status := CycleStatus{ID: uuid.NewString(), StartedAt: e.now()}
	log := e.logger.With(zap.String("cycle_id", status.ID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Cycle panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			status.Outcome = observability.OutcomeError
			status.Error = fmt.Sprint(r)
		}
		status.FinishedAt = e.now()
		if m := e.deps.Metrics; m != nil {
			m.RecordCycle(status.Outcome, status.FinishedAt.Sub(status.StartedAt).Seconds(), float64(status.FinishedAt.Unix()))
		}
		e.mu.Lock()
		e.last = status
		e.mu.Unlock()
	}()

	outcome, err := e.iterate(ctx, &status)
	status.Outcome = outcome
	if err != nil {
		status.Outcome = observability.OutcomeError
		status.Error = err.Error()
		log.Error("Cycle failed", zap.Error(err))
		return
	}
	log.Info("Cycle finished", zap.String("outcome", outcome), zap.Duration("took", e.now().Sub(status.StartedAt)))
}

// RunIteration runs a single cycle. Errors from trading steps are logged and isolated; the
// returned error covers failures that end the cycle early or the snapshot.
func (e *Engine) RunIteration(ctx context.Context) error {
	var status CycleStatus
	_, err := e.iterate(ctx, &status)
	return err
}

func (e *Engine) iterate(ctx context.Context, status *CycleStatus) (string, error) {
	if e.cfg.Trading.KillSwitch {
		e.logger.Warn("Kill switch enabled. Skipping iteration.")
		return observability.OutcomeKillSwitch, nil
	}

	wei, err := e.deps.Wallet.NativeBalance(ctx)
	if err != nil {
		return "", fmt.Errorf("read gas balance: %w", err)
	}
	ethBalance := decimal.NewFromBigInt(wei, -18)
	if m := e.deps.Metrics; m != nil {
		m.EthBalance.Set(ethBalance.InexactFloat64())
	}
	if ethBalance.LessThan(decimal.NewFromFloat(e.cfg.Trading.MinEthBalance)) {
		e.logger.Warn("ETH balance below minimum threshold",
			zap.String("eth_balance", ethBalance.String()),
			zap.Float64("minimum", e.cfg.Trading.MinEthBalance),
		)
		e.maybePostLowBalance(ctx, ethBalance)
		return observability.OutcomeLowGas, nil
	}

	state, err := e.fetchState(ctx)
	if err != nil {
		return "", err
	}

	portfolio, err := e.valuePortfolio(ctx, state.markets, ethBalance)
	if err != nil {
		return "", err
	}
	status.PortfolioValueUSD = portfolio.totalUSD.StringFixed(2)

	set := e.decide(ctx, state, portfolio, ethBalance)
	plan := risk.Apply(set, state.openTrades, state.markets, e.cfg.Trading.MaxPositionSize)

	open := e.execute(ctx, plan, set.MarketCommentary, state, portfolio)

	snapErr := e.snapshot(ctx, portfolio, len(open))

	e.handleMentions(ctx)

	if err := e.maybePostDailySummary(ctx, portfolio.totalUSD, len(open)); err != nil {
		e.logger.Error("Daily summary failed", zap.Error(err))
	}

	if snapErr != nil {
		return "", snapErr
	}
	return observability.OutcomeOK, nil
}

type cycleState struct {
	markets    []market.Market
	headlines  []market.Headline
	openTrades []models.Trade
}

// fetchState loads markets, headlines and open trades concurrently. Headlines are optional
// context, so a news failure only logs.
func (e *Engine) fetchState(ctx context.Context) (*cycleState, error) {
	var state cycleState
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		markets, err := e.deps.Markets.FetchMarkets(gctx)
		if err != nil {
			return fmt.Errorf("fetch markets: %w", err)
		}
		state.markets = markets
		return nil
	})
	g.Go(func() error {
		headlines, err := e.deps.News.Headlines(gctx)
		if err != nil {
			e.logger.Warn("Headlines unavailable", zap.Error(err))
			return nil
		}
		state.headlines = headlines
		return nil
	})
	g.Go(func() error {
		trades, err := e.deps.Store.OpenTrades(gctx)
		if err != nil {
			return err
		}
		state.openTrades = trades
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &state, nil
}

// decide asks for a decision set and falls back to holding every market.
func (e *Engine) decide(ctx context.Context, state *cycleState, p *portfolio, ethBalance decimal.Decimal) *ai.DecisionSet {
	positions := make([]ai.Position, 0, len(state.openTrades))
	for _, t := range state.openTrades {
		entry, err := decimal.NewFromString(t.EntryPrice)
		if err != nil {
			e.logger.Error("Stored entry price unreadable, position left out of analysis",
				zap.Uint("trade_id", t.ID), zap.String("entry_price", t.EntryPrice), zap.Error(err))
			continue
		}
		positions = append(positions, ai.Position{MarketID: t.MarketID, Side: t.Side, EntryPrice: entry, OpenedAt: t.EntryAt})
	}

	set, err := e.deps.Decider.Analyze(ctx, ai.Input{
		PortfolioValueUSD: p.totalUSD,
		AvailableUSD:      p.baseBalance,
		EthBalance:        ethBalance,
		OpenPositions:     positions,
		Markets:           state.markets,
		Headlines:         state.headlines,
	})
	if err != nil {
		e.logger.Error("AI analysis failed, defaulting to HOLD", zap.Error(err))
		return ai.HoldAll(state.markets, "AI unavailable")
	}
	return set
}
