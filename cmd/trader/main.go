package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"onchain-trade-agent/internal/ai"
	"onchain-trade-agent/internal/chain"
	"onchain-trade-agent/internal/collectible"
	"onchain-trade-agent/internal/config"
	"onchain-trade-agent/internal/database"
	"onchain-trade-agent/internal/execution"
	"onchain-trade-agent/internal/logger"
	"onchain-trade-agent/internal/market"
	"onchain-trade-agent/internal/observability"
	"onchain-trade-agent/internal/social"
	"onchain-trade-agent/internal/trader"
	"onchain-trade-agent/internal/trades"
	"onchain-trade-agent/internal/zerox"

	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	log.Info("Configuration loaded",
		zap.Bool("dry_run", cfg.Trading.DryRun),
		zap.Bool("kill_switch", cfg.Trading.KillSwitch),
		zap.Int("markets", len(cfg.Trading.Markets)),
	)

	// Setup context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, &cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Agent stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("Agent has been shut down.")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN, log)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()
	store := database.NewStore(db)

	// Connect the wallet and probe the chain
	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	wallet, err := chain.Dial(dialCtx, cfg.Chain.RPCURL, cfg.Chain.PrivateKey, cfg.Chain.ChainID, log)
	cancel()
	if err != nil {
		return fmt.Errorf("connect wallet: %w", err)
	}
	defer wallet.Close()
	log.Info("Wallet connected",
		zap.String("address", wallet.Address().Hex()),
		zap.String("chain_id", wallet.ChainID().String()),
	)

	venue := zerox.NewClient(&cfg.ZeroX, log)
	analyzer := ai.NewAnalyzer(ai.NewAnthropicReasoner(cfg.Anthropic.ApiKey, cfg.Anthropic.Model), ai.IsTransient, log)

	deps := trader.Deps{
		Markets:   market.NewFetcher(venue, cfg.Trading.BaseToken, cfg.Trading.Markets, log),
		News:      market.NewNewsClient(&cfg.News, log),
		Decider:   analyzer,
		Executor:  execution.NewEngine(wallet, venue, cfg.Trading.DryRun, log),
		Trades:    trades.NewManager(store, log),
		Store:     store,
		Wallet:    wallet,
		Templates: social.NewTemplates(cfg.Chain.ExplorerTxBase),
		Metrics:   observability.NewMetrics(),
	}
	if cfg.Twitter.Enabled {
		deps.Channels = append(deps.Channels, social.NewTwitter(&cfg.Twitter, log))
	}
	if cfg.Farcaster.Enabled {
		deps.Channels = append(deps.Channels, social.NewFarcaster(&cfg.Farcaster, log))
	}
	if addr := cfg.Collectible.ContractAddress; addr != "" {
		minter, err := collectible.NewMinter(wallet, addr, log)
		if err != nil {
			return err
		}
		deps.Collectibles = minter
	}

	engine := trader.NewEngine(log, cfg, deps)

	api := trader.NewAPIServer(engine, log)
	api.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := api.Stop(shutdownCtx); err != nil {
			log.Error("API server shutdown failed", zap.Error(err))
		}
	}()

	return engine.Run(ctx)
}
