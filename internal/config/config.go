package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Chain       Chain       `mapstructure:"chain"`
	ZeroX       ZeroX       `mapstructure:"zerox"`
	News        News        `mapstructure:"news"`
	Anthropic   Anthropic   `mapstructure:"anthropic"`
	Twitter     Twitter     `mapstructure:"twitter"`
	Farcaster   Farcaster   `mapstructure:"farcaster"`
	Collectible Collectible `mapstructure:"collectible"`
	Trading     Trading     `mapstructure:"trading"`
	Logger      Logger      `mapstructure:"logger"`
	Server      Server      `mapstructure:"server"`
	Database    Database    `mapstructure:"database"`
}

// Chain holds the RPC endpoint and signing key of the trading wallet.
type Chain struct {
	RPCURL     string `mapstructure:"rpc_url"`
	PrivateKey string `mapstructure:"private_key"`
	ChainID    int64  `mapstructure:"chain_id"`
	// ExplorerTxBase is prefixed to transaction hashes in social posts.
	ExplorerTxBase string `mapstructure:"explorer_tx_base"`
}

// ZeroX holds the configuration for the swap aggregator API.
type ZeroX struct {
	BaseURL        string        `mapstructure:"base_url"`
	ApiKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// News holds the headline feed endpoint.
type News struct {
	URL    string `mapstructure:"url"`
	ApiKey string `mapstructure:"api_key"`
	Limit  int    `mapstructure:"limit"`
}

// Anthropic holds the reasoning service settings.
type Anthropic struct {
	ApiKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// Twitter holds OAuth2 user-context credentials for posting.
type Twitter struct {
	Enabled      bool          `mapstructure:"enabled"`
	BaseURL      string        `mapstructure:"base_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	AccessToken  string        `mapstructure:"access_token"`
	RefreshToken string        `mapstructure:"refresh_token"`
	MinInterval  time.Duration `mapstructure:"min_interval"`
}

// Farcaster holds Neynar credentials.
type Farcaster struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	ApiKey      string        `mapstructure:"api_key"`
	SignerUUID  string        `mapstructure:"signer_uuid"`
	FID         string        `mapstructure:"fid"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

// Collectible holds the trade NFT contract address. Empty disables minting.
type Collectible struct {
	ContractAddress string `mapstructure:"contract_address"`
}

// Server holds the ports of the status/metrics server and the dashboard.
type Server struct {
	Port   int `mapstructure:"port"`
	UIPort int `mapstructure:"ui_port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Token describes an ERC-20 token.
type Token struct {
	Address  string `mapstructure:"address"`
	Symbol   string `mapstructure:"symbol"`
	Decimals int32  `mapstructure:"decimals"`
}

// Market is a tradable token quoted against the base token.
type Market struct {
	ID    string `mapstructure:"id"`
	Name  string `mapstructure:"name"`
	Token Token  `mapstructure:"token"`
}

// Trading holds the configuration for the trading logic.
type Trading struct {
	DryRun          bool          `mapstructure:"dry_run"`
	KillSwitch      bool          `mapstructure:"kill_switch"`
	LoopInterval    time.Duration `mapstructure:"loop_interval"`
	MaxPositionSize float64       `mapstructure:"max_position_size"`
	MinEthBalance   float64       `mapstructure:"min_eth_balance"`
	MinTradeUSD     float64       `mapstructure:"min_trade_usd"`
	BaseToken       Token         `mapstructure:"base_token"`
	Markets         []Market      `mapstructure:"markets"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultBaseToken is USDC on Base.
var DefaultBaseToken = Token{Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bDA02913", Symbol: "USDC", Decimals: 6}

// DefaultMarkets are traded when the config file lists none.
var DefaultMarkets = []Market{
	{ID: "WETH-USDC", Name: "WETH / USDC", Token: Token{Address: "0x4200000000000000000000000000000000000006", Symbol: "WETH", Decimals: 18}},
	{ID: "DEGEN-USDC", Name: "DEGEN / USDC", Token: Token{Address: "0x4ed4e862860bed51a9570b96d89af5e1b0efefed", Symbol: "DEGEN", Decimals: 18}},
	{ID: "BRETT-USDC", Name: "BRETT / USDC", Token: Token{Address: "0x532f27101965dd16442e59d40670faf5ebb142e4", Symbol: "BRETT", Decimals: 18}},
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("read config: %w", err)
		}
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("decode config: %w", err)
	}
	if len(config.Trading.Markets) == 0 {
		config.Trading.Markets = append([]Market(nil), DefaultMarkets...)
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.private_key", "")
	v.SetDefault("chain.chain_id", 8453)
	v.SetDefault("chain.explorer_tx_base", "https://basescan.org/tx/")

	v.SetDefault("zerox.base_url", "https://base.api.0x.org")
	v.SetDefault("zerox.api_key", "")
	v.SetDefault("zerox.timeout", 15*time.Second)
	v.SetDefault("zerox.rate_limit", 5)       // requests per second
	v.SetDefault("zerox.rate_limit_burst", 2) // burst size

	v.SetDefault("news.url", "https://min-api.cryptocompare.com/data/v2/news/?lang=EN")
	v.SetDefault("news.api_key", "")
	v.SetDefault("news.limit", 5)

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-3-5-sonnet-20241022")

	v.SetDefault("twitter.enabled", true)
	v.SetDefault("twitter.base_url", "https://api.twitter.com/2")
	v.SetDefault("twitter.client_id", "")
	v.SetDefault("twitter.client_secret", "")
	v.SetDefault("twitter.access_token", "")
	v.SetDefault("twitter.refresh_token", "")
	v.SetDefault("twitter.min_interval", 1500*time.Millisecond)

	v.SetDefault("farcaster.enabled", true)
	v.SetDefault("farcaster.base_url", "https://api.neynar.com/v2/farcaster")
	v.SetDefault("farcaster.api_key", "")
	v.SetDefault("farcaster.signer_uuid", "")
	v.SetDefault("farcaster.fid", "")
	v.SetDefault("farcaster.min_interval", 1200*time.Millisecond)

	v.SetDefault("collectible.contract_address", "")

	v.SetDefault("trading.dry_run", false)
	v.SetDefault("trading.kill_switch", false)
	v.SetDefault("trading.loop_interval", 15*time.Minute)
	v.SetDefault("trading.max_position_size", 0.1)
	v.SetDefault("trading.min_eth_balance", 0.01)
	v.SetDefault("trading.min_trade_usd", 5)
	v.SetDefault("trading.base_token.address", DefaultBaseToken.Address)
	v.SetDefault("trading.base_token.symbol", DefaultBaseToken.Symbol)
	v.SetDefault("trading.base_token.decimals", DefaultBaseToken.Decimals)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("server.port", 9090)
	v.SetDefault("server.ui_port", 8080)
	v.SetDefault("database.dsn", "")
}

// Validate rejects configurations the agent cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Chain.RPCURL == "" {
		errs = append(errs, errors.New("chain.rpc_url is required"))
	}
	if c.Chain.PrivateKey == "" {
		errs = append(errs, errors.New("chain.private_key is required"))
	}
	if c.Anthropic.ApiKey == "" {
		errs = append(errs, errors.New("anthropic.api_key is required"))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}

	if c.Twitter.Enabled && (c.Twitter.ClientID == "" || c.Twitter.AccessToken == "") {
		errs = append(errs, errors.New("twitter credentials are required when twitter.enabled=true"))
	}
	if c.Farcaster.Enabled && (c.Farcaster.ApiKey == "" || c.Farcaster.SignerUUID == "") {
		errs = append(errs, errors.New("neynar credentials are required when farcaster.enabled=true"))
	}

	if addr := c.Collectible.ContractAddress; addr != "" && !common.IsHexAddress(addr) {
		errs = append(errs, fmt.Errorf("collectible.contract_address %q is not a hex address", addr))
	}

	t := c.Trading
	if t.MaxPositionSize <= 0 || t.MaxPositionSize > 1 {
		errs = append(errs, fmt.Errorf("trading.max_position_size must be in (0, 1], got %v", t.MaxPositionSize))
	}
	if t.MinEthBalance < 0 {
		errs = append(errs, errors.New("trading.min_eth_balance must be >= 0"))
	}
	if t.LoopInterval <= 0 {
		errs = append(errs, errors.New("trading.loop_interval must be > 0"))
	}
	if !common.IsHexAddress(t.BaseToken.Address) {
		errs = append(errs, fmt.Errorf("trading.base_token.address %q is not a hex address", t.BaseToken.Address))
	}
	seen := make(map[string]struct{}, len(t.Markets))
	for _, m := range t.Markets {
		if m.ID == "" {
			errs = append(errs, errors.New("trading.markets: id is required"))
			continue
		}
		if _, dup := seen[m.ID]; dup {
			errs = append(errs, fmt.Errorf("trading.markets: duplicate id %q", m.ID))
		}
		seen[m.ID] = struct{}{}
		if !common.IsHexAddress(m.Token.Address) {
			errs = append(errs, fmt.Errorf("trading.markets[%s]: token address %q is not a hex address", m.ID, m.Token.Address))
		}
	}

	return errors.Join(errs...)
}
