// Package config defines the top-level configuration for the arbitrage
// core and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by POLYARB_* environment
// variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Scanner    ScannerConfig    `toml:"scanner"`
	Risk       RiskConfig       `toml:"risk"`
	Executor   ExecutorConfig   `toml:"executor"`
	Feed       FeedConfig       `toml:"feed"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds the trading key credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds venue API endpoints, chain parameters and the L2
// API credentials used for authenticated CLOB requests.
type PolymarketConfig struct {
	ClobHost  string `toml:"clob_host"`
	GammaHost string `toml:"gamma_host"`
	WsHost    string `toml:"ws_host"`
	ChainID   int    `toml:"chain_id"`

	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	ApiPassphrase string `toml:"api_passphrase"`
}

// PostgresConfig holds reporting store connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds quote cache connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	QuoteTTL   duration `toml:"quote_ttl"`
}

// S3Config holds archive storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ScannerConfig holds scan pass parameters. Monetary values are USD and
// converted to micro-units at wiring time.
type ScannerConfig struct {
	PriceType         string   `toml:"price_type"` // ASK, BID, MID, LIVE
	MinProfitBps      float64  `toml:"min_profit_bps"`
	MinLiquidityScore float64  `toml:"min_liquidity_score"`
	MaxTotalCostUSD   float64  `toml:"max_total_cost_usd"`
	NegRiskPayoffUSD  float64  `toml:"negrisk_payoff_usd"` // 0 = derive from arity
	SizePerBasketUSD  float64  `toml:"size_per_basket_usd"`
	Concurrency       int      `toml:"concurrency"`
	OpportunityTTL    duration `toml:"opportunity_ttl"`
	Interval          duration `toml:"interval"`
	TopN              int      `toml:"top_n"`
	// StrategiesPath points at a JSON file of externally authored basket
	// strategies. Empty disables the strategy scanner.
	StrategiesPath string `toml:"strategies_path"`
}

// RiskConfig holds exposure limits, in USD.
type RiskConfig struct {
	MaxTotalNotionalUSD       float64 `toml:"max_total_notional_usd"`
	MaxPerStrategyNotionalUSD float64 `toml:"max_per_strategy_notional_usd"`
	MaxPerMarketNotionalUSD   float64 `toml:"max_per_market_notional_usd"`
	MaxPerTopicNotionalUSD    float64 `toml:"max_per_topic_notional_usd"`
	MaxPerEntityNotionalUSD   float64 `toml:"max_per_entity_notional_usd"`
	MaxRuleRiskNotionalUSD    float64 `toml:"max_rule_risk_notional_usd"`
	MaxPositions              int     `toml:"max_positions"`
	MinProfitBps              float64 `toml:"min_profit_bps"`
	MinLiquidityScore         float64 `toml:"min_liquidity_score"`
}

// ExecutorConfig holds basket execution tolerances.
type ExecutorConfig struct {
	MaxSlippageBps       int64    `toml:"max_slippage_bps"`
	LegTimeout           duration `toml:"leg_timeout"`
	QuoteTimeout         duration `toml:"quote_timeout"`
	FeeBps               int64    `toml:"fee_bps"`
	LiquidityDiscountBps int64    `toml:"liquidity_discount_bps"`
}

// FeedConfig controls the real-time market data feed.
type FeedConfig struct {
	Enabled bool `toml:"enabled"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration for TOML string decoding ("5m", "30s").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

var validModes = map[string]bool{
	"scan":    true, // one-shot: discover, rank, report
	"execute": true, // scan once, then risk-gate and execute the best basket
	"full":    true, // continuous scan loop with feed, executing as found
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validPriceTypes = map[string]bool{
	"ASK":  true,
	"BID":  true,
	"MID":  true,
	"LIVE": true,
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:  "https://clob.polymarket.com",
			GammaHost: "https://gamma-api.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com/ws/market",
			ChainID:   137,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polyarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			QuoteTTL: duration{5 * time.Second},
		},
		Scanner: ScannerConfig{
			PriceType:         "ASK",
			MinProfitBps:      30,
			MinLiquidityScore: 0.4,
			MaxTotalCostUSD:   0.98,
			SizePerBasketUSD:  100,
			Concurrency:       8,
			OpportunityTTL:    duration{30 * time.Second},
			Interval:          duration{time.Minute},
			TopN:              20,
		},
		Risk: RiskConfig{
			MaxTotalNotionalUSD:       10_000,
			MaxPerStrategyNotionalUSD: 2_000,
			MaxPerMarketNotionalUSD:   1_000,
			MaxPerTopicNotionalUSD:    3_000,
			MaxPerEntityNotionalUSD:   2_000,
			MaxRuleRiskNotionalUSD:    500,
			MaxPositions:              100,
			MinProfitBps:              30,
			MinLiquidityScore:         0.4,
		},
		Executor: ExecutorConfig{
			MaxSlippageBps: 100,
			LegTimeout:     duration{10 * time.Second},
			QuoteTimeout:   duration{3 * time.Second},
			FeeBps:         0,
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// Validate checks Config for invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, execute, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet credentials are only required when orders will be placed.
	if m := strings.ToLower(c.Mode); m == "execute" || m == "full" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode execute")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	if !validPriceTypes[strings.ToUpper(c.Scanner.PriceType)] {
		errs = append(errs, fmt.Sprintf("scanner: unknown price_type %q (valid: ASK, BID, MID, LIVE)", c.Scanner.PriceType))
	}
	if c.Scanner.MinLiquidityScore < 0 || c.Scanner.MinLiquidityScore > 1 {
		errs = append(errs, fmt.Sprintf("scanner: min_liquidity_score must be 0-1, got %g", c.Scanner.MinLiquidityScore))
	}
	if c.Scanner.SizePerBasketUSD <= 0 {
		errs = append(errs, "scanner: size_per_basket_usd must be positive")
	}
	if c.Scanner.NegRiskPayoffUSD < 0 {
		errs = append(errs, "scanner: negrisk_payoff_usd must not be negative")
	}

	if c.Risk.MaxTotalNotionalUSD <= 0 {
		errs = append(errs, "risk: max_total_notional_usd must be positive")
	}
	if c.Risk.MinLiquidityScore < 0 || c.Risk.MinLiquidityScore > 1 {
		errs = append(errs, fmt.Sprintf("risk: min_liquidity_score must be 0-1, got %g", c.Risk.MinLiquidityScore))
	}

	if c.Executor.MaxSlippageBps <= 0 {
		errs = append(errs, "executor: max_slippage_bps must be positive")
	}
	if c.Executor.FeeBps < 0 {
		errs = append(errs, "executor: fee_bps must not be negative")
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %d problem(s):\n  - %s", len(errs), strings.Join(errs, "\n  - "))
	}
	return nil
}
