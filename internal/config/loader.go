package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "POLYARB_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "POLYARB_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "POLYARB_WALLET_KEY_PASSWORD")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "POLYARB_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "POLYARB_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.WsHost, "POLYARB_POLYMARKET_WS_HOST")
	setInt(&cfg.Polymarket.ChainID, "POLYARB_POLYMARKET_CHAIN_ID")
	setStr(&cfg.Polymarket.ApiKey, "POLYARB_POLYMARKET_API_KEY")
	setStr(&cfg.Polymarket.ApiSecret, "POLYARB_POLYMARKET_API_SECRET")
	setStr(&cfg.Polymarket.ApiPassphrase, "POLYARB_POLYMARKET_API_PASSPHRASE")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "POLYARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "POLYARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POLYARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POLYARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POLYARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POLYARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POLYARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POLYARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYARB_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.QuoteTTL, "POLYARB_REDIS_QUOTE_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POLYARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYARB_S3_FORCE_PATH_STYLE")

	// ── Scanner ──
	setStr(&cfg.Scanner.PriceType, "POLYARB_SCANNER_PRICE_TYPE")
	setFloat64(&cfg.Scanner.MinProfitBps, "POLYARB_SCANNER_MIN_PROFIT_BPS")
	setFloat64(&cfg.Scanner.MinLiquidityScore, "POLYARB_SCANNER_MIN_LIQUIDITY_SCORE")
	setFloat64(&cfg.Scanner.MaxTotalCostUSD, "POLYARB_SCANNER_MAX_TOTAL_COST_USD")
	setFloat64(&cfg.Scanner.NegRiskPayoffUSD, "POLYARB_SCANNER_NEGRISK_PAYOFF_USD")
	setFloat64(&cfg.Scanner.SizePerBasketUSD, "POLYARB_SCANNER_SIZE_PER_BASKET_USD")
	setInt(&cfg.Scanner.Concurrency, "POLYARB_SCANNER_CONCURRENCY")
	setDuration(&cfg.Scanner.OpportunityTTL, "POLYARB_SCANNER_OPPORTUNITY_TTL")
	setDuration(&cfg.Scanner.Interval, "POLYARB_SCANNER_INTERVAL")
	setInt(&cfg.Scanner.TopN, "POLYARB_SCANNER_TOP_N")
	setStr(&cfg.Scanner.StrategiesPath, "POLYARB_SCANNER_STRATEGIES_PATH")

	// ── Risk ──
	setFloat64(&cfg.Risk.MaxTotalNotionalUSD, "POLYARB_RISK_MAX_TOTAL_NOTIONAL_USD")
	setFloat64(&cfg.Risk.MaxPerStrategyNotionalUSD, "POLYARB_RISK_MAX_PER_STRATEGY_NOTIONAL_USD")
	setFloat64(&cfg.Risk.MaxPerMarketNotionalUSD, "POLYARB_RISK_MAX_PER_MARKET_NOTIONAL_USD")
	setFloat64(&cfg.Risk.MaxPerTopicNotionalUSD, "POLYARB_RISK_MAX_PER_TOPIC_NOTIONAL_USD")
	setFloat64(&cfg.Risk.MaxPerEntityNotionalUSD, "POLYARB_RISK_MAX_PER_ENTITY_NOTIONAL_USD")
	setFloat64(&cfg.Risk.MaxRuleRiskNotionalUSD, "POLYARB_RISK_MAX_RULE_RISK_NOTIONAL_USD")
	setInt(&cfg.Risk.MaxPositions, "POLYARB_RISK_MAX_POSITIONS")
	setFloat64(&cfg.Risk.MinProfitBps, "POLYARB_RISK_MIN_PROFIT_BPS")
	setFloat64(&cfg.Risk.MinLiquidityScore, "POLYARB_RISK_MIN_LIQUIDITY_SCORE")

	// ── Executor ──
	setInt64(&cfg.Executor.MaxSlippageBps, "POLYARB_EXECUTOR_MAX_SLIPPAGE_BPS")
	setDuration(&cfg.Executor.LegTimeout, "POLYARB_EXECUTOR_LEG_TIMEOUT")
	setDuration(&cfg.Executor.QuoteTimeout, "POLYARB_EXECUTOR_QUOTE_TIMEOUT")
	setInt64(&cfg.Executor.FeeBps, "POLYARB_EXECUTOR_FEE_BPS")
	setInt64(&cfg.Executor.LiquidityDiscountBps, "POLYARB_EXECUTOR_LIQUIDITY_DISCOUNT_BPS")

	// ── Feed ──
	setBool(&cfg.Feed.Enabled, "POLYARB_FEED_ENABLED")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYARB_MODE")
	setStr(&cfg.LogLevel, "POLYARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
