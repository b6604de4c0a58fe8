package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/oddlot/polyarb/internal/blob/s3"
	"github.com/oddlot/polyarb/internal/cache/redis"
	"github.com/oddlot/polyarb/internal/config"
	"github.com/oddlot/polyarb/internal/crypto"
	"github.com/oddlot/polyarb/internal/domain"
	"github.com/oddlot/polyarb/internal/executor"
	"github.com/oddlot/polyarb/internal/notify"
	"github.com/oddlot/polyarb/internal/platform/polymarket"
	"github.com/oddlot/polyarb/internal/pricing"
	"github.com/oddlot/polyarb/internal/risk"
	"github.com/oddlot/polyarb/internal/scanner"
	"github.com/oddlot/polyarb/internal/store/postgres"
)

// Dependencies bundles everything the run modes need. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Markets domain.MarketSource
	Prices  *pricing.Accessor
	Model   *pricing.Model

	SingleCondition *scanner.SingleCondition
	NegRisk         *scanner.NegRisk
	Strategy        *scanner.StrategyTemplates
	Strategies      []domain.Strategy

	Risk     *risk.Manager
	Executor *executor.Basket

	QuoteCache    domain.QuoteCache       // nil when Redis is disabled
	Opportunities domain.OpportunityStore // nil when Postgres is disabled
	Executions    domain.ExecutionStore   // nil when Postgres is disabled
	Archiver      *s3blob.Archiver        // nil when S3 is disabled
	Notifier      *notify.Notifier
}

// Wire constructs every concrete dependency from the configuration and
// returns it together with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	deps := &Dependencies{}
	mode := strings.ToLower(cfg.Mode)

	// ── Venue clients ──
	var (
		signer   *crypto.Signer
		hmacAuth *crypto.HMACAuth
	)
	if mode == "execute" || mode == "full" {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return fail(fmt.Errorf("app: load trading key: %w", err))
		}
		signer, err = crypto.NewSigner(keyHex, cfg.Polymarket.ChainID)
		if err != nil {
			return fail(fmt.Errorf("app: signer: %w", err))
		}
		if cfg.Polymarket.ApiKey != "" {
			hmacAuth = &crypto.HMACAuth{
				Key:        cfg.Polymarket.ApiKey,
				Secret:     cfg.Polymarket.ApiSecret,
				Passphrase: cfg.Polymarket.ApiPassphrase,
			}
		}
	}

	clob := polymarket.NewClobClient(cfg.Polymarket.ClobHost, signer, hmacAuth)
	deps.Markets = polymarket.NewGammaClient(cfg.Polymarket.GammaHost, logger)

	// ── Quote cache ──
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("app: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })
		deps.QuoteCache = redis.NewQuoteCache(rc, cfg.Redis.QuoteTTL.Duration)
		logger.InfoContext(ctx, "quote cache enabled", slog.String("addr", cfg.Redis.Addr))
	}

	// ── Pricing ──
	deps.Prices = pricing.NewAccessor(clob, deps.QuoteCache, cfg.Redis.QuoteTTL.Duration, logger)
	deps.Model = pricing.NewModel(deps.Prices, cfg.Executor.FeeBps, cfg.Executor.LiquidityDiscountBps)

	// ── Scanners ──
	scanCfg := scanner.Config{
		PriceType:           domain.PriceType(strings.ToUpper(cfg.Scanner.PriceType)),
		MinProfitBps:        cfg.Scanner.MinProfitBps,
		MinLiquidityScore:   cfg.Scanner.MinLiquidityScore,
		MaxTotalCostMicros:  usdToMicros(cfg.Scanner.MaxTotalCostUSD),
		NegRiskPayoffMicros: usdToMicros(cfg.Scanner.NegRiskPayoffUSD),
		SizePerBasketMicros: usdToMicros(cfg.Scanner.SizePerBasketUSD),
		Concurrency:         cfg.Scanner.Concurrency,
		OpportunityTTL:      cfg.Scanner.OpportunityTTL.Duration,
	}
	deps.SingleCondition = scanner.NewSingleCondition(deps.Model, scanCfg, logger)
	deps.NegRisk = scanner.NewNegRisk(deps.Model, scanCfg, logger)
	deps.Strategy = scanner.NewStrategyTemplates(deps.Model, scanCfg, logger)

	if cfg.Scanner.StrategiesPath != "" {
		strategies, err := scanner.LoadStrategiesFile(cfg.Scanner.StrategiesPath)
		if err != nil {
			return fail(fmt.Errorf("app: strategies: %w", err))
		}
		deps.Strategies = strategies
		logger.InfoContext(ctx, "strategies loaded",
			slog.String("path", cfg.Scanner.StrategiesPath),
			slog.Int("count", len(strategies)),
		)
	}

	// ── Risk ──
	limits := domain.RiskLimits{
		MaxTotalNotionalMicros:       usdToMicros(cfg.Risk.MaxTotalNotionalUSD),
		MaxPerStrategyNotionalMicros: usdToMicros(cfg.Risk.MaxPerStrategyNotionalUSD),
		MaxPerMarketNotionalMicros:   usdToMicros(cfg.Risk.MaxPerMarketNotionalUSD),
		MaxPerTopicNotionalMicros:    usdToMicros(cfg.Risk.MaxPerTopicNotionalUSD),
		MaxPerEntityNotionalMicros:   usdToMicros(cfg.Risk.MaxPerEntityNotionalUSD),
		MaxRuleRiskNotionalMicros:    usdToMicros(cfg.Risk.MaxRuleRiskNotionalUSD),
		MaxPositions:                 cfg.Risk.MaxPositions,
		MinProfitBps:                 cfg.Risk.MinProfitBps,
		MinLiquidityScore:            cfg.Risk.MinLiquidityScore,
	}
	// Rule-risk classification is an external capability; absent one, every
	// market defaults to accept with score 0.
	deps.Risk = risk.NewManager(limits, nil, logger)

	// ── Executor ──
	deps.Executor = executor.NewBasket(clob, deps.Prices, executor.Config{
		MaxSlippageBps: cfg.Executor.MaxSlippageBps,
		LegTimeout:     cfg.Executor.LegTimeout.Duration,
		QuoteTimeout:   cfg.Executor.QuoteTimeout.Duration,
	}, logger)

	// ── Reporting stores ──
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("app: postgres: %w", err))
		}
		closers = append(closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("app: migrations: %w", err))
			}
		}
		deps.Opportunities = postgres.NewOpportunityStore(pg.Pool())
		deps.Executions = postgres.NewExecutionStore(pg.Pool())
		logger.InfoContext(ctx, "reporting stores enabled")
	}

	// ── Archive ──
	if cfg.S3.Enabled {
		s3c, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("app: s3: %w", err))
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3c))
		logger.InfoContext(ctx, "archive enabled", slog.String("bucket", cfg.S3.Bucket))
	}

	// ── Notifications ──
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// usdToMicros converts a USD amount from config to int64 micro-units.
func usdToMicros(usd float64) int64 {
	if usd <= 0 {
		return 0
	}
	return int64(usd*domain.MicrosPerUSD + 0.5)
}
