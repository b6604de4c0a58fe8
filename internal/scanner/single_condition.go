package scanner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oddlot/polyarb/internal/domain"
	"github.com/oddlot/polyarb/internal/pricing"
)

// SingleCondition scans binary markets for the YES/NO Dutch book: when
// ask(YES) + ask(NO) + fee < 1, buying both sides locks in the difference.
type SingleCondition struct {
	model  *pricing.Model
	cfg    Config
	logger *slog.Logger
}

// NewSingleCondition creates a single-condition scanner.
func NewSingleCondition(model *pricing.Model, cfg Config, logger *slog.Logger) *SingleCondition {
	return &SingleCondition{
		model:  model,
		cfg:    cfg,
		logger: logger.With(slog.String("scanner", "single_condition")),
	}
}

// Name returns the scanner identifier.
func (s *SingleCondition) Name() string { return "single_condition" }

// Scan evaluates every binary market in parallel. Per-market data errors
// are logged and skipped; they never abort the pass.
func (s *SingleCondition) Scan(ctx context.Context, markets []domain.Market) (ScanResult, error) {
	start := time.Now().UTC()

	var (
		mu      sync.Mutex
		opps    []domain.Opportunity
		skipped int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.concurrency())

	scanned := 0
	for _, m := range markets {
		if !m.Binary() || m.Status != domain.MarketStatusActive {
			continue
		}
		scanned++
		g.Go(func() error {
			opp, err := s.checkMarket(gctx, m)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				skipped++
				s.logger.WarnContext(gctx, "market skipped",
					slog.String("market_id", m.ID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			if opp != nil {
				opps = append(opps, *opp)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ScanResult{}, err
	}

	return s.cfg.finish(opps, scanned, skipped, start), nil
}

// checkMarket prices both sides of one binary market and emits an
// opportunity when the Dutch book closes below one.
func (s *SingleCondition) checkMarket(ctx context.Context, m domain.Market) (*domain.Opportunity, error) {
	yes, okYes := m.Outcome(domain.SideYes)
	no, okNo := m.Outcome(domain.SideNo)
	if !okYes || !okNo {
		return nil, nil
	}

	size := s.cfg.basketSize()
	buys := []pricing.RequiredBuy{
		{TokenID: yes.TokenID, Side: domain.SideYes, OutcomeLabel: yes.Label, MarketID: m.ID, Question: m.Question, SizeMicros: size},
		{TokenID: no.TokenID, Side: domain.SideNo, OutcomeLabel: no.Label, MarketID: m.ID, Question: m.Question, SizeMicros: size},
	}

	priced, err := s.model.PriceLegs(ctx, buys, s.cfg.PriceType)
	if err != nil {
		return nil, err
	}

	// Exactly one side resolves true, so the pair always pays 1 per unit.
	payoff := size
	if s.cfg.MaxTotalCostMicros > 0 && priced.TotalCostMicros >= s.cfg.MaxTotalCostMicros*size/domain.MicrosPerUSD {
		return nil, nil
	}

	profit := s.model.Evaluate(priced.TotalCostMicros, payoff)
	if profit <= 0 {
		return nil, nil
	}

	liq := pricing.LiquidityScore(priced.Legs, size)
	adjProfit := s.model.AdjustedProfit(priced.TotalCostMicros, payoff, priced.Legs, liq)

	now := time.Now().UTC()
	opp := &domain.Opportunity{
		ID:                    uuid.New().String(),
		Class:                 domain.ClassSingleCondition,
		Name:                  "YES/NO dutch book: " + truncate(m.Question, 60),
		Description:           "buy both sides below combined payoff",
		Legs:                  priced.Legs,
		TotalCostMicros:       priced.TotalCostMicros,
		WorstCasePayoffMicros: payoff,
		BestCasePayoffMicros:  payoff,
		ProfitMicros:          profit,
		AdjustedCostMicros:    s.model.AdjustedCost(priced.TotalCostMicros, priced.Legs),
		AdjustedProfitMicros:  adjProfit,
		RiskLevel:             domain.RiskLow,
		LiquidityScore:        liq,
		MaxSizeMicros:         pricing.MaxBasketSize(priced.Legs),
		MarketIDs:             []string{m.ID},
		Topic:                 m.Topic,
		Entity:                m.Entity,
		DiscoveredAt:          now,
		ExpiresAt:             now.Add(s.cfg.OpportunityTTL),
	}
	if m.EventID != "" {
		opp.EventIDs = []string{m.EventID}
	}
	return opp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
