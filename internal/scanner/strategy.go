package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oddlot/polyarb/internal/domain"
	"github.com/oddlot/polyarb/internal/pricing"
)

// StrategyTemplates evaluates externally authored strategy specifications
// against live prices. Strategies are read-only input: the scanner prices
// their positions, applies the method's payoff template and emits an
// opportunity when the worst case clears the configured thresholds.
type StrategyTemplates struct {
	model  *pricing.Model
	cfg    Config
	logger *slog.Logger
}

// NewStrategyTemplates creates a strategy template scanner.
func NewStrategyTemplates(model *pricing.Model, cfg Config, logger *slog.Logger) *StrategyTemplates {
	return &StrategyTemplates{
		model:  model,
		cfg:    cfg,
		logger: logger.With(slog.String("scanner", "strategy")),
	}
}

// Name returns the scanner identifier.
func (s *StrategyTemplates) Name() string { return "strategy" }

// ScanStrategies evaluates each strategy in parallel. Invalid strategies
// and per-strategy pricing failures are skipped, never fatal for the pass.
func (s *StrategyTemplates) ScanStrategies(ctx context.Context, strategies []domain.Strategy) (ScanResult, error) {
	start := time.Now().UTC()

	var (
		mu      sync.Mutex
		opps    []domain.Opportunity
		skipped int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.concurrency())

	for _, st := range strategies {
		g.Go(func() error {
			opp, err := s.checkStrategy(gctx, st)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				skipped++
				s.logger.WarnContext(gctx, "strategy skipped",
					slog.String("strategy_id", st.ID),
					slog.String("name", st.Name),
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

	return s.cfg.finish(opps, len(strategies), skipped, start), nil
}

// checkStrategy validates, prices and scores one strategy.
func (s *StrategyTemplates) checkStrategy(ctx context.Context, st domain.Strategy) (*domain.Opportunity, error) {
	if err := st.Validate(); err != nil {
		return nil, err
	}

	size := s.cfg.basketSize()
	buys := make([]pricing.RequiredBuy, 0, len(st.AllPositions()))
	for _, p := range st.AllPositions() {
		buys = append(buys, pricing.RequiredBuy{
			TokenID:      p.TokenID,
			Side:         p.Side,
			OutcomeLabel: p.OutcomeLabel,
			MarketID:     p.MarketID,
			Question:     p.MarketSlug,
			SizeMicros:   size,
		})
	}

	priced, err := s.model.PriceLegs(ctx, buys, s.cfg.PriceType)
	if err != nil {
		return nil, err
	}

	cost, worst, best, err := s.payoffs(ctx, st, priced, size)
	if err != nil {
		return nil, err
	}

	profit := s.model.Evaluate(cost, worst)
	if profit <= 0 {
		return nil, nil
	}

	liq := pricing.LiquidityScore(priced.Legs, size)
	adjProfit := s.model.AdjustedProfit(cost, worst, priced.Legs, liq)

	now := time.Now().UTC()
	return &domain.Opportunity{
		ID:                    uuid.New().String(),
		Class:                 domain.ClassTemplateBased,
		StrategyID:            st.ID,
		Name:                  st.Name,
		Description:           st.Subtitle,
		Legs:                  priced.Legs,
		TotalCostMicros:       cost,
		WorstCasePayoffMicros: worst,
		BestCasePayoffMicros:  best,
		ProfitMicros:          profit,
		AdjustedCostMicros:    s.model.AdjustedCost(cost, priced.Legs),
		AdjustedProfitMicros:  adjProfit,
		RiskLevel:             riskLevelFor(st.Type),
		LiquidityScore:        liq,
		MaxSizeMicros:         pricing.MaxBasketSize(priced.Legs),
		MarketIDs:             st.MarketIDs(),
		EventIDs:              st.EventIDs(),
		Topic:                 st.Topic,
		Entity:                st.Entity,
		Tags:                  st.Tags,
		DiscoveredAt:          now,
		ExpiresAt:             now.Add(s.cfg.OpportunityTTL),
	}, nil
}

// payoffs resolves the basket cost and the worst/best case payoffs per the
// strategy method. Templated methods cost what their priced legs cost; a
// custom evaluator owns the cost model and its result replaces leg pricing.
func (s *StrategyTemplates) payoffs(ctx context.Context, st domain.Strategy, priced pricing.PricedLegs, sizeMicros int64) (cost, worst, best int64, err error) {
	cost = priced.TotalCostMicros

	switch st.Method {
	case domain.MethodAllNo:
		// Over an exclusive group, all NO positions pay except the one
		// outcome that resolves true. An explicit logical spec wins when
		// the group is not fully exclusive.
		if st.LogicalSpec != nil {
			return cost, scalePayoff(st.LogicalSpec.WorstCasePayoffMicros, sizeMicros),
				scalePayoff(st.LogicalSpec.BestCasePayoffMicros, sizeMicros), nil
		}
		n := int64(len(st.Positions))
		derived := (n - 1) * sizeMicros
		return cost, derived, derived, nil

	case domain.MethodBalanced:
		return cost, scalePayoff(st.LogicalSpec.WorstCasePayoffMicros, sizeMicros),
			scalePayoff(st.LogicalSpec.BestCasePayoffMicros, sizeMicros), nil

	case domain.MethodCustom:
		prices := make(map[string]int64, len(priced.Legs))
		for _, l := range priced.Legs {
			prices[l.TokenID] = l.PriceMicros
		}
		evalCost, payoff, err := st.Evaluator.Evaluate(ctx, prices)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("scanner: custom evaluator for %s: %w", st.ID, err)
		}
		if evalCost > 0 {
			cost = evalCost * sizeMicros / domain.MicrosPerUSD
		}
		scaled := payoff * sizeMicros / domain.MicrosPerUSD
		return cost, scaled, scaled, nil

	default:
		return 0, 0, 0, fmt.Errorf("scanner: %w: method %q", domain.ErrInvalidStrategy, st.Method)
	}
}

// scalePayoff converts a per-unit payoff into the configured basket size.
func scalePayoff(perUnitMicros, sizeMicros int64) int64 {
	return perUnitMicros * sizeMicros / domain.MicrosPerUSD
}

func riskLevelFor(t domain.StrategyType) domain.RiskLevel {
	switch t {
	case domain.StrategyPureLogical:
		return domain.RiskLow
	case domain.StrategyHighProbHedge:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}
