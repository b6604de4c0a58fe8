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

// NegRisk scans exclusive condition groups (N >= 2 markets sharing a
// NegRiskID, exactly one resolving true) for two basket variants:
//
//   - all-yes: buy YES on every outcome; exactly one pays, payoff = 1.
//   - all-no: buy NO on every outcome; all but one pay, payoff = N-1.
//
// The payoff constant is always derived from the group's exclusivity arity,
// never hard-coded binary logic. A configured NegRiskPayoffMicros override
// (for venue-specific partial-rebalancing variants) replaces the derived
// all-no payoff after validation against the arity.
type NegRisk struct {
	model  *pricing.Model
	cfg    Config
	logger *slog.Logger
}

// NewNegRisk creates a NegRisk group scanner.
func NewNegRisk(model *pricing.Model, cfg Config, logger *slog.Logger) *NegRisk {
	return &NegRisk{
		model:  model,
		cfg:    cfg,
		logger: logger.With(slog.String("scanner", "negrisk")),
	}
}

// Name returns the scanner identifier.
func (s *NegRisk) Name() string { return "negrisk" }

// Scan groups markets by NegRiskID and evaluates each group in parallel.
// A group whose prices cannot all be fetched is skipped, not fatal.
func (s *NegRisk) Scan(ctx context.Context, markets []domain.Market) (ScanResult, error) {
	start := time.Now().UTC()
	groups := groupByNegRiskID(markets)

	var (
		mu      sync.Mutex
		opps    []domain.Opportunity
		skipped int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.concurrency())

	for negRiskID, group := range groups {
		g.Go(func() error {
			found, err := s.checkGroup(gctx, negRiskID, group)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				skipped++
				s.logger.WarnContext(gctx, "negrisk group skipped",
					slog.String("neg_risk_id", negRiskID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			opps = append(opps, found...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ScanResult{}, err
	}

	return s.cfg.finish(opps, len(groups), skipped, start), nil
}

func groupByNegRiskID(markets []domain.Market) map[string][]domain.Market {
	groups := make(map[string][]domain.Market)
	for _, m := range markets {
		if m.NegRisk && m.NegRiskID != "" && m.Status == domain.MarketStatusActive {
			groups[m.NegRiskID] = append(groups[m.NegRiskID], m)
		}
	}
	for id, g := range groups {
		if len(g) < 2 {
			delete(groups, id)
		}
	}
	return groups
}

// checkGroup evaluates both basket variants for one exclusive group.
func (s *NegRisk) checkGroup(ctx context.Context, negRiskID string, group []domain.Market) ([]domain.Opportunity, error) {
	arity := len(group)
	size := s.cfg.basketSize()

	yesBuys := make([]pricing.RequiredBuy, 0, arity)
	noBuys := make([]pricing.RequiredBuy, 0, arity)
	marketIDs := make([]string, 0, arity)
	eventIDs := make([]string, 0, arity)
	topic, entity := "", ""
	for _, m := range group {
		yes, okYes := m.Outcome(domain.SideYes)
		no, okNo := m.Outcome(domain.SideNo)
		if !okYes || !okNo {
			return nil, fmt.Errorf("scanner: negrisk group %s: market %s missing complementary outcomes", negRiskID, m.ID)
		}
		yesBuys = append(yesBuys, pricing.RequiredBuy{
			TokenID: yes.TokenID, Side: domain.SideYes, OutcomeLabel: yes.Label,
			MarketID: m.ID, Question: m.Question, SizeMicros: size,
		})
		noBuys = append(noBuys, pricing.RequiredBuy{
			TokenID: no.TokenID, Side: domain.SideNo, OutcomeLabel: no.Label,
			MarketID: m.ID, Question: m.Question, SizeMicros: size,
		})
		marketIDs = append(marketIDs, m.ID)
		if m.EventID != "" {
			eventIDs = append(eventIDs, m.EventID)
		}
		if topic == "" {
			topic = m.Topic
		}
		if entity == "" {
			entity = m.Entity
		}
	}

	var opps []domain.Opportunity

	// All-yes: exactly one outcome resolves true.
	if opp, err := s.buildBasket(ctx, basketSpec{
		buys:         yesBuys,
		payoffMicros: size,
		name:         fmt.Sprintf("negrisk all-yes: %d outcomes", arity),
		description:  "buy YES on every mutually exclusive outcome",
		tags:         []string{"negrisk", "all_yes", "neg_risk_id:" + negRiskID},
		marketIDs:    marketIDs, eventIDs: eventIDs, topic: topic, entity: entity,
	}); err != nil {
		return nil, err
	} else if opp != nil {
		opps = append(opps, *opp)
	}

	// All-no: all but one outcome pays, payoff derived from arity.
	noPayoff, err := s.allNoPayoff(arity, size)
	if err != nil {
		return nil, err
	}
	if opp, err := s.buildBasket(ctx, basketSpec{
		buys:         noBuys,
		payoffMicros: noPayoff,
		name:         fmt.Sprintf("negrisk all-no: %d outcomes", arity),
		description:  "buy NO on every mutually exclusive outcome",
		tags:         []string{"negrisk", "all_no", "neg_risk_id:" + negRiskID},
		marketIDs:    marketIDs, eventIDs: eventIDs, topic: topic, entity: entity,
	}); err != nil {
		return nil, err
	} else if opp != nil {
		opps = append(opps, *opp)
	}

	return opps, nil
}

// allNoPayoff derives the guaranteed all-no payoff from the exclusivity
// arity, or applies the configured override for partial-rebalancing
// variants after validating it against the arity.
func (s *NegRisk) allNoPayoff(arity int, sizeMicros int64) (int64, error) {
	derived := int64(arity-1) * sizeMicros
	if s.cfg.NegRiskPayoffMicros <= 0 {
		return derived, nil
	}
	override := s.cfg.NegRiskPayoffMicros * sizeMicros / domain.MicrosPerUSD
	if override > derived {
		return 0, fmt.Errorf("scanner: negrisk payoff override %d exceeds arity-derived maximum %d for %d outcomes",
			override, derived, arity)
	}
	return override, nil
}

type basketSpec struct {
	buys         []pricing.RequiredBuy
	payoffMicros int64
	name         string
	description  string
	tags         []string
	marketIDs    []string
	eventIDs     []string
	topic        string
	entity       string
}

func (s *NegRisk) buildBasket(ctx context.Context, spec basketSpec) (*domain.Opportunity, error) {
	priced, err := s.model.PriceLegs(ctx, spec.buys, s.cfg.PriceType)
	if err != nil {
		return nil, err
	}

	profit := s.model.Evaluate(priced.TotalCostMicros, spec.payoffMicros)
	if profit <= 0 {
		return nil, nil
	}

	size := s.cfg.basketSize()
	liq := pricing.LiquidityScore(priced.Legs, size)
	adjProfit := s.model.AdjustedProfit(priced.TotalCostMicros, spec.payoffMicros, priced.Legs, liq)

	now := time.Now().UTC()
	return &domain.Opportunity{
		ID:                    uuid.New().String(),
		Class:                 domain.ClassNegRiskRebalancing,
		Name:                  spec.name,
		Description:           spec.description,
		Legs:                  priced.Legs,
		TotalCostMicros:       priced.TotalCostMicros,
		WorstCasePayoffMicros: spec.payoffMicros,
		BestCasePayoffMicros:  spec.payoffMicros,
		ProfitMicros:          profit,
		AdjustedCostMicros:    s.model.AdjustedCost(priced.TotalCostMicros, priced.Legs),
		AdjustedProfitMicros:  adjProfit,
		RiskLevel:             domain.RiskLow,
		LiquidityScore:        liq,
		MaxSizeMicros:         pricing.MaxBasketSize(priced.Legs),
		MarketIDs:             spec.marketIDs,
		EventIDs:              spec.eventIDs,
		Topic:                 spec.topic,
		Entity:                spec.entity,
		Tags:                  spec.tags,
		DiscoveredAt:          now,
		ExpiresAt:             now.Add(s.cfg.OpportunityTTL),
	}, nil
}
