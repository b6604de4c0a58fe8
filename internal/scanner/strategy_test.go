package scanner

import (
	"context"
	"testing"

	"github.com/oddlot/polyarb/internal/domain"
)

func noPosition(marketID, tokenID string) domain.StrategyPosition {
	return domain.StrategyPosition{
		MarketID:     marketID,
		MarketSlug:   marketID + "-slug",
		OutcomeLabel: "No",
		TokenID:      tokenID,
		Side:         domain.SideNo,
	}
}

func TestStrategyTemplates_ScanStrategies_AllNo(t *testing.T) {
	quotes := quoteMap{
		"no-1": deepQuote("no-1", 550_000),
		"no-2": deepQuote("no-2", 550_000),
		"no-3": deepQuote("no-3", 550_000),
	}
	st := domain.Strategy{
		ID:     "s1",
		Name:   "three-way all-no",
		Method: domain.MethodAllNo,
		Type:   domain.StrategyPureLogical,
		Positions: []domain.StrategyPosition{
			noPosition("m1", "no-1"), noPosition("m2", "no-2"), noPosition("m3", "no-3"),
		},
	}
	s := NewStrategyTemplates(newTestModel(quotes), testConfig(), testLogger())

	res, err := s.ScanStrategies(context.Background(), []domain.Strategy{st})
	if err != nil {
		t.Fatalf("ScanStrategies: %v", err)
	}
	if len(res.Opportunities) != 1 {
		t.Fatalf("opportunities = %d, want 1", len(res.Opportunities))
	}
	opp := res.Opportunities[0]
	if opp.Class != domain.ClassTemplateBased || opp.StrategyID != "s1" {
		t.Errorf("class/strategy = %s/%s", opp.Class, opp.StrategyID)
	}
	// 3 NO positions: payoff (n-1) = 2 against cost 1.65.
	if opp.WorstCasePayoffMicros != 2*domain.MicrosPerUSD {
		t.Errorf("payoff = %d, want %d", opp.WorstCasePayoffMicros, 2*domain.MicrosPerUSD)
	}
	if opp.ProfitMicros != 350_000 {
		t.Errorf("profit = %d, want 350000", opp.ProfitMicros)
	}
	if opp.RiskLevel != domain.RiskLow {
		t.Errorf("risk level = %s, want low for pure_logical", opp.RiskLevel)
	}
}

func TestStrategyTemplates_ScanStrategies_BalancedUsesLogicalSpec(t *testing.T) {
	quotes := quoteMap{
		"a1": deepQuote("a1", 500_000),
		"b1": deepQuote("b1", 500_000),
	}
	st := domain.Strategy{
		ID:     "s2",
		Name:   "hedged pair",
		Method: domain.MethodBalanced,
		Type:   domain.StrategyHighProbHedge,
		SideA:  []domain.StrategyPosition{{MarketID: "ma", TokenID: "a1", Side: domain.SideYes, OutcomeLabel: "Yes"}},
		SideB:  []domain.StrategyPosition{{MarketID: "mb", TokenID: "b1", Side: domain.SideNo, OutcomeLabel: "No"}},
		LogicalSpec: &domain.LogicalSpec{
			WorstCasePayoffMicros: 1_100_000,
			BestCasePayoffMicros:  1_300_000,
		},
	}
	s := NewStrategyTemplates(newTestModel(quotes), testConfig(), testLogger())

	res, err := s.ScanStrategies(context.Background(), []domain.Strategy{st})
	if err != nil {
		t.Fatalf("ScanStrategies: %v", err)
	}
	if len(res.Opportunities) != 1 {
		t.Fatalf("opportunities = %d, want 1", len(res.Opportunities))
	}
	opp := res.Opportunities[0]
	if opp.WorstCasePayoffMicros != 1_100_000 || opp.BestCasePayoffMicros != 1_300_000 {
		t.Errorf("payoffs = %d/%d, want 1100000/1300000", opp.WorstCasePayoffMicros, opp.BestCasePayoffMicros)
	}
	if opp.ProfitMicros != 100_000 {
		t.Errorf("profit = %d, want 100000 (worst case 1.1 against cost 1.0)", opp.ProfitMicros)
	}
	if opp.RiskLevel != domain.RiskMedium {
		t.Errorf("risk level = %s, want medium for high_prob_hedge", opp.RiskLevel)
	}
}

type fixedEvaluator struct {
	costMicros   int64 // 0: cost is the sum of the handed prices
	payoffMicros int64
}

func (e fixedEvaluator) Evaluate(_ context.Context, prices map[string]int64) (int64, int64, error) {
	cost := e.costMicros
	if cost == 0 {
		for _, p := range prices {
			cost += p
		}
	}
	return cost, e.payoffMicros, nil
}

func TestStrategyTemplates_ScanStrategies_CustomEvaluator(t *testing.T) {
	quotes := quoteMap{
		"c1": deepQuote("c1", 400_000),
		"c2": deepQuote("c2", 400_000),
	}
	st := domain.Strategy{
		ID:     "s3",
		Name:   "custom basket",
		Method: domain.MethodCustom,
		Type:   domain.StrategyDirectional,
		Positions: []domain.StrategyPosition{
			{MarketID: "mc1", TokenID: "c1", Side: domain.SideYes, OutcomeLabel: "Yes"},
			{MarketID: "mc2", TokenID: "c2", Side: domain.SideYes, OutcomeLabel: "Yes"},
		},
		Evaluator: fixedEvaluator{payoffMicros: domain.MicrosPerUSD},
	}
	s := NewStrategyTemplates(newTestModel(quotes), testConfig(), testLogger())

	res, err := s.ScanStrategies(context.Background(), []domain.Strategy{st})
	if err != nil {
		t.Fatalf("ScanStrategies: %v", err)
	}
	if len(res.Opportunities) != 1 {
		t.Fatalf("opportunities = %d, want 1", len(res.Opportunities))
	}
	opp := res.Opportunities[0]
	if opp.ProfitMicros != 200_000 {
		t.Errorf("profit = %d, want 200000 (payoff 1.0 against cost 0.8)", opp.ProfitMicros)
	}
	if opp.RiskLevel != domain.RiskHigh {
		t.Errorf("risk level = %s, want high for directional", opp.RiskLevel)
	}
}

func TestStrategyTemplates_ScanStrategies_CustomEvaluatorCostWins(t *testing.T) {
	// Leg pricing says the basket costs 0.8; the evaluator's cost model
	// says 0.7 (it nets an existing position). The evaluator owns cost.
	quotes := quoteMap{
		"c1": deepQuote("c1", 400_000),
		"c2": deepQuote("c2", 400_000),
	}
	st := domain.Strategy{
		ID:     "s5",
		Name:   "netted custom basket",
		Method: domain.MethodCustom,
		Type:   domain.StrategyDirectional,
		Positions: []domain.StrategyPosition{
			{MarketID: "mc1", TokenID: "c1", Side: domain.SideYes, OutcomeLabel: "Yes"},
			{MarketID: "mc2", TokenID: "c2", Side: domain.SideYes, OutcomeLabel: "Yes"},
		},
		Evaluator: fixedEvaluator{costMicros: 700_000, payoffMicros: domain.MicrosPerUSD},
	}
	s := NewStrategyTemplates(newTestModel(quotes), testConfig(), testLogger())

	res, err := s.ScanStrategies(context.Background(), []domain.Strategy{st})
	if err != nil {
		t.Fatalf("ScanStrategies: %v", err)
	}
	if len(res.Opportunities) != 1 {
		t.Fatalf("opportunities = %d, want 1", len(res.Opportunities))
	}
	opp := res.Opportunities[0]
	if opp.TotalCostMicros != 700_000 {
		t.Errorf("cost = %d, want the evaluator's 700000, not leg pricing's 800000", opp.TotalCostMicros)
	}
	if opp.ProfitMicros != 300_000 {
		t.Errorf("profit = %d, want 300000 (payoff 1.0 against evaluator cost 0.7)", opp.ProfitMicros)
	}
}

func TestStrategyTemplates_ScanStrategies_InvalidStrategySkipped(t *testing.T) {
	bad := domain.Strategy{
		ID:     "s4",
		Method: domain.MethodAllNo,
		Positions: []domain.StrategyPosition{
			{MarketID: "m1", TokenID: "y1", Side: domain.SideYes, OutcomeLabel: "Yes"},
		},
	}
	s := NewStrategyTemplates(newTestModel(quoteMap{}), testConfig(), testLogger())

	res, err := s.ScanStrategies(context.Background(), []domain.Strategy{bad})
	if err != nil {
		t.Fatalf("ScanStrategies: %v", err)
	}
	if res.Skipped != 1 || len(res.Opportunities) != 0 {
		t.Errorf("skipped=%d opps=%d, want 1/0", res.Skipped, len(res.Opportunities))
	}
}

func TestRiskLevelFor(t *testing.T) {
	tests := []struct {
		st   domain.StrategyType
		want domain.RiskLevel
	}{
		{domain.StrategyPureLogical, domain.RiskLow},
		{domain.StrategyHighProbHedge, domain.RiskMedium},
		{domain.StrategyDirectional, domain.RiskHigh},
		{domain.StrategyType("unknown"), domain.RiskHigh},
	}
	for _, tt := range tests {
		if got := riskLevelFor(tt.st); got != tt.want {
			t.Errorf("riskLevelFor(%s) = %s, want %s", tt.st, got, tt.want)
		}
	}
}
