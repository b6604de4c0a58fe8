package scanner

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/oddlot/polyarb/internal/domain"
	"github.com/oddlot/polyarb/internal/pricing"
)

// quoteMap is an in-memory quote source for scanner tests.
type quoteMap map[string]domain.Quote

func (q quoteMap) GetQuote(_ context.Context, tokenID string, _ domain.PriceType) (domain.Quote, error) {
	quote, ok := q[tokenID]
	if !ok {
		return domain.Quote{}, domain.ErrQuoteUnavailable
	}
	return quote, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		PriceType:      domain.PriceTypeAsk,
		OpportunityTTL: time.Minute,
	}
}

// deepQuote returns a quote with enough depth to score full liquidity.
func deepQuote(tokenID string, priceMicros int64) domain.Quote {
	return domain.Quote{
		TokenID:     tokenID,
		Type:        domain.PriceTypeAsk,
		PriceMicros: priceMicros,
		DepthMicros: 2000 * domain.MicrosPerUSD,
		AsOf:        time.Now().UTC(),
	}
}

func binaryMarket(id, yesToken, noToken string) domain.Market {
	return domain.Market{
		ID:       id,
		Question: "will it happen " + id,
		Outcomes: []domain.Outcome{
			{TokenID: yesToken, Label: "Yes", Side: domain.SideYes},
			{TokenID: noToken, Label: "No", Side: domain.SideNo},
		},
		Arity:  2,
		Status: domain.MarketStatusActive,
	}
}

func TestRank(t *testing.T) {
	opps := []domain.Opportunity{
		{ID: "low-profit", AdjustedProfitMicros: 10_000, AdjustedCostMicros: 1_000_000},
		{ID: "best", AdjustedProfitMicros: 50_000, AdjustedCostMicros: 1_000_000},
		{ID: "tied-less-liquid", AdjustedProfitMicros: 30_000, AdjustedCostMicros: 1_000_000, LiquidityScore: 0.4},
		{ID: "tied-liquid", AdjustedProfitMicros: 30_000, AdjustedCostMicros: 1_000_000, LiquidityScore: 0.8},
		{ID: "tied-cheaper", AdjustedProfitMicros: 30_000, AdjustedCostMicros: 1_000_000, LiquidityScore: 0.8, TotalCostMicros: 500_000},
	}
	opps[3].TotalCostMicros = 900_000

	Rank(opps)

	want := []string{"best", "tied-cheaper", "tied-liquid", "tied-less-liquid", "low-profit"}
	for i, id := range want {
		if opps[i].ID != id {
			t.Errorf("rank[%d] = %s, want %s", i, opps[i].ID, id)
		}
	}
}

func TestScanResult_Top(t *testing.T) {
	res := ScanResult{Opportunities: []domain.Opportunity{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	if got := res.Top(2); len(got) != 2 || got[0].ID != "a" {
		t.Errorf("Top(2) = %v", got)
	}
	if got := res.Top(10); len(got) != 3 {
		t.Errorf("Top(10) returned %d, want all 3", len(got))
	}
}

func newTestModel(quotes quoteMap) *pricing.Model {
	return pricing.NewModel(quotes, 0, 0)
}
