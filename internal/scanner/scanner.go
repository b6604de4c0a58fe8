// Package scanner turns live prices into scored, ranked arbitrage
// opportunities. Scanners run over many markets in one pass; a data error
// on one market never aborts the batch.
package scanner

import (
	"context"
	"sort"
	"time"

	"github.com/oddlot/polyarb/internal/domain"
)

// Config holds the knobs shared by every scanner.
type Config struct {
	PriceType         domain.PriceType
	MinProfitBps      float64 // adjusted-profit floor; below it an opportunity is dropped, not ranked low
	MinLiquidityScore float64
	// MaxTotalCostMicros caps per-unit basket cost relative to payoff for
	// Dutch-book detection (e.g. 980_000 = 0.98 per 1.00 of payoff).
	MaxTotalCostMicros int64
	// NegRiskPayoffMicros overrides the arity-derived payoff for partial
	// rebalancing variants. Zero means derive from arity.
	NegRiskPayoffMicros int64
	// SizePerBasketMicros is the target basket size used for liquidity
	// scoring, micro-units.
	SizePerBasketMicros int64
	// Concurrency bounds parallel per-market evaluation.
	Concurrency int
	// OpportunityTTL is how long an emitted opportunity stays executable.
	OpportunityTTL time.Duration
}

// ScanResult is one scan pass over a set of markets or strategies.
type ScanResult struct {
	Opportunities  []domain.Opportunity
	MarketsScanned int
	Skipped        int // markets skipped for data errors
	Duration       time.Duration
	PriceType      domain.PriceType
	Timestamp      time.Time
}

// Top returns the n best opportunities (the result is already ranked).
func (r ScanResult) Top(n int) []domain.Opportunity {
	if n >= len(r.Opportunities) {
		return r.Opportunities
	}
	return r.Opportunities[:n]
}

// Scanner is the common shape of all opportunity scanners.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, markets []domain.Market) (ScanResult, error)
}

// Rank orders opportunities by adjusted profit descending, breaking ties by
// liquidity score descending, then by lower total notional so that
// capital-efficient opportunities come first.
func Rank(opps []domain.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]
		if a.AdjustedProfitMicros != b.AdjustedProfitMicros {
			return a.AdjustedProfitMicros > b.AdjustedProfitMicros
		}
		if a.LiquidityScore != b.LiquidityScore {
			return a.LiquidityScore > b.LiquidityScore
		}
		return a.TotalCostMicros < b.TotalCostMicros
	})
}

// passes applies the threshold policy: below-threshold opportunities are
// dropped before ranking.
func (c Config) passes(o domain.Opportunity) bool {
	if o.AdjustedProfitBps() < c.MinProfitBps {
		return false
	}
	if o.LiquidityScore < c.MinLiquidityScore {
		return false
	}
	return true
}

// finish filters, ranks and stamps a scan pass.
func (c Config) finish(opps []domain.Opportunity, scanned, skipped int, start time.Time) ScanResult {
	kept := opps[:0]
	for _, o := range opps {
		if c.passes(o) {
			kept = append(kept, o)
		}
	}
	Rank(kept)
	now := time.Now().UTC()
	return ScanResult{
		Opportunities:  kept,
		MarketsScanned: scanned,
		Skipped:        skipped,
		Duration:       now.Sub(start),
		PriceType:      c.PriceType,
		Timestamp:      now,
	}
}

// basketSize returns the configured liquidity-scoring size, defaulting to
// one basket unit.
func (c Config) basketSize() int64 {
	if c.SizePerBasketMicros > 0 {
		return c.SizePerBasketMicros
	}
	return domain.MicrosPerUSD
}

func (c Config) concurrency() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return 8
}
