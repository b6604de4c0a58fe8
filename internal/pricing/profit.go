package pricing

import (
	"context"
	"fmt"

	"github.com/oddlot/polyarb/internal/domain"
)

// QuoteGetter is the read surface the profit model needs. *Accessor
// satisfies it; tests substitute an in-memory fake.
type QuoteGetter interface {
	GetQuote(ctx context.Context, tokenID string, pt domain.PriceType) (domain.Quote, error)
}

// RequiredBuy is one leg a basket must buy, before pricing.
type RequiredBuy struct {
	TokenID      string
	Side         domain.OutcomeSide
	OutcomeLabel string
	MarketID     string
	Question     string
	SizeMicros   int64 // micro-shares per basket unit
}

// PricedLegs is the result of pricing a set of required buys.
type PricedLegs struct {
	Legs            []domain.Leg
	TotalCostMicros int64
}

// Model computes cost, guaranteed payoff and spread/liquidity adjusted
// profit for a set of required buys. All arithmetic is int64 micro-units.
type Model struct {
	prices QuoteGetter

	// FeeBps is the venue taker fee applied against total cost.
	FeeBps int64
	// LiquidityDiscountBps scales the penalty for thin books: the full
	// value applies at liquidity score 0 and none at score 1.
	LiquidityDiscountBps int64
}

// NewModel creates a profit model over the given quote source.
func NewModel(prices QuoteGetter, feeBps, liquidityDiscountBps int64) *Model {
	return &Model{prices: prices, FeeBps: feeBps, LiquidityDiscountBps: liquidityDiscountBps}
}

// PriceLegs fetches a quote for every required buy independently and sums
// the cost. A missing or stale quote on any leg is a hard failure for the
// whole basket, not a zero.
func (m *Model) PriceLegs(ctx context.Context, buys []RequiredBuy, pt domain.PriceType) (PricedLegs, error) {
	out := PricedLegs{Legs: make([]domain.Leg, 0, len(buys))}
	for _, b := range buys {
		size := b.SizeMicros
		if size <= 0 {
			size = domain.MicrosPerUSD // one share per basket unit
		}
		q, err := m.prices.GetQuote(ctx, b.TokenID, pt)
		if err != nil {
			return PricedLegs{}, fmt.Errorf("pricing: leg %s(%s): %w", b.Side, b.OutcomeLabel, err)
		}
		leg := domain.Leg{
			TokenID:      b.TokenID,
			Side:         b.Side,
			OutcomeLabel: b.OutcomeLabel,
			MarketID:     b.MarketID,
			Question:     b.Question,
			PriceMicros:  q.PriceMicros,
			PriceType:    pt,
			SizeMicros:   size,
			SpreadBps:    q.SpreadBps,
			DepthMicros:  q.DepthMicros,
		}
		out.Legs = append(out.Legs, leg)
		out.TotalCostMicros += leg.NotionalMicros()
	}
	return out, nil
}

// Evaluate returns the raw worst-case profit after fees.
func (m *Model) Evaluate(totalCostMicros, payoffMicros int64) int64 {
	fee := totalCostMicros * m.FeeBps / 10_000
	return payoffMicros - totalCostMicros - fee
}

// AdjustedCost returns the total cost plus a half-spread penalty per leg:
// crossing each leg's book is assumed to cost half the observed spread.
func (m *Model) AdjustedCost(totalCostMicros int64, legs []domain.Leg) int64 {
	adjusted := totalCostMicros
	for _, l := range legs {
		adjusted += l.NotionalMicros() * l.SpreadBps / 2 / 10_000
	}
	return adjusted
}

// AdjustedProfit applies the spread penalty and a liquidity discount that
// decreases monotonically with available depth (via the liquidity score).
func (m *Model) AdjustedProfit(totalCostMicros, payoffMicros int64, legs []domain.Leg, liquidityScore float64) int64 {
	adjCost := m.AdjustedCost(totalCostMicros, legs)
	profit := m.Evaluate(adjCost, payoffMicros)
	discount := int64(float64(totalCostMicros*m.LiquidityDiscountBps) / 10_000 * (1 - liquidityScore))
	return profit - discount
}

// LiquidityScore scores how much of the required size is available at the
// quoted prices, 0..1. The thinnest leg is the limiting factor. Legs with
// unknown depth score a neutral 0.5.
func LiquidityScore(legs []domain.Leg, requiredSizeMicros int64) float64 {
	if len(legs) == 0 {
		return 0
	}

	minDepth := int64(-1)
	for _, l := range legs {
		if l.DepthMicros <= 0 {
			continue
		}
		if minDepth < 0 || l.DepthMicros < minDepth {
			minDepth = l.DepthMicros
		}
	}
	if minDepth < 0 {
		return 0.5
	}

	if requiredSizeMicros > 0 && minDepth >= requiredSizeMicros {
		return 1.0
	}

	switch {
	case minDepth >= 1000*domain.MicrosPerUSD:
		return 1.0
	case minDepth >= 500*domain.MicrosPerUSD:
		return 0.8
	case minDepth >= 100*domain.MicrosPerUSD:
		return 0.6
	case minDepth >= 50*domain.MicrosPerUSD:
		return 0.4
	default:
		return 0.2
	}
}

// MaxBasketSize returns the largest basket size (micro-units) fillable at
// the quoted prices, limited by the thinnest leg.
func MaxBasketSize(legs []domain.Leg) int64 {
	maxSize := int64(-1)
	for _, l := range legs {
		if l.SizeMicros <= 0 {
			continue
		}
		units := l.DepthMicros * domain.MicrosPerUSD / l.SizeMicros
		if maxSize < 0 || units < maxSize {
			maxSize = units
		}
	}
	if maxSize < 0 {
		return 0
	}
	return maxSize
}
