package domain

import (
	"fmt"
	"time"
)

// OpportunityClass classifies how an opportunity was discovered.
type OpportunityClass string

const (
	ClassSingleCondition    OpportunityClass = "single_condition"    // YES+NO Dutch book
	ClassNegRiskRebalancing OpportunityClass = "negrisk_rebalancing" // exclusive-group basket
	ClassTemplateBased      OpportunityClass = "template_based"      // from a strategy spec
)

// RiskLevel is the rule-risk assessment attached to an opportunity.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Leg is one priced buy a basket requires.
type Leg struct {
	TokenID      string
	Side         OutcomeSide
	OutcomeLabel string
	MarketID     string
	Question     string

	PriceMicros int64
	PriceType   PriceType
	SizeMicros  int64 // required size per basket unit, micro-shares

	SpreadBps   int64
	DepthMicros int64 // available size at the quoted price
}

// NotionalMicros is the leg's cost for one basket unit.
func (l Leg) NotionalMicros() int64 {
	return l.PriceMicros * l.SizeMicros / MicrosPerUSD
}

func (l Leg) String() string {
	return fmt.Sprintf("%s(%s) @ %.4f", l.Side, l.OutcomeLabel, float64(l.PriceMicros)/MicrosPerUSD)
}

// Opportunity is a scored, ephemeral arbitrage candidate. It is owned by the
// evaluation that created it until handed to exactly one execution attempt,
// and is never persisted by the core itself.
type Opportunity struct {
	ID         string
	Class      OpportunityClass
	StrategyID string

	Name        string
	Description string
	Legs        []Leg

	TotalCostMicros       int64
	WorstCasePayoffMicros int64
	BestCasePayoffMicros  int64
	ProfitMicros          int64 // worst-case payoff minus cost minus fee

	AdjustedCostMicros   int64 // cost plus half-spread penalties
	AdjustedProfitMicros int64 // profit after spread and liquidity discounts

	RiskLevel     RiskLevel
	RuleRiskNotes []string

	LiquidityScore float64 // 0..1; 1 = full size available at quoted prices
	MaxSizeMicros  int64   // largest basket size before walking the book

	MarketIDs []string
	EventIDs  []string
	Topic     string
	Entity    string
	Tags      []string

	DiscoveredAt time.Time
	ExpiresAt    time.Time
}

// ProfitBps returns raw profit relative to cost in basis points.
// Presentation only; never used in sizing or limit math.
func (o Opportunity) ProfitBps() float64 {
	if o.TotalCostMicros <= 0 {
		return 0
	}
	return float64(o.ProfitMicros) / float64(o.TotalCostMicros) * 10_000
}

// AdjustedProfitBps returns spread/liquidity adjusted profit in basis points.
func (o Opportunity) AdjustedProfitBps() float64 {
	if o.AdjustedCostMicros <= 0 {
		return 0
	}
	return float64(o.AdjustedProfitMicros) / float64(o.AdjustedCostMicros) * 10_000
}

// NotionalMicros is the capital required for a basket of the given size,
// where sizeMicros is the basket unit count in micro-units.
func (o Opportunity) NotionalMicros(sizeMicros int64) int64 {
	return o.TotalCostMicros * sizeMicros / MicrosPerUSD
}

func (o Opportunity) String() string {
	return fmt.Sprintf("Opportunity(%s, profit=%.1fbps, legs=%d)", o.Class, o.AdjustedProfitBps(), len(o.Legs))
}
