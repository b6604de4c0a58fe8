package domain

import "context"

// RiskLimits is the full exposure-limit configuration the risk manager
// enforces. All notionals are micro-USD.
type RiskLimits struct {
	MaxTotalNotionalMicros       int64
	MaxPerStrategyNotionalMicros int64
	MaxPerMarketNotionalMicros   int64
	MaxPerTopicNotionalMicros    int64
	MaxPerEntityNotionalMicros   int64
	MaxRuleRiskNotionalMicros    int64 // cap on exposure to RiskHigh markets

	MaxPositions int

	MinProfitBps      float64 // adjusted profit threshold
	MinLiquidityScore float64 // 0..1
}

// RuleRiskVerdict is the gate an external rule analysis attaches to a market.
type RuleRiskVerdict string

const (
	RuleRiskAccept RuleRiskVerdict = "accept"
	RuleRiskReview RuleRiskVerdict = "review" // requires an explicit override
	RuleRiskReject RuleRiskVerdict = "reject"
)

// RuleRisk is a per-market classification produced by an external analyzer
// (e.g. an LLM reading resolution rules). The core consumes it, never
// computes it.
type RuleRisk struct {
	Verdict RuleRiskVerdict
	Score   float64 // 0..1, higher = riskier
	Notes   []string
}

// RuleRiskClassifier supplies rule-risk classifications. Implementations
// are injected; when absent the risk manager defaults every market to
// RuleRiskAccept with score 0.
type RuleRiskClassifier interface {
	Classify(ctx context.Context, marketID string) (RuleRisk, error)
}
