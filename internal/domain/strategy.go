package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// StrategyMethod is the payoff template of a strategy.
type StrategyMethod string

const (
	// MethodAllNo buys the NO side of every position; the basket wins
	// unless all referenced outcomes resolve true.
	MethodAllNo StrategyMethod = "all_no"
	// MethodBalanced holds two complementary baskets, each paying a
	// specified worst-case amount regardless of resolution.
	MethodBalanced StrategyMethod = "balanced"
	// MethodCustom delegates cost/payoff evaluation to a caller-supplied
	// CustomEvaluator.
	MethodCustom StrategyMethod = "custom"
)

// StrategyType classifies residual risk.
type StrategyType string

const (
	StrategyPureLogical   StrategyType = "pure_logical"    // all paths profitable
	StrategyHighProbHedge StrategyType = "high_prob_hedge" // small residual risk
	StrategyDirectional   StrategyType = "directional"     // speculative
)

// StrategyPosition references one market outcome a strategy trades.
type StrategyPosition struct {
	EventID      string
	MarketID     string
	MarketSlug   string
	OutcomeLabel string
	TokenID      string
	Side         OutcomeSide
}

// LogicalSpec describes the payoff structure of a strategy: which worst and
// best case payoffs its basket guarantees across resolution scenarios.
type LogicalSpec struct {
	Description           string
	WorstCasePayoffMicros int64
	BestCasePayoffMicros  int64
}

// CustomEvaluator supplies cost/payoff logic for MethodCustom strategies.
// It is a pure function of the per-token prices it is handed.
type CustomEvaluator interface {
	Evaluate(ctx context.Context, pricesMicros map[string]int64) (costMicros, payoffMicros int64, err error)
}

// Strategy is an externally authored, read-only basket specification.
// The core never mutates or persists strategies.
type Strategy struct {
	ID       string
	Name     string
	Subtitle string
	Method   StrategyMethod
	Type     StrategyType

	Positions []StrategyPosition // for all_no and custom
	SideA     []StrategyPosition // for balanced
	SideB     []StrategyPosition

	LogicalSpec *LogicalSpec
	Evaluator   CustomEvaluator // required for MethodCustom

	Tags      []string
	Topic     string
	Entity    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AllPositions returns every position in the strategy, both sides merged
// for balanced strategies.
func (s Strategy) AllPositions() []StrategyPosition {
	if s.Method == MethodBalanced {
		out := make([]StrategyPosition, 0, len(s.SideA)+len(s.SideB))
		out = append(out, s.SideA...)
		return append(out, s.SideB...)
	}
	return s.Positions
}

// MarketIDs returns the unique market IDs the strategy touches.
func (s Strategy) MarketIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, p := range s.AllPositions() {
		if !seen[p.MarketID] {
			seen[p.MarketID] = true
			ids = append(ids, p.MarketID)
		}
	}
	return ids
}

// EventIDs returns the unique event IDs the strategy touches.
func (s Strategy) EventIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, p := range s.AllPositions() {
		if p.EventID != "" && !seen[p.EventID] {
			seen[p.EventID] = true
			ids = append(ids, p.EventID)
		}
	}
	return ids
}

// Validate checks the strategy for internal consistency and returns a
// combined error describing every problem found.
func (s Strategy) Validate() error {
	var errs []string

	if len(s.AllPositions()) == 0 {
		errs = append(errs, "strategy must have at least one position")
	}

	switch s.Method {
	case MethodAllNo:
		for _, p := range s.Positions {
			if p.Side != SideNo {
				errs = append(errs, fmt.Sprintf("all_no strategy must hold only NO positions, found %s on %s", p.Side, p.MarketSlug))
			}
		}
	case MethodBalanced:
		if len(s.SideA) == 0 {
			errs = append(errs, "balanced strategy missing side A positions")
		}
		if len(s.SideB) == 0 {
			errs = append(errs, "balanced strategy missing side B positions")
		}
		if s.LogicalSpec == nil {
			errs = append(errs, "balanced strategy requires a logical spec")
		}
	case MethodCustom:
		if s.Evaluator == nil {
			errs = append(errs, "custom strategy requires an evaluator")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown strategy method %q", s.Method))
	}

	if s.LogicalSpec != nil && s.LogicalSpec.WorstCasePayoffMicros > s.LogicalSpec.BestCasePayoffMicros {
		errs = append(errs, "worst case payoff cannot exceed best case payoff")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidStrategy, strings.Join(errs, "; "))
	}
	return nil
}
