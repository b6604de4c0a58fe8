package scanner

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/oddlot/polyarb/internal/domain"
)

// strategyFile is the JSON schema for externally authored strategies.
// Monetary values are USD floats for the author's convenience and are
// converted to micro-units on load.
type strategyFile struct {
	Strategies []strategyEntry `json:"strategies"`
}

type strategyEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Subtitle string `json:"subtitle"`
	Method   string `json:"method"`
	Type     string `json:"type"`

	Positions []positionEntry `json:"positions"`
	SideA     []positionEntry `json:"side_a"`
	SideB     []positionEntry `json:"side_b"`

	LogicalSpec *logicalSpecEntry `json:"logical_spec"`

	Topic  string   `json:"topic"`
	Entity string   `json:"entity"`
	Tags   []string `json:"tags"`
}

type positionEntry struct {
	EventID      string `json:"event_id"`
	MarketID     string `json:"market_id"`
	MarketSlug   string `json:"market_slug"`
	OutcomeLabel string `json:"outcome_label"`
	TokenID      string `json:"token_id"`
	Side         string `json:"side"`
}

type logicalSpecEntry struct {
	Description        string  `json:"description"`
	WorstCasePayoffUSD float64 `json:"worst_case_payoff_usd"`
	BestCasePayoffUSD  float64 `json:"best_case_payoff_usd"`
}

// LoadStrategiesFile reads a strategies JSON file and returns validated
// strategies. MethodCustom requires a code-supplied evaluator and is
// rejected here. Any invalid strategy fails the whole load so a broken
// file never silently half-deploys.
func LoadStrategiesFile(path string) ([]domain.Strategy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scanner: read strategies file: %w", err)
	}

	var file strategyFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("scanner: parse strategies file %s: %w", path, err)
	}

	now := time.Now().UTC()
	out := make([]domain.Strategy, 0, len(file.Strategies))
	for i, e := range file.Strategies {
		if domain.StrategyMethod(e.Method) == domain.MethodCustom {
			return nil, fmt.Errorf("scanner: strategy %d (%s): custom strategies need a code-supplied evaluator and cannot be file-loaded", i, e.ID)
		}

		st := domain.Strategy{
			ID:        e.ID,
			Name:      e.Name,
			Subtitle:  e.Subtitle,
			Method:    domain.StrategyMethod(e.Method),
			Type:      domain.StrategyType(e.Type),
			Positions: toPositions(e.Positions),
			SideA:     toPositions(e.SideA),
			SideB:     toPositions(e.SideB),
			Topic:     e.Topic,
			Entity:    e.Entity,
			Tags:      e.Tags,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if e.LogicalSpec != nil {
			st.LogicalSpec = &domain.LogicalSpec{
				Description:           e.LogicalSpec.Description,
				WorstCasePayoffMicros: usdToMicros(e.LogicalSpec.WorstCasePayoffUSD),
				BestCasePayoffMicros:  usdToMicros(e.LogicalSpec.BestCasePayoffUSD),
			}
		}
		if err := st.Validate(); err != nil {
			return nil, fmt.Errorf("scanner: strategy %d (%s): %w", i, e.ID, err)
		}
		out = append(out, st)
	}
	return out, nil
}

func toPositions(entries []positionEntry) []domain.StrategyPosition {
	if len(entries) == 0 {
		return nil
	}
	out := make([]domain.StrategyPosition, len(entries))
	for i, e := range entries {
		out[i] = domain.StrategyPosition{
			EventID:      e.EventID,
			MarketID:     e.MarketID,
			MarketSlug:   e.MarketSlug,
			OutcomeLabel: e.OutcomeLabel,
			TokenID:      e.TokenID,
			Side:         domain.OutcomeSide(e.Side),
		}
	}
	return out
}

func usdToMicros(usd float64) int64 {
	if usd < 0 {
		return int64(usd*domain.MicrosPerUSD - 0.5)
	}
	return int64(usd*domain.MicrosPerUSD + 0.5)
}
