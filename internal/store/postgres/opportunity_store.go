package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oddlot/polyarb/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
// Legs are stored as JSONB since the scan path never queries into them.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates an OpportunityStore.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Create inserts one ranked opportunity.
func (s *OpportunityStore) Create(ctx context.Context, opp domain.Opportunity) error {
	legs, err := json.Marshal(opp.Legs)
	if err != nil {
		return fmt.Errorf("postgres: marshal legs: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO opportunities (
			id, class, strategy_id, name, description, legs,
			total_cost_micros, worst_case_payoff_micros, best_case_payoff_micros,
			profit_micros, adjusted_cost_micros, adjusted_profit_micros,
			risk_level, liquidity_score, max_size_micros,
			market_ids, event_ids, topic, entity, tags,
			discovered_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		opp.ID, string(opp.Class), opp.StrategyID, opp.Name, opp.Description, legs,
		opp.TotalCostMicros, opp.WorstCasePayoffMicros, opp.BestCasePayoffMicros,
		opp.ProfitMicros, opp.AdjustedCostMicros, opp.AdjustedProfitMicros,
		string(opp.RiskLevel), opp.LiquidityScore, opp.MaxSizeMicros,
		opp.MarketIDs, opp.EventIDs, opp.Topic, opp.Entity, opp.Tags,
		opp.DiscoveredAt, opp.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListSince returns opportunities discovered at or after the given time,
// newest first.
func (s *OpportunityStore) ListSince(ctx context.Context, since time.Time, limit int) ([]domain.Opportunity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, class, strategy_id, name, description, legs,
			total_cost_micros, worst_case_payoff_micros, best_case_payoff_micros,
			profit_micros, adjusted_cost_micros, adjusted_profit_micros,
			risk_level, liquidity_score, max_size_micros,
			market_ids, event_ids, topic, entity, tags,
			discovered_at, expires_at
		FROM opportunities
		WHERE discovered_at >= $1
		ORDER BY discovered_at DESC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()

	var list []domain.Opportunity
	for rows.Next() {
		var opp domain.Opportunity
		var class, riskLevel string
		var legs []byte
		if err := rows.Scan(&opp.ID, &class, &opp.StrategyID, &opp.Name, &opp.Description, &legs,
			&opp.TotalCostMicros, &opp.WorstCasePayoffMicros, &opp.BestCasePayoffMicros,
			&opp.ProfitMicros, &opp.AdjustedCostMicros, &opp.AdjustedProfitMicros,
			&riskLevel, &opp.LiquidityScore, &opp.MaxSizeMicros,
			&opp.MarketIDs, &opp.EventIDs, &opp.Topic, &opp.Entity, &opp.Tags,
			&opp.DiscoveredAt, &opp.ExpiresAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(legs, &opp.Legs); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal legs for %s: %w", opp.ID, err)
		}
		opp.Class = domain.OpportunityClass(class)
		opp.RiskLevel = domain.RiskLevel(riskLevel)
		list = append(list, opp)
	}
	return list, rows.Err()
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
