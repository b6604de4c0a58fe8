package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oddlot/polyarb/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL. Each
// result row owns its leg rows, inserted in the same transaction.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates an ExecutionStore.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

// Create inserts an execution result and its legs atomically.
func (s *ExecutionStore) Create(ctx context.Context, result domain.ExecutionResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO executions (id, opportunity_id, status, planned_cost_micros, actual_cost_micros, slippage_bps, residual_edge_bps, started_at, completed_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		result.ID, result.OpportunityID, string(result.Status),
		result.PlannedCostMicros, result.ActualCostMicros,
		result.SlippageBps, result.ResidualEdgeBps,
		result.StartedAt, result.CompletedAt, result.Notes,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution %s: %w", result.ID, err)
	}

	for _, le := range result.Legs {
		var attempted *time.Time
		if !le.Attempted.IsZero() {
			attempted = &le.Attempted
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO execution_legs (execution_id, token_id, side, outcome_label, market_id, status, requested_price_micros, requested_size_micros, filled_price_micros, filled_size_micros, slippage_bps, order_id, error, attempted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			result.ID, le.Leg.TokenID, string(le.Leg.Side), le.Leg.OutcomeLabel, le.Leg.MarketID, string(le.Status),
			le.RequestedPriceMicros, le.RequestedSizeMicros,
			le.FilledPriceMicros, le.FilledSizeMicros,
			le.SlippageBps, le.OrderID, le.Error, attempted,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert execution leg: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID returns an execution with its legs, or domain.ErrNotFound.
func (s *ExecutionStore) GetByID(ctx context.Context, id string) (domain.ExecutionResult, error) {
	var result domain.ExecutionResult
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT id, opportunity_id, status, planned_cost_micros, actual_cost_micros, slippage_bps, residual_edge_bps, started_at, completed_at, notes
		FROM executions WHERE id = $1`, id,
	).Scan(&result.ID, &result.OpportunityID, &status,
		&result.PlannedCostMicros, &result.ActualCostMicros,
		&result.SlippageBps, &result.ResidualEdgeBps,
		&result.StartedAt, &result.CompletedAt, &result.Notes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ExecutionResult{}, domain.ErrNotFound
		}
		return domain.ExecutionResult{}, fmt.Errorf("postgres: get execution %s: %w", id, err)
	}
	result.Status = domain.ExecutionStatus(status)

	legs, err := s.legsFor(ctx, id)
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	result.Legs = legs
	return result, nil
}

// ListSince returns executions started at or after the given time, newest
// first, without their leg rows.
func (s *ExecutionStore) ListSince(ctx context.Context, since time.Time, limit int) ([]domain.ExecutionResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, opportunity_id, status, planned_cost_micros, actual_cost_micros, slippage_bps, residual_edge_bps, started_at, completed_at, notes
		FROM executions
		WHERE started_at >= $1
		ORDER BY started_at DESC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions: %w", err)
	}
	defer rows.Close()

	var list []domain.ExecutionResult
	for rows.Next() {
		var result domain.ExecutionResult
		var status string
		if err := rows.Scan(&result.ID, &result.OpportunityID, &status,
			&result.PlannedCostMicros, &result.ActualCostMicros,
			&result.SlippageBps, &result.ResidualEdgeBps,
			&result.StartedAt, &result.CompletedAt, &result.Notes); err != nil {
			return nil, err
		}
		result.Status = domain.ExecutionStatus(status)
		list = append(list, result)
	}
	return list, rows.Err()
}

func (s *ExecutionStore) legsFor(ctx context.Context, executionID string) ([]domain.LegExecution, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT token_id, side, outcome_label, market_id, status, requested_price_micros, requested_size_micros, filled_price_micros, filled_size_micros, slippage_bps, order_id, error, attempted_at
		FROM execution_legs WHERE execution_id = $1 ORDER BY id`, executionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: get execution legs: %w", err)
	}
	defer rows.Close()

	var legs []domain.LegExecution
	for rows.Next() {
		var le domain.LegExecution
		var side, status string
		var attempted *time.Time
		if err := rows.Scan(&le.Leg.TokenID, &side, &le.Leg.OutcomeLabel, &le.Leg.MarketID, &status,
			&le.RequestedPriceMicros, &le.RequestedSizeMicros,
			&le.FilledPriceMicros, &le.FilledSizeMicros,
			&le.SlippageBps, &le.OrderID, &le.Error, &attempted); err != nil {
			return nil, err
		}
		le.Leg.Side = domain.OutcomeSide(side)
		le.Status = domain.LegStatus(status)
		if attempted != nil {
			le.Attempted = *attempted
		}
		legs = append(legs, le)
	}
	return legs, rows.Err()
}

// Compile-time interface check.
var _ domain.ExecutionStore = (*ExecutionStore)(nil)
