package domain

import (
	"context"
	"time"
)

// OpportunityStore is the reporting sink for ranked scan output. The core
// writes opportunities for downstream performance tracking and backtesting;
// it never reads them back into the scan path.
type OpportunityStore interface {
	Create(ctx context.Context, opp Opportunity) error
	ListSince(ctx context.Context, since time.Time, limit int) ([]Opportunity, error)
}

// ExecutionStore is the reporting sink for basket execution results.
type ExecutionStore interface {
	Create(ctx context.Context, result ExecutionResult) error
	GetByID(ctx context.Context, id string) (ExecutionResult, error)
	ListSince(ctx context.Context, since time.Time, limit int) ([]ExecutionResult, error)
}
