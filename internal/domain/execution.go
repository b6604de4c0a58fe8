package domain

import "time"

// ExecutionStatus is the terminal or in-flight state of a basket execution.
// No state is ever re-entered.
type ExecutionStatus string

const (
	ExecPending         ExecutionStatus = "pending"
	ExecExecuting       ExecutionStatus = "executing"
	ExecCompleted       ExecutionStatus = "completed"        // every leg filled within tolerance
	ExecPartiallyFilled ExecutionStatus = "partially_filled" // 1..N-1 legs filled before abort/failure
	ExecAborted         ExecutionStatus = "aborted"          // slippage/staleness abort, nothing filled
	ExecFailed          ExecutionStatus = "failed"           // venue rejected or errored, nothing filled
)

// Terminal reports whether the status is final.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecCompleted, ExecPartiallyFilled, ExecAborted, ExecFailed:
		return true
	}
	return false
}

// LegStatus is the outcome of a single leg attempt.
type LegStatus string

const (
	LegFilled  LegStatus = "filled"
	LegSkipped LegStatus = "skipped" // never attempted (basket aborted earlier)
	LegAborted LegStatus = "aborted" // slippage or stale quote before placement
	LegFailed  LegStatus = "failed"  // venue rejected or placement errored
)

// LegFill is the venue's report of a placed and settled leg order.
type LegFill struct {
	OrderID     string
	PriceMicros int64
	SizeMicros  int64
	FilledAt    time.Time
}

// LegExecution records the requested and realized terms of one leg.
type LegExecution struct {
	Leg    Leg
	Status LegStatus

	RequestedPriceMicros int64
	RequestedSizeMicros  int64

	FilledPriceMicros int64
	FilledSizeMicros  int64
	SlippageBps       float64 // (filled - quoted) / quoted, signed
	OrderID           string

	Error     string
	Attempted time.Time
}

// ExecutionResult aggregates leg outcomes for one basket attempt. It carries
// enough detail for reporting and replay without re-querying the core.
type ExecutionResult struct {
	ID            string
	OpportunityID string
	Status        ExecutionStatus
	Legs          []LegExecution

	PlannedCostMicros int64 // scan-time cost at the requested size
	ActualCostMicros  int64 // realized cost of filled legs
	SlippageBps       float64 // aggregate, relative to planned notional

	// ResidualEdgeBps is the remaining edge of unexecuted legs after a
	// partial fill, so the caller can decide whether to complete manually.
	// Never acted on automatically.
	ResidualEdgeBps float64

	StartedAt   time.Time
	CompletedAt time.Time
	Notes       []string
}

// FilledLegs returns the legs that actually filled, for exposure accounting.
func (r ExecutionResult) FilledLegs() []LegExecution {
	var filled []LegExecution
	for _, le := range r.Legs {
		if le.Status == LegFilled {
			filled = append(filled, le)
		}
	}
	return filled
}

// FillRate is filled legs over total legs, 0..1.
func (r ExecutionResult) FillRate() float64 {
	if len(r.Legs) == 0 {
		return 0
	}
	return float64(len(r.FilledLegs())) / float64(len(r.Legs))
}
