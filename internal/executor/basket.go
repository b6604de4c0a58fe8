// Package executor places multi-leg baskets against the venue with
// per-leg slippage protection. Legs are placed sequentially, largest
// notional first, re-quoting each leg immediately before placement.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/oddlot/polyarb/internal/domain"
)

// LegPlacer submits one leg order to the venue and reports the fill.
type LegPlacer interface {
	PlaceLeg(ctx context.Context, leg domain.Leg, sizeMicros int64) (domain.LegFill, error)
}

// QuoteReader re-reads a live price for a token just before placement.
type QuoteReader interface {
	GetQuote(ctx context.Context, tokenID string, pt domain.PriceType) (domain.Quote, error)
}

// Config holds executor tolerances.
type Config struct {
	// MaxSlippageBps is the per-leg tolerance between the scan-time price
	// and the live price read just before placement.
	MaxSlippageBps int64
	// LegTimeout bounds a single placement round trip. Exceeding it is a
	// failure, not an abort: the order may have reached the venue.
	LegTimeout time.Duration
	// QuoteTimeout bounds the pre-placement re-quote.
	QuoteTimeout time.Duration
}

func (c Config) maxSlippageBps() int64 {
	if c.MaxSlippageBps > 0 {
		return c.MaxSlippageBps
	}
	return 100
}

func (c Config) legTimeout() time.Duration {
	if c.LegTimeout > 0 {
		return c.LegTimeout
	}
	return 10 * time.Second
}

func (c Config) quoteTimeout() time.Duration {
	if c.QuoteTimeout > 0 {
		return c.QuoteTimeout
	}
	return 3 * time.Second
}

// Basket executes opportunities leg by leg. It holds no exposure state;
// the risk manager owns that.
type Basket struct {
	placer LegPlacer
	quotes QuoteReader
	cfg    Config
	logger *slog.Logger
}

// NewBasket creates a basket executor.
func NewBasket(placer LegPlacer, quotes QuoteReader, cfg Config, logger *slog.Logger) *Basket {
	return &Basket{
		placer: placer,
		quotes: quotes,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "basket_executor")),
	}
}

// Execute attempts every leg of the opportunity at the given basket size.
// Cancellation is honored between legs only; an in-flight placement always
// runs to its own timeout. The returned result is always non-nil and
// terminal, alongside any error that ended the attempt early.
func (b *Basket) Execute(ctx context.Context, opp domain.Opportunity, sizeMicros int64) (domain.ExecutionResult, error) {
	start := time.Now().UTC()
	result := domain.ExecutionResult{
		ID:                uuid.New().String(),
		OpportunityID:     opp.ID,
		Status:            domain.ExecExecuting,
		PlannedCostMicros: opp.NotionalMicros(sizeMicros),
		StartedAt:         start,
	}

	legs := orderLegs(opp.Legs)
	result.Legs = make([]domain.LegExecution, len(legs))
	for i, leg := range legs {
		result.Legs[i] = domain.LegExecution{
			Leg:                  leg,
			Status:               domain.LegSkipped,
			RequestedPriceMicros: leg.PriceMicros,
			RequestedSizeMicros:  leg.SizeMicros * sizeMicros / domain.MicrosPerUSD,
		}
	}

	var execErr error
	for i := range result.Legs {
		if err := ctx.Err(); err != nil {
			result.Notes = append(result.Notes, fmt.Sprintf("canceled before leg %d: %v", i+1, err))
			execErr = err
			break
		}

		le := &result.Legs[i]
		le.Attempted = time.Now().UTC()

		if err := b.placeLeg(ctx, le); err != nil {
			execErr = err
			result.Notes = append(result.Notes, fmt.Sprintf("leg %d %s: %v", i+1, le.Leg.Side, err))
			b.logger.WarnContext(ctx, "leg attempt ended basket",
				slog.String("execution_id", result.ID),
				slog.String("token_id", le.Leg.TokenID),
				slog.String("leg_status", string(le.Status)),
				slog.String("error", err.Error()),
			)
			break
		}

		b.logger.InfoContext(ctx, "leg filled",
			slog.String("execution_id", result.ID),
			slog.String("token_id", le.Leg.TokenID),
			slog.Int64("filled_price_micros", le.FilledPriceMicros),
			slog.Float64("slippage_bps", le.SlippageBps),
		)
	}

	b.finalize(&result, opp, execErr)
	result.CompletedAt = time.Now().UTC()
	return result, execErr
}

// placeLeg re-quotes, checks slippage and submits one leg, mutating le in
// place. The returned error is the reason the basket must stop.
func (b *Basket) placeLeg(ctx context.Context, le *domain.LegExecution) error {
	leg := le.Leg

	qctx, cancel := context.WithTimeout(ctx, b.cfg.quoteTimeout())
	live, err := b.quotes.GetQuote(qctx, leg.TokenID, domain.PriceTypeAsk)
	cancel()
	if err != nil {
		le.Status = domain.LegAborted
		le.Error = err.Error()
		return fmt.Errorf("executor: live quote: %w", err)
	}

	drift := bps(live.PriceMicros-leg.PriceMicros, leg.PriceMicros)
	if drift > float64(b.cfg.maxSlippageBps()) {
		le.Status = domain.LegAborted
		le.Error = fmt.Sprintf("price moved %.1fbps against the basket, tolerance %dbps", drift, b.cfg.maxSlippageBps())
		return fmt.Errorf("executor: %w: %s on %s", domain.ErrSlippageExceeded, le.Error, leg.TokenID)
	}

	pctx, cancel := context.WithTimeout(ctx, b.cfg.legTimeout())
	fill, err := b.placer.PlaceLeg(pctx, leg, le.RequestedSizeMicros)
	cancel()
	if err != nil {
		le.Status = domain.LegFailed
		le.Error = err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("executor: %w: leg placement on %s: %v", domain.ErrTimeoutExceeded, leg.TokenID, err)
		}
		return fmt.Errorf("executor: %w: %s: %v", domain.ErrLegPlacementFailed, leg.TokenID, err)
	}

	le.Status = domain.LegFilled
	le.OrderID = fill.OrderID
	le.FilledPriceMicros = fill.PriceMicros
	le.FilledSizeMicros = fill.SizeMicros
	le.SlippageBps = bps(fill.PriceMicros-leg.PriceMicros, leg.PriceMicros)

	// A fill worse than tolerance stops the basket: the leg stands, but the
	// remaining legs are not placed on top of a broken price assumption.
	if le.SlippageBps > float64(b.cfg.maxSlippageBps()) {
		le.Error = fmt.Sprintf("filled %.1fbps through tolerance %dbps", le.SlippageBps, b.cfg.maxSlippageBps())
		return fmt.Errorf("executor: %w: fill on %s: %s", domain.ErrSlippageExceeded, leg.TokenID, le.Error)
	}
	return nil
}

// finalize derives the terminal status from the per-leg outcomes.
func (b *Basket) finalize(result *domain.ExecutionResult, opp domain.Opportunity, execErr error) {
	filled := result.FilledLegs()
	for _, le := range filled {
		result.ActualCostMicros += le.FilledPriceMicros * le.FilledSizeMicros / domain.MicrosPerUSD
	}
	if result.PlannedCostMicros > 0 && result.ActualCostMicros > 0 {
		planned := int64(0)
		for _, le := range filled {
			planned += le.RequestedPriceMicros * le.RequestedSizeMicros / domain.MicrosPerUSD
		}
		result.SlippageBps = bps(result.ActualCostMicros-planned, planned)
	}

	switch {
	case len(filled) == len(result.Legs) && execErr == nil:
		result.Status = domain.ExecCompleted
	case len(filled) == len(result.Legs):
		// Every leg stands but the last fill broke tolerance, so the basket
		// cost more than planned. No legs remain, so no residual edge.
		result.Status = domain.ExecPartiallyFilled
		result.Notes = append(result.Notes,
			fmt.Sprintf("all %d legs filled but the final fill broke slippage tolerance; realized slippage %.1fbps",
				len(result.Legs), result.SlippageBps))
	case len(filled) == 0:
		// Nothing filled: distinguish a clean pre-placement abort from a
		// placement that may have reached the venue.
		result.Status = domain.ExecAborted
		for _, le := range result.Legs {
			if le.Status == domain.LegFailed {
				result.Status = domain.ExecFailed
				break
			}
		}
	default:
		result.Status = domain.ExecPartiallyFilled
		result.ResidualEdgeBps = residualEdgeBps(opp, result.Legs)
		result.Notes = append(result.Notes,
			fmt.Sprintf("%d of %d legs filled; residual edge %.1fbps left on the table, not retried",
				len(filled), len(result.Legs), result.ResidualEdgeBps))
	}
}

// residualEdgeBps estimates the edge remaining in the unfilled legs: the
// worst-case payoff minus realized cost minus the unfilled legs' scan-time
// cost, relative to the full planned cost. Reported for the operator only.
func residualEdgeBps(opp domain.Opportunity, legs []domain.LegExecution) float64 {
	var realized, remaining int64
	for _, le := range legs {
		switch le.Status {
		case domain.LegFilled:
			realized += le.FilledPriceMicros * le.FilledSizeMicros / domain.MicrosPerUSD
		default:
			remaining += le.RequestedPriceMicros * le.RequestedSizeMicros / domain.MicrosPerUSD
		}
	}
	total := realized + remaining
	if total <= 0 {
		return 0
	}
	scale := float64(total) / float64(opp.TotalCostMicros)
	payoff := float64(opp.WorstCasePayoffMicros) * scale
	return bps(int64(payoff)-total, total)
}

// orderLegs returns the legs sorted by descending notional so the hardest
// fill is attempted while the basket is still fully reversible.
func orderLegs(legs []domain.Leg) []domain.Leg {
	out := make([]domain.Leg, len(legs))
	copy(out, legs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NotionalMicros() > out[j].NotionalMicros()
	})
	return out
}

func bps(delta, base int64) float64 {
	if base == 0 {
		return 0
	}
	return float64(delta) / float64(base) * 10_000
}
