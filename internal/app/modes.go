package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oddlot/polyarb/internal/domain"
	"github.com/oddlot/polyarb/internal/executor"
	"github.com/oddlot/polyarb/internal/feed"
	"github.com/oddlot/polyarb/internal/scanner"
)

// ScanMode performs one scan pass, reports what it found, and exits.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	results, merged, err := a.scanOnce(ctx, deps)
	if err != nil {
		return err
	}
	a.report(ctx, deps, results, merged)
	return nil
}

// ExecuteMode performs one scan pass and attempts the best opportunity
// through the risk gate. A rejection is a normal outcome, not an error.
func (a *App) ExecuteMode(ctx context.Context, deps *Dependencies) error {
	results, merged, err := a.scanOnce(ctx, deps)
	if err != nil {
		return err
	}
	a.report(ctx, deps, results, merged)
	return a.executeBest(ctx, deps, merged)
}

// FullMode runs the continuous loop: the market feed keeps the quote cache
// warm while scan passes fire on the configured interval, executing the
// best opportunity of each pass.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Feed.Enabled && deps.QuoteCache != nil {
		markets, err := deps.Markets.ListMarkets(gctx)
		if err != nil {
			return fmt.Errorf("app: initial market list for feed: %w", err)
		}
		tokens := collectTokenIDs(markets)
		mw := feed.NewMarketWS(a.cfg.Polymarket.WsHost, tokens, deps.QuoteCache, a.logger)
		g.Go(func() error {
			err := mw.Run(gctx)
			if gctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		interval := a.cfg.Scanner.Interval.Duration
		if interval <= 0 {
			interval = time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// A basket attempted once is not retried until its window expires,
		// even if it keeps ranking first on successive passes.
		dedup := executor.NewDedup(10 * interval)

		for {
			results, merged, err := a.scanOnce(gctx, deps)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				// A failed pass is retried on the next tick.
				a.logger.ErrorContext(gctx, "scan pass failed", slog.String("error", err.Error()))
			} else {
				a.report(gctx, deps, results, merged)
				switch {
				case len(merged) > 0 && dedup.IsDuplicate(basketKey(merged[0])):
					a.logger.DebugContext(gctx, "best basket recently attempted",
						slog.String("opportunity_id", merged[0].ID))
				default:
					if err := a.executeBest(gctx, deps, merged); err != nil && gctx.Err() == nil {
						a.logger.ErrorContext(gctx, "execution attempt failed", slog.String("error", err.Error()))
					}
				}
			}
			dedup.Cleanup()

			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("app: full mode: %w", err)
	}
	return ctx.Err()
}

// scanOnce fetches the market snapshot and runs every configured scanner
// over it, returning per-scanner results and the merged re-ranked list.
func (a *App) scanOnce(ctx context.Context, deps *Dependencies) (map[string]scanner.ScanResult, []domain.Opportunity, error) {
	markets, err := deps.Markets.ListMarkets(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("app: list markets: %w", err)
	}
	a.logger.InfoContext(ctx, "scan pass starting", slog.Int("markets", len(markets)))

	results := make(map[string]scanner.ScanResult)

	sc, err := deps.SingleCondition.Scan(ctx, markets)
	if err != nil {
		return nil, nil, fmt.Errorf("app: single-condition scan: %w", err)
	}
	results[deps.SingleCondition.Name()] = sc

	nr, err := deps.NegRisk.Scan(ctx, markets)
	if err != nil {
		return nil, nil, fmt.Errorf("app: negrisk scan: %w", err)
	}
	results[deps.NegRisk.Name()] = nr

	if len(deps.Strategies) > 0 {
		st, err := deps.Strategy.ScanStrategies(ctx, deps.Strategies)
		if err != nil {
			return nil, nil, fmt.Errorf("app: strategy scan: %w", err)
		}
		results[deps.Strategy.Name()] = st
	}

	var merged []domain.Opportunity
	for name, res := range results {
		merged = append(merged, res.Opportunities...)
		a.logger.InfoContext(ctx, "scanner finished",
			slog.String("scanner", name),
			slog.Int("opportunities", len(res.Opportunities)),
			slog.Int("scanned", res.MarketsScanned),
			slog.Int("skipped", res.Skipped),
			slog.Duration("took", res.Duration),
		)
	}
	scanner.Rank(merged)
	return results, merged, nil
}

// report pushes a scan pass to the reporting collaborators: the archive
// gets every pass, the store gets the top opportunities, and the notifier
// gets the best one. Reporting failures are logged, never fatal.
func (a *App) report(ctx context.Context, deps *Dependencies, results map[string]scanner.ScanResult, merged []domain.Opportunity) {
	if deps.Archiver != nil {
		for name, res := range results {
			if err := deps.Archiver.ArchiveScan(ctx, name, res); err != nil {
				a.logger.WarnContext(ctx, "scan archive failed",
					slog.String("scanner", name),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	top := merged
	if n := a.cfg.Scanner.TopN; n > 0 && n < len(top) {
		top = top[:n]
	}
	if deps.Opportunities != nil {
		for _, opp := range top {
			if err := deps.Opportunities.Create(ctx, opp); err != nil {
				a.logger.WarnContext(ctx, "opportunity store failed",
					slog.String("opportunity_id", opp.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if len(merged) > 0 {
		best := merged[0]
		a.logger.InfoContext(ctx, "best opportunity",
			slog.String("opportunity_id", best.ID),
			slog.String("class", string(best.Class)),
			slog.Float64("adjusted_profit_bps", best.AdjustedProfitBps()),
			slog.Float64("liquidity", best.LiquidityScore),
		)
		if err := deps.Notifier.NotifyOpportunity(ctx, best); err != nil {
			a.logger.WarnContext(ctx, "opportunity notification failed", slog.String("error", err.Error()))
		}
	}
}

// executeBest pushes the best opportunity of a pass through the risk gate
// and, when accepted, executes it and finalizes the reservation with the
// realized result.
func (a *App) executeBest(ctx context.Context, deps *Dependencies, merged []domain.Opportunity) error {
	if len(merged) == 0 {
		a.logger.InfoContext(ctx, "nothing to execute")
		return nil
	}
	opp := merged[0]

	// The scanners already price every leg at the configured per-basket
	// size, so one basket unit is the configured notional. Requesting the
	// configured size again here would compound it.
	size := deps.Risk.SuggestSize(opp, domain.MicrosPerUSD)
	if size <= 0 {
		a.logger.InfoContext(ctx, "no headroom for execution",
			slog.String("opportunity_id", opp.ID),
		)
		return nil
	}

	decision, err := deps.Risk.Check(ctx, opp, size, false)
	if err != nil {
		return fmt.Errorf("app: risk check: %w", err)
	}
	if !decision.Accepted {
		a.logger.InfoContext(ctx, "risk rejected",
			slog.String("opportunity_id", opp.ID),
			slog.Int("violations", len(decision.Reasons)),
			slog.String("cause", decision.Err.Error()),
		)
		if nerr := deps.Notifier.NotifyRiskRejection(ctx, opp, decision.Reasons); nerr != nil {
			a.logger.WarnContext(ctx, "rejection notification failed", slog.String("error", nerr.Error()))
		}
		return nil
	}

	result, execErr := deps.Executor.Execute(ctx, opp, size)
	if ferr := deps.Risk.Finalize(decision.ReservationID, result); ferr != nil {
		a.logger.ErrorContext(ctx, "reservation finalize failed",
			slog.String("reservation_id", decision.ReservationID),
			slog.String("error", ferr.Error()),
		)
	}
	if execErr != nil {
		a.logger.WarnContext(ctx, "execution ended early",
			slog.String("execution_id", result.ID),
			slog.String("status", string(result.Status)),
			slog.String("error", execErr.Error()),
		)
	}

	if deps.Executions != nil {
		if err := deps.Executions.Create(ctx, result); err != nil {
			a.logger.WarnContext(ctx, "execution store failed",
				slog.String("execution_id", result.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if deps.Archiver != nil {
		if err := deps.Archiver.ArchiveExecution(ctx, result); err != nil {
			a.logger.WarnContext(ctx, "execution archive failed",
				slog.String("execution_id", result.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := deps.Notifier.NotifyExecution(ctx, result); err != nil {
		a.logger.WarnContext(ctx, "execution notification failed", slog.String("error", err.Error()))
	}
	return nil
}

// basketKey is a stable identity for a basket across scan passes. The
// opportunity ID changes on every pass, so the key is derived from the legs.
func basketKey(opp domain.Opportunity) string {
	parts := make([]string, 0, len(opp.Legs))
	for _, leg := range opp.Legs {
		parts = append(parts, leg.TokenID+":"+string(leg.Side))
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// collectTokenIDs gathers every outcome token of active markets for the
// feed subscription.
func collectTokenIDs(markets []domain.Market) []string {
	var out []string
	for _, m := range markets {
		if m.Status != domain.MarketStatusActive {
			continue
		}
		for _, o := range m.Outcomes {
			if o.TokenID != "" {
				out = append(out, o.TokenID)
			}
		}
	}
	return out
}
