package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/oddlot/polyarb/internal/domain"
)

// NotifyOpportunity reports a ranked opportunity that cleared the scan
// thresholds.
func (n *Notifier) NotifyOpportunity(ctx context.Context, opp domain.Opportunity) error {
	title := fmt.Sprintf("Opportunity: %s", opp.Name)
	msg := fmt.Sprintf(
		"class: %s\nadjusted profit: %.1f bps\nliquidity: %.2f\ncost: $%.4f\nlegs: %d\nrisk: %s",
		opp.Class, opp.AdjustedProfitBps(), opp.LiquidityScore,
		float64(opp.TotalCostMicros)/domain.MicrosPerUSD, len(opp.Legs), opp.RiskLevel,
	)
	return n.Notify(ctx, EventOpportunityFound, title, msg)
}

// NotifyExecution reports a terminal execution result under the event type
// matching its status.
func (n *Notifier) NotifyExecution(ctx context.Context, result domain.ExecutionResult) error {
	var event string
	switch result.Status {
	case domain.ExecCompleted:
		event = EventExecutionCompleted
	case domain.ExecPartiallyFilled:
		event = EventExecutionPartial
	case domain.ExecAborted:
		event = EventExecutionAborted
	default:
		event = EventExecutionFailed
	}

	title := fmt.Sprintf("Execution %s: %s", result.Status, result.ID)
	lines := []string{
		fmt.Sprintf("opportunity: %s", result.OpportunityID),
		fmt.Sprintf("legs filled: %d/%d", len(result.FilledLegs()), len(result.Legs)),
		fmt.Sprintf("planned cost: $%.4f", float64(result.PlannedCostMicros)/domain.MicrosPerUSD),
		fmt.Sprintf("actual cost: $%.4f", float64(result.ActualCostMicros)/domain.MicrosPerUSD),
		fmt.Sprintf("slippage: %.1f bps", result.SlippageBps),
	}
	if result.Status == domain.ExecPartiallyFilled {
		lines = append(lines, fmt.Sprintf("residual edge: %.1f bps (manual follow-up)", result.ResidualEdgeBps))
	}
	lines = append(lines, result.Notes...)
	return n.Notify(ctx, event, title, strings.Join(lines, "\n"))
}

// NotifyRiskRejection reports a risk check that blocked an execution, with
// every violated limit listed.
func (n *Notifier) NotifyRiskRejection(ctx context.Context, opp domain.Opportunity, reasons []string) error {
	title := fmt.Sprintf("Risk rejected: %s", opp.Name)
	return n.Notify(ctx, EventRiskRejected, title, strings.Join(reasons, "\n"))
}
