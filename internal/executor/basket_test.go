package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oddlot/polyarb/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// liveQuotes serves the pre-placement re-quote from a fixed price map.
type liveQuotes map[string]int64

func (q liveQuotes) GetQuote(_ context.Context, tokenID string, _ domain.PriceType) (domain.Quote, error) {
	price, ok := q[tokenID]
	if !ok {
		return domain.Quote{}, domain.ErrQuoteUnavailable
	}
	return domain.Quote{TokenID: tokenID, PriceMicros: price, AsOf: time.Now().UTC()}, nil
}

// scriptedPlacer fills or fails per token and records the attempt order.
type scriptedPlacer struct {
	mu     sync.Mutex
	fills  map[string]int64 // token -> fill price
	errs   map[string]error // token -> placement error
	order  []string
	onFill func(tokenID string)
}

func (p *scriptedPlacer) PlaceLeg(_ context.Context, leg domain.Leg, sizeMicros int64) (domain.LegFill, error) {
	p.mu.Lock()
	p.order = append(p.order, leg.TokenID)
	p.mu.Unlock()

	if err, ok := p.errs[leg.TokenID]; ok {
		return domain.LegFill{}, err
	}
	price := leg.PriceMicros
	if fp, ok := p.fills[leg.TokenID]; ok {
		price = fp
	}
	if p.onFill != nil {
		p.onFill(leg.TokenID)
	}
	return domain.LegFill{
		OrderID:     "order-" + leg.TokenID,
		PriceMicros: price,
		SizeMicros:  sizeMicros,
		FilledAt:    time.Now().UTC(),
	}, nil
}

func twoLegOpportunity() domain.Opportunity {
	return domain.Opportunity{
		ID: "opp-1",
		Legs: []domain.Leg{
			{TokenID: "small", Side: domain.SideYes, PriceMicros: 400_000, SizeMicros: domain.MicrosPerUSD},
			{TokenID: "big", Side: domain.SideNo, PriceMicros: 550_000, SizeMicros: domain.MicrosPerUSD},
		},
		TotalCostMicros:       950_000,
		WorstCasePayoffMicros: domain.MicrosPerUSD,
	}
}

func TestBasket_Execute_Completed(t *testing.T) {
	opp := twoLegOpportunity()
	quotes := liveQuotes{"small": 400_000, "big": 550_000}
	placer := &scriptedPlacer{}
	b := NewBasket(placer, quotes, Config{MaxSlippageBps: 100}, testLogger())

	result, err := b.Execute(context.Background(), opp, 100*domain.MicrosPerUSD)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != domain.ExecCompleted {
		t.Fatalf("status = %s, want completed", result.Status)
	}
	if want := int64(95 * domain.MicrosPerUSD); result.ActualCostMicros != want {
		t.Errorf("actual cost = %d, want %d", result.ActualCostMicros, want)
	}
	if result.SlippageBps != 0 {
		t.Errorf("slippage = %v, want 0", result.SlippageBps)
	}
	for _, le := range result.Legs {
		if le.Status != domain.LegFilled || le.OrderID == "" {
			t.Errorf("leg %s: status=%s order=%q", le.Leg.TokenID, le.Status, le.OrderID)
		}
	}
}

func TestBasket_Execute_LargestNotionalFirst(t *testing.T) {
	opp := twoLegOpportunity()
	quotes := liveQuotes{"small": 400_000, "big": 550_000}
	placer := &scriptedPlacer{}
	b := NewBasket(placer, quotes, Config{}, testLogger())

	if _, err := b.Execute(context.Background(), opp, domain.MicrosPerUSD); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(placer.order) != 2 || placer.order[0] != "big" || placer.order[1] != "small" {
		t.Errorf("placement order = %v, want [big small]", placer.order)
	}
}

func TestBasket_Execute_AbortedOnPrePlacementDrift(t *testing.T) {
	opp := twoLegOpportunity()
	// "big" is attempted first and has drifted 400bps against the basket.
	quotes := liveQuotes{"small": 400_000, "big": 572_000}
	placer := &scriptedPlacer{}
	b := NewBasket(placer, quotes, Config{MaxSlippageBps: 100}, testLogger())

	result, err := b.Execute(context.Background(), opp, domain.MicrosPerUSD)
	if !errors.Is(err, domain.ErrSlippageExceeded) {
		t.Fatalf("err = %v, want ErrSlippageExceeded", err)
	}
	if result.Status != domain.ExecAborted {
		t.Errorf("status = %s, want aborted (nothing filled)", result.Status)
	}
	if len(placer.order) != 0 {
		t.Errorf("placements = %v, want none", placer.order)
	}
	if result.Legs[0].Status != domain.LegAborted {
		t.Errorf("first leg = %s, want aborted", result.Legs[0].Status)
	}
	if result.Legs[1].Status != domain.LegSkipped {
		t.Errorf("second leg = %s, want skipped", result.Legs[1].Status)
	}
}

func TestBasket_Execute_FailedOnPlacementError(t *testing.T) {
	opp := twoLegOpportunity()
	quotes := liveQuotes{"small": 400_000, "big": 550_000}
	placer := &scriptedPlacer{errs: map[string]error{"big": errors.New("venue rejected")}}
	b := NewBasket(placer, quotes, Config{}, testLogger())

	result, err := b.Execute(context.Background(), opp, domain.MicrosPerUSD)
	if !errors.Is(err, domain.ErrLegPlacementFailed) {
		t.Fatalf("err = %v, want ErrLegPlacementFailed", err)
	}
	if result.Status != domain.ExecFailed {
		t.Errorf("status = %s, want failed", result.Status)
	}
	if result.Legs[0].Status != domain.LegFailed {
		t.Errorf("first leg = %s, want failed", result.Legs[0].Status)
	}
}

func TestBasket_Execute_TimeoutIsFailureNotAbort(t *testing.T) {
	opp := twoLegOpportunity()
	quotes := liveQuotes{"small": 400_000, "big": 550_000}
	placer := &scriptedPlacer{errs: map[string]error{"big": context.DeadlineExceeded}}
	b := NewBasket(placer, quotes, Config{}, testLogger())

	result, err := b.Execute(context.Background(), opp, domain.MicrosPerUSD)
	if !errors.Is(err, domain.ErrTimeoutExceeded) {
		t.Fatalf("err = %v, want ErrTimeoutExceeded", err)
	}
	// The order may have reached the venue, so the leg is failed, not aborted.
	if result.Legs[0].Status != domain.LegFailed {
		t.Errorf("leg = %s, want failed", result.Legs[0].Status)
	}
	if result.Status != domain.ExecFailed {
		t.Errorf("status = %s, want failed", result.Status)
	}
}

func TestBasket_Execute_PartialFillReportsResidualEdge(t *testing.T) {
	opp := twoLegOpportunity()
	quotes := liveQuotes{"small": 400_000, "big": 550_000}
	// "big" fills, then "small" errors out.
	placer := &scriptedPlacer{errs: map[string]error{"small": errors.New("venue rejected")}}
	b := NewBasket(placer, quotes, Config{}, testLogger())

	result, err := b.Execute(context.Background(), opp, 100*domain.MicrosPerUSD)
	if err == nil {
		t.Fatal("expected the failing leg's error")
	}
	if result.Status != domain.ExecPartiallyFilled {
		t.Fatalf("status = %s, want partially_filled", result.Status)
	}
	if len(result.FilledLegs()) != 1 {
		t.Fatalf("filled legs = %d, want 1", len(result.FilledLegs()))
	}
	// Remaining basket is still profitable on paper, so residual edge > 0.
	if result.ResidualEdgeBps <= 0 {
		t.Errorf("residual edge = %v, want > 0", result.ResidualEdgeBps)
	}
	if len(result.Notes) == 0 {
		t.Error("expected a note describing the partial fill")
	}
}

func TestBasket_Execute_OutOfToleranceFillStopsBasket(t *testing.T) {
	opp := twoLegOpportunity()
	quotes := liveQuotes{"small": 400_000, "big": 550_000}
	// "big" fills 400bps through its quoted price.
	placer := &scriptedPlacer{fills: map[string]int64{"big": 572_000}}
	b := NewBasket(placer, quotes, Config{MaxSlippageBps: 100}, testLogger())

	result, err := b.Execute(context.Background(), opp, domain.MicrosPerUSD)
	if !errors.Is(err, domain.ErrSlippageExceeded) {
		t.Fatalf("err = %v, want ErrSlippageExceeded", err)
	}
	// The fill stands but the basket must not complete on a broken price.
	if result.Legs[0].Status != domain.LegFilled {
		t.Errorf("first leg = %s, want filled", result.Legs[0].Status)
	}
	if result.Status == domain.ExecCompleted {
		t.Error("an out-of-tolerance fill must block completed status")
	}
	if len(placer.order) != 1 {
		t.Errorf("placements = %v, want the basket stopped after the bad fill", placer.order)
	}
}

func TestBasket_Execute_FinalLegThroughToleranceLeavesNoResidualEdge(t *testing.T) {
	opp := twoLegOpportunity()
	quotes := liveQuotes{"small": 400_000, "big": 550_000}
	// "big" fills clean, then the last leg fills 250bps through its quote.
	placer := &scriptedPlacer{fills: map[string]int64{"small": 410_000}}
	b := NewBasket(placer, quotes, Config{MaxSlippageBps: 100}, testLogger())

	result, err := b.Execute(context.Background(), opp, domain.MicrosPerUSD)
	if !errors.Is(err, domain.ErrSlippageExceeded) {
		t.Fatalf("err = %v, want ErrSlippageExceeded", err)
	}
	for _, le := range result.Legs {
		if le.Status != domain.LegFilled {
			t.Errorf("leg %s = %s, want filled", le.Leg.TokenID, le.Status)
		}
	}
	if result.Status != domain.ExecPartiallyFilled {
		t.Errorf("status = %s, want partially_filled (completed implies the plan held)", result.Status)
	}
	// Every leg stands, so there is nothing left on the table.
	if result.ResidualEdgeBps != 0 {
		t.Errorf("residual edge = %v, want 0 with no unfilled legs", result.ResidualEdgeBps)
	}
	if len(result.Notes) == 0 || !strings.Contains(result.Notes[0], "tolerance") {
		t.Errorf("notes = %v, want the broken-tolerance note", result.Notes)
	}
}

func TestBasket_Execute_CancellationBetweenLegs(t *testing.T) {
	opp := twoLegOpportunity()
	quotes := liveQuotes{"small": 400_000, "big": 550_000}

	ctx, cancel := context.WithCancel(context.Background())
	placer := &scriptedPlacer{onFill: func(string) { cancel() }}
	b := NewBasket(placer, quotes, Config{}, testLogger())

	result, err := b.Execute(ctx, opp, domain.MicrosPerUSD)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(placer.order) != 1 {
		t.Errorf("placements = %v, want only the first leg", placer.order)
	}
	if result.Status != domain.ExecPartiallyFilled {
		t.Errorf("status = %s, want partially_filled (first leg stands)", result.Status)
	}
	if result.Legs[1].Status != domain.LegSkipped {
		t.Errorf("second leg = %s, want skipped", result.Legs[1].Status)
	}
}

func TestBasket_Execute_QuoteUnavailableAborts(t *testing.T) {
	opp := twoLegOpportunity()
	b := NewBasket(&scriptedPlacer{}, liveQuotes{}, Config{}, testLogger())

	result, err := b.Execute(context.Background(), opp, domain.MicrosPerUSD)
	if err == nil {
		t.Fatal("expected an error when the re-quote is unavailable")
	}
	if result.Status != domain.ExecAborted {
		t.Errorf("status = %s, want aborted", result.Status)
	}
}
