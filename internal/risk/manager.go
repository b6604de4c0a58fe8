// Package risk enforces exposure limits across every dimension the desk
// cares about: total, per-strategy, per-market, per-topic, per-entity and
// rule-risk notional. Approval reserves headroom atomically so concurrent
// executions can never jointly exceed a limit.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oddlot/polyarb/internal/domain"
)

// Decision is the outcome of a risk check. Reasons lists every violated
// limit, not just the first, so operators can see the full picture.
type Decision struct {
	Accepted      bool
	Reasons       []string
	ReservationID string // set when accepted; must be finalized or released
	RuleRisk      map[string]domain.RuleRisk

	// Err classifies a rejection: ErrRuleRiskBlocked when rule analysis
	// blocked the basket, ErrInsufficientLiquidity when only the liquidity
	// floor failed, ErrRiskLimitExceeded otherwise. Nil when accepted.
	Err error
}

// book tracks committed plus reserved notional per dimension.
type book struct {
	totalMicros    int64
	byStrategy     map[string]int64
	byMarket       map[string]int64
	byTopic        map[string]int64
	byEntity       map[string]int64
	ruleRiskMicros int64
	positions      int
}

func newBook() *book {
	return &book{
		byStrategy: make(map[string]int64),
		byMarket:   make(map[string]int64),
		byTopic:    make(map[string]int64),
		byEntity:   make(map[string]int64),
	}
}

// reservation is headroom held for one in-flight execution.
type reservation struct {
	id             string
	opportunityID  string
	notionalMicros int64
	strategyID     string
	marketIDs      []string
	topic          string
	entity         string
	ruleRisky      bool
	legs           int
	createdAt      time.Time
}

// Manager is the single writer over the exposure book. All mutation goes
// through one mutex so check-and-reserve is atomic.
type Manager struct {
	mu           sync.Mutex
	limits       domain.RiskLimits
	classifier   domain.RuleRiskClassifier // nil: every market accepted, score 0
	book         *book
	reservations map[string]*reservation
	logger       *slog.Logger
}

// NewManager creates a risk manager. classifier may be nil.
func NewManager(limits domain.RiskLimits, classifier domain.RuleRiskClassifier, logger *slog.Logger) *Manager {
	return &Manager{
		limits:       limits,
		classifier:   classifier,
		book:         newBook(),
		reservations: make(map[string]*reservation),
		logger:       logger.With(slog.String("component", "risk_manager")),
	}
}

// Check evaluates every limit against the opportunity at the given size and,
// if all pass, reserves the notional in the same critical section. override
// lets an operator push through a "review" rule-risk verdict; it never
// bypasses notional limits.
func (m *Manager) Check(ctx context.Context, opp domain.Opportunity, sizeMicros int64, override bool) (Decision, error) {
	if sizeMicros <= 0 {
		return Decision{}, fmt.Errorf("risk: size must be positive, got %d", sizeMicros)
	}

	// Classification may hit the network; do it before taking the lock.
	ruleRisks, ruleReasons, risky := m.classify(ctx, opp, override)

	notional := opp.NotionalMicros(sizeMicros)
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	reasons := append([]string(nil), ruleReasons...)

	if !opp.ExpiresAt.IsZero() && now.After(opp.ExpiresAt) {
		reasons = append(reasons, fmt.Sprintf("opportunity expired at %s", opp.ExpiresAt.Format(time.RFC3339)))
	}
	if opp.AdjustedProfitBps() < m.limits.MinProfitBps {
		reasons = append(reasons, fmt.Sprintf("adjusted profit %.1fbps below minimum %.1fbps",
			opp.AdjustedProfitBps(), m.limits.MinProfitBps))
	}
	liqViolated := opp.LiquidityScore < m.limits.MinLiquidityScore
	if liqViolated {
		reasons = append(reasons, fmt.Sprintf("liquidity score %.2f below minimum %.2f",
			opp.LiquidityScore, m.limits.MinLiquidityScore))
	}

	reasons = append(reasons, m.notionalViolations(opp, notional, risky)...)

	if m.limits.MaxPositions > 0 && m.book.positions+len(opp.Legs) > m.limits.MaxPositions {
		reasons = append(reasons, fmt.Sprintf("position count %d+%d exceeds maximum %d",
			m.book.positions, len(opp.Legs), m.limits.MaxPositions))
	}

	if len(reasons) > 0 {
		cause := domain.ErrRiskLimitExceeded
		switch {
		case len(ruleReasons) > 0:
			cause = domain.ErrRuleRiskBlocked
		case liqViolated && len(reasons) == 1:
			cause = domain.ErrInsufficientLiquidity
		}
		m.logger.InfoContext(ctx, "opportunity rejected",
			slog.String("opportunity_id", opp.ID),
			slog.Int("violations", len(reasons)),
			slog.String("cause", cause.Error()),
		)
		return Decision{Accepted: false, Reasons: reasons, RuleRisk: ruleRisks, Err: cause}, nil
	}

	res := &reservation{
		id:             uuid.New().String(),
		opportunityID:  opp.ID,
		notionalMicros: notional,
		strategyID:     opp.StrategyID,
		marketIDs:      opp.MarketIDs,
		topic:          opp.Topic,
		entity:         opp.Entity,
		ruleRisky:      risky,
		legs:           len(opp.Legs),
		createdAt:      now,
	}
	m.reservations[res.id] = res
	m.apply(res, res.notionalMicros, res.legs)

	m.logger.InfoContext(ctx, "notional reserved",
		slog.String("opportunity_id", opp.ID),
		slog.String("reservation_id", res.id),
		slog.Int64("notional_micros", notional),
	)
	return Decision{Accepted: true, ReservationID: res.id, RuleRisk: ruleRisks}, nil
}

// classify runs the rule-risk classifier over every market the opportunity
// touches. A reject verdict always blocks; review blocks unless overridden;
// a classifier failure blocks (fail closed).
func (m *Manager) classify(ctx context.Context, opp domain.Opportunity, override bool) (map[string]domain.RuleRisk, []string, bool) {
	risky := opp.RiskLevel == domain.RiskHigh
	if m.classifier == nil {
		return nil, nil, risky
	}

	risks := make(map[string]domain.RuleRisk, len(opp.MarketIDs))
	var reasons []string
	for _, id := range opp.MarketIDs {
		rr, err := m.classifier.Classify(ctx, id)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("rule risk for market %s unavailable: %v", id, err))
			continue
		}
		risks[id] = rr
		switch rr.Verdict {
		case domain.RuleRiskReject:
			reasons = append(reasons, fmt.Sprintf("market %s rejected by rule analysis (score %.2f)", id, rr.Score))
		case domain.RuleRiskReview:
			risky = true
			if !override {
				reasons = append(reasons, fmt.Sprintf("market %s requires review (score %.2f); pass override to proceed", id, rr.Score))
			}
		}
	}
	return risks, reasons, risky
}

// notionalViolations reports every dimension the added notional would breach.
// Caller holds the lock.
func (m *Manager) notionalViolations(opp domain.Opportunity, notional int64, risky bool) []string {
	var reasons []string
	check := func(name string, used, limit int64) {
		if limit > 0 && used+notional > limit {
			reasons = append(reasons, fmt.Sprintf("%s notional %d+%d exceeds limit %d", name, used, notional, limit))
		}
	}

	check("total", m.book.totalMicros, m.limits.MaxTotalNotionalMicros)
	if opp.StrategyID != "" {
		check("strategy "+opp.StrategyID, m.book.byStrategy[opp.StrategyID], m.limits.MaxPerStrategyNotionalMicros)
	}
	for _, id := range opp.MarketIDs {
		check("market "+id, m.book.byMarket[id], m.limits.MaxPerMarketNotionalMicros)
	}
	if opp.Topic != "" {
		check("topic "+opp.Topic, m.book.byTopic[opp.Topic], m.limits.MaxPerTopicNotionalMicros)
	}
	if opp.Entity != "" {
		check("entity "+opp.Entity, m.book.byEntity[opp.Entity], m.limits.MaxPerEntityNotionalMicros)
	}
	if risky {
		check("rule-risk", m.book.ruleRiskMicros, m.limits.MaxRuleRiskNotionalMicros)
	}
	return reasons
}

// apply adds (or with negative values removes) a reservation's footprint.
// Caller holds the lock.
func (m *Manager) apply(res *reservation, notional int64, legs int) {
	m.book.totalMicros += notional
	if res.strategyID != "" {
		m.book.byStrategy[res.strategyID] += notional
	}
	for _, id := range res.marketIDs {
		m.book.byMarket[id] += notional
	}
	if res.topic != "" {
		m.book.byTopic[res.topic] += notional
	}
	if res.entity != "" {
		m.book.byEntity[res.entity] += notional
	}
	if res.ruleRisky {
		m.book.ruleRiskMicros += notional
	}
	m.book.positions += legs
}

// Finalize replaces a reservation's planned notional with the realized cost
// of the execution's filled legs. Unfilled legs give their headroom back.
func (m *Manager) Finalize(reservationID string, result domain.ExecutionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.reservations[reservationID]
	if !ok {
		return fmt.Errorf("risk: %w: reservation %s", domain.ErrNotFound, reservationID)
	}
	delete(m.reservations, reservationID)

	filled := result.FilledLegs()
	actual := int64(0)
	for _, le := range filled {
		actual += le.FilledPriceMicros * le.FilledSizeMicros / domain.MicrosPerUSD
	}

	// Swap planned for actual: remove the reservation in full, then commit
	// the realized footprint with the filled leg count.
	m.apply(res, -res.notionalMicros, -res.legs)
	if actual > 0 {
		m.apply(res, actual, len(filled))
	}

	m.logger.Info("reservation finalized",
		slog.String("reservation_id", reservationID),
		slog.String("status", string(result.Status)),
		slog.Int64("planned_micros", res.notionalMicros),
		slog.Int64("actual_micros", actual),
	)
	return nil
}

// Release drops a reservation without committing anything, for executions
// that never started.
func (m *Manager) Release(reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.reservations[reservationID]
	if !ok {
		return fmt.Errorf("risk: %w: reservation %s", domain.ErrNotFound, reservationID)
	}
	delete(m.reservations, reservationID)
	m.apply(res, -res.notionalMicros, -res.legs)
	return nil
}

// SuggestSize clamps the requested basket size to the tightest remaining
// headroom across every dimension the opportunity touches. Returns zero when
// no headroom remains.
func (m *Manager) SuggestSize(opp domain.Opportunity, requestedSizeMicros int64) int64 {
	if requestedSizeMicros <= 0 || opp.TotalCostMicros <= 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	headroom := int64(-1)
	narrow := func(used, limit int64) {
		if limit <= 0 {
			return
		}
		room := limit - used
		if room < 0 {
			room = 0
		}
		if headroom < 0 || room < headroom {
			headroom = room
		}
	}

	narrow(m.book.totalMicros, m.limits.MaxTotalNotionalMicros)
	if opp.StrategyID != "" {
		narrow(m.book.byStrategy[opp.StrategyID], m.limits.MaxPerStrategyNotionalMicros)
	}
	for _, id := range opp.MarketIDs {
		narrow(m.book.byMarket[id], m.limits.MaxPerMarketNotionalMicros)
	}
	if opp.Topic != "" {
		narrow(m.book.byTopic[opp.Topic], m.limits.MaxPerTopicNotionalMicros)
	}
	if opp.Entity != "" {
		narrow(m.book.byEntity[opp.Entity], m.limits.MaxPerEntityNotionalMicros)
	}
	if opp.RiskLevel == domain.RiskHigh {
		narrow(m.book.ruleRiskMicros, m.limits.MaxRuleRiskNotionalMicros)
	}

	size := requestedSizeMicros
	if headroom >= 0 {
		maxByNotional := headroom * domain.MicrosPerUSD / opp.TotalCostMicros
		if maxByNotional < size {
			size = maxByNotional
		}
	}
	if opp.MaxSizeMicros > 0 && opp.MaxSizeMicros < size {
		size = opp.MaxSizeMicros
	}
	if size < 0 {
		size = 0
	}
	return size
}

// DimensionUsage is one exposure dimension's usage in a summary snapshot.
type DimensionUsage struct {
	UsedMicros  int64
	LimitMicros int64
	Utilization float64 // 0..1; 0 when the dimension is unlimited
}

// Summary is a point-in-time snapshot of the exposure book.
type Summary struct {
	Total        DimensionUsage
	RuleRisk     DimensionUsage
	ByStrategy   map[string]DimensionUsage
	ByMarket     map[string]DimensionUsage
	ByTopic      map[string]DimensionUsage
	ByEntity     map[string]DimensionUsage
	Positions    int
	MaxPositions int
	Reservations int
}

// Summary snapshots current exposure, reserved amounts included.
func (m *Manager) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	usage := func(used, limit int64) DimensionUsage {
		u := DimensionUsage{UsedMicros: used, LimitMicros: limit}
		if limit > 0 {
			u.Utilization = float64(used) / float64(limit)
		}
		return u
	}
	dimMap := func(src map[string]int64, limit int64) map[string]DimensionUsage {
		out := make(map[string]DimensionUsage, len(src))
		for k, v := range src {
			out[k] = usage(v, limit)
		}
		return out
	}

	return Summary{
		Total:        usage(m.book.totalMicros, m.limits.MaxTotalNotionalMicros),
		RuleRisk:     usage(m.book.ruleRiskMicros, m.limits.MaxRuleRiskNotionalMicros),
		ByStrategy:   dimMap(m.book.byStrategy, m.limits.MaxPerStrategyNotionalMicros),
		ByMarket:     dimMap(m.book.byMarket, m.limits.MaxPerMarketNotionalMicros),
		ByTopic:      dimMap(m.book.byTopic, m.limits.MaxPerTopicNotionalMicros),
		ByEntity:     dimMap(m.book.byEntity, m.limits.MaxPerEntityNotionalMicros),
		Positions:    m.book.positions,
		MaxPositions: m.limits.MaxPositions,
		Reservations: len(m.reservations),
	}
}
