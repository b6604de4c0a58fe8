package domain

import "time"

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive  MarketStatus = "active"
	MarketStatusClosed  MarketStatus = "closed"
	MarketStatusSettled MarketStatus = "settled"
)

// OutcomeSide labels the complementary side of a binary outcome token.
type OutcomeSide string

const (
	SideYes OutcomeSide = "YES"
	SideNo  OutcomeSide = "NO"
)

// Outcome is one tradable outcome of a market. Immutable once observed.
type Outcome struct {
	TokenID string
	Label   string // e.g. "Yes", "No", or a candidate name for NegRisk markets
	Side    OutcomeSide
}

// Market is a set of mutually exclusive outcomes: binary markets carry
// exactly two, NegRisk condition groups N >= 2 with exactly one resolving
// true. Arity is the exclusivity arity of the whole condition group, which
// for NegRisk markets can span several Market rows sharing a NegRiskID.
type Market struct {
	ID          string
	Question    string
	Slug        string
	EventID     string
	Outcomes    []Outcome
	ConditionID string
	NegRisk     bool
	NegRiskID   string
	Arity       int
	Topic       string // risk bucketing tag, e.g. "politics/us-election"
	Entity      string // counterparty/entity tag, e.g. a candidate or team
	Volume      float64
	Status      MarketStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Outcome returns the first outcome on the given side, if any.
func (m Market) Outcome(side OutcomeSide) (Outcome, bool) {
	for _, o := range m.Outcomes {
		if o.Side == side {
			return o, true
		}
	}
	return Outcome{}, false
}

// Binary reports whether the market is a plain two-outcome market.
func (m Market) Binary() bool {
	return len(m.Outcomes) == 2 && !m.NegRisk
}
