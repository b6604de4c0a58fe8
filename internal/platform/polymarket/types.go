// Package polymarket implements the venue adapters: the CLOB client for
// quotes and order placement, and the Gamma client for market metadata.
package polymarket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oddlot/polyarb/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether a flag is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIBookLevel is one price level of an order book response. Prices and
// sizes travel as decimal strings.
type APIBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// APIBook is the CLOB /book response for one token.
type APIBook struct {
	Market    string         `json:"market"`
	AssetID   string         `json:"asset_id"`
	Timestamp string         `json:"timestamp"`
	Bids      []APIBookLevel `json:"bids"`
	Asks      []APIBookLevel `json:"asks"`
}

// BestAsk returns the lowest ask level. The CLOB sorts asks descending, so
// the best ask is the last entry.
func (b APIBook) BestAsk() (APIBookLevel, bool) {
	if len(b.Asks) == 0 {
		return APIBookLevel{}, false
	}
	return b.Asks[len(b.Asks)-1], true
}

// BestBid returns the highest bid level (bids sort ascending, best last).
func (b APIBook) BestBid() (APIBookLevel, bool) {
	if len(b.Bids) == 0 {
		return APIBookLevel{}, false
	}
	return b.Bids[len(b.Bids)-1], true
}

// APIOrderResult is the response from placing an order via the CLOB API.
type APIOrderResult struct {
	Success      bool   `json:"success"`
	ErrorMsg     string `json:"errorMsg"`
	OrderID      string `json:"orderID"`
	Status       string `json:"status"`
	MakingAmount string `json:"makingAmount"`
	TakingAmount string `json:"takingAmount"`
}

// APILastTrade is the CLOB /last-trade-price response.
type APILastTrade struct {
	Price string `json:"price"`
	Side  string `json:"side"`
}

// APITrade is one row of the authenticated /data/trades response.
type APITrade struct {
	ID        string `json:"id"`
	AssetID   string `json:"asset_id"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	MatchTime string `json:"match_time"`
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIGammaMarket is one market row from the Gamma metadata API. Several
// list-valued fields arrive as JSON-encoded strings and need a second
// decode pass.
type APIGammaMarket struct {
	ID             string   `json:"id"`
	Question       string   `json:"question"`
	Slug           string   `json:"slug"`
	ConditionID    string   `json:"conditionId"`
	Outcomes       string   `json:"outcomes"`     // JSON string array, encoded as a string
	ClobTokenIDs   string   `json:"clobTokenIds"` // same encoding
	NegRisk        flexBool `json:"negRisk"`
	NegRiskID      string   `json:"negRiskMarketID"`
	Volume         float64  `json:"volumeNum"`
	Active         flexBool `json:"active"`
	Closed         flexBool `json:"closed"`
	Category       string   `json:"category"`
	GroupItemTitle string   `json:"groupItemTitle"`
	Events         []struct {
		ID string `json:"id"`
	} `json:"events"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ToDomainMarket converts a Gamma row into a domain market. Binary markets
// list YES first and NO second; that positional convention is the venue's.
func (m APIGammaMarket) ToDomainMarket() (domain.Market, error) {
	var labels, tokenIDs []string
	if m.Outcomes != "" {
		if err := json.Unmarshal([]byte(m.Outcomes), &labels); err != nil {
			return domain.Market{}, fmt.Errorf("polymarket/gamma: market %s: decode outcomes: %w", m.ID, err)
		}
	}
	if m.ClobTokenIDs != "" {
		if err := json.Unmarshal([]byte(m.ClobTokenIDs), &tokenIDs); err != nil {
			return domain.Market{}, fmt.Errorf("polymarket/gamma: market %s: decode token ids: %w", m.ID, err)
		}
	}
	if len(labels) != len(tokenIDs) {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: market %s: %d outcomes vs %d tokens", m.ID, len(labels), len(tokenIDs))
	}

	outcomes := make([]domain.Outcome, 0, len(labels))
	for i, label := range labels {
		side := domain.SideNo
		if i == 0 {
			side = domain.SideYes
		}
		outcomes = append(outcomes, domain.Outcome{
			TokenID: tokenIDs[i],
			Label:   label,
			Side:    side,
		})
	}

	status := domain.MarketStatusActive
	switch {
	case bool(m.Closed):
		status = domain.MarketStatusClosed
	case !bool(m.Active):
		status = domain.MarketStatusSettled
	}

	out := domain.Market{
		ID:          m.ID,
		Question:    m.Question,
		Slug:        m.Slug,
		Outcomes:    outcomes,
		ConditionID: m.ConditionID,
		NegRisk:     bool(m.NegRisk),
		NegRiskID:   m.NegRiskID,
		Arity:       len(outcomes),
		Topic:       m.Category,
		Entity:      m.GroupItemTitle,
		Volume:      m.Volume,
		Status:      status,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if len(m.Events) > 0 {
		out.EventID = m.Events[0].ID
	}
	return out, nil
}

// parseMicros converts a decimal string price or size into micro-units.
func parseMicros(s string) (int64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("polymarket: parse %q: %w", s, err)
	}
	return int64(f*domain.MicrosPerUSD + 0.5), nil
}
