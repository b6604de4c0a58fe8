package polymarket

import (
	"encoding/json"
	"testing"

	"github.com/oddlot/polyarb/internal/domain"
)

func TestFlexBool(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`"true"`, true},
		{`"True"`, true},
		{`"false"`, false},
		{`"1"`, true},
		{`"0"`, false},
	}
	for _, tt := range tests {
		var f flexBool
		if err := json.Unmarshal([]byte(tt.raw), &f); err != nil {
			t.Errorf("%s: %v", tt.raw, err)
			continue
		}
		if bool(f) != tt.want {
			t.Errorf("%s = %v, want %v", tt.raw, f, tt.want)
		}
	}

	var f flexBool
	if err := json.Unmarshal([]byte(`42`), &f); err == nil {
		t.Error("expected an error for a numeric flag")
	}
}

func TestAPIBook_BestLevels(t *testing.T) {
	book := APIBook{
		// Asks sort descending, so the best (lowest) ask is last.
		Asks: []APIBookLevel{{Price: "0.60", Size: "10"}, {Price: "0.55", Size: "25"}},
		// Bids sort ascending, best (highest) last.
		Bids: []APIBookLevel{{Price: "0.40", Size: "5"}, {Price: "0.45", Size: "12"}},
	}

	ask, ok := book.BestAsk()
	if !ok || ask.Price != "0.55" {
		t.Errorf("best ask = %+v, %v", ask, ok)
	}
	bid, ok := book.BestBid()
	if !ok || bid.Price != "0.45" {
		t.Errorf("best bid = %+v, %v", bid, ok)
	}

	empty := APIBook{}
	if _, ok := empty.BestAsk(); ok {
		t.Error("empty book must not report a best ask")
	}
	if _, ok := empty.BestBid(); ok {
		t.Error("empty book must not report a best bid")
	}
}

func TestAPIGammaMarket_ToDomainMarket(t *testing.T) {
	m := APIGammaMarket{
		ID:           "516710",
		Question:     "Will candidate A win?",
		Slug:         "candidate-a-win",
		ConditionID:  "0xcond",
		Outcomes:     `["Yes","No"]`,
		ClobTokenIDs: `["tok-yes","tok-no"]`,
		NegRisk:      true,
		NegRiskID:    "0xgroup",
		Volume:       12345.6,
		Active:       true,
		Category:     "politics",
		Events:       []struct{ ID string `json:"id"` }{{ID: "ev-1"}},
	}

	got, err := m.ToDomainMarket()
	if err != nil {
		t.Fatalf("ToDomainMarket: %v", err)
	}
	if len(got.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(got.Outcomes))
	}
	// First outcome is YES, second NO, by venue convention.
	if got.Outcomes[0].Side != domain.SideYes || got.Outcomes[0].TokenID != "tok-yes" {
		t.Errorf("first outcome = %+v, want YES/tok-yes", got.Outcomes[0])
	}
	if got.Outcomes[1].Side != domain.SideNo || got.Outcomes[1].TokenID != "tok-no" {
		t.Errorf("second outcome = %+v, want NO/tok-no", got.Outcomes[1])
	}
	if !got.NegRisk || got.NegRiskID != "0xgroup" || got.Arity != 2 {
		t.Errorf("negrisk fields = %v/%s/%d", got.NegRisk, got.NegRiskID, got.Arity)
	}
	if got.Status != domain.MarketStatusActive {
		t.Errorf("status = %s, want active", got.Status)
	}
	if got.EventID != "ev-1" {
		t.Errorf("event id = %q", got.EventID)
	}
}

func TestAPIGammaMarket_ToDomainMarket_Statuses(t *testing.T) {
	base := APIGammaMarket{ID: "m", Outcomes: `["Yes","No"]`, ClobTokenIDs: `["a","b"]`}

	closed := base
	closed.Closed = true
	closed.Active = true
	if got, _ := closed.ToDomainMarket(); got.Status != domain.MarketStatusClosed {
		t.Errorf("closed market status = %s", got.Status)
	}

	settled := base
	settled.Active = false
	if got, _ := settled.ToDomainMarket(); got.Status != domain.MarketStatusSettled {
		t.Errorf("inactive market status = %s", got.Status)
	}
}

func TestAPIGammaMarket_ToDomainMarket_MismatchedTokens(t *testing.T) {
	m := APIGammaMarket{
		ID:           "m",
		Outcomes:     `["Yes","No"]`,
		ClobTokenIDs: `["only-one"]`,
	}
	if _, err := m.ToDomainMarket(); err == nil {
		t.Fatal("expected an error when outcome and token counts differ")
	}
}

func TestParseMicros(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"0.55", 550_000},
		{"1", 1_000_000},
		{"0.123456", 123_456},
		{"0.0000015", 2}, // rounds half up
		{"0", 0},
	}
	for _, tt := range tests {
		got, err := parseMicros(tt.in)
		if err != nil {
			t.Errorf("%s: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseMicros(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}

	if _, err := parseMicros("not-a-price"); err == nil {
		t.Error("expected an error for a malformed price")
	}
}
