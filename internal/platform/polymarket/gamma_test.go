package polymarket

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGammaClient_ListMarkets_SkipsAndLogsMalformedRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// One well-formed binary market and one row whose outcome labels do
		// not match its token list.
		_, _ = w.Write([]byte(`[
			{
				"id": "m-good",
				"question": "Will it rain?",
				"outcomes": "[\"Yes\",\"No\"]",
				"clobTokenIds": "[\"tok-yes\",\"tok-no\"]",
				"active": true,
				"closed": false
			},
			{
				"id": "m-bad",
				"question": "Broken row",
				"outcomes": "[\"Yes\",\"No\"]",
				"clobTokenIds": "[\"tok-only\"]",
				"active": true,
				"closed": false
			}
		]`))
	}))
	defer srv.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	c := NewGammaClient(srv.URL, logger)

	markets, err := c.ListMarkets(context.Background())
	if err != nil {
		t.Fatalf("ListMarkets: %v", err)
	}
	if len(markets) != 1 || markets[0].ID != "m-good" {
		t.Fatalf("markets = %+v, want only m-good", markets)
	}
	if !strings.Contains(logs.String(), "m-bad") {
		t.Errorf("log output %q should name the skipped row", logs.String())
	}
}
