package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/oddlot/polyarb/internal/domain"
)

const gammaPageSize = 500

// GammaClient is the REST client for the Gamma metadata API. It is the
// market source for scanning: questions, outcome tokens, NegRisk grouping
// and lifecycle status.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ domain.MarketSource = (*GammaClient)(nil)

// NewGammaClient creates a Gamma client. baseURL is the API root, e.g.
// "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string, logger *slog.Logger) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(slog.String("component", "gamma_client")),
	}
}

// GetMarket fetches one market. For NegRisk markets the exclusivity arity
// is resolved by counting the active markets sharing its NegRiskID, since a
// single Gamma row only describes its own two outcome tokens.
func (c *GammaClient) GetMarket(ctx context.Context, marketID string) (domain.Market, error) {
	respBody, err := c.get(ctx, "/markets/"+url.PathEscape(marketID))
	if err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: market %s: %w", marketID, err)
	}

	var row APIGammaMarket
	if err := json.Unmarshal(respBody, &row); err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/gamma: decode market %s: %w", marketID, err)
	}

	m, err := row.ToDomainMarket()
	if err != nil {
		return domain.Market{}, err
	}

	if m.NegRisk && m.NegRiskID != "" {
		group, err := c.listGroup(ctx, m.NegRiskID)
		if err != nil {
			return domain.Market{}, err
		}
		if len(group) > 0 {
			m.Arity = len(group)
		}
	}
	return m, nil
}

// ListMarkets pages through every active market.
func (c *GammaClient) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	var out []domain.Market
	for offset := 0; ; offset += gammaPageSize {
		rows, err := c.listPage(ctx, map[string]string{
			"active": "true",
			"closed": "false",
			"limit":  strconv.Itoa(gammaPageSize),
			"offset": strconv.Itoa(offset),
		})
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			m, err := row.ToDomainMarket()
			if err != nil {
				// A malformed row poisons only itself, not the listing.
				c.logger.WarnContext(ctx, "skipping malformed market row",
					slog.String("market_id", row.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			out = append(out, m)
		}
		if len(rows) < gammaPageSize {
			return out, nil
		}
	}
}

// listGroup returns the active markets sharing a NegRisk group ID.
func (c *GammaClient) listGroup(ctx context.Context, negRiskID string) ([]APIGammaMarket, error) {
	return c.listPage(ctx, map[string]string{
		"neg_risk_market_id": negRiskID,
		"active":             "true",
		"limit":              strconv.Itoa(gammaPageSize),
	})
}

func (c *GammaClient) listPage(ctx context.Context, params map[string]string) ([]APIGammaMarket, error) {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}

	respBody, err := c.get(ctx, "/markets?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list markets: %w", err)
	}

	var rows []APIGammaMarket
	if err := json.Unmarshal(respBody, &rows); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode market list: %w", err)
	}
	return rows, nil
}

func (c *GammaClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}
