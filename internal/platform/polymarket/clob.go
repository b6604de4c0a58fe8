package polymarket

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/oddlot/polyarb/internal/crypto"
	"github.com/oddlot/polyarb/internal/domain"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// ClobClient is the REST client for the CLOB (Central Limit Order Book)
// API. It serves quotes under every price semantics and places signed leg
// orders.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer
	hmacAuth   *crypto.HMACAuth
}

var _ domain.PriceSource = (*ClobClient)(nil)

// NewClobClient creates a CLOB client.
//
// baseURL is the API root, e.g. "https://clob.polymarket.com". signer is
// the EIP-712 signer; hmac may be nil until DeriveAPIKey runs.
func NewClobClient(baseURL string, signer *crypto.Signer, hmac *crypto.HMACAuth) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer:   signer,
		hmacAuth: hmac,
	}
}

// GetQuote fetches a quote under the requested price semantics. ASK, BID
// and MID come from the order book; LIVE from the last trade; ACTUAL from
// the wallet's own trade history.
func (c *ClobClient) GetQuote(ctx context.Context, tokenID string, pt domain.PriceType) (domain.Quote, error) {
	switch pt {
	case domain.PriceTypeAsk, domain.PriceTypeBid, domain.PriceTypeMid:
		return c.bookQuote(ctx, tokenID, pt)
	case domain.PriceTypeLive:
		return c.lastTradeQuote(ctx, tokenID)
	case domain.PriceTypeActual:
		return c.ownTradeQuote(ctx, tokenID)
	default:
		return domain.Quote{}, fmt.Errorf("polymarket/clob: unknown price type %q", pt)
	}
}

func (c *ClobClient) bookQuote(ctx context.Context, tokenID string, pt domain.PriceType) (domain.Quote, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/book?token_id="+url.QueryEscape(tokenID), nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("polymarket/clob: book for %s: %w", tokenID, err)
	}

	var book APIBook
	if err := json.Unmarshal(respBody, &book); err != nil {
		return domain.Quote{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}

	ask, okAsk := book.BestAsk()
	bid, okBid := book.BestBid()

	q := domain.Quote{TokenID: tokenID, Type: pt, AsOf: time.Now().UTC()}
	var askMicros, bidMicros int64
	if okAsk {
		if askMicros, err = parseMicros(ask.Price); err != nil {
			return domain.Quote{}, err
		}
	}
	if okBid {
		if bidMicros, err = parseMicros(bid.Price); err != nil {
			return domain.Quote{}, err
		}
	}
	if askMicros > 0 && bidMicros > 0 {
		mid := (askMicros + bidMicros) / 2
		if mid > 0 {
			q.SpreadBps = (askMicros - bidMicros) * 10_000 / mid
		}
	}

	switch pt {
	case domain.PriceTypeAsk:
		if !okAsk {
			return domain.Quote{}, fmt.Errorf("polymarket/clob: %w: no asks for %s", domain.ErrQuoteUnavailable, tokenID)
		}
		q.PriceMicros = askMicros
		if q.DepthMicros, err = parseMicros(ask.Size); err != nil {
			return domain.Quote{}, err
		}
	case domain.PriceTypeBid:
		if !okBid {
			return domain.Quote{}, fmt.Errorf("polymarket/clob: %w: no bids for %s", domain.ErrQuoteUnavailable, tokenID)
		}
		q.PriceMicros = bidMicros
		if q.DepthMicros, err = parseMicros(bid.Size); err != nil {
			return domain.Quote{}, err
		}
	case domain.PriceTypeMid:
		if !okAsk || !okBid {
			return domain.Quote{}, fmt.Errorf("polymarket/clob: %w: one-sided book for %s", domain.ErrQuoteUnavailable, tokenID)
		}
		q.PriceMicros = (askMicros + bidMicros) / 2
	}
	return q, nil
}

func (c *ClobClient) lastTradeQuote(ctx context.Context, tokenID string) (domain.Quote, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/last-trade-price?token_id="+url.QueryEscape(tokenID), nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("polymarket/clob: last trade for %s: %w", tokenID, err)
	}

	var trade APILastTrade
	if err := json.Unmarshal(respBody, &trade); err != nil {
		return domain.Quote{}, fmt.Errorf("polymarket/clob: decode last trade: %w", err)
	}
	price, err := parseMicros(trade.Price)
	if err != nil {
		return domain.Quote{}, err
	}
	return domain.Quote{
		TokenID:     tokenID,
		Type:        domain.PriceTypeLive,
		PriceMicros: price,
		AsOf:        time.Now().UTC(),
	}, nil
}

// ownTradeQuote returns the price of the wallet's most recent trade in the
// token. ACTUAL quotes reflect realized fills, so they are never cached.
func (c *ClobClient) ownTradeQuote(ctx context.Context, tokenID string) (domain.Quote, error) {
	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodGet, "/data/trades?asset_id="+url.QueryEscape(tokenID), nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("polymarket/clob: own trades for %s: %w", tokenID, err)
	}

	var trades []APITrade
	if err := json.Unmarshal(respBody, &trades); err != nil {
		return domain.Quote{}, fmt.Errorf("polymarket/clob: decode trades: %w", err)
	}
	if len(trades) == 0 {
		return domain.Quote{}, fmt.Errorf("polymarket/clob: %w: no own trades for %s", domain.ErrQuoteUnavailable, tokenID)
	}

	price, err := parseMicros(trades[0].Price)
	if err != nil {
		return domain.Quote{}, err
	}
	size, err := parseMicros(trades[0].Size)
	if err != nil {
		return domain.Quote{}, err
	}
	return domain.Quote{
		TokenID:     tokenID,
		Type:        domain.PriceTypeActual,
		PriceMicros: price,
		DepthMicros: size,
		AsOf:        time.Now().UTC(),
	}, nil
}

// PlaceLeg signs and submits a buy order for one basket leg at its quoted
// price and the given size, returning the venue's fill report.
func (c *ClobClient) PlaceLeg(ctx context.Context, leg domain.Leg, sizeMicros int64) (domain.LegFill, error) {
	if c.hmacAuth == nil {
		return domain.LegFill{}, fmt.Errorf("polymarket/clob: %w: no API credentials; run DeriveAPIKey first", domain.ErrUnauthorized)
	}

	salt, err := randomSalt()
	if err != nil {
		return domain.LegFill{}, fmt.Errorf("polymarket/clob: %w: %v", domain.ErrSigningFailed, err)
	}

	address := c.signer.Address().Hex()
	// Buying sizeMicros shares at leg.PriceMicros: the maker amount is the
	// USDC spent, the taker amount the shares received. Both sides use
	// 6-decimal fixed point, matching micro-units exactly.
	makerAmount := leg.PriceMicros * sizeMicros / domain.MicrosPerUSD
	payload := crypto.OrderPayload{
		Salt:        salt,
		Maker:       address,
		Signer:      address,
		Taker:       zeroAddress,
		TokenID:     leg.TokenID,
		MakerAmount: strconv.FormatInt(makerAmount, 10),
		TakerAmount: strconv.FormatInt(sizeMicros, 10),
		Expiration:  "0",
		Nonce:       "0",
		FeeRateBps:  "0",
		Side:        0, // BUY
	}

	sig, err := c.signer.SignOrder(payload)
	if err != nil {
		return domain.LegFill{}, fmt.Errorf("polymarket/clob: %w: %v", domain.ErrSigningFailed, err)
	}

	body := map[string]any{
		"order": map[string]any{
			"salt":          payload.Salt,
			"maker":         payload.Maker,
			"signer":        payload.Signer,
			"taker":         payload.Taker,
			"tokenID":       payload.TokenID,
			"makerAmount":   payload.MakerAmount,
			"takerAmount":   payload.TakerAmount,
			"expiration":    payload.Expiration,
			"nonce":         payload.Nonce,
			"feeRateBps":    payload.FeeRateBps,
			"side":          "BUY",
			"signatureType": payload.SignatureType,
			"signature":     sig,
		},
		"owner":     c.hmacAuth.Key,
		"orderType": "FOK", // fill-or-kill: a leg either fills whole or not at all
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return domain.LegFill{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var result APIOrderResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return domain.LegFill{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}
	if !result.Success {
		return domain.LegFill{}, fmt.Errorf("polymarket/clob: order rejected: %s", result.ErrorMsg)
	}

	fill := domain.LegFill{
		OrderID:     result.OrderID,
		PriceMicros: leg.PriceMicros,
		SizeMicros:  sizeMicros,
		FilledAt:    time.Now().UTC(),
	}
	// When the venue reports realized amounts, derive the effective price
	// from them instead of trusting the requested terms.
	if result.MakingAmount != "" && result.TakingAmount != "" {
		making, errM := parseMicros(result.MakingAmount)
		taking, errT := parseMicros(result.TakingAmount)
		if errM == nil && errT == nil && taking > 0 {
			fill.PriceMicros = making * domain.MicrosPerUSD / taking
			fill.SizeMicros = taking
		}
	}
	return fill, nil
}

// CancelOrder cancels a single order by its ID.
func (c *ClobClient) CancelOrder(ctx context.Context, orderID string) error {
	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodDelete, "/order", map[string]any{"orderID": orderID})
	if err != nil {
		return fmt.Errorf("polymarket/clob: cancel order %s: %w", orderID, err)
	}

	var result struct {
		Success  bool   `json:"success"`
		ErrorMsg string `json:"errorMsg"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("polymarket/clob: decode cancel response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("polymarket/clob: cancel failed: %s", result.ErrorMsg)
	}
	return nil
}

// DeriveAPIKey performs the CLOB auth flow to obtain HMAC credentials. It
// signs a ClobAuth EIP-712 message and sends it with L1 headers; on success
// it populates the client's hmacAuth.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) error {
	address := c.signer.Address().Hex()
	timestamp := time.Now().Unix()
	nonce := int64(0)

	sig, err := c.signer.SignAuthMessage(address, timestamp, nonce)
	if err != nil {
		return fmt.Errorf("polymarket/clob: sign auth message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/derive-api-key", nil)
	if err != nil {
		return fmt.Errorf("polymarket/clob: create auth request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", address)
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("POLY_NONCE", strconv.FormatInt(nonce, 10))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polymarket/clob: auth request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("polymarket/clob: read auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("polymarket/clob: auth failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var authResp struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.Unmarshal(respBody, &authResp); err != nil {
		return fmt.Errorf("polymarket/clob: decode auth response: %w", err)
	}

	c.hmacAuth = &crypto.HMACAuth{
		Key:        authResp.APIKey,
		Secret:     authResp.Secret,
		Passphrase: authResp.Passphrase,
	}
	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doRequest sends an unauthenticated request and returns the raw body.
func (c *ClobClient) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	return c.send(ctx, method, path, body, false)
}

// doAuthenticatedRequest attaches L2 HMAC headers before sending.
func (c *ClobClient) doAuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	return c.send(ctx, method, path, body, true)
}

func (c *ClobClient) send(ctx context.Context, method, path string, body any, authed bool) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authed && c.hmacAuth != nil {
		address := c.signer.Address().Hex()
		for k, v := range c.hmacAuth.L2Headers(address, method, path, bodyStr) {
			req.Header.Set(k, v)
		}
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

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// randomSalt returns a random decimal salt for order signing.
func randomSalt() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return new(big.Int).SetBytes(buf[:]).String(), nil
}
