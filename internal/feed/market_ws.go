// Package feed keeps the shared quote cache warm from the venue's
// real-time market data stream, so scan passes mostly hit the cache
// instead of the REST API.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oddlot/polyarb/internal/domain"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// MarketWS subscribes to book and last-trade channels for a set of tokens
// and writes each update into the quote cache. It reconnects with
// exponential backoff until its context is cancelled.
type MarketWS struct {
	wsURL    string
	tokenIDs []string
	cache    domain.QuoteCache
	logger   *slog.Logger
}

// NewMarketWS creates a market data feed. wsURL is the CLOB WebSocket
// endpoint, e.g. "wss://ws-subscriptions-clob.polymarket.com/ws/market".
func NewMarketWS(wsURL string, tokenIDs []string, cache domain.QuoteCache, logger *slog.Logger) *MarketWS {
	return &MarketWS{
		wsURL:    wsURL,
		tokenIDs: tokenIDs,
		cache:    cache,
		logger:   logger.With(slog.String("component", "market_ws")),
	}
}

// Run connects and consumes updates until ctx is cancelled. Every
// disconnect is retried with backoff; the only non-nil return is ctx.Err().
func (f *MarketWS) Run(ctx context.Context) error {
	if len(f.tokenIDs) == 0 {
		f.logger.Info("no tokens to subscribe, feed idle")
		<-ctx.Done()
		return ctx.Err()
	}

	delay := reconnectDelay
	for {
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("market feed disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (f *MarketWS) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: %w: connect: %v", domain.ErrWSDisconnect, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	sub := map[string]any{
		"type":       "subscribe",
		"assets_ids": f.tokenIDs,
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("feed: %w: subscribe: %v", domain.ErrWSDisconnect, err)
	}
	f.logger.Info("market feed subscribed", slog.Int("tokens", len(f.tokenIDs)))

	// Close the connection when ctx ends so the blocked read returns.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-stop:
		}
	}()

	pinger := time.NewTicker(pingPeriod)
	defer pinger.Stop()
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-pinger.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("feed: %w: read: %v", domain.ErrWSDisconnect, err)
		}
		f.handleMessage(ctx, message)
	}
}

type bookMessage struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Bids      []struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	} `json:"bids"`
	Asks []struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	} `json:"asks"`
}

type lastTradeMessage struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Price     string `json:"price"`
}

// handleMessage routes one stream message into cache writes. Unparseable
// messages are dropped; a cache write failure is logged, not fatal.
func (f *MarketWS) handleMessage(ctx context.Context, raw []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return
	}

	now := time.Now().UTC()
	switch envelope.EventType {
	case "book":
		var msg bookMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		f.cacheBook(ctx, msg, now)

	case "last_trade_price":
		var msg lastTradeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		price, err := parsePriceMicros(msg.Price)
		if err != nil || price <= 0 {
			return
		}
		f.setQuote(ctx, domain.Quote{
			TokenID:     msg.AssetID,
			Type:        domain.PriceTypeLive,
			PriceMicros: price,
			AsOf:        now,
		})
	}
}

// cacheBook writes ASK, BID and MID quotes from one book snapshot. Best
// ask is the last entry (asks sort descending); best bid likewise.
func (f *MarketWS) cacheBook(ctx context.Context, msg bookMessage, now time.Time) {
	var askMicros, askDepth, bidMicros, bidDepth int64
	if n := len(msg.Asks); n > 0 {
		askMicros, _ = parsePriceMicros(msg.Asks[n-1].Price)
		askDepth, _ = parsePriceMicros(msg.Asks[n-1].Size)
	}
	if n := len(msg.Bids); n > 0 {
		bidMicros, _ = parsePriceMicros(msg.Bids[n-1].Price)
		bidDepth, _ = parsePriceMicros(msg.Bids[n-1].Size)
	}

	var spreadBps int64
	if askMicros > 0 && bidMicros > 0 {
		mid := (askMicros + bidMicros) / 2
		if mid > 0 {
			spreadBps = (askMicros - bidMicros) * 10_000 / mid
		}
	}

	if askMicros > 0 {
		f.setQuote(ctx, domain.Quote{
			TokenID: msg.AssetID, Type: domain.PriceTypeAsk,
			PriceMicros: askMicros, DepthMicros: askDepth, SpreadBps: spreadBps, AsOf: now,
		})
	}
	if bidMicros > 0 {
		f.setQuote(ctx, domain.Quote{
			TokenID: msg.AssetID, Type: domain.PriceTypeBid,
			PriceMicros: bidMicros, DepthMicros: bidDepth, SpreadBps: spreadBps, AsOf: now,
		})
	}
	if askMicros > 0 && bidMicros > 0 {
		f.setQuote(ctx, domain.Quote{
			TokenID: msg.AssetID, Type: domain.PriceTypeMid,
			PriceMicros: (askMicros + bidMicros) / 2, SpreadBps: spreadBps, AsOf: now,
		})
	}
}

func (f *MarketWS) setQuote(ctx context.Context, q domain.Quote) {
	if err := f.cache.SetQuote(ctx, q); err != nil {
		f.logger.WarnContext(ctx, "quote cache write failed",
			slog.String("token_id", q.TokenID),
			slog.String("error", err.Error()),
		)
	}
}

func parsePriceMicros(s string) (int64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(v*domain.MicrosPerUSD + 0.5), nil
}
