package domain

import (
	"context"
	"time"
)

// PriceType selects which price semantics a quote is taken under.
type PriceType string

const (
	PriceTypeAsk    PriceType = "ASK"    // best ask (cost to buy now)
	PriceTypeBid    PriceType = "BID"    // best bid (proceeds of selling now)
	PriceTypeMid    PriceType = "MID"    // (bid + ask) / 2
	PriceTypeLive   PriceType = "LIVE"   // last traded price, cached with a TTL
	PriceTypeActual PriceType = "ACTUAL" // realized price from own trade history
)

// MicrosPerUSD is the fixed-point scale for every monetary value in the core.
// Prices, sizes and notionals are carried as int64 micro-units; percentages
// and basis points are derived only at presentation time.
const MicrosPerUSD = 1_000_000

// Quote is a point-in-time price observation for one token. A missing quote
// is reported as ErrQuoteUnavailable by the source, never as a zero value.
type Quote struct {
	TokenID     string
	Type        PriceType
	PriceMicros int64
	DepthMicros int64 // size available at the quoted price, micro-shares
	SpreadBps   int64 // bid-ask spread at observation time
	AsOf        time.Time
}

// StaleAfter reports whether the quote is older than ttl at the given time.
func (q Quote) StaleAfter(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(q.AsOf) > ttl
}

// PriceUSD returns the display price.
func (q Quote) PriceUSD() float64 {
	return float64(q.PriceMicros) / MicrosPerUSD
}

// PriceSource supplies live quotes from the venue.
type PriceSource interface {
	GetQuote(ctx context.Context, tokenID string, pt PriceType) (Quote, error)
}

// MarketSource supplies market metadata from the venue.
type MarketSource interface {
	GetMarket(ctx context.Context, marketID string) (Market, error)
	ListMarkets(ctx context.Context) ([]Market, error)
}
