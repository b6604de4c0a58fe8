package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oddlot/polyarb/internal/domain"
)

// QuoteCache implements domain.QuoteCache using Redis hashes. Each quote
// lives at "quote:{tokenID}:{type}" with fields "price", "depth", "spread"
// and "ts" (Unix nanoseconds), expiring after the configured TTL so a dead
// feed cannot serve ancient prices forever.
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache backed by the given Client. ttl bounds
// how long an entry survives without refresh; zero disables expiry.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying(), ttl: ttl}
}

func quoteKey(tokenID string, pt domain.PriceType) string {
	return "quote:" + tokenID + ":" + string(pt)
}

// SetQuote stores a quote, refreshing the key's TTL.
func (qc *QuoteCache) SetQuote(ctx context.Context, q domain.Quote) error {
	key := quoteKey(q.TokenID, q.Type)
	fields := map[string]interface{}{
		"price":  strconv.FormatInt(q.PriceMicros, 10),
		"depth":  strconv.FormatInt(q.DepthMicros, 10),
		"spread": strconv.FormatInt(q.SpreadBps, 10),
		"ts":     strconv.FormatInt(q.AsOf.UnixNano(), 10),
	}

	pipe := qc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	if qc.ttl > 0 {
		pipe.Expire(ctx, key, qc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s/%s: %w", q.TokenID, q.Type, err)
	}
	return nil
}

// GetQuote retrieves a cached quote, or domain.ErrNotFound when absent.
func (qc *QuoteCache) GetQuote(ctx context.Context, tokenID string, pt domain.PriceType) (domain.Quote, error) {
	vals, err := qc.rdb.HGetAll(ctx, quoteKey(tokenID, pt)).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s/%s: %w", tokenID, pt, err)
	}
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}

	q := domain.Quote{TokenID: tokenID, Type: pt}
	if q.PriceMicros, err = parseField(vals, "price", tokenID); err != nil {
		return domain.Quote{}, err
	}
	if q.DepthMicros, err = parseField(vals, "depth", tokenID); err != nil {
		return domain.Quote{}, err
	}
	if q.SpreadBps, err = parseField(vals, "spread", tokenID); err != nil {
		return domain.Quote{}, err
	}
	tsNano, err := parseField(vals, "ts", tokenID)
	if err != nil {
		return domain.Quote{}, err
	}
	q.AsOf = time.Unix(0, tsNano).UTC()
	return q, nil
}

// Invalidate drops every cached price type for a token.
func (qc *QuoteCache) Invalidate(ctx context.Context, tokenID string) error {
	keys := []string{
		quoteKey(tokenID, domain.PriceTypeAsk),
		quoteKey(tokenID, domain.PriceTypeBid),
		quoteKey(tokenID, domain.PriceTypeMid),
		quoteKey(tokenID, domain.PriceTypeLive),
	}
	if err := qc.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: invalidate %s: %w", tokenID, err)
	}
	return nil
}

func parseField(vals map[string]string, field, tokenID string) (int64, error) {
	s, ok := vals[field]
	if !ok {
		return 0, domain.ErrNotFound
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: parse %s for %s: %w", field, tokenID, err)
	}
	return n, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
