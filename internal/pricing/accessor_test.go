package pricing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/oddlot/polyarb/internal/domain"
)

// countingSource records how often the venue was hit.
type countingSource struct {
	quote domain.Quote
	err   error
	calls int
}

func (s *countingSource) GetQuote(_ context.Context, tokenID string, pt domain.PriceType) (domain.Quote, error) {
	s.calls++
	if s.err != nil {
		return domain.Quote{}, s.err
	}
	q := s.quote
	q.TokenID = tokenID
	q.Type = pt
	return q, nil
}

// memCache is a map-backed QuoteCache.
type memCache struct {
	quotes map[string]domain.Quote
	sets   int
}

func newMemCache() *memCache {
	return &memCache{quotes: make(map[string]domain.Quote)}
}

func (c *memCache) key(tokenID string, pt domain.PriceType) string { return tokenID + ":" + string(pt) }

func (c *memCache) SetQuote(_ context.Context, q domain.Quote) error {
	c.sets++
	c.quotes[c.key(q.TokenID, q.Type)] = q
	return nil
}

func (c *memCache) GetQuote(_ context.Context, tokenID string, pt domain.PriceType) (domain.Quote, error) {
	q, ok := c.quotes[c.key(tokenID, pt)]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return q, nil
}

func (c *memCache) Invalidate(_ context.Context, tokenID string) error {
	for _, pt := range []domain.PriceType{domain.PriceTypeAsk, domain.PriceTypeBid, domain.PriceTypeMid, domain.PriceTypeLive} {
		delete(c.quotes, c.key(tokenID, pt))
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAccessor_CacheFirst(t *testing.T) {
	src := &countingSource{quote: domain.Quote{PriceMicros: 500_000, AsOf: time.Now().UTC()}}
	cache := newMemCache()
	a := NewAccessor(src, cache, time.Minute, testLogger())

	q1, err := a.GetQuote(context.Background(), "tok", domain.PriceTypeAsk)
	if err != nil {
		t.Fatalf("first GetQuote: %v", err)
	}
	q2, err := a.GetQuote(context.Background(), "tok", domain.PriceTypeAsk)
	if err != nil {
		t.Fatalf("second GetQuote: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("source calls = %d, want 1 (second read should hit the cache)", src.calls)
	}
	if q1.PriceMicros != q2.PriceMicros {
		t.Errorf("cached quote differs: %d vs %d", q1.PriceMicros, q2.PriceMicros)
	}
}

func TestAccessor_StaleQuoteRefetched(t *testing.T) {
	src := &countingSource{quote: domain.Quote{PriceMicros: 510_000, AsOf: time.Now().UTC()}}
	cache := newMemCache()
	stale := domain.Quote{
		TokenID: "tok", Type: domain.PriceTypeAsk,
		PriceMicros: 400_000, AsOf: time.Now().UTC().Add(-time.Hour),
	}
	if err := cache.SetQuote(context.Background(), stale); err != nil {
		t.Fatal(err)
	}

	a := NewAccessor(src, cache, time.Minute, testLogger())
	q, err := a.GetQuote(context.Background(), "tok", domain.PriceTypeAsk)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("source calls = %d, want 1 (stale entry must be refetched)", src.calls)
	}
	if q.PriceMicros != 510_000 {
		t.Errorf("price = %d, want the fresh 510000", q.PriceMicros)
	}
}

func TestAccessor_ActualBypassesCache(t *testing.T) {
	src := &countingSource{quote: domain.Quote{PriceMicros: 490_000, AsOf: time.Now().UTC()}}
	cache := newMemCache()
	a := NewAccessor(src, cache, time.Minute, testLogger())

	for i := 0; i < 2; i++ {
		if _, err := a.GetQuote(context.Background(), "tok", domain.PriceTypeActual); err != nil {
			t.Fatalf("GetQuote #%d: %v", i+1, err)
		}
	}
	if src.calls != 2 {
		t.Errorf("source calls = %d, want 2 (ACTUAL is never cached)", src.calls)
	}
	if cache.sets != 0 {
		t.Errorf("cache writes = %d, want 0 for ACTUAL", cache.sets)
	}
}

func TestAccessor_SourceFailureIsQuoteUnavailable(t *testing.T) {
	src := &countingSource{err: errors.New("boom")}
	a := NewAccessor(src, nil, time.Minute, testLogger())

	_, err := a.GetQuote(context.Background(), "tok", domain.PriceTypeAsk)
	if !errors.Is(err, domain.ErrQuoteUnavailable) {
		t.Fatalf("expected ErrQuoteUnavailable, got %v", err)
	}
}

func TestAccessor_StaleRefreshFailureIsQuoteStale(t *testing.T) {
	src := &countingSource{err: errors.New("venue down")}
	cache := newMemCache()
	stale := domain.Quote{
		TokenID: "tok", Type: domain.PriceTypeAsk,
		PriceMicros: 400_000, AsOf: time.Now().UTC().Add(-time.Hour),
	}
	if err := cache.SetQuote(context.Background(), stale); err != nil {
		t.Fatal(err)
	}

	a := NewAccessor(src, cache, time.Minute, testLogger())
	_, err := a.GetQuote(context.Background(), "tok", domain.PriceTypeAsk)
	if !errors.Is(err, domain.ErrQuoteStale) {
		t.Fatalf("expected ErrQuoteStale for an aged entry that cannot refresh, got %v", err)
	}
}

func TestAccessor_FallbackOrder(t *testing.T) {
	src := &countingSource{quote: domain.Quote{PriceMicros: 480_000, AsOf: time.Now().UTC()}}
	cache := newMemCache()
	// Only the MID entry exists and it is fresh; ASK will fall through to
	// the source.
	mid := domain.Quote{TokenID: "tok", Type: domain.PriceTypeMid, PriceMicros: 475_000, AsOf: time.Now().UTC()}
	if err := cache.SetQuote(context.Background(), mid); err != nil {
		t.Fatal(err)
	}
	src.err = errors.New("venue down")

	a := NewAccessor(src, cache, time.Minute, testLogger())
	q, err := a.GetQuoteWithFallback(context.Background(), "tok",
		[]domain.PriceType{domain.PriceTypeAsk, domain.PriceTypeMid})
	if err != nil {
		t.Fatalf("GetQuoteWithFallback: %v", err)
	}
	if q.Type != domain.PriceTypeMid || q.PriceMicros != 475_000 {
		t.Errorf("got %s @ %d, want MID @ 475000", q.Type, q.PriceMicros)
	}
}
