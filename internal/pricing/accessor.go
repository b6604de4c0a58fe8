// Package pricing provides quote access with a bounded-TTL cache and the
// profit model used to score arbitrage baskets.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oddlot/polyarb/internal/domain"
)

// Accessor fetches quotes by price type, consulting a shared cache before
// the venue. ACTUAL quotes are never served from cache since they reflect
// the caller's own realized trades.
type Accessor struct {
	source domain.PriceSource
	cache  domain.QuoteCache
	ttl    time.Duration
	logger *slog.Logger
}

// NewAccessor creates an Accessor. cache may be nil to disable caching;
// ttl bounds how old a cached quote may be before it is refetched.
func NewAccessor(source domain.PriceSource, cache domain.QuoteCache, ttl time.Duration, logger *slog.Logger) *Accessor {
	return &Accessor{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "price_accessor")),
	}
}

// GetQuote returns a quote for the token under the requested semantics.
// A quote that cannot be fetched, or that is stale beyond the TTL and cannot
// be refreshed, is a hard failure wrapping domain.ErrQuoteUnavailable.
func (a *Accessor) GetQuote(ctx context.Context, tokenID string, pt domain.PriceType) (domain.Quote, error) {
	now := time.Now().UTC()

	staleHit := false
	if a.cache != nil && pt != domain.PriceTypeActual {
		q, err := a.cache.GetQuote(ctx, tokenID, pt)
		switch {
		case err == nil && !q.StaleAfter(now, a.ttl):
			return q, nil
		case err == nil:
			staleHit = true
		case !errors.Is(err, domain.ErrNotFound):
			a.logger.WarnContext(ctx, "quote cache read failed",
				slog.String("token_id", tokenID),
				slog.String("error", err.Error()),
			)
		}
	}

	q, err := a.source.GetQuote(ctx, tokenID, pt)
	if err != nil {
		// A quote that exists but aged out and cannot be refreshed is
		// reported as stale so callers can tell drift from absence.
		sentinel := domain.ErrQuoteUnavailable
		if staleHit {
			sentinel = domain.ErrQuoteStale
		}
		return domain.Quote{}, fmt.Errorf("pricing: %s quote for %s: %w", pt, tokenID, errors.Join(sentinel, err))
	}
	if q.PriceMicros <= 0 {
		return domain.Quote{}, fmt.Errorf("pricing: %s quote for %s: empty book: %w", pt, tokenID, domain.ErrQuoteUnavailable)
	}

	if a.cache != nil && pt != domain.PriceTypeActual {
		if cerr := a.cache.SetQuote(ctx, q); cerr != nil {
			a.logger.WarnContext(ctx, "quote cache write failed",
				slog.String("token_id", tokenID),
				slog.String("error", cerr.Error()),
			)
		}
	}

	return q, nil
}

// GetQuoteWithFallback tries each price type in order of preference and
// returns the first quote that is available.
func (a *Accessor) GetQuoteWithFallback(ctx context.Context, tokenID string, preferred []domain.PriceType) (domain.Quote, error) {
	var lastErr error
	for _, pt := range preferred {
		q, err := a.GetQuote(ctx, tokenID, pt)
		if err == nil {
			return q, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = domain.ErrQuoteUnavailable
	}
	return domain.Quote{}, fmt.Errorf("pricing: no quote for %s under any of %v: %w", tokenID, preferred, lastErr)
}
