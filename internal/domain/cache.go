package domain

import "context"

// QuoteCache stores recent quotes with a bounded time-to-live so that
// concurrent scans share an immutable snapshot of recently fetched prices
// instead of hammering the venue. Implementations must return ErrNotFound
// for a missing entry, never a zero-valued quote.
type QuoteCache interface {
	SetQuote(ctx context.Context, q Quote) error
	GetQuote(ctx context.Context, tokenID string, pt PriceType) (Quote, error)
	Invalidate(ctx context.Context, tokenID string) error
}
