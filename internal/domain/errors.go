package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrQuoteUnavailable      = errors.New("quote unavailable")
	ErrQuoteStale            = errors.New("quote stale")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrRiskLimitExceeded     = errors.New("risk limit exceeded")
	ErrRuleRiskBlocked       = errors.New("rule risk blocked")
	ErrSlippageExceeded      = errors.New("slippage exceeded")
	ErrLegPlacementFailed    = errors.New("leg placement failed")
	ErrTimeoutExceeded       = errors.New("timeout exceeded")
	ErrInvalidStrategy       = errors.New("invalid strategy")
	ErrSigningFailed         = errors.New("signing failed")
	ErrWSDisconnect          = errors.New("websocket disconnected")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrRateLimited           = errors.New("rate limited")
)
