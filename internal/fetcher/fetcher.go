package fetcher

import (
	"context"

	"mcwatch/internal/market"
)

// PairFetcher retrieves every trading pair that references a token.
type PairFetcher interface {
	Fetch(ctx context.Context, tokenID string) ([]market.Pair, bool)
}

// Ledger queries recipient wallet history on the payment chain.
type Ledger interface {
	GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)
	GetBalance(ctx context.Context, address string) (uint64, error)
}
