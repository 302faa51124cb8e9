package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"mcwatch/internal/fetcher"
	"mcwatch/internal/payments"
)

// BalanceReporter logs the recipient wallet's SOL balance.
type BalanceReporter struct {
	ledger fetcher.Ledger
	wallet string
	logger zerolog.Logger

	mu   sync.Mutex
	last decimal.Decimal
}

// NewBalanceReporter constructs a BalanceReporter for wallet.
func NewBalanceReporter(ledger fetcher.Ledger, wallet string, logger zerolog.Logger) *BalanceReporter {
	return &BalanceReporter{
		ledger: ledger,
		wallet: wallet,
		logger: logger.With().Str("component", "wallet_balance").Logger(),
	}
}

// RunCycle reads and logs the current balance.
func (b *BalanceReporter) RunCycle(ctx context.Context) error {
	lamports, err := b.ledger.GetBalance(ctx, b.wallet)
	if err != nil {
		return fmt.Errorf("get wallet balance: %w", err)
	}
	sol := decimal.New(int64(lamports), -payments.SOLDecimals)
	b.mu.Lock()
	b.last = sol
	b.mu.Unlock()
	b.logger.Info().Str("wallet", b.wallet).Str("sol", sol.StringFixed(2)).Msg("wallet balance")
	return nil
}

// Last returns the most recently observed balance in SOL.
func (b *BalanceReporter) Last() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}
