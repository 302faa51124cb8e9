package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mcwatch/internal/alerting"
	"mcwatch/internal/chain"
	"mcwatch/internal/fetcher"
	"mcwatch/internal/payments"
	"mcwatch/internal/storage"
)

// InvoiceStore persists the invoice collection.
type InvoiceStore interface {
	SaveInvoices(ctx context.Context, book *storage.InvoiceBook) error
}

// PaymentWatcherOptions wires the payment watcher collaborators.
type PaymentWatcherOptions struct {
	Ledger         fetcher.Ledger
	Invoices       *storage.InvoiceBook
	Store          InvoiceStore
	Notifier       alerting.Notifier
	Wallet         string
	Expiry         time.Duration
	SignatureLimit int
	TokenDecimals  int
}

// PaymentWatcher settles or expires pending invoices.
type PaymentWatcher struct {
	ledger        fetcher.Ledger
	invoices      *storage.InvoiceBook
	store         InvoiceStore
	notifier      alerting.Notifier
	wallet        string
	expiry        time.Duration
	sigLimit      int
	tokenDecimals int
	logger        zerolog.Logger
	now           func() time.Time

	// dirty is set when an invoice transitions and cleared after a successful save.
	dirty bool
}

// NewPaymentWatcher constructs the payment watcher.
func NewPaymentWatcher(opts PaymentWatcherOptions, logger zerolog.Logger) *PaymentWatcher {
	if opts.Expiry <= 0 {
		opts.Expiry = 30 * time.Minute
	}
	if opts.SignatureLimit <= 0 {
		opts.SignatureLimit = 50
	}
	if opts.TokenDecimals <= 0 {
		opts.TokenDecimals = 6
	}
	return &PaymentWatcher{
		ledger:        opts.Ledger,
		invoices:      opts.Invoices,
		store:         opts.Store,
		notifier:      opts.Notifier,
		wallet:        opts.Wallet,
		expiry:        opts.Expiry,
		sigLimit:      opts.SignatureLimit,
		tokenDecimals: opts.TokenDecimals,
		logger:        logger.With().Str("component", "payment_watcher").Logger(),
		now:           time.Now,
	}
}

// RunCycle expires stale invoices and matches the rest against recent wallet transactions.
// Transitions that failed to persist are saved again on the next cycle.
func (w *PaymentWatcher) RunCycle(ctx context.Context) error {
	pending := w.invoices.Pending()
	now := w.now()
	scan := &ledgerScan{watcher: w}

	for _, inv := range pending {
		if now.Sub(inv.CreatedAt) > w.expiry {
			if w.settle(ctx, inv, storage.InvoiceExpired, "") {
				w.dirty = true
			}
			continue
		}

		sig, ok := scan.find(ctx, inv)
		if !ok {
			continue
		}
		if w.settle(ctx, inv, storage.InvoicePaid, sig) {
			w.dirty = true
		}
	}

	if !w.dirty {
		return nil
	}
	if err := w.store.SaveInvoices(ctx, w.invoices); err != nil {
		return fmt.Errorf("save invoices: %w", err)
	}
	w.dirty = false
	return nil
}

func (w *PaymentWatcher) settle(ctx context.Context, inv storage.Invoice, to storage.InvoiceStatus, sig string) bool {
	updated, err := w.invoices.Transition(inv.ID, to, sig)
	if err != nil {
		w.logger.Warn().Err(err).Str("invoice", inv.ID).Msg("invoice transition rejected")
		return false
	}

	msg := alerting.PaymentExpired(updated)
	if to == storage.InvoicePaid {
		msg = alerting.PaymentReceived(updated)
	}
	if err := w.notifier.Send(ctx, msg); err != nil {
		w.logger.Error().Err(err).Str("invoice", updated.ID).Msg("payment notification failed")
	}

	w.logger.Info().
		Str("invoice", updated.ID).
		Int64("user_id", updated.UserID).
		Str("asset", string(updated.Asset)).
		Str("status", string(updated.Status)).
		Str("sig", updated.TxSignature).
		Msg("invoice settled")
	return true
}

// ledgerScan memoises the wallet's recent history for one cycle.
type ledgerScan struct {
	watcher *PaymentWatcher
	loaded  bool
	sigs    []fetcher.SignatureInfo
	txs     map[string]*fetcher.Transaction
}

func (s *ledgerScan) find(ctx context.Context, inv storage.Invoice) (string, bool) {
	w := s.watcher
	if !chain.IsSolanaAddress(w.wallet) {
		w.logger.Warn().Str("invoice", inv.ID).Msg("recipient wallet missing or invalid; skipping payment match")
		return "", false
	}

	if !s.loaded {
		s.loaded = true
		s.txs = make(map[string]*fetcher.Transaction)
		sigs, err := w.ledger.GetSignaturesForAddress(ctx, w.wallet, w.sigLimit)
		if err != nil {
			w.logger.Warn().Err(err).Msg("fetch wallet signatures")
			return "", false
		}
		s.sigs = sigs
	}

	for _, info := range s.sigs {
		if info.Failed() {
			continue
		}
		tx, ok := s.txs[info.Signature]
		if !ok {
			var err error
			tx, err = w.ledger.GetTransaction(ctx, info.Signature)
			if err != nil {
				if !errors.Is(err, fetcher.ErrTransactionNotFound) {
					w.logger.Debug().Err(err).Str("sig", info.Signature).Msg("skip unreadable transaction")
				}
				tx = nil
			}
			s.txs[info.Signature] = tx
		}
		if tx == nil {
			continue
		}
		if payments.Match(tx, inv, w.wallet, w.tokenDecimals) {
			return info.Signature, true
		}
	}
	return "", false
}
