package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"mcwatch/internal/alerting"
	"mcwatch/internal/fetcher"
	"mcwatch/internal/market"
	"mcwatch/internal/storage"
)

const (
	mint    = "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr"
	wallet  = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	refKey  = "H6ARHf6YXhGYeQfUzQNGk6rDNnLBQKrenN712K4AQJEG"
	refKey2 = "3Kz1h5LpEGbZBDaFGzHjXMvfFYcQHpMZcWxtGjd5HdJ8"
)

func nopLogger() zerolog.Logger { return zerolog.Nop() }

func memoryStore(t *testing.T) *storage.Store {
	t.Helper()
	backend, err := storage.OpenBunt("")
	require.NoError(t, err)
	s := storage.NewStore(backend, storage.StoreOptions{})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// feedFetcher serves one market cap per call from a scripted feed. A nil entry
// simulates a failed fetch.
type feedFetcher struct {
	mu      sync.Mutex
	feeds   map[string][]*float64
	calls   map[string]int
	onFetch func(tokenID string)
}

func newFeedFetcher() *feedFetcher {
	return &feedFetcher{feeds: make(map[string][]*float64), calls: make(map[string]int)}
}

func (f *feedFetcher) script(tokenID string, values ...*float64) {
	f.mu.Lock()
	f.feeds[tokenID] = values
	f.mu.Unlock()
}

func (f *feedFetcher) Fetch(_ context.Context, tokenID string) ([]market.Pair, bool) {
	if f.onFetch != nil {
		f.onFetch(tokenID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	feed := f.feeds[tokenID]
	n := f.calls[tokenID]
	f.calls[tokenID] = n + 1
	if len(feed) == 0 {
		return nil, false
	}
	if n >= len(feed) {
		n = len(feed) - 1
	}
	if feed[n] == nil {
		return nil, false
	}
	p := market.Pair{
		ChainID:   "solana",
		DexID:     "raydium",
		URL:       "https://dexscreener.com/solana/pool",
		BaseToken: market.Token{Address: tokenID, Name: "Token", Symbol: "TKN"},
		FDV:       market.NewNumber(*feed[n]),
	}
	p.Liquidity.USD = market.NewNumber(1_000)
	return []market.Pair{p}, true
}

var _ fetcher.PairFetcher = (*feedFetcher)(nil)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []alerting.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg alerting.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) messages() []alerting.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]alerting.Message(nil), n.sent...)
}

var _ alerting.Notifier = (*recordingNotifier)(nil)

type fakeLedger struct {
	mu       sync.Mutex
	sigs     []fetcher.SignatureInfo
	txs      map[string]*fetcher.Transaction
	sigCalls int
	txCalls  map[string]int
	balance  uint64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{txs: make(map[string]*fetcher.Transaction), txCalls: make(map[string]int)}
}

func (l *fakeLedger) add(tx *fetcher.Transaction) {
	l.sigs = append(l.sigs, fetcher.SignatureInfo{Signature: tx.Signature})
	l.txs[tx.Signature] = tx
}

func (l *fakeLedger) GetSignaturesForAddress(_ context.Context, _ string, limit int) ([]fetcher.SignatureInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sigCalls++
	if limit < len(l.sigs) {
		return l.sigs[:limit], nil
	}
	return l.sigs, nil
}

func (l *fakeLedger) GetTransaction(_ context.Context, sig string) (*fetcher.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txCalls[sig]++
	tx, ok := l.txs[sig]
	if !ok {
		return nil, errors.New("malformed transaction")
	}
	return tx, nil
}

func (l *fakeLedger) GetBalance(context.Context, string) (uint64, error) {
	return l.balance, nil
}

var _ fetcher.Ledger = (*fakeLedger)(nil)

func f(v float64) *float64 { return &v }
