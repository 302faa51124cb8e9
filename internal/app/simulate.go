package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mcwatch/internal/chain"
	"mcwatch/internal/fetcher"
	"mcwatch/internal/market"
	"mcwatch/internal/service"
	"mcwatch/internal/storage"
)

// DefaultSimulatedToken is the wrapped SOL mint, used when no token is given.
const DefaultSimulatedToken = "So11111111111111111111111111111111111111112"

// SimulateOptions describes a synthetic alert run.
type SimulateOptions struct {
	TokenID   string
	Target    float64
	Current   float64
	ChannelID int64
	CreatorID int64
}

// SimulateAlert pushes one rule through a full watch cycle against a fixed market cap,
// delivering through the configured notifier. Nothing is persisted.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if opts.TokenID == "" {
		opts.TokenID = DefaultSimulatedToken
	}
	if !chain.IsTokenID(opts.TokenID) {
		return fmt.Errorf("invalid token identifier %q", opts.TokenID)
	}
	if opts.Target <= 0 || opts.Current <= 0 {
		return errors.New("target and current must be positive")
	}

	backend, err := storage.OpenBunt("")
	if err != nil {
		return err
	}
	store := storage.NewStore(backend, storage.StoreOptions{HistoryCapacity: a.Config.Alerts.HistoryCapacity})
	defer store.Close()

	priceCache, closeCache, err := a.newCache(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	// Seed the direction from the far side of the target so the rule crosses it.
	seed := opts.Target * 2
	if opts.Current > opts.Target {
		seed = opts.Target / 2
	}
	rule := storage.AlertRule{
		ID:        uuid.NewString(),
		TokenID:   opts.TokenID,
		Target:    opts.Target,
		Direction: storage.DirectionFor(opts.Target, &seed),
		ChannelID: opts.ChannelID,
		CreatorID: opts.CreatorID,
		Name:      "Simulated",
		Symbol:    "SIM",
		Note:      "simulated alert",
		CreatedAt: time.Now().UTC(),
	}
	rules := storage.NewRuleBook([]storage.AlertRule{rule})
	history := storage.NewHistory(a.Config.Alerts.HistoryCapacity, nil)

	notifier, identity, err := a.newNotifier()
	if err != nil {
		return err
	}
	watcher := service.NewAlertWatcher(service.AlertWatcherOptions{
		Fetcher:     &staticPairFetcher{tokenID: opts.TokenID, marketCap: opts.Current},
		Engine:      a.newEngine(),
		Cache:       priceCache,
		Rules:       rules,
		History:     history,
		Store:       store,
		Notifier:    notifier,
		Identity:    identity,
		Concurrency: 1,
	}, a.Logger)

	if err := watcher.RunCycle(ctx); err != nil {
		return err
	}
	if history.Len() == 0 {
		a.Logger.Info().Str("direction", string(rule.Direction)).Float64("target", opts.Target).Float64("current", opts.Current).Msg("simulated rule did not fire")
		return nil
	}
	a.Logger.Info().Str("rule_id", rule.ID).Str("direction", string(rule.Direction)).Msg("simulated alert delivered")
	return nil
}

// staticPairFetcher reports a single solana pool with a fixed market cap.
type staticPairFetcher struct {
	tokenID   string
	marketCap float64
}

func (s *staticPairFetcher) Fetch(_ context.Context, tokenID string) ([]market.Pair, bool) {
	if tokenID != s.tokenID {
		return nil, true
	}
	return []market.Pair{{
		ChainID:    chain.Solana,
		DexID:      "raydium",
		URL:        "https://dexscreener.com/solana/" + tokenID,
		BaseToken:  market.Token{Address: tokenID, Name: "Simulated", Symbol: "SIM"},
		QuoteToken: market.Token{Symbol: "SOL"},
		MarketCap:  market.NewNumber(s.marketCap),
		FDV:        market.NewNumber(s.marketCap),
		Liquidity:  market.Liquidity{USD: market.NewNumber(10_000)},
	}}, true
}

var _ fetcher.PairFetcher = (*staticPairFetcher)(nil)
