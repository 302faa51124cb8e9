package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"mcwatch/internal/alerting"
	"mcwatch/internal/cache"
	"mcwatch/internal/consensus"
	"mcwatch/internal/fetcher"
	"mcwatch/internal/storage"
)

const defaultRefreshConcurrency = 8

// AlertStore persists the alert collections after a rule fires.
type AlertStore interface {
	SaveRules(ctx context.Context, book *storage.RuleBook) error
	SaveHistory(ctx context.Context, history *storage.History) error
}

// AlertWatcherOptions wires the alert watcher collaborators.
type AlertWatcherOptions struct {
	Fetcher     fetcher.PairFetcher
	Engine      *consensus.Engine
	Cache       *cache.PriceCache
	Rules       *storage.RuleBook
	History     *storage.History
	Store       AlertStore
	Notifier    alerting.Notifier
	Identity    alerting.IdentityResolver
	Concurrency int
}

// AlertWatcher refreshes watched tokens and fires rules whose predicate matches.
type AlertWatcher struct {
	fetcher     fetcher.PairFetcher
	engine      *consensus.Engine
	cache       *cache.PriceCache
	rules       *storage.RuleBook
	history     *storage.History
	store       AlertStore
	notifier    alerting.Notifier
	identity    alerting.IdentityResolver
	concurrency int
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAlertWatcher constructs the alert watcher.
func NewAlertWatcher(opts AlertWatcherOptions, logger zerolog.Logger) *AlertWatcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultRefreshConcurrency
	}
	if opts.Identity == nil {
		opts.Identity = alerting.StaticIdentity{}
	}
	return &AlertWatcher{
		fetcher:     opts.Fetcher,
		engine:      opts.Engine,
		cache:       opts.Cache,
		rules:       opts.Rules,
		history:     opts.History,
		store:       opts.Store,
		notifier:    opts.Notifier,
		identity:    opts.Identity,
		concurrency: opts.Concurrency,
		logger:      logger.With().Str("component", "alert_watcher").Logger(),
		now:         time.Now,
	}
}

// RunCycle refreshes every watched token, then evaluates the active rules against one
// consistent cache snapshot.
func (w *AlertWatcher) RunCycle(ctx context.Context) error {
	rules := w.rules.Active()
	if len(rules) == 0 {
		return nil
	}

	ids := lo.Uniq(lo.Map(rules, func(r storage.AlertRule, _ int) string { return r.TokenID }))
	if err := w.Refresh(ctx, ids); err != nil {
		return err
	}

	snaps := w.cache.Snapshot(ids)
	values := marketCaps(ids, snaps)

	fired := 0
	for _, rule := range rules {
		current := values[rule.TokenID]
		if !rule.Direction.Meets(current, rule.Target) {
			continue
		}
		if err := w.fire(ctx, rule, current, snaps[rule.TokenID]); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				w.logger.Debug().Str("rule_id", rule.ID).Msg("rule left the book before firing")
				continue
			}
			w.logger.Error().Err(err).Str("rule_id", rule.ID).Msg("fire alert")
			continue
		}
		fired++
	}

	w.logger.Debug().Int("tokens", len(ids)).Int("rules", len(rules)).Int("fired", fired).Msg("alert cycle complete")
	return nil
}

// marketCaps copies the value of each id out of snaps. Missing ids map to nil.
func marketCaps(ids []string, snaps map[string]cache.TokenSnapshot) map[string]*float64 {
	out := make(map[string]*float64, len(ids))
	for _, id := range ids {
		snap, ok := snaps[id]
		if !ok || snap.MarketCap == nil {
			out[id] = nil
			continue
		}
		v := *snap.MarketCap
		out[id] = &v
	}
	return out
}

// Refresh fetches ids concurrently and replaces their cache entries in one write. A failed
// fetch still replaces the entry, with no value.
func (w *AlertWatcher) Refresh(ctx context.Context, ids []string) error {
	var (
		mu    sync.Mutex
		snaps = make(map[string]cache.TokenSnapshot, len(ids))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			pairs, ok := w.fetcher.Fetch(gctx, id)
			if !ok {
				w.logger.Debug().Str("token", id).Msg("refresh failed; clearing value")
				pairs = nil
			}
			snap := w.engine.Snapshot(id, pairs, w.now().UTC())
			mu.Lock()
			snaps[id] = snap
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("refresh tokens: %w", err)
	}

	w.cache.PutAll(ctx, snaps)
	return nil
}

func (w *AlertWatcher) fire(ctx context.Context, rule storage.AlertRule, current *float64, snap cache.TokenSnapshot) error {
	rule, err := w.rules.Take(rule.ID)
	if err != nil {
		return err
	}

	creator := w.identity.Name(ctx, rule.CreatorID)
	msg := alerting.AlertFired(rule, current, snap.URL, snap.ImageURL, creator)
	if err := w.notifier.Send(ctx, msg); err != nil {
		w.logger.Error().Err(err).Str("rule_id", rule.ID).Int64("channel_id", rule.ChannelID).Msg("alert delivery failed")
	}

	w.history.Prepend(storage.EventFromRule(rule, current, w.now().UTC()))
	if err := w.store.SaveHistory(ctx, w.history); err != nil {
		w.logger.Error().Err(err).Msg("save alert history")
	}
	if err := w.store.SaveRules(ctx, w.rules); err != nil {
		w.logger.Error().Err(err).Msg("save alert rules")
	}

	w.logger.Info().
		Str("rule_id", rule.ID).
		Str("token", rule.TokenID).
		Str("direction", string(rule.Direction)).
		Str("target", alerting.Money(rule.Target)).
		Str("current", alerting.Humanize(current)).
		Msg("alert fired")
	return nil
}
