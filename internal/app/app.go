package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"mcwatch/internal/alerting"
	"mcwatch/internal/api"
	"mcwatch/internal/cache"
	"mcwatch/internal/chain"
	"mcwatch/internal/config"
	"mcwatch/internal/consensus"
	"mcwatch/internal/fetcher"
	"mcwatch/internal/scheduler"
	"mcwatch/internal/service"
	"mcwatch/internal/storage"
	"mcwatch/internal/venue"
	"mcwatch/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newPairFetcher() *fetcher.DexScreener {
	return fetcher.NewDexScreener(fetcher.DexScreenerOptions{
		BaseURL:   a.Config.Market.BaseURL,
		Timeout:   a.Config.Market.RequestTimeout,
		UserAgent: lo.CoalesceOrEmpty(a.Config.Market.UserAgent, version.UserAgent()),
	}, a.Logger)
}

func (a *App) newLedger() *fetcher.Solana {
	return fetcher.NewSolana(fetcher.SolanaOptions{
		RPCURL:  a.Config.Payments.RPCURL,
		Timeout: a.Config.Payments.RequestTimeout,
	}, a.Logger)
}

func (a *App) newEngine() *consensus.Engine {
	return consensus.New(consensus.Options{
		PreferFDV: a.Config.Market.PreferFDV,
		Blacklist: a.Config.Market.Blacklist,
	})
}

func (a *App) newQuoter(c *cache.PriceCache) *service.Quoter {
	agg := venue.NewAggregator(a.Config.Market.Venues, a.Config.Market.VenueAliases)
	return service.NewQuoter(a.newPairFetcher(), a.newEngine(), agg, c, a.Logger)
}

func (a *App) newNotifier() (alerting.Notifier, alerting.IdentityResolver, error) {
	if a.Config.Telegram.Enabled {
		cfg := a.Config.Telegram
		tg, err := alerting.NewTelegramNotifier(cfg.BotToken, cfg.APIBase, cfg.Timeout, a.Logger)
		if err != nil {
			return nil, nil, err
		}
		return tg, alerting.NewTelegramIdentity(tg, a.Logger), nil
	}
	return alerting.NewLogNotifier(a.Logger), alerting.StaticIdentity{}, nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, error) {
	backend, err := storage.Open(ctx, a.Config.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return storage.NewStore(backend, storage.StoreOptions{
		InvoiceRetention: a.Config.Payments.Retention,
		HistoryCapacity:  a.Config.Alerts.HistoryCapacity,
	}), nil
}

// newCache builds the price cache, mirrored to Redis when an address is configured.
func (a *App) newCache(ctx context.Context) (*cache.PriceCache, func(), error) {
	mirror, err := cache.NewRedisMirror(ctx, cache.RedisOptions{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
		TTL:      a.Config.Redis.TTL,
	}, a.Logger)
	if err != nil {
		return nil, nil, err
	}
	if mirror == nil {
		return cache.New(nil, a.Logger), func() {}, nil
	}
	return cache.New(mirror, a.Logger), func() { _ = mirror.Close() }, nil
}

// state is the set of collections loaded from the store at startup.
type state struct {
	rules    *storage.RuleBook
	history  *storage.History
	invoices *storage.InvoiceBook
}

func (a *App) loadState(ctx context.Context, store *storage.Store) (*state, error) {
	rules, err := store.LoadRules(ctx)
	if err != nil {
		return nil, err
	}
	events, err := store.LoadHistory(ctx)
	if err != nil {
		return nil, err
	}
	invoices, err := store.LoadInvoices(ctx)
	if err != nil {
		return nil, err
	}
	return &state{
		rules:    storage.NewRuleBook(rules),
		history:  storage.NewHistory(a.Config.Alerts.HistoryCapacity, events),
		invoices: storage.NewInvoiceBook(invoices),
	}, nil
}

func (a *App) acquireLock(ctx context.Context, store *storage.Store) (func(), error) {
	locker, ok := store.Backend().(storage.Locker)
	if !ok || a.Config.App.LockKey == 0 {
		return func() {}, nil
	}
	unlock, acquired, err := locker.TryAdvisoryLock(ctx, a.Config.App.LockKey)
	if err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, errors.New("another instance holds the watch loop lock")
	}
	return unlock, nil
}

// Run executes the watch loops and the command API until interrupted.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	unlock, err := a.acquireLock(ctx, store)
	if err != nil {
		return err
	}
	defer unlock()

	st, err := a.loadState(ctx, store)
	if err != nil {
		return err
	}
	a.Logger.Info().
		Int("rules", st.rules.Len()).
		Int("history", st.history.Len()).
		Int("pending_invoices", len(st.invoices.Pending())).
		Msg("state loaded")

	priceCache, closeCache, err := a.newCache(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	notifier, identity, err := a.newNotifier()
	if err != nil {
		return err
	}
	quoter := a.newQuoter(priceCache)
	ledger := a.newLedger()
	wallet := a.Config.Payments.Wallet
	walletOK := chain.IsSolanaAddress(wallet)
	if !walletOK {
		a.Logger.Warn().Msg("payments.wallet missing or invalid; payment matching and balance reporting disabled")
	}

	ready := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)

	alerts := service.NewAlertWatcher(service.AlertWatcherOptions{
		Fetcher:     a.newPairFetcher(),
		Engine:      a.newEngine(),
		Cache:       priceCache,
		Rules:       st.rules,
		History:     st.history,
		Store:       store,
		Notifier:    notifier,
		Identity:    identity,
		Concurrency: a.Config.Market.RefreshConcurrency,
	}, a.Logger)
	a.loop(gctx, g, scheduler.Options{
		Name:         "alerts",
		Interval:     a.Config.Alerts.PollInterval,
		StartupDelay: a.Config.Alerts.StartupDelay,
		Ready:        ready,
	}, alerts.RunCycle)

	if a.Config.Payments.Enabled {
		payments := service.NewPaymentWatcher(service.PaymentWatcherOptions{
			Ledger:         ledger,
			Invoices:       st.invoices,
			Store:          store,
			Notifier:       notifier,
			Wallet:         wallet,
			Expiry:         a.Config.Payments.Expiry,
			SignatureLimit: a.Config.Payments.SignatureLimit,
			TokenDecimals:  int(a.Config.Payments.TokenDecimals),
		}, a.Logger)
		a.loop(gctx, g, scheduler.Options{Name: "payments", Interval: a.Config.Payments.PollInterval, Ready: ready}, payments.RunCycle)
	}

	var balance *service.BalanceReporter
	if walletOK && a.Config.Presence.Interval > 0 {
		balance = service.NewBalanceReporter(ledger, wallet, a.Logger)
		a.loop(gctx, g, scheduler.Options{Name: "balance", Interval: a.Config.Presence.Interval, Ready: ready}, balance.RunCycle)
	}

	if a.Config.API.Enabled {
		srv := api.NewServer(api.Options{
			Quoter:   quoter,
			Cache:    priceCache,
			Rules:    st.rules,
			History:  st.history,
			Invoices: st.invoices,
			Store:    store,
			Payments: api.PaymentSettings{
				Wallet:   wallet,
				USDCMint: a.Config.Payments.USDCMint,
				Label:    a.Config.Payments.Label,
			},
			Balance: balance,
		}, a.Logger)
		g.Go(func() error {
			return srv.ListenAndServe(gctx, a.Config.API.Listen, a.Config.API.CORSOrigins)
		})
	}

	close(ready)
	a.Logger.Info().Msg("watch loops started")

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("watch loops stopped")
	return nil
}

func (a *App) loop(ctx context.Context, g *errgroup.Group, opts scheduler.Options, tick scheduler.TickFunc) {
	sched := scheduler.New(opts, a.Logger)
	g.Go(func() error {
		err := sched.Run(ctx, tick)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}
