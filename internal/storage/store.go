package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mcwatch/internal/config"
)

// Resource names one whole-collection snapshot.
type Resource string

const (
	ResourceRules    Resource = "alert_rules"
	ResourceHistory  Resource = "alert_events"
	ResourceInvoices Resource = "invoices"
)

// Backend persists opaque snapshots per resource.
type Backend interface {
	Load(ctx context.Context, resource Resource) ([]byte, error)
	Save(ctx context.Context, resource Resource, payload []byte) error
	Close() error
}

// Locker is implemented by backends that can elect a single active instance.
type Locker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// StoreOptions tune load-time housekeeping.
type StoreOptions struct {
	InvoiceRetention time.Duration
	HistoryCapacity  int
}

// Store encodes the collections as JSON snapshots and serialises writes per resource.
type Store struct {
	backend Backend
	opts    StoreOptions
	now     func() time.Time

	rulesMu    sync.Mutex
	historyMu  sync.Mutex
	invoicesMu sync.Mutex
}

// NewStore wraps a backend.
func NewStore(backend Backend, opts StoreOptions) *Store {
	if opts.InvoiceRetention <= 0 {
		opts.InvoiceRetention = 7 * 24 * time.Hour
	}
	if opts.HistoryCapacity <= 0 {
		opts.HistoryCapacity = DefaultHistoryCapacity
	}
	return &Store{backend: backend, opts: opts, now: time.Now}
}

// Backend exposes the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Close releases backend resources.
func (s *Store) Close() error {
	if s == nil || s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

// LoadRules returns the stored rules; a missing snapshot yields an empty list.
func (s *Store) LoadRules(ctx context.Context) ([]AlertRule, error) {
	var rules []AlertRule
	if err := s.load(ctx, ResourceRules, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// SaveRules writes the book's current active rules.
func (s *Store) SaveRules(ctx context.Context, book *RuleBook) error {
	s.rulesMu.Lock()
	defer s.rulesMu.Unlock()
	return s.save(ctx, ResourceRules, book.Active())
}

// LoadHistory returns stored events newest first, capped.
func (s *Store) LoadHistory(ctx context.Context) ([]AlertEvent, error) {
	var events []AlertEvent
	if err := s.load(ctx, ResourceHistory, &events); err != nil {
		return nil, err
	}
	return NewHistory(s.opts.HistoryCapacity, events).All(), nil
}

// SaveHistory writes the full alert history.
func (s *Store) SaveHistory(ctx context.Context, history *History) error {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	return s.save(ctx, ResourceHistory, history.All())
}

// LoadInvoices returns stored invoices minus settled ones older than the retention window.
func (s *Store) LoadInvoices(ctx context.Context) ([]Invoice, error) {
	var invoices []Invoice
	if err := s.load(ctx, ResourceInvoices, &invoices); err != nil {
		return nil, err
	}
	return PruneInvoices(invoices, s.now().Add(-s.opts.InvoiceRetention)), nil
}

// SaveInvoices writes every invoice in the book.
func (s *Store) SaveInvoices(ctx context.Context, book *InvoiceBook) error {
	s.invoicesMu.Lock()
	defer s.invoicesMu.Unlock()
	return s.save(ctx, ResourceInvoices, book.List())
}

// PruneInvoices drops paid or expired invoices created before cutoff.
func PruneInvoices(invoices []Invoice, cutoff time.Time) []Invoice {
	out := make([]Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv.Status.Terminal() && inv.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, inv)
	}
	return out
}

func (s *Store) load(ctx context.Context, resource Resource, dst any) error {
	payload, err := s.backend.Load(ctx, resource)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", resource, err)
	}
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("decode %s: %w", resource, err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, resource Resource, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", resource, err)
	}
	if err := s.backend.Save(ctx, resource, payload); err != nil {
		return fmt.Errorf("save %s: %w", resource, err)
	}
	return nil
}

// Open builds the configured backend.
func Open(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Driver {
	case "", "bunt":
		return OpenBunt(cfg.Path)
	case "postgres":
		pool, err := NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		pg := NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown storage.driver %q", cfg.Driver)
	}
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.StorageConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse storage dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}
