package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"mcwatch/internal/cache"
	"mcwatch/internal/service"
	"mcwatch/internal/storage"
)

// Store persists the collections changed through the API.
type Store interface {
	SaveRules(ctx context.Context, book *storage.RuleBook) error
	SaveInvoices(ctx context.Context, book *storage.InvoiceBook) error
}

// PaymentSettings describe where invoices are paid to.
type PaymentSettings struct {
	Wallet   string
	USDCMint string
	Label    string
	QRSize   int
}

// Options wires the server collaborators.
type Options struct {
	Quoter   *service.Quoter
	Cache    *cache.PriceCache
	Rules    *storage.RuleBook
	History  *storage.History
	Invoices *storage.InvoiceBook
	Store    Store
	Payments PaymentSettings
	Balance  *service.BalanceReporter
}

// Server is the HTTP command API.
type Server struct {
	router *mux.Router
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// NewServer builds the router.
func NewServer(opts Options, logger zerolog.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		opts:   opts,
		logger: logger.With().Str("component", "api").Logger(),
		now:    time.Now,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router.PathPrefix("/api/v1").Subrouter()
	r.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	r.HandleFunc("/tokens/{id}/quote", s.handleQuote()).Methods(http.MethodGet)
	r.HandleFunc("/tokens/{id}/venues", s.handleVenues()).Methods(http.MethodGet)
	r.HandleFunc("/alerts", s.handleCreateAlert()).Methods(http.MethodPost)
	r.HandleFunc("/alerts", s.handleListAlerts()).Methods(http.MethodGet)
	r.HandleFunc("/alerts/recent", s.handleRecentAlerts()).Methods(http.MethodGet)
	r.HandleFunc("/alerts/{id}", s.handleDeleteAlert()).Methods(http.MethodDelete)
	r.HandleFunc("/invoices", s.handleCreateInvoice()).Methods(http.MethodPost)
	r.HandleFunc("/invoices", s.handleListInvoices()).Methods(http.MethodGet)
	r.HandleFunc("/invoices/{id}", s.handleGetInvoice()).Methods(http.MethodGet)
}

// Handler wraps the router with CORS for origins.
func (s *Server) Handler(origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.router)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string, origins []string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(origins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown api server: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"status":           "ok",
			"timestamp":        s.now().UTC().Format(time.RFC3339Nano),
			"active_rules":     s.opts.Rules.Len(),
			"pending_invoices": len(s.opts.Invoices.Pending()),
			"cached_tokens":    s.opts.Cache.Len(),
		}
		if s.opts.Balance != nil {
			resp["wallet_sol"] = s.opts.Balance.Last().StringFixed(4)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
