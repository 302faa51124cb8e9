package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"mcwatch/internal/alerting"
	"mcwatch/internal/chain"
	"mcwatch/internal/payments"
	"mcwatch/internal/storage"
)

const defaultInvoiceLimit = 15

type createInvoiceRequest struct {
	Amount    flexString `json:"amount"`
	Asset     string     `json:"asset"`
	UserID    int64      `json:"user_id"`
	ChannelID int64      `json:"channel_id"`
	GuildID   int64      `json:"guild_id"`
	Note      string     `json:"note"`
}

type invoiceView struct {
	storage.Invoice
	Display string `json:"display"`
}

func viewOf(inv storage.Invoice) invoiceView {
	return invoiceView{Invoice: inv, Display: alerting.InvoiceAmount(inv)}
}

func (s *Server) handleCreateInvoice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings := s.opts.Payments
		if !chain.IsSolanaAddress(settings.Wallet) {
			writeJSONError(w, http.StatusServiceUnavailable, ErrCodeWalletMissing, "Payments are not configured.")
			return
		}

		var req createInvoiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Malformed request body.")
			return
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(string(req.Amount)))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, ErrCodeInvalidAmount, "Amount must be a number.")
			return
		}

		spec := payments.ParseAsset(req.Asset, settings.USDCMint)
		inv, err := payments.NewInvoice(payments.Request{
			Amount:    amount,
			UserID:    req.UserID,
			ChannelID: req.ChannelID,
			GuildID:   req.GuildID,
			Note:      req.Note,
		}, spec, s.now())
		if errors.Is(err, payments.ErrInvalidAmount) {
			writeJSONError(w, http.StatusBadRequest, ErrCodeInvalidAmount, "Amount must be > 0.")
			return
		}
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, ErrCodeInternalError, "Could not create invoice.")
			return
		}

		s.opts.Invoices.Add(inv)
		if err := s.opts.Store.SaveInvoices(r.Context(), s.opts.Invoices); err != nil {
			s.logger.Error().Err(err).Str("invoice", inv.ID).Msg("save invoices")
		}

		link := payments.PayLink(settings.Wallet, inv, settings.Label)
		s.logger.Info().Str("invoice", inv.ID).Int64("user_id", inv.UserID).Str("asset", string(inv.Asset)).Msg("invoice created")
		writeJSON(w, http.StatusCreated, map[string]any{
			"invoice":   viewOf(inv),
			"recipient": settings.Wallet,
			"pay_link":  link,
			"qr_url":    payments.QRURL(link, settings.QRSize),
			"wallets":   payments.LinksFor(link),
		})
	}
}

func (s *Server) handleListInvoices() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guildID, hasGuild, err := queryInt64(r, "guild_id")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
			return
		}
		userID, hasUser, err := queryInt64(r, "user_id")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
			return
		}
		limit, hasLimit, err := queryInt64(r, "limit")
		if err != nil || (hasLimit && limit <= 0) {
			writeJSONError(w, http.StatusBadRequest, ErrCodeInvalidInput, "limit must be a positive integer")
			return
		}
		if !hasLimit {
			limit = defaultInvoiceLimit
		}
		status := storage.InvoiceStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))

		invoices := s.opts.Invoices.Query(func(inv storage.Invoice) bool {
			return (!hasGuild || inv.GuildID == guildID) &&
				(!hasUser || inv.UserID == userID) &&
				(status == "" || inv.Status == status)
		}, int(limit))
		writeJSON(w, http.StatusOK, map[string]any{"invoices": lo.Map(invoices, func(inv storage.Invoice, _ int) invoiceView { return viewOf(inv) })})
	}
}

func (s *Server) handleGetInvoice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, ok := s.opts.Invoices.Get(mux.Vars(r)["id"])
		if !ok {
			writeJSONError(w, http.StatusNotFound, ErrCodeNotFound, "No such invoice.")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoice": viewOf(inv)})
	}
}
