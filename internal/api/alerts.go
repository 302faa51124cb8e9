package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"mcwatch/internal/alerting"
	"mcwatch/internal/cache"
	"mcwatch/internal/chain"
	"mcwatch/internal/service"
	"mcwatch/internal/storage"
	"mcwatch/internal/venue"
)

const (
	defaultRecentCount = 5
	maxRecentCount     = 50
)

type quoteResponse struct {
	TokenID string              `json:"token_id"`
	Display string              `json:"display"`
	Quote   cache.TokenSnapshot `json:"snapshot"`
}

type venueRow struct {
	Name      string   `json:"name"`
	Pools     int      `json:"pools"`
	Liquidity float64  `json:"liquidity_usd"`
	Volume    float64  `json:"volume_h24"`
	Txns      int64    `json:"txns_h24"`
	Quotes    []string `json:"quotes"`
	BestURL   string   `json:"best_url"`
	Score     float64  `json:"score"`
}

func venueRows(ranked []venue.Ranked) []venueRow {
	return lo.Map(ranked, func(r venue.Ranked, _ int) venueRow {
		return venueRow{
			Name:      r.Name,
			Pools:     r.Totals.Pools,
			Liquidity: r.Totals.Liquidity,
			Volume:    r.Totals.Volume,
			Txns:      r.Totals.Txns,
			Quotes:    r.Totals.QuoteSymbols(),
			BestURL:   r.Totals.BestURL,
			Score:     r.Score,
		}
	})
}

// writeLookupError maps quoter misses to user-facing rejections.
func writeLookupError(w http.ResponseWriter, tokenID string, err error) {
	switch {
	case errors.Is(err, service.ErrNoPairs):
		writeJSONError(w, http.StatusNotFound, ErrCodeNoPairs, fmt.Sprintf("Couldn't find pairs for %s.", tokenID))
	case errors.Is(err, service.ErrNoValidPair):
		writeJSONError(w, http.StatusNotFound, ErrCodeNoValidPair, fmt.Sprintf("No valid pairs found for %s on allowed DEXes.", tokenID))
	case errors.Is(err, service.ErrNoVenues):
		writeJSONError(w, http.StatusNotFound, ErrCodeNoVenues, "No eligible pools found on the supported venues.")
	default:
		writeJSONError(w, http.StatusInternalServerError, ErrCodeInternalError, "Lookup failed.")
	}
}

func tokenFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if !chain.IsTokenID(id) {
		writeJSONError(w, http.StatusBadRequest, ErrCodeInvalidToken, fmt.Sprintf("Invalid token identifier: %q.", id))
		return "", false
	}
	return id, true
}

func (s *Server) handleQuote() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := tokenFromPath(w, r)
		if !ok {
			return
		}
		snap, err := s.opts.Quoter.Quote(r.Context(), id)
		if err != nil {
			writeLookupError(w, id, err)
			return
		}
		writeJSON(w, http.StatusOK, quoteResponse{TokenID: id, Display: "$" + alerting.Humanize(snap.MarketCap), Quote: snap})
	}
}

func (s *Server) handleVenues() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := tokenFromPath(w, r)
		if !ok {
			return
		}
		ranked, err := s.opts.Quoter.Venues(r.Context(), id)
		if err != nil {
			writeLookupError(w, id, err)
			return
		}
		resp := map[string]any{"token_id": id, "venues": venueRows(ranked)}
		if len(ranked) > 0 {
			resp["recommended"] = ranked[0].Name
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type createAlertRequest struct {
	TokenID   string     `json:"token_id"`
	Target    flexString `json:"target"`
	ChannelID int64      `json:"channel_id"`
	CreatorID int64      `json:"creator_id"`
	GuildID   int64      `json:"guild_id"`
	Note      string     `json:"note"`
}

type ruleView struct {
	storage.AlertRule
	Current *float64 `json:"current"`
}

func (s *Server) handleCreateAlert() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAlertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Malformed request body.")
			return
		}
		req.TokenID = strings.TrimSpace(req.TokenID)
		if !chain.IsTokenID(req.TokenID) {
			writeJSONError(w, http.StatusBadRequest, ErrCodeInvalidToken, fmt.Sprintf("Invalid token identifier: %q.", req.TokenID))
			return
		}
		target, err := ParseTarget(string(req.Target))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, ErrCodeInvalidTarget, "Invalid target. Use 2500000 or shorthand like 250k, 2.5m, 1b, 1t.")
			return
		}

		snap, err := s.opts.Quoter.Quote(r.Context(), req.TokenID)
		if err != nil {
			writeLookupError(w, req.TokenID, err)
			return
		}

		name := lo.CoalesceOrEmpty(snap.Name, snap.Symbol, "Token")
		rule := storage.AlertRule{
			ID:        uuid.NewString(),
			TokenID:   req.TokenID,
			Target:    target,
			Direction: storage.DirectionFor(target, snap.MarketCap),
			ChannelID: req.ChannelID,
			CreatorID: req.CreatorID,
			GuildID:   req.GuildID,
			Name:      name,
			Symbol:    snap.Symbol,
			Note:      strings.TrimSpace(req.Note),
			CreatedAt: s.now().UTC(),
		}
		s.opts.Rules.Add(rule)
		if err := s.opts.Store.SaveRules(r.Context(), s.opts.Rules); err != nil {
			s.logger.Error().Err(err).Str("rule_id", rule.ID).Msg("save alert rules")
		}
		rule.State = storage.RuleActive

		var message string
		if snap.MarketCap == nil {
			message = fmt.Sprintf("%s has no reported MC/FDV yet. Watching until it reaches $%s MC.", name, alerting.Money(target))
		} else {
			cmp := "≥"
			if rule.Direction == storage.DirectionBelow {
				cmp = "≤"
			}
			message = fmt.Sprintf("Alert set for %s (%s): Market Cap %s $%s (current: $%s).",
				name, snap.Symbol, cmp, alerting.Money(target), alerting.Humanize(snap.MarketCap))
		}

		s.logger.Info().Str("rule_id", rule.ID).Str("token", rule.TokenID).Str("direction", string(rule.Direction)).Msg("alert created")
		writeJSON(w, http.StatusCreated, map[string]any{
			"rule":    ruleView{AlertRule: rule, Current: snap.MarketCap},
			"message": message,
		})
	}
}

func (s *Server) handleListAlerts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guildID, hasGuild, err := queryInt64(r, "guild_id")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
			return
		}
		creatorID, hasCreator, err := queryInt64(r, "creator_id")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
			return
		}

		rules := lo.Filter(s.opts.Rules.Active(), func(rule storage.AlertRule, _ int) bool {
			return (!hasGuild || rule.GuildID == guildID) && (!hasCreator || rule.CreatorID == creatorID)
		})
		values := s.opts.Cache.Values(lo.Uniq(lo.Map(rules, func(rule storage.AlertRule, _ int) string { return rule.TokenID })))
		views := lo.Map(rules, func(rule storage.AlertRule, _ int) ruleView {
			return ruleView{AlertRule: rule, Current: values[rule.TokenID]}
		})
		writeJSON(w, http.StatusOK, map[string]any{"alerts": views})
	}
}

func (s *Server) handleDeleteAlert() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		requester, ok, err := queryInt64(r, "requester_id")
		if err != nil || !ok {
			writeJSONError(w, http.StatusBadRequest, ErrCodeInvalidInput, "requester_id is required.")
			return
		}
		manage, _ := strconv.ParseBool(r.URL.Query().Get("manage"))

		rule, found := s.opts.Rules.Get(id)
		if !found {
			writeJSONError(w, http.StatusNotFound, ErrCodeNotFound, "Alert not found.")
			return
		}
		if rule.CreatorID != requester && !manage {
			writeJSONError(w, http.StatusForbidden, ErrCodeForbidden, "You can only remove your own alerts.")
			return
		}

		removed, err := s.opts.Rules.Cancel(id)
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, ErrCodeNotFound, "Alert not found.")
			return
		}
		if err := s.opts.Store.SaveRules(r.Context(), s.opts.Rules); err != nil {
			s.logger.Error().Err(err).Str("rule_id", id).Msg("save alert rules")
		}
		s.logger.Info().Str("rule_id", id).Int64("requester", requester).Msg("alert removed")
		writeJSON(w, http.StatusOK, map[string]any{"rule": removed})
	}
}

func (s *Server) handleRecentAlerts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guildID, hasGuild, err := queryInt64(r, "guild_id")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
			return
		}
		creatorID, hasCreator, err := queryInt64(r, "creator_id")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
			return
		}
		count, hasCount, err := queryInt64(r, "count")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
			return
		}
		if !hasCount {
			count = defaultRecentCount
		}
		count = lo.Clamp(count, 1, maxRecentCount)

		events := s.opts.History.Recent(int(count), func(ev storage.AlertEvent) bool {
			return (!hasGuild || ev.GuildID == guildID) && (!hasCreator || ev.CreatorID == creatorID)
		})
		writeJSON(w, http.StatusOK, map[string]any{"events": events, "as_of": s.now().UTC().Format(time.RFC3339)})
	}
}
