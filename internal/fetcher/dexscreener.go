package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mcwatch/internal/market"
)

const tokensPath = "/latest/dex/tokens/"

// DexScreenerOptions parameterise the pair provider client.
type DexScreenerOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// DexScreener fetches trading pairs from a DexScreener-compatible API.
type DexScreener struct {
	opts    DexScreenerOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewDexScreener constructs a pair provider client.
func NewDexScreener(opts DexScreenerOptions, logger zerolog.Logger) *DexScreener {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.dexscreener.com"
	}

	return &DexScreener{
		opts:    opts,
		logger:  logger.With().Str("component", "pair_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Fetch returns all pairs for tokenID. Any transport, status or decoding problem collapses
// to (nil, false).
func (d *DexScreener) Fetch(ctx context.Context, tokenID string) ([]market.Pair, bool) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return nil, false
	}

	endpoint := d.baseURL + tokensPath + url.PathEscape(tokenID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		d.logger.Debug().Err(err).Str("token", tokenID).Msg("build pair request")
		return nil, false
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(d.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "mcwatch/1.0")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Debug().Err(err).Str("token", tokenID).Msg("pair request failed")
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		d.logger.Debug().Int("status", resp.StatusCode).Str("token", tokenID).Msg("pair provider returned non-200")
		return nil, false
	}

	var payload market.TokensResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		d.logger.Debug().Err(err).Str("token", tokenID).Msg("decode pair payload")
		return nil, false
	}
	return payload.Pairs, true
}

var _ PairFetcher = (*DexScreener)(nil)
