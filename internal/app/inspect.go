package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"mcwatch/internal/alerting"
	"mcwatch/internal/cache"
	"mcwatch/internal/chain"
	"mcwatch/internal/venue"
)

// Quote prints the resolved market cap snapshot for one token.
func (a *App) Quote(ctx context.Context, tokenID string) error {
	tokenID = strings.TrimSpace(tokenID)
	if !chain.IsTokenID(tokenID) {
		return fmt.Errorf("invalid token identifier %q", tokenID)
	}
	snap, err := a.newQuoter(nil).Quote(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("quote %s: %w", tokenID, err)
	}
	renderQuote(os.Stdout, tokenID, snap)
	return nil
}

func renderQuote(w io.Writer, tokenID string, snap cache.TokenSnapshot) {
	table := tablewriter.NewWriter(w)
	table.AppendBulk([][]string{
		{"Token", tokenLabel(snap.Name, snap.Symbol)},
		{"Address", tokenID},
		{"Market cap", "$" + alerting.Humanize(snap.MarketCap)},
		{"Source", string(snap.Source)},
		{"Consensus", "$" + alerting.Money(snap.Consensus)},
		{"Delta", "$" + alerting.Humanize(snap.Delta)},
		{"Venue", strings.TrimSpace(snap.Dex + " " + snap.Quote)},
		{"Chain", snap.Chain},
		{"Pair", snap.URL},
		{"Updated", snap.UpdatedAt.UTC().Format(time.RFC3339)},
	})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	table.Render()
}

// LP prints the supported liquidity venues for one token, best first.
func (a *App) LP(ctx context.Context, tokenID string) error {
	tokenID = strings.TrimSpace(tokenID)
	if !chain.IsTokenID(tokenID) {
		return fmt.Errorf("invalid token identifier %q", tokenID)
	}
	ranked, err := a.newQuoter(nil).Venues(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("venues %s: %w", tokenID, err)
	}
	renderVenues(os.Stdout, ranked)
	if len(ranked) > 0 {
		fmt.Fprintf(os.Stdout, "Recommended: %s %s\n", ranked[0].Name, ranked[0].Totals.BestURL)
	}
	return nil
}

func renderVenues(w io.Writer, ranked []venue.Ranked) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Venue", "Pools", "Liquidity", "Volume 24h", "Txns 24h", "Quotes", "Score"})
	for _, r := range ranked {
		table.Append([]string{
			r.Name,
			strconv.Itoa(r.Totals.Pools),
			"$" + alerting.Money(r.Totals.Liquidity),
			"$" + alerting.Money(r.Totals.Volume),
			strconv.FormatInt(r.Totals.Txns, 10),
			strings.Join(r.Totals.QuoteSymbols(), "/"),
			fmt.Sprintf("%.3f", r.Score),
		})
	}
	table.Render()
}
