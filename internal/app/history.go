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
	"mcwatch/internal/storage"
)

const defaultHistoryLimit = 20

// HistoryOptions filters the fired-alert listing.
type HistoryOptions struct {
	Limit     int
	GuildID   int64
	CreatorID int64
}

// History prints recently fired alerts, newest first.
func (a *App) History(ctx context.Context, opts HistoryOptions) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.LoadHistory(ctx)
	if err != nil {
		return err
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultHistoryLimit
	}
	history := storage.NewHistory(a.Config.Alerts.HistoryCapacity, events)
	recent := history.Recent(opts.Limit, func(ev storage.AlertEvent) bool {
		return (opts.GuildID == 0 || ev.GuildID == opts.GuildID) &&
			(opts.CreatorID == 0 || ev.CreatorID == opts.CreatorID)
	})
	if len(recent) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts have fired yet")
		return nil
	}

	renderHistory(os.Stdout, recent)
	return nil
}

func renderHistory(w io.Writer, events []storage.AlertEvent) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Time (UTC)", "Token", "Direction", "Target", "Observed", "Creator"})
	for _, ev := range events {
		table.Append([]string{
			ev.Time.UTC().Format(time.RFC3339),
			tokenLabel(ev.Name, ev.Symbol),
			string(ev.Direction),
			"$" + alerting.Money(ev.Target),
			"$" + alerting.Humanize(ev.Observed),
			strconv.FormatInt(ev.CreatorID, 10),
		})
	}
	table.Render()
}

// InvoicesOptions filters the invoice listing.
type InvoicesOptions struct {
	Limit   int
	GuildID int64
	UserID  int64
	Status  string
}

// Invoices prints stored invoices, newest first.
func (a *App) Invoices(ctx context.Context, opts InvoicesOptions) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	loaded, err := store.LoadInvoices(ctx)
	if err != nil {
		return err
	}
	status := storage.InvoiceStatus(strings.ToLower(strings.TrimSpace(opts.Status)))
	invoices := storage.NewInvoiceBook(loaded).Query(func(inv storage.Invoice) bool {
		return (opts.GuildID == 0 || inv.GuildID == opts.GuildID) &&
			(opts.UserID == 0 || inv.UserID == opts.UserID) &&
			(status == "" || inv.Status == status)
	}, opts.Limit)
	if len(invoices) == 0 {
		fmt.Fprintln(os.Stdout, "no invoices found")
		return nil
	}

	renderInvoices(os.Stdout, invoices)
	return nil
}

func renderInvoices(w io.Writer, invoices []storage.Invoice) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Created (UTC)", "Amount", "Status", "User", "Note", "Signature"})
	for _, inv := range invoices {
		table.Append([]string{
			inv.ID,
			inv.CreatedAt.UTC().Format(time.RFC3339),
			alerting.InvoiceAmount(inv),
			string(inv.Status),
			strconv.FormatInt(inv.UserID, 10),
			sanitizeInline(inv.Note),
			inv.TxSignature,
		})
	}
	table.Render()
}

func tokenLabel(name, symbol string) string {
	switch {
	case name == "":
		return symbol
	case symbol == "":
		return name
	default:
		return fmt.Sprintf("%s (%s)", name, symbol)
	}
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
