package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mcwatch/internal/app"
)

var (
	historyLimit   int
	historyGuild   int64
	historyCreator int64

	invoicesLimit  int
	invoicesGuild  int64
	invoicesUser   int64
	invoicesStatus string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Display recently fired alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.HistoryOptions{
			Limit:     historyLimit,
			GuildID:   historyGuild,
			CreatorID: historyCreator,
		}

		return getApp().History(cmd.Context(), opts)
	},
}

var invoicesCmd = &cobra.Command{
	Use:   "invoices",
	Short: "Display stored payment invoices",
	RunE: func(cmd *cobra.Command, args []string) error {
		if invoicesLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		switch invoicesStatus {
		case "", "pending", "paid", "expired":
		default:
			return fmt.Errorf("--status must be pending, paid or expired")
		}

		opts := app.InvoicesOptions{
			Limit:   invoicesLimit,
			GuildID: invoicesGuild,
			UserID:  invoicesUser,
			Status:  invoicesStatus,
		}

		return getApp().Invoices(cmd.Context(), opts)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of events to display")
	historyCmd.Flags().Int64Var(&historyGuild, "guild", 0, "Only show events from this guild")
	historyCmd.Flags().Int64Var(&historyCreator, "creator", 0, "Only show events created by this user")

	invoicesCmd.Flags().IntVar(&invoicesLimit, "limit", 15, "Number of invoices to display")
	invoicesCmd.Flags().Int64Var(&invoicesGuild, "guild", 0, "Only show invoices from this guild")
	invoicesCmd.Flags().Int64Var(&invoicesUser, "user", 0, "Only show invoices for this user")
	invoicesCmd.Flags().StringVar(&invoicesStatus, "status", "", "Filter by status (pending, paid, expired)")
}
