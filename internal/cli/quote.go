package cli

import (
	"github.com/spf13/cobra"
)

var quoteCmd = &cobra.Command{
	Use:   "quote <token>",
	Short: "Resolve the consensus market cap of a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Quote(cmd.Context(), args[0])
	},
}

var lpCmd = &cobra.Command{
	Use:   "lp <token>",
	Short: "Rank the supported liquidity venues for a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().LP(cmd.Context(), args[0])
	},
}
