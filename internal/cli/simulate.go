package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mcwatch/internal/api"
	"mcwatch/internal/app"
)

var (
	simulateToken   string
	simulateTarget  string
	simulateCurrent string
	simulateChannel int64
	simulateCreator int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Fire a synthetic market cap alert through the configured notifier",
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := api.ParseTarget(simulateTarget)
		if err != nil {
			return fmt.Errorf("invalid --target value: %w", err)
		}
		current, err := api.ParseTarget(simulateCurrent)
		if err != nil {
			return fmt.Errorf("invalid --current value: %w", err)
		}

		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			TokenID:   simulateToken,
			Target:    target,
			Current:   current,
			ChannelID: simulateChannel,
			CreatorID: simulateCreator,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateToken, "token", app.DefaultSimulatedToken, "Token address to report")
	simulateCmd.Flags().StringVar(&simulateTarget, "target", "1m", "Alert target market cap (accepts k/m/b/t)")
	simulateCmd.Flags().StringVar(&simulateCurrent, "current", "1.2m", "Market cap the simulated feed reports")
	simulateCmd.Flags().Int64Var(&simulateChannel, "channel", 0, "Chat id to deliver to")
	simulateCmd.Flags().Int64Var(&simulateCreator, "creator", 0, "User id credited as the alert creator")
}
