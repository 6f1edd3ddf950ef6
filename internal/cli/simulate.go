package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateTLD string
	simulateOld string
	simulateNew string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate an alert for a synthetic price change",
	RunE: func(cmd *cobra.Command, args []string) error {
		oldPrice, err := decimal.NewFromString(simulateOld)
		if err != nil {
			return fmt.Errorf("invalid --old value: %w", err)
		}
		newPrice, err := decimal.NewFromString(simulateNew)
		if err != nil {
			return fmt.Errorf("invalid --new value: %w", err)
		}
		return getApp().SimulateAlert(cmd.Context(), simulateTLD, oldPrice, newPrice)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateTLD, "tld", "", "TLD to simulate (dot-prefixed)")
	simulateCmd.Flags().StringVar(&simulateOld, "old", "0", "Old price")
	simulateCmd.Flags().StringVar(&simulateNew, "new", "0", "New price")
}
