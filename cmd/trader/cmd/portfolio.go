package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/equitrader/portfolio"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Show holdings and portfolio value",
	Args:  cobra.NoArgs,
	RunE:  runPortfolio,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Record a portfolio snapshot",
	Args:  cobra.NoArgs,
	RunE:  runSnapshot,
}

func init() {
	rootCmd.AddCommand(portfolioCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func runPortfolio(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		v, err := a.portfolio.Value(ctx)
		if err != nil {
			return err
		}
		portfolio.RenderValuation(cmd.OutOrStdout(), v)
		return nil
	})
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		s, err := a.portfolio.TakeSnapshot(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Snapshot #%d: $%.2f (peak $%.2f, drawdown %.1f%%)\n",
			s.ID, s.TotalValue, s.PeakValue, s.DrawdownPct)
		return nil
	})
}
