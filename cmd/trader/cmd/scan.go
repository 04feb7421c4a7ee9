package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/equitrader/bot"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one full scan",
	Long: `Generate sell then buy signals, request approval for each and
execute the approved ones, then snapshot the portfolio.

Example:
  trader scan --force`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the quick stop-loss check",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

var scanForce bool

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(checkCmd)

	scanCmd.Flags().BoolVar(&scanForce, "force", false, "scan even outside market hours")
	checkCmd.Flags().BoolVar(&scanForce, "force", false, "check even outside market hours")
}

func runScan(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		r, err := a.scanner.Scan(ctx, scanForce)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), r)
		return nil
	})
}

func runCheck(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		r, err := a.scanner.QuickCheck(ctx, scanForce)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), r)
		return nil
	})
}

func printReport(w io.Writer, r bot.Report) {
	if r.Skipped != "" {
		fmt.Fprintf(w, "Scan skipped: %s\n", r.Skipped)
		return
	}
	fmt.Fprintf(w, "Scan %s\n", r.ScanID)
	fmt.Fprintf(w, "  Sell signals: %d\n", len(r.Sells))
	fmt.Fprintf(w, "  Buy signals:  %d\n", len(r.Buys))
	fmt.Fprintf(w, "  Approved: %d  Rejected: %d  Expired: %d\n",
		r.Approvals.Approved, r.Approvals.Rejected, r.Approvals.Expired)
	for _, res := range r.Results {
		mark := "✗"
		if res.Success {
			mark = "✓"
		}
		fmt.Fprintf(w, "  %s #%d %s\n", mark, res.SignalID, res.Message)
	}
	if r.Snapshot != nil {
		fmt.Fprintf(w, "  Portfolio: $%.2f (drawdown %.1f%%)\n", r.Snapshot.TotalValue, r.Snapshot.DrawdownPct)
	}
	for _, err := range r.Errors {
		fmt.Fprintf(w, "  error: %v\n", err)
	}
}
