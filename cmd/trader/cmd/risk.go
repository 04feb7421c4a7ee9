package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var pauseCmd = &cobra.Command{
	Use:   "pause <reason>",
	Short: "Pause trading",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPause,
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume trading after a pause or drawdown breach",
	Args:  cobra.NoArgs,
	RunE:  runResume,
}

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Show the risk status",
	Args:  cobra.NoArgs,
	RunE:  runRisk,
}

func init() {
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(riskCmd)
}

func runPause(cmd *cobra.Command, args []string) error {
	reason := strings.Join(args, " ")
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		if err := a.risk.Pause(ctx, reason); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Trading paused: %s\n", reason)
		return nil
	})
}

func runResume(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		if err := a.risk.Resume(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Trading resumed")
		return nil
	})
}

func runRisk(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		v, err := a.portfolio.Value(ctx)
		if err != nil {
			return err
		}
		peak, err := a.portfolio.Peak(ctx, v.TotalValue)
		if err != nil {
			return err
		}
		st, err := a.risk.Status(ctx, v.TotalValue, peak, v.NumHoldings)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if st.Paused {
			fmt.Fprintf(w, "Trading: PAUSED (%s)\n", st.PauseReason)
			if st.PausedAt != nil {
				fmt.Fprintf(w, "  Since: %s\n", st.PausedAt.Format("2006-01-02 15:04 MST"))
			}
		} else {
			fmt.Fprintln(w, "Trading: ACTIVE")
		}
		fmt.Fprintf(w, "  %s %s\n", check(st.DrawdownOK), st.Drawdown)
		fmt.Fprintf(w, "  %s %s\n", check(st.DailyOK), st.DailyTrades)
		fmt.Fprintf(w, "  %s %s\n", check(st.PDTOK), st.PDT)
		fmt.Fprintf(w, "  %s %s\n", check(st.HoldingsOK), st.Holdings)
		fmt.Fprintf(w, "Can trade: %t\n", st.CanTrade)
		return nil
	})
}

func check(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
