package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/equitrader/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the trade journal and audit log",
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List booked trades, newest first",
	Long: `List booked trades.

Examples:
  trader journal trades --limit 20
  trader journal trades --org > trades.org
  trader journal trades --csv > trades.csv`,
	Args: cobra.NoArgs,
	RunE: runJournalTrades,
}

var journalAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List audit log entries, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJournalAudit,
}

var (
	journalLimit int
	journalOrg   bool
	journalCSV   bool
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalAuditCmd)

	journalCmd.PersistentFlags().IntVarP(&journalLimit, "limit", "n", 50, "max rows (0 for all)")
	journalTradesCmd.Flags().BoolVar(&journalOrg, "org", false, "render as org-mode entries")
	journalTradesCmd.Flags().BoolVar(&journalCSV, "csv", false, "render as CSV")
	journalTradesCmd.MarkFlagsMutuallyExclusive("org", "csv")
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		trades, err := a.store.ListTrades(ctx, journalLimit)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		switch {
		case journalCSV:
			return journal.WriteTradesCSV(w, trades)
		case journalOrg:
			fmt.Fprint(w, journal.FormatTradesOrg(trades))
			return nil
		}

		for _, t := range trades {
			line := fmt.Sprintf("#%d %s %s %d x %s @ $%.2f = $%.2f",
				t.ID, t.ExecutedAt.Format("2006-01-02 15:04"), t.Action, t.Quantity, t.Symbol, t.Price, t.TotalValue)
			if t.ProfitLoss != nil {
				line += fmt.Sprintf("  P&L $%.2f", *t.ProfitLoss)
			}
			fmt.Fprintln(w, line)
		}
		if len(trades) == 0 {
			fmt.Fprintln(w, "No trades")
		}
		return nil
	})
}

func runJournalAudit(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		entries, err := a.store.ListAudit(ctx, journalLimit)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, e := range entries {
			fmt.Fprintf(w, "%s %-22s %-6s %s", e.CreatedAt.Format("2006-01-02 15:04:05"), e.ActionType, e.Symbol, e.Description)
			if len(e.Extra) > 0 {
				if b, err := json.Marshal(e.Extra); err == nil {
					fmt.Fprintf(w, " %s", b)
				}
			}
			fmt.Fprintln(w)
		}
		return nil
	})
}
