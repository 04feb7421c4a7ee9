package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/equitrader/journal"
	"github.com/rustyeddy/equitrader/signals"
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "List trade signals",
	Long: `List signals, newest first.

Examples:
  trader signals
  trader signals --status PENDING --status APPROVED`,
	Args: cobra.NoArgs,
	RunE: runSignals,
}

var approveCmd = &cobra.Command{
	Use:   "approve <signal-id>",
	Short: "Request approval for a pending signal and wait for the reply",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprove,
}

var executeCmd = &cobra.Command{
	Use:   "execute [signal-id]",
	Short: "Execute one approved signal, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExecute,
}

var signalStatuses []string

func init() {
	rootCmd.AddCommand(signalsCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(executeCmd)

	signalsCmd.Flags().StringSliceVarP(&signalStatuses, "status", "s", nil, "filter by status (repeatable)")
}

func runSignals(cmd *cobra.Command, args []string) error {
	var sts []journal.Status
	for _, s := range signalStatuses {
		st, err := journal.ParseStatus(s)
		if err != nil {
			return err
		}
		sts = append(sts, st)
	}

	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		list, err := a.signals.List(ctx, sts...)
		if err != nil {
			return err
		}
		signals.RenderTable(cmd.OutOrStdout(), list)
		return nil
	})
}

func runApprove(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		s, err := a.signals.Get(ctx, id)
		if err != nil {
			return err
		}
		resp, err := a.approval.RequestApproval(ctx, s)
		fmt.Fprintf(cmd.OutOrStdout(), "Signal #%d: %s\n", id, resp)
		return err
	})
}

func runExecute(cmd *cobra.Command, args []string) error {
	var id int64
	if len(args) == 1 {
		var err error
		if id, err = parseID(args[0]); err != nil {
			return err
		}
	}

	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		if id != 0 {
			res, err := a.executor.ExecuteSignal(ctx, id)
			fmt.Fprintf(cmd.OutOrStdout(), "Signal #%d: %s\n", res.SignalID, res.Message)
			return err
		}

		results, err := a.executor.ExecuteApproved(ctx)
		for _, res := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "Signal #%d: %s\n", res.SignalID, res.Message)
		}
		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No approved signals")
		}
		return err
	})
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid signal id %q", s)
	}
	return id, nil
}
