package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/equitrader/monitoring"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scan scheduler",
	Long: `Run the scheduler until interrupted. A full scan runs every
market.scan_interval_minutes during market hours, with a stop-loss check
between scans and a daily summary after the close.

/metrics and /health are served on metrics.addr.

Example:
  trader run -c trader.yaml`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return withApp(ctx, func(ctx context.Context, a *app) error {
		g, ctx := errgroup.WithContext(ctx)
		if a.cfg.Metrics.Addr != "" {
			srv := monitoring.NewServer(a.cfg.Metrics.Addr, a.registry, a.health)
			g.Go(func() error { return srv.ListenAndServe(ctx) })
			fmt.Fprintf(cmd.OutOrStdout(), "Metrics on %s\n", a.cfg.Metrics.Addr)
		}
		g.Go(func() error { return a.scanner.Run(ctx) })
		return g.Wait()
	})
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
