package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/equitrader/config"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "A supervised equity trading bot",
	Long: `Trader scans for equity opportunities, asks for approval over Telegram
and executes approved trades on paper or through a live venue.

Every trade passes the pre-trade risk checks:
  - drawdown circuit breaker
  - daily trade limit
  - pattern day trader limit
  - max holdings and position size`,
	SilenceUsage: true,
}

var (
	cfgFile string
	dbPath  string
	envFile string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults apply when empty")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to SQLite DB (overrides store.db_path)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "credentials file (default .env)")
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if cfgFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(cfgFile); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if dbPath != "" {
		cfg.Store.DBPath = dbPath
	}
	return cfg, nil
}
