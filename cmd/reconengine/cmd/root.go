package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"payment-reconciliation-engine/cmd/reconengine/config"
	"payment-reconciliation-engine/internal/matcher"
	"payment-reconciliation-engine/pkg/logger"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reconengine",
	Short: "Payment reconciliation engine",
	Long: `Reconengine matches captured payment transactions against bank
settlements and post-hoc adjustments, scores every link with a confidence
value and reports the discrepancies that remain.

Examples:
  reconengine serve --listen :8080
  reconengine load --transactions transactions.csv --settlements settlements.csv
  reconengine reconcile --date-from 2024-01-01 --date-to 2024-01-31 --output-format json
  reconengine seed --output-dir ./testdata
  reconengine version`,
	Version:       getVersionString(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(4)
		}

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	// RECONENGINE_DATABASE_URL overrides database-url, and so on.
	viper.SetEnvPrefix("RECONENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if viper.GetBool("verbose") {
		if debugLogger, err := logger.NewLogger(logger.DebugConfig()); err == nil {
			logger.SetGlobalLogger(debugLogger)
		}
	}
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}

// addMatchingFlags registers the matching tunables on a command. The flags
// are bound to viper per invocation (see bindFlags); registering here only
// makes them visible in help output with the production defaults.
func addMatchingFlags(cmd *cobra.Command) {
	defaults := matcher.DefaultMatchingConfig()
	flags := cmd.Flags()

	flags.Float64(config.KeyAmountTolerancePercent, defaults.AmountTolerancePercent, "same-currency amount tolerance in percent")
	flags.Int(config.KeySettlementWindowHours, defaults.SettlementWindowHours, "settlement date window in hours")
	flags.Int(config.KeyChargebackWindowDays, defaults.ChargebackWindowDays, "chargeback matching window in days")
	flags.Int(config.KeyRefundWindowDays, defaults.RefundWindowDays, "refund matching window in days")
	flags.Int(config.KeyMinAutoMatchConfidence, defaults.MinAutoMatchConfidence, "confidence threshold separating matched from pending_review")
	flags.Float64(config.KeyFXTolerancePercent, defaults.FXTolerancePercent, "cross-currency tolerance in percent")
	flags.Int(config.KeyOrphanThresholdDays, defaults.OrphanThresholdDays, "age in days before an unmatched record counts as orphaned")
}

// bindFlags binds a command's flags to their viper keys. Several commands
// register flags with the same name (database-url, the matching tunables),
// so binding happens when the command runs rather than at init time; an
// init-time bind would leave viper reading whichever command registered
// last.
func bindFlags(cmd *cobra.Command, keys ...string) error {
	for _, key := range keys {
		flag := cmd.Flags().Lookup(key)
		if flag == nil {
			continue
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}
