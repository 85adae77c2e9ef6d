package cmd

import (
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"payment-reconciliation-engine/cmd/reconengine/config"
	"payment-reconciliation-engine/internal/models"
	"payment-reconciliation-engine/internal/reconciler"
	"payment-reconciliation-engine/internal/reporter"
	apperrors "payment-reconciliation-engine/pkg/errors"
)

// Parsed by validateReconcileFlags, consumed by runReconcile.
var (
	reconcileWindowFrom *time.Time
	reconcileWindowTo   *time.Time
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run a reconciliation pass over the stored records",
	Long: `Reconcile loads transactions, settlements and adjustments from the
store, links them within the configured tolerance windows and persists
the resulting matches. The run report counts matched and unmatched
records; --discrepancies appends the full discrepancy report.

Examples:
  # Reconcile everything in the store
  reconengine reconcile

  # Reconcile January against PostgreSQL, machine-readable output
  reconengine reconcile --date-from 2024-01-01 --date-to 2024-01-31 \
    --database-url postgres://recon@localhost/recon --output-format json

  # Looser matching plus the discrepancy report, written to a file
  reconengine reconcile --amount-tolerance-percent 10 --discrepancies -o report.json -f json`,
	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	flags := reconcileCmd.Flags()
	flags.String("date-from", "", "only reconcile records dated on or after this day (YYYY-MM-DD)")
	flags.String("date-to", "", "only reconcile records dated on or before this day (YYYY-MM-DD)")
	flags.StringP("output-format", "f", string(reporter.FormatConsole), "output format (console, json)")
	flags.StringP("output-file", "o", "", "write the report to a file instead of stdout")
	flags.Bool("discrepancies", false, "append the discrepancy report after the run report")
	flags.String(config.KeyDatabaseURL, "", "PostgreSQL connection string (empty for in-memory store)")
	addMatchingFlags(reconcileCmd)
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	keys := append([]string{
		"date-from", "date-to", "output-format", "output-file", "discrepancies",
		config.KeyDatabaseURL,
	}, config.MatchingFlagKeys...)
	if err := bindFlags(cmd, keys...); err != nil {
		return err
	}

	format := viper.GetString("output-format")
	if !reporter.Format(format).IsValid() {
		return apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig,
			"output-format",
			format,
			nil,
		).WithSuggestion("use one of: console, json")
	}

	reconcileWindowFrom, reconcileWindowTo = nil, nil

	if raw := viper.GetString("date-from"); raw != "" {
		from, err := models.ParseCivilDate(raw)
		if err != nil {
			return apperrors.ValidationError(apperrors.CodeInvalidDate, "date-from", raw, err).
				WithSuggestion("use the YYYY-MM-DD format, e.g. 2024-01-31")
		}
		reconcileWindowFrom = &from
	}

	if raw := viper.GetString("date-to"); raw != "" {
		to, err := models.ParseCivilDate(raw)
		if err != nil {
			return apperrors.ValidationError(apperrors.CodeInvalidDate, "date-to", raw, err).
				WithSuggestion("use the YYYY-MM-DD format, e.g. 2024-01-31")
		}
		reconcileWindowTo = &to
	}

	if reconcileWindowFrom != nil && reconcileWindowTo != nil && reconcileWindowFrom.After(*reconcileWindowTo) {
		return apperrors.ValidationError(
			apperrors.CodeOutOfRange,
			"date-from",
			viper.GetString("date-from"),
			nil,
		).WithSuggestion("date-from must not be after date-to")
	}

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	matchingCfg, err := config.BuildMatchingConfig()
	if err != nil {
		return err
	}

	st, closeStore, err := config.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	report, err := reconciler.New(st, matchingCfg).Run(ctx, reconcileWindowFrom, reconcileWindowTo)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if path := viper.GetString("output-file"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return apperrors.FileError(apperrors.CodeFilePermission, path, err).
				WithSuggestion("check that the directory exists and is writable")
		}
		defer f.Close()
		out = f
	}

	format := reporter.Format(viper.GetString("output-format"))
	if err := reporter.WriteRunReport(out, report, format); err != nil {
		return err
	}

	if viper.GetBool("discrepancies") {
		discrepancies, err := reporter.NewReporter(st, matchingCfg).Discrepancies(ctx, reporter.Query{})
		if err != nil {
			return err
		}
		if err := reporter.WriteDiscrepancyReport(out, discrepancies, format); err != nil {
			return err
		}
	}

	return nil
}
