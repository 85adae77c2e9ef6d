package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"payment-reconciliation-engine/cmd/reconengine/config"
	"payment-reconciliation-engine/internal/ingest"
	"payment-reconciliation-engine/internal/parsers"
	apperrors "payment-reconciliation-engine/pkg/errors"
)

var (
	loadTransactionsFile string
	loadSettlementsFile  string
	loadAdjustmentsFile  string
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load record files into the store",
	Long: `Load parses record files (CSV with a header row, or a JSON array;
picked by file extension), validates every row and ingests the valid
ones. Rows that fail validation and records that already exist are
reported and skipped; they never abort the batch.

Examples:
  # Load everything into the in-memory store of a one-off run
  reconengine load --transactions txns.csv --settlements stls.csv --adjustments adjs.json

  # Load settlements into PostgreSQL
  reconengine load --settlements stls.csv --database-url postgres://recon@localhost/recon

  # Load a dataset written by the seed command
  reconengine load --transactions demo/transactions.json --settlements demo/settlements.json`,
	PreRunE: validateLoadFlags,
	RunE:    runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)

	flags := loadCmd.Flags()
	flags.StringVar(&loadTransactionsFile, "transactions", "", "transaction file (CSV or JSON)")
	flags.StringVar(&loadSettlementsFile, "settlements", "", "settlement file (CSV or JSON)")
	flags.StringVar(&loadAdjustmentsFile, "adjustments", "", "adjustment file (CSV or JSON)")
	flags.String(config.KeyDatabaseURL, "", "PostgreSQL connection string (empty for in-memory store)")
}

func validateLoadFlags(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, config.KeyDatabaseURL); err != nil {
		return err
	}

	if loadTransactionsFile == "" && loadSettlementsFile == "" && loadAdjustmentsFile == "" {
		return apperrors.ConfigurationError(
			apperrors.CodeMissingConfig,
			"input file",
			nil,
			nil,
		).WithSuggestion("pass at least one of --transactions, --settlements or --adjustments")
	}

	inputs := []struct {
		path        string
		description string
	}{
		{loadTransactionsFile, "transactions file"},
		{loadSettlementsFile, "settlements file"},
		{loadAdjustmentsFile, "adjustments file"},
	}
	for _, input := range inputs {
		if input.path == "" {
			continue
		}
		if err := validateInputFile(input.path, input.description); err != nil {
			return err
		}
	}

	return nil
}

// validateInputFile checks that a record file exists and is a readable
// regular file before any parsing starts.
func validateInputFile(path, description string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return apperrors.FileError(apperrors.CodeFileNotFound, path, err)
	}
	if err != nil {
		return apperrors.FileError(apperrors.CodeFilePermission, path, err)
	}

	if info.IsDir() {
		return apperrors.New(
			apperrors.CategoryFile,
			apperrors.CodeFileNotFound,
			fmt.Sprintf("%s is a directory, expected a file: %s", description, path),
		).WithContext("file_path", path).
			WithSuggestion("point the flag at the data file itself")
	}

	file, err := os.Open(path)
	if err != nil {
		return apperrors.FileError(apperrors.CodeFilePermission, path, err)
	}
	file.Close()

	return nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, closeStore, err := config.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := ingest.NewService(st)
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	if loadTransactionsFile != "" {
		records, stats, err := parsers.LoadTransactions(loadTransactionsFile)
		if err != nil {
			return err
		}
		result, err := svc.IngestTransactions(ctx, records)
		if err != nil {
			return err
		}
		printLoadResult(out, errOut, "transactions", stats, result)
	}

	if loadSettlementsFile != "" {
		records, stats, err := parsers.LoadSettlements(loadSettlementsFile)
		if err != nil {
			return err
		}
		result, err := svc.IngestSettlements(ctx, records)
		if err != nil {
			return err
		}
		printLoadResult(out, errOut, "settlements", stats, result)
	}

	if loadAdjustmentsFile != "" {
		records, stats, err := parsers.LoadAdjustments(loadAdjustmentsFile)
		if err != nil {
			return err
		}
		result, err := svc.IngestAdjustments(ctx, records)
		if err != nil {
			return err
		}
		printLoadResult(out, errOut, "adjustments", stats, result)
	}

	return nil
}

func printLoadResult(out, errOut io.Writer, kind string, stats *parsers.Stats, result *ingest.Result) {
	fmt.Fprintf(out, "%s: %s, %d ingested\n", kind, stats, result.Ingested)

	if stats.HasErrors() {
		fmt.Fprintln(errOut, stats.Summary().Error())
	}
	if len(result.Errors) > 0 {
		fmt.Fprintln(errOut, FormatBatchErrors(result.Errors))
	}
}
