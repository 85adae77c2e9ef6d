// Package parsers loads gateway transaction, bank settlement and adjustment
// record files for bulk ingestion.
//
// Two encodings are supported: CSV with a header row, where column names may
// use any of the known aliases, and JSON arrays in the same shape the ingest
// API accepts. Malformed CSV rows are reported with their row number and
// skipped; only an unreadable file or a missing required column fails the
// whole load.
package parsers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"payment-reconciliation-engine/internal/models"
	apperrors "payment-reconciliation-engine/pkg/errors"
	"payment-reconciliation-engine/pkg/logger"
)

// Format identifies the on-disk encoding of a records file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// DetectFormat picks the decoder for a file from its extension. Anything
// that is not .json is treated as CSV.
func DetectFormat(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatCSV
}

// Stats describes the outcome of loading one records file.
type Stats struct {
	Rows   int
	Loaded int
	Errors []*apperrors.EngineError
}

func (s *Stats) reject(err *apperrors.EngineError) {
	s.Errors = append(s.Errors, err)
}

// HasErrors reports whether any rows were rejected.
func (s *Stats) HasErrors() bool {
	return len(s.Errors) > 0
}

// Summary groups the rejected rows by error category and code.
func (s *Stats) Summary() *apperrors.ErrorSummary {
	return apperrors.NewErrorSummary(s.Errors)
}

// String returns a one-line summary of the load.
func (s *Stats) String() string {
	return fmt.Sprintf("%d of %d rows loaded, %d rejected", s.Loaded, s.Rows, len(s.Errors))
}

// column declares one logical field of a record kind and the header names
// that map to it.
type column struct {
	name     string
	aliases  []string
	required bool
}

var transactionColumns = []column{
	{name: "transaction_id", aliases: []string{"txn_id", "gateway_transaction_id"}, required: true},
	{name: "merchant_order_id", aliases: []string{"order_id", "merchant_order"}},
	{name: "amount", aliases: []string{"transaction_amount"}, required: true},
	{name: "currency", aliases: []string{"currency_code"}, required: true},
	{name: "timestamp", aliases: []string{"transaction_time", "authorized_at"}, required: true},
	{name: "status", aliases: []string{"transaction_status"}, required: true},
	{name: "customer_id", aliases: []string{"customer"}},
	{name: "country", aliases: []string{"country_code"}},
}

var settlementColumns = []column{
	{name: "settlement_id", aliases: []string{"bank_settlement_id"}, required: true},
	{name: "amount", aliases: []string{"net_amount", "settled_amount"}, required: true},
	{name: "gross_amount", aliases: []string{"gross"}},
	{name: "currency", aliases: []string{"currency_code"}, required: true},
	{name: "settlement_date", aliases: []string{"value_date", "posting_date"}, required: true},
	{name: "transaction_reference", aliases: []string{"reference", "txn_reference"}},
	{name: "fees_deducted", aliases: []string{"fees", "fee_amount"}},
	{name: "bank_name", aliases: []string{"bank"}},
}

var adjustmentColumns = []column{
	{name: "adjustment_id", aliases: []string{"adj_id"}, required: true},
	{name: "transaction_reference", aliases: []string{"reference", "txn_reference"}},
	{name: "amount", aliases: []string{"adjustment_amount"}, required: true},
	{name: "currency", aliases: []string{"currency_code"}, required: true},
	{name: "type", aliases: []string{"adjustment_type"}, required: true},
	{name: "date", aliases: []string{"adjustment_date", "processed_date"}, required: true},
	{name: "reason_code", aliases: []string{"reason"}},
}

// headerIndex maps logical column names to their position in the header row.
type headerIndex map[string]int

// resolveHeaders matches the header row against a column spec. Missing
// required columns fail the load; missing optional ones read as empty.
func resolveHeaders(headers []string, spec []column, file string) (headerIndex, error) {
	position := make(map[string]int, len(headers))
	for i, header := range headers {
		position[strings.ToLower(strings.TrimSpace(header))] = i
	}

	index := make(headerIndex, len(spec))
	var missing []string
	for _, col := range spec {
		if i, ok := position[col.name]; ok {
			index[col.name] = i
			continue
		}
		found := false
		for _, alias := range col.aliases {
			if i, ok := position[alias]; ok {
				index[col.name] = i
				found = true
				break
			}
		}
		if !found && col.required {
			missing = append(missing, col.name)
		}
	}

	if len(missing) > 0 {
		return nil, apperrors.ParseError(apperrors.CodeMissingColumn, file, 1,
			strings.Join(missing, ", "), "", nil)
	}
	return index, nil
}

// row is one CSV record addressed by logical column name.
type row struct {
	fields []string
	index  headerIndex
	number int
}

func (r row) get(name string) string {
	i, ok := r.index[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r row) empty() bool {
	for _, field := range r.fields {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// LoadTransactions reads a transactions file, picking the decoder from the
// file extension.
func LoadTransactions(path string) ([]*models.Transaction, *Stats, error) {
	file, err := openRecordsFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	if DetectFormat(path) == FormatJSON {
		records, stats, err := ParseTransactionsJSON(file, path)
		logLoad(path, "transactions", stats, err)
		return records, stats, err
	}
	records, stats, err := ParseTransactionsCSV(file, path)
	logLoad(path, "transactions", stats, err)
	return records, stats, err
}

// LoadSettlements reads a settlements file, picking the decoder from the
// file extension.
func LoadSettlements(path string) ([]*models.Settlement, *Stats, error) {
	file, err := openRecordsFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	if DetectFormat(path) == FormatJSON {
		records, stats, err := ParseSettlementsJSON(file, path)
		logLoad(path, "settlements", stats, err)
		return records, stats, err
	}
	records, stats, err := ParseSettlementsCSV(file, path)
	logLoad(path, "settlements", stats, err)
	return records, stats, err
}

// LoadAdjustments reads an adjustments file, picking the decoder from the
// file extension.
func LoadAdjustments(path string) ([]*models.Adjustment, *Stats, error) {
	file, err := openRecordsFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	if DetectFormat(path) == FormatJSON {
		records, stats, err := ParseAdjustmentsJSON(file, path)
		logLoad(path, "adjustments", stats, err)
		return records, stats, err
	}
	records, stats, err := ParseAdjustmentsCSV(file, path)
	logLoad(path, "adjustments", stats, err)
	return records, stats, err
}

func openRecordsFile(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, apperrors.FileError(apperrors.CodeFilePermission, path, err)
		}
		return nil, apperrors.FileError(apperrors.CodeFileCorrupted, path, err)
	}
	return file, nil
}

func logLoad(path, kind string, stats *Stats, err error) {
	log := logger.GetGlobalLogger().WithComponent("parsers")
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"file": path,
			"kind": kind,
		}).Error("File load failed")
		return
	}

	log.WithFields(logger.Fields{
		"file":     path,
		"kind":     kind,
		"rows":     stats.Rows,
		"loaded":   stats.Loaded,
		"rejected": len(stats.Errors),
	}).Info("File loaded")

	if stats.HasErrors() {
		log.WithField("errors", stats.Summary().Error()).Warn("Some rows were rejected")
	}
}
