package parsers

import (
	"encoding/csv"
	"io"

	"payment-reconciliation-engine/internal/models"
	apperrors "payment-reconciliation-engine/pkg/errors"
	"payment-reconciliation-engine/pkg/logger"
)

// forEachRow runs the header handshake and feeds every non-empty data row to
// handle. Unreadable rows are recorded in stats and skipped. Large files get
// interval progress lines through the tracker.
func forEachRow(r io.Reader, file string, spec []column, stats *Stats, handle func(row)) error {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return apperrors.ParseError(apperrors.CodeInvalidFormat, file, 1, "header", "", err).
				WithSuggestion("the file must start with a header row")
		}
		return apperrors.ParseError(apperrors.CodeInvalidFormat, file, 1, "header", "", err)
	}

	index, err := resolveHeaders(headers, spec, file)
	if err != nil {
		return err
	}

	progress := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "load " + file,
	})

	number := 1
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		number++
		if err != nil {
			stats.reject(apperrors.ParseError(apperrors.CodeInvalidFormat, file, number, "row", "", err))
			continue
		}

		current := row{fields: fields, index: index, number: number}
		if current.empty() {
			continue
		}
		stats.Rows++
		progress.Increment()
		handle(current)
	}
	progress.Complete()

	return nil
}

// ParseTransactionsCSV decodes gateway transactions from CSV.
func ParseTransactionsCSV(r io.Reader, file string) ([]*models.Transaction, *Stats, error) {
	stats := &Stats{}
	var records []*models.Transaction

	err := forEachRow(r, file, transactionColumns, stats, func(current row) {
		txn, rowErr := transactionFromRow(current, file)
		if rowErr != nil {
			stats.reject(rowErr)
			return
		}
		records = append(records, txn)
		stats.Loaded++
	})
	if err != nil {
		return nil, stats, err
	}

	return records, stats, nil
}

// ParseSettlementsCSV decodes bank settlements from CSV.
func ParseSettlementsCSV(r io.Reader, file string) ([]*models.Settlement, *Stats, error) {
	stats := &Stats{}
	var records []*models.Settlement

	err := forEachRow(r, file, settlementColumns, stats, func(current row) {
		stl, rowErr := settlementFromRow(current, file)
		if rowErr != nil {
			stats.reject(rowErr)
			return
		}
		records = append(records, stl)
		stats.Loaded++
	})
	if err != nil {
		return nil, stats, err
	}

	return records, stats, nil
}

// ParseAdjustmentsCSV decodes refunds and chargebacks from CSV.
func ParseAdjustmentsCSV(r io.Reader, file string) ([]*models.Adjustment, *Stats, error) {
	stats := &Stats{}
	var records []*models.Adjustment

	err := forEachRow(r, file, adjustmentColumns, stats, func(current row) {
		adj, rowErr := adjustmentFromRow(current, file)
		if rowErr != nil {
			stats.reject(rowErr)
			return
		}
		records = append(records, adj)
		stats.Loaded++
	})
	if err != nil {
		return nil, stats, err
	}

	return records, stats, nil
}

func transactionFromRow(r row, file string) (*models.Transaction, *apperrors.EngineError) {
	externalID := r.get("transaction_id")
	if externalID == "" {
		return nil, apperrors.ParseError(apperrors.CodeInvalidData, file, r.number, "transaction_id", "", nil).
			WithSuggestion("every row needs a transaction id")
	}

	amount, err := models.ParseAmount(r.get("amount"))
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidData, file, r.number, "amount", r.get("amount"), err)
	}

	timestamp, err := models.ParseTimeWithFormats(r.get("timestamp"))
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidData, file, r.number, "timestamp", r.get("timestamp"), err)
	}

	status, err := models.ParseTransactionStatus(r.get("status"))
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidData, file, r.number, "status", r.get("status"), err)
	}

	txn := models.NewTransaction(externalID, amount, r.get("currency"), timestamp, status)
	txn.MerchantOrderID = r.get("merchant_order_id")
	txn.CustomerID = r.get("customer_id")
	txn.Country = r.get("country")

	if err := txn.Validate(); err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidData, file, r.number, "record", externalID, err)
	}
	return txn, nil
}

func settlementFromRow(r row, file string) (*models.Settlement, *apperrors.EngineError) {
	externalID := r.get("settlement_id")
	if externalID == "" {
		return nil, apperrors.ParseError(apperrors.CodeInvalidData, file, r.number, "settlement_id", "", nil).
			WithSuggestion("every row needs a settlement id")
	}

	amount, err := models.ParseAmount(r.get("amount"))
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidData, file, r.number, "amount", r.get("amount"), err)
	}

	date, err := models.ParseCivilDate(r.get("settlement_date"))
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidData, file, r.number, "settlement_date", r.get("settlement_date"), err)
	}

	stl := models.NewSettlement(externalID, amount, r.get("currency"), date)
	stl.TransactionReference = r.get("transaction_reference")
	stl.BankName = r.get("bank_name")

	if value := r.get("fees_deducted"); value != "" {
		fees, err := models.ParseAmount(value)
		if err != nil {
			return nil, apperrors.ParseError(apperrors.CodeInvalidData, file, r.number, "fees_deducted", value, err)
		}
		stl.FeesDeducted = fees
	}

	if value := r.get("gross_amount"); value != "" {
		gross, err := models.ParseAmount(value)
		if err != nil {
			return nil, apperrors.ParseError(apperrors.CodeInvalidData, file, r.number, "gross_amount", value, err)
		}
		stl.GrossAmount = &gross
	}

	if err := stl.Validate(); err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidData, file, r.number, "record", externalID, err)
	}
	return stl, nil
}

func adjustmentFromRow(r row, file string) (*models.Adjustment, *apperrors.EngineError) {
	externalID := r.get("adjustment_id")
	if externalID == "" {
		return nil, apperrors.ParseError(apperrors.CodeInvalidData, file, r.number, "adjustment_id", "", nil).
			WithSuggestion("every row needs an adjustment id")
	}

	amount, err := models.ParseAmount(r.get("amount"))
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidData, file, r.number, "amount", r.get("amount"), err)
	}

	adjType, err := models.ParseAdjustmentType(r.get("type"))
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidData, file, r.number, "type", r.get("type"), err)
	}

	date, err := models.ParseCivilDate(r.get("date"))
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidData, file, r.number, "date", r.get("date"), err)
	}

	adj := models.NewAdjustment(externalID, amount, r.get("currency"), adjType, date)
	adj.TransactionReference = r.get("transaction_reference")
	adj.ReasonCode = r.get("reason_code")

	if err := adj.Validate(); err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidData, file, r.number, "record", externalID, err)
	}
	return adj, nil
}
