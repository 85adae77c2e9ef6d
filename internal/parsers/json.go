package parsers

import (
	"encoding/json"
	"io"

	"payment-reconciliation-engine/internal/models"
	apperrors "payment-reconciliation-engine/pkg/errors"
)

// The JSON loaders accept the same array shapes the ingest API takes in its
// request body. Field-level validation stays with the ingestion service; a
// JSON load only fails when the document itself does not decode.

// ParseTransactionsJSON decodes a JSON array of gateway transactions.
func ParseTransactionsJSON(r io.Reader, file string) ([]*models.Transaction, *Stats, error) {
	var records []*models.Transaction
	if err := decodeArray(r, file, &records); err != nil {
		return nil, nil, err
	}
	return records, &Stats{Rows: len(records), Loaded: len(records)}, nil
}

// ParseSettlementsJSON decodes a JSON array of bank settlements.
func ParseSettlementsJSON(r io.Reader, file string) ([]*models.Settlement, *Stats, error) {
	var records []*models.Settlement
	if err := decodeArray(r, file, &records); err != nil {
		return nil, nil, err
	}
	return records, &Stats{Rows: len(records), Loaded: len(records)}, nil
}

// ParseAdjustmentsJSON decodes a JSON array of refunds and chargebacks.
func ParseAdjustmentsJSON(r io.Reader, file string) ([]*models.Adjustment, *Stats, error) {
	var records []*models.Adjustment
	if err := decodeArray(r, file, &records); err != nil {
		return nil, nil, err
	}
	return records, &Stats{Rows: len(records), Loaded: len(records)}, nil
}

func decodeArray(r io.Reader, file string, target interface{}) error {
	if err := json.NewDecoder(r).Decode(target); err != nil {
		return apperrors.ParseError(apperrors.CodeInvalidFormat, file, 1, "json", "", err).
			WithSuggestion("the file must contain a JSON array of records")
	}
	return nil
}
