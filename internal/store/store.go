// Package store defines the data-access port for the reconciliation engine
// and its two implementations: a thread-safe in-memory store used by tests
// and single-process runs, and a PostgreSQL store for deployments.
//
// Record reads are ordered by ascending internal id so that a reconciliation
// run iterates candidates deterministically. Match writes enforce the
// uniqueness rules of the match table: a settlement or adjustment appears in
// at most one result, and a transaction carries at most one settlement-side
// and one adjustment-side result.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"payment-reconciliation-engine/internal/models"
	apperrors "payment-reconciliation-engine/pkg/errors"
)

// Filter narrows record loads for a reconciliation run. Date bounds are
// inclusive civil dates; Status applies to transactions only.
type Filter struct {
	DateFrom *time.Time
	DateTo   *time.Time
	Status   models.TransactionStatus
}

// RecordFilter narrows reporting queries over raw records.
type RecordFilter struct {
	Currency  string
	MinAmount *decimal.Decimal
}

// MatchFilter narrows match listings.
type MatchFilter struct {
	MinConfidence int
	Status        models.MatchStatus
	MatchType     models.MatchType
	Limit         int
	Offset        int
}

// Counts holds raw record and match totals.
type Counts struct {
	Transactions int `json:"transactions"`
	Settlements  int `json:"settlements"`
	Adjustments  int `json:"adjustments"`
	Matches      int `json:"matches"`
}

// Total returns the combined raw record count.
func (c Counts) Total() int {
	return c.Transactions + c.Settlements + c.Adjustments
}

// Store is the data-access port consumed by ingestion, the reconciliation
// run and reporting. Implementations must be safe for concurrent use.
type Store interface {
	// Raw record writes. Inserts reject reused external ids with a
	// duplicate_record error.
	InsertTransaction(ctx context.Context, txn *models.Transaction) error
	InsertSettlement(ctx context.Context, stl *models.Settlement) error
	InsertAdjustment(ctx context.Context, adj *models.Adjustment) error

	// Lookups by internal id. Missing records return record_not_found.
	TransactionByID(ctx context.Context, id string) (*models.Transaction, error)
	SettlementByID(ctx context.Context, id string) (*models.Settlement, error)
	AdjustmentByID(ctx context.Context, id string) (*models.Adjustment, error)

	// Lookups by external reference.
	TransactionByExternalID(ctx context.Context, transactionID string) (*models.Transaction, error)

	// Record loads for a run, ordered by ascending internal id.
	LoadTransactions(ctx context.Context, filter Filter) ([]*models.Transaction, error)
	LoadSettlements(ctx context.Context, filter Filter) ([]*models.Settlement, error)
	LoadAdjustments(ctx context.Context, filter Filter) ([]*models.Adjustment, error)

	// Match writes. ReplaceMatches performs the clear and persist of a run
	// as one atomic step; a failure leaves the previous match set intact
	// where the backend supports transactions.
	ClearMatches(ctx context.Context) error
	PersistMatches(ctx context.Context, matches []*models.MatchResult) error
	ReplaceMatches(ctx context.Context, matches []*models.MatchResult) error

	// Match reads. ListMatches returns the page plus the unpaginated total.
	ListMatches(ctx context.Context, filter MatchFilter) ([]*models.MatchResult, int, error)
	SettlementMatchByTransaction(ctx context.Context, transactionID string) (*models.MatchResult, error)

	// Reporting queries. Unmatched is defined per role: a transaction with
	// only an adjustment-side match is still settlement-unmatched.
	UnmatchedTransactions(ctx context.Context, filter RecordFilter) ([]*models.Transaction, error)
	UnmatchedSettlements(ctx context.Context, filter RecordFilter) ([]*models.Settlement, error)
	UnmatchedAdjustments(ctx context.Context, filter RecordFilter) ([]*models.Adjustment, error)
	AmountMismatches(ctx context.Context, filter RecordFilter) ([]*models.MatchResult, error)

	Counts(ctx context.Context) (Counts, error)
	LastMatchCreatedAt(ctx context.Context) (*time.Time, error)
}

// ValidateMatchSet checks the uniqueness invariants of a match batch before
// it is written: one result per settlement, one per adjustment, and per
// transaction at most one settlement-side plus one adjustment-side result.
func ValidateMatchSet(matches []*models.MatchResult) error {
	settlementSeen := make(map[string]bool, len(matches))
	adjustmentSeen := make(map[string]bool, len(matches))
	txnSettlementSeen := make(map[string]bool, len(matches))
	txnAdjustmentSeen := make(map[string]bool, len(matches))

	for _, m := range matches {
		if err := m.Validate(); err != nil {
			return apperrors.Wrap(err, apperrors.CategoryStore, apperrors.CodeConstraintViolation,
				"invalid match result in batch")
		}

		if m.SettlementID != "" {
			if settlementSeen[m.SettlementID] {
				return apperrors.StoreError(apperrors.CodeConstraintViolation, "persist matches", nil).
					WithContext("settlement_id", m.SettlementID)
			}
			settlementSeen[m.SettlementID] = true

			if txnSettlementSeen[m.TransactionID] {
				return apperrors.StoreError(apperrors.CodeConstraintViolation, "persist matches", nil).
					WithContext("transaction_id", m.TransactionID)
			}
			txnSettlementSeen[m.TransactionID] = true
		}

		if m.AdjustmentID != "" {
			if adjustmentSeen[m.AdjustmentID] {
				return apperrors.StoreError(apperrors.CodeConstraintViolation, "persist matches", nil).
					WithContext("adjustment_id", m.AdjustmentID)
			}
			adjustmentSeen[m.AdjustmentID] = true

			if txnAdjustmentSeen[m.TransactionID] {
				return apperrors.StoreError(apperrors.CodeConstraintViolation, "persist matches", nil).
					WithContext("transaction_id", m.TransactionID)
			}
			txnAdjustmentSeen[m.TransactionID] = true
		}
	}

	return nil
}

// transactionInRange reports whether a transaction timestamp falls inside
// the inclusive civil-date bounds.
func transactionInRange(txn *models.Transaction, filter Filter) bool {
	if filter.DateFrom != nil && txn.Timestamp.Before(*filter.DateFrom) {
		return false
	}
	if filter.DateTo != nil && !txn.Timestamp.Before(filter.DateTo.AddDate(0, 0, 1)) {
		return false
	}
	if filter.Status != "" && txn.Status != filter.Status {
		return false
	}
	return true
}

// dateInRange reports whether a civil date falls inside the inclusive bounds.
func dateInRange(d time.Time, filter Filter) bool {
	if filter.DateFrom != nil && d.Before(*filter.DateFrom) {
		return false
	}
	if filter.DateTo != nil && d.After(*filter.DateTo) {
		return false
	}
	return true
}
