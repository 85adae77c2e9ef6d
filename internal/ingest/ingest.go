// Package ingest validates and stores incoming records one item at a time.
//
// A batch never fails as a whole: items that fail validation or collide with
// an already-stored external id are reported in the Result while the rest of
// the batch still lands in the store. Only an unreachable store aborts.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"payment-reconciliation-engine/internal/models"
	"payment-reconciliation-engine/internal/store"
	apperrors "payment-reconciliation-engine/pkg/errors"
	"payment-reconciliation-engine/pkg/logger"
)

// Result summarizes one ingestion batch.
type Result struct {
	Ingested int      `json:"ingested"`
	Errors   []string `json:"errors"`
}

func newResult() *Result {
	return &Result{Errors: []string{}}
}

func (r *Result) reject(message string) {
	r.Errors = append(r.Errors, message)
}

// Service ingests gateway, bank and adjustment records into a store.
type Service struct {
	store  store.Store
	logger logger.Logger
}

// NewService creates an ingestion service backed by the given store.
func NewService(st store.Store) *Service {
	return &Service{
		store:  st,
		logger: logger.GetGlobalLogger().WithComponent("ingest"),
	}
}

// IngestTransactions validates and stores a batch of gateway transactions.
func (s *Service) IngestTransactions(ctx context.Context, batch []*models.Transaction) (*Result, error) {
	result := newResult()

	for i, txn := range batch {
		if txn == nil {
			result.reject(fmt.Sprintf("%s: empty record", itemLabel("", i)))
			continue
		}

		prepareRecord(&txn.ID, &txn.Currency, &txn.CreatedAt)

		if err := txn.Validate(); err != nil {
			result.reject(fmt.Sprintf("%s: %v", itemLabel(txn.TransactionID, i), err))
			continue
		}

		if err := s.store.InsertTransaction(ctx, txn); err != nil {
			message, recoverable := insertFailure(txn.TransactionID, itemLabel(txn.TransactionID, i), err)
			if !recoverable {
				return nil, err
			}
			result.reject(message)
			continue
		}

		result.Ingested++
	}

	s.logBatch("transactions", len(batch), result)
	return result, nil
}

// IngestSettlements validates and stores a batch of bank settlements.
func (s *Service) IngestSettlements(ctx context.Context, batch []*models.Settlement) (*Result, error) {
	result := newResult()

	for i, stl := range batch {
		if stl == nil {
			result.reject(fmt.Sprintf("%s: empty record", itemLabel("", i)))
			continue
		}

		prepareRecord(&stl.ID, &stl.Currency, &stl.CreatedAt)

		if err := stl.Validate(); err != nil {
			result.reject(fmt.Sprintf("%s: %v", itemLabel(stl.SettlementID, i), err))
			continue
		}

		if err := s.store.InsertSettlement(ctx, stl); err != nil {
			message, recoverable := insertFailure(stl.SettlementID, itemLabel(stl.SettlementID, i), err)
			if !recoverable {
				return nil, err
			}
			result.reject(message)
			continue
		}

		result.Ingested++
	}

	s.logBatch("settlements", len(batch), result)
	return result, nil
}

// IngestAdjustments validates and stores a batch of refunds and chargebacks.
func (s *Service) IngestAdjustments(ctx context.Context, batch []*models.Adjustment) (*Result, error) {
	result := newResult()

	for i, adj := range batch {
		if adj == nil {
			result.reject(fmt.Sprintf("%s: empty record", itemLabel("", i)))
			continue
		}

		prepareRecord(&adj.ID, &adj.Currency, &adj.CreatedAt)

		if err := adj.Validate(); err != nil {
			result.reject(fmt.Sprintf("%s: %v", itemLabel(adj.AdjustmentID, i), err))
			continue
		}

		if err := s.store.InsertAdjustment(ctx, adj); err != nil {
			message, recoverable := insertFailure(adj.AdjustmentID, itemLabel(adj.AdjustmentID, i), err)
			if !recoverable {
				return nil, err
			}
			result.reject(message)
			continue
		}

		result.Ingested++
	}

	s.logBatch("adjustments", len(batch), result)
	return result, nil
}

// prepareRecord fills the store-assigned fields an external producer leaves
// empty and normalizes the currency code.
func prepareRecord(id *string, currency *string, createdAt *time.Time) {
	if strings.TrimSpace(*id) == "" {
		*id = uuid.NewString()
	}
	*currency = models.NormalizeCurrency(*currency)
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
}

// itemLabel names an item in error messages, falling back to its position
// when the external id is blank.
func itemLabel(externalID string, index int) string {
	if strings.TrimSpace(externalID) != "" {
		return externalID
	}
	return fmt.Sprintf("record %d", index+1)
}

// insertFailure turns a store insert error into a per-item message. The
// second return reports whether the batch can continue: duplicates and
// validation rejections are per-item conditions, anything else means the
// store itself is in trouble.
func insertFailure(externalID, label string, err error) (string, bool) {
	engineErr, ok := apperrors.AsEngineError(err)
	if !ok {
		return "", false
	}

	switch {
	case engineErr.Code == apperrors.CodeDuplicateRecord:
		return fmt.Sprintf("%s already exists", externalID), true
	case engineErr.Category == apperrors.CategoryValidation:
		return fmt.Sprintf("%s: %s", label, engineErr.Message), true
	default:
		return "", false
	}
}

func (s *Service) logBatch(kind string, total int, result *Result) {
	s.logger.WithFields(logger.Fields{
		"kind":     kind,
		"received": total,
		"ingested": result.Ingested,
		"rejected": len(result.Errors),
	}).Info("Batch ingested")
}
