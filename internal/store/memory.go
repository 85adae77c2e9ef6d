package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"payment-reconciliation-engine/internal/models"
	apperrors "payment-reconciliation-engine/pkg/errors"
)

// MemoryStore is a thread-safe in-memory implementation of the Store port.
// Records are held in maps keyed by internal id with secondary indexes on
// external references.
type MemoryStore struct {
	mu sync.RWMutex

	transactions map[string]*models.Transaction
	settlements  map[string]*models.Settlement
	adjustments  map[string]*models.Adjustment
	matches      map[string]*models.MatchResult

	txnByExternal map[string]string
	stlByExternal map[string]string
	adjByExternal map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions:  make(map[string]*models.Transaction),
		settlements:   make(map[string]*models.Settlement),
		adjustments:   make(map[string]*models.Adjustment),
		matches:       make(map[string]*models.MatchResult),
		txnByExternal: make(map[string]string),
		stlByExternal: make(map[string]string),
		adjByExternal: make(map[string]string),
	}
}

// --- Raw record writes ---

func (s *MemoryStore) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	if err := txn.Validate(); err != nil {
		return apperrors.WrapIfNeeded(err, apperrors.CategoryValidation, apperrors.CodeInvalidData, "invalid transaction")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.txnByExternal[txn.TransactionID]; exists {
		return apperrors.DuplicateError("transaction", txn.TransactionID)
	}

	copied := *txn
	s.transactions[copied.ID] = &copied
	s.txnByExternal[copied.TransactionID] = copied.ID
	return nil
}

func (s *MemoryStore) InsertSettlement(ctx context.Context, stl *models.Settlement) error {
	if err := stl.Validate(); err != nil {
		return apperrors.WrapIfNeeded(err, apperrors.CategoryValidation, apperrors.CodeInvalidData, "invalid settlement")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.stlByExternal[stl.SettlementID]; exists {
		return apperrors.DuplicateError("settlement", stl.SettlementID)
	}

	copied := *stl
	s.settlements[copied.ID] = &copied
	s.stlByExternal[copied.SettlementID] = copied.ID
	return nil
}

func (s *MemoryStore) InsertAdjustment(ctx context.Context, adj *models.Adjustment) error {
	if err := adj.Validate(); err != nil {
		return apperrors.WrapIfNeeded(err, apperrors.CategoryValidation, apperrors.CodeInvalidData, "invalid adjustment")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.adjByExternal[adj.AdjustmentID]; exists {
		return apperrors.DuplicateError("adjustment", adj.AdjustmentID)
	}

	copied := *adj
	s.adjustments[copied.ID] = &copied
	s.adjByExternal[copied.AdjustmentID] = copied.ID
	return nil
}

// --- Lookups ---

func (s *MemoryStore) TransactionByID(ctx context.Context, id string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn, ok := s.transactions[id]
	if !ok {
		return nil, apperrors.NotFoundError("transaction", id)
	}
	copied := *txn
	return &copied, nil
}

func (s *MemoryStore) SettlementByID(ctx context.Context, id string) (*models.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stl, ok := s.settlements[id]
	if !ok {
		return nil, apperrors.NotFoundError("settlement", id)
	}
	copied := *stl
	return &copied, nil
}

func (s *MemoryStore) AdjustmentByID(ctx context.Context, id string) (*models.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adj, ok := s.adjustments[id]
	if !ok {
		return nil, apperrors.NotFoundError("adjustment", id)
	}
	copied := *adj
	return &copied, nil
}

func (s *MemoryStore) TransactionByExternalID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.txnByExternal[transactionID]
	if !ok {
		return nil, apperrors.NotFoundError("transaction", transactionID)
	}
	copied := *s.transactions[id]
	return &copied, nil
}

// --- Record loads ---

func (s *MemoryStore) LoadTransactions(ctx context.Context, filter Filter) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Transaction, 0, len(s.transactions))
	for _, txn := range s.transactions {
		if !transactionInRange(txn, filter) {
			continue
		}
		copied := *txn
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *MemoryStore) LoadSettlements(ctx context.Context, filter Filter) ([]*models.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Settlement, 0, len(s.settlements))
	for _, stl := range s.settlements {
		if !dateInRange(stl.SettlementDate, filter) {
			continue
		}
		copied := *stl
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *MemoryStore) LoadAdjustments(ctx context.Context, filter Filter) ([]*models.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Adjustment, 0, len(s.adjustments))
	for _, adj := range s.adjustments {
		if !dateInRange(adj.Date, filter) {
			continue
		}
		copied := *adj
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// --- Match writes ---

func (s *MemoryStore) ClearMatches(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches = make(map[string]*models.MatchResult)
	return nil
}

func (s *MemoryStore) PersistMatches(ctx context.Context, matches []*models.MatchResult) error {
	if err := ValidateMatchSet(matches); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range matches {
		copied := *m
		s.matches[copied.ID] = &copied
	}
	return nil
}

func (s *MemoryStore) ReplaceMatches(ctx context.Context, matches []*models.MatchResult) error {
	if err := ValidateMatchSet(matches); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*models.MatchResult, len(matches))
	for _, m := range matches {
		copied := *m
		next[copied.ID] = &copied
	}
	s.matches = next
	return nil
}

// --- Match reads ---

func (s *MemoryStore) ListMatches(ctx context.Context, filter MatchFilter) ([]*models.MatchResult, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]*models.MatchResult, 0, len(s.matches))
	for _, m := range s.matches {
		if m.ConfidenceScore < filter.MinConfidence {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		if filter.MatchType != "" && m.MatchType != filter.MatchType {
			continue
		}
		copied := *m
		filtered = append(filtered, &copied)
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].ConfidenceScore != filtered[j].ConfidenceScore {
			return filtered[i].ConfidenceScore > filtered[j].ConfidenceScore
		}
		return filtered[i].ID < filtered[j].ID
	})

	total := len(filtered)
	filtered = paginateMatches(filtered, filter.Limit, filter.Offset)
	return filtered, total, nil
}

func (s *MemoryStore) SettlementMatchByTransaction(ctx context.Context, transactionID string) (*models.MatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.matches {
		if m.TransactionID == transactionID && m.SettlementID != "" {
			copied := *m
			return &copied, nil
		}
	}
	return nil, apperrors.NotFoundError("match for transaction", transactionID)
}

// --- Reporting queries ---

func (s *MemoryStore) UnmatchedTransactions(ctx context.Context, filter RecordFilter) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settled := make(map[string]bool, len(s.matches))
	for _, m := range s.matches {
		if m.SettlementID != "" {
			settled[m.TransactionID] = true
		}
	}

	result := make([]*models.Transaction, 0)
	for _, txn := range s.transactions {
		if txn.Status != models.TransactionCaptured {
			continue
		}
		if settled[txn.ID] {
			continue
		}
		if filter.Currency != "" && txn.Currency != filter.Currency {
			continue
		}
		if filter.MinAmount != nil && txn.Amount.LessThan(*filter.MinAmount) {
			continue
		}
		copied := *txn
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *MemoryStore) UnmatchedSettlements(ctx context.Context, filter RecordFilter) ([]*models.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make(map[string]bool, len(s.matches))
	for _, m := range s.matches {
		if m.SettlementID != "" {
			matched[m.SettlementID] = true
		}
	}

	result := make([]*models.Settlement, 0)
	for _, stl := range s.settlements {
		if matched[stl.ID] {
			continue
		}
		if filter.Currency != "" && stl.Currency != filter.Currency {
			continue
		}
		if filter.MinAmount != nil && stl.Amount.LessThan(*filter.MinAmount) {
			continue
		}
		copied := *stl
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *MemoryStore) UnmatchedAdjustments(ctx context.Context, filter RecordFilter) ([]*models.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make(map[string]bool, len(s.matches))
	for _, m := range s.matches {
		if m.AdjustmentID != "" {
			matched[m.AdjustmentID] = true
		}
	}

	result := make([]*models.Adjustment, 0)
	for _, adj := range s.adjustments {
		if matched[adj.ID] {
			continue
		}
		if filter.Currency != "" && adj.Currency != filter.Currency {
			continue
		}
		if filter.MinAmount != nil && adj.Amount.LessThan(*filter.MinAmount) {
			continue
		}
		copied := *adj
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *MemoryStore) AmountMismatches(ctx context.Context, filter RecordFilter) ([]*models.MatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.MatchResult, 0)
	for _, m := range s.matches {
		if m.SettlementID == "" || !m.AmountDifference.IsPositive() {
			continue
		}
		if filter.Currency != "" {
			txn, ok := s.transactions[m.TransactionID]
			if !ok || txn.Currency != filter.Currency {
				continue
			}
		}
		if filter.MinAmount != nil && m.AmountDifference.LessThan(*filter.MinAmount) {
			continue
		}
		copied := *m
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *MemoryStore) Counts(ctx context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Counts{
		Transactions: len(s.transactions),
		Settlements:  len(s.settlements),
		Adjustments:  len(s.adjustments),
		Matches:      len(s.matches),
	}, nil
}

func (s *MemoryStore) LastMatchCreatedAt(ctx context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *time.Time
	for _, m := range s.matches {
		if last == nil || m.CreatedAt.After(*last) {
			t := m.CreatedAt
			last = &t
		}
	}
	return last, nil
}

func paginateMatches(matches []*models.MatchResult, limit, offset int) []*models.MatchResult {
	if offset >= len(matches) {
		return []*models.MatchResult{}
	}
	matches = matches[offset:]
	if limit > 0 && limit < len(matches) {
		matches = matches[:limit]
	}
	return matches
}
