package matcher

import (
	"sort"

	"payment-reconciliation-engine/internal/models"
)

// TransactionIndex provides reference lookups over the transactions of one
// run. The slice order given at construction is preserved by All, so an
// index built from an ascending-id load iterates deterministically.
type TransactionIndex struct {
	ordered         []*models.Transaction
	byExternalID    map[string]*models.Transaction
	byMerchantOrder map[string][]*models.Transaction
}

// NewTransactionIndex builds the reference indexes over the given
// transactions. External ids are unique per store constraints; merchant
// order ids may repeat and keep their slice order.
func NewTransactionIndex(txns []*models.Transaction) *TransactionIndex {
	idx := &TransactionIndex{
		ordered:         txns,
		byExternalID:    make(map[string]*models.Transaction, len(txns)),
		byMerchantOrder: make(map[string][]*models.Transaction),
	}

	for _, txn := range txns {
		if txn.TransactionID != "" {
			idx.byExternalID[txn.TransactionID] = txn
		}
		if txn.MerchantOrderID != "" {
			idx.byMerchantOrder[txn.MerchantOrderID] = append(idx.byMerchantOrder[txn.MerchantOrderID], txn)
		}
	}

	return idx
}

// All returns the indexed transactions in their construction order.
func (idx *TransactionIndex) All() []*models.Transaction {
	return idx.ordered
}

// Len returns the number of indexed transactions.
func (idx *TransactionIndex) Len() int {
	return len(idx.ordered)
}

// ByExternalID returns the transaction carrying the given external id.
func (idx *TransactionIndex) ByExternalID(transactionID string) (*models.Transaction, bool) {
	txn, ok := idx.byExternalID[transactionID]
	return txn, ok
}

// ByMerchantOrder returns the transactions sharing a merchant order id.
func (idx *TransactionIndex) ByMerchantOrder(merchantOrderID string) []*models.Transaction {
	return idx.byMerchantOrder[merchantOrderID]
}

// ReferenceCandidates returns the transactions whose external id or merchant
// order id equals the given reference, in ascending internal-id order. This
// is the candidate set for adjustment matching; scanning it is equivalent to
// scanning all transactions because the phase-5 rules skip everything else.
func (idx *TransactionIndex) ReferenceCandidates(reference string) []*models.Transaction {
	if reference == "" {
		return nil
	}

	seen := make(map[string]bool, 2)
	var candidates []*models.Transaction

	if txn, ok := idx.byExternalID[reference]; ok {
		candidates = append(candidates, txn)
		seen[txn.ID] = true
	}
	for _, txn := range idx.byMerchantOrder[reference] {
		if seen[txn.ID] {
			continue
		}
		candidates = append(candidates, txn)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return candidates
}
