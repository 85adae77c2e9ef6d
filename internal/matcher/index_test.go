package matcher

import (
	"testing"
	"time"

	"payment-reconciliation-engine/internal/models"
)

func TestTransactionIndexLookups(t *testing.T) {
	ts := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	txns := []*models.Transaction{
		makeTxn("txn-01", "txn_001", "order_A", "100.00", "MXN", ts),
		makeTxn("txn-02", "txn_002", "order_A", "200.00", "MXN", ts),
		makeTxn("txn-03", "txn_003", "", "300.00", "MXN", ts),
	}

	idx := NewTransactionIndex(txns)

	if idx.Len() != 3 {
		t.Errorf("len = %d, want 3", idx.Len())
	}
	if txn, ok := idx.ByExternalID("txn_002"); !ok || txn.ID != "txn-02" {
		t.Errorf("ByExternalID(txn_002) = %v, %v", txn, ok)
	}
	if _, ok := idx.ByExternalID("txn_999"); ok {
		t.Error("expected miss for unknown external id")
	}
	if got := idx.ByMerchantOrder("order_A"); len(got) != 2 {
		t.Errorf("ByMerchantOrder(order_A) returned %d transactions, want 2", len(got))
	}
	if got := idx.ByMerchantOrder(""); got != nil {
		t.Errorf("empty merchant order should return nil, got %v", got)
	}
}

func TestTransactionIndexReferenceCandidates(t *testing.T) {
	ts := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	// txn-03's external id doubles as txn-01's merchant order id, so a
	// reference to it reaches both transactions.
	txns := []*models.Transaction{
		makeTxn("txn-03", "shared_ref", "", "300.00", "MXN", ts),
		makeTxn("txn-01", "txn_001", "shared_ref", "100.00", "MXN", ts),
		makeTxn("txn-02", "txn_002", "shared_ref", "200.00", "MXN", ts),
	}

	idx := NewTransactionIndex(txns)

	got := idx.ReferenceCandidates("shared_ref")
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	wantOrder := []string{"txn-01", "txn-02", "txn-03"}
	for i, txn := range got {
		if txn.ID != wantOrder[i] {
			t.Errorf("candidate %d = %s, want %s (ascending id order)", i, txn.ID, wantOrder[i])
		}
	}

	if got := idx.ReferenceCandidates(""); got != nil {
		t.Errorf("empty reference should return nil, got %v", got)
	}
	if got := idx.ReferenceCandidates("nothing"); len(got) != 0 {
		t.Errorf("unknown reference should return no candidates, got %d", len(got))
	}
}

func TestTransactionIndexDeduplicatesCandidates(t *testing.T) {
	ts := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	// A transaction whose external id equals its own merchant order id
	// must appear once.
	txns := []*models.Transaction{
		makeTxn("txn-01", "ref_X", "ref_X", "100.00", "MXN", ts),
	}

	idx := NewTransactionIndex(txns)

	got := idx.ReferenceCandidates("ref_X")
	if len(got) != 1 {
		t.Errorf("expected 1 deduplicated candidate, got %d", len(got))
	}
}
