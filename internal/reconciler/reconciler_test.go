package reconciler

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"payment-reconciliation-engine/internal/models"
	"payment-reconciliation-engine/internal/store"
	apperrors "payment-reconciliation-engine/pkg/errors"
)

func makeTxn(id, externalID, amount, code string, ts time.Time) *models.Transaction {
	return &models.Transaction{
		ID:            id,
		TransactionID: externalID,
		Amount:        decimal.RequireFromString(amount),
		Currency:      code,
		Timestamp:     ts,
		Status:        models.TransactionCaptured,
	}
}

func makeStl(id, externalID, reference, amount, code string, date time.Time) *models.Settlement {
	return &models.Settlement{
		ID:                   id,
		SettlementID:         externalID,
		Amount:               decimal.RequireFromString(amount),
		Currency:             code,
		SettlementDate:       date,
		TransactionReference: reference,
	}
}

func makeAdj(id, externalID, reference, amount, code string, adjType models.AdjustmentType, date time.Time) *models.Adjustment {
	return &models.Adjustment{
		ID:                   id,
		AdjustmentID:         externalID,
		TransactionReference: reference,
		Amount:               decimal.RequireFromString(amount),
		Currency:             code,
		Type:                 adjType,
		Date:                 date,
	}
}

func civil(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func seedStore(t *testing.T, txns []*models.Transaction, stls []*models.Settlement, adjs []*models.Adjustment) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	ctx := context.Background()

	for _, txn := range txns {
		if err := st.InsertTransaction(ctx, txn); err != nil {
			t.Fatalf("insert transaction %s: %v", txn.TransactionID, err)
		}
	}
	for _, stl := range stls {
		if err := st.InsertSettlement(ctx, stl); err != nil {
			t.Fatalf("insert settlement %s: %v", stl.SettlementID, err)
		}
	}
	for _, adj := range adjs {
		if err := st.InsertAdjustment(ctx, adj); err != nil {
			t.Fatalf("insert adjustment %s: %v", adj.AdjustmentID, err)
		}
	}
	return st
}

// mixedLedgerStore seeds two matchable settlement pairs (one exact, one with
// a 3% variance), one orphan on each side, a matchable chargeback and a
// refund far outside its window.
func mixedLedgerStore(t *testing.T) *store.MemoryStore {
	t.Helper()

	txns := []*models.Transaction{
		makeTxn("txn-01", "txn_001", "1500.00", "MXN", time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)),
		makeTxn("txn-02", "txn_002", "1000.00", "MXN", time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC)),
		makeTxn("txn-03", "txn_003", "800.00", "COP", time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)),
	}
	stls := []*models.Settlement{
		makeStl("stl-01", "stl_001", "txn_001", "1500.00", "MXN", civil(2024, 1, 16)),
		makeStl("stl-02", "stl_002", "", "970.00", "MXN", civil(2024, 1, 16)),
		makeStl("stl-03", "stl_003", "", "50.00", "BRL", civil(2024, 1, 25)),
	}
	adjs := []*models.Adjustment{
		makeAdj("adj-01", "adj_001", "txn_001", "1500.00", "MXN", models.AdjustmentChargeback, civil(2024, 2, 1)),
		makeAdj("adj-02", "adj_002", "txn_003", "800.00", "COP", models.AdjustmentRefund, civil(2024, 3, 15)),
	}
	return seedStore(t, txns, stls, adjs)
}

func TestRunMatchesAndPersists(t *testing.T) {
	st := mixedLedgerStore(t)
	r := New(st, nil)
	ctx := context.Background()

	report, err := r.Run(ctx, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := &RunReport{
		Matched:               3,
		UnmatchedTransactions: 1,
		UnmatchedSettlements:  1,
		UnmatchedAdjustments:  1,
		AmountMismatches:      1,
	}
	if report.Matched != want.Matched {
		t.Errorf("matched = %d, want %d", report.Matched, want.Matched)
	}
	if report.UnmatchedTransactions != want.UnmatchedTransactions {
		t.Errorf("unmatched transactions = %d, want %d", report.UnmatchedTransactions, want.UnmatchedTransactions)
	}
	if report.UnmatchedSettlements != want.UnmatchedSettlements {
		t.Errorf("unmatched settlements = %d, want %d", report.UnmatchedSettlements, want.UnmatchedSettlements)
	}
	if report.UnmatchedAdjustments != want.UnmatchedAdjustments {
		t.Errorf("unmatched adjustments = %d, want %d", report.UnmatchedAdjustments, want.UnmatchedAdjustments)
	}
	if report.AmountMismatches != want.AmountMismatches {
		t.Errorf("amount mismatches = %d, want %d", report.AmountMismatches, want.AmountMismatches)
	}
	if report.ProcessingTimeMs < 0 {
		t.Errorf("processing time = %d, want >= 0", report.ProcessingTimeMs)
	}

	// The match set landed in the store.
	matches, total, err := st.ListMatches(ctx, store.MatchFilter{})
	if err != nil {
		t.Fatalf("ListMatches: %v", err)
	}
	if total != 3 || len(matches) != 3 {
		t.Fatalf("stored matches = %d/%d, want 3/3", len(matches), total)
	}

	// txn_001 carries both a settlement-side and an adjustment-side result.
	m, err := st.SettlementMatchByTransaction(ctx, "txn-01")
	if err != nil {
		t.Fatalf("SettlementMatchByTransaction: %v", err)
	}
	if m.SettlementID != "stl-01" || m.ConfidenceScore != 100 {
		t.Errorf("txn-01 settlement match = %s@%d, want stl-01@100", m.SettlementID, m.ConfidenceScore)
	}

	byCounterpart := make(map[string]*models.MatchResult, len(matches))
	for _, m := range matches {
		if m.SettlementID != "" {
			byCounterpart[m.SettlementID] = m
		} else {
			byCounterpart[m.AdjustmentID] = m
		}
	}
	if m := byCounterpart["adj-01"]; m == nil || m.TransactionID != "txn-01" || m.ConfidenceScore != 100 {
		t.Errorf("chargeback match = %+v, want txn-01@100", m)
	}
	// 3% variance one civil day out: 80 + 5 + 3.
	if m := byCounterpart["stl-02"]; m == nil || m.TransactionID != "txn-02" || m.ConfidenceScore != 88 {
		t.Errorf("variance match = %+v, want txn-02@88", m)
	}
}

func TestRunDateWindow(t *testing.T) {
	txns := []*models.Transaction{
		makeTxn("txn-01", "txn_jan", "100.00", "USD", time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)),
		makeTxn("txn-02", "txn_feb", "200.00", "USD", time.Date(2024, 2, 10, 10, 0, 0, 0, time.UTC)),
	}
	stls := []*models.Settlement{
		makeStl("stl-01", "stl_jan", "txn_jan", "100.00", "USD", civil(2024, 1, 11)),
		makeStl("stl-02", "stl_feb", "txn_feb", "200.00", "USD", civil(2024, 2, 11)),
	}
	st := seedStore(t, txns, stls, nil)
	r := New(st, nil)
	ctx := context.Background()

	from := civil(2024, 1, 1)
	to := civil(2024, 1, 31)
	report, err := r.Run(ctx, &from, &to)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Matched != 1 {
		t.Errorf("matched = %d, want 1", report.Matched)
	}
	if report.UnmatchedTransactions != 0 || report.UnmatchedSettlements != 0 {
		t.Errorf("unmatched = %d/%d, want 0/0 inside the window",
			report.UnmatchedTransactions, report.UnmatchedSettlements)
	}

	_, total, err := st.ListMatches(ctx, store.MatchFilter{})
	if err != nil {
		t.Fatalf("ListMatches: %v", err)
	}
	if total != 1 {
		t.Errorf("stored matches = %d, want 1", total)
	}

	// An unbounded run picks up the February pair as well.
	report, err = r.Run(ctx, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Matched != 2 {
		t.Errorf("matched = %d, want 2", report.Matched)
	}
}

func TestRunRerunIsIdempotent(t *testing.T) {
	st := mixedLedgerStore(t)
	r := New(st, nil)
	ctx := context.Background()

	first, err := r.Run(ctx, nil, nil)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	firstPairs := storedPairs(t, st)

	second, err := r.Run(ctx, nil, nil)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	secondPairs := storedPairs(t, st)

	if first.Matched != second.Matched {
		t.Errorf("matched drifted between runs: %d then %d", first.Matched, second.Matched)
	}
	if len(firstPairs) != len(secondPairs) {
		t.Fatalf("stored pair count drifted: %d then %d", len(firstPairs), len(secondPairs))
	}
	for i := range firstPairs {
		if firstPairs[i] != secondPairs[i] {
			t.Errorf("pair[%d] drifted: %s then %s", i, firstPairs[i], secondPairs[i])
		}
	}
}

// storedPairs flattens the stored match set into sorted, id-free pair
// signatures so reruns can be compared.
func storedPairs(t *testing.T, st store.Store) []string {
	t.Helper()
	matches, _, err := st.ListMatches(context.Background(), store.MatchFilter{})
	if err != nil {
		t.Fatalf("ListMatches: %v", err)
	}

	pairs := make([]string, 0, len(matches))
	for _, m := range matches {
		counterpart := m.SettlementID
		if counterpart == "" {
			counterpart = m.AdjustmentID
		}
		pairs = append(pairs, fmt.Sprintf("%s|%s|%d|%s", m.TransactionID, counterpart, m.ConfidenceScore, m.Status))
	}
	sort.Strings(pairs)
	return pairs
}

type failingStore struct {
	store.Store
	failReplace bool
}

func (f *failingStore) ReplaceMatches(ctx context.Context, matches []*models.MatchResult) error {
	if f.failReplace {
		return apperrors.StoreError(apperrors.CodeStoreUnavailable, "replace matches", nil)
	}
	return f.Store.ReplaceMatches(ctx, matches)
}

func TestRunReplaceFailureKeepsPreviousMatches(t *testing.T) {
	st := mixedLedgerStore(t)
	wrapped := &failingStore{Store: st}
	r := New(wrapped, nil)
	ctx := context.Background()

	if _, err := r.Run(ctx, nil, nil); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	before := storedPairs(t, st)

	wrapped.failReplace = true
	if _, err := r.Run(ctx, nil, nil); err == nil {
		t.Fatal("expected the second run to fail")
	}

	after := storedPairs(t, st)
	if len(before) != len(after) {
		t.Fatalf("match set changed on a failed run: %d then %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("pair[%d] changed on a failed run: %s then %s", i, before[i], after[i])
		}
	}
}

func TestRunAdjustmentMatchesAllStatuses(t *testing.T) {
	failed := makeTxn("txn-01", "txn_001", "500.00", "MXN", time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
	failed.Status = models.TransactionFailed

	adjs := []*models.Adjustment{
		makeAdj("adj-01", "adj_001", "txn_001", "500.00", "MXN", models.AdjustmentChargeback, civil(2024, 1, 20)),
	}
	st := seedStore(t, []*models.Transaction{failed}, nil, adjs)
	r := New(st, nil)

	report, err := r.Run(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Matched != 1 {
		t.Errorf("matched = %d, want 1", report.Matched)
	}
	// No captured transactions were loaded, so none count as unmatched.
	if report.UnmatchedTransactions != 0 {
		t.Errorf("unmatched transactions = %d, want 0", report.UnmatchedTransactions)
	}
	if report.UnmatchedAdjustments != 0 {
		t.Errorf("unmatched adjustments = %d, want 0", report.UnmatchedAdjustments)
	}
}

func TestStatus(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		r := New(store.NewMemoryStore(), nil)

		status, err := r.Status(context.Background())
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if status.LastRun != nil {
			t.Errorf("last run = %v, want nil", status.LastRun)
		}
		if status.TotalRecords != 0 {
			t.Errorf("total records = %d, want 0", status.TotalRecords)
		}
		if status.MatchRate != 0 {
			t.Errorf("match rate = %v, want 0", status.MatchRate)
		}
	})

	t.Run("after a run", func(t *testing.T) {
		st := mixedLedgerStore(t)
		r := New(st, nil)
		ctx := context.Background()

		if _, err := r.Run(ctx, nil, nil); err != nil {
			t.Fatalf("Run: %v", err)
		}

		status, err := r.Status(ctx)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if status.LastRun == nil {
			t.Fatal("last run is nil after a run")
		}
		if status.TotalRecords != 8 {
			t.Errorf("total records = %d, want 8", status.TotalRecords)
		}
		// 3 matches over 8 records.
		if status.MatchRate != 0.375 {
			t.Errorf("match rate = %v, want 0.375", status.MatchRate)
		}
	})
}
