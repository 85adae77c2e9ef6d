package matcher

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"payment-reconciliation-engine/internal/models"
)

func makeTxn(id, externalID, merchantOrderID, amount, code string, ts time.Time) *models.Transaction {
	return &models.Transaction{
		ID:              id,
		TransactionID:   externalID,
		MerchantOrderID: merchantOrderID,
		Amount:          decimal.RequireFromString(amount),
		Currency:        code,
		Timestamp:       ts,
		Status:          models.TransactionCaptured,
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

func TestScoreExactReference(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	txn := makeTxn("txn-01", "txn_001", "", "1000.00", "MXN", ts)

	tests := []struct {
		name           string
		stl            *models.Settlement
		wantOK         bool
		wantConfidence int
		wantDiff       string
		wantDays       int
	}{
		{
			name:           "exact id exact amount same day",
			stl:            makeStl("stl-01", "stl_A", "txn_001", "1000.00", "MXN", civil(2024, 1, 15)),
			wantOK:         true,
			wantConfidence: 100,
			wantDiff:       "0",
			wantDays:       0,
		},
		{
			name:           "amount variance does not disqualify",
			stl:            makeStl("stl-02", "stl_B", "txn_001", "1100.00", "MXN", civil(2024, 1, 16)),
			wantOK:         true,
			wantConfidence: 100,
			wantDiff:       "100.00",
			wantDays:       1,
		},
		{
			name:   "currency mismatch",
			stl:    makeStl("stl-03", "stl_C", "txn_001", "1000.00", "USD", civil(2024, 1, 15)),
			wantOK: false,
		},
		{
			name:   "different reference",
			stl:    makeStl("stl-04", "stl_D", "txn_999", "1000.00", "MXN", civil(2024, 1, 15)),
			wantOK: false,
		},
		{
			name:   "missing reference",
			stl:    makeStl("stl-05", "stl_E", "", "1000.00", "MXN", civil(2024, 1, 15)),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, ok := ScoreExactReference(txn, tt.stl)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if score.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %d, want %d", score.Confidence, tt.wantConfidence)
			}
			if !score.AmountDifference.Equal(decimal.RequireFromString(tt.wantDiff)) {
				t.Errorf("amount difference = %s, want %s", score.AmountDifference, tt.wantDiff)
			}
			if score.DateDifferenceDays != tt.wantDays {
				t.Errorf("date difference = %d, want %d", score.DateDifferenceDays, tt.wantDays)
			}
			wantReasons := []string{"exact_transaction_id_match", "currency_match"}
			if !reflect.DeepEqual(score.Reasons, wantReasons) {
				t.Errorf("reasons = %v, want %v", score.Reasons, wantReasons)
			}
		})
	}
}

func TestScoreAmountDate(t *testing.T) {
	cfg := DefaultMatchingConfig()
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		txn            *models.Transaction
		stl            *models.Settlement
		wantOK         bool
		wantConfidence int
		wantDays       int
		wantVariance   bool
	}{
		{
			name:           "exact amount same day",
			txn:            makeTxn("txn-01", "txn_001", "", "1000.00", "MXN", ts),
			stl:            makeStl("stl-01", "stl_A", "", "1000.00", "MXN", civil(2024, 1, 15)),
			wantOK:         true,
			wantConfidence: 100,
			wantDays:       0,
		},
		{
			name:           "three percent variance two civil days out",
			txn:            makeTxn("txn-02", "txn_002", "", "1000.00", "MXN", ts),
			stl:            makeStl("stl-02", "stl_B", "", "970.00", "MXN", civil(2024, 1, 17)),
			wantOK:         true,
			wantConfidence: 86,
			wantDays:       2,
			wantVariance:   true,
		},
		{
			name:           "one percent boundary next day",
			txn:            makeTxn("txn-03", "txn_003", "", "1000.00", "MXN", ts),
			stl:            makeStl("stl-03", "stl_C", "", "1010.00", "MXN", civil(2024, 1, 16)),
			wantOK:         true,
			wantConfidence: 93,
			wantDays:       1,
			wantVariance:   true,
		},
		{
			name:           "five percent boundary same day",
			txn:            makeTxn("txn-04", "txn_004", "", "1000.00", "MXN", ts),
			stl:            makeStl("stl-04", "stl_D", "", "1050.00", "MXN", civil(2024, 1, 15)),
			wantOK:         true,
			wantConfidence: 90,
			wantDays:       0,
			wantVariance:   true,
		},
		{
			name:           "both amounts zero",
			txn:            makeTxn("txn-05", "txn_005", "", "0.00", "MXN", ts),
			stl:            makeStl("stl-05", "stl_E", "", "0.00", "MXN", civil(2024, 1, 15)),
			wantOK:         true,
			wantConfidence: 100,
			wantDays:       0,
		},
		{
			name:   "outside amount tolerance",
			txn:    makeTxn("txn-06", "txn_006", "", "1000.00", "MXN", ts),
			stl:    makeStl("stl-06", "stl_F", "", "1060.00", "MXN", civil(2024, 1, 15)),
			wantOK: false,
		},
		{
			name:   "outside settlement window",
			txn:    makeTxn("txn-07", "txn_007", "", "1000.00", "MXN", ts),
			stl:    makeStl("stl-07", "stl_G", "", "1000.00", "MXN", civil(2024, 1, 19)),
			wantOK: false,
		},
		{
			name:   "currency mismatch",
			txn:    makeTxn("txn-08", "txn_008", "", "1000.00", "MXN", ts),
			stl:    makeStl("stl-08", "stl_H", "", "1000.00", "USD", civil(2024, 1, 15)),
			wantOK: false,
		},
		{
			name:   "zero transaction against positive settlement",
			txn:    makeTxn("txn-09", "txn_009", "", "0.00", "MXN", ts),
			stl:    makeStl("stl-09", "stl_I", "", "10.00", "MXN", civil(2024, 1, 15)),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, ok := ScoreAmountDate(tt.txn, tt.stl, cfg)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if score.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %d, want %d", score.Confidence, tt.wantConfidence)
			}
			if score.DateDifferenceDays != tt.wantDays {
				t.Errorf("date difference = %d, want %d", score.DateDifferenceDays, tt.wantDays)
			}
			hasVariance := false
			for _, r := range score.Reasons {
				if r == "amount_variance_detected" {
					hasVariance = true
				}
			}
			if hasVariance != tt.wantVariance {
				t.Errorf("variance reason = %v, want %v (reasons %v)", hasVariance, tt.wantVariance, score.Reasons)
			}
		})
	}
}

func TestScoreAmountDateWindowBoundary(t *testing.T) {
	cfg := DefaultMatchingConfig()

	// Exactly 72 hours between the lifted settlement date and the
	// transaction timestamp stays inside the window.
	txn := makeTxn("txn-01", "txn_001", "", "100.00", "MXN", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	stl := makeStl("stl-01", "stl_A", "", "100.00", "MXN", civil(2024, 1, 18))

	if _, ok := ScoreAmountDate(txn, stl, cfg); !ok {
		t.Error("expected pair exactly at the window boundary to score")
	}

	stl = makeStl("stl-02", "stl_B", "", "100.00", "MXN", civil(2024, 1, 19))
	if _, ok := ScoreAmountDate(txn, stl, cfg); ok {
		t.Error("expected pair beyond the window boundary to be rejected")
	}
}

func TestScoreFuzzyReference(t *testing.T) {
	cfg := DefaultMatchingConfig()
	ts := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		txn            *models.Transaction
		stl            *models.Settlement
		wantOK         bool
		wantConfidence int
		wantReasons    []string
	}{
		{
			name:           "merchant order id with exact amount",
			txn:            makeTxn("txn-01", "txn_003", "order_X", "500.00", "MXN", ts),
			stl:            makeStl("stl-01", "stl_C", "order_X", "500.00", "MXN", civil(2024, 1, 11)),
			wantOK:         true,
			wantConfidence: 90,
			wantReasons:    []string{"merchant_order_id_match", "amount_within_tolerance"},
		},
		{
			name:           "partial id prefix with exact amount",
			txn:            makeTxn("txn-02", "TXN-2024-001", "", "500.00", "MXN", ts),
			stl:            makeStl("stl-02", "stl_D", "TXN-2024-001-SETTLE", "500.00", "MXN", civil(2024, 1, 11)),
			wantOK:         true,
			wantConfidence: 85,
			wantReasons:    []string{"partial_id_match", "amount_within_tolerance"},
		},
		{
			name:           "partial id and merchant order together",
			txn:            makeTxn("txn-03", "ORDER-7788-TX", "ORDER-7788", "500.00", "MXN", ts),
			stl:            makeStl("stl-03", "stl_E", "ORDER-7788", "510.00", "MXN", civil(2024, 1, 11)),
			wantOK:         true,
			wantConfidence: 85,
			wantReasons:    []string{"partial_id_match", "merchant_order_id_match", "amount_within_tolerance"},
		},
		{
			name:           "three percent variance gets no bonus",
			txn:            makeTxn("txn-04", "txn_004", "order_Y", "500.00", "MXN", ts),
			stl:            makeStl("stl-04", "stl_F", "order_Y", "515.00", "MXN", civil(2024, 1, 11)),
			wantOK:         true,
			wantConfidence: 75,
			wantReasons:    []string{"merchant_order_id_match", "amount_within_tolerance"},
		},
		{
			name:   "short reference never partial-matches",
			txn:    makeTxn("txn-05", "TXN-2024-005", "", "500.00", "MXN", ts),
			stl:    makeStl("stl-05", "stl_G", "TXN-20", "500.00", "MXN", civil(2024, 1, 11)),
			wantOK: false,
		},
		{
			name:   "missing reference",
			txn:    makeTxn("txn-06", "txn_006", "order_Z", "500.00", "MXN", ts),
			stl:    makeStl("stl-06", "stl_H", "", "500.00", "MXN", civil(2024, 1, 11)),
			wantOK: false,
		},
		{
			name:   "currency mismatch",
			txn:    makeTxn("txn-07", "txn_007", "order_W", "500.00", "MXN", ts),
			stl:    makeStl("stl-07", "stl_I", "order_W", "500.00", "USD", civil(2024, 1, 11)),
			wantOK: false,
		},
		{
			name:   "fuzzy reference outside amount tolerance",
			txn:    makeTxn("txn-08", "txn_008", "order_V", "500.00", "MXN", ts),
			stl:    makeStl("stl-08", "stl_J", "order_V", "560.00", "MXN", civil(2024, 1, 11)),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, ok := ScoreFuzzyReference(tt.txn, tt.stl, cfg)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if score.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %d, want %d", score.Confidence, tt.wantConfidence)
			}
			if !reflect.DeepEqual(score.Reasons, tt.wantReasons) {
				t.Errorf("reasons = %v, want %v", score.Reasons, tt.wantReasons)
			}
		})
	}
}

func TestScoreFuzzyReferenceShortTransactionID(t *testing.T) {
	cfg := DefaultMatchingConfig()
	ts := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	// Reference is long enough but the transaction id is not, so the
	// partial rule never fires even though the prefix would contain it.
	txn := makeTxn("txn-01", "txn_9", "", "500.00", "MXN", ts)
	stl := makeStl("stl-01", "stl_A", "txn_9-settled", "500.00", "MXN", civil(2024, 1, 11))

	if _, ok := ScoreFuzzyReference(txn, stl, cfg); ok {
		t.Error("expected short transaction id to be rejected by the partial rule")
	}
}

func TestScoreCrossCurrency(t *testing.T) {
	cfg := DefaultMatchingConfig()
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	t.Run("mxn transaction settled in usd with reference", func(t *testing.T) {
		txn := makeTxn("txn-01", "txn_004", "", "17500.00", "MXN", ts)
		stl := makeStl("stl-01", "stl_D", "txn_004", "1000.00", "USD", civil(2024, 1, 16))

		score, ok := ScoreCrossCurrency(txn, stl, cfg)
		if !ok {
			t.Fatal("expected cross-currency pair to score")
		}
		if score.Confidence != 95 {
			t.Errorf("confidence = %d, want 95", score.Confidence)
		}
		wantReasons := []string{"cross_currency_match", "amount_within_fx_tolerance", "needs_review"}
		if !reflect.DeepEqual(score.Reasons, wantReasons) {
			t.Errorf("reasons = %v, want %v", score.Reasons, wantReasons)
		}
		if got := score.AmountDifference.Round(2).StringFixed(2); got != "258.62" {
			t.Errorf("amount difference = %s, want 258.62", got)
		}
		if score.DateDifferenceDays != 1 {
			t.Errorf("date difference = %d, want 1", score.DateDifferenceDays)
		}
	})

	t.Run("mid band variance without reference", func(t *testing.T) {
		txn := makeTxn("txn-02", "txn_005", "", "1000.00", "MXN", ts)
		stl := makeStl("stl-02", "stl_E", "", "54.00", "USD", civil(2024, 1, 16))

		// 54 USD converts to 931.03 MXN, a 6.9% difference.
		score, ok := ScoreCrossCurrency(txn, stl, cfg)
		if !ok {
			t.Fatal("expected cross-currency pair to score")
		}
		if score.Confidence != 70 {
			t.Errorf("confidence = %d, want 70", score.Confidence)
		}
	})

	t.Run("same currency is rejected", func(t *testing.T) {
		txn := makeTxn("txn-03", "txn_006", "", "1000.00", "MXN", ts)
		stl := makeStl("stl-03", "stl_F", "", "1000.00", "MXN", civil(2024, 1, 16))

		if _, ok := ScoreCrossCurrency(txn, stl, cfg); ok {
			t.Error("expected same-currency pair to be rejected")
		}
	})

	t.Run("outside fx tolerance", func(t *testing.T) {
		txn := makeTxn("txn-04", "txn_007", "", "1000.00", "MXN", ts)
		stl := makeStl("stl-04", "stl_G", "", "80.00", "USD", civil(2024, 1, 16))

		if _, ok := ScoreCrossCurrency(txn, stl, cfg); ok {
			t.Error("expected pair outside fx tolerance to be rejected")
		}
	})

	t.Run("outside settlement window", func(t *testing.T) {
		txn := makeTxn("txn-05", "txn_008", "", "1000.00", "MXN", ts)
		stl := makeStl("stl-05", "stl_H", "", "58.00", "USD", civil(2024, 1, 25))

		if _, ok := ScoreCrossCurrency(txn, stl, cfg); ok {
			t.Error("expected pair outside the window to be rejected")
		}
	})
}

func TestScoreAdjustment(t *testing.T) {
	cfg := DefaultMatchingConfig()
	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	txn := makeTxn("txn-01", "txn_005", "order_5", "200.00", "MXN", ts)

	tests := []struct {
		name           string
		adj            *models.Adjustment
		wantOK         bool
		wantConfidence int
		wantReasons    []string
	}{
		{
			name:           "exact reference refund in window",
			adj:            makeAdj("adj-01", "adj_001", "txn_005", "200.00", "MXN", models.AdjustmentRefund, civil(2024, 1, 20)),
			wantOK:         true,
			wantConfidence: 100,
			wantReasons:    []string{"exact_transaction_id_match", "date_within_window"},
		},
		{
			name:           "merchant order reference",
			adj:            makeAdj("adj-02", "adj_002", "order_5", "200.00", "MXN", models.AdjustmentRefund, civil(2024, 1, 20)),
			wantOK:         true,
			wantConfidence: 90,
			wantReasons:    []string{"merchant_order_id_match", "date_within_window"},
		},
		{
			name:           "currency mismatch penalty",
			adj:            makeAdj("adj-03", "adj_003", "txn_005", "200.00", "USD", models.AdjustmentRefund, civil(2024, 1, 20)),
			wantOK:         true,
			wantConfidence: 80,
			wantReasons:    []string{"exact_transaction_id_match", "currency_mismatch", "date_within_window"},
		},
		{
			name:           "adjustment exceeds transaction penalty",
			adj:            makeAdj("adj-04", "adj_004", "txn_005", "250.00", "MXN", models.AdjustmentRefund, civil(2024, 1, 20)),
			wantOK:         true,
			wantConfidence: 90,
			wantReasons:    []string{"exact_transaction_id_match", "adjustment_exceeds_transaction", "date_within_window"},
		},
		{
			name:           "both penalties on merchant reference",
			adj:            makeAdj("adj-05", "adj_005", "order_5", "250.00", "USD", models.AdjustmentRefund, civil(2024, 1, 20)),
			wantOK:         true,
			wantConfidence: 60,
			wantReasons:    []string{"merchant_order_id_match", "currency_mismatch", "adjustment_exceeds_transaction", "date_within_window"},
		},
		{
			name:   "refund outside thirty day window",
			adj:    makeAdj("adj-06", "adj_006", "txn_005", "200.00", "MXN", models.AdjustmentRefund, civil(2024, 2, 15)),
			wantOK: false,
		},
		{
			name:           "chargeback allows the longer window",
			adj:            makeAdj("adj-07", "adj_007", "txn_005", "200.00", "MXN", models.AdjustmentChargeback, civil(2024, 2, 15)),
			wantOK:         true,
			wantConfidence: 100,
			wantReasons:    []string{"exact_transaction_id_match", "date_within_window"},
		},
		{
			name:           "refund exactly at the window boundary",
			adj:            makeAdj("adj-08", "adj_008", "txn_005", "200.00", "MXN", models.AdjustmentRefund, civil(2024, 1, 31)),
			wantOK:         true,
			wantConfidence: 100,
			wantReasons:    []string{"exact_transaction_id_match", "date_within_window"},
		},
		{
			name:   "reference matches nothing",
			adj:    makeAdj("adj-09", "adj_009", "txn_999", "200.00", "MXN", models.AdjustmentRefund, civil(2024, 1, 20)),
			wantOK: false,
		},
		{
			name:   "missing reference",
			adj:    makeAdj("adj-10", "adj_010", "", "200.00", "MXN", models.AdjustmentRefund, civil(2024, 1, 20)),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, ok := ScoreAdjustment(txn, tt.adj, cfg)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if score.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %d, want %d", score.Confidence, tt.wantConfidence)
			}
			if !reflect.DeepEqual(score.Reasons, tt.wantReasons) {
				t.Errorf("reasons = %v, want %v", score.Reasons, tt.wantReasons)
			}
		})
	}
}
