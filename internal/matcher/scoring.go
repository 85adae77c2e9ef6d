package matcher

import (
	"strings"

	"github.com/shopspring/decimal"

	"payment-reconciliation-engine/internal/currency"
	"payment-reconciliation-engine/internal/models"
	"payment-reconciliation-engine/internal/timeutil"
)

// Bonus thresholds are fixed percentages independent of the configured
// tolerance: widening the tolerance admits more candidates but does not
// inflate their scores.
var (
	onePercent   = decimal.NewFromInt(1)
	twoPercent   = decimal.NewFromInt(2)
	fivePercent  = decimal.NewFromInt(5)
	eightPercent = decimal.NewFromInt(8)
)

// Score is the outcome of scoring one candidate pair. Scorers are pure:
// a rejected pair reports ok=false and never an error.
type Score struct {
	Confidence         int
	Reasons            []string
	AmountDifference   decimal.Decimal
	DateDifferenceDays int
}

// ScoreExactReference scores a settlement against a transaction for phase 1.
// The settlement reference must equal the transaction's external id and the
// currencies must agree; the amount is recorded but never disqualifies.
func ScoreExactReference(txn *models.Transaction, stl *models.Settlement) (Score, bool) {
	if !stl.HasReference() || stl.TransactionReference != txn.TransactionID {
		return Score{}, false
	}
	if stl.Currency != txn.Currency {
		return Score{}, false
	}

	return Score{
		Confidence:         100,
		Reasons:            []string{"exact_transaction_id_match", "currency_match"},
		AmountDifference:   stl.Amount.Sub(txn.Amount).Abs(),
		DateDifferenceDays: timeutil.DaysBetween(stl.SettlementDate, txn.Timestamp),
	}, true
}

// ScoreAmountDate scores a settlement against a transaction for phase 2:
// same currency, amount within tolerance, settlement date within the window.
// Base 80 plus amount bonuses (+15 exact, +10 within 1%, +5 within 5%) and
// date bonuses (+5 same day, +3 within one, +1 within two).
func ScoreAmountDate(txn *models.Transaction, stl *models.Settlement, cfg *MatchingConfig) (Score, bool) {
	if stl.Currency != txn.Currency {
		return Score{}, false
	}

	diff := stl.Amount.Sub(txn.Amount).Abs()
	diffPercent, ok := currency.PercentDiff(txn.Amount, stl.Amount)
	if !ok {
		return Score{}, false
	}
	if diffPercent.GreaterThan(cfg.AmountTolerance()) {
		return Score{}, false
	}

	if !cfg.WithinSettlementWindow(stl.SettlementDate, txn.Timestamp) {
		return Score{}, false
	}

	confidence := 80
	switch {
	case diff.IsZero():
		confidence += 15
	case !diffPercent.GreaterThan(onePercent):
		confidence += 10
	case !diffPercent.GreaterThan(fivePercent):
		confidence += 5
	}

	dayDiff := timeutil.DaysBetween(stl.SettlementDate, txn.Timestamp)
	switch {
	case dayDiff == 0:
		confidence += 5
	case dayDiff <= 1:
		confidence += 3
	case dayDiff <= 2:
		confidence += 1
	}

	reasons := []string{"amount_within_tolerance", "date_within_window"}
	if diff.IsPositive() {
		reasons = append(reasons, "amount_variance_detected")
	}

	return Score{
		Confidence:         confidence,
		Reasons:            reasons,
		AmountDifference:   diff,
		DateDifferenceDays: dayDiff,
	}, true
}

// ScoreFuzzyReference scores a settlement whose reference resembles but does
// not equal a transaction id (phase 3). A shared 8-character prefix scores
// 70; equality with the merchant order id lifts the score to at least 75.
// The pair must still pass the same-currency amount tolerance.
func ScoreFuzzyReference(txn *models.Transaction, stl *models.Settlement, cfg *MatchingConfig) (Score, bool) {
	if !stl.HasReference() {
		return Score{}, false
	}
	if stl.Currency != txn.Currency {
		return Score{}, false
	}

	ref := stl.TransactionReference
	confidence := 0
	var reasons []string

	if len(ref) >= 8 && len(txn.TransactionID) >= 8 {
		if strings.Contains(txn.TransactionID, ref[:8]) || strings.Contains(ref, txn.TransactionID[:8]) {
			confidence = 70
			reasons = append(reasons, "partial_id_match")
		}
	}

	if ref == txn.MerchantOrderID {
		if confidence < 75 {
			confidence = 75
		}
		if len(reasons) == 0 {
			reasons = []string{"merchant_order_id_match"}
		} else {
			reasons = append(reasons, "merchant_order_id_match")
		}
	}

	if confidence == 0 {
		return Score{}, false
	}

	diff := stl.Amount.Sub(txn.Amount).Abs()
	diffPercent, ok := currency.PercentDiff(txn.Amount, stl.Amount)
	if !ok {
		return Score{}, false
	}
	if diffPercent.GreaterThan(cfg.AmountTolerance()) {
		return Score{}, false
	}

	switch {
	case diff.IsZero():
		confidence += 15
	case !diffPercent.GreaterThan(twoPercent):
		confidence += 10
	}
	reasons = append(reasons, "amount_within_tolerance")

	return Score{
		Confidence:         confidence,
		Reasons:            reasons,
		AmountDifference:   diff,
		DateDifferenceDays: timeutil.DaysBetween(stl.SettlementDate, txn.Timestamp),
	}, true
}

// ScoreCrossCurrency scores a settlement in a different currency than the
// transaction (phase 4). The settlement amount is converted through the USD
// pivot and compared under the FX tolerance; the amount difference recorded
// is the post-conversion difference in the transaction currency.
func ScoreCrossCurrency(txn *models.Transaction, stl *models.Settlement, cfg *MatchingConfig) (Score, bool) {
	if stl.Currency == txn.Currency {
		return Score{}, false
	}

	converted := currency.Convert(stl.Amount, stl.Currency, txn.Currency)
	diff := converted.Sub(txn.Amount).Abs()
	diffPercent, ok := currency.PercentDiff(txn.Amount, converted)
	if !ok {
		return Score{}, false
	}
	if diffPercent.GreaterThan(cfg.FXTolerance()) {
		return Score{}, false
	}

	if !cfg.WithinSettlementWindow(stl.SettlementDate, txn.Timestamp) {
		return Score{}, false
	}

	confidence := 60
	switch {
	case !diffPercent.GreaterThan(fivePercent):
		confidence += 15
	case !diffPercent.GreaterThan(eightPercent):
		confidence += 10
	}

	if stl.HasReference() && stl.TransactionReference == txn.TransactionID {
		confidence += 20
	}

	return Score{
		Confidence:         confidence,
		Reasons:            []string{"cross_currency_match", "amount_within_fx_tolerance", "needs_review"},
		AmountDifference:   diff,
		DateDifferenceDays: timeutil.DaysBetween(stl.SettlementDate, txn.Timestamp),
	}, true
}

// ScoreAdjustment scores an adjustment against a transaction (phase 5). The
// reference must equal the external id (100) or merchant order id (90);
// currency mismatch costs 20, an adjustment exceeding the transaction amount
// costs 10, and the date must fall inside the per-type window.
func ScoreAdjustment(txn *models.Transaction, adj *models.Adjustment, cfg *MatchingConfig) (Score, bool) {
	if adj.TransactionReference == "" {
		return Score{}, false
	}

	var confidence int
	var reasons []string
	switch adj.TransactionReference {
	case txn.TransactionID:
		confidence = 100
		reasons = append(reasons, "exact_transaction_id_match")
	case txn.MerchantOrderID:
		confidence = 90
		reasons = append(reasons, "merchant_order_id_match")
	default:
		return Score{}, false
	}

	if adj.Currency != txn.Currency {
		confidence -= 20
		reasons = append(reasons, "currency_mismatch")
	}
	if adj.Amount.GreaterThan(txn.Amount) {
		confidence -= 10
		reasons = append(reasons, "adjustment_exceeds_transaction")
	}

	dayDiff := timeutil.DaysBetween(adj.Date, txn.Timestamp)
	if dayDiff > cfg.AdjustmentWindowDays(adj.Type) {
		return Score{}, false
	}
	reasons = append(reasons, "date_within_window")

	return Score{
		Confidence:         confidence,
		Reasons:            reasons,
		AmountDifference:   adj.Amount.Sub(txn.Amount).Abs(),
		DateDifferenceDays: dayDiff,
	}, true
}
