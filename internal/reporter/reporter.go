// Package reporter classifies the leftovers of a reconciliation run into
// actionable discrepancies.
//
// Every unmatched transaction, settlement and adjustment becomes one
// discrepancy entry carrying its age, USD value and a triage priority;
// matched pairs whose amounts still differ become amount_mismatch entries.
// Entries for unmatched transactions and settlements also carry up to three
// suggested counterparts found by a relaxed scorer, so an operator reviewing
// the queue sees the likely fix next to the problem.
//
// The summary aggregates the queue into the counters the operations review
// tracks: unmatched value in USD, per-currency exposure, average settlement
// lag, chargeback rate and orphaned records, plus the counts of anomaly
// observations (fee inconsistencies, duplicate-looking transactions).
package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"payment-reconciliation-engine/internal/currency"
	"payment-reconciliation-engine/internal/matcher"
	"payment-reconciliation-engine/internal/models"
	"payment-reconciliation-engine/internal/store"
	"payment-reconciliation-engine/internal/timeutil"
	apperrors "payment-reconciliation-engine/pkg/errors"
	"payment-reconciliation-engine/pkg/logger"
)

// DiscrepancyType categorizes a discrepancy entry.
type DiscrepancyType string

const (
	TypeUnmatchedTransaction DiscrepancyType = "unmatched_transaction"
	TypeUnmatchedSettlement  DiscrepancyType = "unmatched_settlement"
	TypeUnmatchedAdjustment  DiscrepancyType = "unmatched_adjustment"
	TypeAmountMismatch       DiscrepancyType = "amount_mismatch"
)

// IsValid checks if the discrepancy type is one of the four categories.
func (t DiscrepancyType) IsValid() bool {
	switch t {
	case TypeUnmatchedTransaction, TypeUnmatchedSettlement, TypeUnmatchedAdjustment, TypeAmountMismatch:
		return true
	default:
		return false
	}
}

// Priority is the triage level assigned to a discrepancy.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// IsValid checks if the priority is a known level.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Priority thresholds. Value thresholds are USD-normalized; age thresholds
// are civil days since the record date.
var (
	highValueUSD   = decimal.NewFromInt(1000)
	mediumValueUSD = decimal.NewFromInt(100)
)

const (
	highAgeDays   = 7
	mediumAgeDays = 3
)

// Suggestion scoring. Candidates scoring at or below the floor are dropped;
// at most maxSuggestions survive per entry.
const (
	suggestionFloor = 30
	maxSuggestions  = 3
)

var suggestionTolerancePercent = decimal.NewFromInt(5)

// SuggestedMatch is one candidate counterpart for an unmatched record, found
// by the relaxed scorer. CandidateID is the counterpart's external id.
type SuggestedMatch struct {
	CandidateID string   `json:"candidate_id"`
	Confidence  int      `json:"confidence"`
	Reasons     []string `json:"reasons"`
}

// Discrepancy is one entry in the review queue: an unmatched record or a
// matched pair whose amounts differ. Amounts are reported both in the record
// currency and normalized to USD.
type Discrepancy struct {
	Type             DiscrepancyType  `json:"type"`
	RecordID         string           `json:"record_id"`
	Amount           decimal.Decimal  `json:"amount"`
	Currency         string           `json:"currency"`
	AmountUSD        decimal.Decimal  `json:"amount_usd"`
	RecordDate       time.Time        `json:"record_date"`
	AgeDays          int              `json:"age_days"`
	Priority         Priority         `json:"priority"`
	Description      string           `json:"description"`
	SuggestedMatches []SuggestedMatch `json:"suggested_matches,omitempty"`
}

// MarshalJSON renders the monetary fields with two fractional digits.
func (d *Discrepancy) MarshalJSON() ([]byte, error) {
	type Alias Discrepancy
	return json.Marshal(&struct {
		Amount    string `json:"amount"`
		AmountUSD string `json:"amount_usd"`
		*Alias
	}{
		Amount:    d.Amount.StringFixed(2),
		AmountUSD: d.AmountUSD.StringFixed(2),
		Alias:     (*Alias)(d),
	})
}

// Summary aggregates the discrepancy queue and the anomaly observations.
type Summary struct {
	TotalDiscrepancies     int                        `json:"total_discrepancies"`
	ByType                 map[DiscrepancyType]int    `json:"by_type"`
	ByPriority             map[Priority]int           `json:"by_priority"`
	TotalUnmatchedValueUSD decimal.Decimal            `json:"total_unmatched_value_usd"`
	UnmatchedByCurrency    map[string]decimal.Decimal `json:"unmatched_by_currency"`
	AvgSettlementTimeHours float64                    `json:"avg_settlement_time_hours"`
	ChargebackRate         float64                    `json:"chargeback_rate"`
	OrphanedRecords        int                        `json:"orphaned_records_over_7_days"`
	FeeInconsistencies     int                        `json:"fee_inconsistencies"`
	PossibleDuplicates     int                        `json:"possible_duplicates"`
}

// MarshalJSON renders the monetary fields with two fractional digits.
func (s *Summary) MarshalJSON() ([]byte, error) {
	type Alias Summary
	byCurrency := make(map[string]string, len(s.UnmatchedByCurrency))
	for code, amount := range s.UnmatchedByCurrency {
		byCurrency[code] = amount.StringFixed(2)
	}
	return json.Marshal(&struct {
		TotalUnmatchedValueUSD string            `json:"total_unmatched_value_usd"`
		UnmatchedByCurrency    map[string]string `json:"unmatched_by_currency"`
		*Alias
	}{
		TotalUnmatchedValueUSD: s.TotalUnmatchedValueUSD.StringFixed(2),
		UnmatchedByCurrency:    byCurrency,
		Alias:                  (*Alias)(s),
	})
}

// Anomaly is a data-quality observation over the raw records. Anomalies are
// informational: they never block ingestion or matching.
type Anomaly struct {
	Kind     string `json:"kind"`
	RecordID string `json:"record_id"`
	Note     string `json:"note"`
}

// Anomaly kinds.
const (
	AnomalyFeeInconsistency  = "fee_inconsistency"
	AnomalyPossibleDuplicate = "possible_duplicate"
)

// Settlements whose gross misses net plus fees by more than one cent are
// flagged; smaller gaps are rounding noise.
var feeGapTolerance = decimal.NewFromFloat(0.01)

// Query narrows a discrepancy listing. Zero values mean "no constraint";
// Limit 0 returns the full set.
type Query struct {
	Type      DiscrepancyType
	Currency  string
	MinAmount *decimal.Decimal
	Priority  Priority
	Limit     int
	Offset    int
}

// Validate rejects unknown type and priority values.
func (q Query) Validate() error {
	if q.Type != "" && !q.Type.IsValid() {
		return apperrors.ValidationError(apperrors.CodeInvalidQuery, "type", string(q.Type), nil)
	}
	if q.Priority != "" && !q.Priority.IsValid() {
		return apperrors.ValidationError(apperrors.CodeInvalidQuery, "priority", string(q.Priority), nil)
	}
	if q.Limit < 0 {
		return apperrors.ValidationError(apperrors.CodeInvalidQuery, "limit", q.Limit, nil)
	}
	if q.Offset < 0 {
		return apperrors.ValidationError(apperrors.CodeInvalidQuery, "offset", q.Offset, nil)
	}
	return nil
}

// Report is one page of discrepancies plus the full-queue summary. Total is
// the unpaginated entry count after type/currency/priority filtering.
type Report struct {
	Discrepancies []*Discrepancy `json:"discrepancies"`
	Summary       *Summary       `json:"summary"`
	Total         int            `json:"total"`
}

// Reporter builds discrepancy listings and summaries from the store.
type Reporter struct {
	store  store.Store
	cfg    *matcher.MatchingConfig
	logger logger.Logger
	now    func() time.Time
}

// NewReporter creates a reporter over the given store. A nil config falls
// back to the documented defaults.
func NewReporter(st store.Store, cfg *matcher.MatchingConfig) *Reporter {
	if cfg == nil {
		cfg = matcher.DefaultMatchingConfig()
	}
	return &Reporter{
		store:  st,
		cfg:    cfg,
		logger: logger.GetGlobalLogger().WithComponent("reporter"),
		now:    time.Now,
	}
}

// Discrepancies builds the filtered, prioritized discrepancy listing. Entries
// are ordered by priority, then USD value descending, then record id; the
// summary covers the whole queue regardless of the query filters.
func (r *Reporter) Discrepancies(ctx context.Context, query Query) (*Report, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	entries, err := r.collect(ctx, query, true)
	if err != nil {
		return nil, err
	}

	if query.Priority != "" {
		kept := entries[:0]
		for _, entry := range entries {
			if entry.Priority == query.Priority {
				kept = append(kept, entry)
			}
		}
		entries = kept
	}

	sortDiscrepancies(entries)

	total := len(entries)
	entries = paginate(entries, query.Limit, query.Offset)

	summary, err := r.Summarize(ctx)
	if err != nil {
		return nil, err
	}

	return &Report{
		Discrepancies: entries,
		Summary:       summary,
		Total:         total,
	}, nil
}

// Summarize computes the summary counters over the full discrepancy queue.
func (r *Reporter) Summarize(ctx context.Context) (*Summary, error) {
	entries, err := r.collect(ctx, Query{}, false)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		TotalDiscrepancies:     len(entries),
		ByType:                 make(map[DiscrepancyType]int),
		ByPriority:             make(map[Priority]int),
		TotalUnmatchedValueUSD: decimal.Zero,
		UnmatchedByCurrency:    make(map[string]decimal.Decimal),
	}

	threshold := r.cfg.OrphanThresholdDays
	for _, entry := range entries {
		summary.ByType[entry.Type]++
		summary.ByPriority[entry.Priority]++

		switch entry.Type {
		case TypeUnmatchedTransaction, TypeUnmatchedSettlement:
			summary.TotalUnmatchedValueUSD = summary.TotalUnmatchedValueUSD.Add(entry.AmountUSD)
			summary.UnmatchedByCurrency[entry.Currency] = summary.UnmatchedByCurrency[entry.Currency].Add(entry.Amount)
			if entry.AgeDays > threshold {
				summary.OrphanedRecords++
			}
		case TypeUnmatchedAdjustment:
			if entry.AgeDays > threshold {
				summary.OrphanedRecords++
			}
		}
	}

	if err := r.settlementTiming(ctx, summary); err != nil {
		return nil, err
	}
	if err := r.chargebackRate(ctx, summary); err != nil {
		return nil, err
	}

	anomalies, err := r.Anomalies(ctx)
	if err != nil {
		return nil, err
	}
	for _, anomaly := range anomalies {
		switch anomaly.Kind {
		case AnomalyFeeInconsistency:
			summary.FeeInconsistencies++
		case AnomalyPossibleDuplicate:
			summary.PossibleDuplicates++
		}
	}

	return summary, nil
}

// Anomalies scans the raw records for data-quality observations: settlements
// whose gross amount misses net plus fees by more than a cent, and
// transactions that repeat another's amount, currency and merchant order
// within one hour.
func (r *Reporter) Anomalies(ctx context.Context) ([]Anomaly, error) {
	settlements, err := r.store.LoadSettlements(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}
	transactions, err := r.store.LoadTransactions(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}

	anomalies := make([]Anomaly, 0)

	for _, stl := range settlements {
		gap := stl.FeeInconsistency()
		if gap.GreaterThan(feeGapTolerance) {
			anomalies = append(anomalies, Anomaly{
				Kind:     AnomalyFeeInconsistency,
				RecordID: stl.SettlementID,
				Note: fmt.Sprintf("gross %s does not equal net %s plus fees %s",
					stl.GrossAmount.StringFixed(2), stl.Amount.StringFixed(2), stl.FeesDeducted.StringFixed(2)),
			})
		}
	}

	anomalies = append(anomalies, duplicateLookingTransactions(transactions)...)
	return anomalies, nil
}

// duplicateLookingTransactions flags transactions repeating another's amount,
// currency and merchant order within one hour. Transactions without a
// merchant order id never group.
func duplicateLookingTransactions(transactions []*models.Transaction) []Anomaly {
	groups := make(map[string][]*models.Transaction)
	for _, txn := range transactions {
		if txn.MerchantOrderID == "" {
			continue
		}
		key := txn.Currency + "|" + txn.MerchantOrderID + "|" + txn.Amount.String()
		groups[key] = append(groups[key], txn)
	}

	keys := make([]string, 0, len(groups))
	for key, group := range groups {
		if len(group) > 1 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	anomalies := make([]Anomaly, 0)
	for _, key := range keys {
		group := groups[key]
		sort.Slice(group, func(i, j int) bool {
			if !group[i].Timestamp.Equal(group[j].Timestamp) {
				return group[i].Timestamp.Before(group[j].Timestamp)
			}
			return group[i].TransactionID < group[j].TransactionID
		})
		for i := 1; i < len(group); i++ {
			if timeutil.HoursBetween(group[i-1].Timestamp, group[i].Timestamp) <= 1 {
				anomalies = append(anomalies, Anomaly{
					Kind:     AnomalyPossibleDuplicate,
					RecordID: group[i].TransactionID,
					Note: fmt.Sprintf("same amount, currency and merchant order as %s within one hour",
						group[i-1].TransactionID),
				})
			}
		}
	}
	return anomalies
}

// collect builds discrepancy entries for the categories the query asks for.
// Suggestion scoring runs only when withSuggestions is set; the summary path
// skips it. Candidate pools ignore the currency/amount filters so that a
// suggestion may cross the queried slice.
func (r *Reporter) collect(ctx context.Context, query Query, withSuggestions bool) ([]*Discrepancy, error) {
	recordFilter := store.RecordFilter{Currency: query.Currency, MinAmount: query.MinAmount}
	wantType := func(t DiscrepancyType) bool { return query.Type == "" || query.Type == t }

	var entries []*Discrepancy

	if wantType(TypeUnmatchedTransaction) {
		transactions, err := r.store.UnmatchedTransactions(ctx, recordFilter)
		if err != nil {
			return nil, err
		}
		var candidates []*models.Settlement
		if withSuggestions && len(transactions) > 0 {
			candidates, err = r.store.UnmatchedSettlements(ctx, store.RecordFilter{})
			if err != nil {
				return nil, err
			}
		}
		for _, txn := range transactions {
			entries = append(entries, r.transactionDiscrepancy(txn, candidates))
		}
	}

	if wantType(TypeUnmatchedSettlement) {
		settlements, err := r.store.UnmatchedSettlements(ctx, recordFilter)
		if err != nil {
			return nil, err
		}
		var candidates []*models.Transaction
		if withSuggestions && len(settlements) > 0 {
			candidates, err = r.store.UnmatchedTransactions(ctx, store.RecordFilter{})
			if err != nil {
				return nil, err
			}
		}
		for _, stl := range settlements {
			entries = append(entries, r.settlementDiscrepancy(stl, candidates))
		}
	}

	if wantType(TypeUnmatchedAdjustment) {
		adjustments, err := r.store.UnmatchedAdjustments(ctx, recordFilter)
		if err != nil {
			return nil, err
		}
		for _, adj := range adjustments {
			entries = append(entries, r.adjustmentDiscrepancy(adj))
		}
	}

	if wantType(TypeAmountMismatch) {
		mismatches, err := r.store.AmountMismatches(ctx, recordFilter)
		if err != nil {
			return nil, err
		}
		for _, m := range mismatches {
			entry, err := r.mismatchDiscrepancy(ctx, m)
			if err != nil {
				r.logger.WithError(err).WithField("match_id", m.ID).Warn("skipping unresolvable amount mismatch")
				continue
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

func (r *Reporter) transactionDiscrepancy(txn *models.Transaction, candidates []*models.Settlement) *Discrepancy {
	usd := currency.ToUSD(txn.Amount, txn.Currency)
	age := timeutil.DaysBetween(txn.Timestamp, r.now())

	return &Discrepancy{
		Type:             TypeUnmatchedTransaction,
		RecordID:         txn.TransactionID,
		Amount:           txn.Amount,
		Currency:         txn.Currency,
		AmountUSD:        usd,
		RecordDate:       txn.Timestamp,
		AgeDays:          age,
		Priority:         priorityFor(usd, age),
		Description:      fmt.Sprintf("captured transaction has no settlement after %d days", age),
		SuggestedMatches: suggestionsForTransaction(txn, candidates),
	}
}

func (r *Reporter) settlementDiscrepancy(stl *models.Settlement, candidates []*models.Transaction) *Discrepancy {
	usd := currency.ToUSD(stl.Amount, stl.Currency)
	age := timeutil.DaysBetween(stl.SettlementDate, r.now())

	description := "settlement has no matching transaction"
	if stl.BankName != "" {
		description = fmt.Sprintf("settlement from %s has no matching transaction", stl.BankName)
	}

	return &Discrepancy{
		Type:             TypeUnmatchedSettlement,
		RecordID:         stl.SettlementID,
		Amount:           stl.Amount,
		Currency:         stl.Currency,
		AmountUSD:        usd,
		RecordDate:       stl.SettlementDate,
		AgeDays:          age,
		Priority:         priorityFor(usd, age),
		Description:      description,
		SuggestedMatches: suggestionsForSettlement(stl, candidates),
	}
}

// adjustmentDiscrepancy builds an entry for an adjustment no phase could tie
// to a transaction. Unmatched adjustments are always high priority: each one
// is money leaving without a recorded cause.
func (r *Reporter) adjustmentDiscrepancy(adj *models.Adjustment) *Discrepancy {
	usd := currency.ToUSD(adj.Amount, adj.Currency)
	age := timeutil.DaysBetween(adj.Date, r.now())

	return &Discrepancy{
		Type:        TypeUnmatchedAdjustment,
		RecordID:    adj.AdjustmentID,
		Amount:      adj.Amount,
		Currency:    adj.Currency,
		AmountUSD:   usd,
		RecordDate:  adj.Date,
		AgeDays:     age,
		Priority:    PriorityHigh,
		Description: fmt.Sprintf("%s has no matching transaction", adj.Type),
	}
}

// mismatchDiscrepancy builds an entry for a settlement match whose amounts
// differ. Age is the matched pair's date distance, priority is fixed medium.
func (r *Reporter) mismatchDiscrepancy(ctx context.Context, m *models.MatchResult) (*Discrepancy, error) {
	txn, err := r.store.TransactionByID(ctx, m.TransactionID)
	if err != nil {
		return nil, err
	}
	stl, err := r.store.SettlementByID(ctx, m.SettlementID)
	if err != nil {
		return nil, err
	}

	return &Discrepancy{
		Type:       TypeAmountMismatch,
		RecordID:   txn.TransactionID,
		Amount:     m.AmountDifference,
		Currency:   txn.Currency,
		AmountUSD:  currency.ToUSD(m.AmountDifference, txn.Currency),
		RecordDate: txn.Timestamp,
		AgeDays:    m.DateDifferenceDays,
		Priority:   PriorityMedium,
		Description: fmt.Sprintf("settled amount differs from transaction amount by %s %s (settlement %s)",
			m.AmountDifference.StringFixed(2), txn.Currency, stl.SettlementID),
	}, nil
}

// priorityFor assigns the triage level from USD value and age.
func priorityFor(amountUSD decimal.Decimal, ageDays int) Priority {
	switch {
	case amountUSD.GreaterThan(highValueUSD) || ageDays > highAgeDays:
		return PriorityHigh
	case amountUSD.GreaterThan(mediumValueUSD) || ageDays > mediumAgeDays:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// scoreSuggestion applies the relaxed scorer to a transaction/settlement
// pair. Amount credits require a positive transaction amount; date credits
// are graded at three and seven civil days.
func scoreSuggestion(txn *models.Transaction, stl *models.Settlement) (int, []string) {
	confidence := 0
	var reasons []string

	if txn.Currency == stl.Currency {
		confidence += 20
		reasons = append(reasons, "currency_match")
	}

	if txn.Amount.IsPositive() {
		if txn.Amount.Equal(stl.Amount) {
			confidence += 40
			reasons = append(reasons, "exact_amount_match")
		} else if diff, ok := currency.PercentDiff(txn.Amount, stl.Amount); ok && diff.LessThanOrEqual(suggestionTolerancePercent) {
			confidence += 25
			reasons = append(reasons, "amount_within_tolerance")
		}
	}

	days := timeutil.DaysBetween(txn.Timestamp, stl.SettlementDate)
	if days <= 3 {
		confidence += 20
		reasons = append(reasons, "date_within_72h")
	} else if days <= 7 {
		confidence += 10
		reasons = append(reasons, "date_within_7d")
	}

	if stl.TransactionReference != "" && stl.TransactionReference == txn.TransactionID {
		confidence += 20
		reasons = append(reasons, "id_match")
	}

	if confidence > 100 {
		confidence = 100
	}
	return confidence, reasons
}

func suggestionsForTransaction(txn *models.Transaction, candidates []*models.Settlement) []SuggestedMatch {
	suggestions := make([]SuggestedMatch, 0, len(candidates))
	for _, stl := range candidates {
		confidence, reasons := scoreSuggestion(txn, stl)
		if confidence <= suggestionFloor {
			continue
		}
		suggestions = append(suggestions, SuggestedMatch{
			CandidateID: stl.SettlementID,
			Confidence:  confidence,
			Reasons:     reasons,
		})
	}
	return topSuggestions(suggestions)
}

func suggestionsForSettlement(stl *models.Settlement, candidates []*models.Transaction) []SuggestedMatch {
	suggestions := make([]SuggestedMatch, 0, len(candidates))
	for _, txn := range candidates {
		confidence, reasons := scoreSuggestion(txn, stl)
		if confidence <= suggestionFloor {
			continue
		}
		suggestions = append(suggestions, SuggestedMatch{
			CandidateID: txn.TransactionID,
			Confidence:  confidence,
			Reasons:     reasons,
		})
	}
	return topSuggestions(suggestions)
}

// topSuggestions orders by confidence descending with ascending candidate id
// on ties and keeps the best three.
func topSuggestions(suggestions []SuggestedMatch) []SuggestedMatch {
	if len(suggestions) == 0 {
		return nil
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		return suggestions[i].CandidateID < suggestions[j].CandidateID
	})
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}

// settlementTiming fills avg_settlement_time_hours: the mean day distance of
// auto-matched settlement pairs, in hours.
func (r *Reporter) settlementTiming(ctx context.Context, summary *Summary) error {
	matches, _, err := r.store.ListMatches(ctx, store.MatchFilter{
		Status:    models.MatchStatusMatched,
		MatchType: models.MatchTransactionSettlement,
	})
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return nil
	}

	totalHours := 0
	for _, m := range matches {
		totalHours += m.DateDifferenceDays * 24
	}
	summary.AvgSettlementTimeHours = round2(float64(totalHours) / float64(len(matches)))
	return nil
}

// chargebackRate fills chargeback_rate: chargebacks over total transactions.
func (r *Reporter) chargebackRate(ctx context.Context, summary *Summary) error {
	counts, err := r.store.Counts(ctx)
	if err != nil {
		return err
	}
	if counts.Transactions == 0 {
		return nil
	}

	adjustments, err := r.store.LoadAdjustments(ctx, store.Filter{})
	if err != nil {
		return err
	}
	chargebacks := 0
	for _, adj := range adjustments {
		if adj.Type == models.AdjustmentChargeback {
			chargebacks++
		}
	}
	summary.ChargebackRate = round4(float64(chargebacks) / float64(counts.Transactions))
	return nil
}

func sortDiscrepancies(entries []*Discrepancy) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority.rank() > entries[j].Priority.rank()
		}
		if !entries[i].AmountUSD.Equal(entries[j].AmountUSD) {
			return entries[i].AmountUSD.GreaterThan(entries[j].AmountUSD)
		}
		return entries[i].RecordID < entries[j].RecordID
	})
}

func paginate(entries []*Discrepancy, limit, offset int) []*Discrepancy {
	if offset >= len(entries) {
		return []*Discrepancy{}
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
