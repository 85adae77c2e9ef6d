package matcher

import (
	"payment-reconciliation-engine/internal/models"
)

// RunStats summarizes one pipeline run. Unmatched counts are run-local:
// loaded records minus the records claimed during this run. A transaction
// matched only on the adjustment side still counts as unmatched here,
// mirroring the per-role definition used by reporting.
type RunStats struct {
	Matched               int `json:"matched"`
	UnmatchedTransactions int `json:"unmatched_transactions"`
	UnmatchedSettlements  int `json:"unmatched_settlements"`
	UnmatchedAdjustments  int `json:"unmatched_adjustments"`
	AmountMismatches      int `json:"amount_mismatches"`
}

// PhaseStat reports how many results one phase emitted.
type PhaseStat struct {
	Phase   int    `json:"phase"`
	Name    string `json:"name"`
	Matched int    `json:"matched"`
}

// Outcome is the full result of one pipeline run.
type Outcome struct {
	Matches []*models.MatchResult
	Stats   RunStats
	Phases  []PhaseStat
}

// Engine runs the five matching phases over one loaded data set. The engine
// itself is stateless; all exclusion sets live inside a single Run call.
type Engine struct {
	cfg *MatchingConfig
}

// NewEngine creates a matching engine with the given configuration.
func NewEngine(cfg *MatchingConfig) *Engine {
	if cfg == nil {
		cfg = DefaultMatchingConfig()
	}
	return &Engine{cfg: cfg}
}

// Config returns the engine's configuration.
func (e *Engine) Config() *MatchingConfig {
	return e.cfg
}

// Run executes phases 1 through 5 and returns the emitted matches in
// emission order. The captured slice feeds phases 1-4 and the all slice
// feeds phase 5; both must be in ascending internal-id order (as loaded
// from the store) so that ties resolve reproducibly.
func (e *Engine) Run(captured, all []*models.Transaction, settlements []*models.Settlement, adjustments []*models.Adjustment) *Outcome {
	r := &run{
		cfg:            e.cfg,
		captured:       captured,
		capturedIdx:    NewTransactionIndex(captured),
		allIdx:         NewTransactionIndex(all),
		matchedTxns:    make(map[string]bool),
		matchedStls:    make(map[string]bool),
		matchedAdjs:    make(map[string]bool),
		adjustmentTxns: make(map[string]bool),
	}

	phases := []struct {
		name string
		fn   func()
	}{
		{"exact_reference", func() { r.phaseExactReference(settlements) }},
		{"amount_date", func() { r.phaseAmountDate(settlements) }},
		{"fuzzy_reference", func() { r.phaseFuzzyReference(settlements) }},
		{"cross_currency", func() { r.phaseCrossCurrency(settlements) }},
		{"adjustments", func() { r.phaseAdjustments(adjustments) }},
	}

	outcome := &Outcome{}
	for i, phase := range phases {
		before := len(r.results)
		phase.fn()
		outcome.Phases = append(outcome.Phases, PhaseStat{
			Phase:   i + 1,
			Name:    phase.name,
			Matched: len(r.results) - before,
		})
	}

	outcome.Matches = r.results
	outcome.Stats = RunStats{
		Matched:               len(r.results),
		UnmatchedTransactions: len(captured) - len(r.matchedTxns),
		UnmatchedSettlements:  len(settlements) - len(r.matchedStls),
		UnmatchedAdjustments:  len(adjustments) - len(r.matchedAdjs),
		AmountMismatches:      r.amountMismatches,
	}
	return outcome
}

// run carries the state of a single pipeline invocation: the exclusion sets,
// the emitted results and the amount-mismatch counter.
type run struct {
	cfg         *MatchingConfig
	captured    []*models.Transaction
	capturedIdx *TransactionIndex
	allIdx      *TransactionIndex

	matchedTxns map[string]bool
	matchedStls map[string]bool
	matchedAdjs map[string]bool

	// adjustmentTxns tracks transactions claimed on the adjustment side,
	// separate from matchedTxns: an adjustment match does not make its
	// transaction invisible to settlement matching, but each transaction
	// carries at most one adjustment-side result.
	adjustmentTxns map[string]bool

	results          []*models.MatchResult
	amountMismatches int
}

// phaseExactReference matches settlements whose reference equals a captured
// transaction's external id exactly, in the same currency.
func (r *run) phaseExactReference(settlements []*models.Settlement) {
	for _, stl := range settlements {
		if r.matchedStls[stl.ID] || !stl.HasReference() {
			continue
		}

		txn, ok := r.capturedIdx.ByExternalID(stl.TransactionReference)
		if !ok || r.matchedTxns[txn.ID] {
			continue
		}

		score, ok := ScoreExactReference(txn, stl)
		if !ok {
			continue
		}

		r.emitSettlementMatch(txn, stl, score, models.MatchStatusMatched)
	}
}

// phaseAmountDate matches settlements to the best same-currency transaction
// within amount tolerance and the settlement window. Only candidates at or
// above the auto-match threshold are emitted.
func (r *run) phaseAmountDate(settlements []*models.Settlement) {
	for _, stl := range settlements {
		if r.matchedStls[stl.ID] {
			continue
		}

		best, bestScore := r.bestSettlementCandidate(stl, func(txn *models.Transaction) (Score, bool) {
			return ScoreAmountDate(txn, stl, r.cfg)
		})
		if best == nil || bestScore.Confidence < r.cfg.MinAutoMatchConfidence {
			continue
		}

		if bestScore.AmountDifference.IsPositive() {
			r.amountMismatches++
		}
		r.emitSettlementMatch(best, stl, bestScore,
			models.StatusForConfidence(bestScore.Confidence, r.cfg.MinAutoMatchConfidence))
	}
}

// phaseFuzzyReference matches settlements by partial id or merchant order
// id. The best candidate is emitted regardless of the threshold; the
// threshold only decides its status.
func (r *run) phaseFuzzyReference(settlements []*models.Settlement) {
	for _, stl := range settlements {
		if r.matchedStls[stl.ID] || !stl.HasReference() {
			continue
		}

		best, bestScore := r.bestSettlementCandidate(stl, func(txn *models.Transaction) (Score, bool) {
			return ScoreFuzzyReference(txn, stl, r.cfg)
		})
		if best == nil {
			continue
		}

		r.emitSettlementMatch(best, stl, bestScore,
			models.StatusForConfidence(bestScore.Confidence, r.cfg.MinAutoMatchConfidence))
	}
}

// phaseCrossCurrency matches settlements to transactions in a different
// currency through the USD pivot. Emitted results always stay
// pending_review.
func (r *run) phaseCrossCurrency(settlements []*models.Settlement) {
	for _, stl := range settlements {
		if r.matchedStls[stl.ID] {
			continue
		}

		best, bestScore := r.bestSettlementCandidate(stl, func(txn *models.Transaction) (Score, bool) {
			return ScoreCrossCurrency(txn, stl, r.cfg)
		})
		if best == nil || bestScore.Confidence < 60 {
			continue
		}

		r.emitSettlementMatch(best, stl, bestScore, models.MatchStatusPendingReview)
	}
}

// phaseAdjustments matches refunds and chargebacks to transactions of any
// status by reference. The transaction is claimed on the adjustment side
// only, so it can still carry (or already carry) a settlement match.
func (r *run) phaseAdjustments(adjustments []*models.Adjustment) {
	for _, adj := range adjustments {
		if r.matchedAdjs[adj.ID] {
			continue
		}

		var best *models.Transaction
		var bestScore Score
		for _, txn := range r.allIdx.ReferenceCandidates(adj.TransactionReference) {
			if r.adjustmentTxns[txn.ID] {
				continue
			}
			score, ok := ScoreAdjustment(txn, adj, r.cfg)
			if !ok {
				continue
			}
			if score.Confidence > bestScore.Confidence {
				best, bestScore = txn, score
			}
		}
		if best == nil {
			continue
		}

		m := models.NewAdjustmentMatch(best.ID, adj.ID, bestScore.Confidence, bestScore.Reasons,
			bestScore.AmountDifference, bestScore.DateDifferenceDays,
			models.StatusForConfidence(bestScore.Confidence, r.cfg.MinAutoMatchConfidence))
		r.results = append(r.results, m)
		r.matchedAdjs[adj.ID] = true
		r.adjustmentTxns[best.ID] = true
	}
}

// bestSettlementCandidate scans the captured transactions in order and keeps
// the strictly best score, so the earliest candidate wins ties.
func (r *run) bestSettlementCandidate(stl *models.Settlement, score func(*models.Transaction) (Score, bool)) (*models.Transaction, Score) {
	var best *models.Transaction
	var bestScore Score

	for _, txn := range r.captured {
		if r.matchedTxns[txn.ID] {
			continue
		}
		s, ok := score(txn)
		if !ok {
			continue
		}
		if s.Confidence > bestScore.Confidence {
			best, bestScore = txn, s
		}
	}
	return best, bestScore
}

func (r *run) emitSettlementMatch(txn *models.Transaction, stl *models.Settlement, score Score, status models.MatchStatus) {
	m := models.NewSettlementMatch(txn.ID, stl.ID, score.Confidence, score.Reasons,
		score.AmountDifference, score.DateDifferenceDays, status)
	r.results = append(r.results, m)
	r.matchedTxns[txn.ID] = true
	r.matchedStls[stl.ID] = true
}
