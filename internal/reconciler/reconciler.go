// Package reconciler orchestrates one reconciliation run end to end: load
// the records for the window, run the five matching phases, replace the
// stored match set atomically and report aggregate counts.
//
// A run has no partial effect: the previous match set survives any failure
// before the final replace, and the replace itself is atomic in both store
// adapters. Reruns over unchanged records reproduce the same pairs.
package reconciler

import (
	"context"
	"math"
	"time"

	"payment-reconciliation-engine/internal/matcher"
	"payment-reconciliation-engine/internal/models"
	"payment-reconciliation-engine/internal/store"
	"payment-reconciliation-engine/pkg/logger"
)

// RunReport summarizes one reconciliation run. Unmatched counts are
// run-local: records loaded for this run minus the records the run claimed.
type RunReport struct {
	Matched               int   `json:"matched"`
	UnmatchedTransactions int   `json:"unmatched_transactions"`
	UnmatchedSettlements  int   `json:"unmatched_settlements"`
	UnmatchedAdjustments  int   `json:"unmatched_adjustments"`
	AmountMismatches      int   `json:"amount_mismatches"`
	ProcessingTimeMs      int64 `json:"processing_time_ms"`
}

// RunStatus reports the stored reconciliation state: when matches were last
// written, how many raw records exist and the match rate over them.
type RunStatus struct {
	LastRun      *time.Time `json:"last_run"`
	TotalRecords int        `json:"total_records"`
	MatchRate    float64    `json:"match_rate"`
}

// Reconciler drives reconciliation runs against one store.
type Reconciler struct {
	store  store.Store
	engine *matcher.Engine
	logger logger.Logger
}

// New creates a reconciler over the given store. A nil config falls back to
// the documented defaults.
func New(st store.Store, cfg *matcher.MatchingConfig) *Reconciler {
	if cfg == nil {
		cfg = matcher.DefaultMatchingConfig()
	}
	return &Reconciler{
		store:  st,
		engine: matcher.NewEngine(cfg),
		logger: logger.GetGlobalLogger().WithComponent("reconciler"),
	}
}

// Config returns the matching configuration the reconciler runs with.
func (r *Reconciler) Config() *matcher.MatchingConfig {
	return r.engine.Config()
}

// Run executes one reconciliation over the records inside the inclusive
// civil-date window (nil bounds mean unbounded). Captured transactions feed
// the settlement phases; transactions of every status feed the adjustment
// phase. The stored match set is replaced as one atomic step; any store
// failure aborts the run with the previous set intact.
func (r *Reconciler) Run(ctx context.Context, dateFrom, dateTo *time.Time) (*RunReport, error) {
	op := logger.NewOperationLogger("reconciliation_run", r.logger)
	started := time.Now()

	op.Step("load records")
	window := store.Filter{DateFrom: dateFrom, DateTo: dateTo}

	capturedFilter := window
	capturedFilter.Status = models.TransactionCaptured
	captured, err := r.store.LoadTransactions(ctx, capturedFilter)
	if err != nil {
		op.Error(err, "loading captured transactions")
		return nil, err
	}

	all, err := r.store.LoadTransactions(ctx, window)
	if err != nil {
		op.Error(err, "loading transactions")
		return nil, err
	}

	settlements, err := r.store.LoadSettlements(ctx, window)
	if err != nil {
		op.Error(err, "loading settlements")
		return nil, err
	}

	adjustments, err := r.store.LoadAdjustments(ctx, window)
	if err != nil {
		op.Error(err, "loading adjustments")
		return nil, err
	}

	op.Progress("records loaded", int64(len(all)+len(settlements)+len(adjustments)), 0)

	op.Step("run matching phases")
	outcome := r.engine.Run(captured, all, settlements, adjustments)
	for _, phase := range outcome.Phases {
		r.logger.WithFields(logger.Fields{
			"phase":   phase.Phase,
			"name":    phase.Name,
			"matched": phase.Matched,
		}).Debug("matching phase complete")
	}

	op.Step("replace match set")
	if err := r.store.ReplaceMatches(ctx, outcome.Matches); err != nil {
		op.Error(err, "replacing match set")
		return nil, err
	}

	report := &RunReport{
		Matched:               outcome.Stats.Matched,
		UnmatchedTransactions: outcome.Stats.UnmatchedTransactions,
		UnmatchedSettlements:  outcome.Stats.UnmatchedSettlements,
		UnmatchedAdjustments:  outcome.Stats.UnmatchedAdjustments,
		AmountMismatches:      outcome.Stats.AmountMismatches,
		ProcessingTimeMs:      time.Since(started).Milliseconds(),
	}

	op.WithFields(logger.Fields{
		"matched":                report.Matched,
		"unmatched_transactions": report.UnmatchedTransactions,
		"unmatched_settlements":  report.UnmatchedSettlements,
		"unmatched_adjustments":  report.UnmatchedAdjustments,
		"amount_mismatches":      report.AmountMismatches,
	}).Success("reconciliation run complete")

	return report, nil
}

// Status reads the stored reconciliation state. The match rate divides the
// stored match count by the raw record total, floored at one to keep an
// empty store at rate zero.
func (r *Reconciler) Status(ctx context.Context) (*RunStatus, error) {
	lastRun, err := r.store.LastMatchCreatedAt(ctx)
	if err != nil {
		return nil, err
	}

	counts, err := r.store.Counts(ctx)
	if err != nil {
		return nil, err
	}

	total := counts.Total()
	denominator := total
	if denominator < 1 {
		denominator = 1
	}

	return &RunStatus{
		LastRun:      lastRun,
		TotalRecords: total,
		MatchRate:    math.Round(float64(counts.Matches)/float64(denominator)*10000) / 10000,
	}, nil
}
