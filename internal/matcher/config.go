// Package matcher implements the five-phase settlement and adjustment
// matching pipeline at the core of the reconciliation engine.
//
// Records are matched in strictly ordered phases, each looser than the last:
//  1. Exact transaction-reference matches in the same currency
//  2. Amount within tolerance plus settlement-date window
//  3. Fuzzy reference matches (partial id prefix, merchant order id)
//  4. Cross-currency matches through the USD pivot, always held for review
//  5. Refund and chargeback adjustments against their source transaction
//
// A settlement or adjustment claimed by an earlier phase is invisible to the
// later ones. Scoring is additive from a per-phase base, with bonuses for
// exact amounts and close dates; the auto-match threshold decides whether an
// emitted result lands as matched or pending_review.
//
// Example usage:
//
//	cfg := matcher.DefaultMatchingConfig()
//	engine := matcher.NewEngine(cfg)
//	outcome := engine.Run(captured, all, settlements, adjustments)
package matcher

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"payment-reconciliation-engine/internal/models"
	"payment-reconciliation-engine/internal/timeutil"
)

// MatchingConfig holds the tunable thresholds of the matching pipeline.
// One immutable value is built at startup and threaded through the engine
// and reporter; nothing mutates it mid-run.
//
// Use the factory functions for common scenarios:
//   - DefaultMatchingConfig(): the documented production defaults
//   - StrictMatchingConfig(): tight tolerances for closing the books
//   - RelaxedMatchingConfig(): loose tolerances for exploratory runs
type MatchingConfig struct {
	// AmountTolerancePercent is the relative amount tolerance, in percent,
	// for same-currency matching (phases 2 and 3)
	AmountTolerancePercent float64 `json:"amount_tolerance_percent"`

	// SettlementWindowHours bounds the distance between a settlement date
	// and the transaction timestamp (phases 2 and 4)
	SettlementWindowHours int `json:"settlement_window_hours"`

	// ChargebackWindowDays bounds how long after a transaction a chargeback
	// may still match it
	ChargebackWindowDays int `json:"chargeback_window_days"`

	// RefundWindowDays bounds how long after a transaction a refund may
	// still match it
	RefundWindowDays int `json:"refund_window_days"`

	// MinAutoMatchConfidence separates matched from pending_review, and is
	// the emission threshold for phase 2
	MinAutoMatchConfidence int `json:"min_auto_match_confidence"`

	// FXTolerancePercent is the relative tolerance, in percent, applied
	// after currency conversion in phase 4
	FXTolerancePercent float64 `json:"fx_tolerance_percent"`

	// OrphanThresholdDays is the age beyond which an unmatched record
	// counts as orphaned in the discrepancy summary
	OrphanThresholdDays int `json:"orphan_threshold_days"`
}

// DefaultMatchingConfig returns the documented production defaults.
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		AmountTolerancePercent: 5.0,
		SettlementWindowHours:  72,
		ChargebackWindowDays:   90,
		RefundWindowDays:       30,
		MinAutoMatchConfidence: 80,
		FXTolerancePercent:     10.0,
		OrphanThresholdDays:    7,
	}
}

// StrictMatchingConfig returns a configuration for strict matching.
func StrictMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		AmountTolerancePercent: 1.0,
		SettlementWindowHours:  24,
		ChargebackWindowDays:   60,
		RefundWindowDays:       14,
		MinAutoMatchConfidence: 90,
		FXTolerancePercent:     5.0,
		OrphanThresholdDays:    3,
	}
}

// RelaxedMatchingConfig returns a configuration for relaxed matching.
func RelaxedMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		AmountTolerancePercent: 10.0,
		SettlementWindowHours:  168,
		ChargebackWindowDays:   120,
		RefundWindowDays:       60,
		MinAutoMatchConfidence: 60,
		FXTolerancePercent:     15.0,
		OrphanThresholdDays:    14,
	}
}

// Validate checks if the matching configuration is valid.
func (mc *MatchingConfig) Validate() error {
	if mc.AmountTolerancePercent < 0.0 || mc.AmountTolerancePercent > 100.0 {
		return fmt.Errorf("amount tolerance percent must be between 0.0 and 100.0: %f", mc.AmountTolerancePercent)
	}

	if mc.SettlementWindowHours <= 0 {
		return fmt.Errorf("settlement window hours must be positive: %d", mc.SettlementWindowHours)
	}

	if mc.ChargebackWindowDays <= 0 {
		return fmt.Errorf("chargeback window days must be positive: %d", mc.ChargebackWindowDays)
	}

	if mc.RefundWindowDays <= 0 {
		return fmt.Errorf("refund window days must be positive: %d", mc.RefundWindowDays)
	}

	if mc.MinAutoMatchConfidence < 0 || mc.MinAutoMatchConfidence > 100 {
		return fmt.Errorf("minimum auto-match confidence must be between 0 and 100: %d", mc.MinAutoMatchConfidence)
	}

	if mc.FXTolerancePercent < 0.0 || mc.FXTolerancePercent > 100.0 {
		return fmt.Errorf("fx tolerance percent must be between 0.0 and 100.0: %f", mc.FXTolerancePercent)
	}

	if mc.OrphanThresholdDays < 0 {
		return fmt.Errorf("orphan threshold days cannot be negative: %d", mc.OrphanThresholdDays)
	}

	return nil
}

// Clone creates a copy of the matching configuration.
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}

	copied := *mc
	return &copied
}

// AmountTolerance returns the same-currency tolerance as a decimal percent.
func (mc *MatchingConfig) AmountTolerance() decimal.Decimal {
	return decimal.NewFromFloat(mc.AmountTolerancePercent)
}

// FXTolerance returns the cross-currency tolerance as a decimal percent.
func (mc *MatchingConfig) FXTolerance() decimal.Decimal {
	return decimal.NewFromFloat(mc.FXTolerancePercent)
}

// AdjustmentWindowDays returns the matching window for an adjustment type.
func (mc *MatchingConfig) AdjustmentWindowDays(adjType models.AdjustmentType) int {
	if adjType == models.AdjustmentChargeback {
		return mc.ChargebackWindowDays
	}
	return mc.RefundWindowDays
}

// WithinSettlementWindow reports whether a settlement date, lifted to
// midnight in the transaction's zone, falls within the configured window of
// the transaction timestamp.
func (mc *MatchingConfig) WithinSettlementWindow(settlementDate time.Time, txnTime time.Time) bool {
	lifted := timeutil.LiftDate(settlementDate, txnTime)
	return timeutil.HoursBetween(lifted, txnTime) <= float64(mc.SettlementWindowHours)
}

// String returns a human-readable description of the configuration.
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{AmountTolerance: %.2f%%, SettlementWindow: %dh, ChargebackWindow: %dd, RefundWindow: %dd, MinAutoMatch: %d, FXTolerance: %.2f%%}",
		mc.AmountTolerancePercent, mc.SettlementWindowHours, mc.ChargebackWindowDays, mc.RefundWindowDays, mc.MinAutoMatchConfidence, mc.FXTolerancePercent)
}
