package matcher

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"payment-reconciliation-engine/internal/models"
)

func TestDefaultMatchingConfig(t *testing.T) {
	cfg := DefaultMatchingConfig()

	if cfg.AmountTolerancePercent != 5.0 {
		t.Errorf("amount tolerance = %f, want 5.0", cfg.AmountTolerancePercent)
	}
	if cfg.SettlementWindowHours != 72 {
		t.Errorf("settlement window = %d, want 72", cfg.SettlementWindowHours)
	}
	if cfg.ChargebackWindowDays != 90 {
		t.Errorf("chargeback window = %d, want 90", cfg.ChargebackWindowDays)
	}
	if cfg.RefundWindowDays != 30 {
		t.Errorf("refund window = %d, want 30", cfg.RefundWindowDays)
	}
	if cfg.MinAutoMatchConfidence != 80 {
		t.Errorf("min auto-match confidence = %d, want 80", cfg.MinAutoMatchConfidence)
	}
	if cfg.FXTolerancePercent != 10.0 {
		t.Errorf("fx tolerance = %f, want 10.0", cfg.FXTolerancePercent)
	}
	if cfg.OrphanThresholdDays != 7 {
		t.Errorf("orphan threshold = %d, want 7", cfg.OrphanThresholdDays)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestMatchingConfigFactories(t *testing.T) {
	strict := StrictMatchingConfig()
	relaxed := RelaxedMatchingConfig()

	if err := strict.Validate(); err != nil {
		t.Errorf("strict config should validate, got %v", err)
	}
	if err := relaxed.Validate(); err != nil {
		t.Errorf("relaxed config should validate, got %v", err)
	}
	if strict.AmountTolerancePercent >= relaxed.AmountTolerancePercent {
		t.Error("strict amount tolerance should be tighter than relaxed")
	}
	if strict.SettlementWindowHours >= relaxed.SettlementWindowHours {
		t.Error("strict settlement window should be tighter than relaxed")
	}
	if strict.MinAutoMatchConfidence <= relaxed.MinAutoMatchConfidence {
		t.Error("strict auto-match threshold should be higher than relaxed")
	}
}

func TestMatchingConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MatchingConfig)
		wantErr bool
	}{
		{"valid defaults", func(cfg *MatchingConfig) {}, false},
		{"negative amount tolerance", func(cfg *MatchingConfig) { cfg.AmountTolerancePercent = -1.0 }, true},
		{"amount tolerance over hundred", func(cfg *MatchingConfig) { cfg.AmountTolerancePercent = 150.0 }, true},
		{"zero settlement window", func(cfg *MatchingConfig) { cfg.SettlementWindowHours = 0 }, true},
		{"zero chargeback window", func(cfg *MatchingConfig) { cfg.ChargebackWindowDays = 0 }, true},
		{"negative refund window", func(cfg *MatchingConfig) { cfg.RefundWindowDays = -5 }, true},
		{"confidence below range", func(cfg *MatchingConfig) { cfg.MinAutoMatchConfidence = -1 }, true},
		{"confidence above range", func(cfg *MatchingConfig) { cfg.MinAutoMatchConfidence = 101 }, true},
		{"negative fx tolerance", func(cfg *MatchingConfig) { cfg.FXTolerancePercent = -0.5 }, true},
		{"negative orphan threshold", func(cfg *MatchingConfig) { cfg.OrphanThresholdDays = -1 }, true},
		{"zero orphan threshold allowed", func(cfg *MatchingConfig) { cfg.OrphanThresholdDays = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMatchingConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMatchingConfigClone(t *testing.T) {
	cfg := DefaultMatchingConfig()
	clone := cfg.Clone()

	clone.AmountTolerancePercent = 1.0
	clone.MinAutoMatchConfidence = 95

	if cfg.AmountTolerancePercent != 5.0 {
		t.Error("mutating the clone changed the original tolerance")
	}
	if cfg.MinAutoMatchConfidence != 80 {
		t.Error("mutating the clone changed the original threshold")
	}

	var nilCfg *MatchingConfig
	if nilCfg.Clone() != nil {
		t.Error("cloning nil should return nil")
	}
}

func TestMatchingConfigTolerances(t *testing.T) {
	cfg := DefaultMatchingConfig()

	if !cfg.AmountTolerance().Equal(decimal.NewFromFloat(5.0)) {
		t.Errorf("amount tolerance = %s, want 5", cfg.AmountTolerance())
	}
	if !cfg.FXTolerance().Equal(decimal.NewFromFloat(10.0)) {
		t.Errorf("fx tolerance = %s, want 10", cfg.FXTolerance())
	}
}

func TestAdjustmentWindowDays(t *testing.T) {
	cfg := DefaultMatchingConfig()

	if got := cfg.AdjustmentWindowDays(models.AdjustmentChargeback); got != 90 {
		t.Errorf("chargeback window = %d, want 90", got)
	}
	if got := cfg.AdjustmentWindowDays(models.AdjustmentRefund); got != 30 {
		t.Errorf("refund window = %d, want 30", got)
	}
}

func TestWithinSettlementWindow(t *testing.T) {
	cfg := DefaultMatchingConfig()

	txn := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	if !cfg.WithinSettlementWindow(civil(2024, 1, 16), txn) {
		t.Error("next-day settlement should be inside the window")
	}
	if cfg.WithinSettlementWindow(civil(2024, 1, 19), txn) {
		t.Error("four-days-later settlement should be outside the window")
	}

	// Exactly 72 hours stays inside.
	midnight := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if !cfg.WithinSettlementWindow(civil(2024, 1, 18), midnight) {
		t.Error("settlement exactly at the window boundary should be inside")
	}

	// The settlement date is lifted into the transaction's zone. At
	// 23:00 -06:00 the lifted midnight is 73 hours away even though the
	// same comparison in UTC would come out to 67.
	zoned := time.Date(2024, 1, 15, 23, 0, 0, 0, time.FixedZone("CST", -6*3600))
	if cfg.WithinSettlementWindow(civil(2024, 1, 19), zoned) {
		t.Error("window should be measured in the transaction's zone")
	}
}

func TestMatchingConfigString(t *testing.T) {
	s := DefaultMatchingConfig().String()

	if !strings.Contains(s, "72h") {
		t.Errorf("expected window in string form, got %s", s)
	}
	if !strings.Contains(s, "5.00%") {
		t.Errorf("expected tolerance in string form, got %s", s)
	}
}
