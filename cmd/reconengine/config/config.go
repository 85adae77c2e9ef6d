// Package config builds component configurations from resolved viper
// settings. Every tunable has a default; flags, an optional config file and
// RECONENGINE_* environment variables override it. Configurations are built
// once at command start and never mutated afterwards.
package config

import (
	"context"
	"strings"

	"github.com/spf13/viper"

	"payment-reconciliation-engine/internal/matcher"
	"payment-reconciliation-engine/internal/store"
	apperrors "payment-reconciliation-engine/pkg/errors"
	"payment-reconciliation-engine/pkg/logger"
)

// Viper keys for the engine settings. Flag names match the keys, so
// --amount-tolerance-percent, RECONENGINE_AMOUNT_TOLERANCE_PERCENT and the
// amount-tolerance-percent config file entry all land on the same setting.
const (
	KeyAmountTolerancePercent = "amount-tolerance-percent"
	KeySettlementWindowHours  = "settlement-window-hours"
	KeyChargebackWindowDays   = "chargeback-window-days"
	KeyRefundWindowDays       = "refund-window-days"
	KeyMinAutoMatchConfidence = "min-auto-match-confidence"
	KeyFXTolerancePercent     = "fx-tolerance-percent"
	KeyOrphanThresholdDays    = "orphan-threshold-days"

	KeyDatabaseURL = "database-url"
	KeyListen      = "listen"
)

// MatchingFlagKeys lists the matching tunables in registration order.
var MatchingFlagKeys = []string{
	KeyAmountTolerancePercent,
	KeySettlementWindowHours,
	KeyChargebackWindowDays,
	KeyRefundWindowDays,
	KeyMinAutoMatchConfidence,
	KeyFXTolerancePercent,
	KeyOrphanThresholdDays,
}

// SetMatchingDefaults seeds viper with the documented matching defaults so
// unset keys resolve to production values.
func SetMatchingDefaults() {
	defaults := matcher.DefaultMatchingConfig()
	viper.SetDefault(KeyAmountTolerancePercent, defaults.AmountTolerancePercent)
	viper.SetDefault(KeySettlementWindowHours, defaults.SettlementWindowHours)
	viper.SetDefault(KeyChargebackWindowDays, defaults.ChargebackWindowDays)
	viper.SetDefault(KeyRefundWindowDays, defaults.RefundWindowDays)
	viper.SetDefault(KeyMinAutoMatchConfidence, defaults.MinAutoMatchConfidence)
	viper.SetDefault(KeyFXTolerancePercent, defaults.FXTolerancePercent)
	viper.SetDefault(KeyOrphanThresholdDays, defaults.OrphanThresholdDays)
}

// BuildMatchingConfig assembles and validates the matching configuration
// from the resolved settings.
func BuildMatchingConfig() (*matcher.MatchingConfig, error) {
	SetMatchingDefaults()

	cfg := &matcher.MatchingConfig{
		AmountTolerancePercent: viper.GetFloat64(KeyAmountTolerancePercent),
		SettlementWindowHours:  viper.GetInt(KeySettlementWindowHours),
		ChargebackWindowDays:   viper.GetInt(KeyChargebackWindowDays),
		RefundWindowDays:       viper.GetInt(KeyRefundWindowDays),
		MinAutoMatchConfidence: viper.GetInt(KeyMinAutoMatchConfidence),
		FXTolerancePercent:     viper.GetFloat64(KeyFXTolerancePercent),
		OrphanThresholdDays:    viper.GetInt(KeyOrphanThresholdDays),
	}

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "matching", err, err)
	}
	return cfg, nil
}

// OpenStore opens the store selected by database-url: the Postgres adapter
// when set, the in-memory adapter otherwise. The Postgres adapter is
// migrated before use. The returned close function is a no-op for the
// memory store.
func OpenStore(ctx context.Context) (store.Store, func() error, error) {
	dsn := viper.GetString(KeyDatabaseURL)
	if dsn == "" {
		return store.NewMemoryStore(), func() error { return nil }, nil
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, KeyDatabaseURL, "blank connection string", nil)
	}

	pg, err := store.OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	migrate := func() error { return pg.Migrate(ctx) }
	if err := logger.TimedOperation("migrate schema", logger.GetGlobalLogger().WithComponent("config"), migrate); err != nil {
		pg.Close()
		return nil, nil, err
	}
	return pg, pg.Close, nil
}
