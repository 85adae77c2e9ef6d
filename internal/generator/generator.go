// Package generator produces deterministic datasets shaped like production
// payment traffic: a month of gateway transactions with bank settlements and
// adjustments that exercise every matching path, plus the leftovers a real
// ledger accumulates. The same seed always yields the same dataset.
//
// Generated records leave the internal id and created_at fields zero; the
// store assigns both at insert time.
package generator

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"payment-reconciliation-engine/internal/currency"
	"payment-reconciliation-engine/internal/models"
	apperrors "payment-reconciliation-engine/pkg/errors"
)

// Config controls the size and span of a generated dataset.
type Config struct {
	Seed         int64
	Transactions int
	StartDate    time.Time
	Days         int
}

// DefaultConfig describes the standard demo dataset: 200 transactions over
// 30 days with settlements for most of them and a tail of adjustments.
func DefaultConfig() *Config {
	return &Config{
		Seed:         42,
		Transactions: 200,
		StartDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Days:         30,
	}
}

// Dataset is one generated batch of records.
type Dataset struct {
	Transactions []*models.Transaction
	Settlements  []*models.Settlement
	Adjustments  []*models.Adjustment
}

type currencyProfile struct {
	country string
	bank    string
	min     float64
	max     float64
}

var profiles = map[string]currencyProfile{
	"MXN": {country: "MX", bank: "BBVA", min: 50, max: 20000},
	"COP": {country: "CO", bank: "Bancolombia", min: 10000, max: 5000000},
	"BRL": {country: "BR", bank: "Itau", min: 20, max: 10000},
	"USD": {country: "US", bank: "Chase", min: 10, max: 5000},
}

// Generate builds a dataset from the configuration. Calling it twice with
// the same configuration yields identical records.
func Generate(cfg *Config) *Dataset {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	dataset := &Dataset{}
	dataset.Transactions = generateTransactions(cfg, rng)

	captured := make([]*models.Transaction, 0, len(dataset.Transactions))
	var failed []*models.Transaction
	for _, txn := range dataset.Transactions {
		switch txn.Status {
		case models.TransactionCaptured:
			captured = append(captured, txn)
		case models.TransactionFailed:
			failed = append(failed, txn)
		}
	}

	dataset.Settlements = generateSettlements(cfg, captured)
	dataset.Adjustments = generateAdjustments(cfg, captured, failed)
	return dataset
}

func generateTransactions(cfg *Config, rng *rand.Rand) []*models.Transaction {
	transactions := make([]*models.Transaction, 0, cfg.Transactions)

	for i := 0; i < cfg.Transactions; i++ {
		code := currencyAt(i)
		profile := profiles[code]

		day := rng.Intn(cfg.Days)
		timestamp := cfg.StartDate.AddDate(0, 0, day).
			Add(time.Duration(9+rng.Intn(9)) * time.Hour).
			Add(time.Duration(rng.Intn(60)) * time.Minute).
			Add(time.Duration(rng.Intn(60)) * time.Second)

		amount := decimal.NewFromFloat(profile.min + rng.Float64()*(profile.max-profile.min)).Round(2)

		txn := &models.Transaction{
			TransactionID: fmt.Sprintf("txn_%05d", i+1),
			Amount:        amount,
			Currency:      code,
			Timestamp:     timestamp,
			Status:        statusAt(i),
			CustomerID:    fmt.Sprintf("cust_%04d", rng.Intn(400)+1),
			Country:       profile.country,
		}
		if i%7 != 6 {
			txn.MerchantOrderID = fmt.Sprintf("order_%05d", i+1)
		}
		transactions = append(transactions, txn)
	}

	return transactions
}

// currencyAt splits volume 35/35/30 across the three settlement markets.
func currencyAt(i int) string {
	switch {
	case i%20 < 7:
		return "MXN"
	case i%20 < 14:
		return "COP"
	default:
		return "BRL"
	}
}

// statusAt yields 90% captured, 7.5% authorized, 2.5% failed.
func statusAt(i int) models.TransactionStatus {
	switch {
	case i%40 < 36:
		return models.TransactionCaptured
	case i%40 < 39:
		return models.TransactionAuthorized
	default:
		return models.TransactionFailed
	}
}

// Settlement shapes are pure functions of the transaction and its position,
// so the bank side needs no randomness of its own.
func generateSettlements(cfg *Config, captured []*models.Transaction) []*models.Settlement {
	orphans := cfg.Transactions / 20
	settled := len(captured) - orphans
	if settled < 0 {
		settled = len(captured)
		orphans = 0
	}

	settlements := make([]*models.Settlement, 0, settled+orphans)

	for j := 0; j < settled; j++ {
		txn := captured[j]
		stl := &models.Settlement{
			SettlementID:         fmt.Sprintf("stl_%05d", j+1),
			Amount:               txn.Amount,
			Currency:             txn.Currency,
			SettlementDate:       civilDate(txn.Timestamp).AddDate(0, 0, 1),
			TransactionReference: txn.TransactionID,
		}

		switch j % 10 {
		case 4:
			// Settles a day later than the usual next-day batch.
			stl.SettlementDate = civilDate(txn.Timestamp).AddDate(0, 0, 2)
		case 5:
			// Bank nets out a small variance the tolerance absorbs.
			stl.Amount = txn.Amount.Mul(decimal.NewFromFloat(0.98)).Round(2)
		case 6:
			// Variance past the tolerance: stays unmatched on the amount side.
			stl.Amount = txn.Amount.Mul(decimal.NewFromFloat(0.92)).Round(2)
		case 7:
			// Reference lost in the bank file.
			stl.TransactionReference = ""
		case 8:
			// Bank quotes the merchant order instead of the gateway id and
			// settles too late for the next-day window.
			stl.SettlementDate = civilDate(txn.Timestamp).AddDate(0, 0, 4)
			if txn.MerchantOrderID != "" {
				stl.TransactionReference = txn.MerchantOrderID
			}
		case 9:
			// Settled in USD by a correspondent bank, reference dropped.
			stl.Currency = "USD"
			stl.Amount = currency.Convert(txn.Amount, txn.Currency, "USD").Round(2)
			stl.TransactionReference = ""
		}

		stl.FeesDeducted = stl.Amount.Mul(decimal.NewFromFloat(0.02)).Round(2)
		stl.BankName = profiles[stl.Currency].bank
		if j%3 == 0 {
			gross := stl.Amount.Add(stl.FeesDeducted)
			if j%50 == 49 {
				gross = gross.Add(decimal.NewFromFloat(0.05))
			}
			stl.GrossAmount = &gross
		}

		settlements = append(settlements, stl)
	}

	for k := 0; k < orphans; k++ {
		code := []string{"MXN", "COP", "BRL"}[k%3]
		amount := decimal.NewFromFloat(777.77 + float64(k)*13.13).Round(2)
		stl := &models.Settlement{
			SettlementID:   fmt.Sprintf("stl_%05d", settled+k+1),
			Amount:         amount,
			Currency:       code,
			SettlementDate: cfg.StartDate.AddDate(0, 0, cfg.Days+2+k%3),
			FeesDeducted:   amount.Mul(decimal.NewFromFloat(0.02)).Round(2),
			BankName:       profiles[code].bank,
		}
		settlements = append(settlements, stl)
	}

	return settlements
}

func generateAdjustments(cfg *Config, captured, failed []*models.Transaction) []*models.Adjustment {
	count := cfg.Transactions / 10
	if len(captured) == 0 {
		return nil
	}

	adjustments := make([]*models.Adjustment, 0, count)
	for m := 0; m < count; m++ {
		txn := captured[(m*17)%len(captured)]
		if m == 6 && len(failed) > 0 {
			txn = failed[0]
		}

		adj := &models.Adjustment{
			AdjustmentID:         fmt.Sprintf("adj_%03d", m+1),
			TransactionReference: txn.TransactionID,
			Amount:               txn.Amount,
			Currency:             txn.Currency,
			Type:                 models.AdjustmentRefund,
			ReasonCode:           "customer_request",
		}

		switch m % 10 {
		case 0, 1, 2:
			adj.Date = civilDate(txn.Timestamp).AddDate(0, 0, 5+m%10)
		case 3:
			// Partial refund.
			adj.Amount = txn.Amount.Mul(decimal.NewFromFloat(0.5)).Round(2)
			adj.Date = civilDate(txn.Timestamp).AddDate(0, 0, 10)
		case 4:
			// Lands past the refund window.
			adj.ReasonCode = "goods_not_received"
			adj.Date = civilDate(txn.Timestamp).AddDate(0, 0, 45)
		case 5:
			// Processor quotes the merchant order.
			if txn.MerchantOrderID != "" {
				adj.TransactionReference = txn.MerchantOrderID
			}
			adj.Date = civilDate(txn.Timestamp).AddDate(0, 0, 7)
		case 6:
			adj.Type = models.AdjustmentChargeback
			adj.ReasonCode = "fraud_suspected"
			adj.Date = civilDate(txn.Timestamp).AddDate(0, 0, 30)
		case 7:
			// Disputed for more than the original capture.
			adj.Type = models.AdjustmentChargeback
			adj.ReasonCode = "fraud_suspected"
			adj.Amount = txn.Amount.Mul(decimal.NewFromFloat(1.1)).Round(2)
			adj.Date = civilDate(txn.Timestamp).AddDate(0, 0, 60)
		case 8:
			// Issuer settles the dispute in USD.
			adj.Type = models.AdjustmentChargeback
			adj.ReasonCode = "fraud_suspected"
			adj.Currency = "USD"
			adj.Amount = currency.Convert(txn.Amount, txn.Currency, "USD").Round(2)
			adj.Date = civilDate(txn.Timestamp).AddDate(0, 0, 20)
		case 9:
			// Too old for the chargeback window.
			adj.Type = models.AdjustmentChargeback
			adj.ReasonCode = "goods_not_received"
			adj.Date = civilDate(txn.Timestamp).AddDate(0, 0, 100)
		}

		adjustments = append(adjustments, adj)
	}

	return adjustments
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Validate checks that the dataset hangs together: unique external ids,
// model-level validity and no references to transactions that do not exist.
func (d *Dataset) Validate() error {
	txnIDs := make(map[string]bool, len(d.Transactions))
	orderIDs := make(map[string]bool, len(d.Transactions))

	for _, txn := range d.Transactions {
		if err := txn.Validate(); err != nil {
			return fmt.Errorf("transaction %s: %w", txn.TransactionID, err)
		}
		if txnIDs[txn.TransactionID] {
			return fmt.Errorf("duplicate transaction id %s", txn.TransactionID)
		}
		txnIDs[txn.TransactionID] = true
		if txn.MerchantOrderID != "" {
			orderIDs[txn.MerchantOrderID] = true
		}
	}

	stlIDs := make(map[string]bool, len(d.Settlements))
	for _, stl := range d.Settlements {
		if err := stl.Validate(); err != nil {
			return fmt.Errorf("settlement %s: %w", stl.SettlementID, err)
		}
		if stlIDs[stl.SettlementID] {
			return fmt.Errorf("duplicate settlement id %s", stl.SettlementID)
		}
		stlIDs[stl.SettlementID] = true
		if ref := stl.TransactionReference; ref != "" && !txnIDs[ref] && !orderIDs[ref] {
			return fmt.Errorf("settlement %s references unknown transaction %q", stl.SettlementID, ref)
		}
	}

	adjIDs := make(map[string]bool, len(d.Adjustments))
	for _, adj := range d.Adjustments {
		if err := adj.Validate(); err != nil {
			return fmt.Errorf("adjustment %s: %w", adj.AdjustmentID, err)
		}
		if adjIDs[adj.AdjustmentID] {
			return fmt.Errorf("duplicate adjustment id %s", adj.AdjustmentID)
		}
		adjIDs[adj.AdjustmentID] = true
		if ref := adj.TransactionReference; ref != "" && !txnIDs[ref] && !orderIDs[ref] {
			return fmt.Errorf("adjustment %s references unknown transaction %q", adj.AdjustmentID, ref)
		}
	}

	return nil
}

// WriteFiles writes the dataset into dir as the three JSON arrays the load
// command accepts: transactions.json, settlements.json and adjustments.json.
func (d *Dataset) WriteFiles(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.FileError(apperrors.CodeFilePermission, dir, err)
	}

	files := []struct {
		name    string
		payload interface{}
	}{
		{"transactions.json", d.Transactions},
		{"settlements.json", d.Settlements},
		{"adjustments.json", d.Adjustments},
	}

	for _, f := range files {
		if err := writeJSONFile(filepath.Join(dir, f.name), f.payload); err != nil {
			return err
		}
	}
	return nil
}

func writeJSONFile(path string, payload interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		if os.IsPermission(err) {
			return apperrors.FileError(apperrors.CodeFilePermission, path, err)
		}
		return apperrors.FileError(apperrors.CodeFileCorrupted, path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		return apperrors.Wrap(err, apperrors.CategoryFile, apperrors.CodeFileCorrupted,
			fmt.Sprintf("failed to write %s", path))
	}
	return nil
}
