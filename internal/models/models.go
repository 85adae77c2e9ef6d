package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus represents the lifecycle state of a payment transaction
type TransactionStatus string

const (
	// TransactionAuthorized means the payment was approved but not yet captured
	TransactionAuthorized TransactionStatus = "authorized"
	// TransactionCaptured means the funds movement was confirmed
	TransactionCaptured TransactionStatus = "captured"
	// TransactionFailed means the payment did not complete
	TransactionFailed TransactionStatus = "failed"
)

// String returns the string representation of TransactionStatus
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid checks if the transaction status is valid
func (s TransactionStatus) IsValid() bool {
	return s == TransactionAuthorized || s == TransactionCaptured || s == TransactionFailed
}

// AdjustmentType distinguishes refunds from chargebacks
type AdjustmentType string

const (
	AdjustmentRefund     AdjustmentType = "refund"
	AdjustmentChargeback AdjustmentType = "chargeback"
)

// String returns the string representation of AdjustmentType
func (t AdjustmentType) String() string {
	return string(t)
}

// IsValid checks if the adjustment type is valid
func (t AdjustmentType) IsValid() bool {
	return t == AdjustmentRefund || t == AdjustmentChargeback
}

// MatchType identifies which counterpart a match result links to a transaction
type MatchType string

const (
	MatchTransactionSettlement MatchType = "transaction_settlement"
	MatchTransactionAdjustment MatchType = "transaction_adjustment"
)

// String returns the string representation of MatchType
func (t MatchType) String() string {
	return string(t)
}

// IsValid checks if the match type is valid
func (t MatchType) IsValid() bool {
	return t == MatchTransactionSettlement || t == MatchTransactionAdjustment
}

// MatchStatus represents the review state of a match result
type MatchStatus string

const (
	MatchStatusMatched       MatchStatus = "matched"
	MatchStatusPendingReview MatchStatus = "pending_review"
	MatchStatusUnmatched     MatchStatus = "unmatched"
)

// String returns the string representation of MatchStatus
func (s MatchStatus) String() string {
	return string(s)
}

// IsValid checks if the match status is valid
func (s MatchStatus) IsValid() bool {
	return s == MatchStatusMatched || s == MatchStatusPendingReview || s == MatchStatusUnmatched
}

// StatusForConfidence maps a confidence score to matched or pending_review
// against the auto-match threshold. Cross-currency matches override this
// and stay pending_review regardless of score.
func StatusForConfidence(confidence, minAutoMatch int) MatchStatus {
	if confidence >= minAutoMatch {
		return MatchStatusMatched
	}
	return MatchStatusPendingReview
}

// Transaction represents an intended money movement recorded by the payment system
type Transaction struct {
	ID              string            `json:"id"`
	TransactionID   string            `json:"transaction_id"`
	MerchantOrderID string            `json:"merchant_order_id,omitempty"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	Timestamp       time.Time         `json:"timestamp"`
	Status          TransactionStatus `json:"status"`
	CustomerID      string            `json:"customer_id,omitempty"`
	Country         string            `json:"country,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// NewTransaction creates a Transaction with a fresh internal id
func NewTransaction(transactionID string, amount decimal.Decimal, currency string, timestamp time.Time, status TransactionStatus) *Transaction {
	return &Transaction{
		ID:            uuid.NewString(),
		TransactionID: transactionID,
		Amount:        amount,
		Currency:      NormalizeCurrency(currency),
		Timestamp:     timestamp,
		Status:        status,
		CreatedAt:     time.Now().UTC(),
	}
}

// Validate performs basic validation on the Transaction
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.TransactionID) == "" {
		return fmt.Errorf("transaction_id cannot be empty")
	}

	if t.Amount.IsNegative() {
		return fmt.Errorf("transaction amount cannot be negative: %s", t.Amount.String())
	}

	if err := ValidateCurrency(t.Currency); err != nil {
		return err
	}

	if !t.Status.IsValid() {
		return fmt.Errorf("invalid transaction status: %s", t.Status)
	}

	if t.Timestamp.IsZero() {
		return fmt.Errorf("transaction timestamp cannot be zero")
	}

	return nil
}

// IsCaptured reports whether the transaction participates in settlement matching
func (t *Transaction) IsCaptured() bool {
	return t.Status == TransactionCaptured
}

// String returns a string representation of the Transaction
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{ID: %s, Amount: %s %s, Status: %s, Time: %s}",
		t.TransactionID, t.Amount.String(), t.Currency, t.Status, t.Timestamp.Format(time.RFC3339))
}

// MarshalJSON implements custom JSON marshaling for Transaction
func (t *Transaction) MarshalJSON() ([]byte, error) {
	type Alias Transaction
	return json.Marshal(&struct {
		Amount    string `json:"amount"`
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Amount:    t.Amount.StringFixed(2),
		Timestamp: t.Timestamp.Format(time.RFC3339),
		Alias:     (*Alias)(t),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Transaction
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type Alias Transaction
	aux := &struct {
		Amount    json.Number `json:"amount"`
		Timestamp string      `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(t),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	t.Amount, err = ParseAmount(aux.Amount.String())
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	t.Timestamp, err = ParseTimeWithFormats(aux.Timestamp)
	if err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}

	t.Currency = NormalizeCurrency(t.Currency)
	return nil
}

// Settlement represents a bank-side record of funds transferred
type Settlement struct {
	ID                   string           `json:"id"`
	SettlementID         string           `json:"settlement_id"`
	Amount               decimal.Decimal  `json:"amount"`
	GrossAmount          *decimal.Decimal `json:"gross_amount,omitempty"`
	Currency             string           `json:"currency"`
	SettlementDate       time.Time        `json:"settlement_date"`
	TransactionReference string           `json:"transaction_reference,omitempty"`
	FeesDeducted         decimal.Decimal  `json:"fees_deducted"`
	BankName             string           `json:"bank_name,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
}

// NewSettlement creates a Settlement with a fresh internal id
func NewSettlement(settlementID string, amount decimal.Decimal, currency string, settlementDate time.Time) *Settlement {
	return &Settlement{
		ID:             uuid.NewString(),
		SettlementID:   settlementID,
		Amount:         amount,
		Currency:       NormalizeCurrency(currency),
		SettlementDate: settlementDate,
		FeesDeducted:   decimal.Zero,
		CreatedAt:      time.Now().UTC(),
	}
}

// Validate performs basic validation on the Settlement
func (s *Settlement) Validate() error {
	if strings.TrimSpace(s.SettlementID) == "" {
		return fmt.Errorf("settlement_id cannot be empty")
	}

	if s.Amount.IsNegative() {
		return fmt.Errorf("settlement amount cannot be negative: %s", s.Amount.String())
	}

	if s.FeesDeducted.IsNegative() {
		return fmt.Errorf("fees_deducted cannot be negative: %s", s.FeesDeducted.String())
	}

	if err := ValidateCurrency(s.Currency); err != nil {
		return err
	}

	if s.SettlementDate.IsZero() {
		return fmt.Errorf("settlement_date cannot be zero")
	}

	return nil
}

// HasReference reports whether the settlement carries a transaction reference
func (s *Settlement) HasReference() bool {
	return strings.TrimSpace(s.TransactionReference) != ""
}

// FeeInconsistency returns the absolute gap between the reported gross amount
// and net + fees, when a gross amount is present. Zero means consistent.
func (s *Settlement) FeeInconsistency() decimal.Decimal {
	if s.GrossAmount == nil {
		return decimal.Zero
	}
	return s.GrossAmount.Sub(s.Amount.Add(s.FeesDeducted)).Abs()
}

// String returns a string representation of the Settlement
func (s *Settlement) String() string {
	return fmt.Sprintf("Settlement{ID: %s, Amount: %s %s, Date: %s, Ref: %q}",
		s.SettlementID, s.Amount.String(), s.Currency, s.SettlementDate.Format("2006-01-02"), s.TransactionReference)
}

// MarshalJSON implements custom JSON marshaling for Settlement
func (s *Settlement) MarshalJSON() ([]byte, error) {
	type Alias Settlement
	var gross *string
	if s.GrossAmount != nil {
		g := s.GrossAmount.StringFixed(2)
		gross = &g
	}
	return json.Marshal(&struct {
		Amount         string  `json:"amount"`
		GrossAmount    *string `json:"gross_amount,omitempty"`
		FeesDeducted   string  `json:"fees_deducted"`
		SettlementDate string  `json:"settlement_date"`
		*Alias
	}{
		Amount:         s.Amount.StringFixed(2),
		GrossAmount:    gross,
		FeesDeducted:   s.FeesDeducted.StringFixed(2),
		SettlementDate: s.SettlementDate.Format("2006-01-02"),
		Alias:          (*Alias)(s),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Settlement
func (s *Settlement) UnmarshalJSON(data []byte) error {
	type Alias Settlement
	aux := &struct {
		Amount         json.Number `json:"amount"`
		GrossAmount    json.Number `json:"gross_amount"`
		FeesDeducted   json.Number `json:"fees_deducted"`
		SettlementDate string      `json:"settlement_date"`
		*Alias
	}{
		Alias: (*Alias)(s),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	s.Amount, err = ParseAmount(aux.Amount.String())
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	if aux.GrossAmount.String() != "" {
		gross, err := ParseAmount(aux.GrossAmount.String())
		if err != nil {
			return fmt.Errorf("invalid gross_amount: %w", err)
		}
		s.GrossAmount = &gross
	}

	if aux.FeesDeducted.String() != "" {
		s.FeesDeducted, err = ParseAmount(aux.FeesDeducted.String())
		if err != nil {
			return fmt.Errorf("invalid fees_deducted: %w", err)
		}
	} else {
		s.FeesDeducted = decimal.Zero
	}

	s.SettlementDate, err = ParseCivilDate(aux.SettlementDate)
	if err != nil {
		return fmt.Errorf("invalid settlement_date: %w", err)
	}

	s.Currency = NormalizeCurrency(s.Currency)
	return nil
}

// Adjustment represents a post-hoc reversal or dispute against a transaction
type Adjustment struct {
	ID                   string          `json:"id"`
	AdjustmentID         string          `json:"adjustment_id"`
	TransactionReference string          `json:"transaction_reference,omitempty"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	Type                 AdjustmentType  `json:"type"`
	Date                 time.Time       `json:"date"`
	ReasonCode           string          `json:"reason_code,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}

// NewAdjustment creates an Adjustment with a fresh internal id
func NewAdjustment(adjustmentID string, amount decimal.Decimal, currency string, adjType AdjustmentType, date time.Time) *Adjustment {
	return &Adjustment{
		ID:           uuid.NewString(),
		AdjustmentID: adjustmentID,
		Amount:       amount,
		Currency:     NormalizeCurrency(currency),
		Type:         adjType,
		Date:         date,
		CreatedAt:    time.Now().UTC(),
	}
}

// Validate performs basic validation on the Adjustment
func (a *Adjustment) Validate() error {
	if strings.TrimSpace(a.AdjustmentID) == "" {
		return fmt.Errorf("adjustment_id cannot be empty")
	}

	if a.Amount.IsNegative() {
		return fmt.Errorf("adjustment amount cannot be negative: %s", a.Amount.String())
	}

	if err := ValidateCurrency(a.Currency); err != nil {
		return err
	}

	if !a.Type.IsValid() {
		return fmt.Errorf("adjustment type must be refund or chargeback: %s", a.Type)
	}

	if a.Date.IsZero() {
		return fmt.Errorf("adjustment date cannot be zero")
	}

	return nil
}

// String returns a string representation of the Adjustment
func (a *Adjustment) String() string {
	return fmt.Sprintf("Adjustment{ID: %s, Type: %s, Amount: %s %s, Date: %s}",
		a.AdjustmentID, a.Type, a.Amount.String(), a.Currency, a.Date.Format("2006-01-02"))
}

// MarshalJSON implements custom JSON marshaling for Adjustment
func (a *Adjustment) MarshalJSON() ([]byte, error) {
	type Alias Adjustment
	return json.Marshal(&struct {
		Amount string `json:"amount"`
		Date   string `json:"date"`
		*Alias
	}{
		Amount: a.Amount.StringFixed(2),
		Date:   a.Date.Format("2006-01-02"),
		Alias:  (*Alias)(a),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Adjustment
func (a *Adjustment) UnmarshalJSON(data []byte) error {
	type Alias Adjustment
	aux := &struct {
		Amount json.Number `json:"amount"`
		Date   string      `json:"date"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	a.Amount, err = ParseAmount(aux.Amount.String())
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	a.Date, err = ParseCivilDate(aux.Date)
	if err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}

	a.Currency = NormalizeCurrency(a.Currency)
	return nil
}

// MatchResult links one transaction to one settlement or one adjustment,
// with the evidence the matcher collected for the link.
type MatchResult struct {
	ID                 string          `json:"id"`
	TransactionID      string          `json:"transaction_id"`
	SettlementID       string          `json:"settlement_id,omitempty"`
	AdjustmentID       string          `json:"adjustment_id,omitempty"`
	MatchType          MatchType       `json:"match_type"`
	ConfidenceScore    int             `json:"confidence_score"`
	MatchReasons       []string        `json:"match_reasons"`
	AmountDifference   decimal.Decimal `json:"amount_difference"`
	DateDifferenceDays int             `json:"date_difference_days"`
	Status             MatchStatus     `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
}

// NewSettlementMatch creates a MatchResult linking a transaction to a settlement.
// Ids are the internal record ids, not the external references.
func NewSettlementMatch(transactionID, settlementID string, confidence int, reasons []string, amountDiff decimal.Decimal, dateDiffDays int, status MatchStatus) *MatchResult {
	return &MatchResult{
		ID:                 uuid.NewString(),
		TransactionID:      transactionID,
		SettlementID:       settlementID,
		MatchType:          MatchTransactionSettlement,
		ConfidenceScore:    clampConfidence(confidence),
		MatchReasons:       reasons,
		AmountDifference:   amountDiff.Abs(),
		DateDifferenceDays: dateDiffDays,
		Status:             status,
		CreatedAt:          time.Now().UTC(),
	}
}

// NewAdjustmentMatch creates a MatchResult linking a transaction to an adjustment
func NewAdjustmentMatch(transactionID, adjustmentID string, confidence int, reasons []string, amountDiff decimal.Decimal, dateDiffDays int, status MatchStatus) *MatchResult {
	return &MatchResult{
		ID:                 uuid.NewString(),
		TransactionID:      transactionID,
		AdjustmentID:       adjustmentID,
		MatchType:          MatchTransactionAdjustment,
		ConfidenceScore:    clampConfidence(confidence),
		MatchReasons:       reasons,
		AmountDifference:   amountDiff.Abs(),
		DateDifferenceDays: dateDiffDays,
		Status:             status,
		CreatedAt:          time.Now().UTC(),
	}
}

// Validate performs basic validation on the MatchResult
func (m *MatchResult) Validate() error {
	if strings.TrimSpace(m.TransactionID) == "" {
		return fmt.Errorf("match result transaction_id cannot be empty")
	}

	hasSettlement := m.SettlementID != ""
	hasAdjustment := m.AdjustmentID != ""
	if hasSettlement == hasAdjustment {
		return fmt.Errorf("match result must reference exactly one of settlement or adjustment")
	}

	if !m.MatchType.IsValid() {
		return fmt.Errorf("invalid match type: %s", m.MatchType)
	}

	if m.ConfidenceScore < 0 || m.ConfidenceScore > 100 {
		return fmt.Errorf("confidence score out of range: %d", m.ConfidenceScore)
	}

	if m.AmountDifference.IsNegative() {
		return fmt.Errorf("amount difference cannot be negative: %s", m.AmountDifference.String())
	}

	if m.DateDifferenceDays < 0 {
		return fmt.Errorf("date difference cannot be negative: %d", m.DateDifferenceDays)
	}

	if !m.Status.IsValid() {
		return fmt.Errorf("invalid match status: %s", m.Status)
	}

	return nil
}

// IsSettlementMatch reports whether the result links a settlement
func (m *MatchResult) IsSettlementMatch() bool {
	return m.MatchType == MatchTransactionSettlement
}

// HasVariance reports whether the matched amounts differed
func (m *MatchResult) HasVariance() bool {
	return m.AmountDifference.IsPositive()
}

// String returns a string representation of the MatchResult
func (m *MatchResult) String() string {
	counterpart := m.SettlementID
	if m.MatchType == MatchTransactionAdjustment {
		counterpart = m.AdjustmentID
	}
	return fmt.Sprintf("MatchResult{Txn: %s, Counterpart: %s, Type: %s, Confidence: %d, Status: %s}",
		m.TransactionID, counterpart, m.MatchType, m.ConfidenceScore, m.Status)
}

// MarshalJSON implements custom JSON marshaling for MatchResult
func (m *MatchResult) MarshalJSON() ([]byte, error) {
	type Alias MatchResult
	return json.Marshal(&struct {
		AmountDifference string `json:"amount_difference"`
		*Alias
	}{
		AmountDifference: m.AmountDifference.StringFixed(2),
		Alias:            (*Alias)(m),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for MatchResult
func (m *MatchResult) UnmarshalJSON(data []byte) error {
	type Alias MatchResult
	aux := &struct {
		AmountDifference json.Number `json:"amount_difference"`
		*Alias
	}{
		Alias: (*Alias)(m),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	m.AmountDifference, err = ParseAmount(aux.AmountDifference.String())
	if err != nil {
		return fmt.Errorf("invalid amount_difference: %w", err)
	}

	return nil
}

func clampConfidence(confidence int) int {
	if confidence < 0 {
		return 0
	}
	if confidence > 100 {
		return 100
	}
	return confidence
}

// Utility functions shared by ingestion, parsing and the matcher

// NormalizeCurrency upper-cases and trims a currency code
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// ValidateCurrency checks that a currency code is three ASCII letters
func ValidateCurrency(currency string) error {
	if len(currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter code: %q", currency)
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("currency must be upper-case letters: %q", currency)
		}
	}
	return nil
}

// ParseAmount parses a monetary amount from string with validation
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount cannot be empty")
	}

	// Strip currency symbols and thousand separators seen in exported files
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	return d, nil
}

// ParseCivilDate parses a date with no time-of-day component
func ParseCivilDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date cannot be empty")
	}

	formats := []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date %q: %w", s, lastErr)
}

// ParseTimeWithFormats attempts to parse an instant using the formats that
// show up in gateway exports and bank files
func ParseTimeWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time cannot be empty")
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time %q: %w", s, lastErr)
}

// ParseTransactionStatus parses and validates a transaction status from string
func ParseTransactionStatus(s string) (TransactionStatus, error) {
	status := TransactionStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid transaction status %q: must be authorized, captured or failed", s)
	}
	return status, nil
}

// ParseAdjustmentType parses and validates an adjustment type from string
func ParseAdjustmentType(s string) (AdjustmentType, error) {
	adjType := AdjustmentType(strings.ToLower(strings.TrimSpace(s)))
	if !adjType.IsValid() {
		return "", fmt.Errorf("invalid adjustment type %q: must be refund or chargeback", s)
	}
	return adjType, nil
}
