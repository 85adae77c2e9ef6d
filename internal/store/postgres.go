package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"payment-reconciliation-engine/internal/models"
	apperrors "payment-reconciliation-engine/pkg/errors"
)

// PostgresStore implements the Store port on PostgreSQL via database/sql.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an opened database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens a PostgreSQL connection pool and verifies connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, apperrors.StoreError(apperrors.CodeStoreUnavailable, "open connection", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.StoreError(apperrors.CodeStoreUnavailable, "ping", err)
	}

	return NewPostgresStore(db), nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate creates the four tables and their indexes if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			transaction_id TEXT NOT NULL UNIQUE,
			merchant_order_id TEXT NOT NULL DEFAULT '',
			amount NUMERIC(18,2) NOT NULL,
			currency CHAR(3) NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			customer_id TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settlements (
			id TEXT PRIMARY KEY,
			settlement_id TEXT NOT NULL UNIQUE,
			amount NUMERIC(18,2) NOT NULL,
			gross_amount NUMERIC(18,2),
			currency CHAR(3) NOT NULL,
			settlement_date DATE NOT NULL,
			transaction_reference TEXT NOT NULL DEFAULT '',
			fees_deducted NUMERIC(18,2) NOT NULL DEFAULT 0,
			bank_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS adjustments (
			id TEXT PRIMARY KEY,
			adjustment_id TEXT NOT NULL UNIQUE,
			transaction_reference TEXT NOT NULL DEFAULT '',
			amount NUMERIC(18,2) NOT NULL,
			currency CHAR(3) NOT NULL,
			type TEXT NOT NULL,
			date DATE NOT NULL,
			reason_code TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS match_results (
			id TEXT PRIMARY KEY,
			transaction_id TEXT NOT NULL REFERENCES transactions(id),
			settlement_id TEXT REFERENCES settlements(id),
			adjustment_id TEXT REFERENCES adjustments(id),
			match_type TEXT NOT NULL,
			confidence_score INT NOT NULL,
			match_reasons TEXT NOT NULL,
			amount_difference NUMERIC(18,2) NOT NULL,
			date_difference_days INT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (settlement_id),
			UNIQUE (adjustment_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_ts ON transactions (ts)`,
		`CREATE INDEX IF NOT EXISTS idx_settlements_date ON settlements (settlement_date)`,
		`CREATE INDEX IF NOT EXISTS idx_adjustments_date ON adjustments (date)`,
		`CREATE INDEX IF NOT EXISTS idx_match_results_txn ON match_results (transaction_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return apperrors.StoreError(apperrors.CodeStoreUnavailable, "migrate", err)
		}
	}
	return nil
}

// classify maps a database error to an engine error for the given operation.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			return apperrors.StoreError(apperrors.CodeConstraintViolation, op, err)
		case "23503", "23502", "23514":
			return apperrors.StoreError(apperrors.CodeConstraintViolation, op, err)
		case "40001", "40P01":
			return apperrors.StoreError(apperrors.CodeConflictOnWrite, op, err)
		}
	}

	return apperrors.StoreError(apperrors.CodeStoreUnavailable, op, err)
}

// --- Raw record writes ---

func (s *PostgresStore) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	if err := txn.Validate(); err != nil {
		return apperrors.WrapIfNeeded(err, apperrors.CategoryValidation, apperrors.CodeInvalidData, "invalid transaction")
	}

	query := `
		INSERT INTO transactions (
			id, transaction_id, merchant_order_id, amount, currency, ts,
			status, customer_id, country, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, query,
		txn.ID,
		txn.TransactionID,
		txn.MerchantOrderID,
		txn.Amount,
		txn.Currency,
		txn.Timestamp,
		txn.Status.String(),
		txn.CustomerID,
		txn.Country,
		txn.CreatedAt,
	)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return apperrors.DuplicateError("transaction", txn.TransactionID)
	}
	if err != nil {
		return classify("insert transaction", err)
	}
	return nil
}

func (s *PostgresStore) InsertSettlement(ctx context.Context, stl *models.Settlement) error {
	if err := stl.Validate(); err != nil {
		return apperrors.WrapIfNeeded(err, apperrors.CategoryValidation, apperrors.CodeInvalidData, "invalid settlement")
	}

	query := `
		INSERT INTO settlements (
			id, settlement_id, amount, gross_amount, currency, settlement_date,
			transaction_reference, fees_deducted, bank_name, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	var gross decimal.NullDecimal
	if stl.GrossAmount != nil {
		gross = decimal.NullDecimal{Decimal: *stl.GrossAmount, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		stl.ID,
		stl.SettlementID,
		stl.Amount,
		gross,
		stl.Currency,
		stl.SettlementDate,
		stl.TransactionReference,
		stl.FeesDeducted,
		stl.BankName,
		stl.CreatedAt,
	)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return apperrors.DuplicateError("settlement", stl.SettlementID)
	}
	if err != nil {
		return classify("insert settlement", err)
	}
	return nil
}

func (s *PostgresStore) InsertAdjustment(ctx context.Context, adj *models.Adjustment) error {
	if err := adj.Validate(); err != nil {
		return apperrors.WrapIfNeeded(err, apperrors.CategoryValidation, apperrors.CodeInvalidData, "invalid adjustment")
	}

	query := `
		INSERT INTO adjustments (
			id, adjustment_id, transaction_reference, amount, currency,
			type, date, reason_code, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query,
		adj.ID,
		adj.AdjustmentID,
		adj.TransactionReference,
		adj.Amount,
		adj.Currency,
		adj.Type.String(),
		adj.Date,
		adj.ReasonCode,
		adj.CreatedAt,
	)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return apperrors.DuplicateError("adjustment", adj.AdjustmentID)
	}
	if err != nil {
		return classify("insert adjustment", err)
	}
	return nil
}

// --- Lookups ---

const transactionColumns = `id, transaction_id, merchant_order_id, amount, currency, ts, status, customer_id, country, created_at`

func scanTransaction(row interface{ Scan(...interface{}) error }) (*models.Transaction, error) {
	var txn models.Transaction
	var status string
	err := row.Scan(
		&txn.ID,
		&txn.TransactionID,
		&txn.MerchantOrderID,
		&txn.Amount,
		&txn.Currency,
		&txn.Timestamp,
		&status,
		&txn.CustomerID,
		&txn.Country,
		&txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	txn.Status = models.TransactionStatus(status)
	return &txn, nil
}

func (s *PostgresStore) TransactionByID(ctx context.Context, id string) (*models.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE id = $1`, transactionColumns)

	txn, err := scanTransaction(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundError("transaction", id)
	}
	if err != nil {
		return nil, classify("get transaction", err)
	}
	return txn, nil
}

func (s *PostgresStore) TransactionByExternalID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE transaction_id = $1`, transactionColumns)

	txn, err := scanTransaction(s.db.QueryRowContext(ctx, query, transactionID))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundError("transaction", transactionID)
	}
	if err != nil {
		return nil, classify("get transaction", err)
	}
	return txn, nil
}

const settlementColumns = `id, settlement_id, amount, gross_amount, currency, settlement_date, transaction_reference, fees_deducted, bank_name, created_at`

func scanSettlement(row interface{ Scan(...interface{}) error }) (*models.Settlement, error) {
	var stl models.Settlement
	var gross decimal.NullDecimal
	err := row.Scan(
		&stl.ID,
		&stl.SettlementID,
		&stl.Amount,
		&gross,
		&stl.Currency,
		&stl.SettlementDate,
		&stl.TransactionReference,
		&stl.FeesDeducted,
		&stl.BankName,
		&stl.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if gross.Valid {
		g := gross.Decimal
		stl.GrossAmount = &g
	}
	return &stl, nil
}

func (s *PostgresStore) SettlementByID(ctx context.Context, id string) (*models.Settlement, error) {
	query := fmt.Sprintf(`SELECT %s FROM settlements WHERE id = $1`, settlementColumns)

	stl, err := scanSettlement(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundError("settlement", id)
	}
	if err != nil {
		return nil, classify("get settlement", err)
	}
	return stl, nil
}

const adjustmentColumns = `id, adjustment_id, transaction_reference, amount, currency, type, date, reason_code, created_at`

func scanAdjustment(row interface{ Scan(...interface{}) error }) (*models.Adjustment, error) {
	var adj models.Adjustment
	var adjType string
	err := row.Scan(
		&adj.ID,
		&adj.AdjustmentID,
		&adj.TransactionReference,
		&adj.Amount,
		&adj.Currency,
		&adjType,
		&adj.Date,
		&adj.ReasonCode,
		&adj.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	adj.Type = models.AdjustmentType(adjType)
	return &adj, nil
}

func (s *PostgresStore) AdjustmentByID(ctx context.Context, id string) (*models.Adjustment, error) {
	query := fmt.Sprintf(`SELECT %s FROM adjustments WHERE id = $1`, adjustmentColumns)

	adj, err := scanAdjustment(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundError("adjustment", id)
	}
	if err != nil {
		return nil, classify("get adjustment", err)
	}
	return adj, nil
}

// --- Record loads ---

func (s *PostgresStore) LoadTransactions(ctx context.Context, filter Filter) ([]*models.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE 1=1`, transactionColumns)
	args := []interface{}{}
	argPos := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.Status.String())
		argPos++
	}
	if filter.DateFrom != nil {
		query += fmt.Sprintf(" AND ts >= $%d", argPos)
		args = append(args, *filter.DateFrom)
		argPos++
	}
	if filter.DateTo != nil {
		query += fmt.Sprintf(" AND ts < $%d", argPos)
		args = append(args, filter.DateTo.AddDate(0, 0, 1))
		argPos++
	}

	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("load transactions", err)
	}
	defer rows.Close()

	var result []*models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, classify("scan transaction", err)
		}
		result = append(result, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("load transactions", err)
	}
	return result, nil
}

func (s *PostgresStore) LoadSettlements(ctx context.Context, filter Filter) ([]*models.Settlement, error) {
	query := fmt.Sprintf(`SELECT %s FROM settlements WHERE 1=1`, settlementColumns)
	args := []interface{}{}
	argPos := 1

	if filter.DateFrom != nil {
		query += fmt.Sprintf(" AND settlement_date >= $%d", argPos)
		args = append(args, *filter.DateFrom)
		argPos++
	}
	if filter.DateTo != nil {
		query += fmt.Sprintf(" AND settlement_date <= $%d", argPos)
		args = append(args, *filter.DateTo)
		argPos++
	}

	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("load settlements", err)
	}
	defer rows.Close()

	var result []*models.Settlement
	for rows.Next() {
		stl, err := scanSettlement(rows)
		if err != nil {
			return nil, classify("scan settlement", err)
		}
		result = append(result, stl)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("load settlements", err)
	}
	return result, nil
}

func (s *PostgresStore) LoadAdjustments(ctx context.Context, filter Filter) ([]*models.Adjustment, error) {
	query := fmt.Sprintf(`SELECT %s FROM adjustments WHERE 1=1`, adjustmentColumns)
	args := []interface{}{}
	argPos := 1

	if filter.DateFrom != nil {
		query += fmt.Sprintf(" AND date >= $%d", argPos)
		args = append(args, *filter.DateFrom)
		argPos++
	}
	if filter.DateTo != nil {
		query += fmt.Sprintf(" AND date <= $%d", argPos)
		args = append(args, *filter.DateTo)
		argPos++
	}

	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("load adjustments", err)
	}
	defer rows.Close()

	var result []*models.Adjustment
	for rows.Next() {
		adj, err := scanAdjustment(rows)
		if err != nil {
			return nil, classify("scan adjustment", err)
		}
		result = append(result, adj)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("load adjustments", err)
	}
	return result, nil
}

// --- Match writes ---

func (s *PostgresStore) ClearMatches(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM match_results`); err != nil {
		return classify("clear matches", err)
	}
	return nil
}

func (s *PostgresStore) PersistMatches(ctx context.Context, matches []*models.MatchResult) error {
	if err := ValidateMatchSet(matches); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("persist matches", err)
	}
	defer tx.Rollback()

	if err := insertMatches(ctx, tx, matches); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify("persist matches", err)
	}
	return nil
}

// ReplaceMatches deletes the previous match set and writes the new one in a
// single transaction, so a failed run leaves the stored matches untouched.
func (s *PostgresStore) ReplaceMatches(ctx context.Context, matches []*models.MatchResult) error {
	if err := ValidateMatchSet(matches); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("replace matches", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM match_results`); err != nil {
		return classify("replace matches", err)
	}

	if err := insertMatches(ctx, tx, matches); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify("replace matches", err)
	}
	return nil
}

func insertMatches(ctx context.Context, tx *sql.Tx, matches []*models.MatchResult) error {
	query := `
		INSERT INTO match_results (
			id, transaction_id, settlement_id, adjustment_id, match_type,
			confidence_score, match_reasons, amount_difference,
			date_difference_days, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	for _, m := range matches {
		reasons, err := json.Marshal(m.MatchReasons)
		if err != nil {
			return apperrors.StoreError(apperrors.CodeConstraintViolation, "encode match reasons", err)
		}

		_, err = tx.ExecContext(ctx, query,
			m.ID,
			m.TransactionID,
			nullableString(m.SettlementID),
			nullableString(m.AdjustmentID),
			m.MatchType.String(),
			m.ConfidenceScore,
			string(reasons),
			m.AmountDifference,
			m.DateDifferenceDays,
			m.Status.String(),
			m.CreatedAt,
		)
		if err != nil {
			return classify("insert match", err)
		}
	}
	return nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// --- Match reads ---

const matchColumns = `id, transaction_id, settlement_id, adjustment_id, match_type, confidence_score, match_reasons, amount_difference, date_difference_days, status, created_at`

func scanMatch(row interface{ Scan(...interface{}) error }) (*models.MatchResult, error) {
	var m models.MatchResult
	var settlementID, adjustmentID sql.NullString
	var matchType, status, reasons string

	err := row.Scan(
		&m.ID,
		&m.TransactionID,
		&settlementID,
		&adjustmentID,
		&matchType,
		&m.ConfidenceScore,
		&reasons,
		&m.AmountDifference,
		&m.DateDifferenceDays,
		&status,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.SettlementID = settlementID.String
	m.AdjustmentID = adjustmentID.String
	m.MatchType = models.MatchType(matchType)
	m.Status = models.MatchStatus(status)
	if err := json.Unmarshal([]byte(reasons), &m.MatchReasons); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) ListMatches(ctx context.Context, filter MatchFilter) ([]*models.MatchResult, int, error) {
	where := " WHERE confidence_score >= $1"
	args := []interface{}{filter.MinConfidence}
	argPos := 2

	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.Status.String())
		argPos++
	}
	if filter.MatchType != "" {
		where += fmt.Sprintf(" AND match_type = $%d", argPos)
		args = append(args, filter.MatchType.String())
		argPos++
	}

	var total int
	countQuery := `SELECT COUNT(id) FROM match_results` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, classify("count matches", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM match_results`, matchColumns) + where +
		" ORDER BY confidence_score DESC, id ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filter.Limit)
		argPos++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argPos)
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, classify("list matches", err)
	}
	defer rows.Close()

	var result []*models.MatchResult
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, 0, classify("scan match", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify("list matches", err)
	}
	return result, total, nil
}

func (s *PostgresStore) SettlementMatchByTransaction(ctx context.Context, transactionID string) (*models.MatchResult, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM match_results WHERE transaction_id = $1 AND settlement_id IS NOT NULL LIMIT 1`,
		matchColumns)

	m, err := scanMatch(s.db.QueryRowContext(ctx, query, transactionID))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundError("match for transaction", transactionID)
	}
	if err != nil {
		return nil, classify("get match", err)
	}
	return m, nil
}

// --- Reporting queries ---

func (s *PostgresStore) UnmatchedTransactions(ctx context.Context, filter RecordFilter) ([]*models.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE status = 'captured'
		AND id NOT IN (
			SELECT transaction_id FROM match_results WHERE settlement_id IS NOT NULL
		)`, transactionColumns)

	args := []interface{}{}
	argPos := 1

	if filter.Currency != "" {
		query += fmt.Sprintf(" AND currency = $%d", argPos)
		args = append(args, filter.Currency)
		argPos++
	}
	if filter.MinAmount != nil {
		query += fmt.Sprintf(" AND amount >= $%d", argPos)
		args = append(args, *filter.MinAmount)
	}

	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("unmatched transactions", err)
	}
	defer rows.Close()

	var result []*models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, classify("scan transaction", err)
		}
		result = append(result, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("unmatched transactions", err)
	}
	return result, nil
}

func (s *PostgresStore) UnmatchedSettlements(ctx context.Context, filter RecordFilter) ([]*models.Settlement, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM settlements
		WHERE id NOT IN (
			SELECT settlement_id FROM match_results WHERE settlement_id IS NOT NULL
		)`, settlementColumns)

	args := []interface{}{}
	argPos := 1

	if filter.Currency != "" {
		query += fmt.Sprintf(" AND currency = $%d", argPos)
		args = append(args, filter.Currency)
		argPos++
	}
	if filter.MinAmount != nil {
		query += fmt.Sprintf(" AND amount >= $%d", argPos)
		args = append(args, *filter.MinAmount)
	}

	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("unmatched settlements", err)
	}
	defer rows.Close()

	var result []*models.Settlement
	for rows.Next() {
		stl, err := scanSettlement(rows)
		if err != nil {
			return nil, classify("scan settlement", err)
		}
		result = append(result, stl)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("unmatched settlements", err)
	}
	return result, nil
}

func (s *PostgresStore) UnmatchedAdjustments(ctx context.Context, filter RecordFilter) ([]*models.Adjustment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM adjustments
		WHERE id NOT IN (
			SELECT adjustment_id FROM match_results WHERE adjustment_id IS NOT NULL
		)`, adjustmentColumns)

	args := []interface{}{}
	argPos := 1

	if filter.Currency != "" {
		query += fmt.Sprintf(" AND currency = $%d", argPos)
		args = append(args, filter.Currency)
		argPos++
	}
	if filter.MinAmount != nil {
		query += fmt.Sprintf(" AND amount >= $%d", argPos)
		args = append(args, *filter.MinAmount)
	}

	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("unmatched adjustments", err)
	}
	defer rows.Close()

	var result []*models.Adjustment
	for rows.Next() {
		adj, err := scanAdjustment(rows)
		if err != nil {
			return nil, classify("scan adjustment", err)
		}
		result = append(result, adj)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("unmatched adjustments", err)
	}
	return result, nil
}

func (s *PostgresStore) AmountMismatches(ctx context.Context, filter RecordFilter) ([]*models.MatchResult, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM match_results m
		WHERE m.amount_difference > 0 AND m.settlement_id IS NOT NULL`,
		prefixColumns("m", matchColumns))

	args := []interface{}{}
	argPos := 1

	if filter.Currency != "" {
		query += fmt.Sprintf(
			" AND m.transaction_id IN (SELECT id FROM transactions WHERE currency = $%d)", argPos)
		args = append(args, filter.Currency)
		argPos++
	}
	if filter.MinAmount != nil {
		query += fmt.Sprintf(" AND m.amount_difference >= $%d", argPos)
		args = append(args, *filter.MinAmount)
	}

	query += " ORDER BY m.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("amount mismatches", err)
	}
	defer rows.Close()

	var result []*models.MatchResult
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, classify("scan match", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("amount mismatches", err)
	}
	return result, nil
}

func (s *PostgresStore) Counts(ctx context.Context) (Counts, error) {
	var counts Counts

	queries := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(id) FROM transactions`, &counts.Transactions},
		{`SELECT COUNT(id) FROM settlements`, &counts.Settlements},
		{`SELECT COUNT(id) FROM adjustments`, &counts.Adjustments},
		{`SELECT COUNT(id) FROM match_results`, &counts.Matches},
	}

	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return Counts{}, classify("count records", err)
		}
	}
	return counts, nil
}

func (s *PostgresStore) LastMatchCreatedAt(ctx context.Context) (*time.Time, error) {
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at FROM match_results ORDER BY created_at DESC LIMIT 1`).Scan(&createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("last match", err)
	}
	return &createdAt, nil
}

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, c := range parts {
		parts[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}
