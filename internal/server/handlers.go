package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"payment-reconciliation-engine/internal/models"
	"payment-reconciliation-engine/internal/reporter"
	"payment-reconciliation-engine/internal/store"
	apperrors "payment-reconciliation-engine/pkg/errors"
	"payment-reconciliation-engine/pkg/logger"
)

// --- System ---

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    serviceName,
		"version": s.version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// --- Reconciliation ---

type reconcileRequest struct {
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		s.writeError(w, r, malformedBody(err))
		return
	}

	dateFrom, err := parseCivilField("date_from", req.DateFrom)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dateTo, err := parseCivilField("date_to", req.DateTo)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if dateFrom != nil && dateTo != nil && dateFrom.After(*dateTo) {
		s.writeError(w, r, apperrors.ValidationError(apperrors.CodeOutOfRange, "date_from", req.DateFrom, nil).
			WithSuggestion("date_from must not be after date_to"))
		return
	}

	report, runErr := s.reconciler.Run(r.Context(), dateFrom, dateTo)
	if runErr != nil {
		s.writeError(w, r, runErr)
		return
	}
	s.logAnomalies(r.Context())
	writeJSON(w, http.StatusOK, report)
}

// logAnomalies surfaces data-quality observations after a run. They never
// affect the response; the counts also appear in the discrepancy summary.
func (s *Server) logAnomalies(ctx context.Context) {
	anomalies, err := s.reporter.Anomalies(ctx)
	if err != nil || len(anomalies) == 0 {
		return
	}

	fees, duplicates := 0, 0
	for _, anomaly := range anomalies {
		switch anomaly.Kind {
		case reporter.AnomalyFeeInconsistency:
			fees++
		case reporter.AnomalyPossibleDuplicate:
			duplicates++
		}
	}
	s.logger.WithFields(logger.Fields{
		"fee_inconsistencies": fees,
		"possible_duplicates": duplicates,
	}).Warn("Data anomalies observed")
}

func (s *Server) handleReconcileStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.reconciler.Status(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// --- Matches ---

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.MatchFilter{}

	confidenceMin, err := queryInt(r, "confidence_min")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter.MinConfidence = confidenceMin

	if raw := query.Get("status"); raw != "" {
		status := models.MatchStatus(raw)
		if !status.IsValid() {
			s.writeError(w, r, apperrors.ValidationError(apperrors.CodeInvalidQuery, "status", raw, nil))
			return
		}
		filter.Status = status
	}

	if raw := query.Get("match_type"); raw != "" {
		matchType := models.MatchType(raw)
		if !matchType.IsValid() {
			s.writeError(w, r, apperrors.ValidationError(apperrors.CodeInvalidQuery, "match_type", raw, nil))
			return
		}
		filter.MatchType = matchType
	}

	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		s.writeError(w, r, err)
		return
	}

	matches, total, listErr := s.store.ListMatches(r.Context(), filter)
	if listErr != nil {
		s.writeError(w, r, listErr)
		return
	}
	if matches == nil {
		matches = []*models.MatchResult{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"matches": matches,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// handleMatchByTransaction resolves the path id as an external transaction
// id first and falls back to treating it as an internal id, so both the
// ingest-facing and match-facing identifiers work.
func (s *Server) handleMatchByTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["transaction_id"]

	internalID := id
	if txn, err := s.store.TransactionByExternalID(r.Context(), id); err == nil {
		internalID = txn.ID
	} else if engineErr, ok := apperrors.AsEngineError(err); !ok || engineErr.Code != apperrors.CodeRecordNotFound {
		s.writeError(w, r, err)
		return
	}

	match, err := s.store.SettlementMatchByTransaction(r.Context(), internalID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// --- Discrepancies ---

func (s *Server) handleDiscrepancies(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	query := reporter.Query{
		Type:     reporter.DiscrepancyType(values.Get("type")),
		Currency: values.Get("currency"),
		Priority: reporter.Priority(values.Get("priority")),
	}

	if raw := values.Get("min_amount"); raw != "" {
		minAmount, err := decimal.NewFromString(raw)
		if err != nil {
			s.writeError(w, r, apperrors.ValidationError(apperrors.CodeInvalidQuery, "min_amount", raw, err))
			return
		}
		query.MinAmount = &minAmount
	}

	var err *apperrors.EngineError
	if query.Limit, err = queryInt(r, "limit"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if query.Offset, err = queryInt(r, "offset"); err != nil {
		s.writeError(w, r, err)
		return
	}

	report, reportErr := s.reporter.Discrepancies(r.Context(), query)
	if reportErr != nil {
		s.writeError(w, r, reportErr)
		return
	}
	if report.Discrepancies == nil {
		report.Discrepancies = []*reporter.Discrepancy{}
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDiscrepancySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.reporter.Summarize(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// --- Ingestion ---

func (s *Server) handleIngestTransactions(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Transactions []*models.Transaction `json:"transactions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, r, malformedBody(err))
		return
	}

	result, err := s.ingest.IngestTransactions(r.Context(), payload.Transactions)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleIngestSettlements(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Settlements []*models.Settlement `json:"settlements"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, r, malformedBody(err))
		return
	}

	result, err := s.ingest.IngestSettlements(r.Context(), payload.Settlements)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleIngestAdjustments(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Adjustments []*models.Adjustment `json:"adjustments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, r, malformedBody(err))
		return
	}

	result, err := s.ingest.IngestAdjustments(r.Context(), payload.Adjustments)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- Request parsing helpers ---

func parseCivilField(field, raw string) (*time.Time, *apperrors.EngineError) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := models.ParseCivilDate(raw)
	if err != nil {
		return nil, apperrors.ValidationError(apperrors.CodeInvalidDate, field, raw, err)
	}
	return &parsed, nil
}

func queryInt(r *http.Request, name string) (int, *apperrors.EngineError) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, apperrors.ValidationError(apperrors.CodeInvalidQuery, name, raw, err)
	}
	return value, nil
}

func malformedBody(err error) *apperrors.EngineError {
	return apperrors.Wrap(err, apperrors.CategoryParse, apperrors.CodeInvalidFormat,
		fmt.Sprintf("malformed request body: %v", err)).
		WithSuggestion("send a JSON document matching the endpoint schema")
}
