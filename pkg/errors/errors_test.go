package errors

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestEngineError(t *testing.T) {
	tests := []struct {
		name       string
		category   ErrorCategory
		code       ErrorCode
		message    string
		cause      error
		expectCode int
	}{
		{
			name:       "file error",
			category:   CategoryFile,
			code:       CodeFileNotFound,
			message:    "file not found",
			cause:      errors.New("no such file"),
			expectCode: 2,
		},
		{
			name:       "parse error",
			category:   CategoryParse,
			code:       CodeInvalidFormat,
			message:    "invalid format",
			cause:      nil,
			expectCode: 3,
		},
		{
			name:       "validation error",
			category:   CategoryValidation,
			code:       CodeInvalidAmount,
			message:    "bad amount",
			cause:      nil,
			expectCode: 3,
		},
		{
			name:       "configuration error",
			category:   CategoryConfiguration,
			code:       CodeInvalidConfig,
			message:    "invalid config",
			cause:      errors.New("missing field"),
			expectCode: 4,
		},
		{
			name:       "store error",
			category:   CategoryStore,
			code:       CodeStoreUnavailable,
			message:    "store down",
			cause:      errors.New("connection refused"),
			expectCode: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *EngineError
			if tt.cause != nil {
				err = Wrap(tt.cause, tt.category, tt.code, tt.message)
			} else {
				err = New(tt.category, tt.code, tt.message)
			}

			if err.Category != tt.category {
				t.Errorf("expected category %s, got %s", tt.category, err.Category)
			}
			if err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, err.Code)
			}
			if err.GetExitCode() != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, err.GetExitCode())
			}
			if err.Error() != tt.message {
				t.Errorf("expected error string %s, got %s", tt.message, err.Error())
			}
			if tt.cause != nil && err.Unwrap() != tt.cause {
				t.Errorf("expected to unwrap to %v, got %v", tt.cause, err.Unwrap())
			}
		})
	}
}

func TestEngineErrorWithContext(t *testing.T) {
	err := New(CategoryFile, CodeFileNotFound, "test error").
		WithContext("file", "/path/to/file").
		WithContext("line", 42).
		WithSuggestion("check file path")

	if err.Context["file"] != "/path/to/file" {
		t.Errorf("expected file context '/path/to/file', got %v", err.Context["file"])
	}
	if err.Context["line"] != 42 {
		t.Errorf("expected line context 42, got %v", err.Context["line"])
	}
	if err.Suggestion != "check file path" {
		t.Errorf("expected suggestion 'check file path', got %s", err.Suggestion)
	}
	if !strings.Contains(err.Error(), "suggestion: check file path") {
		t.Errorf("expected suggestion in error string, got %s", err.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      *EngineError
		expected int
	}{
		{"validation maps to 422", ValidationError(CodeInvalidAmount, "amount", "-5", nil), http.StatusUnprocessableEntity},
		{"parse maps to 422", ParseError(CodeInvalidData, "f.csv", 3, "amount", "x", nil), http.StatusUnprocessableEntity},
		{"bad query maps to 400", ValidationError(CodeInvalidQuery, "limit", "abc", nil), http.StatusBadRequest},
		{"not found maps to 404", NotFoundError("transaction", "txn_404"), http.StatusNotFound},
		{"duplicate maps to 409", DuplicateError("settlement", "STL-1"), http.StatusConflict},
		{"store unavailable maps to 500", StoreError(CodeStoreUnavailable, "load transactions", nil), http.StatusInternalServerError},
		{"internal maps to 500", InternalError(CodeUnexpectedError, "reconcile", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatus(); got != tt.expected {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestHTTPStatusFor(t *testing.T) {
	if got := HTTPStatusFor(errors.New("plain")); got != http.StatusInternalServerError {
		t.Errorf("expected 500 for plain error, got %d", got)
	}

	wrapped := Wrap(NotFoundError("match", "m1"), CategoryInternal, CodeUnexpectedError, "outer")
	_ = wrapped
	if got := HTTPStatusFor(NotFoundError("match", "m1")); got != http.StatusNotFound {
		t.Errorf("expected 404, got %d", got)
	}
}

func TestDuplicateError(t *testing.T) {
	err := DuplicateError("transaction", "TXN-001")

	if err.Code != CodeDuplicateRecord {
		t.Errorf("expected code %s, got %s", CodeDuplicateRecord, err.Code)
	}
	if !strings.Contains(err.Message, "transaction TXN-001 already exists") {
		t.Errorf("unexpected message: %s", err.Message)
	}
	if err.Context["external_id"] != "TXN-001" {
		t.Errorf("expected external_id context, got %v", err.Context)
	}
}

func TestNotFoundError(t *testing.T) {
	err := NotFoundError("settlement", "abc-123")

	if err.Category != CategoryStore {
		t.Errorf("expected store category, got %s", err.Category)
	}
	if err.Message != "settlement abc-123 not found" {
		t.Errorf("unexpected message: %s", err.Message)
	}
}

func TestParseErrorContext(t *testing.T) {
	err := ParseError(CodeInvalidData, "transactions.csv", 17, "amount", "12,34x", nil)

	if err.Context["line"] != 17 {
		t.Errorf("expected line 17, got %v", err.Context["line"])
	}
	if err.Context["column"] != "amount" {
		t.Errorf("expected column amount, got %v", err.Context["column"])
	}
	if !strings.Contains(err.Message, "line 17") {
		t.Errorf("expected line in message, got %s", err.Message)
	}
}

func TestErrorSummary(t *testing.T) {
	errs := []*EngineError{
		ValidationError(CodeMissingField, "transaction_id", "", nil),
		ValidationError(CodeInvalidAmount, "amount", "-1", nil),
		DuplicateError("transaction", "TXN-002"),
	}

	summary := NewErrorSummary(errs)

	if summary.Total != 3 {
		t.Errorf("expected total 3, got %d", summary.Total)
	}
	if summary.ByCategory[CategoryValidation] != 2 {
		t.Errorf("expected 2 validation errors, got %d", summary.ByCategory[CategoryValidation])
	}
	if !summary.HasCategory(CategoryStore) {
		t.Error("expected store category present")
	}
	if !summary.HasCode(CodeDuplicateRecord) {
		t.Error("expected duplicate_record code present")
	}
	if summary.GetExitCode() != 6 {
		t.Errorf("expected highest exit code 6, got %d", summary.GetExitCode())
	}
	if len(summary.SampleErrors) != 3 {
		t.Errorf("expected 3 samples, got %d", len(summary.SampleErrors))
	}
}

func TestErrorSummaryEmpty(t *testing.T) {
	summary := NewErrorSummary(nil)

	if summary.Total != 0 {
		t.Errorf("expected total 0, got %d", summary.Total)
	}
	if summary.Error() != "no errors" {
		t.Errorf("unexpected message: %s", summary.Error())
	}
	if summary.GetExitCode() != 0 {
		t.Errorf("expected exit code 0, got %d", summary.GetExitCode())
	}
}

func TestAsEngineError(t *testing.T) {
	inner := StoreError(CodeConstraintViolation, "persist matches", errors.New("fk violation"))

	extracted, ok := AsEngineError(inner)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if extracted.Code != CodeConstraintViolation {
		t.Errorf("expected constraint_violation, got %s", extracted.Code)
	}

	if _, ok := AsEngineError(errors.New("plain")); ok {
		t.Error("expected plain error to not extract")
	}
}

func TestWrapIfNeeded(t *testing.T) {
	original := NotFoundError("adjustment", "a1")
	wrapped := WrapIfNeeded(original, CategoryInternal, CodeUnexpectedError, "outer")

	if wrapped != original {
		t.Error("expected existing EngineError to pass through unchanged")
	}

	plain := errors.New("boom")
	wrapped = WrapIfNeeded(plain, CategoryStore, CodeStoreUnavailable, "query failed")
	if wrapped.Category != CategoryStore {
		t.Errorf("expected store category, got %s", wrapped.Category)
	}
	if wrapped.Unwrap() != plain {
		t.Error("expected cause preserved")
	}

	if WrapIfNeeded(nil, CategoryStore, CodeStoreUnavailable, "x") != nil {
		t.Error("expected nil for nil input")
	}
}
