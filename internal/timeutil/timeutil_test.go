package timeutil

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, layout, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(layout, value)
	if err != nil {
		t.Fatalf("Failed to parse %q: %v", value, err)
	}
	return parsed
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected int
	}{
		{"Same instant", "2024-01-15T10:00:00Z", "2024-01-15T10:00:00Z", 0},
		{"Same day different hours", "2024-01-15T23:59:00Z", "2024-01-15T00:01:00Z", 0},
		{"Adjacent days close instants", "2024-01-16T00:01:00Z", "2024-01-15T23:59:00Z", 1},
		{"Two days apart", "2024-01-17T08:00:00Z", "2024-01-15T10:00:00Z", 2},
		{"Order insensitive", "2024-01-15T10:00:00Z", "2024-01-17T08:00:00Z", 2},
		{"Across month boundary", "2024-02-01T00:00:00Z", "2024-01-30T12:00:00Z", 2},
		{"Forty five days", "2024-02-15T00:00:00Z", "2024-01-01T10:00:00Z", 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mustParse(t, time.RFC3339, tt.a)
			b := mustParse(t, time.RFC3339, tt.b)
			if got := DaysBetween(a, b); got != tt.expected {
				t.Errorf("DaysBetween(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestDaysBetween_UsesLocalCivilDate(t *testing.T) {
	// 2024-01-15T23:00 in UTC-5 is 2024-01-16T04:00 UTC. The civil date in
	// the value's own zone is what counts.
	loc := time.FixedZone("UTC-5", -5*3600)
	a := time.Date(2024, 1, 15, 23, 0, 0, 0, loc)
	b := mustParse(t, time.RFC3339, "2024-01-15T10:00:00Z")

	if got := DaysBetween(a, b); got != 0 {
		t.Errorf("DaysBetween across zones = %d, want 0", got)
	}
}

func TestHoursBetween(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected float64
	}{
		{"Same instant", "2024-01-15T10:00:00Z", "2024-01-15T10:00:00Z", 0},
		{"Exactly 48 hours", "2024-01-17T10:00:00Z", "2024-01-15T10:00:00Z", 48},
		{"Order insensitive", "2024-01-15T10:00:00Z", "2024-01-17T10:00:00Z", 48},
		{"Half hour", "2024-01-15T10:30:00Z", "2024-01-15T10:00:00Z", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mustParse(t, time.RFC3339, tt.a)
			b := mustParse(t, time.RFC3339, tt.b)
			if got := HoursBetween(a, b); got != tt.expected {
				t.Errorf("HoursBetween(%s, %s) = %f, want %f", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestLiftDate(t *testing.T) {
	loc := time.FixedZone("UTC-6", -6*3600)
	ref := time.Date(2024, 1, 15, 10, 0, 0, 0, loc)
	date := mustParse(t, "2006-01-02", "2024-01-16")

	lifted := LiftDate(date, ref)

	if lifted.Hour() != 0 || lifted.Minute() != 0 {
		t.Errorf("Expected start of day, got %s", lifted)
	}
	if lifted.Location() != loc {
		t.Errorf("Expected reference zone %v, got %v", loc, lifted.Location())
	}

	// Midnight in UTC-6 is 06:00 UTC
	if got := lifted.UTC().Hour(); got != 6 {
		t.Errorf("Expected 06:00 UTC, got %02d:00", got)
	}
}

func TestLiftDate_WindowCheck(t *testing.T) {
	// A settlement dated one calendar day after a morning transaction sits
	// well inside a 72 hour window once the date is lifted.
	txnTime := mustParse(t, time.RFC3339, "2024-01-15T10:00:00Z")
	settleDate := mustParse(t, "2006-01-02", "2024-01-17")

	hours := HoursBetween(LiftDate(settleDate, txnTime), txnTime)
	if hours != 38 {
		t.Errorf("Expected 38 hours, got %f", hours)
	}
	if hours > 72 {
		t.Error("Expected the pair to sit inside a 72 hour window")
	}
}
