package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"payment-reconciliation-engine/internal/reconciler"
)

// Format selects the rendering of a report written to a CLI stream.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// IsValid checks if the output format is supported.
func (f Format) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON:
		return true
	default:
		return false
	}
}

// WriteRunReport renders a reconciliation run report to the writer.
func WriteRunReport(w io.Writer, report *reconciler.RunReport, format Format) error {
	if report == nil {
		return fmt.Errorf("run report cannot be nil")
	}

	switch format {
	case FormatJSON:
		return writeJSON(w, report)
	case FormatConsole, "":
		return writeRunReportConsole(w, report)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteDiscrepancyReport renders a discrepancy listing to the writer.
func WriteDiscrepancyReport(w io.Writer, report *Report, format Format) error {
	if report == nil {
		return fmt.Errorf("discrepancy report cannot be nil")
	}

	switch format {
	case FormatJSON:
		return writeJSON(w, report)
	case FormatConsole, "":
		return writeDiscrepancyReportConsole(w, report)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeRunReportConsole(w io.Writer, report *reconciler.RunReport) error {
	var b strings.Builder

	b.WriteString(sectionHeader("RECONCILIATION RUN"))
	fmt.Fprintf(&b, "  Matched pairs:           %d\n", report.Matched)
	fmt.Fprintf(&b, "  Unmatched transactions:  %d\n", report.UnmatchedTransactions)
	fmt.Fprintf(&b, "  Unmatched settlements:   %d\n", report.UnmatchedSettlements)
	fmt.Fprintf(&b, "  Unmatched adjustments:   %d\n", report.UnmatchedAdjustments)
	fmt.Fprintf(&b, "  Amount mismatches:       %d\n", report.AmountMismatches)
	fmt.Fprintf(&b, "  Processing time:         %dms\n", report.ProcessingTimeMs)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeDiscrepancyReportConsole(w io.Writer, report *Report) error {
	var b strings.Builder

	b.WriteString(sectionHeader("DISCREPANCIES"))
	if len(report.Discrepancies) == 0 {
		b.WriteString("  No discrepancies found.\n")
	}
	for _, entry := range report.Discrepancies {
		fmt.Fprintf(&b, "  [%-6s] %-22s %-16s %s %s (%s USD, %dd old)\n",
			strings.ToUpper(string(entry.Priority)), entry.Type, entry.RecordID,
			entry.Amount.StringFixed(2), entry.Currency, entry.AmountUSD.StringFixed(2), entry.AgeDays)
		if entry.Description != "" {
			fmt.Fprintf(&b, "           %s\n", entry.Description)
		}
		for _, suggestion := range entry.SuggestedMatches {
			fmt.Fprintf(&b, "           candidate %s (confidence %d: %s)\n",
				suggestion.CandidateID, suggestion.Confidence, strings.Join(suggestion.Reasons, ", "))
		}
	}
	if report.Total > len(report.Discrepancies) {
		fmt.Fprintf(&b, "  Showing %d of %d entries.\n", len(report.Discrepancies), report.Total)
	}

	if report.Summary != nil {
		b.WriteString(sectionHeader("SUMMARY"))
		writeSummaryConsole(&b, report.Summary)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeSummaryConsole(b *strings.Builder, summary *Summary) {
	fmt.Fprintf(b, "  Total discrepancies:     %d\n", summary.TotalDiscrepancies)
	fmt.Fprintf(b, "  Unmatched value (USD):   %s\n", summary.TotalUnmatchedValueUSD.StringFixed(2))

	currencies := make([]string, 0, len(summary.UnmatchedByCurrency))
	for code := range summary.UnmatchedByCurrency {
		currencies = append(currencies, code)
	}
	sort.Strings(currencies)
	for _, code := range currencies {
		fmt.Fprintf(b, "    %s: %s\n", code, summary.UnmatchedByCurrency[code].StringFixed(2))
	}

	fmt.Fprintf(b, "  Avg settlement time:     %.2fh\n", summary.AvgSettlementTimeHours)
	fmt.Fprintf(b, "  Chargeback rate:         %.4f\n", summary.ChargebackRate)
	fmt.Fprintf(b, "  Orphaned records:        %d\n", summary.OrphanedRecords)
	if summary.FeeInconsistencies > 0 {
		fmt.Fprintf(b, "  Fee inconsistencies:     %d\n", summary.FeeInconsistencies)
	}
	if summary.PossibleDuplicates > 0 {
		fmt.Fprintf(b, "  Possible duplicates:     %d\n", summary.PossibleDuplicates)
	}
}

func sectionHeader(title string) string {
	return fmt.Sprintf("%s\n%s\n%s\n", strings.Repeat("=", 60), title, strings.Repeat("=", 60))
}
