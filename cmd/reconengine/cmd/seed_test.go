package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"payment-reconciliation-engine/cmd/reconengine/config"
)

func resetSeedFlags() {
	seedValue = 42
	seedTransactions = 200
	seedStartDateRaw = "2024-01-01"
	seedDays = 30
	seedOutputDir = ""
	seedStartDate = time.Time{}
}

func TestValidateSeedFlags(t *testing.T) {
	tests := []struct {
		name          string
		setupFlags    func()
		expectError   bool
		errorContains string
	}{
		{
			name: "output dir target",
			setupFlags: func() {
				seedOutputDir = "./demo"
			},
			expectError: false,
		},
		{
			name: "database target",
			setupFlags: func() {
				viper.Set(config.KeyDatabaseURL, "postgres://recon@localhost/recon")
			},
			expectError: false,
		},
		{
			name:          "no target",
			setupFlags:    func() {},
			expectError:   true,
			errorContains: "missing required configuration",
		},
		{
			name: "invalid start date",
			setupFlags: func() {
				seedOutputDir = "./demo"
				seedStartDateRaw = "January 1st"
			},
			expectError:   true,
			errorContains: "invalid date in field 'start-date'",
		},
		{
			name: "zero transactions",
			setupFlags: func() {
				seedOutputDir = "./demo"
				seedTransactions = 0
			},
			expectError:   true,
			errorContains: "value out of range in field 'transactions'",
		},
		{
			name: "negative days",
			setupFlags: func() {
				seedOutputDir = "./demo"
				seedDays = -1
			},
			expectError:   true,
			errorContains: "value out of range in field 'days'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			resetSeedFlags()
			tt.setupFlags()

			err := validateSeedFlags(&cobra.Command{}, []string{})

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				} else if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("expected error to contain '%s', got: %v", tt.errorContains, err)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestValidateSeedFlagsParsesStartDate(t *testing.T) {
	viper.Reset()
	resetSeedFlags()
	seedOutputDir = "./demo"
	seedStartDateRaw = "2024-06-15"

	if err := validateSeedFlags(&cobra.Command{}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	if !seedStartDate.Equal(want) {
		t.Errorf("start date: got %v, want %v", seedStartDate, want)
	}
}
