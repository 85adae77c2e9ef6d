package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func TestGetVersionString(t *testing.T) {
	origVersion, origCommit, origDate := version, commit, date
	defer func() {
		version, commit, date = origVersion, origCommit, origDate
	}()

	version, commit, date = "dev", "abc1234", "2024-06-01"
	if got, want := getVersionString(), "dev (commit abc1234, built 2024-06-01)"; got != want {
		t.Errorf("dev version string: got %q, want %q", got, want)
	}

	version = "1.2.3"
	if got, want := getVersionString(), "1.2.3"; got != want {
		t.Errorf("release version string: got %q, want %q", got, want)
	}
}

func TestBindFlags(t *testing.T) {
	viper.Reset()

	cmd := &cobra.Command{}
	cmd.Flags().String("probe-key", "default-value", "")

	// Missing keys are skipped so shared validators can run against
	// commands that only register a subset of the flags.
	if err := bindFlags(cmd, "probe-key", "missing-key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := viper.GetString("probe-key"); got != "default-value" {
		t.Errorf("bound flag default: got %q, want %q", got, "default-value")
	}

	if err := cmd.Flags().Set("probe-key", "override"); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}
	if got := viper.GetString("probe-key"); got != "override" {
		t.Errorf("bound flag value: got %q, want %q", got, "override")
	}
}

func TestAddMatchingFlags(t *testing.T) {
	cmd := &cobra.Command{}
	addMatchingFlags(cmd)

	tolerance, err := cmd.Flags().GetFloat64("amount-tolerance-percent")
	if err != nil {
		t.Fatalf("amount-tolerance-percent flag: %v", err)
	}
	if tolerance != 5.0 {
		t.Errorf("amount tolerance default: got %v, want 5.0", tolerance)
	}

	window, err := cmd.Flags().GetInt("settlement-window-hours")
	if err != nil {
		t.Fatalf("settlement-window-hours flag: %v", err)
	}
	if window != 72 {
		t.Errorf("settlement window default: got %v, want 72", window)
	}
}
