package google

import (
	"context"
	"testing"
)

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		name string
		base string
		year int
		want string
	}{
		{"plain base", "Rewards", 2026, "2026 Rewards"},
		{"already prefixed", "2026 Rewards", 2026, "2026 Rewards"},
		{"other year kept as base", "2025 Rewards", 2026, "2026 2025 Rewards"},
		{"whitespace trimmed", "  Rewards  ", 2026, "2026 Rewards"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := yearPrefixedName(tt.base, tt.year)
			if got != tt.want {
				t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
			}
		})
	}
}

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	_, err := NewFromEnv(context.Background())
	if err == nil {
		t.Fatal("NewFromEnv should fail without GOOGLE_SPREADSHEET_ID")
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "spreadsheet-id")
	t.Setenv("GOOGLE_CREDENTIALS_JSON", "")
	t.Setenv("GOOGLE_CREDENTIALS_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromEnv(context.Background())
	if err == nil {
		t.Fatal("NewFromEnv should fail without credentials")
	}
}

func TestAppend_NoService(t *testing.T) {
	c := &Client{spreadsheetID: "x", reportSheet: "2026 Rewards"}

	_, err := c.Append(context.Background(), ReportRowFixture())
	if err == nil {
		t.Fatal("Append should fail when service is not initialized")
	}
}
