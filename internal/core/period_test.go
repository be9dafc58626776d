package core

import "testing"

func TestMonthPeriodKey(t *testing.T) {
	if got := MonthPeriodKey(NewDate(2026, 8, 29)); got != "2026-08" {
		t.Errorf("MonthPeriodKey = %q, want 2026-08", got)
	}
	if got := MonthPeriodKey(NewDate(2026, 1, 1)); got != "2026-01" {
		t.Errorf("MonthPeriodKey = %q, want 2026-01", got)
	}
}

func TestStatementPeriodKey(t *testing.T) {
	tests := []struct {
		name     string
		date     Date
		cycleDay int
		want     PeriodKey
	}{
		{"on cycle start", NewDate(2026, 8, 15), 15, "2026-08-15"},
		{"after cycle start", NewDate(2026, 8, 20), 15, "2026-08-15"},
		{"before cycle start", NewDate(2026, 8, 10), 15, "2026-07-15"},
		{"january rollover", NewDate(2026, 1, 5), 15, "2025-12-15"},
		{"zero day falls back to month", NewDate(2026, 8, 10), 0, "2026-08"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatementPeriodKey(tt.date, tt.cycleDay); got != tt.want {
				t.Errorf("StatementPeriodKey = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPeriodKeyFor(t *testing.T) {
	date := NewDate(2026, 8, 10)
	monthly := Instrument{ID: 1, Name: "a", Kind: CreditCard, TypeID: 1}
	cycled := Instrument{ID: 2, Name: "b", Kind: CreditCard, TypeID: 1, StatementCycleDay: 15}

	if got := PeriodKeyFor(monthly, date); got != "2026-08" {
		t.Errorf("PeriodKeyFor(monthly) = %q", got)
	}
	if got := PeriodKeyFor(cycled, date); got != "2026-07-15" {
		t.Errorf("PeriodKeyFor(cycled) = %q", got)
	}
}
