package tracker

import (
	"context"
	"testing"

	"miles/internal/core"
)

func TestMemoryTrackerUsedDefaultsToZero(t *testing.T) {
	tr := NewMemoryTracker()
	got, err := tr.Used(context.Background(), 1, "2026-08")
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("Used on unknown period = %d, want 0", got)
	}
}

func TestMemoryTrackerRecordAccumulates(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTracker()
	period := core.PeriodKey("2026-08")

	_ = tr.Record(ctx, 1, period, 100)
	_ = tr.Record(ctx, 1, period, 250)

	got, _ := tr.Used(ctx, 1, period)
	if got != 350 {
		t.Errorf("Used = %d, want 350", got)
	}

	// Other instruments and periods are independent buckets.
	if other, _ := tr.Used(ctx, 2, period); other != 0 {
		t.Errorf("other instrument leaked: %d", other)
	}
	if other, _ := tr.Used(ctx, 1, "2026-09"); other != 0 {
		t.Errorf("period rollover: new period should start at 0, got %d", other)
	}
}

func TestMemoryTrackerRecordIgnoresNonPositive(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTracker()
	period := core.PeriodKey("2026-08")

	_ = tr.Record(ctx, 1, period, 100)
	_ = tr.Record(ctx, 1, period, 0)
	_ = tr.Record(ctx, 1, period, -50)

	got, _ := tr.Used(ctx, 1, period)
	if got != 100 {
		t.Errorf("Used = %d, want 100 (usage is non-decreasing)", got)
	}
}

func TestMemoryTrackerRecalculateIdempotent(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTracker()
	period := core.PeriodKey("2026-08")

	// Drifted state from a partial failure.
	_ = tr.Record(ctx, 1, period, 9999)

	history := []BonusEntry{
		{Date: core.NewDate(2026, 8, 2), Points: 120},
		{Date: core.NewDate(2026, 8, 15), Points: 80},
		{Date: core.NewDate(2026, 8, 20), Points: -5}, // ignored
	}

	for i := 0; i < 3; i++ {
		if err := tr.Recalculate(ctx, 1, period, history); err != nil {
			t.Fatalf("Recalculate run %d: %v", i, err)
		}
		got, _ := tr.Used(ctx, 1, period)
		if got != 200 {
			t.Errorf("run %d: Used = %d, want 200", i, got)
		}
	}
}

func TestSumHistory(t *testing.T) {
	if got := SumHistory(nil); got != 0 {
		t.Errorf("SumHistory(nil) = %d", got)
	}
	entries := []BonusEntry{{Points: 10}, {Points: 0}, {Points: -3}, {Points: 5}}
	if got := SumHistory(entries); got != 15 {
		t.Errorf("SumHistory = %d, want 15", got)
	}
}
