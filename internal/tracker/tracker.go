// Package tracker tracks bonus points consumed per instrument per
// period and enforces monthly caps through the reward calculator.
package tracker

import (
	"context"
	"time"

	"miles/internal/core"
)

// BonusEntry is one historical bonus award, supplied by the external
// spend-history source when rebuilding a period total.
type BonusEntry struct {
	Date   core.Date
	Points int64
}

// Tracker is the spend-tracking contract. Used returns 0 for unknown
// (instrument, period) pairs; periods roll over lazily because a new
// period key simply has no record yet.
type Tracker interface {
	Used(ctx context.Context, instrumentID int64, period core.PeriodKey) (int64, error)
	Record(ctx context.Context, instrumentID int64, period core.PeriodKey, deltaBonusPoints int64) error

	// Recalculate replaces the cumulative total for a period by
	// replaying history. Safe to run repeatedly; used to correct drift
	// after partial failures.
	Recalculate(ctx context.Context, instrumentID int64, period core.PeriodKey, history []BonusEntry) error
}

// SumHistory totals the bonus points of a replayed history. Negative
// entries are ignored: bonus usage within a period is non-decreasing.
func SumHistory(history []BonusEntry) int64 {
	var total int64
	for _, e := range history {
		if e.Points > 0 {
			total += e.Points
		}
	}
	return total
}

// periodRecord is one (instrument, period) bucket.
type periodRecord struct {
	used      int64
	updatedAt time.Time
}
