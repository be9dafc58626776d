package core

import (
	"fmt"
	"time"
)

// PeriodKey buckets spend tracking. It is opaque to the tracker: callers
// derive it from either the calendar month or an instrument-specific
// statement cycle and the tracker only compares it for equality.
type PeriodKey string

// MonthPeriodKey returns the calendar-month key for a date, e.g. "2026-08".
func MonthPeriodKey(d Date) PeriodKey {
	return PeriodKey(fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month())))
}

// StatementPeriodKey returns the statement-cycle key for a date given the
// day of month the cycle starts. A transaction before the cycle start day
// belongs to the cycle that began the previous month. The key is labeled
// by the cycle's start date, e.g. "2026-07-15".
func StatementPeriodKey(d Date, cycleStartDay int) PeriodKey {
	if cycleStartDay <= 1 {
		return MonthPeriodKey(d)
	}
	start := time.Date(d.Year(), d.Time.Month(), cycleStartDay, 0, 0, 0, 0, time.UTC)
	if d.Time.Before(start) {
		start = start.AddDate(0, -1, 0)
	}
	return PeriodKey(start.Format("2006-01-02"))
}

// PeriodKeyFor derives the spend-tracking key for a transaction date on
// the given instrument, honoring its statement cycle when configured.
func PeriodKeyFor(i Instrument, d Date) PeriodKey {
	if i.StatementCycleDay > 1 {
		return StatementPeriodKey(d, i.StatementCycleDay)
	}
	return MonthPeriodKey(d)
}
