package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"miles/internal/core"
)

// MemoryTracker is an in-memory Tracker for tests and single-process
// deployments without a database.
type MemoryTracker struct {
	mu      sync.Mutex
	records map[string]*periodRecord
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{records: make(map[string]*periodRecord)}
}

var _ Tracker = (*MemoryTracker)(nil)

func key(instrumentID int64, period core.PeriodKey) string {
	return fmt.Sprintf("%d@%s", instrumentID, period)
}

func (t *MemoryTracker) Used(_ context.Context, instrumentID int64, period core.PeriodKey) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[key(instrumentID, period)]; ok {
		return rec.used, nil
	}
	return 0, nil
}

func (t *MemoryTracker) Record(_ context.Context, instrumentID int64, period core.PeriodKey, delta int64) error {
	if delta <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key(instrumentID, period)
	rec, ok := t.records[k]
	if !ok {
		rec = &periodRecord{}
		t.records[k] = rec
	}
	rec.used += delta
	rec.updatedAt = time.Now()
	return nil
}

func (t *MemoryTracker) Recalculate(_ context.Context, instrumentID int64, period core.PeriodKey, history []BonusEntry) error {
	total := SumHistory(history)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[key(instrumentID, period)] = &periodRecord{used: total, updatedAt: time.Now()}
	return nil
}
