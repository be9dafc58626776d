package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"miles/internal/core"
)

// MemoryStore is an in-memory Store used by tests and the simulator
// when no database is configured.
type MemoryStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]core.RewardRule
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[uuid.UUID]core.RewardRule)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) ListRules(_ context.Context, instrumentTypeID int64) ([]core.RewardRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RewardRule, 0)
	for _, r := range s.items {
		if r.InstrumentTypeID == instrumentTypeID {
			out = append(out, r)
		}
	}
	SortByPriority(out)
	return out, nil
}

func (s *MemoryStore) CreateRule(_ context.Context, rule core.RewardRule) (core.RewardRule, error) {
	if err := rule.Validate(); err != nil {
		return core.RewardRule{}, fmt.Errorf("validate rule: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	s.items[rule.ID] = rule
	return rule, nil
}

func (s *MemoryStore) UpdateRule(_ context.Context, rule core.RewardRule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("validate rule: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.items[rule.ID]
	if !ok {
		return core.ErrRuleNotFound
	}
	// ID and creation time are immutable.
	rule.CreatedAt = existing.CreatedAt
	s.items[rule.ID] = rule
	return nil
}

func (s *MemoryStore) DeleteRule(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}
