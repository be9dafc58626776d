// Package rules provides storage and retrieval of reward rules per
// instrument type, priority-ordered, with an optional read cache.
package rules

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"miles/internal/core"
)

// Store is the rule persistence contract. Listings return rules sorted
// by priority descending; among equal priorities older rules come
// first (creation time, then id) so evaluation order is deterministic.
type Store interface {
	// ListRules returns every rule for the instrument type, enabled or
	// not, priority-sorted.
	ListRules(ctx context.Context, instrumentTypeID int64) ([]core.RewardRule, error)

	// CreateRule validates and persists a new rule, assigning its id
	// and creation time. Returns core.ErrEmptyRuleName or
	// core.ErrInvalidCondition wrapped on bad input.
	CreateRule(ctx context.Context, rule core.RewardRule) (core.RewardRule, error)

	// UpdateRule overwrites every field of an existing rule except its
	// id and creation time. Returns core.ErrRuleNotFound for unknown ids.
	UpdateRule(ctx context.Context, rule core.RewardRule) error

	// DeleteRule removes a rule. Deleting an unknown id is a no-op.
	DeleteRule(ctx context.Context, id uuid.UUID) error
}

// SortByPriority orders rules for evaluation: priority descending, then
// creation time ascending, then id ascending. The tie-break makes the
// winner among equal-priority rules stable across stores.
func SortByPriority(list []core.RewardRule) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

// FilterEnabled returns only the enabled rules, preserving order.
func FilterEnabled(list []core.RewardRule) []core.RewardRule {
	out := make([]core.RewardRule, 0, len(list))
	for _, r := range list {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}
