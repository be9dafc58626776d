// Package engine implements reward rule evaluation: condition matching,
// points calculation with tiers and monthly caps, points-to-currency
// conversion, and multi-instrument simulation. All collaborators (rule
// source, spend tracker, rate source) are injected so tests can
// substitute fakes.
package engine

import (
	"strings"

	"miles/internal/core"
)

// Matches reports whether every condition in the set holds for the
// candidate. An empty set matches unconditionally (catch-all rule).
func Matches(conditions []core.Condition, c core.TransactionCandidate) bool {
	for _, cond := range conditions {
		if !matchOne(cond, c) {
			return false
		}
	}
	return true
}

// matchOne evaluates a single condition. A condition whose required
// field is absent on the candidate is false, never true (fail closed).
func matchOne(cond core.Condition, c core.TransactionCandidate) bool {
	switch cond.Kind {
	case core.ConditionMCC:
		return matchMCC(cond, c.MCC)
	case core.ConditionMerchant:
		return matchMerchant(cond, c.MerchantName)
	case core.ConditionCurrency:
		return matchCurrency(cond, c.Currency)
	case core.ConditionOnlineOnly:
		return c.Online
	case core.ConditionContactlessOnly:
		return c.Contactless
	default:
		return false
	}
}

func matchMCC(cond core.Condition, mcc string) bool {
	listed := false
	for _, v := range cond.Values {
		if v == mcc {
			listed = true
			break
		}
	}
	switch cond.Op {
	case core.OpInclude:
		return mcc != "" && listed
	case core.OpExclude:
		return mcc == "" || !listed
	default:
		return false
	}
}

// matchMerchant compares case-insensitively, exact or substring.
// Substring covers services that suffix a location or order id onto
// their settlement name ("GRAB* 5523-7781").
func matchMerchant(cond core.Condition, merchant string) bool {
	name := strings.ToLower(strings.TrimSpace(merchant))
	listed := false
	if name != "" {
		for _, v := range cond.Values {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "" {
				continue
			}
			if name == v || strings.Contains(name, v) {
				listed = true
				break
			}
		}
	}
	switch cond.Op {
	case core.OpInclude:
		return name != "" && listed
	case core.OpExclude:
		return name == "" || !listed
	default:
		return false
	}
}

func matchCurrency(cond core.Condition, currency string) bool {
	listed := false
	for _, v := range cond.Values {
		if strings.EqualFold(v, currency) {
			listed = true
			break
		}
	}
	switch cond.Op {
	case core.OpEquals:
		return currency != "" && listed
	case core.OpExclude:
		return currency == "" || !listed
	default:
		return false
	}
}
