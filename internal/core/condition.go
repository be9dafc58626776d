package core

import (
	"fmt"
	"strings"
)

const (
	// Condition kinds. The original dashboards model these as loose
	// strings; here the pair (Kind, Op) is a closed set so illegal
	// condition shapes cannot be stored.
	ConditionMCC             ConditionKind = "mcc"
	ConditionMerchant        ConditionKind = "merchant"
	ConditionCurrency        ConditionKind = "currency"
	ConditionOnlineOnly      ConditionKind = "online-only"
	ConditionContactlessOnly ConditionKind = "contactless-only"

	OpInclude ConditionOp = "include"
	OpExclude ConditionOp = "exclude"
	OpEquals  ConditionOp = "equals"
)

type (
	ConditionKind string
	ConditionOp   string

	// Condition is one predicate of a rule's condition set. All
	// conditions of a rule must hold; an empty set is a catch-all.
	// Values is empty for the boolean-flag kinds.
	Condition struct {
		Kind   ConditionKind `json:"kind"`
		Op     ConditionOp   `json:"op"`
		Values []string      `json:"values,omitempty"`
	}
)

// allowedOps maps each condition kind to the operations it supports.
var allowedOps = map[ConditionKind][]ConditionOp{
	ConditionMCC:             {OpInclude, OpExclude},
	ConditionMerchant:        {OpInclude, OpExclude},
	ConditionCurrency:        {OpEquals, OpExclude},
	ConditionOnlineOnly:      {OpEquals},
	ConditionContactlessOnly: {OpEquals},
}

func (c Condition) Validate() error {
	ops, ok := allowedOps[c.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCondition, c.Kind)
	}
	supported := false
	for _, op := range ops {
		if op == c.Op {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("%w: kind %q does not support op %q", ErrInvalidCondition, c.Kind, c.Op)
	}
	switch c.Kind {
	case ConditionOnlineOnly, ConditionContactlessOnly:
		if len(c.Values) != 0 {
			return fmt.Errorf("%w: %q takes no values", ErrInvalidCondition, c.Kind)
		}
	default:
		if len(c.Values) == 0 {
			return fmt.Errorf("%w: %q requires at least one value", ErrInvalidCondition, c.Kind)
		}
		for _, v := range c.Values {
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("%w: %q has an empty value", ErrInvalidCondition, c.Kind)
			}
		}
	}
	return nil
}

// MCCInclude builds an mcc/include condition.
func MCCInclude(codes ...string) Condition {
	return Condition{Kind: ConditionMCC, Op: OpInclude, Values: codes}
}

// MCCExclude builds an mcc/exclude condition.
func MCCExclude(codes ...string) Condition {
	return Condition{Kind: ConditionMCC, Op: OpExclude, Values: codes}
}

// MerchantInclude builds a merchant/include condition. Matching is
// case-insensitive, exact or substring.
func MerchantInclude(names ...string) Condition {
	return Condition{Kind: ConditionMerchant, Op: OpInclude, Values: names}
}

// CurrencyEquals builds a currency/equals condition.
func CurrencyEquals(currencies ...string) Condition {
	return Condition{Kind: ConditionCurrency, Op: OpEquals, Values: currencies}
}

// CurrencyExclude builds a currency/exclude condition.
func CurrencyExclude(currencies ...string) Condition {
	return Condition{Kind: ConditionCurrency, Op: OpExclude, Values: currencies}
}

// OnlineOnly builds an online-only condition.
func OnlineOnly() Condition {
	return Condition{Kind: ConditionOnlineOnly, Op: OpEquals}
}

// ContactlessOnly builds a contactless-only condition.
func ContactlessOnly() Condition {
	return Condition{Kind: ConditionContactlessOnly, Op: OpEquals}
}
