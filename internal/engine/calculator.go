package engine

import (
	"context"
	"fmt"
	"log/slog"

	"miles/internal/core"
)

// RuleSource supplies enabled rules for an instrument type, sorted by
// priority descending with a deterministic tie-break.
type RuleSource interface {
	ListEnabled(ctx context.Context, instrumentTypeID int64) ([]core.RewardRule, error)
}

// SpendTracker tracks bonus points already consumed per instrument per
// period. Used returns 0 for unknown periods; Record must be called at
// most once per committed calculation.
type SpendTracker interface {
	Used(ctx context.Context, instrumentID int64, period core.PeriodKey) (int64, error)
	Record(ctx context.Context, instrumentID int64, period core.PeriodKey, deltaBonusPoints int64) error
}

// InstrumentSource resolves instrument references. Lookup of an unknown
// id returns core.ErrInstrumentNotFound.
type InstrumentSource interface {
	Instrument(ctx context.Context, id int64) (core.Instrument, error)
}

// Calculator selects the winning rule for a transaction candidate and
// computes base and bonus points, consulting the spend tracker for
// monthly-cap clipping.
type Calculator struct {
	rules       RuleSource
	tracker     SpendTracker
	instruments InstrumentSource
}

func NewCalculator(rules RuleSource, tracker SpendTracker, instruments InstrumentSource) *Calculator {
	return &Calculator{
		rules:       rules,
		tracker:     tracker,
		instruments: instruments,
	}
}

// Calculate computes points for the candidate and records consumed bonus
// budget in the spend tracker.
func (c *Calculator) Calculate(ctx context.Context, candidate core.TransactionCandidate) (core.CalculationResult, error) {
	return c.run(ctx, candidate, true)
}

// Quote computes points for a hypothetical transaction without recording
// bonus usage. Simulation uses this so ranking many instruments does not
// consume anyone's cap budget.
func (c *Calculator) Quote(ctx context.Context, candidate core.TransactionCandidate) (core.CalculationResult, error) {
	return c.run(ctx, candidate, false)
}

func (c *Calculator) run(ctx context.Context, candidate core.TransactionCandidate, commit bool) (core.CalculationResult, error) {
	instrument, err := c.instruments.Instrument(ctx, candidate.InstrumentID)
	if err != nil {
		return core.CalculationResult{}, fmt.Errorf("resolve instrument %d: %w", candidate.InstrumentID, err)
	}

	// A zero or negative amount is normal input (reversals, fee waivers)
	// and yields an empty result, not an error.
	if candidate.Amount.Cents <= 0 {
		return core.CalculationResult{
			PointsCurrency: instrument.PointsCurrency,
			Messages:       []string{"non-positive amount, no points earned"},
		}, nil
	}

	rules, err := c.rules.ListEnabled(ctx, instrument.TypeID)
	if err != nil {
		return core.CalculationResult{}, fmt.Errorf("list rules for type %d: %w", instrument.TypeID, err)
	}

	result := core.CalculationResult{PointsCurrency: instrument.PointsCurrency}

	rule, matched := firstMatch(rules, candidate)
	spec := rule.Reward
	if matched {
		result.AppliedRule = &rule
		if spec.PointsCurrency != "" {
			result.PointsCurrency = spec.PointsCurrency
		}
	} else {
		// Operators normally define an explicit catch-all; without one
		// the engine falls back to a flat 1x base rule.
		spec = core.NewRewardSpec(1, instrument.PointsCurrency)
		result.Messages = append(result.Messages, "no matching rule, default 1x base rate applied")
	}

	amount := candidate.Amount.Amount()
	units := spec.AmountRounding.Apply(amount / spec.BlockSize)
	effective := units * spec.BlockSize

	result.BasePoints = spec.PointsRounding.Apply(effective * spec.BaseMultiplier)

	bonusMultiplier := spec.BonusMultiplier
	if len(spec.BonusTiers) > 0 {
		// Tier lookup uses the single transaction amount, not the
		// cumulative period spend.
		bonusMultiplier = 0
		for i := range spec.BonusTiers {
			if spec.BonusTiers[i].Contains(amount) {
				bonusMultiplier = spec.BonusTiers[i].Multiplier
				result.AppliedTier = &spec.BonusTiers[i]
				break
			}
		}
		if result.AppliedTier == nil {
			result.Messages = append(result.Messages, "amount outside all bonus tiers")
		}
	}

	rawBonus := spec.PointsRounding.Apply(effective * bonusMultiplier)
	bonus, remaining, err := c.clipToCap(ctx, instrument, candidate.Date, spec.MonthlyCap, rawBonus, commit)
	if err != nil {
		return core.CalculationResult{}, err
	}
	result.BonusPoints = bonus
	result.RemainingMonthlyCap = remaining
	if remaining != nil && bonus < rawBonus {
		result.Messages = append(result.Messages, "monthly bonus cap reached")
	}
	if rawBonus == 0 && result.AppliedTier == nil && len(spec.BonusTiers) == 0 && spec.BonusMultiplier == 0 {
		result.Messages = append(result.Messages, "not eligible for bonus")
	}

	result.TotalPoints = result.BasePoints + result.BonusPoints

	slog.DebugContext(ctx, "Reward calculated",
		"instrument_id", instrument.ID,
		"base_points", result.BasePoints,
		"bonus_points", result.BonusPoints,
		"committed", commit)

	return result, nil
}

// clipToCap enforces the monthly bonus budget. Base points are never
// capped; only bonus points consume the budget. When commit is true the
// new cumulative usage is written back to the tracker.
func (c *Calculator) clipToCap(ctx context.Context, instrument core.Instrument, date core.Date, cap *int64, rawBonus int64, commit bool) (int64, *int64, error) {
	if cap == nil {
		return rawBonus, nil, nil
	}

	period := core.PeriodKeyFor(instrument, date)
	used, err := c.tracker.Used(ctx, instrument.ID, period)
	if err != nil {
		return 0, nil, fmt.Errorf("read spend tracker: %w", err)
	}

	remaining := *cap - used
	if remaining < 0 {
		remaining = 0
	}
	bonus := rawBonus
	if bonus > remaining {
		bonus = remaining
	}

	if commit && bonus > 0 {
		if err := c.tracker.Record(ctx, instrument.ID, period, bonus); err != nil {
			return 0, nil, fmt.Errorf("record spend tracker: %w", err)
		}
	}

	after := remaining - bonus
	return bonus, &after, nil
}

// firstMatch returns the highest-priority enabled rule whose conditions
// all hold. Rules arrive priority-sorted from the source, so the first
// hit wins.
func firstMatch(rules []core.RewardRule, candidate core.TransactionCandidate) (core.RewardRule, bool) {
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if Matches(rule.Conditions, candidate) {
			return rule, true
		}
	}
	return core.RewardRule{}, false
}
