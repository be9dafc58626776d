package core

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// AmountRoundNone keeps the fractional block count as-is.
	AmountRoundNone    AmountRounding = "none"
	AmountRoundFloor   AmountRounding = "floor"
	AmountRoundCeiling AmountRounding = "ceiling"

	PointsRoundFloor   PointsRounding = "floor"
	PointsRoundCeiling PointsRounding = "ceiling"
	PointsRoundNearest PointsRounding = "nearest"
)

type (
	AmountRounding string
	PointsRounding string

	// BonusTier is a spend-bracket-dependent multiplier. The bracket is
	// half-open [MinSpend, MaxSpend); a nil MaxSpend is unbounded.
	BonusTier struct {
		MinSpend   float64  `json:"min_spend"`
		MaxSpend   *float64 `json:"max_spend,omitempty"`
		Multiplier float64  `json:"multiplier"`
	}

	// RewardSpec describes how a matching rule turns an amount into points.
	RewardSpec struct {
		BaseMultiplier float64 `json:"base_multiplier"`
		// BonusMultiplier is ignored when BonusTiers is non-empty.
		BonusMultiplier float64        `json:"bonus_multiplier"`
		PointsCurrency  string         `json:"points_currency"`
		AmountRounding  AmountRounding `json:"amount_rounding"`
		PointsRounding  PointsRounding `json:"points_rounding"`
		// BlockSize divides the amount before multipliers apply; amounts
		// are counted in whole or fractional blocks depending on
		// AmountRounding.
		BlockSize float64 `json:"block_size"`
		// MonthlyCap is the bonus-points budget per period. Nil means
		// uncapped. Base points are never capped.
		MonthlyCap *int64      `json:"monthly_cap,omitempty"`
		BonusTiers []BonusTier `json:"bonus_tiers,omitempty"`
	}

	// RewardRule binds a condition set and a reward spec to an instrument
	// type. Higher priority rules are evaluated first.
	RewardRule struct {
		ID               uuid.UUID   `json:"id"`
		InstrumentTypeID int64       `json:"instrument_type_id"`
		Name             string      `json:"name"`
		Description      string      `json:"description,omitempty"`
		Enabled          bool        `json:"enabled"`
		Priority         int         `json:"priority"`
		Conditions       []Condition `json:"conditions"`
		Reward           RewardSpec  `json:"reward"`
		CreatedAt        time.Time   `json:"created_at"`
	}
)

func (r AmountRounding) IsValid() bool {
	switch r {
	case AmountRoundNone, AmountRoundFloor, AmountRoundCeiling:
		return true
	default:
		return false
	}
}

func (r PointsRounding) IsValid() bool {
	switch r {
	case PointsRoundFloor, PointsRoundCeiling, PointsRoundNearest:
		return true
	default:
		return false
	}
}

// Apply rounds a fractional block count according to the strategy.
func (r AmountRounding) Apply(units float64) float64 {
	switch r {
	case AmountRoundFloor:
		return math.Floor(units)
	case AmountRoundCeiling:
		return math.Ceil(units)
	default:
		return units
	}
}

// Apply rounds a raw point value according to the strategy. Negative
// inputs clamp to zero; points are never negative.
func (r PointsRounding) Apply(raw float64) int64 {
	if raw <= 0 {
		return 0
	}
	switch r {
	case PointsRoundCeiling:
		return int64(math.Ceil(raw))
	case PointsRoundNearest:
		return int64(math.Round(raw))
	default:
		return int64(math.Floor(raw))
	}
}

// Contains reports whether amount falls inside the tier bracket.
func (t BonusTier) Contains(amount float64) bool {
	if amount < t.MinSpend {
		return false
	}
	return t.MaxSpend == nil || amount < *t.MaxSpend
}

func (s RewardSpec) Validate() error {
	if s.BaseMultiplier < 0 {
		return errors.New("base multiplier must not be negative")
	}
	if s.BonusMultiplier < 0 {
		return errors.New("bonus multiplier must not be negative")
	}
	if s.BlockSize <= 0 {
		return errors.New("block size must be positive")
	}
	if !s.AmountRounding.IsValid() {
		return errors.New("invalid amount rounding strategy")
	}
	if !s.PointsRounding.IsValid() {
		return errors.New("invalid points rounding strategy")
	}
	if s.MonthlyCap != nil && *s.MonthlyCap < 0 {
		return errors.New("monthly cap must not be negative")
	}
	for _, tier := range s.BonusTiers {
		if tier.MinSpend < 0 {
			return errors.New("tier min spend must not be negative")
		}
		if tier.MaxSpend != nil && *tier.MaxSpend <= tier.MinSpend {
			return errors.New("tier max spend must exceed min spend")
		}
		if tier.Multiplier < 0 {
			return errors.New("tier multiplier must not be negative")
		}
	}
	return nil
}

func (r RewardRule) Validate() error {
	if len(strings.TrimSpace(r.Name)) == 0 {
		return ErrEmptyRuleName
	}
	if r.InstrumentTypeID <= 0 {
		return errors.New("missing instrument type")
	}
	for _, c := range r.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	if err := r.Reward.Validate(); err != nil {
		return err
	}
	return nil
}

// NewRewardSpec returns a spec with the defaults a plain cashback-style
// rule needs: whole-amount blocks, floor points rounding, no cap.
func NewRewardSpec(baseMultiplier float64, pointsCurrency string) RewardSpec {
	return RewardSpec{
		BaseMultiplier: baseMultiplier,
		PointsCurrency: pointsCurrency,
		AmountRounding: AmountRoundNone,
		PointsRounding: PointsRoundFloor,
		BlockSize:      1,
	}
}
