package core

import (
	"errors"
	"strings"
	"time"
)

const (
	CreditCard  InstrumentKind = "credit"
	DebitCard   InstrumentKind = "debit"
	PrepaidCard InstrumentKind = "prepaid"
	Cash        InstrumentKind = "cash"
)

type (
	InstrumentKind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Instrument is a payment method a transaction is charged against.
	// TypeID groups instruments that share the same reward rule set
	// (e.g. all cards of one product line).
	Instrument struct {
		ID             int64
		Name           string
		Kind           InstrumentKind
		TypeID         int64
		Active         bool
		PointsCurrency string
		// StatementCycleDay is the day of month the statement cycle
		// starts. Zero means calendar-month periods.
		StatementCycleDay int
	}

	// TransactionCandidate is the immutable input to the reward engine.
	// The engine never mutates or persists it.
	TransactionCandidate struct {
		Amount            Money
		Currency          string
		ConvertedAmount   *Money
		ConvertedCurrency string
		MCC               string // empty when unknown
		MerchantName      string
		Online            bool
		Contactless       bool
		Date              Date
		InstrumentID      int64
	}

	// CalculationResult is produced fresh per calculation and never
	// persisted by the engine itself.
	CalculationResult struct {
		BasePoints          int64       `json:"base_points"`
		BonusPoints         int64       `json:"bonus_points"`
		TotalPoints         int64       `json:"total_points"`
		PointsCurrency      string      `json:"points_currency"`
		AppliedRule         *RewardRule `json:"applied_rule,omitempty"`
		AppliedTier         *BonusTier  `json:"applied_tier,omitempty"`
		RemainingMonthlyCap *int64      `json:"remaining_monthly_cap,omitempty"`
		Messages            []string    `json:"messages,omitempty"`
	}

	// SimulationResult is one entry of a ranked multi-instrument simulation.
	SimulationResult struct {
		InstrumentID   int64              `json:"instrument_id"`
		InstrumentName string             `json:"instrument_name"`
		Result         *CalculationResult `json:"result,omitempty"`
		ConvertedValue *float64           `json:"converted_value,omitempty"`
		TargetCurrency string             `json:"target_currency"`
		Rank           int                `json:"rank"`
		Error          string             `json:"error,omitempty"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyRuleName      = errors.New("empty rule name")
	ErrInvalidCondition   = errors.New("invalid condition")
	ErrInvalidRewardSpec  = errors.New("invalid reward spec")
	ErrInstrumentNotFound = errors.New("instrument not found")
	ErrRuleNotFound       = errors.New("rule not found")
)

func (k InstrumentKind) IsValid() bool {
	switch k {
	case CreditCard, DebitCard, PrepaidCard, Cash:
		return true
	default:
		return false
	}
}

// NewDate creates a new Date from year, month, day (UTC midnight).
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (i Instrument) Validate() error {
	if len(strings.TrimSpace(i.Name)) == 0 {
		return errors.New("empty instrument name")
	}
	if !i.Kind.IsValid() {
		return errors.New("invalid instrument kind")
	}
	if i.StatementCycleDay < 0 || i.StatementCycleDay > 28 {
		return errors.New("statement cycle day must be between 0 and 28")
	}
	return nil
}

// Eligible reports whether the instrument participates in reward
// simulation: active and not cash.
func (i Instrument) Eligible() bool {
	return i.Active && i.Kind != Cash
}

func (t TransactionCandidate) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Currency) == "" {
		return errors.New("empty currency")
	}
	if t.InstrumentID <= 0 {
		return errors.New("missing instrument reference")
	}
	return nil
}
