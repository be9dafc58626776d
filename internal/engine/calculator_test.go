package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/google/uuid"

	"miles/internal/core"
)

func f64(v float64) *float64 { return &v }

type fakeRules struct {
	rules []core.RewardRule
	err   error
}

func (f *fakeRules) ListEnabled(_ context.Context, typeID int64) ([]core.RewardRule, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]core.RewardRule, 0, len(f.rules))
	for _, r := range f.rules {
		if r.InstrumentTypeID == typeID && r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeTracker struct {
	mu   sync.Mutex
	used map[string]int64
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{used: make(map[string]int64)}
}

func trackerKey(id int64, period core.PeriodKey) string {
	return fmt.Sprintf("%d@%s", id, period)
}

func (f *fakeTracker) Used(_ context.Context, id int64, period core.PeriodKey) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.used[trackerKey(id, period)], nil
}

func (f *fakeTracker) Record(_ context.Context, id int64, period core.PeriodKey, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.used[trackerKey(id, period)] += delta
	return nil
}

type fakeInstruments struct {
	items map[int64]core.Instrument
}

func (f *fakeInstruments) Instrument(_ context.Context, id int64) (core.Instrument, error) {
	in, ok := f.items[id]
	if !ok {
		return core.Instrument{}, core.ErrInstrumentNotFound
	}
	return in, nil
}

func sgdCard() core.Instrument {
	return core.Instrument{
		ID:             1,
		Name:           "Everyday Card",
		Kind:           core.CreditCard,
		TypeID:         10,
		Active:         true,
		PointsCurrency: "miles",
	}
}

func newTestCalculator(rules []core.RewardRule) (*Calculator, *fakeTracker) {
	tracker := newFakeTracker()
	calc := NewCalculator(
		&fakeRules{rules: rules},
		tracker,
		&fakeInstruments{items: map[int64]core.Instrument{1: sgdCard()}},
	)
	return calc, tracker
}

// sgdBaseRule: SGD spend, 0.65x base, floor points rounding, no bonus.
// Amount rounding is none, so the block size cancels and the earn is
// floor(amount * 0.65) for any amount.
func sgdBaseRule() core.RewardRule {
	return core.RewardRule{
		ID:               uuid.New(),
		InstrumentTypeID: 10,
		Name:             "sgd base",
		Enabled:          true,
		Priority:         10,
		Conditions:       []core.Condition{core.CurrencyEquals("SGD")},
		Reward: core.RewardSpec{
			BaseMultiplier: 0.65,
			PointsCurrency: "miles",
			AmountRounding: core.AmountRoundNone,
			PointsRounding: core.PointsRoundFloor,
			BlockSize:      5,
		},
	}
}

func fcyRule() core.RewardRule {
	return core.RewardRule{
		ID:               uuid.New(),
		InstrumentTypeID: 10,
		Name:             "fcy",
		Enabled:          true,
		Priority:         20,
		Conditions:       []core.Condition{core.CurrencyExclude("SGD")},
		Reward: core.RewardSpec{
			BaseMultiplier: 1.1,
			PointsCurrency: "miles",
			AmountRounding: core.AmountRoundNone,
			PointsRounding: core.PointsRoundFloor,
			BlockSize:      1,
		},
	}
}

func sgdCandidate(cents int64) core.TransactionCandidate {
	return core.TransactionCandidate{
		Amount:       core.Money{Cents: cents},
		Currency:     "SGD",
		MerchantName: "NTUC FairPrice",
		Date:         core.NewDate(2026, 8, 29),
		InstrumentID: 1,
	}
}

func TestCalculateBaseMultiplier(t *testing.T) {
	// 100.00 SGD at 0.65x: floor(100*0.65) = 65.
	calc, _ := newTestCalculator([]core.RewardRule{sgdBaseRule()})

	got, err := calc.Calculate(context.Background(), sgdCandidate(10000))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if got.BasePoints != 65 || got.BonusPoints != 0 || got.TotalPoints != 65 {
		t.Errorf("got base=%d bonus=%d total=%d, want 65/0/65",
			got.BasePoints, got.BonusPoints, got.TotalPoints)
	}
	if got.AppliedRule == nil || got.AppliedRule.Name != "sgd base" {
		t.Errorf("AppliedRule = %+v, want sgd base", got.AppliedRule)
	}
}

func TestCalculateForeignCurrencyRate(t *testing.T) {
	// 47.50 FCY at 1.1x: floor(47.50*1.1) = floor(52.25) = 52.
	calc, _ := newTestCalculator([]core.RewardRule{sgdBaseRule(), fcyRule()})

	c := sgdCandidate(4750)
	c.Currency = "USD"
	got, err := calc.Calculate(context.Background(), c)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if got.TotalPoints != 52 {
		t.Errorf("TotalPoints = %d, want 52", got.TotalPoints)
	}
	if got.AppliedRule == nil || got.AppliedRule.Name != "fcy" {
		t.Errorf("wrong rule applied: %+v", got.AppliedRule)
	}
}

func TestCalculateFractionalAmount(t *testing.T) {
	// Same rule as TestCalculateBaseMultiplier: floor(47.50*0.65) =
	// floor(30.875) = 30.
	calc, _ := newTestCalculator([]core.RewardRule{sgdBaseRule()})

	got, err := calc.Calculate(context.Background(), sgdCandidate(4750))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if got.TotalPoints != 30 {
		t.Errorf("TotalPoints = %d, want 30", got.TotalPoints)
	}
}

func TestCalculateFlooredBlocks(t *testing.T) {
	// Variant with amount flooring to 5-unit blocks: floor(47.50/5)=9
	// blocks, 9*5*0.65 = 29.25 -> floor = 29.
	rule := sgdBaseRule()
	rule.Reward.AmountRounding = core.AmountRoundFloor
	calc, _ := newTestCalculator([]core.RewardRule{rule})

	got, err := calc.Calculate(context.Background(), sgdCandidate(4750))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if got.TotalPoints != 29 {
		t.Errorf("TotalPoints = %d, want 29", got.TotalPoints)
	}
}

func TestCalculateMonthlyCapClipping(t *testing.T) {
	cap := int64(4000)
	rule := sgdBaseRule()
	rule.Reward.BonusMultiplier = 2
	rule.Reward.MonthlyCap = &cap
	calc, tracker := newTestCalculator([]core.RewardRule{rule})

	// Prior usage 3900 of 4000.
	period := core.MonthPeriodKey(core.NewDate(2026, 8, 29))
	if err := tracker.Record(context.Background(), 1, period, 3900); err != nil {
		t.Fatal(err)
	}

	// 100.00 SGD at 2x bonus = 200 raw bonus points, clipped to 100.
	got, err := calc.Calculate(context.Background(), sgdCandidate(10000))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if got.BonusPoints != 100 {
		t.Errorf("BonusPoints = %d, want 100", got.BonusPoints)
	}
	if got.RemainingMonthlyCap == nil || *got.RemainingMonthlyCap != 0 {
		t.Errorf("RemainingMonthlyCap = %v, want 0", got.RemainingMonthlyCap)
	}
	if got.BasePoints != 65 {
		t.Errorf("base points must not be capped, got %d", got.BasePoints)
	}
	hasMsg := false
	for _, m := range got.Messages {
		if m == "monthly bonus cap reached" {
			hasMsg = true
		}
	}
	if !hasMsg {
		t.Errorf("missing cap message, got %v", got.Messages)
	}

	// Cap invariant: further spend earns no more bonus.
	got2, err := calc.Calculate(context.Background(), sgdCandidate(10000))
	if err != nil {
		t.Fatal(err)
	}
	if got2.BonusPoints != 0 {
		t.Errorf("bonus after cap = %d, want 0", got2.BonusPoints)
	}
	used, _ := tracker.Used(context.Background(), 1, period)
	if used > cap {
		t.Errorf("cumulative usage %d exceeds cap %d", used, cap)
	}
}

func TestCalculateBonusTiers(t *testing.T) {
	rule := sgdBaseRule()
	rule.Reward.BlockSize = 1
	rule.Reward.AmountRounding = core.AmountRoundNone
	rule.Reward.BonusMultiplier = 9 // must be ignored when tiers exist
	rule.Reward.BonusTiers = []core.BonusTier{
		{MinSpend: 0, MaxSpend: f64(100), Multiplier: 0},
		{MinSpend: 100, MaxSpend: f64(500), Multiplier: 1},
		{MinSpend: 500, Multiplier: 3},
	}
	calc, _ := newTestCalculator([]core.RewardRule{rule})

	tests := []struct {
		name      string
		cents     int64
		wantBonus int64
		wantTier  *float64
	}{
		{"below first paying tier", 5000, 0, nil},
		{"middle tier", 20000, 200, f64(1)},
		{"unbounded top tier", 60000, 1800, f64(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.Calculate(context.Background(), sgdCandidate(tt.cents))
			if err != nil {
				t.Fatalf("Calculate: %v", err)
			}
			if got.BonusPoints != tt.wantBonus {
				t.Errorf("BonusPoints = %d, want %d", got.BonusPoints, tt.wantBonus)
			}
			if tt.wantTier != nil {
				if got.AppliedTier == nil || got.AppliedTier.Multiplier != *tt.wantTier {
					t.Errorf("AppliedTier = %+v, want multiplier %v", got.AppliedTier, *tt.wantTier)
				}
			}
		})
	}
}

func TestCalculatePriorityOrdering(t *testing.T) {
	// The fcy rule outranks the base rule; a USD transaction must pick
	// it even though the base rule also appears in the list.
	base := sgdBaseRule()
	base.Conditions = nil // catch-all at low priority
	calc, _ := newTestCalculator([]core.RewardRule{fcyRule(), base})

	c := sgdCandidate(10000)
	c.Currency = "USD"
	got, err := calc.Calculate(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if got.AppliedRule == nil || got.AppliedRule.Name != "fcy" {
		t.Errorf("applied %+v, want fcy (higher priority)", got.AppliedRule)
	}
}

func TestCalculateImplicitFallback(t *testing.T) {
	// No rule matches and no catch-all exists: a flat 1x base applies.
	calc, _ := newTestCalculator([]core.RewardRule{fcyRule()})

	got, err := calc.Calculate(context.Background(), sgdCandidate(4750))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if got.AppliedRule != nil {
		t.Errorf("AppliedRule = %+v, want nil for fallback", got.AppliedRule)
	}
	if got.TotalPoints != 47 {
		t.Errorf("TotalPoints = %d, want floor(47.50*1) = 47", got.TotalPoints)
	}
	if len(got.Messages) == 0 {
		t.Error("fallback should carry an advisory message")
	}
}

func TestCalculateNonPositiveAmount(t *testing.T) {
	calc, _ := newTestCalculator([]core.RewardRule{sgdBaseRule()})

	for _, cents := range []int64{0, -500} {
		got, err := calc.Calculate(context.Background(), sgdCandidate(cents))
		if err != nil {
			t.Fatalf("amount %d: unexpected error %v", cents, err)
		}
		if got.TotalPoints != 0 || got.BasePoints != 0 || got.BonusPoints != 0 {
			t.Errorf("amount %d: expected zero result, got %+v", cents, got)
		}
	}
}

func TestCalculateUnknownInstrument(t *testing.T) {
	calc, _ := newTestCalculator([]core.RewardRule{sgdBaseRule()})

	c := sgdCandidate(10000)
	c.InstrumentID = 99
	_, err := calc.Calculate(context.Background(), c)
	if !errors.Is(err, core.ErrInstrumentNotFound) {
		t.Errorf("error = %v, want ErrInstrumentNotFound", err)
	}
}

func TestCalculateDeterministic(t *testing.T) {
	calc, _ := newTestCalculator([]core.RewardRule{sgdBaseRule(), fcyRule()})

	c := sgdCandidate(12345)
	first, err := calc.Quote(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := calc.Quote(context.Background(), c)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %+v vs %+v", i, first, again)
		}
	}
}

func TestQuoteDoesNotConsumeCap(t *testing.T) {
	cap := int64(4000)
	rule := sgdBaseRule()
	rule.Reward.BonusMultiplier = 2
	rule.Reward.MonthlyCap = &cap
	calc, tracker := newTestCalculator([]core.RewardRule{rule})

	if _, err := calc.Quote(context.Background(), sgdCandidate(10000)); err != nil {
		t.Fatal(err)
	}
	period := core.MonthPeriodKey(core.NewDate(2026, 8, 29))
	used, _ := tracker.Used(context.Background(), 1, period)
	if used != 0 {
		t.Errorf("quote consumed %d bonus budget, want 0", used)
	}
}
