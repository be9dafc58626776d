package engine

import (
	"context"
	"testing"
	"time"

	"miles/internal/core"
)

type fakeRates struct {
	rates map[string]float64
	err   error
}

func (f *fakeRates) Rate(_ context.Context, from, to string) (float64, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	r, ok := f.rates[from+"->"+to]
	return r, ok, nil
}

func newTestSimulator(instruments map[int64]core.Instrument, rules []core.RewardRule, rates map[string]float64) *Simulator {
	calc := NewCalculator(
		&fakeRules{rules: rules},
		newFakeTracker(),
		&fakeInstruments{items: instruments},
	)
	conv := NewConverter(&fakeRates{rates: rates})
	return NewSimulator(calc, conv).WithTimeout(time.Second)
}

func simInstruments() map[int64]core.Instrument {
	return map[int64]core.Instrument{
		1: {ID: 1, Name: "Miles Card", Kind: core.CreditCard, TypeID: 10, Active: true, PointsCurrency: "miles"},
		2: {ID: 2, Name: "Cashback Card", Kind: core.CreditCard, TypeID: 20, Active: true, PointsCurrency: "cashpoints"},
		3: {ID: 3, Name: "Old Card", Kind: core.CreditCard, TypeID: 10, Active: false, PointsCurrency: "miles"},
		4: {ID: 4, Name: "Wallet", Kind: core.Cash, TypeID: 30, Active: true},
	}
}

func simRules() []core.RewardRule {
	milesRule := sgdBaseRule() // typeID 10, 0.65x floor
	cashbackRule := core.RewardRule{
		InstrumentTypeID: 20,
		Name:             "cashback base",
		Enabled:          true,
		Priority:         1,
		Reward: core.RewardSpec{
			BaseMultiplier: 2,
			PointsCurrency: "cashpoints",
			AmountRounding: core.AmountRoundNone,
			PointsRounding: core.PointsRoundFloor,
			BlockSize:      1,
		},
	}
	return []core.RewardRule{milesRule, cashbackRule}
}

func values(instruments map[int64]core.Instrument) []core.Instrument {
	out := make([]core.Instrument, 0, len(instruments))
	for _, id := range []int64{1, 2, 3, 4} {
		if in, ok := instruments[id]; ok {
			out = append(out, in)
		}
	}
	return out
}

func TestSimulateAllFiltersIneligible(t *testing.T) {
	instruments := simInstruments()
	sim := newTestSimulator(instruments, simRules(), map[string]float64{
		"miles->SGD":      0.02,
		"cashpoints->SGD": 0.005,
	})

	results := sim.SimulateAll(context.Background(), sgdCandidate(10000), values(instruments), "SGD")
	// Inactive card and cash wallet are filtered out.
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	for _, r := range results {
		if r.InstrumentID == 3 || r.InstrumentID == 4 {
			t.Errorf("ineligible instrument %d in results", r.InstrumentID)
		}
	}
}

func TestSimulateAllRanksByConvertedValue(t *testing.T) {
	instruments := simInstruments()
	sim := newTestSimulator(instruments, simRules(), map[string]float64{
		"miles->SGD":      0.02,  // 65 miles -> 1.30
		"cashpoints->SGD": 0.005, // 200 cashpoints -> 1.00
	})

	results := sim.SimulateAll(context.Background(), sgdCandidate(10000), values(instruments), "SGD")
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].InstrumentID != 1 {
		t.Errorf("rank 1 = instrument %d, want 1 (higher converted value)", results[0].InstrumentID)
	}
	for i, r := range results {
		if r.Rank != i+1 {
			t.Errorf("results[%d].Rank = %d, want %d", i, r.Rank, i+1)
		}
	}
	// Non-increasing converted values among converted entries.
	for i := 1; i < len(results); i++ {
		a, b := results[i-1].ConvertedValue, results[i].ConvertedValue
		if a != nil && b != nil && *b > *a {
			t.Errorf("converted values increase at %d: %v then %v", i, *a, *b)
		}
	}
}

func TestSimulateAllUnknownRateSortsLast(t *testing.T) {
	instruments := simInstruments()
	// Only cashpoints has a known rate; miles is unknown despite the
	// better reward.
	sim := newTestSimulator(instruments, simRules(), map[string]float64{
		"cashpoints->SGD": 0.005,
	})

	results := sim.SimulateAll(context.Background(), sgdCandidate(10000), values(instruments), "SGD")
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].ConvertedValue == nil {
		t.Error("converted entries must precede unconverted ones")
	}
	if results[1].ConvertedValue != nil {
		t.Error("unknown-rate entry must sort last")
	}
	if results[1].Result == nil {
		t.Error("unknown rate must not discard the quote itself")
	}
}

func TestSimulateAllIsolatesFailures(t *testing.T) {
	instruments := simInstruments()
	// Instrument 2's rule source works, but instrument 5 does not exist
	// in the calculator's instrument source: its result carries an error
	// while the rest of the batch succeeds.
	ghost := core.Instrument{ID: 5, Name: "Ghost", Kind: core.CreditCard, TypeID: 10, Active: true}
	sim := newTestSimulator(instruments, simRules(), map[string]float64{
		"miles->SGD":      0.02,
		"cashpoints->SGD": 0.005,
	})

	all := append(values(instruments), ghost)
	results := sim.SimulateAll(context.Background(), sgdCandidate(10000), all, "SGD")
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}

	var failed, succeeded int
	for _, r := range results {
		if r.Error != "" {
			failed++
			if r.InstrumentID != 5 {
				t.Errorf("unexpected failure on instrument %d: %s", r.InstrumentID, r.Error)
			}
		} else {
			succeeded++
		}
	}
	if failed != 1 || succeeded != 2 {
		t.Errorf("failed=%d succeeded=%d, want 1/2", failed, succeeded)
	}
}

func TestConverterIdentityAndUnknown(t *testing.T) {
	conv := NewConverter(&fakeRates{rates: map[string]float64{"miles->SGD": 0.02}})

	v, err := conv.Convert(context.Background(), "SGD", "SGD", 150)
	if err != nil || v == nil || *v != 150 {
		t.Errorf("identity conversion = %v, %v; want 150", v, err)
	}

	v, err = conv.Convert(context.Background(), "miles", "SGD", 1000)
	if err != nil || v == nil || *v != 20 {
		t.Errorf("known rate conversion = %v, %v; want 20", v, err)
	}

	v, err = conv.Convert(context.Background(), "cashpoints", "SGD", 1000)
	if err != nil {
		t.Errorf("unknown rate must not error: %v", err)
	}
	if v != nil {
		t.Errorf("unknown rate = %v, want nil", *v)
	}
}
