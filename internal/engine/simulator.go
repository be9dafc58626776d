package engine

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"miles/internal/core"
)

const defaultSimulationTimeout = 3 * time.Second

// Simulator ranks payment instruments by converted reward value for a
// hypothetical purchase. Each instrument is quoted independently; one
// failing instrument degrades to a per-result error instead of failing
// the batch.
type Simulator struct {
	calc    *Calculator
	conv    *Converter
	timeout time.Duration
	// MaxConcurrent bounds parallel quotes. Zero means unbounded.
	maxConcurrent int
}

func NewSimulator(calc *Calculator, conv *Converter) *Simulator {
	return &Simulator{
		calc:          calc,
		conv:          conv,
		timeout:       defaultSimulationTimeout,
		maxConcurrent: 4,
	}
}

// WithTimeout overrides the per-instrument quote timeout.
func (s *Simulator) WithTimeout(d time.Duration) *Simulator {
	s.timeout = d
	return s
}

// SimulateAll quotes the candidate against every active non-cash
// instrument, converts each total to targetCurrency, and returns the
// list ranked best-first. Entries whose conversion rate is unknown sort
// after all converted entries, keeping their relative order.
func (s *Simulator) SimulateAll(ctx context.Context, candidate core.TransactionCandidate, instruments []core.Instrument, targetCurrency string) []core.SimulationResult {
	eligible := make([]core.Instrument, 0, len(instruments))
	for _, in := range instruments {
		if in.Eligible() {
			eligible = append(eligible, in)
		}
	}

	results := make([]core.SimulationResult, len(eligible))

	g, gctx := errgroup.WithContext(ctx)
	if s.maxConcurrent > 0 {
		g.SetLimit(s.maxConcurrent)
	}
	for i, in := range eligible {
		g.Go(func() error {
			results[i] = s.simulateOne(gctx, candidate, in, targetCurrency)
			return nil
		})
	}
	// Workers never return errors; failures land in each result slot.
	_ = g.Wait()

	rank(results)
	return results
}

func (s *Simulator) simulateOne(ctx context.Context, candidate core.TransactionCandidate, instrument core.Instrument, targetCurrency string) core.SimulationResult {
	out := core.SimulationResult{
		InstrumentID:   instrument.ID,
		InstrumentName: instrument.Name,
		TargetCurrency: targetCurrency,
	}

	qctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	candidate.InstrumentID = instrument.ID
	result, err := s.calc.Quote(qctx, candidate)
	if err != nil {
		slog.WarnContext(ctx, "Instrument quote failed",
			"instrument_id", instrument.ID,
			"instrument_name", instrument.Name,
			"error", err)
		out.Error = err.Error()
		return out
	}
	out.Result = &result

	converted, err := s.conv.Convert(qctx, result.PointsCurrency, targetCurrency, result.TotalPoints)
	if err != nil {
		// Keep the quote; only the comparison value is unknown.
		slog.WarnContext(ctx, "Points conversion failed",
			"instrument_id", instrument.ID,
			"from", result.PointsCurrency,
			"to", targetCurrency,
			"error", err)
		return out
	}
	out.ConvertedValue = converted
	return out
}

// rank orders results best-first and assigns 1-based ranks: converted
// entries descending by value, then all unconverted entries in their
// original order.
func rank(results []core.SimulationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].ConvertedValue, results[j].ConvertedValue
		switch {
		case a != nil && b != nil:
			return *a > *b
		case a != nil:
			return true
		default:
			return false
		}
	})
	for i := range results {
		results[i].Rank = i + 1
	}
}
