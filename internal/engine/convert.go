package engine

import (
	"context"
	"fmt"
	"strings"
)

// RateSource supplies conversion rates between points currencies and
// real currencies. A missing rate is reported via ok=false, never as an
// error; the engine treats it as "unknown".
type RateSource interface {
	Rate(ctx context.Context, from, to string) (rate float64, ok bool, err error)
}

// Converter turns point totals into a common comparison currency.
type Converter struct {
	rates RateSource
}

func NewConverter(rates RateSource) *Converter {
	return &Converter{rates: rates}
}

// Convert returns the value of points in the target currency, or nil
// when no rate is known. Identical currencies convert at 1:1.
func (c *Converter) Convert(ctx context.Context, from, to string, points int64) (*float64, error) {
	if from == "" || to == "" {
		return nil, nil
	}
	if strings.EqualFold(from, to) {
		v := float64(points)
		return &v, nil
	}
	rate, ok, err := c.rates.Rate(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("rate %s->%s: %w", from, to, err)
	}
	if !ok {
		return nil, nil
	}
	v := float64(points) * rate
	return &v, nil
}
