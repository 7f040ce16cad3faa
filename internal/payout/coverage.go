package payout

import (
	"errors"
	"fmt"
	"math"

	"github.com/xtding233/payout-engine/internal/quant"
)

var ErrUncoveredMultiplier = errors.New("quantized multiplier falls outside every tier")

// Coverage checks that every value a base draw can produce classifies into a
// tier once quantized. A tier draws from [Min, Max), so its quantized values
// run from quantize(Min) to quantize of the float just below Max. Classification
// only changes at tier bounds, so checking the grid points on either side of
// each bound, plus the range ends, visits every distinct result.
func (t *Table) Coverage(q quant.Quantizer) error {
	step := q.Increment()
	if step.Units <= 0 {
		return quant.ErrInvalidIncrement
	}
	stepF := step.Float64()

	bounds := make([]float64, 0, 2*len(t.tiers))
	for _, tr := range t.tiers {
		bounds = append(bounds, tr.Min, tr.Max)
	}

	var errs []error
	for _, tr := range t.tiers {
		top := tr.Max
		if tr.Max > tr.Min {
			top = math.Nextafter(tr.Max, math.Inf(-1))
		}
		lo, _ := q.Steps(q.Quantize(tr.Min))
		hi, _ := q.Steps(q.Quantize(top))

		cand := []int64{lo, hi}
		for _, b := range bounds {
			n := int64(math.Floor(b / stepF))
			cand = append(cand, n-1, n, n+1)
		}
		for _, n := range cand {
			if n < lo || n > hi {
				continue
			}
			v := quant.Amount{Units: n * step.Units, Places: step.Places}
			if _, ok := t.Classify(v.Float64()); !ok {
				errs = append(errs, fmt.Errorf("tier %q draws quantize to %s: %w", tr.Name, v, ErrUncoveredMultiplier))
				break
			}
		}
	}
	return errors.Join(errs...)
}
