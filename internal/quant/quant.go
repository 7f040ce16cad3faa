package quant

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var ErrInvalidIncrement = errors.New("invalid increment; must be finite and > 0")

// Amount is a fixed-point value: Units * 10^-Places.
type Amount struct {
	Units  int64
	Places int32
}

// Decimal returns the exact decimal value of a.
func (a Amount) Decimal() decimal.Decimal { return decimal.New(a.Units, -a.Places) }

// Float64 returns the nearest float64. Places <= 15 keeps the division exact-rounded.
func (a Amount) Float64() float64 { return float64(a.Units) / pow10(a.Places) }

func (a Amount) String() string { return a.Decimal().StringFixed(a.Places) }

func (a Amount) IsZero() bool { return a.Units == 0 }

// MarshalJSON encodes the amount as a JSON number with fixed places.
func (a Amount) MarshalJSON() ([]byte, error) { return []byte(a.String()), nil }

func (a *Amount) UnmarshalJSON(b []byte) error {
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return err
	}
	places := max(-d.Exponent(), 0)
	*a = Amount{Units: d.Shift(places).IntPart(), Places: places}
	return nil
}

// Minor converts a to minor currency units (scale 100 => cents), rounding half up.
func (a Amount) Minor(scale int64) int64 {
	if scale <= 0 {
		scale = 1
	}
	d := a.Decimal().Mul(decimal.NewFromInt(scale))
	return roundHalfUp(d, decimal.NewFromInt(1)).IntPart()
}

// Quantizer rounds values to the nearest multiple of a fixed increment.
// Rounding is half up on the exact decimal form of the input, never on binary floats.
type Quantizer struct {
	step   decimal.Decimal // increment, normalized
	places int32
	units  int64 // step expressed in 10^-places units
}

// NewQuantizer builds a quantizer for increment, e.g. 0.10.
// The increment is read through its shortest decimal representation, so 0.1 is
// exactly one tenth.
func NewQuantizer(increment float64) (Quantizer, error) {
	if math.IsNaN(increment) || math.IsInf(increment, 0) || increment <= 0 {
		return Quantizer{}, ErrInvalidIncrement
	}
	return NewQuantizerDecimal(decimal.NewFromFloat(increment))
}

// NewQuantizerDecimal builds a quantizer from an exact decimal increment.
func NewQuantizerDecimal(step decimal.Decimal) (Quantizer, error) {
	if step.Sign() <= 0 {
		return Quantizer{}, ErrInvalidIncrement
	}
	places := decimalPlaces(step)
	if places > 15 {
		return Quantizer{}, ErrInvalidIncrement
	}
	units := step.Shift(places)
	if !units.IsInteger() || !units.BigInt().IsInt64() {
		return Quantizer{}, ErrInvalidIncrement
	}
	return Quantizer{step: step, places: places, units: units.IntPart()}, nil
}

// Increment returns the step as an Amount.
func (q Quantizer) Increment() Amount { return Amount{Units: q.units, Places: q.places} }

// Places is the number of decimal places every quantized Amount carries.
func (q Quantizer) Places() int32 { return q.places }

// Quantize rounds x to the nearest increment. Non-finite input yields zero.
func (q Quantizer) Quantize(x float64) Amount {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Amount{Places: q.places}
	}
	return q.QuantizeDecimal(decimal.NewFromFloat(x))
}

// QuantizeDecimal rounds d to the nearest increment.
func (q Quantizer) QuantizeDecimal(d decimal.Decimal) Amount {
	if q.units == 0 {
		// zero Quantizer rounds to whole numbers
		return Amount{Units: roundHalfUp(d, decimal.NewFromInt(1)).IntPart()}
	}
	n := roundHalfUp(d, q.step)
	return Amount{Units: n.Mul(decimal.NewFromInt(q.units)).IntPart(), Places: q.places}
}

// Mul returns quantize(a * factor), e.g. total win = quantize(multiplier * bet).
func (q Quantizer) Mul(a Amount, factor float64) Amount {
	if math.IsNaN(factor) || math.IsInf(factor, 0) {
		return Amount{Places: q.places}
	}
	return q.QuantizeDecimal(a.Decimal().Mul(decimal.NewFromFloat(factor)))
}

// Steps reports how many increments a holds and whether it is an exact multiple.
func (q Quantizer) Steps(a Amount) (int64, bool) {
	if q.units == 0 {
		return 0, false
	}
	scaled := a.Decimal().Shift(q.places)
	if !scaled.IsInteger() {
		return 0, false
	}
	u := scaled.IntPart()
	return u / q.units, u%q.units == 0
}

// roundHalfUp returns the number of steps nearest to d/step, ties away from zero
// (which is half up for the non-negative values this package is used on).
func roundHalfUp(d, step decimal.Decimal) decimal.Decimal {
	neg := d.Sign() < 0
	if neg {
		d = d.Neg()
	}
	quo, rem := d.QuoRem(step, 0)
	if rem.Mul(decimal.NewFromInt(2)).Cmp(step) >= 0 {
		quo = quo.Add(decimal.NewFromInt(1))
	}
	if neg {
		quo = quo.Neg()
	}
	return quo
}

func decimalPlaces(d decimal.Decimal) int32 {
	s := d.String()
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return int32(len(s) - i - 1)
		}
	}
	return 0
}

func pow10(n int32) float64 {
	if n <= 0 {
		return 1
	}
	return math.Pow10(int(n))
}
