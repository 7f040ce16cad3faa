package payout

import (
	"errors"
	"math"
)

var ErrInvalidQuotas = errors.New("invalid quotas; each must be in [0,1] and they must sum to 1")

const quotaSumTol = 1e-9

// Quotas split outcome probability between the pure-loss branch, the forced
// wincap branch and tier sampling. The calling game owns them.
type Quotas struct {
	Loss   float64 `json:"loss"`
	Wincap float64 `json:"wincap"`
	Base   float64 `json:"base"`
}

// NewQuotas derives Base as the remainder of loss and wincap.
func NewQuotas(loss, wincap float64) (Quotas, error) {
	q := Quotas{Loss: loss, Wincap: wincap, Base: 1 - loss - wincap}
	if err := q.Validate(); err != nil {
		return Quotas{}, err
	}
	return q, nil
}

func (q Quotas) Validate() error {
	for _, p := range []float64{q.Loss, q.Wincap, q.Base} {
		if err := validateProb(p); err != nil {
			return ErrInvalidQuotas
		}
	}
	if math.Abs(q.Loss+q.Wincap+q.Base-1) > quotaSumTol {
		return ErrInvalidQuotas
	}
	return nil
}

func validateProb(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return ErrInvalidQuotas
	}
	if p < 0 || p > 1 {
		return ErrInvalidQuotas
	}
	return nil
}
