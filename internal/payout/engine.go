package payout

import (
	"errors"
	"fmt"
)

var ErrNotCalibrated = errors.New("engine requires a calibrated table")

// Engine is a calibrated table plus the runtime pipeline around it. It is
// read-only after construction, so one Engine can serve any number of
// goroutines as long as each brings its own RandomSource.
type Engine struct {
	table    *Table
	quotas   Quotas
	finisher Finisher
	cal      *Calibration
}

// NewEngine publishes a finished calibration for sampling.
func NewEngine(cal *Calibration, q Quotas, f Finisher) (*Engine, error) {
	if cal == nil || cal.Table == nil {
		return nil, ErrNotCalibrated
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if f.Wincap <= 0 {
		return nil, ErrInvalidWincap
	}
	return &Engine{table: cal.Table, quotas: q, finisher: f, cal: cal}, nil
}

func (e *Engine) Table() *Table { return e.table }

func (e *Engine) Quotas() Quotas { return e.quotas }

func (e *Engine) Finisher() Finisher { return e.finisher }

func (e *Engine) Calibration() *Calibration { return e.cal }

// PickBranch draws the quota category: loss, then forced wincap, then base.
func (e *Engine) PickBranch(rng RandomSource) Branch {
	u := rng.Float64()
	switch {
	case u < e.quotas.Loss:
		return BranchLoss
	case u < e.quotas.Loss+e.quotas.Wincap:
		return BranchWincap
	default:
		return BranchBase
	}
}

// Spin draws a branch by quota and produces its outcome.
func (e *Engine) Spin(rng RandomSource) Outcome {
	if rng == nil {
		rng = DefaultRNG()
	}
	return e.SpinBranch(e.PickBranch(rng), rng)
}

// SpinBranch produces an outcome for a branch chosen by the caller. The loss
// branch consumes no randomness. The forced branch still samples a tier so the
// stream advances the same way as a base draw; the value is then overridden.
func (e *Engine) SpinBranch(b Branch, rng RandomSource) Outcome {
	if b == BranchLoss {
		return e.finisher.Loss()
	}
	if rng == nil {
		rng = DefaultRNG()
	}
	raw, _ := Sample(e.table, rng)
	return e.finisher.Finish(e.table, raw, b == BranchWincap)
}

// ParseBranch maps a branch name to a Branch.
func ParseBranch(s string) (Branch, error) {
	switch Branch(s) {
	case BranchLoss, BranchWincap, BranchBase:
		return Branch(s), nil
	}
	return "", fmt.Errorf("unknown branch %q", s)
}
