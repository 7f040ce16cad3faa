package payout

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrDegenerateTable = errors.New("degenerate tier table: total weight <= 0")
	ErrNonConvergence  = errors.New("retarget stopped before reaching target rtp")
	ErrFloorConflict   = errors.New("minimum weight floors conflict with total weight")
	ErrRoundingDrift   = errors.New("integer weights drift from target rtp")

	ErrNilTable     = errors.New("nil tier table")
	ErrNoBaseQuota  = errors.New("base quota must be > 0 to retarget")
	ErrInvalidRTP   = errors.New("target rtp and wincap must be finite")
	ErrInvalidFloor = errors.New("minimum weight floor must be >= 0")
)

const (
	DefaultTolerance    = 1e-12
	DefaultRTPTolerance = 1e-4
	DefaultMaxPasses    = 10000
)

// RetargetOptions configures one calibration run.
type RetargetOptions struct {
	Quotas Quotas
	Wincap float64
	Target float64

	// Pairs restricts which tiers exchange mass. nil means Table.Ladder().
	Pairs  []Pair
	Locked []string

	// Floors are per-tier minimum weights; DefaultFloor covers tiers not listed.
	Floors       map[string]int64
	DefaultFloor int64

	Tolerance    float64 // on base EV; <= 0 means DefaultTolerance
	RTPTolerance float64 // acceptance on achieved RTP; <= 0 means DefaultRTPTolerance
	MaxPasses    int     // <= 0 means DefaultMaxPasses
}

func (o RetargetOptions) withDefaults() RetargetOptions {
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.RTPTolerance <= 0 {
		o.RTPTolerance = DefaultRTPTolerance
	}
	if o.MaxPasses <= 0 {
		o.MaxPasses = DefaultMaxPasses
	}
	return o
}

// Status summarizes how the transfer loop ended.
type Status string

const (
	StatusOnTarget   Status = "on_target"  // already within tolerance, no transfer
	StatusConverged  Status = "converged"  // transfer closed the gap
	StatusStalled    Status = "stalled"    // no pair could move mass, or MaxPasses hit
	StatusDegenerate Status = "degenerate" // nothing to calibrate
	StatusSkipped    Status = "skipped"    // retargeting disabled, weights as configured
)

// Calibration is the outcome of Retarget. It is not modified after return.
type Calibration struct {
	Table      *Table
	Target     float64
	Achieved   float64 // analytic RTP of the integer weights
	Continuous float64 // analytic RTP of the optimized probabilities before re-inflation
	Status     Status
	Passes     int

	InputWeight int64 // total weight handed in
	TotalWeight int64 // total weight of Table

	Warnings []error
}

// Err joins every warning, nil when calibration was clean.
func (c *Calibration) Err() error { return errors.Join(c.Warnings...) }

func (c *Calibration) Delta() float64 { return c.Achieved - c.Target }

func (c *Calibration) warn(err error) { c.Warnings = append(c.Warnings, err) }

// Retarget moves probability mass between adjacent tiers until the analytic RTP
// matches opts.Target, then re-inflates to integer weights with the same total.
// The input table is left untouched; the calibrated copy is in the result.
//
// Invalid options are errors. Targets that cannot be met are not: the best
// effort table is returned with warnings (ErrNonConvergence, ErrFloorConflict,
// ErrRoundingDrift) for the caller to log or reject.
func Retarget(t *Table, opts RetargetOptions) (*Calibration, error) {
	if t == nil {
		return nil, ErrNilTable
	}
	opts = opts.withDefaults()
	q := opts.Quotas
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.Base <= 0 {
		return nil, ErrNoBaseQuota
	}
	if !finite(opts.Target) || !finite(opts.Wincap) {
		return nil, ErrInvalidRTP
	}
	floors, err := resolveFloors(t, opts.Floors, opts.DefaultFloor)
	if err != nil {
		return nil, err
	}
	locked, err := resolveLocked(t, opts.Locked)
	if err != nil {
		return nil, err
	}
	pairs, err := resolvePairs(t, opts.Pairs)
	if err != nil {
		return nil, err
	}

	cal := &Calibration{Target: opts.Target, InputWeight: t.TotalWeight()}
	if t.Degenerate() {
		cal.Table = t
		cal.Status = StatusDegenerate
		cal.warn(ErrDegenerateTable)
		return cal, nil
	}

	// floors are hard lower bounds, applied before and after optimization
	weights := t.Weights()
	var total int64
	for i := range weights {
		if weights[i] < floors[i] {
			weights[i] = floors[i]
		}
		total += weights[i]
	}
	if total != cal.InputWeight {
		cal.warn(fmt.Errorf("%w: floors raised total weight from %d to %d", ErrFloorConflict, cal.InputWeight, total))
	}

	n := t.Len()
	w := float64(total)
	probs := make([]float64, n)
	floorProbs := make([]float64, n)
	means := make([]float64, n)
	for i, tr := range t.tiers {
		probs[i] = float64(weights[i]) / w
		floorProbs[i] = float64(floors[i]) / w
		means[i] = tr.Mean()
	}

	evBase := evFromProbs(probs, means)
	evTarget := (opts.Target - q.Wincap*opts.Wincap) / q.Base

	converged := true
	if math.Abs(evBase-evTarget) <= opts.Tolerance {
		cal.Status = StatusOnTarget
	} else {
		res := transferMass(probs, floorProbs, means, locked, pairs, evBase-evTarget, opts)
		cal.Passes = res.passes
		converged = res.converged
		cal.Status = StatusConverged
		if !converged {
			cal.Status = StatusStalled
			cal.warn(fmt.Errorf("%w: base ev off by %.6g after %d passes over %d pairs",
				ErrNonConvergence, res.rem, res.passes, len(pairs)))
			if res.floorBound > 0 {
				cal.warn(fmt.Errorf("%w: %d donor tiers held at their floor", ErrFloorConflict, res.floorBound))
			}
		}
	}
	cal.Continuous = q.Base*evFromProbs(probs, means) + q.Wincap*opts.Wincap

	final, short := reinflate(probs, total, weights, floors, locked)
	if short != 0 {
		cal.warn(fmt.Errorf("%w: weights sum to %d, want %d", ErrFloorConflict, total-short, total))
	}
	cal.Table, err = t.WithWeights(final)
	if err != nil {
		return nil, err
	}
	cal.TotalWeight = cal.Table.TotalWeight()
	cal.Achieved = AnalyticRTP(cal.Table, q, opts.Wincap)

	if converged && math.Abs(cal.Delta()) > opts.RTPTolerance {
		cal.warn(fmt.Errorf("%w: achieved %.6f, target %.6f, total weight %d",
			ErrRoundingDrift, cal.Achieved, cal.Target, cal.TotalWeight))
	}
	return cal, nil
}

// Evaluate wraps t in a Calibration without moving mass, for games that ship
// hand-tuned weights. t must not be nil.
func Evaluate(t *Table, q Quotas, wincap, target float64) *Calibration {
	rtp := AnalyticRTP(t, q, wincap)
	cal := &Calibration{
		Table:       t,
		Target:      target,
		Achieved:    rtp,
		Continuous:  rtp,
		Status:      StatusSkipped,
		InputWeight: t.TotalWeight(),
		TotalWeight: t.TotalWeight(),
	}
	if t.Degenerate() {
		cal.Status = StatusDegenerate
		cal.warn(ErrDegenerateTable)
	}
	return cal
}

type transferResult struct {
	rem        float64 // EV_base - EV_target left over
	passes     int
	converged  bool
	floorBound int // donors skipped in the last pass only because they sat at their floor
}

// transferMass greedily walks pairs, moving mass from the tier on the wrong
// side of the correction to its partner. rem = EV_base - EV_target.
// It stops at tolerance, after a pass without progress, or after MaxPasses.
func transferMass(probs, floorProbs, means []float64, locked []bool, pairs [][2]int, rem float64, opts RetargetOptions) transferResult {
	res := transferResult{}
	for math.Abs(rem) > opts.Tolerance {
		if res.passes >= opts.MaxPasses {
			res.rem = rem
			return res
		}
		res.passes++
		res.floorBound = 0
		progressed := false
		for _, p := range pairs {
			a, b := p[0], p[1]
			if locked[a] || locked[b] {
				continue
			}
			// raising EV: lower mean donates; lowering EV: higher mean donates
			donor, recv := a, b
			if means[a] > means[b] {
				donor, recv = b, a
			}
			if rem > 0 {
				donor, recv = recv, donor
			}
			gap := math.Abs(means[recv] - means[donor])
			if gap <= 0 {
				continue
			}
			avail := probs[donor] - floorProbs[donor]
			if avail <= 0 {
				if floorProbs[donor] > 0 {
					res.floorBound++
				}
				continue
			}
			delta := math.Min(math.Abs(rem)/gap, avail)
			probs[donor] -= delta
			probs[recv] += delta
			if rem > 0 {
				rem -= delta * gap
			} else {
				rem += delta * gap
			}
			progressed = true
			if math.Abs(rem) <= opts.Tolerance {
				res.rem, res.converged = rem, true
				return res
			}
		}
		if !progressed {
			res.rem = rem
			return res
		}
	}
	res.rem, res.converged = rem, true
	return res
}

// reinflate turns probabilities back into integer weights summing to total.
// Each tier is rounded to nearest and held at its floor, then the leftover is
// settled one unit at a time by largest remainder: tiers rounded down the most
// gain first, tiers rounded up the most give first. Locked tiers keep their
// weight. The returned shortfall is non-zero only when floors leave no tier
// able to give.
func reinflate(probs []float64, total int64, current, floors []int64, locked []bool) ([]int64, int64) {
	n := len(probs)
	w := float64(total)
	raw := make([]float64, n)
	out := make([]int64, n)
	var sum int64
	for i := range probs {
		if locked[i] {
			raw[i] = float64(current[i])
			out[i] = current[i]
		} else {
			raw[i] = math.Max(0, probs[i]*w)
			out[i] = max(int64(math.Round(raw[i])), floors[i])
		}
		sum += out[i]
	}
	diff := total - sum
	if diff == 0 {
		return out, 0
	}

	order := make([]int, 0, n)
	for i := range probs {
		if !locked[i] {
			order = append(order, i)
		}
	}
	rema := func(i int) float64 { return raw[i] - float64(out[i]) }
	if diff > 0 {
		sort.SliceStable(order, func(a, b int) bool { return rema(order[a]) > rema(order[b]) })
	} else {
		sort.SliceStable(order, func(a, b int) bool { return rema(order[a]) < rema(order[b]) })
	}

	for diff != 0 {
		moved := false
		for _, i := range order {
			if diff == 0 {
				break
			}
			if diff > 0 {
				out[i]++
				diff--
				moved = true
				continue
			}
			if out[i]-1 < floors[i] {
				continue
			}
			out[i]--
			diff++
			moved = true
		}
		if !moved {
			break
		}
	}
	return out, diff
}

func resolveFloors(t *Table, floors map[string]int64, def int64) ([]int64, error) {
	if def < 0 {
		return nil, ErrInvalidFloor
	}
	out := make([]int64, t.Len())
	for i := range out {
		out[i] = def
	}
	for name, f := range floors {
		i, ok := t.Index(name)
		if !ok {
			return nil, fmt.Errorf("floor %q: %w", name, ErrUnknownTier)
		}
		if f < 0 {
			return nil, fmt.Errorf("floor %q: %w", name, ErrInvalidFloor)
		}
		out[i] = f
	}
	return out, nil
}

func resolveLocked(t *Table, names []string) ([]bool, error) {
	out := make([]bool, t.Len())
	for _, name := range names {
		i, ok := t.Index(name)
		if !ok {
			return nil, fmt.Errorf("locked %q: %w", name, ErrUnknownTier)
		}
		out[i] = true
	}
	return out, nil
}

func resolvePairs(t *Table, pairs []Pair) ([][2]int, error) {
	if pairs == nil {
		pairs = t.Ladder()
	}
	out := make([][2]int, 0, len(pairs))
	for _, p := range pairs {
		a, ok := t.Index(p.Low)
		if !ok {
			return nil, fmt.Errorf("pair %s/%s: %w %q", p.Low, p.High, ErrUnknownTier, p.Low)
		}
		b, ok := t.Index(p.High)
		if !ok {
			return nil, fmt.Errorf("pair %s/%s: %w %q", p.Low, p.High, ErrUnknownTier, p.High)
		}
		out = append(out, [2]int{a, b})
	}
	return out, nil
}
