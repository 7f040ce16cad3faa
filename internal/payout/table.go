package payout

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrEmptyTierName     = errors.New("tier name must not be empty")
	ErrDuplicateTierName = errors.New("duplicate tier name")
	ErrTierBounds        = errors.New("tier bounds must be finite with min <= max")
	ErrNegativeWeight    = errors.New("tier weight must be >= 0")
	ErrTierOrder         = errors.New("tiers must be ascending and non-overlapping")
	ErrUnknownTier       = errors.New("unknown tier")
)

// boundaryEps absorbs rounding at the top of the ladder when classifying.
const boundaryEps = 1e-9

// Tier is one payout bucket: multipliers in [Min, Max) drawn with integer Weight.
type Tier struct {
	Name   string  `json:"name"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Weight int64   `json:"weight"`
}

// Mean is the uniform-within-tier expectation, used for EV estimation only.
func (t Tier) Mean() float64 { return 0.5 * (t.Min + t.Max) }

// Pair names two tiers that may exchange probability mass.
type Pair struct {
	Low  string `json:"low"`
	High string `json:"high"`
}

// Table is an ordered, immutable tier ladder. Order is part of the data: it
// decides classification precedence and the default adjacent ladder.
type Table struct {
	tiers []Tier
	index map[string]int
	total int64
}

// NewTable validates tiers and copies them into a Table.
func NewTable(tiers []Tier) (*Table, error) {
	t := &Table{
		tiers: append([]Tier(nil), tiers...),
		index: make(map[string]int, len(tiers)),
	}
	for i, tr := range t.tiers {
		if tr.Name == "" {
			return nil, fmt.Errorf("tier %d: %w", i, ErrEmptyTierName)
		}
		if _, dup := t.index[tr.Name]; dup {
			return nil, fmt.Errorf("tier %q: %w", tr.Name, ErrDuplicateTierName)
		}
		if !finite(tr.Min) || !finite(tr.Max) || tr.Min > tr.Max {
			return nil, fmt.Errorf("tier %q: %w", tr.Name, ErrTierBounds)
		}
		if tr.Weight < 0 {
			return nil, fmt.Errorf("tier %q: %w", tr.Name, ErrNegativeWeight)
		}
		if i > 0 && t.tiers[i-1].Max > tr.Min {
			return nil, fmt.Errorf("tier %q after %q: %w", tr.Name, t.tiers[i-1].Name, ErrTierOrder)
		}
		t.index[tr.Name] = i
		t.total += tr.Weight
	}
	return t, nil
}

func (t *Table) Len() int { return len(t.tiers) }

func (t *Table) Tier(i int) Tier { return t.tiers[i] }

// Tiers returns a copy of the ladder.
func (t *Table) Tiers() []Tier { return append([]Tier(nil), t.tiers...) }

// Index returns the position of the named tier.
func (t *Table) Index(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

func (t *Table) TotalWeight() int64 { return t.total }

// Weights returns tier weights in table order.
func (t *Table) Weights() []int64 {
	w := make([]int64, len(t.tiers))
	for i, tr := range t.tiers {
		w[i] = tr.Weight
	}
	return w
}

// Degenerate reports a table with no positive total weight (an all-loss table).
func (t *Table) Degenerate() bool { return t.total <= 0 }

// WithWeights returns a copy of t carrying new weights in table order.
func (t *Table) WithWeights(weights []int64) (*Table, error) {
	if len(weights) != len(t.tiers) {
		return nil, fmt.Errorf("got %d weights for %d tiers", len(weights), len(t.tiers))
	}
	tiers := t.Tiers()
	for i := range tiers {
		tiers[i].Weight = weights[i]
	}
	return NewTable(tiers)
}

// Ladder returns adjacent pairs (low, high) in ascending-mean order. Table order
// breaks ties between equal means.
func (t *Table) Ladder() []Pair {
	if len(t.tiers) < 2 {
		return nil
	}
	order := make([]int, len(t.tiers))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return t.tiers[order[a]].Mean() < t.tiers[order[b]].Mean()
	})
	pairs := make([]Pair, 0, len(order)-1)
	for i := 0; i+1 < len(order); i++ {
		pairs = append(pairs, Pair{Low: t.tiers[order[i]].Name, High: t.tiers[order[i+1]].Name})
	}
	return pairs
}

// Classify returns the tier whose [Min, Max) contains x. A value on a boundary
// belongs to the tier starting there; the last tier's Max is inclusive within
// boundaryEps.
func (t *Table) Classify(x float64) (string, bool) {
	if t == nil || len(t.tiers) == 0 || math.IsNaN(x) {
		return "", false
	}
	for _, tr := range t.tiers {
		if tr.Min <= x && x < tr.Max {
			return tr.Name, true
		}
	}
	last := t.tiers[len(t.tiers)-1]
	if x >= last.Min && math.Abs(x-last.Max) <= boundaryEps {
		return last.Name, true
	}
	return "", false
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
