package payout

import (
	"errors"
	"math"

	"github.com/xtding233/payout-engine/internal/quant"
)

// Kind labels outside the tier ladder.
const (
	KindLoss   = "loss"
	KindWincap = "wincap"
	KindOther  = "other" // no tier contains the value; a configuration error
)

var ErrInvalidWincap = errors.New("wincap must be finite and > 0")

// Branch is the quota category an outcome was drawn under.
type Branch string

const (
	BranchLoss   Branch = "loss"
	BranchWincap Branch = "wincap"
	BranchBase   Branch = "base"
)

// Outcome is one finished result, ready for the book-logging collaborator.
type Outcome struct {
	Branch        Branch       `json:"branch"`
	RawMultiplier float64      `json:"raw_multiplier"`
	Multiplier    quant.Amount `json:"multiplier"`
	TotalWin      quant.Amount `json:"total_win"`
	TotalWinMinor int64        `json:"total_win_minor"`
	IsWin         bool         `json:"is_win"`
	Kind          string       `json:"kind"`
}

// Finisher turns a raw multiplier into a reportable outcome.
type Finisher struct {
	Wincap     float64
	Quantizer  quant.Quantizer
	Bet        float64
	MinorUnits int64 // minor units per currency unit, e.g. 100 for cents
}

// NewFinisher checks the wincap and fills Bet=1 and MinorUnits=100 when unset.
func NewFinisher(wincap float64, q quant.Quantizer, bet float64, minorUnits int64) (Finisher, error) {
	if !finite(wincap) || wincap <= 0 {
		return Finisher{}, ErrInvalidWincap
	}
	if bet <= 0 || !finite(bet) {
		bet = 1
	}
	if minorUnits <= 0 {
		minorUnits = 100
	}
	return Finisher{Wincap: wincap, Quantizer: q, Bet: bet, MinorUnits: minorUnits}, nil
}

// Finish applies, in order: hard cap, forced-cap override, quantization of the
// multiplier and of multiplier*bet, then classification of the quantized value.
func (f Finisher) Finish(t *Table, raw float64, forced bool) Outcome {
	m := raw
	if math.IsNaN(m) {
		m = 0
	}
	m = math.Min(m, f.Wincap)
	if forced {
		m = f.Wincap
	}

	mult := f.Quantizer.Quantize(m)
	win := f.Quantizer.Mul(mult, f.Bet)

	kind := KindWincap
	if !forced {
		kind = KindOther
		if name, ok := t.Classify(mult.Float64()); ok {
			kind = name
		}
	}
	branch := BranchBase
	if forced {
		branch = BranchWincap
	}
	return Outcome{
		Branch:        branch,
		RawMultiplier: raw,
		Multiplier:    mult,
		TotalWin:      win,
		TotalWinMinor: win.Minor(f.MinorUnits),
		IsWin:         win.Units > 0,
		Kind:          kind,
	}
}

// Loss is the pure-loss outcome. It never passes through sampling or finishing.
func (f Finisher) Loss() Outcome {
	zero := quant.Amount{Places: f.Quantizer.Places()}
	return Outcome{Branch: BranchLoss, Multiplier: zero, TotalWin: zero, Kind: KindLoss}
}
