package payout

import (
	"math"
	"testing"
)

func calibrated(t *testing.T) *Engine {
	t.Helper()
	q, err := NewQuotas(0.55, 0.00001)
	if err != nil {
		t.Fatal(err)
	}
	cal, err := Retarget(ladder(t), RetargetOptions{Quotas: q, Wincap: 5000, Target: 0.95, DefaultFloor: 1})
	if err != nil {
		t.Fatal(err)
	}
	e, err := NewEngine(cal, q, finisher(t, 1))
	if err != nil {
		t.Fatal(err)
	}
	return e
}

type countingRNG struct {
	RandomSource
	calls int
}

func (c *countingRNG) Float64() float64 { c.calls++; return c.RandomSource.Float64() }

func (c *countingRNG) Int64N(n int64) int64 { c.calls++; return c.RandomSource.Int64N(n) }

func TestEngineBranchRates(t *testing.T) {
	e := calibrated(t)
	const n = 200000
	rng := NewSeededRNG(42)
	count := map[Branch]int{}
	for i := 0; i < n; i++ {
		count[e.PickBranch(rng)]++
	}
	if freq := float64(count[BranchLoss]) / n; math.Abs(freq-0.55) > 0.01 {
		t.Fatalf("loss freq=%f", freq)
	}
	if freq := float64(count[BranchBase]) / n; math.Abs(freq-0.44999) > 0.01 {
		t.Fatalf("base freq=%f", freq)
	}
}

func TestEngineLossUsesNoRandomness(t *testing.T) {
	e := calibrated(t)
	rng := &countingRNG{RandomSource: NewSeededRNG(1)}
	out := e.SpinBranch(BranchLoss, rng)
	if rng.calls != 0 || out.Kind != KindLoss || out.IsWin {
		t.Fatalf("loss outcome=%+v calls=%d", out, rng.calls)
	}
	out = e.SpinBranch(BranchWincap, rng)
	if rng.calls != 2 || out.Multiplier.Float64() != 5000 {
		t.Fatalf("forced branch should sample once then override: %+v calls=%d", out, rng.calls)
	}
}

func TestEngineSpinDeterministic(t *testing.T) {
	e := calibrated(t)
	for i := uint64(0); i < 500; i++ {
		a := e.Spin(NewSpinRNG(9, i))
		b := e.Spin(NewSpinRNG(9, i))
		if a.Kind != b.Kind || a.TotalWinMinor != b.TotalWinMinor {
			t.Fatalf("spin %d differs: %+v vs %+v", i, a, b)
		}
	}
}

func TestNewEngineErrors(t *testing.T) {
	if _, err := NewEngine(nil, Quotas{Base: 1}, finisher(t, 1)); err != ErrNotCalibrated {
		t.Fatalf("nil calibration: %v", err)
	}
	cal := &Calibration{Table: ladder(t)}
	if _, err := NewEngine(cal, Quotas{Base: 2}, finisher(t, 1)); err == nil {
		t.Fatalf("bad quotas must error")
	}
	if _, err := NewEngine(cal, Quotas{Base: 1}, Finisher{}); err != ErrInvalidWincap {
		t.Fatalf("zero wincap: %v", err)
	}
}

func TestParseBranch(t *testing.T) {
	for _, s := range []string{"loss", "wincap", "base"} {
		if b, err := ParseBranch(s); err != nil || string(b) != s {
			t.Fatalf("ParseBranch(%q)=%v,%v", s, b, err)
		}
	}
	if _, err := ParseBranch("jackpot"); err == nil {
		t.Fatalf("unknown branch must error")
	}
}
