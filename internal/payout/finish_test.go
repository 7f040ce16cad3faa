package payout

import (
	"math"
	"testing"

	"github.com/xtding233/payout-engine/internal/quant"
)

func finisher(t *testing.T, bet float64) Finisher {
	t.Helper()
	q, err := quant.NewQuantizer(0.1)
	if err != nil {
		t.Fatal(err)
	}
	f, err := NewFinisher(5000, q, bet, 100)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestFinishClassification(t *testing.T) {
	tb := ladder(t)
	f := finisher(t, 1)
	cases := []struct {
		raw  float64
		mult string
		kind string
		win  bool
	}{
		{4.97, "5.0", "5-10", true},
		{4.94, "4.9", "2-5", true},
		{0.05, "0.1", "0-1", true},
		{0.03, "0.0", KindOther, false},
		{1e9, "5000.0", "2000-5000", true},
		{5000, "5000.0", "2000-5000", true},
		{math.NaN(), "0.0", KindOther, false},
	}
	for _, c := range cases {
		out := f.Finish(tb, c.raw, false)
		if out.Multiplier.String() != c.mult || out.Kind != c.kind || out.IsWin != c.win {
			t.Fatalf("Finish(%v)=(%s,%s,%v), want (%s,%s,%v)",
				c.raw, out.Multiplier, out.Kind, out.IsWin, c.mult, c.kind, c.win)
		}
		if out.Branch != BranchBase {
			t.Fatalf("branch=%s", out.Branch)
		}
	}
}

func TestFinishForced(t *testing.T) {
	f := finisher(t, 1)
	out := f.Finish(ladder(t), 3.3, true)
	if out.Kind != KindWincap || out.Branch != BranchWincap {
		t.Fatalf("forced outcome kind=%s branch=%s", out.Kind, out.Branch)
	}
	if out.Multiplier.Float64() != 5000 || out.RawMultiplier != 3.3 {
		t.Fatalf("forced multiplier=%s raw=%v", out.Multiplier, out.RawMultiplier)
	}
}

func TestFinishBet(t *testing.T) {
	f := finisher(t, 2)
	out := f.Finish(ladder(t), 1.25, false)
	if out.Multiplier.String() != "1.3" || out.TotalWin.String() != "2.6" || out.TotalWinMinor != 260 {
		t.Fatalf("mult=%s win=%s minor=%d", out.Multiplier, out.TotalWin, out.TotalWinMinor)
	}
}

func TestFinishInvariants(t *testing.T) {
	tb := ladder(t)
	f := finisher(t, 1)
	rng := NewSeededRNG(99)
	for i := 0; i < 50000; i++ {
		raw, _ := Sample(tb, rng)
		out := f.Finish(tb, raw, false)
		if out.Multiplier.Float64() > f.Wincap {
			t.Fatalf("multiplier %s above cap", out.Multiplier)
		}
		if _, exact := f.Quantizer.Steps(out.Multiplier); !exact {
			t.Fatalf("multiplier %s is not a multiple of the increment", out.Multiplier)
		}
		if out.Kind == KindOther && !out.Multiplier.IsZero() {
			t.Fatalf("non-zero multiplier %s left unclassified", out.Multiplier)
		}
	}
}

func TestNewFinisherDefaults(t *testing.T) {
	q, _ := quant.NewQuantizer(0.1)
	if _, err := NewFinisher(0, q, 1, 100); err == nil {
		t.Fatalf("zero wincap must error")
	}
	f, err := NewFinisher(100, q, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if f.Bet != 1 || f.MinorUnits != 100 {
		t.Fatalf("defaults bet=%v minor=%d", f.Bet, f.MinorUnits)
	}
	loss := f.Loss()
	if loss.IsWin || loss.Kind != KindLoss || loss.Multiplier.String() != "0.0" {
		t.Fatalf("loss=%+v", loss)
	}
}
