package payout

import (
	"math"
	"testing"
)

func TestSampleDeterministic(t *testing.T) {
	tb := ladder(t)
	a, b := NewSeededRNG(42), NewSeededRNG(42)
	for i := 0; i < 1000; i++ {
		x1, i1 := Sample(tb, a)
		x2, i2 := Sample(tb, b)
		if x1 != x2 || i1 != i2 {
			t.Fatalf("draw %d differs: (%v,%d) vs (%v,%d)", i, x1, i1, x2, i2)
		}
	}
}

func TestSampleWithinTier(t *testing.T) {
	tb := ladder(t)
	rng := NewSeededRNG(7)
	for i := 0; i < 20000; i++ {
		x, k := Sample(tb, rng)
		tr := tb.Tier(k)
		if x < tr.Min || x >= tr.Max {
			t.Fatalf("value %v outside tier %s [%v,%v)", x, tr.Name, tr.Min, tr.Max)
		}
	}
}

func TestSampleSkipsZeroWeight(t *testing.T) {
	tb, _ := NewTable([]Tier{
		{Name: "a", Min: 0, Max: 1, Weight: 0},
		{Name: "b", Min: 1, Max: 2, Weight: 3},
		{Name: "c", Min: 2, Max: 3, Weight: 0},
		{Name: "d", Min: 3, Max: 4, Weight: 1},
	})
	const n = 100000
	rng := NewSeededRNG(1)
	hits := make([]int, tb.Len())
	for i := 0; i < n; i++ {
		_, k := Sample(tb, rng)
		hits[k]++
	}
	if hits[0] != 0 || hits[2] != 0 {
		t.Fatalf("zero-weight tiers drawn: %v", hits)
	}
	// should be around 0.75
	if freq := float64(hits[1]) / n; math.Abs(freq-0.75) > 0.01 {
		t.Fatalf("freq=%f not close to 0.75", freq)
	}
}

func TestSampleDegenerate(t *testing.T) {
	tb, _ := NewTable([]Tier{{Name: "a", Min: 0, Max: 1}})
	if x, k := Sample(tb, NewSeededRNG(1)); x != 0 || k != -1 {
		t.Fatalf("degenerate sample=(%v,%d)", x, k)
	}
	if _, k := Sample(nil, nil); k != -1 {
		t.Fatalf("nil table must not sample")
	}
}

func TestSpinStreamsIndependent(t *testing.T) {
	if NewSpinRNG(42, 0).Float64() == NewSpinRNG(42, 1).Float64() {
		t.Fatalf("streams 0 and 1 should differ")
	}
	if NewSpinRNG(42, 5).Float64() != NewSpinRNG(42, 5).Float64() {
		t.Fatalf("same stream must repeat")
	}
}
