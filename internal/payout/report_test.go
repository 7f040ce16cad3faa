package payout

import (
	"bytes"
	"math"
	"strings"
	"testing"
)

func TestReport(t *testing.T) {
	tb, _ := NewTable([]Tier{
		{Name: "0-1", Min: 0, Max: 1, Weight: 100},
		{Name: "1-2", Min: 1, Max: 2, Weight: 50},
	})
	q := Quotas{Loss: 0.3999, Wincap: 0.0001, Base: 0.6}
	cal, err := Retarget(tb, RetargetOptions{Quotas: q, Wincap: 5000, Target: 0.95})
	if err != nil {
		t.Fatal(err)
	}
	r := NewReport(cal, q, 5000, 0)
	if r.Tolerance != DefaultRTPTolerance || r.Within {
		t.Fatalf("report=%+v", r)
	}
	if len(r.Tiers) != 2 || len(r.Warnings) == 0 {
		t.Fatalf("tiers=%d warnings=%v", len(r.Tiers), r.Warnings)
	}
	sum := r.WincapShare
	for _, row := range r.Tiers {
		sum += row.Contribution
	}
	if math.Abs(sum-r.Achieved) > 1e-9 {
		t.Fatalf("contributions %f != achieved %f", sum, r.Achieved)
	}
	if len(r.Fields()) == 0 {
		t.Fatalf("no log fields")
	}

	var buf bytes.Buffer
	if err := r.Write(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"0-1", "1-2", "wincap", "status converged", "warning:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
