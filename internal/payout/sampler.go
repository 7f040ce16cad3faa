package payout

// Sample picks a tier with probability proportional to its weight, then a value
// uniform in [Min, Max) of that tier. Tiers with zero weight are never chosen.
// It returns (0, -1) when no tier has positive weight.
func Sample(t *Table, rng RandomSource) (float64, int) {
	if t == nil || t.Degenerate() {
		return 0, -1
	}
	if rng == nil {
		rng = DefaultRNG()
	}
	r := rng.Int64N(t.total)
	var cum int64
	for i, tr := range t.tiers {
		if tr.Weight <= 0 {
			continue
		}
		cum += tr.Weight
		if r < cum {
			return tr.Min + (tr.Max-tr.Min)*rng.Float64(), i
		}
	}
	// unreachable while total matches the tier weights
	return 0, -1
}
