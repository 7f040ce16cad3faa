package payout

// BaseEV is the expected multiplier of one tier draw, taking each tier's mean.
// ok is false for a degenerate table.
func BaseEV(t *Table) (ev float64, ok bool) {
	if t == nil || t.Degenerate() {
		return 0, false
	}
	w := float64(t.TotalWeight())
	for _, tr := range t.tiers {
		ev += float64(tr.Weight) / w * tr.Mean()
	}
	return ev, true
}

// AnalyticRTP = Base * BaseEV + Wincap * wincap. The loss branch adds nothing.
// A degenerate table evaluates to 0, the neutral all-loss result.
func AnalyticRTP(t *Table, q Quotas, wincap float64) float64 {
	ev, ok := BaseEV(t)
	if !ok {
		return 0
	}
	return q.Base*ev + q.Wincap*wincap
}

// evFromProbs evaluates sum(q_k * mean_k) over probabilities indexed like means.
func evFromProbs(probs, means []float64) float64 {
	var ev float64
	for i := range probs {
		ev += probs[i] * means[i]
	}
	return ev
}
