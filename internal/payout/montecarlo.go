package payout

import (
	"context"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"
)

// ctxCheckEvery is how many spins a worker runs between cancellation checks.
const ctxCheckEvery = 4096

// SimParams describes one verification run.
type SimParams struct {
	Spins      int
	Workers    int     // <= 0 means GOMAXPROCS
	Seed       uint64  // spin i uses NewSpinRNG(Seed, i)
	Confidence float64 // confidence level of the RTP interval; default 0.95
}

// CI is a two-sided confidence interval.
type CI struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// KindStats aggregates outcomes sharing a kind label.
type KindStats struct {
	Count int64   `json:"count"`
	Rate  float64 `json:"rate"`
	RTP   float64 `json:"rtp"` // contribution to empirical RTP
}

// SimStats summarizes simulated returns, in bet multiples.
type SimStats struct {
	Spins      int                  `json:"spins"`
	Seed       uint64               `json:"seed"`
	RNG        string               `json:"rng"`
	RTP        float64              `json:"rtp"`
	RTPCI      CI                   `json:"rtp_ci"`
	Confidence float64              `json:"confidence"`
	HitRate    float64              `json:"hit_rate"`
	Mean       float64              `json:"mean"`
	Var        float64              `json:"var"`
	StdDev     float64              `json:"stddev"`
	P50        float64              `json:"p50"`
	P90        float64              `json:"p90"`
	P99        float64              `json:"p99"`
	Max        float64              `json:"max"`
	Kinds      map[string]KindStats `json:"kinds"`
}

// Simulate runs p.Spins independent spins across workers and measures the
// empirical return. Wins are summed in integer minor units and every spin owns
// its RNG stream, so the result is identical for any worker count.
func Simulate(ctx context.Context, e *Engine, p SimParams) (SimStats, error) {
	if p.Spins <= 0 {
		return SimStats{Seed: p.Seed, RNG: RNGVersion}, nil
	}
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, p.Spins)

	wins := make([]int64, p.Spins)
	counts := make([]map[string]int64, workers)
	sums := make([]map[string]int64, workers)
	chunk := (p.Spins + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, min((w+1)*chunk, p.Spins)
		counts[w], sums[w] = map[string]int64{}, map[string]int64{}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if (i-lo)%ctxCheckEvery == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				out := e.Spin(NewSpinRNG(p.Seed, uint64(i)))
				wins[i] = out.TotalWinMinor
				counts[w][out.Kind]++
				sums[w][out.Kind] += out.TotalWinMinor
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SimStats{}, err
	}

	kindCount := map[string]int64{}
	kindSum := map[string]int64{}
	for w := range counts {
		for k, v := range counts[w] {
			kindCount[k] += v
		}
		for k, v := range sums[w] {
			kindSum[k] += v
		}
	}

	bet := math.Max(1, math.Round(e.finisher.Bet*float64(e.finisher.MinorUnits)))
	st := calcStats(wins, bet, p.Confidence)
	st.Seed = p.Seed
	st.Kinds = make(map[string]KindStats, len(kindCount))
	n := float64(p.Spins)
	for k, c := range kindCount {
		st.Kinds[k] = KindStats{Count: c, Rate: float64(c) / n, RTP: float64(kindSum[k]) / (n * bet)}
	}
	return st, nil
}

// calcStats computes mean/variance/percentiles of wins expressed in bets.
func calcStats(wins []int64, bet, confidence float64) SimStats {
	n := len(wins)
	if confidence <= 0 || confidence >= 1 {
		confidence = 0.95
	}
	st := SimStats{Spins: n, RNG: RNGVersion, Confidence: confidence}
	if n == 0 || bet <= 0 {
		return st
	}

	// mean
	var sum int64
	var hits int
	for _, v := range wins {
		sum += v
		if v > 0 {
			hits++
		}
	}
	mean := float64(sum) / float64(n) / bet

	// variance (population)
	var acc float64
	for _, v := range wins {
		d := float64(v)/bet - mean
		acc += d * d
	}
	variance := acc / float64(n)
	stddev := math.Sqrt(variance)

	// percentiles
	cp := append([]int64(nil), wins...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	percentile := func(p float64) float64 {
		if n == 1 || p <= 0 {
			return float64(cp[0]) / bet
		}
		if p >= 1 {
			return float64(cp[n-1]) / bet
		}
		pos := p * float64(n-1)
		i := int(math.Floor(pos))
		f := pos - float64(i)
		if i+1 >= n {
			return float64(cp[i]) / bet
		}
		return (float64(cp[i])*(1-f) + float64(cp[i+1])*f) / bet
	}

	z := distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
	half := z * stddev / math.Sqrt(float64(n))

	st.RTP = mean
	st.RTPCI = CI{Lo: mean - half, Hi: mean + half}
	st.HitRate = float64(hits) / float64(n)
	st.Mean = mean
	st.Var = variance
	st.StdDev = stddev
	st.P50 = percentile(0.50)
	st.P90 = percentile(0.90)
	st.P99 = percentile(0.99)
	st.Max = float64(cp[n-1]) / bet
	return st
}
