// resolve.go
package game

import (
	"fmt"
	"math"

	"github.com/xtding233/payout-engine/internal/payout"
	"github.com/xtding233/payout-engine/internal/quant"
)

// Overrides carries per-request adjustments applied after the file merge.
type Overrides struct {
	RTP  *float64
	Bet  *float64
	Seed *uint64
}

func (o Overrides) Empty() bool { return o.RTP == nil && o.Bet == nil && o.Seed == nil }

type Resolver interface {
	// Returns merged RawConfig and normalized EngineParams
	Resolve(game, mode string, o Overrides) (RawConfig, EngineParams, error)
}

// Resolve merges default → game → mode → overrides, validates the result and
// normalizes it into engine params.
func (l *Loader) Resolve(game, mode string, o Overrides) (RawConfig, EngineParams, error) {
	raw, err := l.LoadMerged(game, mode)
	if err != nil {
		return RawConfig{}, EngineParams{}, err
	}
	raw.RTP = pick(raw.RTP, o.RTP)
	raw.Bet = pick(raw.Bet, o.Bet)
	raw.Seed = pick(raw.Seed, o.Seed)
	if err := ValidateRaw(raw); err != nil {
		return raw, EngineParams{}, fmt.Errorf("%s: %w", cacheKey(game, mode), err)
	}
	p, err := Normalize(raw)
	if err != nil {
		return raw, EngineParams{}, fmt.Errorf("%s: %w", cacheKey(game, mode), err)
	}
	p.Game, p.Mode = game, mode
	return raw, p, nil
}

// Normalize converts a validated RawConfig into engine params, filling defaults.
func Normalize(raw RawConfig) (EngineParams, error) {
	tiers := make([]payout.Tier, len(raw.Tiers))
	for i, t := range raw.Tiers {
		tiers[i] = payout.Tier{Name: t.Name, Min: t.Min, Max: t.Max, Weight: int64(math.Round(t.Weight))}
	}
	table, err := payout.NewTable(tiers)
	if err != nil {
		return EngineParams{}, err
	}

	var q payout.Quotas
	if raw.Quotas.Base != nil {
		q = payout.Quotas{Loss: *raw.Quotas.Loss, Wincap: *raw.Quotas.Wincap, Base: *raw.Quotas.Base}
		err = q.Validate()
	} else {
		q, err = payout.NewQuotas(*raw.Quotas.Loss, *raw.Quotas.Wincap)
	}
	if err != nil {
		return EngineParams{}, err
	}

	qz, err := quant.NewQuantizer(deref(raw.Increment, DefaultIncrement))
	if err != nil {
		return EngineParams{}, err
	}

	p := EngineParams{
		Table:      table,
		Quotas:     q,
		Target:     *raw.RTP,
		Wincap:     *raw.Wincap,
		Quantizer:  qz,
		Bet:        deref(raw.Bet, DefaultBet),
		MinorUnits: deref(raw.MinorUnits, DefaultMinorUnits),
		Seed:       deref(raw.Seed, 0),
		Retarget:   true,
		Version:    raw.Version,
	}
	opts := payout.RetargetOptions{
		Quotas:       q,
		Wincap:       p.Wincap,
		Target:       p.Target,
		DefaultFloor: DefaultMinimumFloor,
	}
	if r := raw.Retarget; r != nil {
		p.Retarget = deref(r.Enabled, true)
		p.Strict = deref(r.Strict, false)
		if r.Pairs != nil {
			opts.Pairs = make([]payout.Pair, 0, len(r.Pairs))
			for _, pr := range r.Pairs {
				opts.Pairs = append(opts.Pairs, payout.Pair{Low: pr[0], High: pr[1]})
			}
		}
		opts.Locked = append([]string(nil), r.Locked...)
		opts.Floors = r.Floors
		opts.DefaultFloor = deref(r.DefaultFloor, DefaultMinimumFloor)
		opts.Tolerance = deref(r.Tolerance, 0)
		opts.RTPTolerance = deref(r.RTPTolerance, 0)
		opts.MaxPasses = deref(r.MaxPasses, 0)
	}
	p.Options = opts
	return p, nil
}

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
