package game

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
)

var ErrInvalidConfig = errors.New("config validation failed")

// maxExactWeight is the largest weight a float64 carries without loss.
const maxExactWeight = 1 << 53

// ValidateRaw checks semantic constraints of a merged RawConfig.
func ValidateRaw(cfg RawConfig) error {
	var errs []string

	// rtp / wincap
	if cfg.RTP == nil {
		errs = append(errs, "rtp is required")
	} else if !finite(*cfg.RTP) || *cfg.RTP <= 0 {
		errs = append(errs, "rtp must be > 0")
	}
	if cfg.Wincap == nil {
		errs = append(errs, "wincap is required")
	} else if !finite(*cfg.Wincap) || *cfg.Wincap <= 0 {
		errs = append(errs, "wincap must be > 0")
	}
	if cfg.Increment != nil && (!finite(*cfg.Increment) || *cfg.Increment <= 0) {
		errs = append(errs, "increment must be > 0")
	}
	if cfg.Bet != nil && (!finite(*cfg.Bet) || *cfg.Bet <= 0) {
		errs = append(errs, "bet must be > 0")
	}
	if cfg.MinorUnits != nil && *cfg.MinorUnits <= 0 {
		errs = append(errs, "minor_units must be >= 1")
	}

	// quotas
	if cfg.Quotas == nil || cfg.Quotas.Loss == nil || cfg.Quotas.Wincap == nil {
		errs = append(errs, "quotas.loss and quotas.wincap are required")
	} else {
		q := cfg.Quotas
		for _, f := range []struct {
			name string
			p    *float64
		}{{"loss", q.Loss}, {"wincap", q.Wincap}, {"base", q.Base}} {
			if f.p != nil && (!finite(*f.p) || *f.p < 0 || *f.p > 1) {
				errs = append(errs, fmt.Sprintf("quotas.%s must be in [0,1]", f.name))
			}
		}
		sum := *q.Loss + *q.Wincap
		if q.Base != nil {
			if math.Abs(sum+*q.Base-1) > 1e-9 {
				errs = append(errs, "quotas must sum to 1")
			}
		} else if sum > 1+1e-9 {
			errs = append(errs, "quotas.loss + quotas.wincap must be <= 1")
		}
	}

	// tiers
	names := make(map[string]bool, len(cfg.Tiers))
	if len(cfg.Tiers) == 0 {
		errs = append(errs, "tiers must not be empty")
	}
	for i, t := range cfg.Tiers {
		if t.Name == "" {
			errs = append(errs, fmt.Sprintf("tiers[%d].name is required", i))
		} else if names[t.Name] {
			errs = append(errs, fmt.Sprintf("tiers[%d].name %q is duplicated", i, t.Name))
		}
		names[t.Name] = true
		if !finite(t.Min) || !finite(t.Max) || t.Min < 0 || t.Min > t.Max {
			errs = append(errs, fmt.Sprintf("tiers[%d] must satisfy 0 <= min <= max", i))
		}
		if t.Weight < 0 || t.Weight != math.Trunc(t.Weight) || t.Weight > maxExactWeight {
			errs = append(errs, fmt.Sprintf("tiers[%d].weight must be a whole number >= 0", i))
		}
		if i > 0 && cfg.Tiers[i-1].Max > t.Min {
			errs = append(errs, fmt.Sprintf("tiers[%d] overlaps or precedes tiers[%d]", i, i-1))
		}
	}
	if n := len(cfg.Tiers); n > 0 && cfg.Wincap != nil && *cfg.Wincap < cfg.Tiers[n-1].Max {
		errs = append(errs, "wincap must be >= the top tier max")
	}

	// retarget (optional)
	if r := cfg.Retarget; r != nil {
		for i, p := range r.Pairs {
			if len(p) != 2 {
				errs = append(errs, fmt.Sprintf("retarget.pairs[%d] must name exactly two tiers", i))
				continue
			}
			for _, name := range p {
				if !names[name] {
					errs = append(errs, fmt.Sprintf("retarget.pairs[%d] names unknown tier %q", i, name))
				}
			}
		}
		for _, name := range r.Locked {
			if !names[name] {
				errs = append(errs, fmt.Sprintf("retarget.locked names unknown tier %q", name))
			}
		}
		for _, name := range slices.Sorted(maps.Keys(r.Floors)) {
			f := r.Floors[name]
			if !names[name] {
				errs = append(errs, fmt.Sprintf("retarget.floors names unknown tier %q", name))
			}
			if f < 0 {
				errs = append(errs, fmt.Sprintf("retarget.floors[%q] must be >= 0", name))
			}
		}
		if r.DefaultFloor != nil && *r.DefaultFloor < 0 {
			errs = append(errs, "retarget.default_floor must be >= 0")
		}
		if r.Tolerance != nil && !(*r.Tolerance > 0) {
			errs = append(errs, "retarget.tolerance must be > 0")
		}
		if r.RTPTolerance != nil && !(*r.RTPTolerance > 0) {
			errs = append(errs, "retarget.rtp_tolerance must be > 0")
		}
		if r.MaxPasses != nil && *r.MaxPasses <= 0 {
			errs = append(errs, "retarget.max_passes must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
