// types.go
package game

import (
	"github.com/xtding233/payout-engine/internal/payout"
	"github.com/xtding233/payout-engine/internal/quant"
)

// Raw config loaded from YAML. Pointer fields distinguish "unset" from zero so
// later files in the merge chain only override what they name.
type RawConfig struct {
	Version    string          `yaml:"version"`
	RTP        *float64        `yaml:"rtp"`
	Wincap     *float64        `yaml:"wincap"`
	Increment  *float64        `yaml:"increment"`
	Bet        *float64        `yaml:"bet"`
	MinorUnits *int64          `yaml:"minor_units"`
	Seed       *uint64         `yaml:"seed"`
	Quotas     *QuotaConfig    `yaml:"quotas,omitempty"`
	Tiers      []TierConfig    `yaml:"tiers,omitempty"`
	Retarget   *RetargetConfig `yaml:"retarget,omitempty"`
	Notes      string          `yaml:"notes,omitempty"`
}

type QuotaConfig struct {
	Loss   *float64 `yaml:"loss"`
	Wincap *float64 `yaml:"wincap"`
	Base   *float64 `yaml:"base,omitempty"` // derived when omitted
}

// TierConfig keeps weight as a float so fractional weights in a file are
// reported by validation instead of silently truncated by the decoder.
type TierConfig struct {
	Name   string  `yaml:"name"`
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
	Weight float64 `yaml:"weight"`
}

type RetargetConfig struct {
	Enabled      *bool            `yaml:"enabled"`
	Pairs        [][]string       `yaml:"pairs,omitempty"` // each [low, high]
	Locked       []string         `yaml:"locked,omitempty"`
	Floors       map[string]int64 `yaml:"floors,omitempty"`
	DefaultFloor *int64           `yaml:"default_floor"`
	Tolerance    *float64         `yaml:"tolerance"`
	RTPTolerance *float64         `yaml:"rtp_tolerance"`
	MaxPasses    *int             `yaml:"max_passes"`
	Strict       *bool            `yaml:"strict"`
}

// Defaults applied when no file in the chain sets a value.
const (
	DefaultIncrement    = 0.10
	DefaultBet          = 1.0
	DefaultMinorUnits   = 100
	DefaultMinimumFloor = 1
)

// Normalized engine params used by the calibrating registry.
type EngineParams struct {
	Game string
	Mode string

	Table      *payout.Table
	Quotas     payout.Quotas
	Target     float64
	Wincap     float64
	Quantizer  quant.Quantizer
	Bet        float64
	MinorUnits int64
	Seed       uint64

	Retarget bool
	Options  payout.RetargetOptions
	Strict   bool

	Version string // effective config version for tracing
}

// Finisher builds the outcome finisher these params describe.
func (p EngineParams) Finisher() (payout.Finisher, error) {
	return payout.NewFinisher(p.Wincap, p.Quantizer, p.Bet, p.MinorUnits)
}
