package payout

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/big"
	"math/rand/v2"
)

// RNGVersion names the seeded generator and its seeding rule. Bump it if either
// changes, since simulation books are only reproducible within one version.
const RNGVersion = "pcg-dxsm/v1"

// RandomSource abstract
type RandomSource interface {
	Float64() float64     // [0, 1)
	Int64N(n int64) int64 // [0, n), n > 0
}

// crypto random : default generation method
type cryptoRNG struct{}

func (cryptoRNG) Float64() float64 {
	// Read 53bit random => [0, 1)
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err != nil {
		// back to math/rand/v2
		return rand.Float64()
	}
	u := binary.BigEndian.Uint64(buf[:]) >> 11 // 53 bits
	return float64(u) / (1 << 53)
}

func (cryptoRNG) Int64N(n int64) int64 {
	v, err := cryptoRand.Int(cryptoRand.Reader, big.NewInt(n))
	if err != nil {
		return rand.Int64N(n)
	}
	return v.Int64()
}

func DefaultRNG() RandomSource { return cryptoRNG{} }

// Replicable RNG (e.g. Monte Carlo)
type seededRNG struct{ r *rand.Rand }

// NewSeededRNG returns PCG seeded with (seed, 0).
func NewSeededRNG(seed uint64) RandomSource {
	return &seededRNG{r: rand.New(rand.NewPCG(seed, 0))}
}

// NewSpinRNG returns the generator for simulation index sim: PCG seeded with
// (seed, sim). Every index owns its stream, so results do not depend on which
// worker runs it.
func NewSpinRNG(seed, sim uint64) RandomSource {
	return &seededRNG{r: rand.New(rand.NewPCG(seed, sim))}
}

func (s *seededRNG) Float64() float64 { return s.r.Float64() }

func (s *seededRNG) Int64N(n int64) int64 { return s.r.Int64N(n) }
