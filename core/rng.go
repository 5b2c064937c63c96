package core

import (
	"hash/fnv"
	"math/rand/v2"
)

// RandomSource is the subset of *rand.Rand the engine draws from.
type RandomSource interface {
	IntN(n int) int
	ExpFloat64() float64
}

// Stream tags keep a station's arrival and backoff draws independent of each
// other while sharing one seed.
const (
	streamArrivals uint64 = 0x61727269 // "arri"
	streamBackoff  uint64 = 0x6261636b // "back"
)

// NewStationRand returns a deterministic PCG-backed generator for one stream of
// a station seed.
func NewStationRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// DeriveSeed produces a per-station seed from the run seed and the station id.
func DeriveSeed(runSeed uint64, stationID string) uint64 {
	return splitmix64(runSeed ^ idHash(stationID))
}

// stationRands returns the arrival and backoff generators of one station. The
// id is folded into the stream selector, so stations sharing a seed still
// draw different sequences.
func stationRands(seed uint64, stationID string) (arrivals, backoff *rand.Rand) {
	tag := idHash(stationID)
	return NewStationRand(seed, streamArrivals^tag), NewStationRand(seed, streamBackoff^tag)
}

func idHash(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
