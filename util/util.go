package util

import (
	"hash/fnv"
	"math"
	"math/rand"
	"sort"

	"golang.org/x/exp/constraints"
)

// Eps is the tolerance used for all beat arithmetic. Durations are
// halves and quarters of a beat, so anything tighter than 1e-9 is
// noise.
const Eps = 1e-9

// NewRand returns a locally-owned PRNG derived from a seed string.
// Identical seeds always produce identical streams; nothing here
// touches the global rand state.
func NewRand(seed string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(seed))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

// SortedKeys returns map keys in ascending order. Use this instead of
// ranging over maps anywhere determinism matters.
func SortedKeys[A constraints.Ordered, B any](m map[A]B) []A {
	keys := make([]A, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func Min[A constraints.Ordered](a, b A) A {
	if a < b {
		return a
	}
	return b
}

func Max[A constraints.Ordered](a, b A) A {
	if a > b {
		return a
	}
	return b
}

func Abs[A constraints.Signed | constraints.Float](v A) A {
	if v < 0 {
		return -v
	}
	return v
}

// AlmostEqual compares beat quantities under Eps.
func AlmostEqual(a, b float64) bool {
	return math.Abs(a-b) < Eps
}

// AlmostZero is AlmostEqual(v, 0).
func AlmostZero(v float64) bool {
	return math.Abs(v) < Eps
}

func SumFloats(vals []float64) float64 {
	var total float64
	for _, v := range vals {
		total += v
	}
	return total
}
