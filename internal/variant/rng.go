package variant

import (
	"crypto/sha256"
	"math/rand/v2"
)

// RNG is a deterministic generator keyed by a string seed. Two RNGs built
// from the same seed produce the same stream on every platform.
type RNG struct {
	seed string
	r    *rand.Rand
}

// NewRNG returns a generator for seed.
func NewRNG(seed string) *RNG {
	key := sha256.Sum256([]byte(seed))
	return &RNG{seed: seed, r: rand.New(rand.NewChaCha8(key))}
}

// Seed returns the seed the generator was built from.
func (g *RNG) Seed() string { return g.seed }

// Float64 returns a value in [0, 1).
func (g *RNG) Float64() float64 { return g.r.Float64() }

// IntN returns a value in [0, n). It panics if n <= 0.
func (g *RNG) IntN(n int) int { return g.r.IntN(n) }

// Uint32 returns a uniformly distributed uint32.
func (g *RNG) Uint32() uint32 { return g.r.Uint32() }

// ShufflePrefix returns the first k entries of a uniformly random
// permutation of 1..n, drawing k values from g. Only touched positions are
// stored, so n may be far larger than k.
func (g *RNG) ShufflePrefix(n, k int) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}
	swapped := make(map[int]int, 2*k)
	at := func(i int) int {
		if v, ok := swapped[i]; ok {
			return v
		}
		return i + 1
	}
	out := make([]int, k)
	for i := 0; i < k; i++ {
		j := i + g.IntN(n-i)
		vi, vj := at(i), at(j)
		swapped[i], swapped[j] = vj, vi
		out[i] = vj
	}
	return out
}
