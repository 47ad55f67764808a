package data

import (
	"math/rand"
	"sort"
)

// Sampler yields the record indexes making up one epoch.
type Sampler interface {
	Sample() []int
}

// UniformSampler visits every index once per epoch. With shuffle enabled the
// order is a fresh seeded permutation each epoch, otherwise it is sequential.
type UniformSampler struct {
	n       int
	shuffle bool
	rng     *rand.Rand
}

func NewUniformSampler(n int, shuffle bool, seed int64) *UniformSampler {
	return &UniformSampler{n: n, shuffle: shuffle, rng: rand.New(rand.NewSource(seed))}
}

func (s *UniformSampler) Sample() []int {
	if s.shuffle {
		return s.rng.Perm(s.n)
	}
	idx := make([]int, s.n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// WeightedSampler draws n indexes per epoch with replacement, each with
// probability proportional to its weight. Used with inverse-frequency
// weights it rebalances stage classes without discarding majority samples.
type WeightedSampler struct {
	cum []float64
	rng *rand.Rand
}

func NewWeightedSampler(weights []float64, seed int64) *WeightedSampler {
	cum := make([]float64, len(weights))
	total := 0.0
	for i, w := range weights {
		total += w
		cum[i] = total
	}
	return &WeightedSampler{cum: cum, rng: rand.New(rand.NewSource(seed))}
}

func (s *WeightedSampler) Sample() []int {
	n := len(s.cum)
	idx := make([]int, n)
	total := s.cum[n-1]
	for i := range idx {
		idx[i] = sort.SearchFloat64s(s.cum, s.rng.Float64()*total)
	}
	return idx
}
